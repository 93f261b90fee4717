package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/sma-occurrences-api/internal/lifecycle"
	"github.com/noah-isme/sma-occurrences-api/internal/models"
	appErrors "github.com/noah-isme/sma-occurrences-api/pkg/errors"
)

// snapshotLoadTimeout bounds a shared load, which outlives the request that started it.
const snapshotLoadTimeout = 30 * time.Second

// SnapshotSource loads full tables from the remote store.
type SnapshotSource interface {
	FetchOccurrences(ctx context.Context) ([]models.Occurrence, error)
	FetchTeachers(ctx context.Context) ([]models.Teacher, error)
	FetchRooms(ctx context.Context) ([]models.Room, error)
	FetchStudents(ctx context.Context) ([]models.Student, error)
}

// EpochStore shares the invalidation epoch between processes.
type EpochStore interface {
	Epoch(ctx context.Context) (int64, error)
	Bump(ctx context.Context) (int64, error)
}

// Snapshot is the derived view of one table as loaded from the store.
// Only the slice matching Table is populated. Snapshots are shared between
// callers and must not be mutated.
type Snapshot struct {
	Table       models.Table
	Occurrences []models.OccurrenceView
	Teachers    []models.Teacher
	Rooms       []models.Room
	Students    []models.Student
	LoadedAt    time.Time
}

// CacheService is a read-through cache of table snapshots.
//
// Snapshots are loaded lazily, kept until the next InvalidateAll and never
// expire on their own. Within one epoch, Get returns the same *Snapshot for
// a table. Failed loads are not cached.
type CacheService struct {
	source  SnapshotSource
	remote  EpochStore
	store   *gocache.Cache
	group   singleflight.Group
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time

	mu          sync.Mutex
	epoch       uint64
	remoteEpoch int64
}

// NewCacheService constructs a cache service. remote may be nil, in which
// case invalidation stays local to the process.
func NewCacheService(source SnapshotSource, remote EpochStore, metrics *MetricsService, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{
		source:  source,
		remote:  remote,
		store:   gocache.New(gocache.NoExpiration, 0),
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the snapshot of table, loading it on first access in the
// current epoch. When the load fails it returns an empty snapshot together
// with the error.
func (s *CacheService) Get(ctx context.Context, table models.Table) (*Snapshot, error) {
	s.syncRemoteEpoch(ctx)

	key := string(table)
	if cached, ok := s.store.Get(key); ok {
		s.metrics.RecordCacheLookup(table, true)
		return cached.(*Snapshot), nil
	}
	s.metrics.RecordCacheLookup(table, false)

	epoch := s.currentEpoch()
	value, err, _ := s.group.Do(fmt.Sprintf("%s@%d", key, epoch), func() (interface{}, error) {
		// waiters share this load, so one caller going away must not fail the rest
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotLoadTimeout)
		defer cancel()

		start := time.Now()
		snapshot, err := s.load(loadCtx, table)
		s.metrics.ObserveSnapshotLoad(table, time.Since(start), err)
		if err != nil {
			return snapshot, err
		}
		return s.keep(key, epoch, snapshot), nil
	})
	if err != nil {
		s.logger.Warn("snapshot load failed", zap.String("table", key), zap.Error(err))
		if snapshot, ok := value.(*Snapshot); ok && snapshot != nil {
			return snapshot, err
		}
		return &Snapshot{Table: table, LoadedAt: s.now()}, err
	}
	return value.(*Snapshot), nil
}

// InvalidateAll drops every snapshot and starts a new epoch.
func (s *CacheService) InvalidateAll(ctx context.Context) {
	s.mu.Lock()
	s.store.Flush()
	s.epoch++
	s.mu.Unlock()
	s.metrics.RecordCacheInvalidation()

	if s.remote == nil {
		return
	}
	remoteEpoch, err := s.remote.Bump(ctx)
	if err != nil {
		s.logger.Warn("shared cache epoch bump failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.remoteEpoch = remoteEpoch
	s.mu.Unlock()
}

func (s *CacheService) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// keep stores snapshot unless the epoch moved on while it was loading, and
// returns whichever snapshot is current for key.
func (s *CacheService) keep(key string, epoch uint64, snapshot *Snapshot) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return snapshot
	}
	if existing, ok := s.store.Get(key); ok {
		return existing.(*Snapshot)
	}
	s.store.Set(key, snapshot, gocache.NoExpiration)
	return snapshot
}

func (s *CacheService) syncRemoteEpoch(ctx context.Context) {
	if s.remote == nil {
		return
	}
	remoteEpoch, err := s.remote.Epoch(ctx)
	if err != nil {
		s.logger.Warn("shared cache epoch unavailable", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if remoteEpoch == s.remoteEpoch {
		return
	}
	s.remoteEpoch = remoteEpoch
	s.store.Flush()
	s.epoch++
}

func (s *CacheService) load(ctx context.Context, table models.Table) (*Snapshot, error) {
	snapshot := &Snapshot{Table: table, LoadedAt: s.now()}
	switch table {
	case models.TableOccurrences:
		return s.loadOccurrences(ctx, snapshot)
	case models.TableTeachers:
		teachers, err := s.source.FetchTeachers(ctx)
		if err != nil {
			return nil, err
		}
		snapshot.Teachers = teachers
	case models.TableRooms:
		rooms, err := s.source.FetchRooms(ctx)
		if err != nil {
			return nil, err
		}
		snapshot.Rooms = rooms
	case models.TableStudents:
		students, err := s.source.FetchStudents(ctx)
		if err != nil {
			return nil, err
		}
		snapshot.Students = students
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown table %q", table))
	}
	return snapshot, nil
}

// loadOccurrences derives the display status of every record and resolves
// tutors through the students snapshot. If students cannot be loaded the
// views fall back to the no-tutor sentinel and the snapshot is not cached.
func (s *CacheService) loadOccurrences(ctx context.Context, snapshot *Snapshot) (*Snapshot, error) {
	records, err := s.source.FetchOccurrences(ctx)
	if err != nil {
		return nil, err
	}
	students, studentsErr := s.Get(ctx, models.TableStudents)
	tutors := make(map[string]string, len(students.Students))
	for _, student := range students.Students {
		tutors[normalizeKey(student.Name)] = student.Tutor
	}

	views := make([]models.OccurrenceView, 0, len(records))
	for _, record := range records {
		record.Tutor = models.ResolveTutor(tutors[normalizeKey(record.Student)])
		views = append(views, lifecycle.View(record))
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].ID > views[j].ID })
	snapshot.Occurrences = views

	if studentsErr != nil {
		return snapshot, fmt.Errorf("resolve tutors: %w", studentsErr)
	}
	return snapshot, nil
}

func normalizeKey(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}
