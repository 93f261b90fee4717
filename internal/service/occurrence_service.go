package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-occurrences-api/internal/lifecycle"
	"github.com/noah-isme/sma-occurrences-api/internal/models"
	appErrors "github.com/noah-isme/sma-occurrences-api/pkg/errors"
)

type occurrenceWriter interface {
	FetchNextID(ctx context.Context) (int64, error)
	Insert(ctx context.Context, occ *models.Occurrence) error
	Update(ctx context.Context, id int64, patch models.OccurrencePatch) error
	Ping(ctx context.Context) error
}

type snapshotCache interface {
	Get(ctx context.Context, table models.Table) (*Snapshot, error)
	InvalidateAll(ctx context.Context)
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// OccurrenceService implements the occurrence workflows on top of the
// snapshot cache and the store adapter.
type OccurrenceService struct {
	store     occurrenceWriter
	cache     snapshotCache
	validator *validator.Validate
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time

	// writeMu serialises id allocation, inserts and follow-up read-modify-write
	// cycles within the process.
	writeMu sync.Mutex
}

// NewOccurrenceService constructs the service. loc is the school's timezone
// used for creation and follow-up timestamps.
func NewOccurrenceService(store occurrenceWriter, cache snapshotCache, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *OccurrenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &OccurrenceService{store: store, cache: cache, validator: validate, logger: logger, loc: loc, now: time.Now}
}

// ListOccurrencesRequest describes filters for listing occurrences.
type ListOccurrencesRequest struct {
	Tutor    string `json:"tutor"`
	Room     string `json:"room"`
	Status   string `json:"status"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// OccurrenceList is a page of occurrence views plus soft failure notices.
type OccurrenceList struct {
	Items      []models.OccurrenceView
	Pagination *models.Pagination
	Notices    []string
}

// FilterOptions lists the choices for each occurrence filter.
type FilterOptions struct {
	Tutors   []string `json:"tutors"`
	Rooms    []string `json:"rooms"`
	Statuses []string `json:"statuses"`
}

// CreateOccurrenceRequest describes the create payload. The Require* boxes
// mark which roles must act on the occurrence.
type CreateOccurrenceRequest struct {
	Teacher             string `json:"teacher" validate:"required,max=200"`
	Room                string `json:"room" validate:"required,max=100"`
	Student             string `json:"student" validate:"required,max=200"`
	Description         string `json:"description" validate:"required,max=4000"`
	TeacherRemark       string `json:"teacher_remark" validate:"max=4000"`
	RequireTutor        bool   `json:"require_tutor"`
	RequireCoordination bool   `json:"require_coordination"`
	RequireManagement   bool   `json:"require_management"`
}

// FollowUpRequest carries new remarks per slot. Nil slots are left untouched.
type FollowUpRequest struct {
	Tutor        *string `json:"tutor" validate:"omitempty,max=4000"`
	Coordination *string `json:"coordination" validate:"omitempty,max=4000"`
	Management   *string `json:"management" validate:"omitempty,max=4000"`
}

func (r FollowUpRequest) remark(slot models.Slot) *string {
	switch slot {
	case models.SlotTutor:
		return r.Tutor
	case models.SlotCoordination:
		return r.Coordination
	case models.SlotManagement:
		return r.Management
	}
	return nil
}

// List returns the occurrences matching req, newest first. Store failures
// yield an empty page with notices instead of an error.
func (s *OccurrenceService) List(ctx context.Context, req ListOccurrencesRequest) (*OccurrenceList, error) {
	snapshot, err := s.cache.Get(ctx, models.TableOccurrences)
	notices := s.notices(models.TableOccurrences, err)

	items := FilterOccurrences(snapshot, models.OccurrenceFilter{Tutor: req.Tutor, Room: req.Room, Status: req.Status})

	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	total := len(items)
	start := total
	// pages past the end are empty; compare before multiplying so huge pages cannot overflow
	if page-1 <= total/size {
		start = min((page-1)*size, total)
	}
	end := start + size
	if end > total {
		end = total
	}

	return &OccurrenceList{
		Items:      items[start:end],
		Pagination: &models.Pagination{Page: page, PageSize: size, TotalCount: total},
		Notices:    notices,
	}, nil
}

// Get returns a single occurrence view.
func (s *OccurrenceService) Get(ctx context.Context, id int64) (*models.OccurrenceView, error) {
	snapshot, err := s.cache.Get(ctx, models.TableOccurrences)
	view, found := findOccurrence(snapshot, id)
	if found {
		return &view, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("occurrence %d not found", id))
}

// Filters returns the distinct tutor, room and status values of the current occurrences.
func (s *OccurrenceService) Filters(ctx context.Context) (*FilterOptions, []string) {
	snapshot, err := s.cache.Get(ctx, models.TableOccurrences)
	return &FilterOptions{
		Tutors:   DistinctValues(snapshot, models.FieldTutor),
		Rooms:    DistinctValues(snapshot, models.FieldRoom),
		Statuses: DistinctValues(snapshot, models.FieldStatus),
	}, s.notices(models.TableOccurrences, err)
}

// Teachers lists the teachers reference table.
func (s *OccurrenceService) Teachers(ctx context.Context) ([]models.Teacher, []string) {
	snapshot, err := s.cache.Get(ctx, models.TableTeachers)
	return nonNil(snapshot.Teachers), s.notices(models.TableTeachers, err)
}

// Rooms lists the rooms reference table.
func (s *OccurrenceService) Rooms(ctx context.Context) ([]models.Room, []string) {
	snapshot, err := s.cache.Get(ctx, models.TableRooms)
	return nonNil(snapshot.Rooms), s.notices(models.TableRooms, err)
}

// Students lists the students reference table with tutors resolved.
func (s *OccurrenceService) Students(ctx context.Context) ([]models.Student, []string) {
	snapshot, err := s.cache.Get(ctx, models.TableStudents)
	students := make([]models.Student, len(snapshot.Students))
	for i, student := range snapshot.Students {
		students[i] = models.Student{Name: student.Name, Tutor: student.TutorOrDefault()}
	}
	return students, s.notices(models.TableStudents, err)
}

// Create records a new occurrence and invalidates the cache.
func (s *OccurrenceService) Create(ctx context.Context, req CreateOccurrenceRequest) (*models.OccurrenceView, error) {
	req.Teacher = strings.TrimSpace(req.Teacher)
	req.Room = strings.TrimSpace(req.Room)
	req.Student = strings.TrimSpace(req.Student)
	req.Description = strings.TrimSpace(req.Description)
	req.TeacherRemark = strings.TrimSpace(req.TeacherRemark)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid occurrence payload")
	}
	if err := s.checkReferences(ctx, req); err != nil {
		return nil, err
	}

	flags := lifecycle.CreationFlags(req.RequireTutor, req.RequireCoordination, req.RequireManagement)
	occ := models.Occurrence{
		Teacher:       req.Teacher,
		Room:          req.Room,
		Student:       req.Student,
		Tutor:         s.tutorOf(ctx, req.Student),
		Description:   req.Description,
		TeacherRemark: req.TeacherRemark,
		CreatedAt:     s.now().In(s.loc).Truncate(time.Second),
		Tutoring:      models.FollowUp{Flag: flags.Tutor},
		Coordination:  models.FollowUp{Flag: flags.Coordination},
		Management:    models.FollowUp{Flag: flags.Management},
		Status:        lifecycle.InitialStatus(flags),
	}

	if err := s.insert(ctx, &occ); err != nil {
		return nil, err
	}
	s.cache.InvalidateAll(ctx)

	s.logger.Info("occurrence created",
		zap.Int64("id", occ.ID),
		zap.String("student", occ.Student),
		zap.String("status", string(occ.Status)),
	)
	view := lifecycle.View(occ)
	return &view, nil
}

func (s *OccurrenceService) insert(ctx context.Context, occ *models.Occurrence) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	id, err := s.store.FetchNextID(ctx)
	if err != nil {
		s.logger.Error("allocate occurrence id failed", zap.Error(err))
		return err
	}
	occ.ID = id
	if err := s.store.Insert(ctx, occ); err != nil {
		s.logger.Error("insert occurrence failed", zap.Int64("id", id), zap.Error(err))
		return err
	}
	return nil
}

// FollowUp applies the remarks of req to the slots the role may edit. A
// request naming a slot outside the role's permissions is rejected as a
// whole. A request naming no slot changes nothing.
func (s *OccurrenceService) FollowUp(ctx context.Context, id int64, role models.FollowUpRole, req FollowUpRequest) (*models.OccurrenceView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid follow-up payload")
	}
	permissions := role.Permissions()
	for _, slot := range models.Slots {
		if req.remark(slot) != nil && !permissions.Allows(slot) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s cannot edit the %s follow-up", role, slot))
		}
	}

	// status is derived from the flags read here, so the read and the write must not interleave
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	at := s.now().In(s.loc).Truncate(time.Second)
	working := current.Occurrence
	patch := models.OccurrencePatch{}
	for _, slot := range models.Slots {
		remark := req.remark(slot)
		if remark == nil {
			continue
		}
		slotPatch := lifecycle.ApplyFollowUp(working, slot, *remark, at)
		for field, value := range slotPatch {
			patch[field] = value
		}
		working = lifecycle.ApplyPatch(working, slotPatch)
	}
	if len(patch) == 0 {
		return current, nil
	}

	if err := s.store.Update(ctx, id, patch); err != nil {
		s.logger.Error("follow-up update failed", zap.Int64("id", id), zap.String("role", string(role)), zap.Error(err))
		return nil, err
	}
	s.cache.InvalidateAll(ctx)

	s.logger.Info("occurrence follow-up recorded",
		zap.Int64("id", id),
		zap.String("role", string(role)),
		zap.String("status", string(working.Status)),
	)
	view := lifecycle.View(working)
	return &view, nil
}

// Invalidate drops every cached snapshot.
func (s *OccurrenceService) Invalidate(ctx context.Context) {
	s.cache.InvalidateAll(ctx)
}

// Ready reports whether the store answers.
func (s *OccurrenceService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// checkReferences rejects names missing from reference tables that loaded.
// Tables that failed to load are not checked.
func (s *OccurrenceService) checkReferences(ctx context.Context, req CreateOccurrenceRequest) error {
	checks := []struct {
		table models.Table
		value string
		label string
	}{
		{models.TableTeachers, req.Teacher, "teacher"},
		{models.TableRooms, req.Room, "room"},
		{models.TableStudents, req.Student, "student"},
	}
	for _, check := range checks {
		snapshot, err := s.cache.Get(ctx, check.table)
		if err != nil {
			s.logger.Warn("reference check skipped", zap.String("table", string(check.table)), zap.Error(err))
			continue
		}
		names := referenceNames(snapshot)
		if len(names) == 0 {
			continue
		}
		if _, ok := names[normalizeKey(check.value)]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown %s %q", check.label, check.value))
		}
	}
	return nil
}

func (s *OccurrenceService) tutorOf(ctx context.Context, student string) string {
	snapshot, err := s.cache.Get(ctx, models.TableStudents)
	if err != nil {
		return models.NoTutor
	}
	key := normalizeKey(student)
	for _, candidate := range snapshot.Students {
		if normalizeKey(candidate.Name) == key {
			return candidate.TutorOrDefault()
		}
	}
	return models.NoTutor
}

func (s *OccurrenceService) notices(table models.Table, err error) []string {
	if err == nil {
		return nil
	}
	appErr := appErrors.FromError(err)
	s.logger.Warn("serving degraded snapshot", zap.String("table", string(table)), zap.String("code", appErr.Code), zap.Error(err))
	return []string{fmt.Sprintf("%s: %s", table, appErr.Message)}
}

func referenceNames(snapshot *Snapshot) map[string]struct{} {
	names := make(map[string]struct{})
	for _, teacher := range snapshot.Teachers {
		names[normalizeKey(teacher.Name)] = struct{}{}
	}
	for _, room := range snapshot.Rooms {
		names[normalizeKey(room.Name)] = struct{}{}
	}
	for _, student := range snapshot.Students {
		names[normalizeKey(student.Name)] = struct{}{}
	}
	return names
}

func findOccurrence(snapshot *Snapshot, id int64) (models.OccurrenceView, bool) {
	if snapshot == nil {
		return models.OccurrenceView{}, false
	}
	for _, view := range snapshot.Occurrences {
		if view.ID == id {
			return view, true
		}
	}
	return models.OccurrenceView{}, false
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
