package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-occurrences-api/internal/lifecycle"
	"github.com/noah-isme/sma-occurrences-api/internal/models"
	appErrors "github.com/noah-isme/sma-occurrences-api/pkg/errors"
)

type fakeWriter struct {
	mu        sync.Mutex
	source    *fakeSource
	nextErr   error
	insertErr error
	updateErr error
	pingErr   error
	// updateDelay widens the window between reading a record and writing it back.
	updateDelay time.Duration
	inserted    []models.Occurrence
	updates     []models.OccurrencePatch
}

func (f *fakeWriter) FetchNextID(ctx context.Context) (int64, error) {
	if f.nextErr != nil {
		return 0, f.nextErr
	}
	f.source.mu.Lock()
	defer f.source.mu.Unlock()
	var max int64
	for _, occ := range f.source.occurrences {
		if occ.ID > max {
			max = occ.ID
		}
	}
	return max + 1, nil
}

func (f *fakeWriter) Insert(ctx context.Context, occ *models.Occurrence) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	f.inserted = append(f.inserted, *occ)
	f.mu.Unlock()
	f.source.mu.Lock()
	f.source.occurrences = append(f.source.occurrences, *occ)
	f.source.mu.Unlock()
	return nil
}

func (f *fakeWriter) Update(ctx context.Context, id int64, patch models.OccurrencePatch) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.updateDelay > 0 {
		time.Sleep(f.updateDelay)
	}
	f.mu.Lock()
	f.updates = append(f.updates, patch)
	f.mu.Unlock()
	f.source.mu.Lock()
	defer f.source.mu.Unlock()
	for i, occ := range f.source.occurrences {
		if occ.ID == id {
			f.source.occurrences[i] = applyForTest(occ, patch)
			return nil
		}
	}
	return appErrors.ErrNotFound
}

func applyForTest(o models.Occurrence, patch models.OccurrencePatch) models.Occurrence {
	for _, slot := range models.Slots {
		remarkField, flagField, completedField := models.SlotFields(slot)
		state := o.FollowUp(slot)
		if v, ok := patch[remarkField].(string); ok {
			state.Remark = v
		}
		if v, ok := patch[flagField].(models.Flag); ok {
			state.Flag = v
		}
		if v, ok := patch[completedField].(*time.Time); ok {
			state.CompletedAt = v
		}
		o.SetFollowUp(slot, state)
	}
	if v, ok := patch[models.FieldStatus].(models.PersistedStatus); ok {
		o.Status = v
	}
	return o
}

func (f *fakeWriter) Ping(ctx context.Context) error {
	return f.pingErr
}

var fixedNow = time.Date(2024, 3, 18, 9, 30, 15, 500, time.UTC)

func newOccurrenceServiceForTest(t *testing.T) (*OccurrenceService, *fakeSource, *fakeWriter) {
	t.Helper()
	source := newFakeSource()
	source.teachers = []models.Teacher{{Name: "Ana Souza"}}
	source.rooms = []models.Room{{Name: "1A"}, {Name: "2B"}}
	source.students = []models.Student{{Name: "Bruno Lima", Tutor: "Carla Dias"}, {Name: "Davi Rocha"}}
	writer := &fakeWriter{source: source}
	cache := NewCacheService(source, nil, nil, zap.NewNop())
	svc := NewOccurrenceService(writer, cache, nil, zap.NewNop(), time.UTC)
	svc.now = func() time.Time { return fixedNow }
	return svc, source, writer
}

func createRequest() CreateOccurrenceRequest {
	return CreateOccurrenceRequest{
		Teacher:             "Ana Souza",
		Room:                "1A",
		Student:             "Bruno Lima",
		Description:         "left class without permission",
		TeacherRemark:       "second time this week",
		RequireTutor:        true,
		RequireCoordination: true,
	}
}

func TestOccurrenceServiceCreate(t *testing.T) {
	svc, source, writer := newOccurrenceServiceForTest(t)
	source.occurrences = []models.Occurrence{sampleOccurrence(41, "Davi Rocha", models.FlagSet{}, models.StatusAttention)}
	ctx := context.Background()

	before, err := svc.List(ctx, ListOccurrencesRequest{})
	require.NoError(t, err)
	require.Len(t, before.Items, 1)

	view, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(42), view.ID)
	assert.Equal(t, "Carla Dias", view.Tutor)
	assert.Equal(t, models.FlagPending, view.Tutoring.Flag)
	assert.Equal(t, models.FlagPending, view.Coordination.Flag)
	assert.Equal(t, models.FlagDone, view.Management.Flag)
	assert.Equal(t, models.StatusAttention, view.Status)
	assert.Equal(t, models.DisplayAttention, view.DisplayStatus)
	assert.Equal(t, fixedNow.Truncate(time.Second), view.CreatedAt)
	require.Len(t, writer.inserted, 1)

	after, err := svc.List(ctx, ListOccurrencesRequest{})
	require.NoError(t, err)
	assert.Equal(t, []int64{42, 41}, ids(after.Items))
}

func TestOccurrenceServiceCreateNothingRequiredIsOpen(t *testing.T) {
	svc, _, _ := newOccurrenceServiceForTest(t)
	req := createRequest()
	req.RequireTutor, req.RequireCoordination, req.RequireManagement = false, false, false

	view, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.ID)
	assert.Equal(t, models.StatusOpen, view.Status)
	assert.Equal(t, models.DisplayFinalized, view.DisplayStatus)
}

func TestOccurrenceServiceCreateValidation(t *testing.T) {
	svc, _, writer := newOccurrenceServiceForTest(t)
	ctx := context.Background()

	req := createRequest()
	req.Description = "   "
	_, err := svc.Create(ctx, req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	req = createRequest()
	req.Room = "9Z"
	_, err = svc.Create(ctx, req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, writer.inserted)
}

func TestOccurrenceServiceCreateSkipsUnloadedReferences(t *testing.T) {
	svc, source, writer := newOccurrenceServiceForTest(t)
	source.fail(models.TableStudents, appErrors.ErrStoreUnavailable)

	req := createRequest()
	req.Student = "New Student"
	view, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.NoTutor, view.Tutor)
	assert.Len(t, writer.inserted, 1)
}

func TestOccurrenceServiceCreateStoreFailure(t *testing.T) {
	svc, _, writer := newOccurrenceServiceForTest(t)
	writer.nextErr = appErrors.ErrStoreUnavailable

	_, err := svc.Create(context.Background(), createRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrStoreUnavailable))
	assert.Empty(t, writer.inserted)
}

func TestOccurrenceServiceConcurrentCreatesGetDistinctIDs(t *testing.T) {
	svc, _, writer := newOccurrenceServiceForTest(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), createRequest())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	seen := map[int64]bool{}
	for _, occ := range writer.inserted {
		assert.False(t, seen[occ.ID], "duplicate id %d", occ.ID)
		seen[occ.ID] = true
	}
	assert.Len(t, seen, 8)
}

func TestOccurrenceServiceFollowUp(t *testing.T) {
	svc, source, writer := newOccurrenceServiceForTest(t)
	source.occurrences = []models.Occurrence{sampleOccurrence(7, "Bruno Lima", models.FlagSet{}, models.StatusAttention)}
	ctx := context.Background()

	remark := "  talked to the family  "
	view, err := svc.FollowUp(ctx, 7, models.RoleTutor, FollowUpRequest{Tutor: &remark})
	require.NoError(t, err)
	assert.Equal(t, "talked to the family", view.Tutoring.Remark)
	assert.Equal(t, models.FlagDone, view.Tutoring.Flag)
	require.NotNil(t, view.Tutoring.CompletedAt)
	assert.Equal(t, fixedNow.Truncate(time.Second), *view.Tutoring.CompletedAt)
	assert.Equal(t, models.StatusAttention, view.Status)
	require.Len(t, writer.updates, 1)
	_, statusWritten := writer.updates[0][models.FieldStatus]
	assert.False(t, statusWritten)

	stored, err := svc.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.FlagDone, stored.Tutoring.Flag)
}

func TestOccurrenceServiceFollowUpAllSlotsSigns(t *testing.T) {
	svc, source, writer := newOccurrenceServiceForTest(t)
	source.occurrences = []models.Occurrence{sampleOccurrence(7, "Bruno Lima", models.FlagSet{}, models.StatusAttention)}
	a, b, c := "tutor note", "coordination note", "management note"

	view, err := svc.FollowUp(context.Background(), 7, models.RoleEditAll, FollowUpRequest{Tutor: &a, Coordination: &b, Management: &c})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSigned, view.Status)
	assert.Equal(t, models.DisplaySigned, view.DisplayStatus)
	require.Len(t, writer.updates, 1)
	assert.Equal(t, models.StatusSigned, writer.updates[0][models.FieldStatus])
}

func TestOccurrenceServiceConcurrentFollowUpsKeepStatusConsistent(t *testing.T) {
	svc, source, writer := newOccurrenceServiceForTest(t)
	writer.updateDelay = 20 * time.Millisecond
	flags := models.FlagSet{Tutor: models.FlagPending, Coordination: models.FlagDone, Management: models.FlagPending}
	source.occurrences = []models.Occurrence{sampleOccurrence(7, "Bruno Lima", flags, models.StatusAttention)}
	ctx := context.Background()

	tutorNote, managementNote := "called the family", "meeting scheduled"
	requests := []struct {
		role models.FollowUpRole
		req  FollowUpRequest
	}{
		{role: models.RoleTutor, req: FollowUpRequest{Tutor: &tutorNote}},
		{role: models.RoleManagement, req: FollowUpRequest{Management: &managementNote}},
	}

	var wg sync.WaitGroup
	for _, r := range requests {
		wg.Add(1)
		go func(role models.FollowUpRole, req FollowUpRequest) {
			defer wg.Done()
			_, err := svc.FollowUp(ctx, 7, role, req)
			assert.NoError(t, err)
		}(r.role, r.req)
	}
	wg.Wait()

	stored, err := svc.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.FlagDone, stored.Tutoring.Flag)
	assert.Equal(t, models.FlagDone, stored.Management.Flag)
	assert.Equal(t, models.StatusSigned, stored.Status)
	assert.Equal(t, models.DisplaySigned, stored.DisplayStatus)
	assert.Equal(t, lifecycle.StatusFor(stored.Flags()), stored.Status)
}

func TestOccurrenceServiceFollowUpClearingRemarkReopens(t *testing.T) {
	svc, source, _ := newOccurrenceServiceForTest(t)
	done := sampleOccurrence(7, "Bruno Lima", models.FlagSet{Tutor: models.FlagDone}, models.StatusAttention)
	at := fixedNow.Add(-time.Hour)
	done.Tutoring = models.FollowUp{Remark: "old", Flag: models.FlagDone, CompletedAt: &at}
	source.occurrences = []models.Occurrence{done}

	empty := ""
	view, err := svc.FollowUp(context.Background(), 7, models.RoleTutor, FollowUpRequest{Tutor: &empty})
	require.NoError(t, err)
	assert.Equal(t, models.FlagPending, view.Tutoring.Flag)
	assert.Nil(t, view.Tutoring.CompletedAt)
	assert.Equal(t, models.StatusOpen, view.Status)
}

func TestOccurrenceServiceFollowUpForbidden(t *testing.T) {
	svc, source, writer := newOccurrenceServiceForTest(t)
	source.occurrences = []models.Occurrence{sampleOccurrence(7, "Bruno Lima", models.FlagSet{}, models.StatusAttention)}
	remark := "note"

	_, err := svc.FollowUp(context.Background(), 7, models.RoleTutor, FollowUpRequest{Management: &remark})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.FollowUp(context.Background(), 7, models.RoleView, FollowUpRequest{Tutor: &remark})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, writer.updates)
}

func TestOccurrenceServiceFollowUpWithoutSlotsWritesNothing(t *testing.T) {
	svc, source, writer := newOccurrenceServiceForTest(t)
	source.occurrences = []models.Occurrence{sampleOccurrence(7, "Bruno Lima", models.FlagSet{}, models.StatusAttention)}

	view, err := svc.FollowUp(context.Background(), 7, models.RoleView, FollowUpRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), view.ID)
	assert.Empty(t, writer.updates)
}

func TestOccurrenceServiceFollowUpNotFound(t *testing.T) {
	svc, _, _ := newOccurrenceServiceForTest(t)
	remark := "note"

	_, err := svc.FollowUp(context.Background(), 99, models.RoleTutor, FollowUpRequest{Tutor: &remark})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestOccurrenceServiceFollowUpUpdateFailure(t *testing.T) {
	svc, source, writer := newOccurrenceServiceForTest(t)
	source.occurrences = []models.Occurrence{sampleOccurrence(7, "Bruno Lima", models.FlagSet{}, models.StatusAttention)}
	writer.updateErr = appErrors.ErrStoreQueryFailed
	remark := "note"

	_, err := svc.FollowUp(context.Background(), 7, models.RoleTutor, FollowUpRequest{Tutor: &remark})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrStoreQueryFailed))
}

func TestOccurrenceServiceListDegradesToNotices(t *testing.T) {
	svc, source, _ := newOccurrenceServiceForTest(t)
	source.fail(models.TableOccurrences, appErrors.ErrStoreUnavailable)

	list, err := svc.List(context.Background(), ListOccurrencesRequest{Tutor: "Carla Dias"})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
	require.Len(t, list.Notices, 1)
	assert.Contains(t, list.Notices[0], "occurrences")
	assert.Equal(t, 0, list.Pagination.TotalCount)

	_, err = svc.Get(context.Background(), 1)
	assert.True(t, appErrors.Is(err, appErrors.ErrStoreUnavailable))
}

func TestOccurrenceServiceListPaginates(t *testing.T) {
	svc, source, _ := newOccurrenceServiceForTest(t)
	for id := int64(1); id <= 5; id++ {
		source.occurrences = append(source.occurrences, sampleOccurrence(id, "Bruno Lima", models.FlagSet{}, models.StatusAttention))
	}

	list, err := svc.List(context.Background(), ListOccurrencesRequest{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2}, ids(list.Items))
	assert.Equal(t, 5, list.Pagination.TotalCount)

	list, err = svc.List(context.Background(), ListOccurrencesRequest{Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
}

func TestOccurrenceServiceListClampsHugePage(t *testing.T) {
	svc, source, _ := newOccurrenceServiceForTest(t)
	source.occurrences = []models.Occurrence{sampleOccurrence(1, "Bruno Lima", models.FlagSet{}, models.StatusAttention)}

	page := math.MaxInt64/200 + 2
	var list *OccurrenceList
	var err error
	require.NotPanics(t, func() {
		list, err = svc.List(context.Background(), ListOccurrencesRequest{Page: page, PageSize: 200})
	})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
	assert.Equal(t, page, list.Pagination.Page)
	assert.Equal(t, 1, list.Pagination.TotalCount)
}

func TestOccurrenceServiceFiltersAndReferences(t *testing.T) {
	svc, source, _ := newOccurrenceServiceForTest(t)
	source.occurrences = []models.Occurrence{
		sampleOccurrence(1, "Bruno Lima", models.FlagSet{}, models.StatusAttention),
		sampleOccurrence(2, "Davi Rocha", models.FlagSet{}, models.StatusAttention),
	}
	ctx := context.Background()

	filters, notices := svc.Filters(ctx)
	assert.Empty(t, notices)
	assert.Equal(t, []string{"CARLA DIAS", models.NoTutor}, filters.Tutors)
	assert.Equal(t, []string{"1A"}, filters.Rooms)
	assert.Equal(t, []string{"ATENÇÃO"}, filters.Statuses)

	students, notices := svc.Students(ctx)
	assert.Empty(t, notices)
	assert.Equal(t, models.NoTutor, students[1].Tutor)

	source.fail(models.TableTeachers, errors.New("boom"))
	teachers, notices := svc.Teachers(ctx)
	assert.Empty(t, teachers)
	assert.NotNil(t, teachers)
	assert.Len(t, notices, 1)

	rooms, _ := svc.Rooms(ctx)
	assert.Len(t, rooms, 2)
}

func TestOccurrenceServiceReady(t *testing.T) {
	svc, _, writer := newOccurrenceServiceForTest(t)
	assert.NoError(t, svc.Ready(context.Background()))
	writer.pingErr = appErrors.ErrStoreUnavailable
	assert.Error(t, svc.Ready(context.Background()))
}
