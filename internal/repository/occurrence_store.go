package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-occurrences-api/internal/models"
	appErrors "github.com/noah-isme/sma-occurrences-api/pkg/errors"
)

// Persisted date and time layouts.
const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04:05"
	TimestampLayout = "2006-01-02 15:04:05"
)

var occurrenceColumnOrder = []models.Field{
	models.FieldID,
	models.FieldTeacher,
	models.FieldRoom,
	models.FieldStudent,
	models.FieldCreatedDate,
	models.FieldCreatedTime,
	models.FieldDescription,
	models.FieldTeacherRemark,
	models.FieldTutorRemark,
	models.FieldCoordinationRemark,
	models.FieldManagementRemark,
	models.FieldTutorFlag,
	models.FieldCoordinationFlag,
	models.FieldManagementFlag,
	models.FieldTutorCompletedAt,
	models.FieldCoordinationCompletedAt,
	models.FieldManagementCompletedAt,
	models.FieldStatus,
}

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

type occurrenceRow struct {
	ID                      int64          `db:"ID"`
	Teacher                 sql.NullString `db:"PROFESSOR"`
	Room                    sql.NullString `db:"SALA"`
	Student                 sql.NullString `db:"ALUNO"`
	CreatedDate             sql.NullString `db:"DCO"`
	CreatedTime             sql.NullString `db:"HCO"`
	Description             sql.NullString `db:"DESCRICAO"`
	TeacherRemark           sql.NullString `db:"AT_PROFESSOR"`
	TutorRemark             sql.NullString `db:"ATT"`
	CoordinationRemark      sql.NullString `db:"ATC"`
	ManagementRemark        sql.NullString `db:"ATG"`
	TutorFlag               sql.NullString `db:"FT"`
	CoordinationFlag        sql.NullString `db:"FC"`
	ManagementFlag          sql.NullString `db:"FG"`
	TutorCompletedAt        sql.NullString `db:"DT"`
	CoordinationCompletedAt sql.NullString `db:"DC"`
	ManagementCompletedAt   sql.NullString `db:"DG"`
	Status                  sql.NullString `db:"STATUS"`
}

type studentRow struct {
	Name  sql.NullString `db:"NOME"`
	Tutor sql.NullString `db:"TUTOR"`
}

// OccurrenceStore reads and writes the occurrence tables of the remote store.
// A nil database handle makes every call fail with ErrStoreUnavailable.
type OccurrenceStore struct {
	db      *sqlx.DB
	metrics queryObserver
	loc     *time.Location
}

// NewOccurrenceStore constructs the store adapter. loc is used to interpret
// persisted dates and times, which carry no zone.
func NewOccurrenceStore(db *sqlx.DB, metrics queryObserver, loc *time.Location) *OccurrenceStore {
	if loc == nil {
		loc = time.UTC
	}
	return &OccurrenceStore{db: db, metrics: metrics, loc: loc}
}

// Ping checks connectivity with the store.
func (s *OccurrenceStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return appErrors.ErrStoreUnavailable
	}
	if err := s.db.PingContext(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "ping occurrence store")
	}
	return nil
}

// FetchOccurrences returns every occurrence row. Tutor is left empty.
func (s *OccurrenceStore) FetchOccurrences(ctx context.Context) ([]models.Occurrence, error) {
	if s.db == nil {
		return nil, appErrors.ErrStoreUnavailable
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quotedColumns(occurrenceColumnOrder), ", "), models.TableOccurrences)
	var rows []occurrenceRow
	if err := s.observe(string(models.TableOccurrences)+".fetch_all", func() error {
		return s.db.SelectContext(ctx, &rows, query)
	}); err != nil {
		return nil, classify(err, "fetch occurrences")
	}
	out := make([]models.Occurrence, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.decode(row))
	}
	return out, nil
}

// FetchTeachers returns the teachers reference table.
func (s *OccurrenceStore) FetchTeachers(ctx context.Context) ([]models.Teacher, error) {
	names, err := s.fetchNames(ctx, models.TableTeachers)
	if err != nil {
		return nil, err
	}
	out := make([]models.Teacher, len(names))
	for i, name := range names {
		out[i] = models.Teacher{Name: name}
	}
	return out, nil
}

// FetchRooms returns the rooms reference table.
func (s *OccurrenceStore) FetchRooms(ctx context.Context) ([]models.Room, error) {
	names, err := s.fetchNames(ctx, models.TableRooms)
	if err != nil {
		return nil, err
	}
	out := make([]models.Room, len(names))
	for i, name := range names {
		out[i] = models.Room{Name: name}
	}
	return out, nil
}

// FetchStudents returns the students reference table with tutor assignments.
func (s *OccurrenceStore) FetchStudents(ctx context.Context) ([]models.Student, error) {
	if s.db == nil {
		return nil, appErrors.ErrStoreUnavailable
	}
	query := fmt.Sprintf(`SELECT "NOME", "TUTOR" FROM %s ORDER BY "NOME"`, models.TableStudents)
	var rows []studentRow
	if err := s.observe(string(models.TableStudents)+".fetch_all", func() error {
		return s.db.SelectContext(ctx, &rows, query)
	}); err != nil {
		return nil, classify(err, "fetch students")
	}
	out := make([]models.Student, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Student{Name: strings.TrimSpace(row.Name.String), Tutor: strings.TrimSpace(row.Tutor.String)})
	}
	return out, nil
}

// FetchNextID returns the maximum existing id plus one, or 1 for an empty table.
// The value is not reserved; callers serialise allocation and insert.
func (s *OccurrenceStore) FetchNextID(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, appErrors.ErrStoreUnavailable
	}
	query := fmt.Sprintf(`SELECT COALESCE(MAX("ID"), 0) + 1 FROM %s`, models.TableOccurrences)
	var next int64
	if err := s.observe(string(models.TableOccurrences)+".next_id", func() error {
		return s.db.GetContext(ctx, &next, query)
	}); err != nil {
		return 0, classify(err, "fetch next occurrence id")
	}
	if next < 1 {
		next = 1
	}
	return next, nil
}

// Insert writes a new occurrence. The id must already be assigned.
func (s *OccurrenceStore) Insert(ctx context.Context, occ *models.Occurrence) error {
	if s.db == nil {
		return appErrors.ErrStoreUnavailable
	}
	columns := quotedColumns(occurrenceColumnOrder)
	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	query := s.db.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", models.TableOccurrences, strings.Join(columns, ", "), strings.Join(placeholders, ", ")))
	args := s.encodeRow(occ)
	if err := s.observe(string(models.TableOccurrences)+".insert", func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	}); err != nil {
		return classify(err, "insert occurrence")
	}
	return nil
}

// Update applies patch to the occurrence with the given id inside a
// transaction. It fails with ErrNotFound unless exactly one row matches.
func (s *OccurrenceStore) Update(ctx context.Context, id int64, patch models.OccurrencePatch) error {
	if len(patch) == 0 {
		return nil
	}
	if s.db == nil {
		return appErrors.ErrStoreUnavailable
	}
	fields := make([]models.Field, 0, len(patch))
	for field := range patch {
		fields = append(fields, field)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	sets := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields)+1)
	for _, field := range fields {
		column, ok := models.ColumnFor(field)
		if !ok || field == models.FieldID {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("field %s cannot be updated", field))
		}
		value, err := s.encodeValue(patch[field])
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid value for %s", field))
		}
		sets = append(sets, fmt.Sprintf(`"%s" = ?`, column))
		args = append(args, value)
	}
	args = append(args, id)
	query := s.db.Rebind(fmt.Sprintf(`UPDATE %s SET %s WHERE "ID" = ?`, models.TableOccurrences, strings.Join(sets, ", ")))

	return s.observe(string(models.TableOccurrences)+".update", func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return classify(err, "begin occurrence update")
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			_ = tx.Rollback()
			return classify(err, "update occurrence")
		}
		affected, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return classify(err, "update occurrence")
		}
		if affected != 1 {
			_ = tx.Rollback()
			if affected == 0 {
				return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("occurrence %d not found", id))
			}
			return appErrors.Clone(appErrors.ErrStoreQueryFailed, fmt.Sprintf("update matched %d rows for occurrence %d", affected, id))
		}
		if err := tx.Commit(); err != nil {
			return classify(err, "commit occurrence update")
		}
		return nil
	})
}

func (s *OccurrenceStore) fetchNames(ctx context.Context, table models.Table) ([]string, error) {
	if s.db == nil {
		return nil, appErrors.ErrStoreUnavailable
	}
	query := fmt.Sprintf(`SELECT "NOME" FROM %s ORDER BY "NOME"`, table)
	var raw []sql.NullString
	if err := s.observe(string(table)+".fetch_all", func() error {
		return s.db.SelectContext(ctx, &raw, query)
	}); err != nil {
		return nil, classify(err, "fetch "+string(table))
	}
	names := make([]string, 0, len(raw))
	for _, name := range raw {
		if trimmed := strings.TrimSpace(name.String); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names, nil
}

func (s *OccurrenceStore) observe(label string, fn func() error) error {
	start := time.Now()
	err := fn()
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(label, time.Since(start))
	}
	return err
}

func (s *OccurrenceStore) decode(row occurrenceRow) models.Occurrence {
	return models.Occurrence{
		ID:            row.ID,
		Teacher:       row.Teacher.String,
		Room:          row.Room.String,
		Student:       row.Student.String,
		Description:   row.Description.String,
		TeacherRemark: row.TeacherRemark.String,
		CreatedAt:     s.parseCreatedAt(row.CreatedDate.String, row.CreatedTime.String),
		Tutoring:      s.decodeFollowUp(row.TutorRemark, row.TutorFlag, row.TutorCompletedAt),
		Coordination:  s.decodeFollowUp(row.CoordinationRemark, row.CoordinationFlag, row.CoordinationCompletedAt),
		Management:    s.decodeFollowUp(row.ManagementRemark, row.ManagementFlag, row.ManagementCompletedAt),
		Status:        models.PersistedStatus(strings.TrimSpace(row.Status.String)),
	}
}

func (s *OccurrenceStore) decodeFollowUp(remark, flag, completedAt sql.NullString) models.FollowUp {
	return models.FollowUp{
		Remark:      remark.String,
		Flag:        models.ParseFlag(flag.String),
		CompletedAt: s.parseTimestamp(completedAt),
	}
}

func (s *OccurrenceStore) encodeRow(occ *models.Occurrence) []interface{} {
	created := occ.CreatedAt.In(s.loc)
	values := map[models.Field]interface{}{
		models.FieldID:                      occ.ID,
		models.FieldTeacher:                 occ.Teacher,
		models.FieldRoom:                    occ.Room,
		models.FieldStudent:                 occ.Student,
		models.FieldCreatedDate:             created.Format(DateLayout),
		models.FieldCreatedTime:             created.Format(TimeLayout),
		models.FieldDescription:             occ.Description,
		models.FieldTeacherRemark:           occ.TeacherRemark,
		models.FieldTutorRemark:             occ.Tutoring.Remark,
		models.FieldCoordinationRemark:      occ.Coordination.Remark,
		models.FieldManagementRemark:        occ.Management.Remark,
		models.FieldTutorFlag:               occ.Tutoring.Flag.Literal(),
		models.FieldCoordinationFlag:        occ.Coordination.Flag.Literal(),
		models.FieldManagementFlag:          occ.Management.Flag.Literal(),
		models.FieldTutorCompletedAt:        s.formatTimestamp(occ.Tutoring.CompletedAt),
		models.FieldCoordinationCompletedAt: s.formatTimestamp(occ.Coordination.CompletedAt),
		models.FieldManagementCompletedAt:   s.formatTimestamp(occ.Management.CompletedAt),
		models.FieldStatus:                  string(occ.Status),
	}
	args := make([]interface{}, len(occurrenceColumnOrder))
	for i, field := range occurrenceColumnOrder {
		args[i] = values[field]
	}
	return args
}

func (s *OccurrenceStore) encodeValue(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case models.Flag:
		return v.Literal(), nil
	case models.PersistedStatus:
		return string(v), nil
	case *time.Time:
		return s.formatTimestamp(v), nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported patch value %T", value)
	}
}

func (s *OccurrenceStore) formatTimestamp(at *time.Time) interface{} {
	if at == nil {
		return nil
	}
	return at.In(s.loc).Format(TimestampLayout)
}

func (s *OccurrenceStore) parseTimestamp(raw sql.NullString) *time.Time {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil
	}
	if t, ok := s.parseFirst(strings.TrimSpace(raw.String), TimestampLayout, time.RFC3339Nano, "2006-01-02T15:04:05", DateLayout); ok {
		return &t
	}
	return nil
}

func (s *OccurrenceStore) parseCreatedAt(date, clock string) time.Time {
	day, ok := s.parseFirst(strings.TrimSpace(date), DateLayout, time.RFC3339Nano, "02/01/2006")
	if !ok {
		return time.Time{}
	}
	hour, ok := s.parseFirst(strings.TrimSpace(clock), TimeLayout, "15:04", time.RFC3339Nano, "0000-01-01T15:04:05Z")
	if !ok {
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour.Hour(), hour.Minute(), hour.Second(), 0, s.loc)
}

func (s *OccurrenceStore) parseFirst(raw string, layouts ...string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, s.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func quotedColumns(fields []models.Field) []string {
	out := make([]string, len(fields))
	for i, field := range fields {
		out[i] = fmt.Sprintf(`"%s"`, models.OccurrenceColumns[field])
	}
	return out
}

// classify maps driver errors onto the store error taxonomy.
func classify(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, message)
	}
	return appErrors.Wrap(err, appErrors.ErrStoreQueryFailed.Code, appErrors.ErrStoreQueryFailed.Status, message)
}
