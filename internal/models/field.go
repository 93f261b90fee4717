package models

// Field names an occurrence attribute independently of its persisted column.
type Field string

const (
	FieldID                      Field = "id"
	FieldTeacher                 Field = "teacher"
	FieldRoom                    Field = "room"
	FieldStudent                 Field = "student"
	FieldTutor                   Field = "tutor"
	FieldCreatedDate             Field = "created_date"
	FieldCreatedTime             Field = "created_time"
	FieldDescription             Field = "description"
	FieldTeacherRemark           Field = "teacher_remark"
	FieldTutorRemark             Field = "tutor_remark"
	FieldCoordinationRemark      Field = "coordination_remark"
	FieldManagementRemark        Field = "management_remark"
	FieldTutorFlag               Field = "tutor_flag"
	FieldCoordinationFlag        Field = "coordination_flag"
	FieldManagementFlag          Field = "management_flag"
	FieldTutorCompletedAt        Field = "tutor_completed_at"
	FieldCoordinationCompletedAt Field = "coordination_completed_at"
	FieldManagementCompletedAt   Field = "management_completed_at"
	FieldStatus                  Field = "status"
)

// OccurrenceColumns maps fields to the columns of the occurrences table.
// Tutor is not persisted; it is resolved from the students table.
var OccurrenceColumns = map[Field]string{
	FieldID:                      "ID",
	FieldTeacher:                 "PROFESSOR",
	FieldRoom:                    "SALA",
	FieldStudent:                 "ALUNO",
	FieldCreatedDate:             "DCO",
	FieldCreatedTime:             "HCO",
	FieldDescription:             "DESCRICAO",
	FieldTeacherRemark:           "AT_PROFESSOR",
	FieldTutorRemark:             "ATT",
	FieldCoordinationRemark:      "ATC",
	FieldManagementRemark:        "ATG",
	FieldTutorFlag:               "FT",
	FieldCoordinationFlag:        "FC",
	FieldManagementFlag:          "FG",
	FieldTutorCompletedAt:        "DT",
	FieldCoordinationCompletedAt: "DC",
	FieldManagementCompletedAt:   "DG",
	FieldStatus:                  "STATUS",
}

var occurrenceFields = func() map[string]Field {
	out := make(map[string]Field, len(OccurrenceColumns))
	for field, column := range OccurrenceColumns {
		out[column] = field
	}
	return out
}()

// ColumnFor returns the persisted column of field.
func ColumnFor(field Field) (string, bool) {
	column, ok := OccurrenceColumns[field]
	return column, ok
}

// FieldFor returns the field stored in column.
func FieldFor(column string) (Field, bool) {
	field, ok := occurrenceFields[column]
	return field, ok
}

// SlotFields returns the remark, flag and completion fields of slot.
func SlotFields(slot Slot) (remark, flag, completedAt Field) {
	switch slot {
	case SlotTutor:
		return FieldTutorRemark, FieldTutorFlag, FieldTutorCompletedAt
	case SlotCoordination:
		return FieldCoordinationRemark, FieldCoordinationFlag, FieldCoordinationCompletedAt
	default:
		return FieldManagementRemark, FieldManagementFlag, FieldManagementCompletedAt
	}
}
