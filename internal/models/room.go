package models

// Room is a read-only reference row of the rooms table.
type Room struct {
	Name string `db:"NOME" json:"name"`
}

// Table names a table of the remote store.
type Table string

const (
	TableOccurrences Table = "occurrences"
	TableTeachers    Table = "teachers"
	TableRooms       Table = "rooms"
	TableStudents    Table = "students"
)

// Tables lists every table the service reads.
var Tables = []Table{TableOccurrences, TableTeachers, TableRooms, TableStudents}
