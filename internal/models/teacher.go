package models

// Teacher is a read-only reference row of the teachers table.
type Teacher struct {
	Name string `db:"NOME" json:"name"`
}
