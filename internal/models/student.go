package models

import "strings"

// Student is a read-only reference row of the students table.
type Student struct {
	Name  string `db:"NOME" json:"name"`
	Tutor string `db:"TUTOR" json:"tutor"`
}

// TutorOrDefault returns the assigned tutor, or NoTutor when none is set.
func (s Student) TutorOrDefault() string {
	return ResolveTutor(s.Tutor)
}

// ResolveTutor normalises an optional tutor assignment.
func ResolveTutor(tutor string) string {
	if trimmed := strings.TrimSpace(tutor); trimmed != "" {
		return trimmed
	}
	return NoTutor
}
