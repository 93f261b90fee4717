package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/sma-occurrences-api/internal/models"
)

// FilterOccurrences applies conjunctive equality criteria to an occurrence
// snapshot. Matching ignores case and surrounding spaces; the status
// criterion is compared with the display status. Results are ordered by id
// descending.
func FilterOccurrences(snapshot *Snapshot, filter models.OccurrenceFilter) []models.OccurrenceView {
	if snapshot == nil {
		return []models.OccurrenceView{}
	}
	out := make([]models.OccurrenceView, 0, len(snapshot.Occurrences))
	for _, view := range snapshot.Occurrences {
		if !matches(view.Tutor, filter.Tutor) ||
			!matches(view.Room, filter.Room) ||
			!matches(string(view.DisplayStatus), filter.Status) {
			continue
		}
		out = append(out, view)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// DistinctValues returns the upper-cased distinct values of field in
// ascending order, for populating filter choices. Empty values are skipped.
func DistinctValues(snapshot *Snapshot, field models.Field) []string {
	if snapshot == nil {
		return []string{}
	}
	seen := make(map[string]struct{})
	add := func(value string) {
		if normalized := normalizeKey(value); normalized != "" {
			seen[normalized] = struct{}{}
		}
	}

	for _, view := range snapshot.Occurrences {
		add(occurrenceValue(view, field))
	}
	switch field {
	case models.FieldTeacher:
		for _, teacher := range snapshot.Teachers {
			add(teacher.Name)
		}
	case models.FieldRoom:
		for _, room := range snapshot.Rooms {
			add(room.Name)
		}
	case models.FieldStudent:
		for _, student := range snapshot.Students {
			add(student.Name)
		}
	case models.FieldTutor:
		for _, student := range snapshot.Students {
			add(student.TutorOrDefault())
		}
	}

	values := make([]string, 0, len(seen))
	for value := range seen {
		values = append(values, value)
	}
	sort.Strings(values)
	return values
}

func occurrenceValue(view models.OccurrenceView, field models.Field) string {
	switch field {
	case models.FieldTutor:
		return view.Tutor
	case models.FieldRoom:
		return view.Room
	case models.FieldTeacher:
		return view.Teacher
	case models.FieldStudent:
		return view.Student
	case models.FieldStatus:
		return string(view.DisplayStatus)
	}
	return ""
}

func matches(value, criterion string) bool {
	criterion = strings.TrimSpace(criterion)
	if criterion == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(value), criterion)
}
