package models

import (
	"strings"
	"time"
)

// Flag marks whether the work of a follow-up slot is complete.
type Flag int

const (
	FlagPending Flag = iota
	FlagDone
)

// Persisted spellings of Flag.
const (
	FlagLiteralDone    = "SIM"
	FlagLiteralPending = "NÃO"
)

// ParseFlag decodes a persisted flag literal. Unknown values decode to FlagPending.
func ParseFlag(raw string) Flag {
	if strings.ToUpper(strings.TrimSpace(raw)) == FlagLiteralDone {
		return FlagDone
	}
	return FlagPending
}

// Literal returns the persisted spelling of the flag.
func (f Flag) Literal() string {
	if f == FlagDone {
		return FlagLiteralDone
	}
	return FlagLiteralPending
}

func (f Flag) String() string {
	if f == FlagDone {
		return "done"
	}
	return "pending"
}

// MarshalText implements encoding.TextMarshaler.
func (f Flag) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Flag) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "done", strings.ToLower(FlagLiteralDone):
		*f = FlagDone
	default:
		*f = FlagPending
	}
	return nil
}

// Slot identifies one of the three follow-up channels.
type Slot string

const (
	SlotTutor        Slot = "tutor"
	SlotCoordination Slot = "coordination"
	SlotManagement   Slot = "management"
)

// Slots lists the follow-up slots in their canonical order.
var Slots = []Slot{SlotTutor, SlotCoordination, SlotManagement}

// PersistedStatus is the durable lifecycle state stored with each occurrence.
type PersistedStatus string

const (
	StatusOpen      PersistedStatus = "Aberta"
	StatusAttention PersistedStatus = "Atenção"
	StatusSigned    PersistedStatus = "Assinada"
)

// DisplayStatus is derived for presentation only.
type DisplayStatus string

const (
	DisplayAttention DisplayStatus = "Atenção"
	DisplayFinalized DisplayStatus = "Finalizada"
	DisplaySigned    DisplayStatus = "Assinada"
)

// SeverityTag classifies a display status for presentation.
type SeverityTag string

const (
	SeveritySuccess SeverityTag = "success"
	SeverityDanger  SeverityTag = "danger"
	SeverityWarning SeverityTag = "warning"
	SeverityNeutral SeverityTag = "secondary"
)

// NoTutor is shown for students without a tutor assignment.
const NoTutor = "SEM TUTOR"

// FollowUp holds the state of one follow-up slot.
type FollowUp struct {
	Remark      string     `json:"remark"`
	Flag        Flag       `json:"flag"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Occurrence is a disciplinary or behavioural record for one student.
type Occurrence struct {
	ID            int64           `json:"id"`
	Teacher       string          `json:"teacher"`
	Room          string          `json:"room"`
	Student       string          `json:"student"`
	Tutor         string          `json:"tutor"`
	Description   string          `json:"description"`
	TeacherRemark string          `json:"teacher_remark"`
	CreatedAt     time.Time       `json:"created_at"`
	Tutoring      FollowUp        `json:"tutor_follow_up"`
	Coordination  FollowUp        `json:"coordination_follow_up"`
	Management    FollowUp        `json:"management_follow_up"`
	Status        PersistedStatus `json:"status"`
}

// FollowUp returns the state of the given slot.
func (o *Occurrence) FollowUp(slot Slot) FollowUp {
	switch slot {
	case SlotTutor:
		return o.Tutoring
	case SlotCoordination:
		return o.Coordination
	case SlotManagement:
		return o.Management
	}
	return FollowUp{}
}

// SetFollowUp replaces the state of the given slot.
func (o *Occurrence) SetFollowUp(slot Slot, f FollowUp) {
	switch slot {
	case SlotTutor:
		o.Tutoring = f
	case SlotCoordination:
		o.Coordination = f
	case SlotManagement:
		o.Management = f
	}
}

// Flags returns the completion flags of every slot.
func (o *Occurrence) Flags() FlagSet {
	return FlagSet{
		Tutor:        o.Tutoring.Flag,
		Coordination: o.Coordination.Flag,
		Management:   o.Management.Flag,
	}
}

// FlagSet groups the three completion flags.
type FlagSet struct {
	Tutor        Flag
	Coordination Flag
	Management   Flag
}

// Get returns the flag of slot.
func (f FlagSet) Get(slot Slot) Flag {
	switch slot {
	case SlotTutor:
		return f.Tutor
	case SlotCoordination:
		return f.Coordination
	case SlotManagement:
		return f.Management
	}
	return FlagPending
}

// With returns a copy of f with slot set to flag.
func (f FlagSet) With(slot Slot, flag Flag) FlagSet {
	switch slot {
	case SlotTutor:
		f.Tutor = flag
	case SlotCoordination:
		f.Coordination = flag
	case SlotManagement:
		f.Management = flag
	}
	return f
}

// Done counts the slots flagged done.
func (f FlagSet) Done() int {
	n := 0
	for _, slot := range Slots {
		if f.Get(slot) == FlagDone {
			n++
		}
	}
	return n
}

// OccurrenceView is an occurrence together with its derived display status.
type OccurrenceView struct {
	Occurrence
	DisplayStatus DisplayStatus `json:"display_status"`
	Severity      SeverityTag   `json:"severity"`
}

// OccurrenceFilter captures equality criteria for listing occurrences.
// Empty fields impose no constraint.
type OccurrenceFilter struct {
	Tutor  string
	Room   string
	Status string
}

// OccurrencePatch holds only the fields changed by an update, keyed by field.
type OccurrencePatch map[Field]interface{}
