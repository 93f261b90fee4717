// Package lifecycle derives occurrence statuses from the follow-up flags.
//
// Every function here is pure and total: no I/O, no errors. Malformed flag
// values are decoded as pending before they reach this package.
package lifecycle

import (
	"strings"
	"time"

	"github.com/noah-isme/sma-occurrences-api/internal/models"
)

// DeriveDisplayStatus returns the presentation status of an occurrence.
//
// A signed record stays signed whatever its flags. Otherwise any pending
// slot needs attention, and a record with every slot done is finalized.
func DeriveDisplayStatus(o models.Occurrence) (models.DisplayStatus, models.SeverityTag) {
	if o.Status == models.StatusSigned {
		return models.DisplaySigned, models.SeveritySuccess
	}
	flags := o.Flags()
	for _, slot := range models.Slots {
		if flags.Get(slot) == models.FlagPending {
			return models.DisplayAttention, models.SeverityDanger
		}
	}
	if flags.Done() == len(models.Slots) {
		return models.DisplayFinalized, models.SeverityWarning
	}
	return models.DisplayStatus(o.Status), models.SeverityNeutral
}

// View wraps o with its derived display status.
func View(o models.Occurrence) models.OccurrenceView {
	display, severity := DeriveDisplayStatus(o)
	return models.OccurrenceView{Occurrence: o, DisplayStatus: display, Severity: severity}
}

// StatusFor maps a flag set to the persisted status written after a follow-up.
func StatusFor(flags models.FlagSet) models.PersistedStatus {
	switch flags.Done() {
	case len(models.Slots):
		return models.StatusSigned
	case 0:
		return models.StatusOpen
	default:
		return models.StatusAttention
	}
}

// ApplyFollowUp records a remark on one slot and returns the changed fields.
//
// The status is recomputed from the post-update flag of slot and the current
// flags of the other two slots. Fields equal to their current value are left
// out of the patch.
func ApplyFollowUp(o models.Occurrence, slot models.Slot, remark string, at time.Time) models.OccurrencePatch {
	remarkField, flagField, completedField := models.SlotFields(slot)
	current := o.FollowUp(slot)

	next := models.FollowUp{Remark: strings.TrimSpace(remark), Flag: models.FlagPending}
	if next.Remark != "" {
		next.Flag = models.FlagDone
		stamp := at
		next.CompletedAt = &stamp
	}

	patch := models.OccurrencePatch{}
	if next.Remark != current.Remark {
		patch[remarkField] = next.Remark
	}
	if next.Flag != current.Flag {
		patch[flagField] = next.Flag
	}
	if !sameInstant(next.CompletedAt, current.CompletedAt) {
		patch[completedField] = next.CompletedAt
	}

	status := StatusFor(o.Flags().With(slot, next.Flag))
	if status != o.Status {
		patch[models.FieldStatus] = status
	}
	return patch
}

// ApplyPatch returns a copy of o with patch merged in. Unknown fields and
// values of the wrong type are ignored.
func ApplyPatch(o models.Occurrence, patch models.OccurrencePatch) models.Occurrence {
	for field, value := range patch {
		switch field {
		case models.FieldStatus:
			if status, ok := value.(models.PersistedStatus); ok {
				o.Status = status
			}
		default:
			applySlotField(&o, field, value)
		}
	}
	return o
}

func applySlotField(o *models.Occurrence, field models.Field, value interface{}) {
	for _, slot := range models.Slots {
		remarkField, flagField, completedField := models.SlotFields(slot)
		state := o.FollowUp(slot)
		switch field {
		case remarkField:
			if remark, ok := value.(string); ok {
				state.Remark = remark
			}
		case flagField:
			if flag, ok := value.(models.Flag); ok {
				state.Flag = flag
			}
		case completedField:
			if at, ok := value.(*time.Time); ok {
				state.CompletedAt = at
			}
		default:
			continue
		}
		o.SetFollowUp(slot, state)
		return
	}
}

// CreationFlags converts the creation checkboxes into flags. A checked box
// means the role's work is required, so its flag starts pending; an
// unchecked box marks the role as not required (done).
func CreationFlags(requireTutor, requireCoordination, requireManagement bool) models.FlagSet {
	return models.FlagSet{
		Tutor:        flagFromRequired(requireTutor),
		Coordination: flagFromRequired(requireCoordination),
		Management:   flagFromRequired(requireManagement),
	}
}

// InitialStatus is Attention when any slot is pending, else Open.
func InitialStatus(flags models.FlagSet) models.PersistedStatus {
	if flags.Done() < len(models.Slots) {
		return models.StatusAttention
	}
	return models.StatusOpen
}

func flagFromRequired(required bool) models.Flag {
	if required {
		return models.FlagPending
	}
	return models.FlagDone
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
