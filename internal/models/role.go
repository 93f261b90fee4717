package models

import "strings"

// FollowUpRole gates which follow-up slots a request may edit.
type FollowUpRole string

const (
	RoleView         FollowUpRole = "view"
	RoleEditAll      FollowUpRole = "edit_all"
	RoleTutor        FollowUpRole = "tutor"
	RoleCoordination FollowUpRole = "coordination"
	RoleManagement   FollowUpRole = "management"
)

// SlotPermissions is the fixed permission set of a role.
type SlotPermissions struct {
	Tutor        bool `json:"tutor"`
	Coordination bool `json:"coordination"`
	Management   bool `json:"management"`
}

var rolePermissions = map[FollowUpRole]SlotPermissions{
	RoleView:         {},
	RoleEditAll:      {Tutor: true, Coordination: true, Management: true},
	RoleTutor:        {Tutor: true},
	RoleCoordination: {Coordination: true},
	RoleManagement:   {Management: true},
}

// ParseFollowUpRole accepts "edit-all", "tutor-role" and similar spellings.
func ParseFollowUpRole(raw string) (FollowUpRole, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.TrimSuffix(normalized, "_role")
	if normalized == "" {
		return RoleView, true
	}
	role := FollowUpRole(normalized)
	if _, ok := rolePermissions[role]; !ok {
		return "", false
	}
	return role, true
}

// Permissions returns the slot permissions of the role. Unknown roles get none.
func (r FollowUpRole) Permissions() SlotPermissions {
	return rolePermissions[r]
}

// Allows reports whether slot may be edited.
func (p SlotPermissions) Allows(slot Slot) bool {
	switch slot {
	case SlotTutor:
		return p.Tutor
	case SlotCoordination:
		return p.Coordination
	case SlotManagement:
		return p.Management
	}
	return false
}
