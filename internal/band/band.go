// Package band holds membership roles, invitation states and the role
// predicates shared by the scheduling and lifecycle code.
package band

import (
	"fmt"
	"sort"
	"strings"
)

// Role identifies a member's permissions within a band.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleGuest  Role = "guest"
)

// InvitationStatus tracks whether a member has joined the band.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
)

// ParseRole normalizes and validates a role name.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", fmt.Errorf("band: unknown role %q", value)
	}
	return role, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleGuest:
		return true
	default:
		return false
	}
}

// ParseInvitationStatus normalizes and validates an invitation status.
func ParseInvitationStatus(value string) (InvitationStatus, error) {
	status := InvitationStatus(strings.ToLower(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", fmt.Errorf("band: unknown invitation status %q", value)
	}
	return status, nil
}

// Valid reports whether s is one of the known invitation states.
func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationRejected:
		return true
	default:
		return false
	}
}

// Membership is one (band, user) row.
type Membership struct {
	BandID           string
	UserID           string
	Role             Role
	InvitationStatus InvitationStatus
}

// IsAccepted reports whether the member has joined the band.
func (m Membership) IsAccepted() bool {
	return m.InvitationStatus == InvitationAccepted
}

// IsAdmin reports whether the member is an accepted band admin. Pending
// admins carry no privileges.
func (m Membership) IsAdmin() bool {
	return m.IsAccepted() && m.Role == RoleAdmin
}

// CanScheduleRehearsals reports whether the member may create rehearsals.
func (m Membership) CanScheduleRehearsals() bool {
	return m.IsAccepted() && (m.Role == RoleAdmin || m.Role == RoleMember)
}

// Find returns the membership of userID, if any.
func Find(members []Membership, userID string) (Membership, bool) {
	for _, m := range members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Membership{}, false
}

// IsAdmin reports whether userID is an accepted admin among members.
func IsAdmin(members []Membership, userID string) bool {
	m, ok := Find(members, userID)
	return ok && m.IsAdmin()
}

// Accepted returns the accepted members ordered by user id. When roles is
// non-empty only members holding one of those roles are returned.
func Accepted(members []Membership, roles ...Role) []Membership {
	allowed := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	out := make([]Membership, 0, len(members))
	for _, m := range members {
		if !m.IsAccepted() {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[m.Role]; !ok {
				continue
			}
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
