package band

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccepted_FiltersStatusAndRole(t *testing.T) {
	t.Parallel()

	members := []Membership{
		{UserID: "u3", Role: RoleMember, InvitationStatus: InvitationAccepted},
		{UserID: "u1", Role: RoleAdmin, InvitationStatus: InvitationAccepted},
		{UserID: "u2", Role: RoleMember, InvitationStatus: InvitationPending},
		{UserID: "u4", Role: RoleGuest, InvitationStatus: InvitationAccepted},
		{UserID: "u5", Role: RoleMember, InvitationStatus: InvitationRejected},
	}

	all := Accepted(members)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"u1", "u3", "u4"}, []string{all[0].UserID, all[1].UserID, all[2].UserID})

	players := Accepted(members, RoleAdmin, RoleMember)
	require.Len(t, players, 2)
	assert.Equal(t, "u1", players[0].UserID)
	assert.Equal(t, "u3", players[1].UserID)
}

func TestIsAdmin_RequiresAcceptance(t *testing.T) {
	t.Parallel()

	members := []Membership{
		{UserID: "boss", Role: RoleAdmin, InvitationStatus: InvitationAccepted},
		{UserID: "invited", Role: RoleAdmin, InvitationStatus: InvitationPending},
		{UserID: "player", Role: RoleMember, InvitationStatus: InvitationAccepted},
	}

	assert.True(t, IsAdmin(members, "boss"))
	assert.False(t, IsAdmin(members, "invited"))
	assert.False(t, IsAdmin(members, "player"))
	assert.False(t, IsAdmin(members, "stranger"))
}

func TestCanScheduleRehearsals(t *testing.T) {
	t.Parallel()

	assert.True(t, Membership{Role: RoleMember, InvitationStatus: InvitationAccepted}.CanScheduleRehearsals())
	assert.False(t, Membership{Role: RoleGuest, InvitationStatus: InvitationAccepted}.CanScheduleRehearsals())
	assert.False(t, Membership{Role: RoleAdmin, InvitationStatus: InvitationRejected}.CanScheduleRehearsals())
}

func TestParseRoleAndStatus(t *testing.T) {
	t.Parallel()

	role, err := ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = ParseRole("drummer")
	assert.Error(t, err)

	status, err := ParseInvitationStatus("ACCEPTED")
	require.NoError(t, err)
	assert.Equal(t, InvitationAccepted, status)

	_, err = ParseInvitationStatus("maybe")
	assert.Error(t, err)
}
