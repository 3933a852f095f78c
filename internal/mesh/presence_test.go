package mesh

import (
	"testing"
	"time"

	"github.com/immxrtalbeast/meshconf/internal/config"
	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReservedNamePolicy verifies that the earliest holder of the reserved name wins.
func TestReservedNamePolicy(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	roster := []domain.Presence{
		{UserID: "a", Nickname: "guest", JoinedAt: base},
		{UserID: "b", Nickname: "Teolojik", JoinedAt: base.Add(time.Second)},
		{UserID: "c", Nickname: "Teolojik", JoinedAt: base.Add(2 * time.Second)},
	}
	assert.Equal(t, "b", ReservedNamePolicy{Nickname: "Teolojik"}.Elect(roster, nil))
	assert.Empty(t, ReservedNamePolicy{Nickname: "Host"}.Elect(roster, nil))
	assert.Empty(t, ReservedNamePolicy{}.Elect(roster, nil))
}

// TestRoomOwnerPolicy verifies the admin id, host fallback and missing record.
func TestRoomOwnerPolicy(t *testing.T) {
	p := RoomOwnerPolicy{}
	assert.Empty(t, p.Elect(nil, nil))
	assert.Equal(t, "host", p.Elect(nil, &domain.Room{HostID: "host"}))
	assert.Equal(t, "admin", p.Elect(nil, &domain.Room{HostID: "host", AdminID: "admin"}))
}

// TestPolicyFromConfig verifies policy selection and the default reserved name.
func TestPolicyFromConfig(t *testing.T) {
	assert.Equal(t, RoomOwnerPolicy{}, PolicyFromConfig(config.SessionConfig{AdminPolicy: config.AdminPolicyRoomOwner}))
	assert.Equal(t, ReservedNamePolicy{Nickname: "Teolojik"}, PolicyFromConfig(config.SessionConfig{}))
	assert.Equal(t, ReservedNamePolicy{Nickname: "Chair"}, PolicyFromConfig(config.SessionConfig{
		AdminPolicy:   config.AdminPolicyReservedName,
		AdminNickname: "Chair",
	}))
}

// TestRoomOwnerElectedFromRelay verifies that the first joiner becomes admin under the owner policy.
func TestRoomOwnerElectedFromRelay(t *testing.T) {
	h := newHarness(t)
	owner := func(o *Options) { o.Policy = RoomOwnerPolicy{} }
	alice := h.join("alice", "alice", owner)
	bob := h.join("bob", "bob", owner)
	settle(alice, bob)

	assert.True(t, snapshot(t, alice).IsAdmin)
	bobSnap := snapshot(t, bob)
	assert.False(t, bobSnap.IsAdmin)
	assert.Equal(t, "alice", bobSnap.AdminID)
}

// TestSortRoster verifies join order with the user id as tie breaker.
func TestSortRoster(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	roster := []domain.Presence{
		{UserID: "z", JoinedAt: at.Add(time.Second)},
		{UserID: "b", JoinedAt: at},
		{UserID: "a", JoinedAt: at},
	}
	sortRoster(roster)
	var ids []string
	for _, p := range roster {
		ids = append(ids, p.UserID)
	}
	require.Equal(t, []string{"a", "b", "z"}, ids)
}
