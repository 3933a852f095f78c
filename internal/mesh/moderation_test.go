package mesh

import (
	"context"
	"testing"

	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminNickname = "Teolojik"

// room joins an admin and the given members and settles them.
func room(t *testing.T, h *harness, others ...string) []*member {
	t.Helper()
	members := []*member{h.join("admin", adminNickname)}
	for _, id := range others {
		members = append(members, h.join(id, id))
	}
	settle(members...)
	return members
}

// TestKickAffectsOnlyTarget verifies that a kick removes the target and nobody else.
func TestKickAffectsOnlyTarget(t *testing.T) {
	h := newHarness(t)
	members := room(t, h, "bob", "carol")
	admin, bob, carol := members[0], members[1], members[2]
	require.True(t, snapshot(t, admin).IsAdmin)

	require.NoError(t, admin.Kick(context.Background(), "carol"))
	settle(members...)

	carolSnap := snapshot(t, carol)
	assert.True(t, carolSnap.Closed)
	assert.Equal(t, ReasonKicked, carolSnap.Reason)
	assert.Equal(t, []string{ReasonKicked}, carol.navigator.Reasons())

	bobSnap := snapshot(t, bob)
	assert.False(t, bobSnap.Closed)
	assert.Empty(t, bob.navigator.Reasons())
	assert.Equal(t, []string{"admin"}, peerIDs(bobSnap))
	assert.Equal(t, []string{"bob"}, peerIDs(snapshot(t, admin)))
}

// TestModerationGuards verifies who may issue commands and against whom.
func TestModerationGuards(t *testing.T) {
	h := newHarness(t)
	members := room(t, h, "bob")
	admin, bob := members[0], members[1]
	ctx := context.Background()

	assert.ErrorIs(t, bob.Kick(ctx, "admin"), ErrNotAdmin)
	assert.ErrorIs(t, bob.SetLocked(ctx, true), ErrNotAdmin)
	assert.ErrorIs(t, admin.Kick(ctx, "admin"), ErrInvalidTarget)
	assert.ErrorIs(t, admin.Ban(ctx, ""), ErrInvalidTarget)
	assert.ErrorIs(t, admin.RemoteMute(ctx, "ghost"), ErrPeerNotFound)

	settle(members...)
	assert.False(t, snapshot(t, bob).Closed)
}

// TestBanPersistsAndBlocksRejoin verifies that a banned client stores the marker and refuses to
// subscribe again.
func TestBanPersistsAndBlocksRejoin(t *testing.T) {
	h := newHarness(t)
	members := room(t, h, "bob")
	admin, bob := members[0], members[1]

	require.NoError(t, admin.Ban(context.Background(), "bob"))
	settle(members...)

	assert.Equal(t, ReasonBanned, snapshot(t, bob).Reason)
	banned, err := bob.bans.IsBanned(testRoom)
	require.NoError(t, err)
	assert.True(t, banned)
	assert.Empty(t, peerIDs(snapshot(t, admin)))

	transport := newRecordingTransport()
	opts := h.options("bob", "bob")
	opts.Transport = transport
	opts.Bans = bob.bans
	again := newSession(opts, true)
	assert.ErrorIs(t, again.Join(context.Background()), ErrBanned)
	assert.Zero(t, transport.Subscriptions())

	participants, err := h.relay.ListParticipants(context.Background(), testRoom)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "admin", participants[0].UserID)
}

// TestLockReachesPeersAndPersists verifies the lock broadcast and the stored room flag.
func TestLockReachesPeersAndPersists(t *testing.T) {
	h := newHarness(t)
	members := room(t, h, "bob")
	admin, bob := members[0], members[1]

	require.NoError(t, admin.SetLocked(context.Background(), true))
	settle(members...)

	assert.True(t, snapshot(t, admin).IsLocked)
	assert.True(t, snapshot(t, bob).IsLocked)
	stored, err := h.relay.GetRoom(context.Background(), testRoom)
	require.NoError(t, err)
	assert.True(t, stored.IsLocked)
	assert.Equal(t, "admin", stored.AdminID)

	require.NoError(t, admin.SetLocked(context.Background(), false))
	settle(members...)
	assert.False(t, snapshot(t, bob).IsLocked)
}

// TestLockedRoomKicksJoiner verifies that the admin turns away anyone joining a locked room.
func TestLockedRoomKicksJoiner(t *testing.T) {
	h := newHarness(t)
	members := room(t, h, "bob")
	admin, bob := members[0], members[1]
	require.NoError(t, admin.SetLocked(context.Background(), true))
	settle(members...)

	dave := h.join("dave", "dave")
	members = append(members, dave)
	settle(members...)

	assert.Equal(t, ReasonKicked, snapshot(t, dave).Reason)
	assert.Equal(t, []string{"bob"}, peerIDs(snapshot(t, admin)))
	assert.Equal(t, []string{"admin"}, peerIDs(snapshot(t, bob)))
	assert.False(t, snapshot(t, bob).Closed)
}

// TestLockStandsWhenStoreFails verifies that peers are told about the lock even when the room
// record cannot be written.
func TestLockStandsWhenStoreFails(t *testing.T) {
	s := newSolo(t, func(o *Options) {
		o.Identity.Nickname = adminNickname
		o.Rooms = failingRooms{}
	})
	s.deliver(domain.SignalMessage{
		Type:      domain.SignalPresenceSync,
		Presences: []domain.Presence{{UserID: "alice", Nickname: adminNickname}},
	})

	err := s.SetLocked(context.Background(), true)
	assert.ErrorIs(t, err, errStoreDown)

	assert.True(t, snapshot(t, s).IsLocked)
	sent := s.transport.Sent(domain.SignalAdminAction)
	require.Len(t, sent, 1)
	assert.Empty(t, sent[0].TargetID)
	require.NotNil(t, sent[0].Action.Locked)
	assert.True(t, *sent[0].Action.Locked)
}

// TestRemoteMuteAndVideoOff verifies that the target's camera tracks are disabled.
func TestRemoteMuteAndVideoOff(t *testing.T) {
	h := newHarness(t)
	members := room(t, h, "bob")
	admin, bob := members[0], members[1]
	require.NoError(t, bob.StartCamera(context.Background(), "720p", false))
	audio, video := bob.devices.Opened[0], bob.devices.Opened[1]

	require.NoError(t, admin.RemoteMute(context.Background(), "bob"))
	settle(members...)
	assert.False(t, audio.Enabled())
	assert.True(t, video.Enabled())
	assert.True(t, snapshot(t, bob).IsMuted)

	require.NoError(t, admin.RemoteVideoOff(context.Background(), "bob"))
	settle(members...)
	assert.False(t, video.Enabled())
	bobSnap := snapshot(t, bob)
	assert.True(t, bobSnap.IsVideoOff)
	assert.True(t, bobSnap.CameraOn)
	assert.False(t, bobSnap.Closed)
}

// TestTargetedActionForSomeoneElse verifies that targeted commands only bind their target.
func TestTargetedActionForSomeoneElse(t *testing.T) {
	s := newSolo(t)
	s.run(t, func() error {
		s.handleAdminAction(domain.SignalMessage{
			Type:     domain.SignalAdminAction,
			SenderID: "admin",
			TargetID: "carol",
			Action:   &domain.AdminAction{Action: domain.ActionKick},
		})
		return nil
	})
	assert.False(t, snapshot(t, s).Closed)
}
