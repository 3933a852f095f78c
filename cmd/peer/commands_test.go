package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/internal/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
	muted bool
	err   error
}

func (r *recorder) record(call string) error {
	r.calls = append(r.calls, call)
	return r.err
}

func (r *recorder) SendChat(_ context.Context, content string) error {
	return r.record("chat " + content)
}
func (r *recorder) SetNickname(_ context.Context, nickname string) error {
	return r.record("nick " + nickname)
}
func (r *recorder) Kick(_ context.Context, id string) error      { return r.record("kick " + id) }
func (r *recorder) Ban(_ context.Context, id string) error       { return r.record("ban " + id) }
func (r *recorder) RemoteMute(_ context.Context, id string) error { return r.record("mute " + id) }
func (r *recorder) RemoteVideoOff(_ context.Context, id string) error {
	return r.record("video-off " + id)
}
func (r *recorder) SetLocked(_ context.Context, locked bool) error {
	if locked {
		return r.record("lock")
	}
	return r.record("unlock")
}
func (r *recorder) StartCamera(_ context.Context, preset string, cinema bool) error {
	if cinema {
		return r.record("camera " + preset + " cinema")
	}
	return r.record("camera " + preset)
}
func (r *recorder) StopCamera(context.Context) error { return r.record("camera-off") }
func (r *recorder) StartScreenShare(_ context.Context, preset string) error {
	return r.record("screen " + preset)
}
func (r *recorder) StopScreenShare(context.Context) error { return r.record("screen-off") }
func (r *recorder) ToggleAudio(context.Context) (bool, error) {
	r.muted = !r.muted
	return r.muted, r.record("mic")
}
func (r *recorder) ToggleVideo(context.Context) (bool, error) { return true, r.record("cam") }

// TestParseLine verifies chat lines, commands and blanks.
func TestParseLine(t *testing.T) {
	cmd, ok := parseLine("  hello world ")
	require.True(t, ok)
	assert.Equal(t, command{name: "say", args: []string{"hello world"}}, cmd)

	cmd, ok = parseLine("/KICK bob extra")
	require.True(t, ok)
	assert.Equal(t, "kick", cmd.name)
	assert.Equal(t, []string{"bob", "extra"}, cmd.args)

	_, ok = parseLine("   ")
	assert.False(t, ok)
	_, ok = parseLine("/")
	assert.False(t, ok)
}

// TestCommandDispatch verifies that each console command reaches the matching session call.
func TestCommandDispatch(t *testing.T) {
	tests := []struct {
		line   string
		call   string
		status string
	}{
		{line: "hi all", call: "chat hi all"},
		{line: "/kick bob", call: "kick bob", status: "kicked bob"},
		{line: "/ban bob", call: "ban bob", status: "banned bob"},
		{line: "/mute bob", call: "mute bob", status: "muted bob"},
		{line: "/video-off bob", call: "video-off bob", status: "turned off video of bob"},
		{line: "/lock", call: "lock", status: "room locked"},
		{line: "/unlock", call: "unlock", status: "room unlocked"},
		{line: "/nick Big Boss", call: "nick Big Boss", status: "nickname set to Big Boss"},
		{line: "/camera 1080p cinema", call: "camera 1080p cinema", status: "camera started at 1080p"},
		{line: "/camera 720p", call: "camera 720p", status: "camera started at 720p"},
		{line: "/camera-off", call: "camera-off", status: "camera stopped"},
		{line: "/screen 4k", call: "screen 4k", status: "screen share started at 4k"},
		{line: "/screen-off", call: "screen-off", status: "screen share stopped"},
		{line: "/mic", call: "mic", status: "microphone off"},
		{line: "/cam", call: "cam", status: "camera off"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			rec := &recorder{}
			cmd, ok := parseLine(tt.line)
			require.True(t, ok)
			status, err := cmd.run(context.Background(), rec)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.call}, rec.calls)
			assert.Equal(t, tt.status, status)
		})
	}
}

// TestCommandErrors verifies missing arguments, unknown commands and quitting.
func TestCommandErrors(t *testing.T) {
	rec := &recorder{}
	run := func(line string) error {
		cmd, ok := parseLine(line)
		require.True(t, ok)
		_, err := cmd.run(context.Background(), rec)
		return err
	}

	assert.ErrorIs(t, run("/kick"), errMissingArg)
	assert.ErrorIs(t, run("/dance"), errUnknownCommand)
	assert.ErrorIs(t, run("/dance now"), errUnknownCommand)
	assert.ErrorIs(t, run("/quit"), errQuit)
	assert.Empty(t, rec.calls)

	rec.err = mesh.ErrNotAdmin
	assert.ErrorIs(t, run("/kick bob"), mesh.ErrNotAdmin)
}

// TestReportPrintsChanges verifies that only new information is printed.
func TestReportPrintsChanges(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	snap := mesh.Snapshot{
		Self:             domain.Identity{UserID: "a", Nickname: "alice"},
		AdminID:          "a",
		IsAdmin:          true,
		ParticipantCount: 2,
		Roster: []domain.Presence{
			{UserID: "a", Nickname: "alice", JoinedAt: now},
			{UserID: "b", Nickname: "bob", JoinedAt: now},
		},
		Peers: []mesh.PeerView{{ID: "b", Nickname: "bob"}},
		Messages: []domain.ChatMessage{
			{ID: uuid.New(), Nickname: "bob", Content: "hey", CreatedAt: now},
		},
	}

	var out strings.Builder
	last := report{}.print(&out, snap)
	text := out.String()
	assert.Contains(t, text, "participants (2): alice* (you), bob")
	assert.Contains(t, text, "you are the room admin")
	assert.Contains(t, text, "bob: hey")

	out.Reset()
	last = last.print(&out, snap)
	assert.Empty(t, out.String())

	snap.IsLocked = true
	snap.Network = mesh.NetworkStats{Poor: true, UploadMbps: 1.5, Ping: 250 * time.Millisecond}
	snap.Messages = append(snap.Messages, domain.ChatMessage{ID: uuid.New(), Nickname: "alice", Content: "yo", CreatedAt: now})
	last.print(&out, snap)
	text = out.String()
	assert.Contains(t, text, "room locked")
	assert.Contains(t, text, "poor network: up 1.50 Mbps, down 0.00 Mbps, ping 250 ms")
	assert.Contains(t, text, "alice: yo")
	assert.NotContains(t, text, "bob: hey")
	assert.NotContains(t, text, "participants")
}

// TestLockWhenAdmin verifies that a requested lock waits for the admin election and is sent once.
func TestLockWhenAdmin(t *testing.T) {
	ctx := context.Background()
	r := &recorder{}

	pending, err := lockWhenAdmin(ctx, r, mesh.Snapshot{})
	require.NoError(t, err)
	assert.True(t, pending, "no roster yet")
	assert.Empty(t, r.calls)

	pending, err = lockWhenAdmin(ctx, r, mesh.Snapshot{AdminID: "someone-else", Roster: []domain.Presence{{UserID: "me"}}})
	require.NoError(t, err)
	assert.True(t, pending)
	assert.Empty(t, r.calls)

	pending, err = lockWhenAdmin(ctx, r, mesh.Snapshot{AdminID: "me", IsAdmin: true})
	require.NoError(t, err)
	assert.False(t, pending)
	assert.Equal(t, []string{"lock"}, r.calls)

	pending, err = lockWhenAdmin(ctx, &recorder{}, mesh.Snapshot{IsAdmin: true, IsLocked: true})
	require.NoError(t, err)
	assert.False(t, pending, "already locked rooms need no call")
}
