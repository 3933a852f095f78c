package mesh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/internal/repository"
	"github.com/immxrtalbeast/meshconf/internal/rtc/rtctest"
	"github.com/immxrtalbeast/meshconf/internal/service"
	"github.com/immxrtalbeast/meshconf/internal/signaling"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/require"
)

const testRoom = "general"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type navigatorRecorder struct {
	mu      sync.Mutex
	reasons []string
}

func (n *navigatorRecorder) NavigateAway(reason string) {
	n.mu.Lock()
	n.reasons = append(n.reasons, reason)
	n.mu.Unlock()
}

func (n *navigatorRecorder) Reasons() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.reasons...)
}

type memoryBans struct {
	mu     sync.Mutex
	banned map[string]bool
}

func (b *memoryBans) IsBanned(roomID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.banned[roomID], nil
}

func (b *memoryBans) Ban(roomID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.banned == nil {
		b.banned = make(map[string]bool)
	}
	b.banned[roomID] = true
	return nil
}

// harness wires manual sessions to a real relay service through the in-process transport.
type harness struct {
	t       *testing.T
	relay   *service.RelayService
	chat    *service.ChatService
	network *rtctest.Network
	clock   *fakeClock
}

type member struct {
	*Session
	devices   *rtctest.Devices
	navigator *navigatorRecorder
	bans      *memoryBans
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := testLogger()
	relay := service.NewRelayService(repository.NewInMemoryRoomRepository(), log)
	return &harness{
		t:       t,
		relay:   relay,
		chat:    service.NewChatService(repository.NewInMemoryChatRepository(), relay, log),
		network: rtctest.NewNetwork(),
		clock:   newFakeClock(),
	}
}

func (h *harness) options(userID, nickname string) Options {
	return Options{
		RoomID:    testRoom,
		Identity:  domain.Identity{UserID: userID, Nickname: nickname},
		Transport: signaling.NewLocal(h.relay),
		Factory:   h.network,
		Rooms:     h.relay,
		Chat:      h.chat,
		Log:       testLogger(),
		Clock:     h.clock.Now,
	}
}

func (h *harness) newMember(userID, nickname string, mutate ...func(*Options)) *member {
	m := &member{
		devices:   &rtctest.Devices{},
		navigator: &navigatorRecorder{},
		bans:      &memoryBans{},
	}
	opts := h.options(userID, nickname)
	opts.Devices = m.devices
	opts.Navigator = m.navigator
	opts.Bans = m.bans
	for _, fn := range mutate {
		fn(&opts)
	}
	m.Session = newSession(opts, true)
	return m
}

func (h *harness) join(userID, nickname string, mutate ...func(*Options)) *member {
	h.t.Helper()
	m := h.newMember(userID, nickname, mutate...)
	require.NoError(h.t, m.Join(context.Background()))
	return m
}

// settle processes every session until none of them has work left.
func settle(members ...*member) {
	for i := 0; i < 100; i++ {
		progressed := false
		for _, m := range members {
			if m.process() {
				progressed = true
			}
		}
		if !progressed {
			return
		}
	}
}

type snapshotter interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

func snapshot(t *testing.T, s snapshotter) Snapshot {
	t.Helper()
	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}

func peerIDs(snap Snapshot) []string {
	ids := make([]string, 0, len(snap.Peers))
	for _, p := range snap.Peers {
		ids = append(ids, p.ID)
	}
	return ids
}

// recordingTransport captures outbound signals and lets a test inject inbound ones.
type recordingTransport struct {
	mu         sync.Mutex
	sent       []domain.SignalMessage
	events     chan domain.SignalMessage
	subscribed int
	closed     bool
	failSend   error
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{events: make(chan domain.SignalMessage, 64)}
}

func (r *recordingTransport) Subscribe(ctx context.Context, roomID string, self domain.Presence) (<-chan domain.SignalMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribed++
	return r.events, nil
}

func (r *recordingTransport) Send(ctx context.Context, msg domain.SignalMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSend != nil {
		return r.failSend
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingTransport) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingTransport) Sent(msgType string) []domain.SignalMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SignalMessage
	for _, m := range r.sent {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (r *recordingTransport) Subscriptions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subscribed
}

// solo builds a manual session on a recording transport with no relay behind it.
type solo struct {
	*Session
	transport *recordingTransport
	network   *rtctest.Network
	clock     *fakeClock
	devices   *rtctest.Devices
}

func newSolo(t *testing.T, mutate ...func(*Options)) *solo {
	t.Helper()
	s := &solo{
		transport: newRecordingTransport(),
		network:   rtctest.NewNetwork(),
		clock:     newFakeClock(),
		devices:   &rtctest.Devices{},
	}
	opts := Options{
		RoomID:    testRoom,
		Identity:  domain.Identity{UserID: "alice", Nickname: "alice"},
		Transport: s.transport,
		Factory:   s.network,
		Devices:   s.devices,
		Log:       testLogger(),
		Clock:     s.clock.Now,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	s.Session = newSession(opts, true)
	require.NoError(t, s.Join(context.Background()))
	return s
}

// deliver injects an inbound signal and processes it.
func (s *solo) deliver(msg domain.SignalMessage) {
	s.transport.events <- msg
	s.process()
}

// run executes fn on the session goroutine.
func (s *solo) run(t *testing.T, fn func() error) {
	t.Helper()
	require.NoError(t, s.do(context.Background(), fn))
}

func (s *solo) conn(t *testing.T, index int) *rtctest.Conn {
	t.Helper()
	conns := s.network.Conns()
	require.Greater(t, len(conns), index)
	return conns[index]
}

func sender(t *testing.T, c *rtctest.Conn, l Line) *rtctest.Sender {
	t.Helper()
	ts := c.Transceivers()
	require.Len(t, ts, int(lineCount))
	return ts[l].FakeSender()
}

type failingRooms struct{}

var errStoreDown = errors.New("store down")

func (failingRooms) GetRoom(context.Context, string) (*domain.Room, error) {
	return nil, errStoreDown
}

func (failingRooms) SetRoomLocked(context.Context, string, bool, string) (*domain.Room, error) {
	return nil, errStoreDown
}

type failingChat struct{}

func (failingChat) PostMessage(context.Context, string, domain.Presence, string) (*domain.ChatMessage, error) {
	return nil, errStoreDown
}

func (failingChat) History(context.Context, string, int) ([]*domain.ChatMessage, error) {
	return nil, errStoreDown
}

func videoTrack(id string) *rtctest.Track {
	return rtctest.NewTrack(id, webrtc.RTPCodecTypeVideo)
}

func audioTrack(id string) *rtctest.Track {
	return rtctest.NewTrack(id, webrtc.RTPCodecTypeAudio)
}
