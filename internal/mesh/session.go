// Package mesh is the peer-session engine of a mesh conference: one RTC connection per remote
// participant, four fixed media lines per connection, link quality sampling with adaptive
// encoding, and the moderation commands that ride the signaling channel.
//
// All session state is owned by a single goroutine. Callbacks from the RTC layer and the
// signaling reader are posted to it; public methods hand it a function and wait.
package mesh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/meshconf/internal/config"
	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/internal/rtc"
	"github.com/immxrtalbeast/meshconf/lib/logger/sl"
)

type Options struct {
	RoomID   string
	Identity domain.Identity

	Transport Transport
	Factory   rtc.Factory
	Rooms     RoomStore
	Chat      ChatStore
	Bans      BanStore
	Devices   MediaDevices
	Navigator Navigator

	Policy        AdminPolicy
	Thresholds    QualityThresholds
	StatsInterval time.Duration
	HistoryLimit  int

	Log   *slog.Logger
	Clock func() time.Time
}

// OptionsFromConfig fills the tunables of Options from the session config section.
func OptionsFromConfig(cfg config.SessionConfig) Options {
	return Options{
		Policy: PolicyFromConfig(cfg),
		Thresholds: QualityThresholds{
			PoorLoss:     cfg.PoorLoss,
			PoorRTT:      cfg.PoorRTT,
			ExcellentRTT: cfg.ExcellentRTT,
		},
		StatsInterval: cfg.StatsInterval,
		HistoryLimit:  cfg.HistoryLimit,
	}
}

type Session struct {
	roomID    string
	transport Transport
	factory   rtc.Factory
	rooms     RoomStore
	chat      ChatStore
	bans      BanStore
	devices   MediaDevices
	navigator Navigator
	policy    AdminPolicy

	thresholds    QualityThresholds
	statsInterval time.Duration
	historyLimit  int
	log           *slog.Logger
	now           func() time.Time

	loop   *loop
	manual bool
	events <-chan domain.SignalMessage

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	changes chan struct{}
	wg      sync.WaitGroup

	// Owned by the loop.
	self     domain.Identity
	joinedAt time.Time
	joined   bool
	closed   bool
	reason   string
	roster   []domain.Presence
	adminID  string
	room     *domain.Room
	locked   bool
	peers    map[string]*peer
	media    localMedia
	quality  qualityState
	messages []*domain.ChatMessage
	seen     map[uuid.UUID]struct{}
}

// New creates a session and starts its goroutine. Call Join to enter the room.
func New(opts Options) *Session {
	s := newSession(opts, false)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop.run(s.done)
	}()
	return s
}

// newSession builds the session. A manual session has no goroutines of its own and is
// driven by process.
func newSession(opts Options, manual bool) *Session {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	policy := opts.Policy
	if policy == nil {
		policy = ReservedNamePolicy{Nickname: defaultAdminNickname}
	}
	bans := opts.Bans
	if bans == nil {
		bans = noBans{}
	}
	interval := opts.StatsInterval
	if interval <= 0 {
		interval = time.Second
	}
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	ctx, cancel := context.WithCancel(context.Background())
	self := opts.Identity
	self.Nickname = domain.NormalizeNickname(self.Nickname)

	return &Session{
		roomID:        opts.RoomID,
		transport:     opts.Transport,
		factory:       opts.Factory,
		rooms:         opts.Rooms,
		chat:          opts.Chat,
		bans:          bans,
		devices:       opts.Devices,
		navigator:     opts.Navigator,
		policy:        policy,
		thresholds:    opts.Thresholds.withDefaults(),
		statsInterval: interval,
		historyLimit:  limit,
		log: log.With(
			slog.String("room_id", opts.RoomID),
			slog.String("user_id", self.UserID),
		),
		now:     now,
		loop:    newLoop(),
		manual:  manual,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		changes: make(chan struct{}, 1),
		self:    self,
		peers:   make(map[string]*peer),
		seen:    make(map[uuid.UUID]struct{}),
	}
}

const (
	defaultAdminNickname = "Teolojik"
	defaultHistoryLimit  = 50
)

// Join refuses banned rooms before touching the transport, then subscribes to the room and
// starts the session goroutines.
func (s *Session) Join(ctx context.Context) error {
	const op = "mesh.session.Join"
	log := s.log.With(slog.String("op", op))

	var presence domain.Presence
	err := s.do(ctx, func() error {
		if s.joined {
			return ErrAlreadyJoined
		}
		s.joined = true
		s.joinedAt = s.now()
		presence = s.self.Presence(s.joinedAt)
		return nil
	})
	if err != nil {
		return err
	}
	reset := func() {
		_ = s.do(ctx, func() error {
			s.joined = false
			return nil
		})
	}

	banned, err := s.bans.IsBanned(s.roomID)
	if err != nil {
		log.Warn("failed to read ban marker", sl.Err(err))
	}
	if banned {
		log.Info("refusing to join banned room")
		reset()
		return ErrBanned
	}

	events, err := s.transport.Subscribe(ctx, s.roomID, presence)
	if err != nil {
		reset()
		return fmt.Errorf("%s: %w", op, err)
	}

	err = s.do(ctx, func() error {
		if s.closed {
			return ErrSessionClosed
		}
		s.events = events
		s.quality.reset(s.now())
		return nil
	})
	if err != nil {
		return err
	}

	if !s.manual {
		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			s.pump(events)
		}()
		go func() {
			defer s.wg.Done()
			s.tick()
		}()
	}

	s.background(s.loadRoom)
	s.background(s.loadHistory)

	log.Info("joined room")
	return nil
}

// Leave sends a leave signal, closes every peer connection and stops local media.
func (s *Session) Leave(ctx context.Context) error {
	err := s.do(ctx, func() error {
		s.teardown(ReasonLeft)
		return nil
	})
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Changes delivers a notification after state mutations. Notifications coalesce.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

// Wait blocks until the session goroutines have exited.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) pump(events <-chan domain.SignalMessage) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				s.loop.post(func() {
					if s.closed {
						return
					}
					s.log.Warn("signaling channel closed")
					s.navigateAway(ReasonLost)
				})
				return
			}
			s.loop.post(func() { s.handleSignal(msg) })
		}
	}
}

func (s *Session) tick() {
	ticker := time.NewTicker(s.statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.loop.post(s.sampleQuality)
		}
	}
}

// background runs a blocking call off the session goroutine.
func (s *Session) background(fn func()) {
	if s.manual {
		fn()
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// do runs fn on the session goroutine and returns its error.
func (s *Session) do(ctx context.Context, fn func() error) error {
	if s.manual {
		var err error
		if !s.loop.post(func() { err = fn() }) {
			return ErrSessionClosed
		}
		s.loop.drain()
		return err
	}

	result := make(chan error, 1)
	if !s.loop.post(func() { result <- fn() }) {
		return ErrSessionClosed
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrSessionClosed
		}
	}
}

// process pulls pending signaling events and drains the loop until both are idle.
// It reports whether anything ran. Used when the session runs without its own goroutines.
func (s *Session) process() bool {
	ran := false
	for {
		pulled := s.pullEvents()
		n := s.loop.drain()
		if !pulled && n == 0 {
			return ran
		}
		ran = true
	}
}

func (s *Session) pullEvents() bool {
	if s.events == nil {
		return false
	}
	pulled := false
	for {
		select {
		case msg, ok := <-s.events:
			if !ok {
				s.events = nil
				return pulled
			}
			s.loop.post(func() { s.handleSignal(msg) })
			pulled = true
		default:
			return pulled
		}
	}
}

func (s *Session) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Session) send(msg domain.SignalMessage) {
	msg.Room = s.roomID
	msg.SenderID = s.self.UserID
	if err := s.transport.Send(s.ctx, msg); err != nil {
		s.log.Warn("failed to send signal",
			slog.String("type", msg.Type),
			slog.String("target_id", msg.TargetID),
			sl.Err(err),
		)
	}
}

// navigateAway ends the session and tells the navigator why.
func (s *Session) navigateAway(reason string) {
	if s.closed {
		return
	}
	s.teardown(reason)
	if s.navigator != nil {
		s.navigator.NavigateAway(reason)
	}
}

func (s *Session) teardown(reason string) {
	if s.closed {
		return
	}
	s.log.Info("leaving room", slog.String("reason", reason))

	if s.joined {
		s.send(domain.SignalMessage{Type: domain.SignalLeave})
	}
	for id := range s.peers {
		s.removePeer(id)
	}
	s.media.stopAll()

	s.closed = true
	s.reason = reason
	s.cancel()
	s.loop.stop()
	if s.transport != nil {
		if err := s.transport.Close(); err != nil {
			s.log.Debug("transport close", sl.Err(err))
		}
	}
	close(s.done)
	s.notify()
}

func (s *Session) loadRoom() {
	const op = "mesh.session.loadRoom"
	if s.rooms == nil {
		return
	}
	room, err := s.rooms.GetRoom(s.ctx, s.roomID)
	if err != nil {
		s.log.Debug("room record unavailable", slog.String("op", op), sl.Err(err))
		return
	}
	s.loop.post(func() { s.applyRoom(room) })
}

func (s *Session) applyRoom(room *domain.Room) {
	if s.closed || room == nil {
		return
	}
	r := *room
	s.room = &r
	s.locked = r.IsLocked
	s.electAdmin()
	s.notify()
}
