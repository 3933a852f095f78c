package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/internal/repository"
	"github.com/immxrtalbeast/meshconf/lib/logger/sl"
)

var (
	ErrInvalidRoomID          = errors.New("invalid room id")
	ErrParticipantNotFound    = errors.New("participant not found")
	ErrUnsupportedSignal      = errors.New("unsupported signal type")
	ErrInvalidSignal          = errors.New("invalid signal")
	ErrInvalidParticipantInfo = errors.New("user id is required")
)

// channel is the live presence set of one room.
type channel struct {
	mu           sync.RWMutex
	id           string
	participants map[string]*domain.Participant
}

func (c *channel) snapshot(exclude string) []*domain.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*domain.Participant, 0, len(c.participants))
	for id, p := range c.participants {
		if id == exclude {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c *channel) roster() []domain.Presence {
	participants := c.snapshot("")
	roster := make([]domain.Presence, 0, len(participants))
	for _, p := range participants {
		roster = append(roster, p.CurrentPresence())
	}
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].JoinedAt.Equal(roster[j].JoinedAt) {
			return roster[i].UserID < roster[j].UserID
		}
		return roster[i].JoinedAt.Before(roster[j].JoinedAt)
	})
	return roster
}

type RelayService struct {
	rooms    repository.RoomRepository
	log      *slog.Logger
	mu       sync.RWMutex
	channels map[string]*channel
}

func NewRelayService(rooms repository.RoomRepository, log *slog.Logger) *RelayService {
	if log == nil {
		log = slog.Default()
	}
	return &RelayService{
		rooms:    rooms,
		log:      log,
		channels: make(map[string]*channel),
	}
}

func (s *RelayService) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	if !domain.ValidRoomID(roomID) {
		return nil, ErrInvalidRoomID
	}
	return s.rooms.GetByID(ctx, roomID)
}

// EnsureRoom returns the room record, creating it with hostID as host on first visit.
func (s *RelayService) EnsureRoom(ctx context.Context, roomID string, hostID string) (*domain.Room, error) {
	const op = "service.relay.ensureRoom"
	log := s.log.With(slog.String("op", op), slog.String("room_id", roomID))

	if !domain.ValidRoomID(roomID) {
		return nil, ErrInvalidRoomID
	}

	room, err := s.rooms.GetByID(ctx, roomID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, repository.ErrRoomNotFound) {
		return nil, err
	}

	room = domain.NewRoom(roomID, hostID)
	if err := s.rooms.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrRoomExists) {
			return s.rooms.GetByID(ctx, roomID)
		}
		return nil, err
	}
	log.Info("room created", slog.String("host_id", hostID))
	return room, nil
}

func (s *RelayService) SetRoomLocked(ctx context.Context, roomID string, locked bool, adminID string) (*domain.Room, error) {
	const op = "service.relay.setRoomLocked"
	log := s.log.With(slog.String("op", op), slog.String("room_id", roomID))

	if !domain.ValidRoomID(roomID) {
		return nil, ErrInvalidRoomID
	}

	room, err := s.rooms.SetLocked(ctx, roomID, locked, adminID)
	if err != nil {
		log.Error("failed to persist lock", sl.Err(err))
		return nil, err
	}

	log.Info("room lock updated", slog.Bool("locked", locked), slog.String("admin_id", adminID))
	s.BroadcastAll(roomID, domain.SignalMessage{
		Type:      domain.SignalRoomUpdate,
		Room:      roomID,
		RoomState: room,
	})
	return room, nil
}

func (s *RelayService) RegisterParticipant(ctx context.Context, roomID string, presence domain.Presence) (*domain.Participant, error) {
	const op = "service.relay.registerParticipant"
	log := s.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID),
		slog.String("user_id", presence.UserID),
	)

	presence.UserID = strings.TrimSpace(presence.UserID)
	if presence.UserID == "" {
		return nil, ErrInvalidParticipantInfo
	}
	presence.Nickname = domain.NormalizeNickname(presence.Nickname)

	if _, err := s.EnsureRoom(ctx, roomID, presence.UserID); err != nil {
		log.Info("ensure room failed", sl.Err(err))
		return nil, err
	}

	participant := domain.NewParticipant(presence)
	ch, previous := s.join(roomID, participant)

	if previous != nil {
		log.Info("replacing previous subscription")
		s.closeParticipant(previous)
	}

	presence = participant.CurrentPresence()
	if previous == nil {
		s.broadcast(ch, domain.SignalMessage{
			Type:      domain.SignalPresenceJoin,
			Room:      roomID,
			SenderID:  presence.UserID,
			Presences: []domain.Presence{presence},
		}, presence.UserID)
	}
	s.syncPresence(ch)

	log.Info("participant registered",
		slog.String("nickname", presence.Nickname),
		slog.Int("participants", len(ch.snapshot(""))),
	)
	return participant, nil
}

func (s *RelayService) UnregisterParticipant(ctx context.Context, roomID string, participant *domain.Participant) error {
	if participant == nil {
		return ErrParticipantNotFound
	}
	userID := participant.ID()
	s.log.Info("unregistering participant",
		slog.String("room_id", roomID),
		slog.String("user_id", userID),
	)

	ch := s.lookupChannel(roomID)
	if ch == nil {
		return ErrParticipantNotFound
	}

	ch.mu.Lock()
	current, ok := ch.participants[userID]
	if !ok || current != participant {
		ch.mu.Unlock()
		s.closeParticipant(participant)
		return ErrParticipantNotFound
	}
	delete(ch.participants, userID)
	empty := len(ch.participants) == 0
	ch.mu.Unlock()

	s.closeParticipant(participant)

	if empty {
		s.removeChannel(roomID, ch)
		return ctx.Err()
	}

	s.broadcast(ch, domain.SignalMessage{
		Type:      domain.SignalPresenceLeave,
		Room:      roomID,
		SenderID:  userID,
		Presences: []domain.Presence{participant.CurrentPresence()},
	}, userID)
	s.syncPresence(ch)

	return ctx.Err()
}

func (s *RelayService) HandleSignal(ctx context.Context, roomID string, senderID string, message *domain.SignalMessage) error {
	const op = "service.relay.signal"
	if message == nil {
		return ErrInvalidSignal
	}
	log := s.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID),
		slog.String("sender_id", senderID),
	)
	log.Debug("new signal", slog.String("type", message.Type), slog.String("target_id", message.TargetID))

	ch := s.lookupChannel(roomID)
	if ch == nil {
		return ErrParticipantNotFound
	}

	ch.mu.RLock()
	sender, ok := ch.participants[senderID]
	ch.mu.RUnlock()
	if !ok {
		return ErrParticipantNotFound
	}
	sender.Touch()

	switch message.Type {
	case domain.SignalOffer, domain.SignalAnswer, domain.SignalICECandidate, domain.SignalAdminAction:
		if err := validateSignal(message); err != nil {
			return err
		}

		forward := *message
		forward.Room = roomID
		forward.SenderID = senderID

		if forward.Broadcast() {
			s.broadcast(ch, forward, senderID)
			return nil
		}

		ch.mu.RLock()
		target, ok := ch.participants[forward.TargetID]
		ch.mu.RUnlock()
		if !ok {
			return ErrParticipantNotFound
		}
		if !target.EnqueueEvent(forward) {
			log.Debug("dropping targeted event", slog.String("target_id", target.ID()), slog.String("type", forward.Type))
		}
	case domain.SignalNickname:
		sender.SetNickname(domain.NormalizeNickname(message.Nickname))
		s.syncPresence(ch)
	case domain.SignalLeave:
		log.Info("participant leaving")
		return s.UnregisterParticipant(ctx, roomID, sender)
	default:
		return ErrUnsupportedSignal
	}

	return nil
}

func (s *RelayService) ListParticipants(ctx context.Context, roomID string) ([]domain.Presence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := s.lookupChannel(roomID)
	if ch == nil {
		return []domain.Presence{}, nil
	}
	return ch.roster(), nil
}

func (s *RelayService) BroadcastAll(roomID string, msg domain.SignalMessage) {
	ch := s.lookupChannel(roomID)
	if ch == nil {
		return
	}
	s.broadcast(ch, msg, "")
}

func (s *RelayService) syncPresence(ch *channel) {
	s.broadcast(ch, domain.SignalMessage{
		Type:      domain.SignalPresenceSync,
		Room:      ch.id,
		Presences: ch.roster(),
	}, "")
}

func (s *RelayService) broadcast(ch *channel, msg domain.SignalMessage, exclude string) {
	for _, p := range ch.snapshot(exclude) {
		if !p.EnqueueEvent(msg) {
			s.log.Debug("dropping broadcast event", slog.String("participant", p.ID()), slog.String("type", msg.Type))
		}
	}
}

func (s *RelayService) closeParticipant(p *domain.Participant) {
	p.Close()
	p.Mutex.Lock()
	socket := p.Socket
	p.Socket = nil
	p.Mutex.Unlock()
	if socket != nil {
		_ = socket.Close()
	}
}

// join inserts participant into the room channel and returns the subscription it replaced, if any.
func (s *RelayService) join(roomID string, participant *domain.Participant) (*channel, *domain.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[roomID]
	if !ok {
		ch = &channel{id: roomID, participants: make(map[string]*domain.Participant)}
		s.channels[roomID] = ch
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	previous := ch.participants[participant.ID()]
	ch.participants[participant.ID()] = participant
	return ch, previous
}

func (s *RelayService) lookupChannel(roomID string) *channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channels[roomID]
}

func (s *RelayService) removeChannel(roomID string, ch *channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channels[roomID] != ch {
		return
	}
	ch.mu.RLock()
	empty := len(ch.participants) == 0
	ch.mu.RUnlock()
	if empty {
		delete(s.channels, roomID)
	}
}

func validateSignal(message *domain.SignalMessage) error {
	switch message.Type {
	case domain.SignalOffer, domain.SignalAnswer:
		if message.SDP == nil || message.SDP.SDP == "" {
			return ErrInvalidSignal
		}
	case domain.SignalICECandidate:
		if message.Candidate == nil {
			return ErrInvalidSignal
		}
	case domain.SignalAdminAction:
		if message.Action == nil {
			return ErrInvalidSignal
		}
		if message.Action.Targeted() && message.TargetID == "" {
			return ErrInvalidSignal
		}
		if message.Action.Action == domain.ActionLock && message.Action.Locked == nil {
			return ErrInvalidSignal
		}
	}
	return nil
}
