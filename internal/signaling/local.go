package signaling

import (
	"context"
	"errors"
	"sync"

	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/internal/service"
)

// Local is a transport bound directly to a relay service in the same process.
type Local struct {
	relay service.RelayInteractor

	mu          sync.Mutex
	roomID      string
	participant *domain.Participant
	closed      bool
}

func NewLocal(relay service.RelayInteractor) *Local {
	return &Local{relay: relay}
}

func (l *Local) Subscribe(ctx context.Context, roomID string, self domain.Presence) (<-chan domain.SignalMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if l.participant != nil {
		return nil, ErrAlreadySubscribed
	}

	participant, err := l.relay.RegisterParticipant(ctx, roomID, self)
	if err != nil {
		return nil, err
	}
	participant.SetStatus(domain.ParticipantStatusConnected)
	l.roomID = roomID
	l.participant = participant
	return participant.Events, nil
}

func (l *Local) Send(ctx context.Context, msg domain.SignalMessage) error {
	l.mu.Lock()
	participant, roomID, closed := l.participant, l.roomID, l.closed
	l.mu.Unlock()

	if closed || participant == nil {
		return ErrClosed
	}
	err := l.relay.HandleSignal(ctx, roomID, participant.ID(), &msg)
	if msg.Type == domain.SignalLeave && errors.Is(err, service.ErrParticipantNotFound) {
		return nil
	}
	return err
}

func (l *Local) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	participant, roomID := l.participant, l.roomID
	l.mu.Unlock()

	if participant == nil {
		return nil
	}
	err := l.relay.UnregisterParticipant(context.Background(), roomID, participant)
	if errors.Is(err, service.ErrParticipantNotFound) {
		return nil
	}
	return err
}
