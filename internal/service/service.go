package service

import (
	"context"

	"github.com/immxrtalbeast/meshconf/internal/domain"
)

type RelayInteractor interface {
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	EnsureRoom(ctx context.Context, roomID string, hostID string) (*domain.Room, error)
	SetRoomLocked(ctx context.Context, roomID string, locked bool, adminID string) (*domain.Room, error)
	RegisterParticipant(ctx context.Context, roomID string, presence domain.Presence) (*domain.Participant, error)
	UnregisterParticipant(ctx context.Context, roomID string, participant *domain.Participant) error
	HandleSignal(ctx context.Context, roomID string, senderID string, message *domain.SignalMessage) error
	ListParticipants(ctx context.Context, roomID string) ([]domain.Presence, error)
}

type ChatInteractor interface {
	PostMessage(ctx context.Context, roomID string, sender domain.Presence, content string) (*domain.ChatMessage, error)
	History(ctx context.Context, roomID string, limit int) ([]*domain.ChatMessage, error)
}

// Broadcaster delivers an event to every live participant of a room.
type Broadcaster interface {
	BroadcastAll(roomID string, msg domain.SignalMessage)
}
