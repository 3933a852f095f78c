package repository

import (
	"context"
	"errors"

	"github.com/immxrtalbeast/meshconf/internal/domain"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	// SetLocked updates the lock flag, creating the room with adminID as admin when it does not exist yet.
	SetLocked(ctx context.Context, id string, locked bool, adminID string) (*domain.Room, error)
}

type ChatRepository interface {
	SaveChatMessage(ctx context.Context, msg *domain.ChatMessage) error
	// ListChatMessages returns the newest limit messages of a room, oldest first.
	ListChatMessages(ctx context.Context, roomID string, limit int) ([]*domain.ChatMessage, error)
}
