package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/immxrtalbeast/meshconf/internal/domain"
)

type InMemoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[string]*domain.Room
}

func NewInMemoryRoomRepository() *InMemoryRoomRepository {
	return &InMemoryRoomRepository{
		rooms: make(map[string]*domain.Room),
	}
}

func (r *InMemoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room.ID]; ok {
		return ErrRoomExists
	}

	stored := *room
	r.rooms[room.ID] = &stored
	return nil
}

func (r *InMemoryRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}

	out := *room
	return &out, nil
}

func (r *InMemoryRoomRepository) SetLocked(ctx context.Context, id string, locked bool, adminID string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		room = domain.NewRoom(id, adminID)
		room.AdminID = adminID
		r.rooms[id] = room
	}
	room.IsLocked = locked
	room.UpdatedAt = time.Now().UTC()

	out := *room
	return &out, nil
}

type InMemoryChatRepository struct {
	mu       sync.RWMutex
	messages map[string][]*domain.ChatMessage
}

func NewInMemoryChatRepository() *InMemoryChatRepository {
	return &InMemoryChatRepository{
		messages: make(map[string][]*domain.ChatMessage),
	}
}

func (r *InMemoryChatRepository) SaveChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *msg
	list := append(r.messages[msg.RoomID], &stored)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	r.messages[msg.RoomID] = list
	return nil
}

func (r *InMemoryChatRepository) ListChatMessages(ctx context.Context, roomID string, limit int) ([]*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.messages[roomID]
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}

	result := make([]*domain.ChatMessage, 0, len(list))
	for _, msg := range list {
		out := *msg
		result = append(result, &out)
	}
	return result, nil
}
