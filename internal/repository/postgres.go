package repository

import (
	"context"
	"errors"
	"time"

	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/internal/repository/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresRoomRepository struct {
	db *gorm.DB
}

func NewPostgresRoomRepository(db *gorm.DB) *PostgresRoomRepository {
	return &PostgresRoomRepository{db: db}
}

func (r *PostgresRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if room == nil {
		return errors.New("room is nil")
	}

	if err := r.db.WithContext(ctx).Create(toModelRoom(room)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrRoomExists
		}
		return err
	}
	return nil
}

func (r *PostgresRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var room model.Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	return toDomainRoom(&room), nil
}

func (r *PostgresRoomRepository) SetLocked(ctx context.Context, id string, locked bool, adminID string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	roomModel := &model.Room{
		ID:        id,
		HostID:    adminID,
		AdminID:   adminID,
		IsLocked:  locked,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"is_locked":  locked,
				"updated_at": now,
			}),
		}).Create(roomModel)
		if res.Error != nil {
			return res.Error
		}
		return tx.First(roomModel, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}

	return toDomainRoom(roomModel), nil
}

type PostgresChatRepository struct {
	db *gorm.DB
}

func NewPostgresChatRepository(db *gorm.DB) *PostgresChatRepository {
	return &PostgresChatRepository{db: db}
}

func (r *PostgresChatRepository) SaveChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg == nil {
		return errors.New("chat message is nil")
	}

	return r.db.WithContext(ctx).Create(toModelMessage(msg)).Error
}

func (r *PostgresChatRepository) ListChatMessages(ctx context.Context, roomID string, limit int) ([]*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("created_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []model.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.ChatMessage, len(messages))
	for i := range messages {
		result[len(messages)-1-i] = toDomainMessage(&messages[i])
	}
	return result, nil
}

func toModelRoom(room *domain.Room) *model.Room {
	createdAt := room.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := room.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	return &model.Room{
		ID:        room.ID,
		HostID:    room.HostID,
		AdminID:   room.AdminID,
		IsLocked:  room.IsLocked,
		CreatedAt: createdAt.UTC(),
		UpdatedAt: updatedAt.UTC(),
	}
}

func toDomainRoom(room *model.Room) *domain.Room {
	return &domain.Room{
		ID:        room.ID,
		HostID:    room.HostID,
		AdminID:   room.AdminID,
		IsLocked:  room.IsLocked,
		CreatedAt: room.CreatedAt.UTC(),
		UpdatedAt: room.UpdatedAt.UTC(),
	}
}

func toModelMessage(msg *domain.ChatMessage) *model.Message {
	return &model.Message{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Nickname:  msg.Nickname,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt.UTC(),
	}
}

func toDomainMessage(msg *model.Message) *domain.ChatMessage {
	return &domain.ChatMessage{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Nickname:  msg.Nickname,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt.UTC(),
	}
}
