package repository

import (
	"context"
	"testing"
	"time"

	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInMemoryRoomCreateAndGet verifies room records are created once and read back as copies.
func TestInMemoryRoomCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRoomRepository()

	room := domain.NewRoom("general", "host")
	require.NoError(t, repo.Create(ctx, room))
	assert.ErrorIs(t, repo.Create(ctx, room), ErrRoomExists)

	got, err := repo.GetByID(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, "host", got.HostID)

	got.IsLocked = true
	again, err := repo.GetByID(ctx, "general")
	require.NoError(t, err)
	assert.False(t, again.IsLocked, "callers get copies")

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

// TestInMemorySetLockedUpserts verifies locking a missing room creates it with the admin.
func TestInMemorySetLockedUpserts(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRoomRepository()

	room, err := repo.SetLocked(ctx, "fresh", true, "admin")
	require.NoError(t, err)
	assert.True(t, room.IsLocked)
	assert.Equal(t, "admin", room.AdminID)

	room, err = repo.SetLocked(ctx, "fresh", false, "someone-else")
	require.NoError(t, err)
	assert.False(t, room.IsLocked)
	assert.Equal(t, "admin", room.AdminID)
}

// TestInMemoryRoomCopies verifies callers cannot mutate stored records.
func TestInMemoryRoomCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRoomRepository()
	require.NoError(t, repo.Create(ctx, domain.NewRoom("r", "h")))

	got, err := repo.GetByID(ctx, "r")
	require.NoError(t, err)
	got.IsLocked = true

	again, err := repo.GetByID(ctx, "r")
	require.NoError(t, err)
	assert.False(t, again.IsLocked)
}

// TestInMemoryChatOrdering verifies history is returned oldest first and trimmed to the newest entries.
func TestInMemoryChatOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryChatRepository()
	base := time.Now().UTC()

	for i, content := range []string{"third", "first", "second"} {
		offset := []time.Duration{3, 1, 2}[i]
		msg := domain.NewChatMessage("room", domain.Presence{UserID: "u", Nickname: "n"}, content)
		msg.CreatedAt = base.Add(offset * time.Second)
		require.NoError(t, repo.SaveChatMessage(ctx, msg))
	}

	all, err := repo.ListChatMessages(ctx, "room", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "first", all[0].Content)
	assert.Equal(t, "third", all[2].Content)

	last, err := repo.ListChatMessages(ctx, "room", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "second", last[0].Content)
	assert.Equal(t, "third", last[1].Content)

	empty, err := repo.ListChatMessages(ctx, "other", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// TestInMemoryContextCancelled verifies cancelled contexts short-circuit.
func TestInMemoryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewInMemoryRoomRepository().GetByID(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, NewInMemoryChatRepository().SaveChatMessage(ctx, &domain.ChatMessage{}), context.Canceled)
}
