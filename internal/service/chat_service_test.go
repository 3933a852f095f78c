package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingChatRepository struct{}

func (failingChatRepository) SaveChatMessage(context.Context, *domain.ChatMessage) error {
	return errors.New("disk full")
}

func (failingChatRepository) ListChatMessages(context.Context, string, int) ([]*domain.ChatMessage, error) {
	return nil, errors.New("disk full")
}

// TestPostMessageBroadcastsToEveryone verifies persisted messages reach every participant including the sender.
func TestPostMessageBroadcastsToEveryone(t *testing.T) {
	relay := newRelay()
	alice := register(t, relay, "general", "alice")
	bob := register(t, relay, "general", "bob")
	drain(alice)
	drain(bob)

	chat := NewChatService(repository.NewInMemoryChatRepository(), relay, testLogger())
	msg, err := chat.PostMessage(context.Background(), "general", domain.Presence{UserID: "alice", Nickname: "Alice"}, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)

	for _, p := range []*domain.Participant{alice, bob} {
		events := drain(p)
		require.Len(t, events, 1)
		assert.Equal(t, domain.SignalChat, events[0].Type)
		assert.Equal(t, msg.ID, events[0].Chat.ID)
	}

	history, err := chat.History(context.Background(), "general", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Alice", history[0].Nickname)
}

// TestPostMessageValidation verifies empty, oversize and anonymous messages are rejected.
func TestPostMessageValidation(t *testing.T) {
	chat := NewChatService(repository.NewInMemoryChatRepository(), nil, testLogger())
	ctx := context.Background()
	sender := domain.Presence{UserID: "alice"}

	_, err := chat.PostMessage(ctx, "general", sender, "   ")
	assert.ErrorIs(t, err, ErrEmptyChatMessage)

	_, err = chat.PostMessage(ctx, "general", sender, strings.Repeat("x", maxChatMessageLength+1))
	assert.ErrorIs(t, err, ErrChatMessageTooLong)

	_, err = chat.PostMessage(ctx, "general", domain.Presence{}, "hi")
	assert.ErrorIs(t, err, ErrChatSenderRequired)

	_, err = chat.PostMessage(ctx, "general", domain.Presence{UserID: "a", Nickname: strings.Repeat("n", maxChatSenderLength+1)}, "hi")
	assert.ErrorIs(t, err, ErrChatSenderTooLong)

	_, err = chat.PostMessage(ctx, "", sender, "hi")
	assert.ErrorIs(t, err, ErrInvalidRoomID)

	msg, err := chat.PostMessage(ctx, "general", sender, "hi")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultNickname, msg.Nickname)
}

// TestPostMessagePersistenceFailure verifies storage errors are returned and nothing is broadcast.
func TestPostMessagePersistenceFailure(t *testing.T) {
	relay := newRelay()
	alice := register(t, relay, "general", "alice")
	drain(alice)

	chat := NewChatService(failingChatRepository{}, relay, testLogger())
	_, err := chat.PostMessage(context.Background(), "general", domain.Presence{UserID: "alice"}, "hi")
	require.Error(t, err)
	assert.Empty(t, drain(alice))
}
