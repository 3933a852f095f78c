package mesh

import (
	"context"

	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/internal/rtc"
)

// Transport is the signaling channel. Subscribe registers self in the room presence and
// returns the inbound event stream, which is closed when the channel goes away.
type Transport interface {
	Subscribe(ctx context.Context, roomID string, self domain.Presence) (<-chan domain.SignalMessage, error)
	Send(ctx context.Context, msg domain.SignalMessage) error
	Close() error
}

// RoomStore reads and writes the shared room record.
type RoomStore interface {
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	SetRoomLocked(ctx context.Context, roomID string, locked bool, adminID string) (*domain.Room, error)
}

// ChatStore is the append-only chat log. History returns the newest limit messages oldest first.
type ChatStore interface {
	PostMessage(ctx context.Context, roomID string, sender domain.Presence, content string) (*domain.ChatMessage, error)
	History(ctx context.Context, roomID string, limit int) ([]*domain.ChatMessage, error)
}

// BanStore persists local exclusion markers keyed by room.
type BanStore interface {
	IsBanned(roomID string) (bool, error)
	Ban(roomID string) error
}

// Navigator is told when the session ends for a reason other than an explicit Leave.
// It runs on the session goroutine and must not call back into the session synchronously.
type Navigator interface {
	NavigateAway(reason string)
}

// MediaDevices opens capture sources. OpenCamera returns (audio, video), OpenScreen returns
// (video, audio); either track may be nil when the source has none.
type MediaDevices interface {
	OpenCamera(ctx context.Context, capture rtc.Capture) (rtc.Track, rtc.Track, error)
	OpenScreen(ctx context.Context, capture rtc.Capture) (rtc.Track, rtc.Track, error)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(reason string)

func (f NavigatorFunc) NavigateAway(reason string) { f(reason) }

type noBans struct{}

func (noBans) IsBanned(string) (bool, error) { return false, nil }
func (noBans) Ban(string) error              { return nil }
