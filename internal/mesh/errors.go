package mesh

import "errors"

var (
	// ErrBanned is returned by Join when the room carries a local exclusion marker.
	ErrBanned = errors.New("banned from this room")
	// ErrSessionClosed is returned by every operation after the session has been torn down.
	ErrSessionClosed = errors.New("session closed")
	// ErrAlreadyJoined is returned by a second Join on the same session.
	ErrAlreadyJoined = errors.New("session already joined")
	// ErrNotAdmin is returned when a moderation command is issued by anyone but the elected admin.
	ErrNotAdmin = errors.New("only the room admin can do this")
	// ErrPeerNotFound is returned when a command names a user with no live peer record.
	ErrPeerNotFound = errors.New("peer not found")
	// ErrInvalidTarget is returned for moderation commands aimed at nobody or at oneself.
	ErrInvalidTarget = errors.New("invalid moderation target")
	// ErrUnknownPreset is returned for capture presets outside the known tables.
	ErrUnknownPreset = errors.New("unknown capture preset")
	// ErrEmptyMessage is returned for chat messages with no visible content.
	ErrEmptyMessage = errors.New("message is empty")
)

// Reasons passed to Navigator.NavigateAway.
const (
	ReasonKicked = "kicked"
	ReasonBanned = "banned"
	ReasonLeft   = "left"
	ReasonLost   = "connection-lost"
)
