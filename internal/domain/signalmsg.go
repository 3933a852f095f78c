package domain

import "github.com/pion/webrtc/v3"

const (
	SignalOffer        = "offer"
	SignalAnswer       = "answer"
	SignalICECandidate = "ice-candidate"
	SignalAdminAction  = "admin-action"

	SignalPresenceSync  = "presence-sync"
	SignalPresenceJoin  = "presence-join"
	SignalPresenceLeave = "presence-leave"
	SignalNickname      = "nickname"
	SignalChat          = "chat"
	SignalRoomUpdate    = "room-update"
	SignalLeave         = "leave"
	SignalJoined        = "joined"
	SignalError         = "error"
)

// SignalMessage is the envelope exchanged through the relay. An empty TargetID is a broadcast.
type SignalMessage struct {
	Type      string                     `json:"type"`
	Room      string                     `json:"room,omitempty"`
	SenderID  string                     `json:"sender_id,omitempty"`
	TargetID  string                     `json:"target_id,omitempty"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Action    *AdminAction               `json:"action,omitempty"`
	Presences []Presence                 `json:"presences,omitempty"`
	Nickname  string                     `json:"nickname,omitempty"`
	Chat      *ChatMessage               `json:"chat,omitempty"`
	RoomState *Room                      `json:"room_state,omitempty"`
	Error     string                     `json:"error,omitempty"`
}

// Broadcast reports whether the message is addressed to everyone.
func (m SignalMessage) Broadcast() bool {
	return m.TargetID == ""
}

// AddressedTo reports whether a receiver with userID should process the message.
func (m SignalMessage) AddressedTo(userID string) bool {
	return m.TargetID == "" || m.TargetID == userID
}
