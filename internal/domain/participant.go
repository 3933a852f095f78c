package domain

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type ParticipantStatus string

const (
	ParticipantStatusConnected    ParticipantStatus = "connected"
	ParticipantStatusConnecting   ParticipantStatus = "connecting"
	ParticipantStatusDisconnected ParticipantStatus = "disconnected"
)

const participantQueueSize = 64

// Participant is a relay-side subscription of one user to one room.
type Participant struct {
	Presence Presence
	Status   ParticipantStatus
	LastSeen time.Time
	Mutex    sync.RWMutex
	Socket   *websocket.Conn
	Events   chan SignalMessage

	closed bool
}

func NewParticipant(presence Presence) *Participant {
	if presence.JoinedAt.IsZero() {
		presence.JoinedAt = time.Now().UTC()
	}
	return &Participant{
		Presence: presence,
		Status:   ParticipantStatusConnecting,
		LastSeen: time.Now().UTC(),
		Events:   make(chan SignalMessage, participantQueueSize),
	}
}

func (p *Participant) ID() string {
	return p.Presence.UserID
}

func (p *Participant) Touch() {
	p.Mutex.Lock()
	defer p.Mutex.Unlock()
	p.LastSeen = time.Now().UTC()
}

// EnqueueEvent queues event for delivery and reports false when the queue is full or closed.
func (p *Participant) EnqueueEvent(event SignalMessage) bool {
	p.Mutex.RLock()
	defer p.Mutex.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.Events <- event:
		return true
	default:
		return false
	}
}

func (p *Participant) SetStatus(status ParticipantStatus) {
	p.Mutex.Lock()
	defer p.Mutex.Unlock()
	p.Status = status
}

func (p *Participant) SetNickname(nickname string) {
	p.Mutex.Lock()
	defer p.Mutex.Unlock()
	p.Presence.Nickname = nickname
}

func (p *Participant) CurrentPresence() Presence {
	p.Mutex.RLock()
	defer p.Mutex.RUnlock()
	return p.Presence
}

// Close stops event delivery. Safe to call more than once.
func (p *Participant) Close() {
	p.Mutex.Lock()
	defer p.Mutex.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.Status = ParticipantStatusDisconnected
	close(p.Events)
}
