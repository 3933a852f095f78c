// Package rtc narrows the RTC session objects the mesh engine drives to a few interfaces.
// The pion adapter in this package is the production implementation; rtctest holds an
// in-process fake network.
package rtc

import (
	"errors"
	"time"

	"github.com/pion/webrtc/v3"
)

var (
	ErrForeignTrack  = errors.New("track was not created by this rtc implementation")
	ErrCodecMismatch = errors.New("no preferred codec is supported")
)

// Encoding is one simulcast layer of a sender.
// Zero ScaleResolutionDownBy means full resolution, zero MaxFramerate means uncapped.
type Encoding struct {
	RID                   string
	Active                bool
	MaxBitrate            uint64
	ScaleResolutionDownBy float64
	MaxFramerate          float64
}

type SendParameters struct {
	Encodings []Encoding
}

// Clone returns a deep copy so callers can mutate parameters before pushing them back.
func (p SendParameters) Clone() SendParameters {
	out := SendParameters{Encodings: make([]Encoding, len(p.Encodings))}
	copy(out.Encodings, p.Encodings)
	return out
}

// Track is a local media track owned by the session.
type Track interface {
	ID() string
	Kind() webrtc.RTPCodecType
	Enabled() bool
	SetEnabled(enabled bool)
	// Stop releases the source. Safe to call more than once.
	Stop()
	// OnEnded registers fn to run when the source ends on its own, not after Stop.
	OnEnded(fn func())
}

// RemoteTrack is an inbound track as produced by a transceiver's receiver.
type RemoteTrack interface {
	ID() string
	Kind() webrtc.RTPCodecType
}

type Sender interface {
	Track() Track
	ReplaceTrack(track Track) error
	GetParameters() SendParameters
	SetParameters(params SendParameters) error
}

type Transceiver interface {
	Kind() webrtc.RTPCodecType
	Sender() Sender
	// PreferCodecs reorders codec negotiation by mime type.
	PreferCodecs(mimeTypes ...string) error
}

type TransceiverInit struct {
	Kind      webrtc.RTPCodecType
	Track     Track
	Encodings []Encoding
}

// Stats is one poll of a connection's transport counters.
type Stats struct {
	BytesSent     uint64
	BytesReceived uint64
	RTT           time.Duration
	HasRTT        bool
	FractionLost  float64
	HasLoss       bool
}

type PeerConnection interface {
	AddTransceiver(init TransceiverInit) (Transceiver, error)

	OnTrack(fn func(track RemoteTrack, transceiver Transceiver))
	OnICECandidate(fn func(candidate webrtc.ICECandidateInit))
	OnICEConnectionStateChange(fn func(state webrtc.ICEConnectionState))
	OnNegotiationNeeded(fn func())

	SignalingState() webrtc.SignalingState
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	RemoteDescription() *webrtc.SessionDescription
	AddICECandidate(candidate webrtc.ICECandidateInit) error

	GetStats() (Stats, error)
	Close() error
}

type Factory interface {
	NewPeerConnection() (PeerConnection, error)
}
