package rtc

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

var ErrTrackStopped = errors.New("track stopped")

// LocalTrack is a sample-fed local track. One LocalTrack is fanned out to the matching
// sender of every peer connection.
type LocalTrack struct {
	sample *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	enabled bool
	stopped bool
	ended   bool
	onEnded []func()
	senders map[*pionSender]SendParameters
}

func NewLocalTrack(kind webrtc.RTPCodecType, streamID string) (*LocalTrack, error) {
	capability := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	if kind == webrtc.RTPCodecTypeVideo {
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	}

	sample, err := webrtc.NewTrackLocalStaticSample(capability, kind.String()+"-"+uuid.NewString(), streamID)
	if err != nil {
		return nil, err
	}
	return &LocalTrack{
		sample:  sample,
		enabled: true,
		senders: make(map[*pionSender]SendParameters),
	}, nil
}

func (t *LocalTrack) ID() string {
	return t.sample.ID()
}

func (t *LocalTrack) Kind() webrtc.RTPCodecType {
	return t.sample.Kind()
}

func (t *LocalTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *LocalTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

func (t *LocalTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *LocalTrack) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = append(t.onEnded, fn)
}

// End marks the source as exhausted and runs the ended callbacks once.
func (t *LocalTrack) End() {
	t.mu.Lock()
	if t.ended || t.stopped {
		t.mu.Unlock()
		return
	}
	t.ended = true
	callbacks := append([]func(){}, t.onEnded...)
	t.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// WriteSample forwards a media sample to every bound sender. Disabled tracks drop samples.
func (t *LocalTrack) WriteSample(sample media.Sample) error {
	t.mu.Lock()
	stopped, enabled := t.stopped || t.ended, t.enabled
	t.mu.Unlock()

	if stopped {
		return ErrTrackStopped
	}
	if !enabled {
		return nil
	}
	return t.sample.WriteSample(sample)
}

// Layers returns the recorded send parameters of every sender this track is bound to.
// A sample source may use them to scale its own output.
func (t *LocalTrack) Layers() []SendParameters {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SendParameters, 0, len(t.senders))
	for _, params := range t.senders {
		out = append(out, params.Clone())
	}
	return out
}

func (t *LocalTrack) attach(s *pionSender, params SendParameters) {
	t.mu.Lock()
	t.senders[s] = params
	t.mu.Unlock()
}

func (t *LocalTrack) detach(s *pionSender) {
	t.mu.Lock()
	delete(t.senders, s)
	t.mu.Unlock()
}
