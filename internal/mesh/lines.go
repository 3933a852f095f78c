package mesh

import (
	"context"
	"log/slog"

	"github.com/immxrtalbeast/meshconf/internal/rtc"
	"github.com/immxrtalbeast/meshconf/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

// PublishMicrophone binds track (nil clears) to the mic line of every peer.
func (s *Session) PublishMicrophone(ctx context.Context, track rtc.Track) error {
	return s.do(ctx, func() error {
		s.publish(LineMic, track)
		return nil
	})
}

// PublishCamera binds track to the camera line of every peer.
func (s *Session) PublishCamera(ctx context.Context, track rtc.Track) error {
	return s.do(ctx, func() error {
		s.publishCamera(track, 0)
		return nil
	})
}

// PublishScreenVideo binds track to the screen-video line of every peer. A non-zero maxBitrate
// caps the top layer and scales the lower layers down from it.
func (s *Session) PublishScreenVideo(ctx context.Context, track rtc.Track, maxBitrate uint64) error {
	return s.do(ctx, func() error {
		s.publishScreenVideo(track, maxBitrate)
		return nil
	})
}

// PublishScreenAudio binds track to the screen-audio line of every peer.
func (s *Session) PublishScreenAudio(ctx context.Context, track rtc.Track) error {
	return s.do(ctx, func() error {
		s.publish(LineScreenAudio, track)
		return nil
	})
}

// publish swaps the bound track. The line shape never changes, so no renegotiation follows.
func (s *Session) publish(l Line, track rtc.Track) {
	s.media.tracks[l] = track
	for _, p := range s.peers {
		sender := p.sender(l)
		if sender == nil {
			continue
		}
		if err := sender.ReplaceTrack(track); err != nil {
			s.log.Warn("failed to replace track",
				slog.String("peer_id", p.id),
				slog.String("line", l.String()),
				sl.Err(err),
			)
		}
	}
	s.notify()
}

func (s *Session) publishCamera(track rtc.Track, maxBitrate uint64) {
	s.publish(LineCam, track)
	if track == nil {
		return
	}
	s.media.cameraBitrate = maxBitrate
	for _, p := range s.peers {
		s.syncVideoConstraints(p.sender(LineCam), maxBitrate)
	}
}

func (s *Session) publishScreenVideo(track rtc.Track, maxBitrate uint64) {
	s.publish(LineScreenVideo, track)
	if track == nil {
		s.media.screenBitrate = 0
		for _, p := range s.peers {
			s.resetAdaptation(p.sender(LineScreenVideo))
		}
		return
	}
	s.media.screenBitrate = maxBitrate
	for _, p := range s.peers {
		s.syncVideoConstraints(p.sender(LineScreenVideo), maxBitrate)
	}
}

// syncVideoConstraints applies maxBitrate to the top layer and halves it for each layer below.
// Parameters are pushed only when they change.
func (s *Session) syncVideoConstraints(sender rtc.Sender, maxBitrate uint64) {
	if sender == nil || maxBitrate == 0 {
		return
	}
	track := sender.Track()
	if track == nil || track.Kind() != webrtc.RTPCodecTypeVideo {
		return
	}

	params := sender.GetParameters()
	if len(params.Encodings) == 0 {
		params.Encodings = []rtc.Encoding{{Active: true}}
	}
	if !applyBitrateCap(&params, maxBitrate) {
		return
	}
	if err := sender.SetParameters(params); err != nil {
		s.log.Warn("failed to apply video constraints", sl.Err(err))
	}
}

func applyBitrateCap(params *rtc.SendParameters, maxBitrate uint64) bool {
	changed := false
	top := len(params.Encodings) - 1
	for i := top; i >= 0; i-- {
		want := maxBitrate >> uint(top-i)
		if params.Encodings[i].MaxBitrate != want {
			params.Encodings[i].MaxBitrate = want
			changed = true
		}
	}
	return changed
}
