package mesh

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/immxrtalbeast/meshconf/internal/rtc"
)

// Preset is a capture resolution with the bitrate cap its video is published with.
type Preset struct {
	Width      int
	Height     int
	FrameRate  int
	MaxBitrate uint64
}

var CameraPresets = map[string]Preset{
	"720p":  {Width: 1280, Height: 720, FrameRate: 30, MaxBitrate: 2_500_000},
	"1080p": {Width: 1920, Height: 1080, FrameRate: 30, MaxBitrate: 4_000_000},
	"1440p": {Width: 2560, Height: 1440, FrameRate: 30, MaxBitrate: 8_000_000},
}

var ScreenPresets = map[string]Preset{
	"1080p": {Width: 1920, Height: 1080, FrameRate: 60, MaxBitrate: 4_000_000},
	"1440p": {Width: 2560, Height: 1440, FrameRate: 60, MaxBitrate: 8_000_000},
	"4k":    {Width: 3840, Height: 2160, FrameRate: 60, MaxBitrate: 20_000_000},
}

// localStream holds at most one audio and one video track.
type localStream struct {
	audio rtc.Track
	video rtc.Track
}

func (ls *localStream) stop() {
	if ls.audio != nil {
		ls.audio.Stop()
	}
	if ls.video != nil {
		ls.video.Stop()
	}
}

type localMedia struct {
	camera        *localStream
	screen        *localStream
	tracks        [lineCount]rtc.Track
	cameraBitrate uint64
	screenBitrate uint64
	muted         bool
	videoOff      bool
}

func (m *localMedia) stopAll() {
	if m.camera != nil {
		m.camera.stop()
		m.camera = nil
	}
	if m.screen != nil {
		m.screen.stop()
		m.screen = nil
	}
	m.tracks = [lineCount]rtc.Track{}
}

// StartCamera opens the camera and microphone at preset and publishes both. Cinema mode asks
// for unprocessed stereo audio.
func (s *Session) StartCamera(ctx context.Context, preset string, cinema bool) error {
	const op = "mesh.media.StartCamera"

	p, ok := CameraPresets[preset]
	if !ok {
		return fmt.Errorf("%s: %w: %q", op, ErrUnknownPreset, preset)
	}
	audio, video, err := s.devices.OpenCamera(ctx, rtc.Capture{
		Width:       p.Width,
		Height:      p.Height,
		FrameRate:   p.FrameRate,
		Stereo:      cinema,
		Unprocessed: cinema,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	stream := &localStream{audio: audio, video: video}
	err = s.do(ctx, func() error {
		if s.closed {
			return ErrSessionClosed
		}
		s.stopCamera()
		s.media.camera = stream
		s.media.muted = false
		s.media.videoOff = false
		s.onEnded(video, func() {
			if s.media.camera == stream {
				s.stopCamera()
			}
		})
		s.publish(LineMic, audio)
		s.publishCamera(video, p.MaxBitrate)
		s.log.Info("camera started", slog.String("preset", preset), slog.Bool("cinema", cinema))
		return nil
	})
	if err != nil {
		stream.stop()
	}
	return err
}

func (s *Session) StopCamera(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.stopCamera()
		return nil
	})
}

func (s *Session) stopCamera() {
	if s.media.camera == nil {
		return
	}
	s.media.camera.stop()
	s.media.camera = nil
	s.media.cameraBitrate = 0
	s.publish(LineMic, nil)
	s.publishCamera(nil, 0)
	s.log.Info("camera stopped")
}

// StartScreenShare opens a screen source at preset and publishes its video and audio.
func (s *Session) StartScreenShare(ctx context.Context, preset string) error {
	const op = "mesh.media.StartScreenShare"

	p, ok := ScreenPresets[preset]
	if !ok {
		return fmt.Errorf("%s: %w: %q", op, ErrUnknownPreset, preset)
	}
	video, audio, err := s.devices.OpenScreen(ctx, rtc.Capture{
		Width:     p.Width,
		Height:    p.Height,
		FrameRate: p.FrameRate,
		Stereo:    true,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	stream := &localStream{audio: audio, video: video}
	err = s.do(ctx, func() error {
		if s.closed {
			return ErrSessionClosed
		}
		s.stopScreenShare()
		s.media.screen = stream
		s.onEnded(video, func() {
			if s.media.screen == stream {
				s.stopScreenShare()
			}
		})
		s.publishScreenVideo(video, p.MaxBitrate)
		s.publish(LineScreenAudio, audio)
		s.log.Info("screen share started", slog.String("preset", preset))
		return nil
	})
	if err != nil {
		stream.stop()
	}
	return err
}

func (s *Session) StopScreenShare(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.stopScreenShare()
		return nil
	})
}

func (s *Session) stopScreenShare() {
	if s.media.screen == nil {
		return
	}
	s.media.screen.stop()
	s.media.screen = nil
	s.publishScreenVideo(nil, 0)
	s.publish(LineScreenAudio, nil)
	s.log.Info("screen share stopped")
}

// onEnded runs fn on the session goroutine when track's source ends.
func (s *Session) onEnded(track rtc.Track, fn func()) {
	if track == nil {
		return
	}
	track.OnEnded(func() {
		s.loop.post(func() {
			if s.closed {
				return
			}
			fn()
		})
	})
}

// ToggleAudio flips the local microphone and reports whether it is now muted.
func (s *Session) ToggleAudio(ctx context.Context) (bool, error) {
	var muted bool
	err := s.do(ctx, func() error {
		if s.media.camera != nil && s.media.camera.audio != nil {
			audio := s.media.camera.audio
			audio.SetEnabled(!audio.Enabled())
			s.media.muted = !audio.Enabled()
			s.notify()
		}
		muted = s.media.muted
		return nil
	})
	return muted, err
}

// ToggleVideo flips the local camera and reports whether it is now off.
func (s *Session) ToggleVideo(ctx context.Context) (bool, error) {
	var off bool
	err := s.do(ctx, func() error {
		if s.media.camera != nil && s.media.camera.video != nil {
			video := s.media.camera.video
			video.SetEnabled(!video.Enabled())
			s.media.videoOff = !video.Enabled()
			s.notify()
		}
		off = s.media.videoOff
		return nil
	})
	return off, err
}
