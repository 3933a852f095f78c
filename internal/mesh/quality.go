package mesh

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/immxrtalbeast/meshconf/internal/rtc"
	"github.com/immxrtalbeast/meshconf/lib/logger/sl"
)

// QualityThresholds classify a sample. A sample is poor above PoorLoss or PoorRTT and excellent
// with zero loss under ExcellentRTT. Anything between leaves encodings alone.
type QualityThresholds struct {
	PoorLoss     float64
	PoorRTT      time.Duration
	ExcellentRTT time.Duration
}

func (t QualityThresholds) withDefaults() QualityThresholds {
	if t.PoorLoss <= 0 {
		t.PoorLoss = 0.05
	}
	if t.PoorRTT <= 0 {
		t.PoorRTT = 200 * time.Millisecond
	}
	if t.ExcellentRTT <= 0 {
		t.ExcellentRTT = 100 * time.Millisecond
	}
	return t
}

// Classify returns (poor, excellent) for the worst loss and RTT across all links.
func (t QualityThresholds) Classify(loss float64, rtt time.Duration) (bool, bool) {
	poor := loss > t.PoorLoss || rtt > t.PoorRTT
	excellent := loss == 0 && rtt < t.ExcellentRTT
	return poor, excellent
}

// NetworkStats is the session-wide view of the last sampling interval.
type NetworkStats struct {
	UploadMbps   float64
	DownloadMbps float64
	Ping         time.Duration
	Loss         float64
	Poor         bool
	SampledAt    time.Time
}

// Upload formats the upload rate in Mbps with two decimals.
func (n NetworkStats) Upload() string { return fmt.Sprintf("%.2f", n.UploadMbps) }

// Download formats the download rate in Mbps with two decimals.
func (n NetworkStats) Download() string { return fmt.Sprintf("%.2f", n.DownloadMbps) }

// PingMs formats the round-trip time in whole milliseconds.
func (n NetworkStats) PingMs() string {
	return fmt.Sprintf("%.0f", float64(n.Ping)/float64(time.Millisecond))
}

// qualityState keeps exactly the previous sample.
type qualityState struct {
	lastSent uint64
	lastRecv uint64
	lastAt   time.Time
	stats    NetworkStats
}

func (q *qualityState) reset(at time.Time) {
	*q = qualityState{lastAt: at}
}

// Degraded top-layer parameters on a poor network.
const (
	poorScaleDown = 2
	poorFramerate = 15
)

// sampleQuality polls every connection, folds the counters into NetworkStats and adapts the
// video senders. A failing peer is skipped for this tick.
func (s *Session) sampleQuality() {
	if s.closed {
		return
	}

	now := s.now()
	var (
		sent, recv uint64
		maxRTT     time.Duration
		maxLoss    float64
	)
	for id, p := range s.peers {
		stats, err := p.conn.GetStats()
		if err != nil {
			s.log.Debug("stats unavailable", slog.String("peer_id", id), sl.Err(err))
			continue
		}
		sent += stats.BytesSent
		recv += stats.BytesReceived
		if stats.HasRTT && stats.RTT > maxRTT {
			maxRTT = stats.RTT
		}
		if stats.HasLoss && stats.FractionLost > maxLoss {
			maxLoss = stats.FractionLost
		}
	}

	elapsed := now.Sub(s.quality.lastAt).Seconds()
	if elapsed <= 0 {
		return
	}

	poor, excellent := s.thresholds.Classify(maxLoss, maxRTT)
	s.quality.stats = NetworkStats{
		UploadMbps:   rate(sent, s.quality.lastSent, elapsed),
		DownloadMbps: rate(recv, s.quality.lastRecv, elapsed),
		Ping:         maxRTT,
		Loss:         maxLoss,
		Poor:         poor,
		SampledAt:    now,
	}
	s.quality.lastSent = sent
	s.quality.lastRecv = recv
	s.quality.lastAt = now

	s.adapt(poor, excellent)
	s.notify()
}

func rate(current, previous uint64, seconds float64) float64 {
	bits := (float64(current) - float64(previous)) * 8
	return max(0, bits/1e6/seconds)
}

// adapt rewrites the top layer of every video sender that carries a track.
func (s *Session) adapt(poor, excellent bool) {
	if !poor && !excellent {
		return
	}
	for _, p := range s.peers {
		for _, l := range []Line{LineCam, LineScreenVideo} {
			sender := p.sender(l)
			if sender == nil || sender.Track() == nil {
				continue
			}
			params := sender.GetParameters()
			if !adaptTopLayer(&params, poor) {
				continue
			}
			if err := sender.SetParameters(params); err != nil {
				s.log.Warn("failed to adapt encoding",
					slog.String("peer_id", p.id),
					slog.String("line", l.String()),
					sl.Err(err),
				)
			}
		}
	}
}

// adaptTopLayer degrades or restores the top encoding and reports whether anything changed.
func adaptTopLayer(params *rtc.SendParameters, poor bool) bool {
	if len(params.Encodings) == 0 {
		return false
	}
	top := &params.Encodings[len(params.Encodings)-1]
	scale, fps := 1.0, 0.0
	if poor {
		scale, fps = poorScaleDown, poorFramerate
	}
	current := top.ScaleResolutionDownBy
	if current == 0 {
		current = 1
	}
	if current == scale && top.MaxFramerate == fps {
		return false
	}
	top.ScaleResolutionDownBy = scale
	top.MaxFramerate = fps
	return true
}

// resetAdaptation restores full resolution on sender without waiting for an excellent sample.
func (s *Session) resetAdaptation(sender rtc.Sender) {
	if sender == nil {
		return
	}
	params := sender.GetParameters()
	if !adaptTopLayer(&params, false) {
		return
	}
	if err := sender.SetParameters(params); err != nil {
		s.log.Warn("failed to reset encoding", sl.Err(err))
	}
}
