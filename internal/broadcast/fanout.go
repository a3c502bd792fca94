package broadcast

import (
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// FanOut owns the single video and audio tracks shared by every connected
// viewer. One capture/encode pipeline produces samples; N PeerSessions call
// AddTrack against the same TrackLocalStaticSample to receive them, instead
// of each peer owning its own encoder.
type FanOut struct {
	video *webrtc.TrackLocalStaticSample
	audio *webrtc.TrackLocalStaticSample

	mu           sync.RWMutex
	lastVideoPTS int64
}

func NewFanOut() (*FanOut, error) {
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264},
		"video", "broadcast-video",
	)
	if err != nil {
		return nil, err
	}
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "broadcast-audio",
	)
	if err != nil {
		return nil, err
	}
	return &FanOut{video: video, audio: audio}, nil
}

// VideoTrack and AudioTrack are the tracks PeerSessions AddTrack against.
func (f *FanOut) VideoTrack() *webrtc.TrackLocalStaticSample { return f.video }
func (f *FanOut) AudioTrack() *webrtc.TrackLocalStaticSample { return f.audio }

// WriteVideo pushes one encoded sample to every subscribed peer connection.
// duration is derived from the gap between this and the previous PTS at the
// 90kHz RTP clock, falling back to a nominal frame interval for the first
// sample.
func (f *FanOut) WriteVideo(data []byte, pts int64) error {
	f.mu.Lock()
	prev := f.lastVideoPTS
	f.lastVideoPTS = pts
	f.mu.Unlock()

	duration := 33 * time.Millisecond
	if prev != 0 && pts > prev {
		duration = time.Duration(pts-prev) * time.Second / 90_000
	}
	return f.video.WriteSample(media.Sample{Data: data, Duration: duration})
}

// WriteAudio pushes one encoded audio sample (already Opus-encoded) to
// every subscribed peer connection.
func (f *FanOut) WriteAudio(data []byte, duration time.Duration) error {
	return f.audio.WriteSample(media.Sample{Data: data, Duration: duration})
}
