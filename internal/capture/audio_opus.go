//go:build cgo

package capture

import (
	"fmt"
	"time"

	opus "gopkg.in/hraban/opus.v2"
)

// AudioSource adapts the platform AudioCapturer's μ-law callback stream into
// Opus chunks on a bounded channel. The device callback never blocks: when
// the consumer lags, chunks are dropped.
type AudioSource struct {
	dev AudioCapturer
	enc *opus.Encoder
	ch  chan AudioChunk
}

// NewAudioSource builds the capture-to-Opus pipeline, or returns nil, nil on
// platforms with no audio backend.
func NewAudioSource() (*AudioSource, error) {
	dev := NewAudioCapturer()
	if dev == nil {
		return nil, nil
	}
	enc, err := opus.NewEncoder(audioSampleRate, audioChannels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("new opus encoder: %w", err)
	}
	return &AudioSource{dev: dev, enc: enc, ch: make(chan AudioChunk, audioChunkBuffer)}, nil
}

// Start begins device capture. The callback runs on the capturer's own
// thread; each 160-sample device chunk is encoded inline there as two
// 10ms Opus frames.
func (s *AudioSource) Start() error {
	const opusFrameSamples = audioFrameSamples / 2 // 10ms at 8kHz
	pcm := make([]int16, audioFrameSamples)
	return s.dev.Start(func(mulaw []byte) {
		if len(mulaw) != audioFrameSamples {
			return
		}
		for i, b := range mulaw {
			pcm[i] = mulawToLinear(b)
		}
		for off := 0; off < audioFrameSamples; off += opusFrameSamples {
			buf := make([]byte, 512)
			n, err := s.enc.Encode(pcm[off:off+opusFrameSamples], buf)
			if err != nil {
				return
			}
			select {
			case s.ch <- AudioChunk{Data: buf[:n], Duration: opusFrameSamples * time.Second / audioSampleRate}:
			default:
				// consumer is behind; drop rather than stall the device thread
			}
		}
	})
}

// Chunks is the bounded stream of encoded audio the supervisor drains.
func (s *AudioSource) Chunks() <-chan AudioChunk { return s.ch }

func (s *AudioSource) Stop() { s.dev.Stop() }

// mulawToLinear expands one G.711 μ-law byte back to 16-bit signed PCM, the
// inverse of linearToMulaw.
func mulawToLinear(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := int32(b & 0x0F)
	magnitude := ((mantissa<<3 + 0x84) << exponent) - 0x84
	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}
