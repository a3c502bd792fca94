package capture

import "time"

const (
	audioSampleRate   = 8000
	audioChannels     = 1
	audioFrameSamples = 160 // 20ms at 8kHz, the capturer's chunk size
	audioChunkBuffer  = 8
)

// AudioChunk is one Opus-encoded audio frame and its play-out duration.
type AudioChunk struct {
	Data     []byte
	Duration time.Duration
}
