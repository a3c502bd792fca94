//go:build !cgo

package capture

import "fmt"

// AudioSource requires the Opus encoder, which needs CGO. Without it the
// broadcast is video-only.
type AudioSource struct {
	ch chan AudioChunk
}

func NewAudioSource() (*AudioSource, error) {
	return nil, nil
}

func (s *AudioSource) Start() error {
	return fmt.Errorf("audio source unavailable: built without CGO")
}

func (s *AudioSource) Chunks() <-chan AudioChunk { return s.ch }

func (s *AudioSource) Stop() {}
