package recording

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// FileSink appends each sample to a local Annex-B file, length-prefixed so a
// reader can recover frame boundaries without re-parsing NAL start codes.
type FileSink struct {
	mu   sync.Mutex
	f    *os.File
}

func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("recording: open %s: %w", path, err)
	}
	return &FileSink{f: f}, nil
}

func (s *FileSink) Write(sample []byte, pts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var header [16]byte
	binary.BigEndian.PutUint64(header[0:8], uint64(pts))
	binary.BigEndian.PutUint64(header[8:16], uint64(len(sample)))
	if _, err := s.f.Write(header[:]); err != nil {
		return err
	}
	_, err := s.f.Write(sample)
	return err
}

func (s *FileSink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

var _ OutputSink = (*FileSink)(nil)
