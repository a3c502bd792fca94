package recording

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Settings mirrors the subset of config.RecordingSettings the factory
// consumes, kept local so this package doesn't import internal/config.
type Settings struct {
	Sink     string
	Path     string
	S3Bucket string
	S3Region string
	S3Prefix string
}

// New builds the configured sink, defaulting to NoopSink for unset or
// unrecognized values.
func New(ctx context.Context, s Settings) (OutputSink, error) {
	switch strings.ToLower(s.Sink) {
	case "", "noop":
		return NoopSink{}, nil
	case "file":
		if s.Path == "" {
			return nil, fmt.Errorf("recording: file sink requires a path")
		}
		return NewFileSink(s.Path)
	case "s3":
		if s.S3Bucket == "" {
			return nil, fmt.Errorf("recording: s3 sink requires a bucket")
		}
		prefix := s.S3Prefix
		if prefix == "" {
			prefix = "recordings"
		}
		return NewS3Sink(ctx, s.S3Bucket, s.S3Region, prefix, time.Now())
	default:
		return NoopSink{}, nil
	}
}
