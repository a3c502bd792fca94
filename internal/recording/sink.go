// Package recording provides optional persistence of a broadcast's media
// stream to a local file or object storage, independent of live viewers.
package recording

import (
	"context"
)

// OutputSink receives the raw H.264 Annex-B sample stream for one broadcast
// session. Write is called once per encoded frame; Close finalizes whatever
// backing store the sink owns.
type OutputSink interface {
	Write(sample []byte, pts int64) error
	Close(ctx context.Context) error
}

// NoopSink discards everything written to it. It's the default sink so a
// broadcaster with recording disabled doesn't special-case the call sites.
type NoopSink struct{}

func (NoopSink) Write(sample []byte, pts int64) error { return nil }
func (NoopSink) Close(ctx context.Context) error       { return nil }

var _ OutputSink = NoopSink{}
