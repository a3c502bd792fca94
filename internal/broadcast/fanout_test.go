package broadcast

import "testing"

func TestNewFanOutCreatesDistinctTracks(t *testing.T) {
	f, err := NewFanOut()
	if err != nil {
		t.Fatalf("NewFanOut: %v", err)
	}
	if f.VideoTrack() == nil || f.AudioTrack() == nil {
		t.Fatal("expected non-nil video and audio tracks")
	}
	if f.VideoTrack().ID() == f.AudioTrack().ID() {
		t.Fatal("video and audio tracks should have distinct ids")
	}
}

func TestWriteVideoWithNoSubscribersDoesNotError(t *testing.T) {
	f, err := NewFanOut()
	if err != nil {
		t.Fatalf("NewFanOut: %v", err)
	}
	// With no peer connections bound yet, WriteSample should be a no-op,
	// not an error — PeerSessions subscribe asynchronously after admission.
	if err := f.WriteVideo([]byte{0x00, 0x00, 0x00, 0x01}, 90_000); err != nil {
		t.Fatalf("WriteVideo: %v", err)
	}
	if err := f.WriteVideo([]byte{0x00, 0x00, 0x00, 0x01}, 180_000); err != nil {
		t.Fatalf("WriteVideo second call: %v", err)
	}
}
