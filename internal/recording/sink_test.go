package recording

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNewDefaultsToNoop(t *testing.T) {
	sink, err := New(context.Background(), Settings{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := sink.(NoopSink); !ok {
		t.Fatalf("expected NoopSink, got %T", sink)
	}
}

func TestNewFileSinkRequiresPath(t *testing.T) {
	_, err := New(context.Background(), Settings{Sink: "file"})
	if err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestFileSinkWritesLengthPrefixedFrames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	if err := sink.Write([]byte{0x00, 0x00, 0x00, 0x01}, 90000); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != 16+4 {
		t.Fatalf("size = %d, want %d", info.Size(), 16+4)
	}
}
