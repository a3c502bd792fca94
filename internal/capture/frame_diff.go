package capture

import (
	"hash/crc32"
	"sync"
)

// FrameDiffer detects unchanged frames via CRC32 hash of raw pixel data.
type FrameDiffer struct {
	mu          sync.Mutex
	lastHash    uint32
	hasLastHash bool
}

func NewFrameDiffer() *FrameDiffer {
	return &FrameDiffer{}
}

// HasChanged computes CRC32 of the Pix slice and returns true if it
// differs from the last sent frame. Returns true on the first frame.
func (d *FrameDiffer) HasChanged(pix []byte) bool {
	h := crc32.ChecksumIEEE(pix)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasLastHash && h == d.lastHash {
		return false
	}
	d.lastHash = h
	d.hasLastHash = true
	return true
}

// Reset clears the stored hash so the next frame always encodes, e.g.
// after an encoder resize.
func (d *FrameDiffer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasLastHash = false
}
