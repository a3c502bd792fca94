package capture

import "testing"

func TestMax1(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 1},
		{-5, 1},
		{1, 1},
		{100, 100},
	}
	for _, c := range cases {
		if got := max1(c.in); got != c.want {
			t.Errorf("max1(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestSoftwareEncoderRejectsNonH264(t *testing.T) {
	s := &softwareEncoder{}
	if err := s.SetCodec(CodecVP8); err == nil {
		t.Fatal("expected error for non-h264 codec")
	}
	if err := s.SetCodec(CodecH264); err != nil {
		t.Fatalf("SetCodec(h264): %v", err)
	}
}

func TestSoftwareEncoderForceKeyframeSetsOneShotFlag(t *testing.T) {
	s := &softwareEncoder{}
	if err := s.ForceKeyframe(); err != nil {
		t.Fatalf("ForceKeyframe: %v", err)
	}
	if !s.forceIDR {
		t.Fatal("forceIDR flag should be set")
	}
}
