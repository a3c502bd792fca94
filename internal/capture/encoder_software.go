package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	openh264 "github.com/y9o/go-openh264"
)

var (
	openh264LoadOnce sync.Once
	openh264LoadErr  error
)

// loadOpenH264 locates and opens the OpenH264 shared library. Safe to call
// repeatedly; the actual load happens once per process.
func loadOpenH264() error {
	openh264LoadOnce.Do(func() {
		candidates := []string{
			os.Getenv("OPENH264_LIBRARY"),
			"openh264-2.4.1.so",
			"openh264-2.4.1-win64.dll",
			filepath.Join(filepath.Dir(os.Args[0]), "openh264-2.4.1-win64.dll"),
			filepath.Join(filepath.Dir(os.Args[0]), "libopenh264.so.6"),
		}
		for _, c := range candidates {
			if c == "" {
				continue
			}
			if err := openh264.Open(c); err == nil {
				return
			}
		}
		openh264LoadErr = errors.New("openh264: unable to locate shared library")
	})
	return openh264LoadErr
}

// softwareEncoder is the non-hardware H.264 backend: a real OpenH264 encode
// path rather than a byte passthrough. It accepts NV12 input, de-interleaves
// the chroma plane into I420 (OpenH264's native color format) and calls into
// the vendored Cisco codec.
type softwareEncoder struct {
	mu         sync.Mutex
	cfg        EncoderConfig
	enc        *openh264.ISVCEncoder
	width      int32
	height     int32
	frameIndex int64
	pinner     runtime.Pinner
	forceIDR   bool
	i420       []byte // scratch buffer, reused across frames
}

func newSoftwareEncoder(cfg EncoderConfig) (encoderBackend, error) {
	if err := loadOpenH264(); err != nil {
		return nil, fmt.Errorf("software encoder: %w", err)
	}
	return &softwareEncoder{cfg: cfg}, nil
}

// ensureInit (re)initializes the underlying encoder once dimensions are
// known; NV12 frames don't carry their own dimensions, so the first Encode
// call (or an explicit SetDimensions) triggers this.
func (s *softwareEncoder) ensureInit(width, height int32) error {
	if s.enc != nil && s.width == width && s.height == height {
		return nil
	}
	if s.enc != nil {
		s.enc.Uninitialize()
		openh264.WelsDestroySVCEncoder(s.enc)
		s.enc = nil
	}
	if width == 0 || height == 0 {
		return errors.New("software encoder: dimensions not set")
	}

	var enc *openh264.ISVCEncoder
	if ret := openh264.WelsCreateSVCEncoder(&enc); ret != 0 || enc == nil {
		return fmt.Errorf("software encoder: WelsCreateSVCEncoder failed: %d", ret)
	}

	fps := float32(s.cfg.FPS)
	if fps <= 0 {
		fps = 30
	}
	param := openh264.SEncParamBase{
		IUsageType:     openh264.SCREEN_CONTENT_REAL_TIME,
		IPicWidth:      width,
		IPicHeight:     height,
		ITargetBitrate: int32(s.cfg.Bitrate),
		FMaxFrameRate:  fps,
	}
	if ret := enc.Initialize(&param); ret != 0 {
		openh264.WelsDestroySVCEncoder(enc)
		return fmt.Errorf("software encoder: Initialize failed: %d", ret)
	}

	s.enc = enc
	s.width = width
	s.height = height
	s.frameIndex = 0
	return nil
}

// Encode accepts a tightly-packed NV12 frame (full-res Y plane followed by a
// half-res interleaved UV plane) sized for the encoder's configured
// dimensions and returns an Annex-B byte stream.
func (s *softwareEncoder) Encode(frame []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(frame) == 0 {
		return nil, errors.New("software encoder: empty frame")
	}
	if s.enc == nil {
		return nil, errors.New("software encoder: dimensions not configured")
	}

	ySize := int(s.width) * int(s.height)
	cStride := int(s.width) / 2
	cSize := cStride * int(s.height) / 2
	uvInterleavedSize := cSize * 2
	if len(frame) < ySize+uvInterleavedSize {
		return nil, fmt.Errorf("software encoder: frame too small: got %d want >= %d", len(frame), ySize+uvInterleavedSize)
	}

	yPlane := frame[:ySize]
	uvPlane := frame[ySize : ySize+uvInterleavedSize]

	if cap(s.i420) < cSize*2 {
		s.i420 = make([]byte, cSize*2)
	}
	cb := s.i420[:cSize]
	cr := s.i420[cSize : cSize*2]
	for i := 0; i < cSize; i++ {
		cb[i] = uvPlane[i*2]
		cr[i] = uvPlane[i*2+1]
	}

	s.pinner.Pin(&yPlane[0])
	s.pinner.Pin(&cb[0])
	s.pinner.Pin(&cr[0])
	defer s.pinner.Unpin()

	src := openh264.SSourcePicture{
		IColorFormat: openh264.VideoFormatI420,
		IStride:      [4]int32{s.width, int32(cStride), int32(cStride), 0},
		IPicWidth:    s.width,
		IPicHeight:   s.height,
		UiTimeStamp:  s.frameIndex * int64(1000/max1(s.cfg.FPS)),
	}
	src.PData[0] = (*uint8)(unsafe.Pointer(&yPlane[0]))
	src.PData[1] = (*uint8)(unsafe.Pointer(&cb[0]))
	src.PData[2] = (*uint8)(unsafe.Pointer(&cr[0]))

	if s.forceIDR {
		s.enc.ForceIntraFrame(true)
		s.forceIDR = false
	}

	var info openh264.SFrameBSInfo
	if ret := s.enc.EncodeFrame(&src, &info); ret != openh264.CmResultSuccess {
		return nil, fmt.Errorf("software encoder: EncodeFrame failed: %d", ret)
	}
	s.frameIndex++

	if info.EFrameType == openh264.VideoFrameTypeSkip {
		return nil, nil
	}

	var out []byte
	for layer := 0; layer < int(info.ILayerNum); layer++ {
		li := &info.SLayerInfo[layer]
		var layerSize int32
		lens := unsafe.Slice(li.PNalLengthInByte, li.INalCount)
		for _, l := range lens {
			layerSize += l
		}
		out = append(out, unsafe.Slice(li.PBsBuf, layerSize)...)
	}
	return out, nil
}

func (s *softwareEncoder) ForceKeyframe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceIDR = true
	return nil
}

func (s *softwareEncoder) SetCodec(codec Codec) error {
	if codec != CodecH264 {
		return fmt.Errorf("%w: software backend only supports h264", ErrInvalidCodec)
	}
	return nil
}

func (s *softwareEncoder) SetQuality(quality QualityPreset) error {
	if !quality.valid() {
		return fmt.Errorf("%w: %s", ErrInvalidQuality, quality)
	}
	s.mu.Lock()
	s.cfg.Quality = quality
	s.mu.Unlock()
	return nil
}

func (s *softwareEncoder) SetBitrate(bitrate int) error {
	if bitrate <= 0 {
		return ErrInvalidBitrate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Bitrate = bitrate
	if s.enc != nil {
		opt := openh264.SBitrateInfo{IBitrate: int32(bitrate)}
		s.enc.SetOption(openh264.ENCODER_OPTION_BITRATE, (*int)(unsafe.Pointer(&opt)))
	}
	return nil
}

func (s *softwareEncoder) SetFPS(fps int) error {
	if fps <= 0 {
		return ErrInvalidFPS
	}
	s.mu.Lock()
	s.cfg.FPS = fps
	s.mu.Unlock()
	return nil
}

func (s *softwareEncoder) SetDimensions(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// NV12 needs even dimensions; OpenH264 pads to macroblocks internally.
	return s.ensureInit(int32(width)&^1, int32(height)&^1)
}

func (s *softwareEncoder) SetPixelFormat(pf PixelFormat) {
	// NV12 is the only format this backend accepts; BGRA producers must
	// convert upstream (colorconv.go) before calling Encode.
}

func (s *softwareEncoder) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc != nil {
		s.enc.Uninitialize()
		openh264.WelsDestroySVCEncoder(s.enc)
		s.enc = nil
	}
	return nil
}

func (s *softwareEncoder) Name() string        { return "openh264-software" }
func (s *softwareEncoder) IsHardware() bool    { return false }
func (s *softwareEncoder) IsPlaceholder() bool { return false }

func max1(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}
