package broadcast

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/mira-screenshare/sharer/internal/capture"
	"github.com/mira-screenshare/sharer/internal/recording"
	"github.com/mira-screenshare/sharer/internal/signalling"
)

// Config collects everything the Supervisor needs to run one broadcast.
type Config struct {
	SignallerURL string
	ViewerURL    string
	ICEServers   []signalling.ICEServer
	MaxViewers   int
	Password     string

	// RequireApproval adds the interactive admission step: each join blocks
	// until the operator calls Permit or Decline on the ViewerManager. Off,
	// the password check alone decides.
	RequireApproval  bool
	AllowRemoteInput bool

	AnswerTimeout       time.Duration
	CaptureConfig       capture.CaptureConfig
	EncoderConfig       capture.EncoderConfig
	Recording           recording.Settings
	ResourceLogInterval time.Duration

	// OnUpdate is invoked whenever observable state changes: room assigned,
	// pending/viewing sets change, supervisor starts or stops. May be nil.
	OnUpdate func()
}

// Supervisor owns the capture -> encode -> fan-out pipeline and the set of
// connected viewers for a single broadcast session. It is the top-level
// object cmd/broadcaster wires up.
type Supervisor struct {
	cfg     Config
	sig     *signalling.Client
	auth    Authenticator
	viewers *ViewerManager
	fanout  *FanOut
	sink    recording.OutputSink

	capturer     capture.ScreenCapturer
	encoder      *capture.VideoEncoder
	input        capture.InputHandler
	sourceFormat capture.PixelFormat
	onUpdate     func()

	adaptive *capture.AdaptiveBitrate
	metrics  *capture.StreamMetrics
	differ   *capture.FrameDiffer
	fpsCh    chan int

	mu      sync.Mutex
	peers   map[string]*PeerSession
	roomID  string
	running bool
	cancel  context.CancelFunc
}

func NewSupervisor(cfg Config, sig *signalling.Client) (*Supervisor, error) {
	if cfg.MaxViewers <= 0 {
		cfg.MaxViewers = 8
	}
	if cfg.ResourceLogInterval <= 0 {
		cfg.ResourceLogInterval = 30 * time.Second
	}

	if cfg.EncoderConfig.SourceRate == 0 {
		// The capture loop stamps frames with a frame counter, so the
		// source clock ticks at the configured frame rate.
		fps := cfg.EncoderConfig.FPS
		if fps <= 0 {
			fps = 30
		}
		cfg.EncoderConfig.SourceRate = int64(fps)
	}

	capturer, err := capture.NewScreenCapturer(cfg.CaptureConfig)
	if err != nil {
		return nil, fmt.Errorf("new screen capturer: %w", err)
	}
	encoder, err := capture.NewVideoEncoder(cfg.EncoderConfig)
	if err != nil {
		capturer.Close()
		return nil, fmt.Errorf("new video encoder: %w", err)
	}

	// Check the declared encoder input format against what the capturer
	// actually produces; a mismatch is a fatal configuration error, not
	// something to silently convert around.
	sourceFormat := cfg.EncoderConfig.InputFormat
	if bp, ok := capturer.(capture.BGRAProvider); ok {
		if bp.IsBGRA() {
			sourceFormat = capture.PixelFormatBGRA
		} else {
			sourceFormat = capture.PixelFormatRGBA
		}
	}
	if err := encoder.ConfigurePixelFormat(sourceFormat); err != nil {
		capturer.Close()
		encoder.Close()
		return nil, fmt.Errorf("encoder pixel format: %w", err)
	}

	fanout, err := NewFanOut()
	if err != nil {
		capturer.Close()
		encoder.Close()
		return nil, fmt.Errorf("new fan-out: %w", err)
	}

	sink, err := recording.New(context.Background(), cfg.Recording)
	if err != nil {
		capturer.Close()
		encoder.Close()
		return nil, fmt.Errorf("new recording sink: %w", err)
	}

	onUpdate := cfg.OnUpdate
	if onUpdate == nil {
		onUpdate = func() {}
	}

	vm := NewViewerManager(onUpdate)
	pwAuth, err := NewPasswordAuthenticator(cfg.Password)
	if err != nil {
		capturer.Close()
		encoder.Close()
		sink.Close(context.Background())
		return nil, err
	}
	var auth Authenticator = pwAuth
	if cfg.RequireApproval {
		auth = NewComplexAuthenticator(pwAuth, vm)
	}

	var input capture.InputHandler
	if cfg.AllowRemoteInput {
		input = capture.NewInputHandler()
	}

	fpsCh := make(chan int, 1)
	maxBitrate := cfg.EncoderConfig.Bitrate
	if maxBitrate <= 0 {
		maxBitrate = 2_500_000
	}
	minBitrate := maxBitrate / 8
	if minBitrate < 250_000 {
		minBitrate = 250_000
	}
	adaptive, err := capture.NewAdaptiveBitrate(capture.AdaptiveConfig{
		Encoder:        encoder,
		InitialBitrate: maxBitrate,
		MinBitrate:     minBitrate,
		MaxBitrate:     maxBitrate,
		MaxFPS:         cfg.EncoderConfig.FPS,
		OnFPSChange: func(fps int) {
			select {
			case fpsCh <- fps:
			default:
			}
		},
	})
	if err != nil {
		log.Warn("adaptive bitrate disabled", "error", err)
	}

	return &Supervisor{
		cfg:          cfg,
		sig:          sig,
		auth:         auth,
		viewers:      vm,
		fanout:       fanout,
		sink:         sink,
		capturer:     capturer,
		encoder:      encoder,
		input:        input,
		sourceFormat: sourceFormat,
		onUpdate:     onUpdate,
		adaptive:     adaptive,
		metrics:      capture.NewStreamMetrics(),
		differ:       capture.NewFrameDiffer(),
		fpsCh:        fpsCh,
		peers:        make(map[string]*PeerSession),
	}, nil
}

// ViewerManager exposes admission state for an operator UI / CLI to permit
// or decline pending viewers.
func (s *Supervisor) ViewerManager() *ViewerManager { return s.viewers }

// Run drives the capture loop, the join-request loop, and periodic resource
// logging until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("supervisor already running")
	}
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()
	s.onUpdate()

	go s.sig.Run(ctx)

	started, err := s.sig.WaitStarted(ctx)
	if err != nil {
		return fmt.Errorf("wait for signaller start: %w", err)
	}
	s.mu.Lock()
	s.roomID = started.Room
	s.mu.Unlock()
	s.onUpdate()
	log.Info("broadcast room started", "room", started.Room, "invite", s.InviteLink())

	var wg sync.WaitGroup
	wg.Add(5)
	go func() { defer wg.Done(); s.captureLoop(ctx) }()
	go func() { defer wg.Done(); s.audioLoop(ctx) }()
	go func() { defer wg.Done(); s.cursorLoop(ctx) }()
	go func() { defer wg.Done(); s.joinLoop(ctx) }()
	go func() { defer wg.Done(); s.resourceLoop(ctx) }()
	wg.Wait()

	return s.Shutdown(context.Background())
}

// IsRunning reports whether the supervisor is between Run and Shutdown.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RoomID returns the room assigned by the signaller, or "" before start.
func (s *Supervisor) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// InviteLink builds the URL a viewer opens to join the room, or "" until the
// room is assigned.
func (s *Supervisor) InviteLink() string {
	s.mu.Lock()
	room := s.roomID
	s.mu.Unlock()
	if room == "" || s.cfg.ViewerURL == "" {
		return ""
	}
	q := url.Values{}
	q.Set("room", room)
	q.Set("signaller", s.cfg.SignallerURL)
	return s.cfg.ViewerURL + "?" + q.Encode()
}

// PendingViewers and ViewingViewers expose the admission sets for an
// operator UI.
func (s *Supervisor) PendingViewers() []Viewer { return s.viewers.PendingViewers() }
func (s *Supervisor) ViewingViewers() []Viewer { return s.viewers.ViewingViewers() }

func (s *Supervisor) captureLoop(ctx context.Context) {
	fps := s.cfg.EncoderConfig.FPS
	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var frameIndex int64
	var width, height int
	for {
		select {
		case <-ctx.Done():
			return

		case newFPS := <-s.fpsCh:
			// Adaptive bitrate scaled the frame rate with the bitrate so
			// every frame keeps enough bits.
			if newFPS > 0 {
				ticker.Reset(time.Second / time.Duration(newFPS))
			}

		case <-ticker.C:
			captureStart := time.Now()
			img, err := s.capturer.Capture()
			if err != nil {
				log.Warn("capture failed", "error", err)
				continue
			}
			if img == nil {
				s.metrics.RecordSkip()
				continue
			}
			s.metrics.RecordCapture(time.Since(captureStart))

			if s.cfg.CaptureConfig.ScaleFactor > 0 && s.cfg.CaptureConfig.ScaleFactor < 1.0 {
				scaleStart := time.Now()
				img = capture.ScaleImageFast(img, s.cfg.CaptureConfig.ScaleFactor)
				s.metrics.RecordScale(time.Since(scaleStart))
			}

			if !s.differ.HasChanged(img.Pix) {
				s.metrics.RecordSkip()
				continue
			}

			if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
				width, height = b.Dx(), b.Dy()
				if err := s.encoder.SetDimensions(width, height); err != nil {
					log.Warn("encoder resize failed", "width", width, "height", height, "error", err)
					width, height = 0, 0
					continue
				}
				s.differ.Reset()
			}

			var nv12 []byte
			if s.sourceFormat == capture.PixelFormatBGRA {
				nv12 = capture.BGRAToNV12(img)
			} else {
				nv12 = capture.RGBAToNV12(img)
			}
			frameIndex++
			encodeStart := time.Now()
			data, pts, err := s.encoder.Encode(nv12, frameIndex)
			if err != nil {
				s.metrics.RecordDrop()
				log.Warn("encode failed", "error", err)
				continue
			}
			if data == nil {
				s.metrics.RecordSkip()
				continue // buffered or skipped inside the backend
			}
			s.metrics.RecordEncode(time.Since(encodeStart), len(data))

			if err := s.fanout.WriteVideo(data, pts); err != nil {
				log.Warn("fan-out write failed", "error", err)
			} else {
				s.metrics.RecordSend(len(data))
			}
			if err := s.sink.Write(data, pts); err != nil {
				log.Warn("recording sink write failed", "error", err)
			}
		}
	}
}

// cursorLoop streams cursor positions over each peer's unreliable cursor
// channel, decoupled from the video frame rate so the pointer stays smooth
// even when frames are skipped as unchanged.
func (s *Supervisor) cursorLoop(ctx context.Context) {
	cp, ok := s.capturer.(capture.CursorProvider)
	if !ok {
		return
	}
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var lastX, lastY int32
	var lastVisible, seen bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			x, y, visible := cp.CursorPosition()
			if seen && x == lastX && y == lastY && visible == lastVisible {
				continue
			}
			lastX, lastY, lastVisible, seen = x, y, visible, true

			s.mu.Lock()
			peers := make([]*PeerSession, 0, len(s.peers))
			for _, p := range s.peers {
				peers = append(peers, p)
			}
			s.mu.Unlock()
			for _, p := range peers {
				p.SendCursor(x, y, visible)
			}
		}
	}
}

// audioLoop ferries Opus chunks from the platform audio source into the
// fan-out's audio track. Platforms without an audio backend produce a nil
// source and the loop exits quietly, leaving a video-only broadcast.
func (s *Supervisor) audioLoop(ctx context.Context) {
	src, err := capture.NewAudioSource()
	if err != nil {
		log.Warn("audio source unavailable", "error", err)
		return
	}
	if src == nil {
		return
	}
	if err := src.Start(); err != nil {
		log.Warn("audio capture start failed", "error", err)
		return
	}
	defer src.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case chunk := <-src.Chunks():
			if err := s.fanout.WriteAudio(chunk.Data, chunk.Duration); err != nil {
				log.Warn("fan-out audio write failed", "error", err)
			}
		}
	}
}

func (s *Supervisor) joinLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-s.sig.Joins():
			if !ok {
				return
			}
			go s.handleJoin(ctx, req)
		}
	}
}

func (s *Supervisor) handleJoin(ctx context.Context, req signalling.JoinRequest) {
	s.mu.Lock()
	atCapacity := len(s.peers) >= s.cfg.MaxViewers
	s.mu.Unlock()
	if atCapacity {
		s.sig.DeclineJoin(req.UUID, string(DeclineAtCapacity))
		return
	}

	attempt := JoinAttempt{UUID: req.UUID, DisplayName: req.DisplayName, Auth: req.Auth}
	reason, err := s.auth.Authenticate(ctx, attempt)
	if err != nil {
		log.Warn("authentication aborted", "uuid", req.UUID, "error", err)
		return
	}
	if reason != nil {
		s.sig.DeclineJoin(req.UUID, string(*reason))
		return
	}
	if !s.cfg.RequireApproval {
		// The interactive ViewerManager step was skipped, so the viewer has
		// to be registered as viewing here for kick/observability to see it.
		s.viewers.Admit(req.UUID, req.DisplayName)
	}

	s.sig.RegisterPeer(req.UUID)
	peer, err := NewPeerSession(ctx, req.UUID, PeerOptions{
		ICEServers: s.cfg.ICEServers,
		AnswerWait: s.cfg.AnswerTimeout,
		FanOut:     s.fanout,
		Signaller:  s.sig,
		Keyframes:  s.encoder,
		Input:      s.input,
		Quality:    s.adaptive,
	})
	if err != nil {
		log.Warn("peer session setup failed", "uuid", req.UUID, "error", err)
		s.sig.DropPeer(req.UUID)
		s.viewers.Left(req.UUID)
		return
	}

	s.mu.Lock()
	s.peers[req.UUID] = peer
	s.mu.Unlock()

	if err := s.encoder.ForceKeyframe(); err != nil {
		log.Warn("keyframe request on join failed", "error", err)
	}

	go func() {
		<-s.sig.Left(req.UUID)
		s.Kick(req.UUID)
	}()
}

// Kick disconnects a viewer, releasing both the peer connection and the
// admission record.
func (s *Supervisor) Kick(uuid string) {
	s.mu.Lock()
	peer := s.peers[uuid]
	delete(s.peers, uuid)
	s.mu.Unlock()
	if peer != nil {
		peer.Close()
	}
	s.viewers.Left(uuid)
}

func (s *Supervisor) resourceLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ResourceLogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logResourceSnapshot()
		}
	}
}

func (s *Supervisor) logResourceSnapshot() {
	percents, err := cpu.Percent(0, false)
	var cpuPct float64
	if err == nil && len(percents) > 0 {
		cpuPct = percents[0]
	}
	vm, err := mem.VirtualMemory()
	var memPct float64
	if err == nil {
		memPct = vm.UsedPercent
	}
	s.mu.Lock()
	viewerCount := len(s.peers)
	s.mu.Unlock()
	snap := s.metrics.Snapshot()
	log.Info("resource snapshot",
		"cpu_percent", cpuPct,
		"mem_percent", memPct,
		"viewers", viewerCount,
		"frames_sent", snap.FramesSent,
		"frames_skipped", snap.FramesSkipped,
		"frames_dropped", snap.FramesDropped,
		"encode_ms", snap.EncodeMs,
		"bandwidth_kbps", snap.BandwidthKBps*8,
	)
}

// Shutdown stops the capture pipeline, closes all peer connections, and
// finalizes the recording sink.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	peers := s.peers
	s.peers = make(map[string]*PeerSession)
	s.running = false
	s.roomID = ""
	s.mu.Unlock()

	for _, p := range peers {
		p.Close()
	}
	s.viewers.Clear()
	s.sig.Stop()
	s.capturer.Close()
	s.encoder.Close()
	err := s.sink.Close(ctx)
	s.onUpdate()
	return err
}
