package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/mira-screenshare/sharer/internal/capture"
	"github.com/mira-screenshare/sharer/internal/signalling"
)

// PeerState is the lifecycle of one viewer's peer connection. The
// broadcaster is always the SDP offerer: it creates the offer before the
// viewer exists in WebRTC terms, then waits on the signaller for the
// answer.
type PeerState int

const (
	PeerNew PeerState = iota
	PeerOffered
	PeerAnswered
	PeerGatheringICE
	PeerConnected
	PeerFailed
	PeerDisconnected
	PeerClosed
)

func (s PeerState) String() string {
	switch s {
	case PeerNew:
		return "new"
	case PeerOffered:
		return "offered"
	case PeerAnswered:
		return "answered"
	case PeerGatheringICE:
		return "gathering_ice"
	case PeerConnected:
		return "connected"
	case PeerFailed:
		return "failed"
	case PeerDisconnected:
		return "disconnected"
	case PeerClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// KeyframeRequester lets a PeerSession forward a viewer's RTCP PLI/FIR up to
// the shared encoder, since the encoder is upstream of the fan-out and not
// owned by any single peer.
type KeyframeRequester interface {
	ForceKeyframe() error
}

// QualityController consumes per-peer RTCP receiver-report samples so the
// shared encoder's bitrate can track the worst observed network conditions.
type QualityController interface {
	Update(rtt time.Duration, packetLoss float64)
}

// PeerOptions groups the shared collaborators every session is built from.
type PeerOptions struct {
	ICEServers []signalling.ICEServer
	AnswerWait time.Duration
	FanOut     *FanOut
	Signaller  *signalling.Client
	Keyframes  KeyframeRequester
	Input      capture.InputHandler
	Quality    QualityController
}

// PeerSession is one viewer's WebRTC connection, sharing the broadcast's
// video/audio tracks via FanOut rather than encoding anything itself.
type PeerSession struct {
	uuid    string
	pc      *webrtc.PeerConnection
	sig     *signalling.Client
	kf      KeyframeRequester
	input   capture.InputHandler
	quality QualityController

	cursorDC *webrtc.DataChannel

	mu    sync.Mutex
	state PeerState

	closeOnce sync.Once
	closed    chan struct{}
}

const (
	iceGatherTimeout  = 20 * time.Second
	defaultAnswerWait = 3 * time.Second
)

// NewPeerSession creates the PeerConnection, wires the fan-out tracks, and
// starts the offerer flow: local offer -> send over signalling -> wait for
// answer -> set remote description -> wait for ICE gathering. opts.Input may
// be nil, in which case inbound input data-channel messages are discarded
// (a view-only broadcast). opts.AnswerWait <= 0 falls back to the default 3s.
func NewPeerSession(ctx context.Context, uuid string, opts PeerOptions) (*PeerSession, error) {
	cfg := webrtc.Configuration{}
	for _, s := range opts.ICEServers {
		cfg.ICEServers = append(cfg.ICEServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	if _, err := pc.AddTrack(opts.FanOut.VideoTrack()); err != nil {
		pc.Close()
		return nil, fmt.Errorf("add video track: %w", err)
	}
	if _, err := pc.AddTrack(opts.FanOut.AudioTrack()); err != nil {
		pc.Close()
		return nil, fmt.Errorf("add audio track: %w", err)
	}

	ps := &PeerSession{
		uuid:    uuid,
		pc:      pc,
		sig:     opts.Signaller,
		kf:      opts.Keyframes,
		input:   opts.Input,
		quality: opts.Quality,
		state:   PeerNew,
		closed:  make(chan struct{}),
	}

	// The cursor channel is unreliable on purpose: stale positions are
	// worthless, so lost updates should be dropped, not retransmitted.
	ordered := false
	var noRetransmits uint16
	cursorDC, err := pc.CreateDataChannel("cursor", &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &noRetransmits,
	})
	if err != nil {
		log.Warn("cursor channel unavailable", "uuid", uuid, "error", err)
	} else {
		ps.cursorDC = cursorDC
	}

	pc.OnConnectionStateChange(ps.onConnectionStateChange)
	pc.OnDataChannel(ps.onDataChannel)
	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		init := cand.ToJSON()
		out := signalling.ICECandidate{Candidate: init.Candidate, SDPMLineIndex: init.SDPMLineIndex}
		if init.SDPMid != nil {
			out.SDPMid = *init.SDPMid
		}
		if err := ps.sig.SendICE(uuid, out); err != nil {
			log.Warn("trickle local ice candidate failed", "uuid", uuid, "error", err)
		}
	})
	for _, sender := range pc.GetSenders() {
		go ps.drainRTCP(sender)
	}

	answerWait := opts.AnswerWait
	if answerWait <= 0 {
		answerWait = defaultAnswerWait
	}
	if err := ps.negotiate(ctx, opts.ICEServers, answerWait); err != nil {
		pc.Close()
		return nil, err
	}

	go ps.handleRemoteICE()

	return ps, nil
}

func (ps *PeerSession) negotiate(ctx context.Context, iceServers []signalling.ICEServer, answerWait time.Duration) error {
	offer, err := ps.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := ps.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	ps.setState(PeerOffered)

	if err := ps.sig.SendOffer(ps.uuid, offer.SDP, iceServers); err != nil {
		return fmt.Errorf("send offer: %w", err)
	}

	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < answerWait {
			answerWait = d
		}
	}
	answerSDP, err := ps.sig.RecvAnswer(ps.uuid, answerWait)
	if err != nil {
		return fmt.Errorf("recv answer: %w", err)
	}
	ps.setState(PeerAnswered)

	if err := ps.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answerSDP,
	}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	ps.setState(PeerGatheringICE)
	return ps.waitICEGatheringComplete()
}

func (ps *PeerSession) waitICEGatheringComplete() error {
	gatherComplete := webrtc.GatheringCompletePromise(ps.pc)
	select {
	case <-gatherComplete:
		return nil
	case <-time.After(iceGatherTimeout):
		// Trickle ICE means a partial candidate set is still usable;
		// proceeding here matches the original offerer flow's lenient wait.
		return nil
	}
}

func (ps *PeerSession) handleRemoteICE() {
	ch := ps.sig.RecvICE(ps.uuid)
	if ch == nil {
		return
	}
	for {
		select {
		case <-ps.closed:
			return
		case cand, ok := <-ch:
			if !ok {
				return
			}
			init := webrtc.ICECandidateInit{Candidate: cand.Candidate}
			if cand.SDPMid != "" {
				mid := cand.SDPMid
				init.SDPMid = &mid
			}
			if cand.SDPMLineIndex != nil {
				init.SDPMLineIndex = cand.SDPMLineIndex
			}
			if err := ps.pc.AddICECandidate(init); err != nil {
				log.Warn("add ice candidate failed", "uuid", ps.uuid, "error", err)
			}
		}
	}
}

// drainRTCP reads RTCP from a sender so PLI/FIR keyframe requests reach the
// shared encoder instead of piling up unread in pion's internal buffers.
func (ps *PeerSession) drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		n, _, err := sender.Read(buf)
		if err != nil {
			return
		}
		packets, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			continue
		}
		for _, pkt := range packets {
			switch p := pkt.(type) {
			case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
				if ps.kf != nil {
					if err := ps.kf.ForceKeyframe(); err != nil {
						log.Warn("force keyframe failed", "uuid", ps.uuid, "error", err)
					}
				}
			case *rtcp.ReceiverReport:
				if ps.quality == nil {
					continue
				}
				for _, report := range p.Reports {
					loss := float64(report.FractionLost) / 256
					// RTT needs matched SR/DLSR bookkeeping pion doesn't
					// surface here; loss alone drives the controller.
					ps.quality.Update(0, loss)
				}
			}
		}
	}
}

// onDataChannel wires the "input" data channel a viewer opens for mouse and
// keyboard events. The cursor channel flows the other way and is created
// locally in NewPeerSession, so it never arrives here.
func (ps *PeerSession) onDataChannel(dc *webrtc.DataChannel) {
	if dc.Label() != "input" {
		return
	}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if ps.input == nil {
			return
		}
		var event capture.InputEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Warn("malformed input event", "uuid", ps.uuid, "error", err)
			return
		}
		if err := ps.input.HandleEvent(event); err != nil {
			log.Warn("input event handling failed", "uuid", ps.uuid, "error", err)
		}
	})
}

type cursorUpdate struct {
	Type    string `json:"type"`
	X       int32  `json:"x"`
	Y       int32  `json:"y"`
	Visible bool   `json:"visible"`
}

// SendCursor pushes one cursor-position update over the unreliable cursor
// channel. Dropped silently until the channel opens or if the send buffer
// is congested.
func (ps *PeerSession) SendCursor(x, y int32, visible bool) {
	dc := ps.cursorDC
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return
	}
	msg, err := json.Marshal(cursorUpdate{Type: "cursor", X: x, Y: y, Visible: visible})
	if err != nil {
		return
	}
	if err := dc.Send(msg); err != nil {
		log.Warn("cursor channel send failed", "uuid", ps.uuid, "error", err)
	}
}

func (ps *PeerSession) onConnectionStateChange(s webrtc.PeerConnectionState) {
	switch s {
	case webrtc.PeerConnectionStateConnected:
		ps.setState(PeerConnected)
		// Re-key so the freshly connected viewer can decode from its very
		// first delivered frame instead of waiting out a GOP.
		if ps.kf != nil {
			if err := ps.kf.ForceKeyframe(); err != nil {
				log.Warn("keyframe request on connect failed", "uuid", ps.uuid, "error", err)
			}
		}
	case webrtc.PeerConnectionStateFailed:
		ps.setState(PeerFailed)
		ps.Close()
	case webrtc.PeerConnectionStateDisconnected:
		ps.setState(PeerDisconnected)
	case webrtc.PeerConnectionStateClosed:
		ps.setState(PeerClosed)
	}
}

func (ps *PeerSession) setState(s PeerState) {
	ps.mu.Lock()
	ps.state = s
	ps.mu.Unlock()
	log.Info("peer session state", "uuid", ps.uuid, "state", s.String())
}

func (ps *PeerSession) State() PeerState {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.state
}

// Close tears down the peer connection and signals any goroutines reading
// from the signalling channels to stop.
func (ps *PeerSession) Close() error {
	var err error
	ps.closeOnce.Do(func() {
		close(ps.closed)
		err = ps.pc.Close()
		ps.sig.DropPeer(ps.uuid)
	})
	return err
}
