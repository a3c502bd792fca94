package signalling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mira-screenshare/sharer/internal/logging"
)

var log = logging.L("signalling")

const (
	writeWait       = 10 * time.Second
	handshakeWait   = 10 * time.Second
	initialBackoff  = 1 * time.Second
	maxBackoff      = 30 * time.Second
	backoffFactor   = 2.0
	jitterFactor    = 0.3
	outboundBufSize = 8
)

// JoinRequest is a pending admission request surfaced to the broadcaster's
// authenticator/viewer manager.
type JoinRequest struct {
	UUID        string
	DisplayName string
	Auth        AuthPayload
}

// PeerChannel is the per-viewer routing surface a PeerSession pulls from:
// one answer (at most once) and a stream of trickled ICE candidates.
type PeerChannel struct {
	answers chan string
	ice     chan ICECandidate
	leave   chan struct{}
	once    sync.Once
}

func newPeerChannel() *PeerChannel {
	return &PeerChannel{
		answers: make(chan string, 1),
		ice:     make(chan ICECandidate, 16),
		leave:   make(chan struct{}),
	}
}

func (p *PeerChannel) close() {
	p.once.Do(func() { close(p.leave) })
}

// Client owns the single WebSocket connection to the signaller and routes
// per-viewer messages to the right PeerChannel by uuid.
type Client struct {
	url string

	mu        sync.Mutex
	conn      *websocket.Conn
	peers     map[string]*PeerChannel
	joins     chan JoinRequest
	started   chan StartResponsePayload
	done      chan struct{}
	stopOnce  sync.Once
	outbound  chan []byte
	keepAlive time.Duration
}

// New creates a signalling client for the given signaller URL. Room
// passwords are never sent to the signaller — they are enforced locally by
// the broadcaster's Authenticator chain against each viewer's join auth.
func New(url string, keepAlive time.Duration) *Client {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &Client{
		url:       url,
		peers:     make(map[string]*PeerChannel),
		joins:     make(chan JoinRequest, 16),
		started:   make(chan StartResponsePayload, 1),
		done:      make(chan struct{}),
		outbound:  make(chan []byte, outboundBufSize),
		keepAlive: keepAlive,
	}
}

// Run dials the signaller and blocks, reconnecting with backoff, until ctx
// is cancelled or Stop is called.
func (c *Client) Run(ctx context.Context) {
	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		if err := c.connectAndServe(ctx); err != nil {
			log.Warn("signalling connection dropped", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		jitter := time.Duration(float64(backoff) * jitterFactor * (rand.Float64()*2 - 1))
		sleep := backoff + jitter
		if sleep < 0 {
			sleep = backoff
		}
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-time.After(sleep):
		}
		backoff = time.Duration(float64(backoff) * backoffFactor)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) connectAndServe(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeWait}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	log.Info("connected to signaller", "url", c.url)

	startMsg, err := encode(Envelope{Type: TypeStart})
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, startMsg); err != nil {
		return fmt.Errorf("send start: %w", err)
	}

	pumpDone := make(chan struct{})
	go c.writePump(conn, pumpDone)
	err = c.readLoop(conn)
	close(pumpDone)
	return err
}

func (c *Client) writePump(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-c.done:
			return
		case msg := <-c.outbound:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Warn("write failed", "error", err)
				return
			}
		case <-ticker.C:
			msg, err := encode(Envelope{Type: TypeKeepAlive})
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Warn("keep_alive write failed", "error", err)
				return
			}
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn("malformed envelope", "error", err)
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env Envelope) {
	switch env.Type {
	case TypeStartResponse:
		select {
		case c.started <- StartResponsePayload{Room: env.Room}:
		default:
		}

	case TypeJoin:
		if env.From == "" || env.From == selfUUID {
			return
		}
		auth := AuthPayload{Type: AuthTypeNone}
		if env.Auth != nil {
			auth = *env.Auth
		}
		c.mu.Lock()
		if _, exists := c.peers[env.From]; !exists {
			c.peers[env.From] = newPeerChannel()
		}
		c.mu.Unlock()
		select {
		case c.joins <- JoinRequest{UUID: env.From, DisplayName: env.Name, Auth: auth}:
		default:
			log.Warn("join queue full, dropping request", "uuid", env.From)
		}

	case TypeAnswer:
		if env.From == "" || env.From == selfUUID {
			return
		}
		if pc := c.peerChannel(env.From); pc != nil {
			select {
			case pc.answers <- env.SDP:
			default:
			}
		}

	case TypeICE:
		if env.From == "" || env.From == selfUUID || env.ICE == nil {
			return
		}
		if pc := c.peerChannel(env.From); pc != nil {
			select {
			case pc.ice <- *env.ICE:
			default:
				log.Warn("ice queue full, dropping candidate", "uuid", env.From)
			}
		}

	case TypeLeave:
		if env.From == "" || env.From == selfUUID {
			return
		}
		c.mu.Lock()
		pc := c.peers[env.From]
		delete(c.peers, env.From)
		c.mu.Unlock()
		if pc != nil {
			pc.close()
		}

	case TypeKeepAlive:
		// no-op, just resets read idleness expectations upstream

	default:
		log.Warn("unrecognized message type, ignoring", "type", env.Type)
	}
}

func (c *Client) peerChannel(uuid string) *PeerChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peers[uuid]
}

// Joins returns the channel of pending admission requests.
func (c *Client) Joins() <-chan JoinRequest { return c.joins }

// WaitStarted blocks until the signaller acknowledges the start request.
func (c *Client) WaitStarted(ctx context.Context) (StartResponsePayload, error) {
	select {
	case p := <-c.started:
		return p, nil
	case <-ctx.Done():
		return StartResponsePayload{}, ctx.Err()
	case <-c.done:
		return StartResponsePayload{}, errors.New("signalling client stopped")
	}
}

// RegisterPeer ensures a routing slot for uuid exists even before a join
// payload arrives, so offers can be sent proactively.
func (c *Client) RegisterPeer(uuid string) *PeerChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	pc, ok := c.peers[uuid]
	if !ok {
		pc = newPeerChannel()
		c.peers[uuid] = pc
	}
	return pc
}

// DropPeer removes routing state for a viewer that has been kicked or
// disconnected locally.
func (c *Client) DropPeer(uuid string) {
	c.mu.Lock()
	pc := c.peers[uuid]
	delete(c.peers, uuid)
	c.mu.Unlock()
	if pc != nil {
		pc.close()
	}
}

func (c *Client) send(env Envelope) error {
	msg, err := encode(env)
	if err != nil {
		return err
	}
	select {
	case c.outbound <- msg:
		return nil
	case <-c.done:
		return errors.New("signalling client stopped")
	default:
		return errors.New("outbound queue full")
	}
}

// SendOffer transmits an SDP offer to a specific viewer, along with the
// resolved ICE servers for that room. The broadcaster is always the
// offerer in this protocol.
func (c *Client) SendOffer(uuid, sdp string, iceServers []ICEServer) error {
	return c.send(Envelope{Type: TypeOffer, From: selfUUID, To: uuid, SDP: sdp, ICEServers: iceServers})
}

// SendICE trickles one local ICE candidate to a viewer.
func (c *Client) SendICE(uuid string, candidate ICECandidate) error {
	return c.send(Envelope{Type: TypeICE, From: selfUUID, To: uuid, ICE: &candidate})
}

// DeclineJoin rejects a pending admission request with a reason.
func (c *Client) DeclineJoin(uuid, reason string) error {
	err := c.send(Envelope{Type: TypeJoinDeclined, To: uuid, Reason: reason})
	c.DropPeer(uuid)
	return err
}

// RecvAnswer waits up to timeout for the named viewer's SDP answer.
func (c *Client) RecvAnswer(uuid string, timeout time.Duration) (string, error) {
	pc := c.peerChannel(uuid)
	if pc == nil {
		return "", fmt.Errorf("no peer channel for %s", uuid)
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case sdp := <-pc.answers:
		return sdp, nil
	case <-pc.leave:
		return "", fmt.Errorf("viewer %s left before answering", uuid)
	case <-timer.C:
		return "", fmt.Errorf("timed out waiting for answer from %s", uuid)
	case <-c.done:
		return "", errors.New("signalling client stopped")
	}
}

// RecvICE returns the channel of trickled remote ICE candidates for a viewer.
func (c *Client) RecvICE(uuid string) <-chan ICECandidate {
	pc := c.peerChannel(uuid)
	if pc == nil {
		return nil
	}
	return pc.ice
}

// Left returns a channel closed once the viewer sends (or is inferred to
// have sent) a leave message.
func (c *Client) Left(uuid string) <-chan struct{} {
	pc := c.peerChannel(uuid)
	if pc == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return pc.leave
}

// Stop tears down the connection and all peer routing state.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		conn := c.conn
		for _, pc := range c.peers {
			pc.close()
		}
		c.mu.Unlock()
		if conn != nil {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
		}
	})
}
