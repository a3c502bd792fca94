package signalling

import (
	"testing"
	"time"
)

func newTestClient() *Client {
	return New("wss://example.invalid/ws", time.Second)
}

func TestDispatchJoinQueuesRequest(t *testing.T) {
	c := newTestClient()
	c.dispatch(Envelope{Type: TypeJoin, From: "viewer-1", Name: "viewer-1"})

	select {
	case req := <-c.Joins():
		if req.UUID != "viewer-1" {
			t.Fatalf("UUID = %q, want viewer-1", req.UUID)
		}
		if req.Auth.Type != AuthTypeNone {
			t.Fatalf("Auth.Type = %q, want %q for a join with no auth object", req.Auth.Type, AuthTypeNone)
		}
	default:
		t.Fatal("expected a queued join request")
	}
}

func TestDispatchJoinDecodesPasswordAuth(t *testing.T) {
	c := newTestClient()
	c.dispatch(Envelope{Type: TypeJoin, From: "viewer-1", Auth: &AuthPayload{Type: AuthTypePassword, Password: "letmein"}})

	select {
	case req := <-c.Joins():
		if req.Auth.Type != AuthTypePassword || req.Auth.Password != "letmein" {
			t.Fatalf("Auth = %+v, want password/letmein", req.Auth)
		}
	default:
		t.Fatal("expected a queued join request")
	}
}

func TestDispatchIgnoresSelfUUID(t *testing.T) {
	c := newTestClient()
	c.dispatch(Envelope{Type: TypeJoin, From: selfUUID})

	select {
	case <-c.Joins():
		t.Fatal("self-uuid join should have been filtered")
	default:
	}
}

func TestDispatchAnswerDeliversToRegisteredPeer(t *testing.T) {
	c := newTestClient()
	c.RegisterPeer("viewer-2")
	c.dispatch(Envelope{Type: TypeAnswer, From: "viewer-2", SDP: "v=0"})

	sdp, err := c.RecvAnswer("viewer-2", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("RecvAnswer: %v", err)
	}
	if sdp != "v=0" {
		t.Fatalf("sdp = %q", sdp)
	}
}

func TestDispatchLeaveClosesPeerChannel(t *testing.T) {
	c := newTestClient()
	c.RegisterPeer("viewer-3")
	c.dispatch(Envelope{Type: TypeLeave, From: "viewer-3"})

	select {
	case <-c.Left("viewer-3"):
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected Left channel to be closed after leave")
	}
}

func TestRecvAnswerTimesOutWithoutAnswer(t *testing.T) {
	c := newTestClient()
	c.RegisterPeer("viewer-4")
	_, err := c.RecvAnswer("viewer-4", 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestUnknownMessageTypeIsIgnoredNotFatal(t *testing.T) {
	c := newTestClient()
	c.dispatch(Envelope{Type: MessageType("future_extension"), From: "viewer-5"})
	// no panic, no side effect to assert beyond "did not crash"
}
