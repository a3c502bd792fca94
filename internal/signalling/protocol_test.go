package signalling

import (
	"encoding/json"
	"testing"
)

func TestEncodeDecodeOfferRoundTrip(t *testing.T) {
	data, err := encode(Envelope{
		Type: TypeOffer,
		From: selfUUID,
		To:   "abc-123",
		SDP:  "v=0\r\n...",
		ICEServers: []ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != TypeOffer {
		t.Fatalf("Type = %q, want %q", env.Type, TypeOffer)
	}
	if env.To != "abc-123" {
		t.Fatalf("To = %q, want abc-123", env.To)
	}
	if env.SDP != "v=0\r\n..." {
		t.Fatalf("SDP = %q", env.SDP)
	}
	if len(env.ICEServers) != 1 || env.ICEServers[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Fatalf("ICEServers = %+v", env.ICEServers)
	}
}

func TestEncodeOmitsUnsetFields(t *testing.T) {
	data, err := encode(Envelope{Type: TypeKeepAlive})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("expected only the type field, got %v", raw)
	}
}

func TestAuthPayloadNoneTagRoundTrips(t *testing.T) {
	data, err := json.Marshal(Envelope{Type: TypeJoin, From: "v1", Auth: &AuthPayload{Type: AuthTypeNone}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Auth == nil || env.Auth.Type != AuthTypeNone {
		t.Fatalf("Auth = %+v, want type none", env.Auth)
	}
}

func TestSelfUUIDIsLiteralZero(t *testing.T) {
	if selfUUID != "0" {
		t.Fatalf("selfUUID = %q, want %q", selfUUID, "0")
	}
}
