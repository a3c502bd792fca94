// Package signalling implements the JSON-over-WebSocket protocol the
// broadcaster uses to register itself and exchange SDP/ICE with viewers.
package signalling

import "encoding/json"

// MessageType identifies the kind of a signalling envelope. Unknown types
// are logged and ignored rather than treated as fatal, mirroring how the
// rest of the wire protocol tolerates forward-compatible additions.
type MessageType string

const (
	TypeStart         MessageType = "start"
	TypeStartResponse MessageType = "start_response"
	TypeJoin          MessageType = "join"
	TypeJoinDeclined  MessageType = "join_declined"
	TypeOffer         MessageType = "offer"
	TypeAnswer        MessageType = "answer"
	TypeICE           MessageType = "ice"
	TypeLeave         MessageType = "leave"
	TypeKeepAlive     MessageType = "keep_alive"
)

// selfUUID is the broadcaster's own wire identity in every envelope it
// sends or receives about itself.
const selfUUID = "0"

// AuthType tags the variant of AuthPayload.
type AuthType string

const (
	AuthTypePassword AuthType = "password"
	AuthTypeNone     AuthType = "none"
)

// AuthPayload is the credential a viewer presents when joining, an
// internally-tagged variant: {"type":"password","password":"..."} or
// {"type":"none"}.
type AuthPayload struct {
	Type     AuthType `json:"type"`
	Password string   `json:"password,omitempty"`
}

// ICEServer is one ice_servers entry, carried from config through to the
// offer so a viewer's browser gets the same TURN/STUN set the broadcaster
// resolved (including any Twilio/signaller-fetched credentials).
type ICEServer struct {
	URLs           []string `json:"urls"`
	Username       string   `json:"username,omitempty"`
	Credential     string   `json:"credential,omitempty"`
	CredentialType string   `json:"credential_type,omitempty"`
}

// ICECandidate carries one trickled ICE candidate.
type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        string  `json:"sdp_mid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdp_mline_index,omitempty"`
}

// Envelope is the single flat, internally-tagged shape every message on the
// wire shares: a "type" discriminant plus whichever top-level fields that
// type uses, the rest left as zero values and omitted. This mirrors the
// original's #[serde(tag = "type", rename_all = "snake_case")] enum rather
// than nesting a second payload object inside a generic envelope.
type Envelope struct {
	Type MessageType `json:"type"`

	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	Room       string        `json:"room,omitempty"`
	Name       string        `json:"name,omitempty"`
	Auth       *AuthPayload  `json:"auth,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	SDP        string        `json:"sdp,omitempty"`
	ICE        *ICECandidate `json:"ice,omitempty"`
	ICEServers []ICEServer   `json:"ice_servers,omitempty"`
}

// StartResponsePayload carries the room identifier assigned by the
// signaller in response to a start message.
type StartResponsePayload struct {
	Room string
}

func encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}
