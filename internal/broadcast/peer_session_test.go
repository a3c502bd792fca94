package broadcast

import "testing"

func TestPeerStateString(t *testing.T) {
	cases := []struct {
		state PeerState
		want  string
	}{
		{PeerNew, "new"},
		{PeerOffered, "offered"},
		{PeerAnswered, "answered"},
		{PeerGatheringICE, "gathering_ice"},
		{PeerConnected, "connected"},
		{PeerFailed, "failed"},
		{PeerDisconnected, "disconnected"},
		{PeerClosed, "closed"},
		{PeerState(99), "unknown"},
	}
	for _, c := range cases {
		if got := c.state.String(); got != c.want {
			t.Errorf("PeerState(%d).String() = %q, want %q", c.state, got, c.want)
		}
	}
}
