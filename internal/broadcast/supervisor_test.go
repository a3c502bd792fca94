package broadcast

import (
	"testing"
)

func TestInviteLinkEmptyBeforeRoomAssigned(t *testing.T) {
	s := &Supervisor{cfg: Config{
		SignallerURL: "wss://signal.example.com/ws",
		ViewerURL:    "https://view.example.com",
	}}
	if link := s.InviteLink(); link != "" {
		t.Fatalf("InviteLink before start = %q, want empty", link)
	}
}

func TestInviteLinkCarriesRoomAndSignaller(t *testing.T) {
	s := &Supervisor{cfg: Config{
		SignallerURL: "wss://signal.example.com/ws",
		ViewerURL:    "https://view.example.com",
	}}
	s.roomID = "room-42"

	want := "https://view.example.com?room=room-42&signaller=wss%3A%2F%2Fsignal.example.com%2Fws"
	if got := s.InviteLink(); got != want {
		t.Fatalf("InviteLink = %q, want %q", got, want)
	}
}

func TestIsRunningFalseBeforeRun(t *testing.T) {
	s := &Supervisor{}
	if s.IsRunning() {
		t.Fatal("supervisor should not report running before Run")
	}
}

func TestKickAbsentUUIDIsNoOp(t *testing.T) {
	s := &Supervisor{
		viewers: NewViewerManager(nil),
		peers:   make(map[string]*PeerSession),
	}
	s.Kick("ghost")
	s.Kick("ghost")
	if len(s.viewers.ViewingViewers()) != 0 || len(s.peers) != 0 {
		t.Fatal("kicking an unknown uuid should change nothing")
	}
}

func TestViewerManagerAdmitRegistersViewing(t *testing.T) {
	vm := NewViewerManager(nil)
	vm.Admit("v9", "")

	viewing := vm.ViewingViewers()
	if len(viewing) != 1 {
		t.Fatalf("expected 1 viewing viewer, got %d", len(viewing))
	}
	if viewing[0].DisplayName != "v9" {
		t.Fatalf("DisplayName = %q, want uuid fallback", viewing[0].DisplayName)
	}

	// Left on an admitted viewer removes it; Left again is a no-op.
	vm.Left("v9")
	vm.Left("v9")
	if len(vm.ViewingViewers()) != 0 {
		t.Fatal("viewer should be gone after Left")
	}
}
