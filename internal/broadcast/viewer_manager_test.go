package broadcast

import (
	"context"
	"testing"
	"time"
)

func TestViewerManagerAuthenticateBlocksUntilPermit(t *testing.T) {
	vm := NewViewerManager(nil)
	done := make(chan *DeclineReason, 1)

	go func() {
		reason, err := vm.Authenticate(context.Background(), JoinAttempt{UUID: "v1"})
		if err != nil {
			t.Error(err)
		}
		done <- reason
	}()

	// Give the goroutine time to register as pending.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(vm.PendingViewers()) == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if len(vm.PendingViewers()) != 1 {
		t.Fatal("expected exactly one pending viewer")
	}

	if err := vm.Permit("v1"); err != nil {
		t.Fatalf("Permit: %v", err)
	}

	select {
	case reason := <-done:
		if reason != nil {
			t.Fatalf("expected admission, got decline reason %v", *reason)
		}
	case <-time.After(time.Second):
		t.Fatal("Authenticate did not return after Permit")
	}

	if len(vm.PendingViewers()) != 0 {
		t.Fatal("viewer should no longer be pending")
	}
	if len(vm.ViewingViewers()) != 1 {
		t.Fatal("viewer should now be viewing")
	}
}

func TestViewerManagerDeclineResultsInDeclineReason(t *testing.T) {
	vm := NewViewerManager(nil)
	done := make(chan *DeclineReason, 1)

	go func() {
		reason, _ := vm.Authenticate(context.Background(), JoinAttempt{UUID: "v2"})
		done <- reason
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(vm.PendingViewers()) == 0 {
		time.Sleep(time.Millisecond)
	}
	if err := vm.Decline("v2"); err != nil {
		t.Fatalf("Decline: %v", err)
	}

	reason := <-done
	if reason == nil {
		t.Fatal("expected a decline reason")
	}
	if len(vm.ViewingViewers()) != 0 {
		t.Fatal("declined viewer should not be viewing")
	}
}

func TestPermitUnknownUUIDReturnsError(t *testing.T) {
	vm := NewViewerManager(nil)
	if err := vm.Permit("ghost"); err == nil {
		t.Fatal("expected error permitting an unknown uuid")
	}
}

func TestPendingAndViewingAreMutuallyExclusive(t *testing.T) {
	vm := NewViewerManager(nil)
	done := make(chan struct{})
	go func() {
		vm.Authenticate(context.Background(), JoinAttempt{UUID: "v3"})
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(vm.PendingViewers()) == 0 {
		time.Sleep(time.Millisecond)
	}
	vm.Permit("v3")
	<-done

	pending := vm.PendingViewers()
	viewing := vm.ViewingViewers()
	if len(pending) != 0 {
		t.Fatalf("expected 0 pending, got %d", len(pending))
	}
	if len(viewing) != 1 {
		t.Fatalf("expected 1 viewing, got %d", len(viewing))
	}
}
