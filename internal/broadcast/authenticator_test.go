package broadcast

import (
	"context"
	"testing"

	"github.com/mira-screenshare/sharer/internal/signalling"
)

func TestPasswordAuthenticatorEmptyPasswordAdmitsAnyone(t *testing.T) {
	auth, err := NewPasswordAuthenticator("")
	if err != nil {
		t.Fatalf("NewPasswordAuthenticator: %v", err)
	}
	reason, err := auth.Authenticate(context.Background(), JoinAttempt{UUID: "v1"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if reason != nil {
		t.Fatalf("expected admission, got decline reason %v", *reason)
	}
}

func TestPasswordAuthenticatorRejectsWrongPassword(t *testing.T) {
	auth, _ := NewPasswordAuthenticator("sesame")
	reason, err := auth.Authenticate(context.Background(), JoinAttempt{UUID: "v1", Auth: signalling.AuthPayload{Type: signalling.AuthTypePassword, Password: "wrong"}})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if reason == nil || *reason != DeclineIncorrectPassword {
		t.Fatalf("expected DeclineIncorrectPassword, got %v", reason)
	}
}

func TestPasswordAuthenticatorRejectsMissingPassword(t *testing.T) {
	auth, _ := NewPasswordAuthenticator("sesame")
	reason, err := auth.Authenticate(context.Background(), JoinAttempt{UUID: "v1", Auth: signalling.AuthPayload{Type: signalling.AuthTypeNone}})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if reason == nil || *reason != DeclineNoCredentials {
		t.Fatalf("expected DeclineNoCredentials, got %v", reason)
	}
}

func TestPasswordAuthenticatorAdmitsCorrectPassword(t *testing.T) {
	auth, _ := NewPasswordAuthenticator("sesame")
	reason, err := auth.Authenticate(context.Background(), JoinAttempt{UUID: "v1", Auth: signalling.AuthPayload{Type: signalling.AuthTypePassword, Password: "sesame"}})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if reason != nil {
		t.Fatalf("expected admission, got %v", *reason)
	}
}

// declineAll always refuses, for testing short-circuit ordering.
type declineAll struct{ called *bool }

func (d declineAll) Authenticate(ctx context.Context, attempt JoinAttempt) (*DeclineReason, error) {
	if d.called != nil {
		*d.called = true
	}
	reason := DeclineUserDeclined
	return &reason, nil
}

func TestComplexAuthenticatorShortCircuitsOnFirstDecline(t *testing.T) {
	secondCalled := false
	first := declineAll{}
	second := declineAll{called: &secondCalled}
	chain := NewComplexAuthenticator(first, second)

	reason, err := chain.Authenticate(context.Background(), JoinAttempt{UUID: "v1"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if reason == nil {
		t.Fatal("expected a decline reason")
	}
	if secondCalled {
		t.Fatal("second authenticator should not run after first declines")
	}
}

func TestComplexAuthenticatorAdmitsWhenAllAdmit(t *testing.T) {
	passA, _ := NewPasswordAuthenticator("")
	passB, _ := NewPasswordAuthenticator("")
	chain := NewComplexAuthenticator(passA, passB)

	reason, err := chain.Authenticate(context.Background(), JoinAttempt{UUID: "v1"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if reason != nil {
		t.Fatalf("expected admission, got %v", *reason)
	}
}

func TestRandomPasswordProducesRequestedLength(t *testing.T) {
	pw, err := RandomPassword(8)
	if err != nil {
		t.Fatalf("RandomPassword: %v", err)
	}
	if len(pw) != 8 {
		t.Fatalf("len(pw) = %d, want 8", len(pw))
	}
}
