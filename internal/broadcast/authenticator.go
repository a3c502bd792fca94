// Package broadcast implements the broadcaster-side session state: viewer
// admission, the shared media fan-out, and the per-viewer peer connection
// lifecycle.
package broadcast

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/mira-screenshare/sharer/internal/signalling"
)

// DeclineReason explains to a viewer (and to logs) why a join was refused.
type DeclineReason string

const (
	DeclineIncorrectPassword DeclineReason = "incorrect_password"
	DeclineNoCredentials     DeclineReason = "no_credentials"
	DeclineUserDeclined      DeclineReason = "user_declined"
	DeclineAtCapacity        DeclineReason = "at_capacity"
)

// JoinAttempt is what a viewer presents when requesting admission.
type JoinAttempt struct {
	UUID        string
	DisplayName string
	Auth        signalling.AuthPayload
}

// Authenticator decides whether a join attempt is admitted. A nil return
// means admitted; a non-nil DeclineReason means refused.
type Authenticator interface {
	Authenticate(ctx context.Context, attempt JoinAttempt) (*DeclineReason, error)
}

// PasswordAuthenticator admits any viewer presenting the configured
// password. An empty configured password means the room is unprotected.
type PasswordAuthenticator struct {
	password string
}

func NewPasswordAuthenticator(password string) (*PasswordAuthenticator, error) {
	return &PasswordAuthenticator{password: password}, nil
}

// RandomPassword returns a random alphanumeric password of the given length.
// The gen-password command prints one; a room whose configured password is
// empty is not given one automatically and stays unprotected.
func RandomPassword(length int) (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

func (p *PasswordAuthenticator) Authenticate(ctx context.Context, attempt JoinAttempt) (*DeclineReason, error) {
	if p.password == "" {
		return nil, nil
	}
	if attempt.Auth.Type != signalling.AuthTypePassword {
		reason := DeclineNoCredentials
		return &reason, nil
	}
	if subtle.ConstantTimeCompare([]byte(attempt.Auth.Password), []byte(p.password)) != 1 {
		reason := DeclineIncorrectPassword
		return &reason, nil
	}
	return nil, nil
}

// ComplexAuthenticator chains authenticators, short-circuiting on the first
// decline. All must admit for the join to succeed.
type ComplexAuthenticator struct {
	chain []Authenticator
}

func NewComplexAuthenticator(chain ...Authenticator) *ComplexAuthenticator {
	return &ComplexAuthenticator{chain: chain}
}

func (c *ComplexAuthenticator) Authenticate(ctx context.Context, attempt JoinAttempt) (*DeclineReason, error) {
	for _, a := range c.chain {
		reason, err := a.Authenticate(ctx, attempt)
		if err != nil {
			return nil, err
		}
		if reason != nil {
			return reason, nil
		}
	}
	return nil, nil
}

var errNotWaiting = errors.New("viewer is not waiting on an admission decision")
