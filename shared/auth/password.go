// Package auth checks the shared site password.
package auth

import (
	"crypto/subtle"
	"errors"
)

var (
	// ErrNotConfigured means no site password is set on the server.
	ErrNotConfigured = errors.New("site password is not configured")
	// ErrInvalidPassword means the supplied password did not match.
	ErrInvalidPassword = errors.New("invalid password")
)

type Verifier struct {
	secret []byte
}

func NewVerifier(sitePassword string) *Verifier {
	return &Verifier{secret: []byte(sitePassword)}
}

// Verify compares password with the configured secret in constant time.
func (v *Verifier) Verify(password string) error {
	if len(v.secret) == 0 {
		return ErrNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(password), v.secret) != 1 {
		return ErrInvalidPassword
	}
	return nil
}
