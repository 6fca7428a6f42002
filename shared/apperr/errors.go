// Package apperr holds the error taxonomy shared by the adapters, the store
// and the analysis pipeline.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a source URL that no recognized shape matches.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConfiguration marks a required credential or setting that is absent.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a store miss. Handlers turn it into a 404.
	ErrNotFound = errors.New("not found")
)

// UpstreamError is returned when an external provider is unreachable,
// answers with a non-success status, or returns a payload we cannot use.
type UpstreamError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Upstream builds an UpstreamError. err may be nil.
func Upstream(provider, reason string, err error) error {
	return &UpstreamError{Provider: provider, Reason: reason, Err: err}
}

// StorageError wraps a failed store operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func Storage(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Configuration reports a missing setting, naming the env var that fixes it.
func Configuration(setting, envVar string) error {
	return fmt.Errorf("%w: %s is not set (set %s)", ErrConfiguration, setting, envVar)
}

// InvalidInput wraps ErrInvalidInput with a human-readable reason.
func InvalidInput(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}

// IsUpstream reports whether err came from an external provider.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// IsStorage reports whether err came from the result store.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
