// Package apperr holds the error taxonomy shared by the core packages and the
// HTTP layer. Callers classify with errors.Is / errors.As.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a fixed document id that is missing or not shared
	// with the service account.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation marks malformed input. No remote call has been made.
	ErrValidation = errors.New("validation error")
	// ErrUnauthorized marks a missing or mismatched shared secret.
	ErrUnauthorized = errors.New("unauthorized")
)

// StoreError wraps any failure returned by the remote tabular store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store wraps err as a *StoreError for op. A nil err stays nil.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func Configuration(msg string) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, msg)
}

// IsStore reports whether err came from the remote store.
func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
