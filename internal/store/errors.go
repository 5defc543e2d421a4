package store

import (
	"errors"
	"fmt"

	"github.com/nhle/shared-lists/internal/keys"
)

var (
	// ErrNotFound means the list does not exist for the caller, directly or
	// through a shared link.
	ErrNotFound = errors.New("not found")
	// ErrConflict means the write collides with existing state.
	ErrConflict = errors.New("conflict")
	// ErrInvalidOperation means the request can never succeed as issued.
	ErrInvalidOperation = errors.New("invalid operation")
)

// UpstreamError wraps a failure of the table or the identity directory.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}

func validateIDs(userID, listID string) error {
	if err := keys.ValidateUserID(userID); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidOperation)
	}
	if err := keys.ValidateListID(listID); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidOperation)
	}
	return nil
}
