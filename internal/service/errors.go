package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument indicates malformed or missing input. Nothing was written.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound indicates the referenced action does not exist.
	ErrNotFound = errors.New("action not found")
	// ErrWrongType indicates the action exists but is not the variant the operation requires.
	ErrWrongType = errors.New("action has the wrong type for this operation")
	// ErrAlreadyRevoked indicates the action has already been revoked.
	ErrAlreadyRevoked = errors.New("action already revoked")
	// ErrPermissionDenied indicates the caller may not revoke actions of this type.
	ErrPermissionDenied = errors.New("permission denied for action type")
	// ErrRevocationPending indicates a revocation request is already awaiting review.
	ErrRevocationPending = errors.New("revocation request already pending")
)

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func wrapInvalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
}
