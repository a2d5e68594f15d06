package entity

import (
	"errors"
	"fmt"
)

var (
	ErrMissingRevision = errors.New("diff is missing a revision")
	ErrUnknownAction   = errors.New("unknown action type")
)

// MissingRevisionError rejects a diff that would establish an entity's
// metadata without a revision.
type MissingRevisionError struct {
	ID ID
}

func (e *MissingRevisionError) Error() string {
	return fmt.Sprintf("entity %d: %s", e.ID, ErrMissingRevision)
}

func (e *MissingRevisionError) Unwrap() error {
	return ErrMissingRevision
}
