package store

import (
	"errors"
	"fmt"
)

// DuplicateIDError is returned when an append reuses an existing localId.
type DuplicateIDError struct {
	LocalID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("event %s already exists", e.LocalID)
}

// NotFoundError is returned when a status update addresses an unknown localId.
type NotFoundError struct {
	LocalID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("event %s not found", e.LocalID)
}

// ErrNotRegistered is returned while no TerminalConfig row exists. The sync
// engine refuses to start on it; stamping keeps working regardless.
var ErrNotRegistered = errors.New("terminal is not registered")
