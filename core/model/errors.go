package model

import "fmt"

// NotFoundError is returned when an id does not resolve to a known
// indent, wagon pool, allotment or reservation.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// InvalidStateError is returned when an operation is attempted on an
// indent or allotment that is not in an eligible state.
type InvalidStateError struct {
	Kind  string
	ID    string
	State string
	Op    string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %q in state %s", e.Op, e.Kind, e.ID, e.State)
}
