package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AllotmentState tracks an allotment through its lifecycle. Transitions
// are strictly forward: Proposed -> Confirmed -> Dispatched -> Completed,
// with Cancelled reachable from Proposed or Confirmed only.
type AllotmentState int

const (
	AllotmentProposed AllotmentState = iota
	AllotmentConfirmed
	AllotmentDispatched
	AllotmentCompleted
	AllotmentCancelled
)

// String returns a human-readable representation of the state.
func (s AllotmentState) String() string {
	switch s {
	case AllotmentProposed:
		return "Proposed"
	case AllotmentConfirmed:
		return "Confirmed"
	case AllotmentDispatched:
		return "Dispatched"
	case AllotmentCompleted:
		return "Completed"
	case AllotmentCancelled:
		return "Cancelled"
	default:
		return "unknown"
	}
}

// Active reports whether the state still blocks other allotments for the
// same indent.
func (s AllotmentState) Active() bool {
	switch s {
	case AllotmentProposed, AllotmentConfirmed, AllotmentDispatched:
		return true
	default:
		return false
	}
}

// Economics captures the money side of an allotment decision.
type Economics struct {
	EmptyRunCost   decimal.Decimal
	PenaltyAvoided decimal.Decimal
}

// Allotment is the committed pairing of one indent with one wagon pool.
type Allotment struct {
	ID            string
	IndentID      string
	Location      string
	WagonType     string
	CountAssigned int
	Economics     Economics
	State         AllotmentState
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
