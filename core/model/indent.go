package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Priority classifies how urgently an indent must be served.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	default:
		return "unknown"
	}
}

// IndentStatus tracks an indent through its lifecycle. The status only
// advances Open -> Matched -> Allotted -> Closed; cancellation of an
// allotment returns the indent to Open.
type IndentStatus int

const (
	IndentOpen IndentStatus = iota
	IndentMatched
	IndentAllotted
	IndentClosed
)

// String returns a human-readable representation of the status.
func (s IndentStatus) String() string {
	switch s {
	case IndentOpen:
		return "Open"
	case IndentMatched:
		return "Matched"
	case IndentAllotted:
		return "Allotted"
	case IndentClosed:
		return "Closed"
	default:
		return "unknown"
	}
}

// Indent represents a freight request awaiting wagon allotment.
type Indent struct {
	ID           string
	Commodity    string
	QuantityTons float64
	Origin       string
	Destination  string
	Requester    string
	Priority     Priority

	// AgePendingDays grows while the indent stays unfulfilled and feeds
	// the urgency score.
	AgePendingDays int

	WagonTypeRequired  string
	WagonCountRequired int

	// PenaltyRisk is the monetary exposure accrued if the indent remains
	// unfulfilled.
	PenaltyRisk decimal.Decimal

	UrgencyScore float64
	Status       IndentStatus
}

// Validate checks that the indent is well formed before registration.
func (i Indent) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("indent id is required")
	}
	if i.QuantityTons <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if i.WagonCountRequired <= 0 {
		return fmt.Errorf("wagon count must be positive")
	}
	if i.AgePendingDays < 0 {
		return fmt.Errorf("pending age cannot be negative")
	}
	if i.WagonTypeRequired == "" {
		return fmt.Errorf("wagon type is required")
	}
	return nil
}

// Allottable reports whether an allotment may be proposed against the
// indent in its current status.
func (i Indent) Allottable() bool {
	return i.Status == IndentOpen || i.Status == IndentMatched
}
