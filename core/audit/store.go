package audit

import (
	"context"
	"time"
)

// Entry records one state-changing action. Entries are immutable once
// appended; the store exposes no mutation API.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	IndentID  string    `json:"indent_id,omitempty"`
	Location  string    `json:"location,omitempty"`
	Summary   string    `json:"summary"`
}

// Query defines filters for retrieving entries.
type Query struct {
	IndentID string
	Actor    string
	Since    time.Time
	Until    time.Time
}

// Store persists audit entries append-only and supports querying. Append
// failures are fatal to the operation that triggered the entry; callers
// must not treat the transition as committed.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Query(ctx context.Context, q Query) ([]Entry, error)
	Close() error
}

func (q Query) matches(e Entry) bool {
	if q.IndentID != "" && e.IndentID != q.IndentID {
		return false
	}
	if q.Actor != "" && e.Actor != q.Actor {
		return false
	}
	if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && e.Timestamp.After(q.Until) {
		return false
	}
	return true
}
