package metrics

import (
	"time"

	"github.com/railops/wagonmatch/core/model"
)

// AllotmentEvent captures one allotment state transition.
type AllotmentEvent struct {
	AllotmentID string
	IndentID    string
	Location    string
	WagonType   string
	Count       int
	State       model.AllotmentState
	Actor       string
	Time        time.Time
}

// ReservationEvent captures the outcome of one supply reservation.
type ReservationEvent struct {
	Location  string
	WagonType string
	Count     int
	Granted   bool
	Time      time.Time
}

// MatchEvent captures one ranking run against the catalog.
type MatchEvent struct {
	IndentID   string
	Candidates int
	TopScore   float64
	Time       time.Time
}

// Sink records engine events for observability purposes.
type Sink interface {
	RecordAllotment(ev AllotmentEvent) error
	RecordReservation(ev ReservationEvent) error
	RecordMatch(ev MatchEvent) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordAllotment(AllotmentEvent) error     { return nil }
func (NopSink) RecordReservation(ReservationEvent) error { return nil }
func (NopSink) RecordMatch(MatchEvent) error             { return nil }
