package metrics

import coremetrics "github.com/railops/wagonmatch/core/metrics"

// MultiSink fans engine events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAllotment forwards the event to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordAllotment(ev coremetrics.AllotmentEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordAllotment(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordReservation forwards the event to all sinks.
func (m *MultiSink) RecordReservation(ev coremetrics.ReservationEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordReservation(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordMatch forwards the event to all sinks.
func (m *MultiSink) RecordMatch(ev coremetrics.MatchEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordMatch(ev); err != nil {
			return err
		}
	}
	return nil
}
