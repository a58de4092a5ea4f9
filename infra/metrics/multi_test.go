package metrics

import (
	"sync"
	"testing"
	"time"

	coremetrics "github.com/railops/wagonmatch/core/metrics"
	"github.com/railops/wagonmatch/core/model"
)

type countingSink struct {
	mu           sync.Mutex
	allotments   int
	reservations int
	matches      int
}

func (c *countingSink) RecordAllotment(coremetrics.AllotmentEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allotments++
	return nil
}

func (c *countingSink) RecordReservation(coremetrics.ReservationEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reservations++
	return nil
}

func (c *countingSink) RecordMatch(coremetrics.MatchEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matches++
	return nil
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	multi := NewMultiSink(a, b)
	ev := coremetrics.AllotmentEvent{AllotmentID: "a1", State: model.AllotmentProposed, Time: time.Now()}
	if err := multi.RecordAllotment(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := multi.RecordReservation(coremetrics.ReservationEvent{Granted: true}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := multi.RecordMatch(coremetrics.MatchEvent{Candidates: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}
	for _, s := range []*countingSink{a, b} {
		if s.allotments != 1 || s.reservations != 1 || s.matches != 1 {
			t.Errorf("sink missed events: %+v", s)
		}
	}
}
