package mqtt

import (
	"fmt"
	"sync"

	coremetrics "github.com/railops/wagonmatch/core/metrics"
)

// MockNotifier records notified events for tests.
type MockNotifier struct {
	mu     sync.Mutex
	Events []coremetrics.AllotmentEvent
	Fail   bool
}

// NewMockNotifier creates a new MockNotifier.
func NewMockNotifier() *MockNotifier { return &MockNotifier{} }

// NotifyAllotment records the event or fails if configured to.
func (m *MockNotifier) NotifyAllotment(ev coremetrics.AllotmentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return fmt.Errorf("publish failed")
	}
	m.Events = append(m.Events, ev)
	return nil
}

// Close implements Notifier.
func (m *MockNotifier) Close() {}

// Notified returns a copy of the recorded events.
func (m *MockNotifier) Notified() []coremetrics.AllotmentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]coremetrics.AllotmentEvent, len(m.Events))
	copy(out, m.Events)
	return out
}
