package mqtt

import (
	"context"
	"testing"
	"time"

	coremetrics "github.com/railops/wagonmatch/core/metrics"
	"github.com/railops/wagonmatch/core/model"
	"github.com/railops/wagonmatch/infra/logger"
	"github.com/railops/wagonmatch/internal/eventbus"
)

func TestConfigValidate(t *testing.T) {
	cfg := Config{Enabled: true}
	cfg.SetDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("enabled notifier without broker must not validate")
	}
	cfg.Broker = "tcp://localhost:1883"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.ClientID != "wagonmatch" || cfg.TopicPrefix != "wagonmatch" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestForwarderDeliversAllotmentEvents(t *testing.T) {
	bus := eventbus.New[coremetrics.AllotmentEvent]()
	mock := NewMockNotifier()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartForwarder(ctx, bus, mock, logger.NopLogger{})

	bus.Publish(coremetrics.AllotmentEvent{
		AllotmentID: "a1",
		IndentID:    "IN001",
		Location:    "Kalyan Yard",
		WagonType:   "BOXN",
		Count:       9,
		State:       model.AllotmentConfirmed,
		Time:        time.Now(),
	})

	deadline := time.After(2 * time.Second)
	for {
		if got := mock.Notified(); len(got) == 1 {
			if got[0].AllotmentID != "a1" {
				t.Fatalf("unexpected event: %+v", got[0])
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("forwarder never delivered the event")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
