// Package mqtt publishes allotment transitions to an MQTT broker so
// downstream systems (section controller consoles, yard displays) can
// follow the engine without polling it.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremetrics "github.com/railops/wagonmatch/core/metrics"
	"github.com/railops/wagonmatch/infra/logger"
	"github.com/railops/wagonmatch/internal/eventbus"
)

// Config defines the connection parameters for the notifier.
type Config struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
	TimeoutMS   int    `json:"timeout_ms"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "wagonmatch"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "wagonmatch"
	}
	if c.TimeoutMS == 0 {
		c.TimeoutMS = 5000
	}
}

// Validate checks mandatory fields when the notifier is enabled.
func (c Config) Validate() error {
	if c.Enabled && c.Broker == "" {
		return fmt.Errorf("mqtt broker is required when the notifier is enabled")
	}
	return nil
}

// Notifier publishes one allotment transition.
type Notifier interface {
	NotifyAllotment(ev coremetrics.AllotmentEvent) error
	Close()
}

// PahoNotifier implements Notifier using Eclipse Paho.
type PahoNotifier struct {
	cli     paho.Client
	prefix  string
	qos     byte
	timeout time.Duration
	log     logger.Logger
}

// NewPahoNotifier connects to the broker.
func NewPahoNotifier(cfg Config) (*PahoNotifier, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.New("mqtt_notifier")
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected") }
	opts.OnConnectionLost = func(_ paho.Client, err error) { log.Errorf("connection lost: %v", err) }
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &PahoNotifier{
		cli:     cli,
		prefix:  cfg.TopicPrefix,
		qos:     cfg.QoS,
		timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		log:     log,
	}, nil
}

// NotifyAllotment publishes the transition as JSON on
// <prefix>/allotments/<indent id>.
func (n *PahoNotifier) NotifyAllotment(ev coremetrics.AllotmentEvent) error {
	payload, err := json.Marshal(map[string]any{
		"allotment_id": ev.AllotmentID,
		"indent_id":    ev.IndentID,
		"location":     ev.Location,
		"wagon_type":   ev.WagonType,
		"count":        ev.Count,
		"state":        ev.State.String(),
		"actor":        ev.Actor,
		"time":         ev.Time.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/allotments/%s", n.prefix, ev.IndentID)
	token := n.cli.Publish(topic, n.qos, false, payload)
	if !token.WaitTimeout(n.timeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (n *PahoNotifier) Close() { n.cli.Disconnect(250) }

// StartForwarder subscribes to the allotment bus and forwards every
// event to the notifier until the context is cancelled.
func StartForwarder(ctx context.Context, bus eventbus.EventBus[coremetrics.AllotmentEvent], n Notifier, log logger.Logger) {
	if bus == nil || n == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := n.NotifyAllotment(ev); err != nil {
					log.Errorf("notify allotment %s: %v", ev.AllotmentID, err)
				}
			}
		}
	}()
}
