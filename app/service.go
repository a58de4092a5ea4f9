package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/railops/wagonmatch/api"
	"github.com/railops/wagonmatch/config"
	"github.com/railops/wagonmatch/core/allot"
	"github.com/railops/wagonmatch/core/audit"
	"github.com/railops/wagonmatch/core/catalog"
	"github.com/railops/wagonmatch/core/match"
	coremetrics "github.com/railops/wagonmatch/core/metrics"
	"github.com/railops/wagonmatch/core/registry"
	"github.com/railops/wagonmatch/infra/logger"
	"github.com/railops/wagonmatch/infra/metrics"
	"github.com/railops/wagonmatch/infra/mqtt"
	"github.com/railops/wagonmatch/internal/eventbus"
)

// Service wires the engine components and runs the HTTP adapter.
type Service struct {
	Registry     *registry.Registry
	Catalog      *catalog.Catalog
	Orchestrator *allot.Orchestrator

	cfg      *config.Config
	store    audit.Store
	bus      *eventbus.Bus[coremetrics.AllotmentEvent]
	notifier mqtt.Notifier
	log      logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	store, err := newAuditStore(cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(nil)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.Sink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New[coremetrics.AllotmentEvent]()
	var notifier mqtt.Notifier
	if cfg.MQTT.Enabled {
		notifier, err = mqtt.NewPahoNotifier(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
	}

	reg := registry.New(cfg.Registry)
	cat := catalog.New()
	matcher := match.New(cfg.Matching)
	orch := allot.New(reg, cat, matcher, store, sink, bus, logger.New("orchestrator"))

	return &Service{
		Registry:     reg,
		Catalog:      cat,
		Orchestrator: orch,
		cfg:          cfg,
		store:        store,
		bus:          bus,
		notifier:     notifier,
		log:          logg,
	}, nil
}

func newAuditStore(cfg config.AuditConfig) (audit.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return audit.NewSQLiteStore(cfg.Path)
	case "memory":
		return audit.NewMemoryStore(), nil
	default:
		return audit.NewJSONLStore(cfg.Path)
	}
}

// Run starts the HTTP adapter and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.notifier != nil {
		mqtt.StartForwarder(ctx, s.bus, s.notifier, s.log)
	}
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	server := api.NewServer(s.Registry, s.Catalog, s.Orchestrator, s.store, s.cfg.API.Token, logger.New("api"))
	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: server.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Infof("listening on %s", s.cfg.API.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if s.notifier != nil {
		s.notifier.Close()
	}
	return s.store.Close()
}
