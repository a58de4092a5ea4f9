package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/railops/wagonmatch/core/metrics"
)

// PromSink records engine events as Prometheus metrics.
type PromSink struct {
	allotments   *prometheus.CounterVec
	reservations *prometheus.CounterVec
	matchScores  prometheus.Histogram
}

// NewPromSink registers the engine metrics on the provided registerer.
// If reg is nil, the default registerer is used. Already registered
// collectors are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	allotments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allotment_transitions_total",
		Help: "Total number of allotment state transitions",
	}, []string{"state", "wagon_type", "location"})
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supply_reservations_total",
		Help: "Total number of supply reservation attempts",
	}, []string{"wagon_type", "granted"})
	matchScores := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "match_top_score",
		Help:    "Top match score per ranking run",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	if err := reg.Register(allotments); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			allotments = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(reservations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			reservations = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(matchScores); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			matchScores = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}

	return &PromSink{allotments: allotments, reservations: reservations, matchScores: matchScores}, nil
}

// RecordAllotment increments the transition counter.
func (s *PromSink) RecordAllotment(ev coremetrics.AllotmentEvent) error {
	s.allotments.WithLabelValues(ev.State.String(), ev.WagonType, ev.Location).Inc()
	return nil
}

// RecordReservation increments the reservation counter.
func (s *PromSink) RecordReservation(ev coremetrics.ReservationEvent) error {
	s.reservations.WithLabelValues(ev.WagonType, strconv.FormatBool(ev.Granted)).Inc()
	return nil
}

// RecordMatch observes the top score of a ranking run.
func (s *PromSink) RecordMatch(ev coremetrics.MatchEvent) error {
	s.matchScores.Observe(ev.TopScore)
	return nil
}

// StartPromServer exposes /metrics on the given port until the context is
// cancelled.
func StartPromServer(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
