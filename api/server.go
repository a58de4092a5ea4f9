// Package api exposes the engine's operations over HTTP. The handlers
// are a thin adapter: all invariants live in the core packages.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/railops/wagonmatch/core/allot"
	"github.com/railops/wagonmatch/core/audit"
	"github.com/railops/wagonmatch/core/catalog"
	"github.com/railops/wagonmatch/core/logger"
	"github.com/railops/wagonmatch/core/model"
	"github.com/railops/wagonmatch/core/registry"
)

// Server wires the engine components behind a chi router.
type Server struct {
	registry     *registry.Registry
	catalog      *catalog.Catalog
	orchestrator *allot.Orchestrator
	store        audit.Store
	token        string
	log          logger.Logger
}

// NewServer creates the HTTP adapter. An empty token disables auth.
func NewServer(reg *registry.Registry, cat *catalog.Catalog, orch *allot.Orchestrator, store audit.Store, token string, log logger.Logger) *Server {
	return &Server{registry: reg, catalog: cat, orchestrator: orch, store: store, token: token, log: log}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.auth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/indents", s.listIndents)
		r.Get("/indents/bands", s.bandCounts)
		r.Post("/indents", s.addIndent)
		r.Delete("/indents/{id}", s.cancelIndent)
		r.Get("/indents/{id}/matches", s.rankCandidates)
		r.Get("/catalog", s.listCatalog)
		r.Post("/catalog", s.seedSupply)
		r.Get("/allotments", s.listAllotments)
		r.Post("/allotments", s.propose)
		r.Post("/allotments/{id}/confirm", s.action(s.orchestrator.Confirm))
		r.Post("/allotments/{id}/dispatch", s.action(s.orchestrator.Dispatch))
		r.Post("/allotments/{id}/complete", s.action(s.orchestrator.Complete))
		r.Post("/allotments/{id}/cancel", s.action(s.orchestrator.Cancel))
		r.Get("/audit", s.queryAudit)
	})
	return r
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return "api"
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("encode response: %v", err)
	}
}

// writeError maps the engine's error taxonomy onto HTTP statuses:
// unknown ids 404, state and supply conflicts 409, bad input 400.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		notFound  model.NotFoundError
		badState  model.InvalidStateError
		shortfall catalog.InsufficientSupplyError
		duplicate allot.DuplicateAllotmentError
	)
	status := http.StatusBadRequest
	kind := "bad_request"
	switch {
	case errors.As(err, &notFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.As(err, &badState):
		status, kind = http.StatusConflict, "invalid_state"
	case errors.As(err, &shortfall):
		status, kind = http.StatusConflict, "insufficient_supply"
	case errors.As(err, &duplicate):
		status, kind = http.StatusConflict, "duplicate_allotment"
	}
	s.writeJSON(w, status, map[string]string{"error": kind, "detail": err.Error()})
}

func (s *Server) indentDTO(in model.Indent) IndentDTO {
	return IndentDTO{
		ID:                 in.ID,
		Commodity:          in.Commodity,
		QuantityTons:       in.QuantityTons,
		Origin:             in.Origin,
		Destination:        in.Destination,
		Requester:          in.Requester,
		Priority:           in.Priority.String(),
		AgePendingDays:     in.AgePendingDays,
		WagonTypeRequired:  in.WagonTypeRequired,
		WagonCountRequired: in.WagonCountRequired,
		PenaltyRisk:        in.PenaltyRisk.String(),
		UrgencyScore:       in.UrgencyScore,
		Status:             in.Status.String(),
		Band:               s.registry.BandOf(in.AgePendingDays).String(),
	}
}

func (s *Server) listIndents(w http.ResponseWriter, r *http.Request) {
	indents := s.registry.ListOpen()
	out := make([]IndentDTO, len(indents))
	for i, in := range indents {
		out[i] = s.indentDTO(in)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) bandCounts(w http.ResponseWriter, r *http.Request) {
	counts := s.registry.BandCounts()
	out := make(map[string]int, len(counts))
	for band, n := range counts {
		out[band.String()] = n
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) addIndent(w http.ResponseWriter, r *http.Request) {
	var in IndentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, err)
		return
	}
	m, err := in.ToModel()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.registry.Add(m); err != nil {
		s.writeError(w, err)
		return
	}
	added, err := s.registry.Get(m.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.indentDTO(added))
}

func (s *Server) cancelIndent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.orchestrator.CancelIndent(r.Context(), actor(r), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) rankCandidates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cands, err := s.orchestrator.RankCandidates(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]CandidateDTO, len(cands))
	for i, c := range cands {
		out[i] = candidateDTO(c)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) listCatalog(w http.ResponseWriter, r *http.Request) {
	pools := s.catalog.ListAvailable(r.URL.Query().Get("wagon_type"))
	out := make([]WagonSourceDTO, len(pools))
	for i, ws := range pools {
		out[i] = wagonSourceDTO(ws)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) seedSupply(w http.ResponseWriter, r *http.Request) {
	var in WagonSourceDTO
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, err)
		return
	}
	ws, err := in.ToModel()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.catalog.Seed(ws); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, wagonSourceDTO(ws))
}

func (s *Server) listAllotments(w http.ResponseWriter, r *http.Request) {
	allotments := s.orchestrator.List()
	out := make([]AllotmentDTO, len(allotments))
	for i, a := range allotments {
		out[i] = allotmentDTO(a)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) propose(w http.ResponseWriter, r *http.Request) {
	var in ProposeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, err)
		return
	}
	a, err := s.orchestrator.Propose(r.Context(), actor(r), in.IndentID, in.Location, in.WagonType, in.Count)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, allotmentDTO(a))
}

func (s *Server) action(fn func(ctx context.Context, actor, id string) (model.Allotment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		a, err := fn(r.Context(), actor(r), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, allotmentDTO(a))
	}
}

func (s *Server) queryAudit(w http.ResponseWriter, r *http.Request) {
	q := audit.Query{
		IndentID: r.URL.Query().Get("indent_id"),
		Actor:    r.URL.Query().Get("actor"),
	}
	if v := r.URL.Query().Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			q.Since = t
		}
	}
	if v := r.URL.Query().Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			q.Until = t
		}
	}
	entries, err := s.store.Query(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}
