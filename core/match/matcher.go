// Package match ranks wagon pools against a freight indent. RankCandidates
// is a pure function over an immutable catalog snapshot: it never mutates
// supply and two calls against the same snapshot return the same order.
package match

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/railops/wagonmatch/core/model"
)

// ScoredCandidate is one wagon pool scored against an indent.
type ScoredCandidate struct {
	Source model.WagonSource
	// Score is the combined suitability on a 0-100 scale.
	Score float64
	// Exact is false when the pool serves through a substitution rule.
	Exact bool
	// Shortfall is the wagon count the pool cannot cover on its own.
	// Partial fulfillment across pools is an extension point; the base
	// engine only reports it.
	Shortfall int
}

// Matcher scores and ranks candidates using the configured weights and
// substitution table.
type Matcher struct {
	cfg Config
}

// New creates a matcher. The config is copied; later changes to the
// caller's value do not affect ranking.
func New(cfg Config) *Matcher {
	cfg.SetDefaults()
	return &Matcher{cfg: cfg}
}

// RankCandidates returns the top-K pools for the indent, best first.
// Zero eligible pools yields an empty slice, not an error. Ties are
// broken by lower empty-run cost, then exact type before substitutes,
// then location.
func (m *Matcher) RankCandidates(indent model.Indent, snapshot []model.WagonSource) []ScoredCandidate {
	eligible := make([]model.WagonSource, 0, len(snapshot))
	for _, ws := range snapshot {
		if ws.CountAvailable == 0 {
			continue
		}
		if m.cfg.Eligible(indent.WagonTypeRequired, ws.WagonType) {
			eligible = append(eligible, ws)
		}
	}
	if len(eligible) == 0 {
		return []ScoredCandidate{}
	}

	distances := make([]float64, len(eligible))
	costs := make([]float64, len(eligible))
	for i, ws := range eligible {
		distances[i] = ws.DistanceToOriginKM
		costs[i], _ = ws.EmptyRunCost.Float64()
	}

	w := m.cfg.Weights
	wSum := w.CapacityFit + w.Distance + w.Cost + w.Availability
	cands := make([]ScoredCandidate, len(eligible))
	for i, ws := range eligible {
		fit := 1.0
		shortfall := 0
		if indent.WagonCountRequired > ws.CountAvailable {
			fit = float64(ws.CountAvailable) / float64(indent.WagonCountRequired)
			shortfall = indent.WagonCountRequired - ws.CountAvailable
		}
		score := w.CapacityFit*fit +
			w.Distance*inverted(distances[i], distances) +
			w.Cost*inverted(costs[i], costs) +
			w.Availability*ws.Availability.Bonus()
		cands[i] = ScoredCandidate{
			Source:    ws,
			Score:     score / wSum * 100,
			Exact:     ws.WagonType == indent.WagonTypeRequired,
			Shortfall: shortfall,
		}
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		if cmp := cands[i].Source.EmptyRunCost.Cmp(cands[j].Source.EmptyRunCost); cmp != 0 {
			return cmp < 0
		}
		if cands[i].Exact != cands[j].Exact {
			return cands[i].Exact
		}
		return cands[i].Source.Location < cands[j].Source.Location
	})

	if m.cfg.TopK > 0 && len(cands) > m.cfg.TopK {
		cands = cands[:m.cfg.TopK]
	}
	return cands
}

// inverted min-max normalizes v over the eligible set and flips it so
// that shorter distances and cheaper empty runs score higher. A set with
// no spread scores 1 for everyone.
func inverted(v float64, all []float64) float64 {
	lo, hi := floats.Min(all), floats.Max(all)
	if hi == lo {
		return 1
	}
	return 1 - (v-lo)/(hi-lo)
}
