package registry

import (
	"sort"
	"sync"

	"github.com/railops/wagonmatch/core/model"
)

// Band classifies how long an indent has been waiting.
type Band int

const (
	BandNormal Band = iota
	BandWarning
	BandCritical
)

// String returns a human-readable representation of the band.
func (b Band) String() string {
	switch b {
	case BandCritical:
		return "Critical"
	case BandWarning:
		return "Warning"
	default:
		return "Normal"
	}
}

// Config holds the urgency thresholds. Zero values fall back to the
// operational defaults via SetDefaults.
type Config struct {
	// CriticalAgeDays marks indents pending at least this long as Critical.
	CriticalAgeDays int `json:"critical_age_days"`
	// WarningAgeDays marks indents pending at least this long as Warning.
	WarningAgeDays int `json:"warning_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.CriticalAgeDays == 0 {
		c.CriticalAgeDays = 5
	}
	if c.WarningAgeDays == 0 {
		c.WarningAgeDays = 3
	}
}

// Registry owns the open demand queue. All mutations go through its
// methods; the status progression Open -> Matched -> Allotted -> Closed
// is enforced here.
type Registry struct {
	cfg     Config
	mu      sync.RWMutex
	indents map[string]model.Indent
}

// New creates an empty registry.
func New(cfg Config) *Registry {
	cfg.SetDefaults()
	return &Registry{cfg: cfg, indents: make(map[string]model.Indent)}
}

// UrgencyScore derives the 0-100 urgency metric from priority and age:
// High 90 / Medium 60 / Low 30 plus min(age*5, 10), capped at 100.
func UrgencyScore(p model.Priority, agePendingDays int) float64 {
	var base float64
	switch p {
	case model.PriorityHigh:
		base = 90
	case model.PriorityMedium:
		base = 60
	default:
		base = 30
	}
	bonus := float64(agePendingDays) * 5
	if bonus > 10 {
		bonus = 10
	}
	score := base + bonus
	if score > 100 {
		score = 100
	}
	return score
}

// BandOf classifies the pending age against the configured thresholds.
func (r *Registry) BandOf(agePendingDays int) Band {
	switch {
	case agePendingDays >= r.cfg.CriticalAgeDays:
		return BandCritical
	case agePendingDays >= r.cfg.WarningAgeDays:
		return BandWarning
	default:
		return BandNormal
	}
}

// Add registers a new indent in Open status with its urgency computed.
func (r *Registry) Add(in model.Indent) error {
	if err := in.Validate(); err != nil {
		return err
	}
	in.Status = model.IndentOpen
	in.UrgencyScore = UrgencyScore(in.Priority, in.AgePendingDays)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.indents[in.ID]; ok {
		return model.InvalidStateError{Kind: "indent", ID: in.ID, State: r.indents[in.ID].Status.String(), Op: "re-register"}
	}
	r.indents[in.ID] = in
	return nil
}

// Get returns the indent with the given id.
func (r *Registry) Get(id string) (model.Indent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in, ok := r.indents[id]
	if !ok {
		return model.Indent{}, model.NotFoundError{Kind: "indent", ID: id}
	}
	return in, nil
}

// ListOpen returns indents still awaiting allotment (Open or Matched),
// ordered by urgency descending, then pending age descending, then id
// ascending so equal queues always render identically.
func (r *Registry) ListOpen() []model.Indent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Indent, 0, len(r.indents))
	for _, in := range r.indents {
		if in.Status == model.IndentOpen || in.Status == model.IndentMatched {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UrgencyScore != out[j].UrgencyScore {
			return out[i].UrgencyScore > out[j].UrgencyScore
		}
		if out[i].AgePendingDays != out[j].AgePendingDays {
			return out[i].AgePendingDays > out[j].AgePendingDays
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Snapshot returns every indent regardless of status, unordered.
func (r *Registry) Snapshot() []model.Indent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Indent, 0, len(r.indents))
	for _, in := range r.indents {
		out = append(out, in)
	}
	return out
}

// BandCounts returns the number of pending indents per band, for KPI
// tiles and alerting.
func (r *Registry) BandCounts() map[Band]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[Band]int, 3)
	for _, in := range r.indents {
		if in.Status == model.IndentOpen || in.Status == model.IndentMatched {
			counts[r.BandOf(in.AgePendingDays)]++
		}
	}
	return counts
}

func (r *Registry) transition(id string, op string, from []model.IndentStatus, to model.IndentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.indents[id]
	if !ok {
		return model.NotFoundError{Kind: "indent", ID: id}
	}
	for _, s := range from {
		if in.Status == s {
			in.Status = to
			r.indents[id] = in
			return nil
		}
	}
	return model.InvalidStateError{Kind: "indent", ID: id, State: in.Status.String(), Op: op}
}

// MarkMatched moves an Open indent to Matched when an allotment is
// proposed against it. Matched is accepted too so a re-proposal after a
// cancelled confirmation does not fail.
func (r *Registry) MarkMatched(id string) error {
	return r.transition(id, "match", []model.IndentStatus{model.IndentOpen, model.IndentMatched}, model.IndentMatched)
}

// MarkAllotted moves an Open or Matched indent to Allotted.
func (r *Registry) MarkAllotted(id string) error {
	return r.transition(id, "allot", []model.IndentStatus{model.IndentOpen, model.IndentMatched}, model.IndentAllotted)
}

// Reopen returns an indent to Open after its allotment is cancelled.
func (r *Registry) Reopen(id string) error {
	return r.transition(id, "reopen", []model.IndentStatus{model.IndentMatched, model.IndentAllotted}, model.IndentOpen)
}

// Close marks a fully dispatched indent Closed.
func (r *Registry) Close(id string) error {
	return r.transition(id, "close", []model.IndentStatus{model.IndentAllotted}, model.IndentClosed)
}

// Cancel withdraws an indent that has no active allotment.
func (r *Registry) Cancel(id string) error {
	return r.transition(id, "cancel", []model.IndentStatus{model.IndentOpen, model.IndentMatched}, model.IndentClosed)
}
