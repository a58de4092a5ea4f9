package match

import "fmt"

// Weights tune the four scoring terms. Each term is normalized to [0,1]
// before weighting; the combined score is rescaled to 0-100.
type Weights struct {
	CapacityFit  float64 `json:"capacity_fit"`
	Distance     float64 `json:"distance"`
	Cost         float64 `json:"cost"`
	Availability float64 `json:"availability"`
}

// Config drives the matching engine. Substitutions declare which wagon
// types may stand in for a required type; equivalences are configuration
// so new ones ship without an engine change.
type Config struct {
	Weights       Weights             `json:"weights"`
	Substitutions map[string][]string `json:"substitutions"`
	TopK          int                 `json:"top_k"`
}

// SetDefaults applies the operational defaults: weights
// 0.35/0.25/0.25/0.15, top 3 matches, and the BOXN -> {BOBR, BCNA}
// substitution.
func (c *Config) SetDefaults() {
	if c.Weights == (Weights{}) {
		c.Weights = Weights{CapacityFit: 0.35, Distance: 0.25, Cost: 0.25, Availability: 0.15}
	}
	if c.TopK == 0 {
		c.TopK = 3
	}
	if c.Substitutions == nil {
		c.Substitutions = map[string][]string{"BOXN": {"BOBR", "BCNA"}}
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	sum := c.Weights.CapacityFit + c.Weights.Distance + c.Weights.Cost + c.Weights.Availability
	if sum <= 0 {
		return fmt.Errorf("scoring weights must sum to a positive value")
	}
	if c.Weights.CapacityFit < 0 || c.Weights.Distance < 0 || c.Weights.Cost < 0 || c.Weights.Availability < 0 {
		return fmt.Errorf("scoring weights cannot be negative")
	}
	if c.TopK < 0 {
		return fmt.Errorf("top_k cannot be negative")
	}
	return nil
}

// Eligible reports whether a source type can serve the required type,
// either exactly or through the substitution table.
func (c Config) Eligible(required, sourceType string) bool {
	if required == sourceType {
		return true
	}
	for _, sub := range c.Substitutions[required] {
		if sub == sourceType {
			return true
		}
	}
	return false
}
