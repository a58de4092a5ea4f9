package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/railops/wagonmatch/core/match"
	"github.com/railops/wagonmatch/core/model"
)

// IndentDTO is the wire form of an indent, with enums as strings and the
// urgency band included for rendering.
type IndentDTO struct {
	ID                 string  `json:"id"`
	Commodity          string  `json:"commodity"`
	QuantityTons       float64 `json:"quantity_tons"`
	Origin             string  `json:"origin"`
	Destination        string  `json:"destination"`
	Requester          string  `json:"requester,omitempty"`
	Priority           string  `json:"priority"`
	AgePendingDays     int     `json:"age_pending_days"`
	WagonTypeRequired  string  `json:"wagon_type_required"`
	WagonCountRequired int     `json:"wagon_count_required"`
	PenaltyRisk        string  `json:"penalty_risk"`
	UrgencyScore       float64 `json:"urgency_score"`
	Status             string  `json:"status"`
	Band               string  `json:"band"`
}

// IndentInput is the request body for registering an indent.
type IndentInput struct {
	ID                 string  `json:"id"`
	Commodity          string  `json:"commodity"`
	QuantityTons       float64 `json:"quantity_tons"`
	Origin             string  `json:"origin"`
	Destination        string  `json:"destination"`
	Requester          string  `json:"requester"`
	Priority           string  `json:"priority"`
	AgePendingDays     int     `json:"age_pending_days"`
	WagonTypeRequired  string  `json:"wagon_type_required"`
	WagonCountRequired int     `json:"wagon_count_required"`
	PenaltyRisk        string  `json:"penalty_risk"`
}

// ToModel converts the input, parsing priority and money.
func (in IndentInput) ToModel() (model.Indent, error) {
	prio, err := model.ParsePriority(in.Priority)
	if err != nil {
		return model.Indent{}, err
	}
	risk := decimal.Zero
	if in.PenaltyRisk != "" {
		risk, err = decimal.NewFromString(in.PenaltyRisk)
		if err != nil {
			return model.Indent{}, err
		}
	}
	return model.Indent{
		ID:                 in.ID,
		Commodity:          in.Commodity,
		QuantityTons:       in.QuantityTons,
		Origin:             in.Origin,
		Destination:        in.Destination,
		Requester:          in.Requester,
		Priority:           prio,
		AgePendingDays:     in.AgePendingDays,
		WagonTypeRequired:  in.WagonTypeRequired,
		WagonCountRequired: in.WagonCountRequired,
		PenaltyRisk:        risk,
	}, nil
}

// WagonSourceDTO is the wire form of a wagon pool.
type WagonSourceDTO struct {
	Location             string  `json:"location"`
	WagonType            string  `json:"wagon_type"`
	CountAvailable       int     `json:"count_available"`
	CapacityPerWagonTons float64 `json:"capacity_per_wagon_tons"`
	DistanceToOriginKM   float64 `json:"distance_to_origin_km"`
	EmptyRunCost         string  `json:"empty_run_cost"`
	Availability         string  `json:"availability"`
}

// ToModel converts the DTO, parsing availability and money.
func (in WagonSourceDTO) ToModel() (model.WagonSource, error) {
	avail, err := model.ParseAvailability(in.Availability)
	if err != nil {
		return model.WagonSource{}, err
	}
	cost := decimal.Zero
	if in.EmptyRunCost != "" {
		cost, err = decimal.NewFromString(in.EmptyRunCost)
		if err != nil {
			return model.WagonSource{}, err
		}
	}
	return model.WagonSource{
		Location:             in.Location,
		WagonType:            in.WagonType,
		CountAvailable:       in.CountAvailable,
		CapacityPerWagonTons: in.CapacityPerWagonTons,
		DistanceToOriginKM:   in.DistanceToOriginKM,
		EmptyRunCost:         cost,
		Availability:         avail,
	}, nil
}

// CandidateDTO is one scored match.
type CandidateDTO struct {
	Source    WagonSourceDTO `json:"source"`
	Score     float64        `json:"score"`
	Exact     bool           `json:"exact"`
	Shortfall int            `json:"shortfall,omitempty"`
}

// AllotmentDTO is the wire form of an allotment.
type AllotmentDTO struct {
	ID             string    `json:"id"`
	IndentID       string    `json:"indent_id"`
	Location       string    `json:"location"`
	WagonType      string    `json:"wagon_type"`
	CountAssigned  int       `json:"count_assigned"`
	EmptyRunCost   string    `json:"empty_run_cost"`
	PenaltyAvoided string    `json:"penalty_avoided"`
	State          string    `json:"state"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProposeInput is the request body for proposing an allotment.
type ProposeInput struct {
	IndentID  string `json:"indent_id"`
	Location  string `json:"location"`
	WagonType string `json:"wagon_type"`
	Count     int    `json:"count"`
}

func wagonSourceDTO(ws model.WagonSource) WagonSourceDTO {
	return WagonSourceDTO{
		Location:             ws.Location,
		WagonType:            ws.WagonType,
		CountAvailable:       ws.CountAvailable,
		CapacityPerWagonTons: ws.CapacityPerWagonTons,
		DistanceToOriginKM:   ws.DistanceToOriginKM,
		EmptyRunCost:         ws.EmptyRunCost.String(),
		Availability:         ws.Availability.String(),
	}
}

func candidateDTO(c match.ScoredCandidate) CandidateDTO {
	return CandidateDTO{
		Source:    wagonSourceDTO(c.Source),
		Score:     c.Score,
		Exact:     c.Exact,
		Shortfall: c.Shortfall,
	}
}

func allotmentDTO(a model.Allotment) AllotmentDTO {
	return AllotmentDTO{
		ID:             a.ID,
		IndentID:       a.IndentID,
		Location:       a.Location,
		WagonType:      a.WagonType,
		CountAssigned:  a.CountAssigned,
		EmptyRunCost:   a.Economics.EmptyRunCost.String(),
		PenaltyAvoided: a.Economics.PenaltyAvoided.String(),
		State:          a.State.String(),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}
