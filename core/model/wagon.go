package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AvailabilityClass indicates how soon a wagon pool can be mobilised.
type AvailabilityClass int

const (
	AvailImmediate AvailabilityClass = iota
	AvailNextDay
	AvailInDays
)

// Availability describes when a wagon pool becomes usable. Days is only
// meaningful for AvailInDays.
type Availability struct {
	Class AvailabilityClass
	Days  int
}

// Immediate returns an availability usable right away.
func Immediate() Availability { return Availability{Class: AvailImmediate} }

// NextDay returns an availability usable from tomorrow.
func NextDay() Availability { return Availability{Class: AvailNextDay} }

// InDays returns an availability usable after n days.
func InDays(n int) Availability { return Availability{Class: AvailInDays, Days: n} }

// String returns a human-readable representation of the availability.
func (a Availability) String() string {
	switch a.Class {
	case AvailImmediate:
		return "Immediate"
	case AvailNextDay:
		return "NextDay"
	case AvailInDays:
		return fmt.Sprintf("In%dDays", a.Days)
	default:
		return "unknown"
	}
}

// Bonus maps the availability onto the [0,1] scoring bonus used by the
// matching engine: Immediate 1.0, NextDay 0.6, InDays(n) 1-n*0.2 floored
// at zero.
func (a Availability) Bonus() float64 {
	switch a.Class {
	case AvailImmediate:
		return 1.0
	case AvailNextDay:
		return 0.6
	case AvailInDays:
		b := 1.0 - float64(a.Days)*0.2
		if b < 0 {
			return 0
		}
		return b
	default:
		return 0
	}
}

// WagonSource is a pool of empty wagons of one type at one location.
type WagonSource struct {
	Location             string
	WagonType            string
	CountAvailable       int
	CapacityPerWagonTons float64
	DistanceToOriginKM   float64
	EmptyRunCost         decimal.Decimal
	Availability         Availability
}

// Validate checks that the pool is well formed before seeding.
func (w WagonSource) Validate() error {
	if w.Location == "" {
		return fmt.Errorf("location is required")
	}
	if w.WagonType == "" {
		return fmt.Errorf("wagon type is required")
	}
	if w.CountAvailable < 0 {
		return fmt.Errorf("available count cannot be negative")
	}
	if w.CapacityPerWagonTons <= 0 {
		return fmt.Errorf("wagon capacity must be positive")
	}
	if w.DistanceToOriginKM < 0 {
		return fmt.Errorf("distance cannot be negative")
	}
	return nil
}
