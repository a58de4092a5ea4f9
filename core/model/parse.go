package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePriority converts the wire representation of a priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(s) {
	case "high":
		return PriorityHigh, nil
	case "medium":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	default:
		return PriorityLow, fmt.Errorf("unknown priority %q", s)
	}
}

// ParseAvailability converts the wire representation of an availability:
// "Immediate", "NextDay" or "In<N>Days".
func ParseAvailability(s string) (Availability, error) {
	switch strings.ToLower(s) {
	case "immediate":
		return Immediate(), nil
	case "nextday", "tomorrow":
		return NextDay(), nil
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "in") && strings.HasSuffix(lower, "days") {
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(lower, "in"), "days"))
		if err != nil {
			return Availability{}, fmt.Errorf("unknown availability %q", s)
		}
		return InDays(n), nil
	}
	return Availability{}, fmt.Errorf("unknown availability %q", s)
}
