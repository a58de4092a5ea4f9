package allot

import "fmt"

// DuplicateAllotmentError is returned when a second active allotment is
// proposed for an indent that already has one in flight.
type DuplicateAllotmentError struct {
	IndentID    string
	AllotmentID string
}

func (e DuplicateAllotmentError) Error() string {
	return fmt.Sprintf("indent %q already has active allotment %q", e.IndentID, e.AllotmentID)
}
