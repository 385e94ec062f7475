package rules

import (
	"fmt"
	"time"
)

// Reservation is the slice of an active reservation the rules need.
type Reservation struct {
	ID     string
	RoomID string
	Start  time.Time
	End    time.Time
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Intervals that only touch (a ends when b starts) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// DetectConflicts returns the existing reservations in the candidate's room
// whose interval intersects the candidate, skipping the candidate itself.
func DetectConflicts(existing []Reservation, candidate Reservation) []Reservation {
	var conflicts []Reservation
	for _, other := range existing {
		if candidate.ID != "" && other.ID == candidate.ID {
			continue
		}
		if other.RoomID != candidate.RoomID {
			continue
		}
		if Overlaps(candidate.Start, candidate.End, other.Start, other.End) {
			conflicts = append(conflicts, other)
		}
	}
	return conflicts
}

// Occurrence is one generated member of a batch, identified by its 1-based index.
type Occurrence struct {
	Index  int
	RoomID string
	Start  time.Time
	End    time.Time
}

// SeriesConflicts checks occurrences of one batch against each other, since
// members of the same batch cannot see each other in persisted state. Each
// clashing pair yields one violation tagged with the later occurrence.
func SeriesConflicts(occurrences []Occurrence) []Violation {
	var violations []Violation
	for i := 1; i < len(occurrences); i++ {
		later := occurrences[i]
		for j := 0; j < i; j++ {
			earlier := occurrences[j]
			if earlier.RoomID != later.RoomID {
				continue
			}
			if !Overlaps(later.Start, later.End, earlier.Start, earlier.End) {
				continue
			}
			violations = append(violations, Violation{
				Rule:       RuleSeriesOverlap,
				Message:    fmt.Sprintf("overlaps occurrence %d of the same series", earlier.Index),
				Occurrence: later.Index,
			})
		}
	}
	return violations
}
