package rules

import (
	"testing"
	"time"

	"github.com/example/room-booking/internal/calendar"
)

// 2024-03-04 is a Monday.
func monday(hour, minute int) time.Time {
	return time.Date(2024, time.March, 4, hour, minute, 0, 0, time.UTC)
}

func newTestEngine() *Engine {
	return NewEngine(calendar.New(time.UTC), DefaultLimits())
}

func baseState() State {
	return State{
		Room: &Room{ID: "room-1", Capacity: 10},
		User: &User{ID: "user-1", MaxCapacityAllowed: 10},
	}
}

func candidateAt(start, end time.Time) Candidate {
	return Candidate{RoomID: "room-1", UserID: "user-1", Title: "Standup", StartsAt: start, EndsAt: end}
}

func rulesOf(violations []Violation) []Rule {
	out := make([]Rule, len(violations))
	for i, v := range violations {
		out[i] = v.Rule
	}
	return out
}

func hasRule(violations []Violation, rule Rule) bool {
	for _, v := range violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

func TestEngine_Evaluate_Admissible(t *testing.T) {
	t.Parallel()

	got := newTestEngine().Evaluate(candidateAt(monday(10, 0), monday(11, 0)), baseState())
	if len(got) != 0 {
		t.Fatalf("expected no violations, got %v", Messages(got))
	}
}

func TestEngine_Evaluate_Presence(t *testing.T) {
	t.Parallel()

	got := newTestEngine().Evaluate(Candidate{RoomID: "room-1", UserID: "user-1"}, baseState())
	if len(got) != 3 {
		t.Fatalf("expected three presence violations, got %v", Messages(got))
	}
	for _, v := range got {
		if v.Rule != RulePresence {
			t.Fatalf("expected only presence violations, got %v", rulesOf(got))
		}
	}
}

func TestEngine_Evaluate_OrderingSkipsDependentRules(t *testing.T) {
	t.Parallel()

	state := baseState()
	state.RoomReservations = []Reservation{{ID: "r-1", RoomID: "room-1", Start: monday(9, 0), End: monday(18, 0)}}

	got := newTestEngine().Evaluate(candidateAt(monday(11, 0), monday(10, 0)), state)
	if len(got) != 1 || got[0].Rule != RuleOrdering {
		t.Fatalf("expected a single ordering violation, got %v", rulesOf(got))
	}

	got = newTestEngine().Evaluate(candidateAt(monday(10, 0), monday(10, 0)), state)
	if len(got) != 1 || got[0].Rule != RuleOrdering {
		t.Fatalf("expected zero-length interval to fail ordering, got %v", rulesOf(got))
	}
}

func TestEngine_Evaluate_Overlap(t *testing.T) {
	t.Parallel()

	state := baseState()
	state.RoomReservations = []Reservation{{ID: "r-1", RoomID: "room-1", Start: monday(10, 0), End: monday(12, 0)}}

	cases := []struct {
		name     string
		start    time.Time
		end      time.Time
		conflict bool
	}{
		{"intersecting rejected", monday(11, 0), monday(13, 0), true},
		{"contained rejected", monday(10, 30), monday(11, 30), true},
		{"adjacent after accepted", monday(12, 0), monday(13, 0), false},
		{"adjacent before accepted", monday(9, 0), monday(10, 0), false},
	}

	engine := newTestEngine()
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := engine.Evaluate(candidateAt(tc.start, tc.end), state)
			if hasRule(got, RuleOverlap) != tc.conflict {
				t.Fatalf("overlap = %v, want %v (%v)", hasRule(got, RuleOverlap), tc.conflict, Messages(got))
			}
		})
	}
}

func TestEngine_Evaluate_OverlapIgnoresSelfAndOtherRooms(t *testing.T) {
	t.Parallel()

	state := baseState()
	state.RoomReservations = []Reservation{
		{ID: "self", RoomID: "room-1", Start: monday(10, 0), End: monday(11, 0)},
		{ID: "elsewhere", RoomID: "room-2", Start: monday(10, 0), End: monday(11, 0)},
	}

	candidate := candidateAt(monday(10, 0), monday(11, 0))
	candidate.ID = "self"
	if got := newTestEngine().Evaluate(candidate, state); len(got) != 0 {
		t.Fatalf("expected no violations, got %v", Messages(got))
	}
}

func TestEngine_Evaluate_Duration(t *testing.T) {
	t.Parallel()

	engine := newTestEngine()
	if got := engine.Evaluate(candidateAt(monday(10, 0), monday(14, 0)), baseState()); hasRule(got, RuleDuration) {
		t.Fatalf("exactly four hours should be accepted, got %v", Messages(got))
	}
	got := engine.Evaluate(candidateAt(monday(10, 0), monday(14, 1)), baseState())
	if !hasRule(got, RuleDuration) {
		t.Fatalf("four hours and a minute should be rejected, got %v", Messages(got))
	}
	if got[0].Message != "reservation may not last longer than 4 hours" {
		t.Fatalf("unexpected message %q", got[0].Message)
	}
}

func TestEngine_Evaluate_BusinessHours(t *testing.T) {
	t.Parallel()

	saturday := time.Date(2024, time.March, 9, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		start  time.Time
		end    time.Time
		reject bool
	}{
		{"start at opening", monday(9, 0), monday(10, 0), false},
		{"start before opening", monday(8, 59), monday(10, 0), true},
		{"end at closing", monday(17, 0), monday(18, 0), false},
		{"end after closing", monday(17, 0), monday(18, 1), true},
		{"saturday", saturday, saturday.Add(time.Hour), true},
	}

	engine := newTestEngine()
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := engine.Evaluate(candidateAt(tc.start, tc.end), baseState())
			if hasRule(got, RuleBusinessHours) != tc.reject {
				t.Fatalf("business hours violation = %v, want %v", hasRule(got, RuleBusinessHours), tc.reject)
			}
		})
	}
}

func TestEngine_Evaluate_Capacity(t *testing.T) {
	t.Parallel()

	engine := newTestEngine()
	candidate := candidateAt(monday(10, 0), monday(11, 0))

	equal := baseState()
	if got := engine.Evaluate(candidate, equal); hasRule(got, RuleCapacity) {
		t.Fatalf("equal capacity should be accepted")
	}

	over := baseState()
	over.Room.Capacity = 11
	if got := engine.Evaluate(candidate, over); !hasRule(got, RuleCapacity) {
		t.Fatalf("capacity one over the allowance should be rejected")
	}

	admin := baseState()
	admin.Room.Capacity = 500
	admin.User.IsAdmin = true
	if got := engine.Evaluate(candidate, admin); len(got) != 0 {
		t.Fatalf("admin should not be capacity limited, got %v", Messages(got))
	}

	unresolved := State{User: &User{ID: "user-1", MaxCapacityAllowed: 1}}
	if got := engine.Evaluate(candidate, unresolved); hasRule(got, RuleCapacity) {
		t.Fatalf("unresolved room should skip capacity")
	}
}

func TestEngine_Evaluate_ActiveLimit(t *testing.T) {
	t.Parallel()

	engine := newTestEngine()
	candidate := candidateAt(monday(10, 0), monday(11, 0))

	state := baseState()
	state.ActiveFutureCount = 2
	if got := engine.Evaluate(candidate, state); hasRule(got, RuleActiveLimit) {
		t.Fatalf("third reservation should be accepted")
	}

	state.ActiveFutureCount = 3
	if got := engine.Evaluate(candidate, state); !hasRule(got, RuleActiveLimit) {
		t.Fatalf("fourth reservation should be rejected")
	}

	state.User.IsAdmin = true
	state.ActiveFutureCount = 50
	if got := engine.Evaluate(candidate, state); hasRule(got, RuleActiveLimit) {
		t.Fatalf("admin should never be limited")
	}
}

func TestEngine_Evaluate_CollectsAllViolations(t *testing.T) {
	t.Parallel()

	state := baseState()
	state.Room.Capacity = 20
	state.ActiveFutureCount = 3
	state.RoomReservations = []Reservation{{ID: "r-1", RoomID: "room-1", Start: monday(8, 0), End: monday(9, 0)}}

	got := newTestEngine().Evaluate(candidateAt(monday(7, 0), monday(12, 0)), state)
	want := []Rule{RuleOverlap, RuleDuration, RuleBusinessHours, RuleCapacity, RuleActiveLimit}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, rulesOf(got))
	}
	for i := range want {
		if got[i].Rule != want[i] {
			t.Fatalf("violation %d = %s, want %s", i, got[i].Rule, want[i])
		}
	}
}

func TestEngine_SeriesLimit(t *testing.T) {
	t.Parallel()

	engine := newTestEngine()
	user := &User{ID: "user-1", MaxCapacityAllowed: 10}

	if got := engine.SeriesLimit(user, 0, 3); len(got) != 0 {
		t.Fatalf("three occurrences with none existing should pass")
	}
	if got := engine.SeriesLimit(user, 1, 3); len(got) != 1 || got[0].Rule != RuleSeriesLimit || got[0].Occurrence != 0 {
		t.Fatalf("expected one untagged series limit violation, got %v", got)
	}
	if got := engine.SeriesLimit(&User{IsAdmin: true}, 10, 10); len(got) != 0 {
		t.Fatalf("admin should never be limited")
	}
}

func TestNewEngine_DefaultsLimits(t *testing.T) {
	t.Parallel()

	limits := NewEngine(calendar.New(nil), Limits{}).Limits()
	if limits != DefaultLimits() {
		t.Fatalf("Limits() = %+v, want defaults", limits)
	}
}
