package rules

import "fmt"

// Rule identifies the business rule a violation originates from.
type Rule string

const (
	RulePresence      Rule = "presence"
	RuleOrdering      Rule = "ordering"
	RuleOverlap       Rule = "overlap"
	RuleDuration      Rule = "duration"
	RuleBusinessHours Rule = "business_hours"
	RuleCapacity      Rule = "capacity"
	RuleActiveLimit   Rule = "active_limit"
	RuleSeriesOverlap Rule = "series_overlap"
	RuleSeriesLimit   Rule = "series_limit"
	RuleRecurrence    Rule = "recurrence"

	// RuleInvalid covers malformed catalog input such as a bad email address.
	RuleInvalid Rule = "invalid"
)

// Violation is a single human-readable description of one failed rule.
// Occurrence is the 1-based index of the batch occurrence it belongs to, or
// zero when the violation is not tied to an occurrence.
type Violation struct {
	Rule       Rule
	Message    string
	Occurrence int
}

// String renders the violation, prefixed with its occurrence when tagged.
func (v Violation) String() string {
	if v.Occurrence > 0 {
		return fmt.Sprintf("occurrence %d: %s", v.Occurrence, v.Message)
	}
	return v.Message
}

// Tag returns a copy of violations attributed to the given occurrence.
func Tag(violations []Violation, occurrence int) []Violation {
	if len(violations) == 0 {
		return nil
	}
	tagged := make([]Violation, len(violations))
	for i, v := range violations {
		v.Occurrence = occurrence
		tagged[i] = v
	}
	return tagged
}

// Messages flattens violations into their rendered strings.
func Messages(violations []Violation) []string {
	if len(violations) == 0 {
		return nil
	}
	out := make([]string, len(violations))
	for i, v := range violations {
		out[i] = v.String()
	}
	return out
}
