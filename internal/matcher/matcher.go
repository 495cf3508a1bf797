// Package matcher evaluates targeting constraints against an evaluation
// context. Each constraint resolves to Match, NoMatch or Invalid; Invalid
// constraints count as NoMatch for their rule but are reported back in the
// evaluation trace so that partially-broken rule data is visible without
// failing the evaluation.
package matcher

import (
	"fmt"

	"github.com/TimurManjosov/flagship-go-sdk/internal/rules"
)

// Verdict is the outcome of evaluating one constraint.
type Verdict int

const (
	NoMatch Verdict = iota
	Match
	Invalid
)

func (v Verdict) String() string {
	switch v {
	case Match:
		return "match"
	case Invalid:
		return "invalid"
	default:
		return "no_match"
	}
}

// InvalidConstraint records why a constraint could not be evaluated.
// It appears in the evaluation result's trace.
type InvalidConstraint struct {
	Property   string           `json:"property"`
	Comparator rules.Comparator `json:"comparator"`
	Reason     string           `json:"reason"`
}

func (e InvalidConstraint) String() string {
	return fmt.Sprintf("constraint %s %s: %s", e.Property, e.Comparator, e.Reason)
}

// SegmentLookup resolves a segment key to its definition within the
// snapshot's namespace.
type SegmentLookup func(key string) (*rules.Segment, bool)

// Rule reports whether a rule fully matches the context attributes.
// The rule's own constraints are ANDed. If the rule references segments,
// at least one referenced segment must match in full (segments are ORed,
// constraints within a segment are ANDed). Invalid constraints are
// appended to the returned trace and treated as NoMatch.
func Rule(r rules.Rule, lookup SegmentLookup, attrs map[string]any) (bool, []InvalidConstraint) {
	matched, trace := constraintsMatch(r.Constraints, attrs, nil)
	if !matched {
		return false, trace
	}

	if len(r.SegmentKeys) == 0 {
		return true, trace
	}

	anySegment := false
	for _, key := range r.SegmentKeys {
		seg, ok := lookup(key)
		if !ok {
			trace = append(trace, InvalidConstraint{
				Property:   key,
				Comparator: "segment",
				Reason:     "segment not found in namespace",
			})
			continue
		}
		segMatched, segTrace := constraintsMatch(seg.Constraints, attrs, nil)
		trace = append(trace, segTrace...)
		if segMatched {
			anySegment = true
			// Remaining segments cannot change the outcome.
			break
		}
	}
	return anySegment, trace
}

func constraintsMatch(cs []rules.Constraint, attrs map[string]any, trace []InvalidConstraint) (bool, []InvalidConstraint) {
	matched := true
	for _, c := range cs {
		verdict, inv := Constraint(c, attrs)
		if inv != nil {
			trace = append(trace, *inv)
		}
		if verdict != Match {
			matched = false
		}
	}
	return matched, trace
}

// Constraint evaluates a single constraint against the context attributes.
func Constraint(c rules.Constraint, attrs map[string]any) (Verdict, *InvalidConstraint) {
	cmp := normalizeComparator(c.Comparator)
	value, present := attrs[c.Property]

	// Presence comparators only inspect attribute existence.
	switch cmp {
	case rules.CmpPresent:
		return boolVerdict(present), nil
	case rules.CmpNotPresent:
		return boolVerdict(!present), nil
	}

	if !present {
		return Invalid, invalid(c, "attribute not present in context")
	}

	switch cmp {
	case rules.CmpEq:
		return equals(c, value)
	case rules.CmpNeq:
		v, inv := equals(c, value)
		if inv != nil {
			return Invalid, inv
		}
		return negate(v), nil
	case rules.CmpContains:
		return contains(c, value)
	case rules.CmpIn:
		return inList(c, value)
	case rules.CmpNotIn:
		v, inv := inList(c, value)
		if inv != nil {
			return Invalid, inv
		}
		return negate(v), nil
	case rules.CmpGt:
		return numericCompare(c, value, func(a, b float64) bool { return a > b })
	case rules.CmpGte:
		return numericCompare(c, value, func(a, b float64) bool { return a >= b })
	case rules.CmpLt:
		return numericCompare(c, value, func(a, b float64) bool { return a < b })
	case rules.CmpLte:
		return numericCompare(c, value, func(a, b float64) bool { return a <= b })
	case rules.CmpSemVerGt:
		return semverCompare(c, value, 1)
	case rules.CmpSemVerLt:
		return semverCompare(c, value, -1)
	case rules.CmpRegex:
		return regexMatch(c, value)
	default:
		return Invalid, invalid(c, "unsupported comparator")
	}
}

func boolVerdict(b bool) Verdict {
	if b {
		return Match
	}
	return NoMatch
}

func negate(v Verdict) Verdict {
	if v == Match {
		return NoMatch
	}
	return Match
}

func invalid(c rules.Constraint, reason string) *InvalidConstraint {
	return &InvalidConstraint{Property: c.Property, Comparator: c.Comparator, Reason: reason}
}

// normalizeComparator maps common aliases onto the canonical comparator
// set so documents written by hand keep working.
func normalizeComparator(cmp rules.Comparator) rules.Comparator {
	switch cmp {
	case "==", "eq", "equals":
		return rules.CmpEq
	case "!=", "neq", "not_equals":
		return rules.CmpNeq
	case ">":
		return rules.CmpGt
	case ">=":
		return rules.CmpGte
	case "<":
		return rules.CmpLt
	case "<=":
		return rules.CmpLte
	case "nin":
		return rules.CmpNotIn
	case "matches":
		return rules.CmpRegex
	default:
		return cmp
	}
}
