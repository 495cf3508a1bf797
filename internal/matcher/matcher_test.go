package matcher

import (
	"testing"

	"github.com/TimurManjosov/flagship-go-sdk/internal/rules"
)

func TestConstraint_Verdicts(t *testing.T) {
	attrs := map[string]any{
		"country": "US",
		"plan":    "premium",
		"age":     float64(30),
		"height":  "180.5",
		"beta":    true,
		"version": "1.2.0",
		"email":   "user@example.com",
	}

	tests := []struct {
		name       string
		constraint rules.Constraint
		want       Verdict
	}{
		{"eq string match", rules.Constraint{Property: "country", Comparator: rules.CmpEq, Value: "US"}, Match},
		{"eq string no match", rules.Constraint{Property: "country", Comparator: rules.CmpEq, Value: "DE"}, NoMatch},
		{"eq case sensitive", rules.Constraint{Property: "country", Comparator: rules.CmpEq, Value: "us"}, NoMatch},
		{"eq alias ==", rules.Constraint{Property: "country", Comparator: "==", Value: "US"}, Match},
		{"eq bool", rules.Constraint{Property: "beta", Comparator: rules.CmpEq, Value: true}, Match},
		{"eq numeric", rules.Constraint{Property: "age", Comparator: rules.CmpEq, Value: 30}, Match},
		{"neq match", rules.Constraint{Property: "country", Comparator: rules.CmpNeq, Value: "DE"}, Match},
		{"present", rules.Constraint{Property: "plan", Comparator: rules.CmpPresent}, Match},
		{"present missing attr", rules.Constraint{Property: "missing", Comparator: rules.CmpPresent}, NoMatch},
		{"not_present", rules.Constraint{Property: "missing", Comparator: rules.CmpNotPresent}, Match},
		{"not_present existing attr", rules.Constraint{Property: "plan", Comparator: rules.CmpNotPresent}, NoMatch},
		{"contains", rules.Constraint{Property: "email", Comparator: rules.CmpContains, Value: "@example"}, Match},
		{"in", rules.Constraint{Property: "country", Comparator: rules.CmpIn, Value: []any{"US", "CA"}}, Match},
		{"not_in", rules.Constraint{Property: "country", Comparator: rules.CmpNotIn, Value: []string{"DE", "FR"}}, Match},
		{"gt", rules.Constraint{Property: "age", Comparator: rules.CmpGt, Value: 21}, Match},
		{"gt false", rules.Constraint{Property: "age", Comparator: rules.CmpGt, Value: 65}, NoMatch},
		{"gte boundary", rules.Constraint{Property: "age", Comparator: rules.CmpGte, Value: 30}, Match},
		{"lt coerces string context", rules.Constraint{Property: "height", Comparator: rules.CmpLt, Value: 200}, Match},
		{"lte string comparison value", rules.Constraint{Property: "age", Comparator: rules.CmpLte, Value: "30"}, Match},
		{"semver gt", rules.Constraint{Property: "version", Comparator: rules.CmpSemVerGt, Value: "1.1.9"}, Match},
		{"semver lt", rules.Constraint{Property: "version", Comparator: rules.CmpSemVerLt, Value: "1.3.0"}, Match},
		{"semver gt false", rules.Constraint{Property: "version", Comparator: rules.CmpSemVerGt, Value: "2.0.0"}, NoMatch},
		{"regex", rules.Constraint{Property: "email", Comparator: rules.CmpRegex, Value: `^[^@]+@example\.com$`}, Match},
		{"regex alias matches", rules.Constraint{Property: "email", Comparator: "matches", Value: `@example`}, Match},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, inv := Constraint(tt.constraint, attrs)
			if got != tt.want {
				t.Fatalf("Constraint() = %v, want %v (trace: %v)", got, tt.want, inv)
			}
			if got != Invalid && inv != nil {
				t.Fatalf("unexpected invalid trace: %v", inv)
			}
		})
	}
}

func TestConstraint_Invalid(t *testing.T) {
	attrs := map[string]any{
		"country": "US",
		"version": "not-a-version",
		"plan":    "premium",
	}

	tests := []struct {
		name       string
		constraint rules.Constraint
	}{
		{"missing attribute non-presence comparator", rules.Constraint{Property: "missing", Comparator: rules.CmpEq, Value: "x"}},
		{"semver unparsable context", rules.Constraint{Property: "version", Comparator: rules.CmpSemVerGt, Value: "1.0.0"}},
		{"semver unparsable rule value", rules.Constraint{Property: "country", Comparator: rules.CmpSemVerGt, Value: "oops"}},
		{"numeric unparsable context", rules.Constraint{Property: "plan", Comparator: rules.CmpGt, Value: 10}},
		{"regex invalid pattern", rules.Constraint{Property: "country", Comparator: rules.CmpRegex, Value: "("}},
		{"in with non-list value", rules.Constraint{Property: "country", Comparator: rules.CmpIn, Value: 42}},
		{"unknown comparator", rules.Constraint{Property: "country", Comparator: "fuzzy", Value: "US"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, inv := Constraint(tt.constraint, attrs)
			if got != Invalid {
				t.Fatalf("Constraint() = %v, want Invalid", got)
			}
			if inv == nil || inv.Reason == "" {
				t.Fatal("expected invalid constraint trace with reason")
			}
		})
	}
}

func segmentLookup(segments map[string]*rules.Segment) SegmentLookup {
	return func(key string) (*rules.Segment, bool) {
		seg, ok := segments[key]
		return seg, ok
	}
}

func TestRule_ConstraintsAnded(t *testing.T) {
	rule := rules.Rule{
		ID:   "r1",
		Rank: 0,
		Constraints: []rules.Constraint{
			{Property: "country", Comparator: rules.CmpEq, Value: "US"},
			{Property: "plan", Comparator: rules.CmpEq, Value: "premium"},
		},
	}
	lookup := segmentLookup(nil)

	matched, _ := Rule(rule, lookup, map[string]any{"country": "US", "plan": "premium"})
	if !matched {
		t.Error("expected match when all constraints hold")
	}

	matched, _ = Rule(rule, lookup, map[string]any{"country": "US", "plan": "free"})
	if matched {
		t.Error("expected no match when one constraint fails")
	}
}

func TestRule_SegmentsOred(t *testing.T) {
	segments := map[string]*rules.Segment{
		"us-users": {Key: "us-users", Constraints: []rules.Constraint{
			{Property: "country", Comparator: rules.CmpEq, Value: "US"},
		}},
		"beta": {Key: "beta", Constraints: []rules.Constraint{
			{Property: "beta", Comparator: rules.CmpEq, Value: true},
		}},
	}
	rule := rules.Rule{
		ID:          "r1",
		Rank:        0,
		SegmentKeys: []string{"us-users", "beta"},
	}

	matched, _ := Rule(rule, segmentLookup(segments), map[string]any{"country": "DE", "beta": true})
	if !matched {
		t.Error("expected match when any segment matches")
	}

	matched, _ = Rule(rule, segmentLookup(segments), map[string]any{"country": "DE", "beta": false})
	if matched {
		t.Error("expected no match when no segment matches")
	}
}

func TestRule_SegmentConstraintsAnded(t *testing.T) {
	segments := map[string]*rules.Segment{
		"us-premium": {Key: "us-premium", Constraints: []rules.Constraint{
			{Property: "country", Comparator: rules.CmpEq, Value: "US"},
			{Property: "plan", Comparator: rules.CmpEq, Value: "premium"},
		}},
	}
	rule := rules.Rule{ID: "r1", Rank: 0, SegmentKeys: []string{"us-premium"}}

	matched, _ := Rule(rule, segmentLookup(segments), map[string]any{"country": "US", "plan": "free"})
	if matched {
		t.Error("expected no match when one segment constraint fails")
	}
}

func TestRule_InvalidConstraintCountsAsNoMatchWithTrace(t *testing.T) {
	rule := rules.Rule{
		ID:   "r1",
		Rank: 0,
		Constraints: []rules.Constraint{
			{Property: "version", Comparator: rules.CmpSemVerGt, Value: "not-semver"},
		},
	}

	matched, trace := Rule(rule, segmentLookup(nil), map[string]any{"version": "1.0.0"})
	if matched {
		t.Error("invalid constraint must not match")
	}
	if len(trace) != 1 {
		t.Fatalf("expected 1 trace entry, got %d", len(trace))
	}
	if trace[0].Property != "version" {
		t.Errorf("trace property = %q, want version", trace[0].Property)
	}
}

func TestRule_UnknownSegmentTraced(t *testing.T) {
	rule := rules.Rule{ID: "r1", Rank: 0, SegmentKeys: []string{"ghost"}}

	matched, trace := Rule(rule, segmentLookup(nil), map[string]any{})
	if matched {
		t.Error("rule referencing only a missing segment must not match")
	}
	if len(trace) != 1 || trace[0].Property != "ghost" {
		t.Fatalf("expected trace for missing segment, got %v", trace)
	}
}
