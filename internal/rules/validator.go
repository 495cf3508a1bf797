package rules

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the validators.
var (
	ErrInvalidComparator    = errors.New("invalid comparator")
	ErrInvalidConstraint    = errors.New("invalid constraint")
	ErrInvalidValueType     = errors.New("invalid value type")
	ErrInvalidDistribution  = errors.New("invalid distribution")
	ErrDuplicateRuleRank    = errors.New("duplicate rule rank")
	ErrInvalidFlag          = errors.New("invalid flag")
	ErrUnknownSegment       = errors.New("unknown segment reference")
	ErrUnknownVariant       = errors.New("unknown variant reference")
)

// validComparators is the set of all recognised constraint comparators.
var validComparators = map[Comparator]struct{}{
	CmpEq:         {},
	CmpNeq:        {},
	CmpPresent:    {},
	CmpNotPresent: {},
	CmpContains:   {},
	CmpIn:         {},
	CmpNotIn:      {},
	CmpGt:         {},
	CmpGte:        {},
	CmpLt:         {},
	CmpLte:        {},
	CmpSemVerGt:   {},
	CmpSemVerLt:   {},
	CmpRegex:      {},
}

// ValidateNamespace checks a namespace's flags and segments for structural
// soundness: unique rule ranks, distribution sums, and resolvable segment
// and variant references. It is pure and never mutates its argument.
func ValidateNamespace(ns Namespace) error {
	if ns.Key == "" {
		return fmt.Errorf("%w: namespace key must not be empty", ErrInvalidFlag)
	}

	segments := make(map[string]struct{}, len(ns.Segments))
	for _, seg := range ns.Segments {
		if seg.Key == "" {
			return fmt.Errorf("%w: segment key must not be empty in namespace %q", ErrInvalidConstraint, ns.Key)
		}
		for i, c := range seg.Constraints {
			if err := validateConstraint(i, c); err != nil {
				return fmt.Errorf("segment %q: %w", seg.Key, err)
			}
		}
		segments[seg.Key] = struct{}{}
	}

	for _, flag := range ns.Flags {
		if err := validateFlag(flag, segments); err != nil {
			return fmt.Errorf("namespace %q: %w", ns.Key, err)
		}
	}
	return nil
}

func validateFlag(f Flag, segments map[string]struct{}) error {
	if f.Key == "" {
		return fmt.Errorf("%w: flag key must not be empty", ErrInvalidFlag)
	}
	if f.Type != FlagTypeVariant && f.Type != FlagTypeBoolean {
		return fmt.Errorf("%w: flag %q has unsupported type %q", ErrInvalidFlag, f.Key, f.Type)
	}

	variants := make(map[string]struct{}, len(f.Variants))
	for _, v := range f.Variants {
		if v.Key == "" {
			return fmt.Errorf("%w: flag %q has a variant with empty key", ErrInvalidFlag, f.Key)
		}
		if _, dup := variants[v.Key]; dup {
			return fmt.Errorf("%w: flag %q has duplicate variant %q", ErrInvalidFlag, f.Key, v.Key)
		}
		variants[v.Key] = struct{}{}
	}

	if f.DefaultVariant != "" && f.Type == FlagTypeVariant {
		if _, ok := variants[f.DefaultVariant]; !ok {
			return fmt.Errorf("%w: flag %q default variant %q", ErrUnknownVariant, f.Key, f.DefaultVariant)
		}
	}

	ranks := make(map[int]struct{}, len(f.Rules))
	for _, r := range f.Rules {
		if err := validateRule(r, segments, variants); err != nil {
			return fmt.Errorf("flag %q: %w", f.Key, err)
		}
		if _, dup := ranks[r.Rank]; dup {
			return fmt.Errorf("%w: flag %q rank %d", ErrDuplicateRuleRank, f.Key, r.Rank)
		}
		ranks[r.Rank] = struct{}{}
	}
	return nil
}

func validateRule(r Rule, segments, variants map[string]struct{}) error {
	if r.ID == "" {
		return fmt.Errorf("%w: rule id must not be empty", ErrInvalidConstraint)
	}
	if len(r.Constraints) == 0 && len(r.SegmentKeys) == 0 {
		return fmt.Errorf("%w: rule %q has neither constraints nor segments", ErrInvalidConstraint, r.ID)
	}

	for _, key := range r.SegmentKeys {
		if _, ok := segments[key]; !ok {
			return fmt.Errorf("%w: rule %q references segment %q", ErrUnknownSegment, r.ID, key)
		}
	}
	for i, c := range r.Constraints {
		if err := validateConstraint(i, c); err != nil {
			return fmt.Errorf("rule %q: %w", r.ID, err)
		}
	}
	return validateDistribution(r.ID, r.Distribution, variants)
}

func validateConstraint(i int, c Constraint) error {
	if c.Property == "" {
		return fmt.Errorf("%w: constraint[%d] property must not be empty", ErrInvalidConstraint, i)
	}
	if _, ok := validComparators[c.Comparator]; !ok {
		return fmt.Errorf("%w: constraint[%d] comparator %q is not supported", ErrInvalidComparator, i, c.Comparator)
	}
	return validateValueType(i, c.Comparator, c.Value)
}

// validateValueType checks that the stored comparison value has a type
// compatible with the comparator. Explicit type assertions, no reflection.
func validateValueType(i int, cmp Comparator, v any) error {
	switch cmp {
	case CmpPresent, CmpNotPresent:
		// No comparison value required.

	case CmpContains, CmpSemVerGt, CmpSemVerLt, CmpRegex:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: constraint[%d] comparator %q requires a string value", ErrInvalidValueType, i, cmp)
		}

	case CmpIn, CmpNotIn:
		if !isSlice(v) {
			return fmt.Errorf("%w: constraint[%d] comparator %q requires a slice value", ErrInvalidValueType, i, cmp)
		}

	case CmpGt, CmpLt, CmpGte, CmpLte:
		if !isNumeric(v) {
			if _, ok := v.(string); !ok {
				return fmt.Errorf("%w: constraint[%d] comparator %q requires a numeric value", ErrInvalidValueType, i, cmp)
			}
		}

	case CmpEq, CmpNeq:
		if !isScalar(v) {
			return fmt.Errorf("%w: constraint[%d] comparator %q requires a scalar value (string, bool, or number)", ErrInvalidValueType, i, cmp)
		}
	}
	return nil
}

// isSlice returns true for slice types that may appear after JSON
// unmarshaling or be provided programmatically.
func isSlice(v any) bool {
	switch v.(type) {
	case []any, []string, []int, []float64:
		return true
	}
	return false
}

// isNumeric returns true for integer and floating-point types.
func isNumeric(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

// isScalar returns true for basic scalar types (string, bool, numeric).
func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, int, int32, int64, float32, float64:
		return true
	}
	return false
}

func validateDistribution(ruleID string, d []DistributionEntry, variants map[string]struct{}) error {
	sum := 0.0
	for _, entry := range d {
		if entry.VariantKey == "" {
			return fmt.Errorf("%w: rule %q has a distribution entry with empty variant", ErrInvalidDistribution, ruleID)
		}
		if len(variants) > 0 {
			if _, ok := variants[entry.VariantKey]; !ok {
				return fmt.Errorf("%w: rule %q distributes to variant %q", ErrUnknownVariant, ruleID, entry.VariantKey)
			}
		}
		if entry.Percentage < 0 {
			return fmt.Errorf("%w: rule %q variant %q has negative percentage %v", ErrInvalidDistribution, ruleID, entry.VariantKey, entry.Percentage)
		}
		sum += entry.Percentage
	}
	if sum > 100 {
		return fmt.Errorf("%w: rule %q percentages sum to %v, must not exceed 100", ErrInvalidDistribution, ruleID, sum)
	}
	return nil
}
