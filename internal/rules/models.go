// Package rules defines the immutable flag, segment and targeting rule
// model that a snapshot is built from. The types double as the wire format
// of the snapshot document served by the flag-management service.
package rules

// FlagType distinguishes variant-valued flags from plain boolean toggles.
type FlagType string

const (
	FlagTypeVariant FlagType = "VARIANT"
	FlagTypeBoolean FlagType = "BOOLEAN"
)

// Comparator identifies a constraint comparison operation.
// The set is closed: evaluation dispatches over these values exhaustively
// and unknown comparators are rejected at validation time.
type Comparator string

const (
	CmpEq         Comparator = "eq"
	CmpNeq        Comparator = "neq"
	CmpPresent    Comparator = "present"
	CmpNotPresent Comparator = "not_present"
	CmpContains   Comparator = "contains"
	CmpIn         Comparator = "in"
	CmpNotIn      Comparator = "not_in"
	CmpGt         Comparator = "gt"
	CmpGte        Comparator = "gte"
	CmpLt         Comparator = "lt"
	CmpLte        Comparator = "lte"
	CmpSemVerGt   Comparator = "semver_gt"
	CmpSemVerLt   Comparator = "semver_lt"
	CmpRegex      Comparator = "regex"
)

// Constraint is a single targeting predicate. Constraints belonging to one
// Rule (or one Segment) are combined with AND semantics.
type Constraint struct {
	Property   string     `json:"property" yaml:"property"`
	Comparator Comparator `json:"comparator" yaml:"comparator"`
	Value      any        `json:"value,omitempty" yaml:"value,omitempty"`
}

// Segment is a named, reusable set of constraints referenced by rules.
type Segment struct {
	Key         string       `json:"key" yaml:"key"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Constraints []Constraint `json:"constraints" yaml:"constraints"`
}

// DistributionEntry assigns a rollout share to one variant. Entries are
// walked in document order during bucketing, so the slice order is part of
// the evaluation contract.
type DistributionEntry struct {
	VariantKey string  `json:"variant" yaml:"variant"`
	Percentage float64 `json:"percentage" yaml:"percentage"`
}

// Rule is an ordered targeting rule. Rank determines evaluation order
// (lower first) and must be unique within a flag. A rule matches when all
// of its own constraints match and, if segments are referenced, at least
// one referenced segment matches in full.
type Rule struct {
	ID           string              `json:"id" yaml:"id"`
	Rank         int                 `json:"rank" yaml:"rank"`
	SegmentKeys  []string            `json:"segments,omitempty" yaml:"segments,omitempty"`
	Constraints  []Constraint        `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Distribution []DistributionEntry `json:"distribution,omitempty" yaml:"distribution,omitempty"`
}

// Variant is a named evaluation outcome with an optional structured
// attachment delivered to the caller on match.
type Variant struct {
	Key        string         `json:"key" yaml:"key"`
	Attachment map[string]any `json:"attachment,omitempty" yaml:"attachment,omitempty"`
}

// Flag is a feature flag definition within a namespace.
type Flag struct {
	Key            string    `json:"key" yaml:"key"`
	Description    string    `json:"description,omitempty" yaml:"description,omitempty"`
	Type           FlagType  `json:"type" yaml:"type"`
	Enabled        bool      `json:"enabled" yaml:"enabled"`
	Expression     *string   `json:"expression,omitempty" yaml:"expression,omitempty"`
	Rules          []Rule    `json:"rules,omitempty" yaml:"rules,omitempty"`
	Variants       []Variant `json:"variants,omitempty" yaml:"variants,omitempty"`
	DefaultVariant string    `json:"defaultVariant,omitempty" yaml:"defaultVariant,omitempty"`
}

// Namespace scopes a set of flags and segments.
type Namespace struct {
	Key      string    `json:"key" yaml:"key"`
	Flags    []Flag    `json:"flags,omitempty" yaml:"flags,omitempty"`
	Segments []Segment `json:"segments,omitempty" yaml:"segments,omitempty"`
}

// Document is the versioned snapshot payload listing all namespaces.
type Document struct {
	Version    string      `json:"version" yaml:"version"`
	Namespaces []Namespace `json:"namespaces" yaml:"namespaces"`
}

// Variant returns the flag's variant with the given key, or nil.
func (f *Flag) Variant(key string) *Variant {
	for i := range f.Variants {
		if f.Variants[i].Key == key {
			return &f.Variants[i]
		}
	}
	return nil
}
