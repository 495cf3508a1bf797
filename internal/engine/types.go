package engine

import (
	"github.com/TimurManjosov/flagship-go-sdk/internal/matcher"
)

// Reason explains how an evaluation result was produced.
type Reason string

const (
	// ReasonMatch means a targeting rule matched and bucketing selected a
	// variant.
	ReasonMatch Reason = "MATCH"
	// ReasonDefault means no rule fully matched and the flag's default
	// variant was returned.
	ReasonDefault Reason = "DEFAULT"
	// ReasonFlagDisabled means the flag is disabled.
	ReasonFlagDisabled Reason = "FLAG_DISABLED"
	// ReasonFlagNotFound means the namespace or flag key is unknown.
	ReasonFlagNotFound Reason = "FLAG_NOT_FOUND"
	// ReasonNotReady means no snapshot has been published yet.
	ReasonNotReady Reason = "CLIENT_NOT_READY"
)

// Context carries the attributes a flag is evaluated against. EntityID is
// required for deterministic bucketing and is exposed to constraints under
// the "id" attribute.
type Context struct {
	EntityID   string
	Attributes map[string]any
}

// VariantResult is the outcome of a variant flag evaluation. It is fully
// determined by the snapshot and context, so identical inputs always yield
// identical results.
type VariantResult struct {
	NamespaceKey  string                      `json:"namespaceKey"`
	FlagKey       string                      `json:"flagKey"`
	Match         bool                        `json:"match"`
	VariantKey    string                      `json:"variantKey,omitempty"`
	Attachment    map[string]any              `json:"attachment,omitempty"`
	Reason        Reason                      `json:"reason"`
	MatchedRuleID string                      `json:"matchedRuleId,omitempty"`
	SegmentKeys   []string                    `json:"segmentKeys,omitempty"`
	SnapshotETag  string                      `json:"snapshotEtag,omitempty"`
	Trace         []matcher.InvalidConstraint `json:"trace,omitempty"`
}

// BooleanResult is the outcome of a boolean flag evaluation.
type BooleanResult struct {
	NamespaceKey string                      `json:"namespaceKey"`
	FlagKey      string                      `json:"flagKey"`
	Enabled      bool                        `json:"enabled"`
	Reason       Reason                      `json:"reason"`
	SnapshotETag string                      `json:"snapshotEtag,omitempty"`
	Trace        []matcher.InvalidConstraint `json:"trace,omitempty"`
}
