package flagship

import (
	"time"

	"github.com/TimurManjosov/flagship-go-sdk/internal/engine"
	"github.com/TimurManjosov/flagship-go-sdk/internal/matcher"
	"github.com/TimurManjosov/flagship-go-sdk/internal/rules"
	"github.com/TimurManjosov/flagship-go-sdk/internal/snapshot"
)

// Reason explains how an evaluation result was produced.
type Reason string

const (
	// ReasonMatch means a targeting rule matched and selected the result.
	ReasonMatch = Reason(engine.ReasonMatch)
	// ReasonDefault means no rule matched and the flag's default variant
	// was used.
	ReasonDefault = Reason(engine.ReasonDefault)
	// ReasonFlagDisabled means the flag exists but is turned off.
	ReasonFlagDisabled = Reason(engine.ReasonFlagDisabled)
	// ReasonFlagNotFound means the flag is absent from the snapshot.
	ReasonFlagNotFound = Reason(engine.ReasonFlagNotFound)
	// ReasonNotReady means no snapshot has been loaded yet.
	ReasonNotReady = Reason(engine.ReasonNotReady)
)

// ConstraintIssue records a constraint that could not be evaluated
// against the given context, e.g. a non-numeric attribute compared with
// a numeric operator. Such constraints count as non-matching.
type ConstraintIssue struct {
	Property   string `json:"property"`
	Comparator string `json:"comparator"`
	Reason     string `json:"reason"`
}

// VariantResult is the outcome of a variant flag evaluation.
type VariantResult struct {
	FlagKey       string            `json:"flag_key"`
	Match         bool              `json:"match"`
	VariantKey    string            `json:"variant_key,omitempty"`
	Attachment    map[string]any    `json:"attachment,omitempty"`
	Reason        Reason            `json:"reason"`
	MatchedRuleID string            `json:"matched_rule_id,omitempty"`
	SegmentKeys   []string          `json:"segment_keys,omitempty"`
	SnapshotETag  string            `json:"snapshot_etag,omitempty"`
	Issues        []ConstraintIssue `json:"issues,omitempty"`
}

// BooleanResult is the outcome of a boolean flag evaluation.
type BooleanResult struct {
	FlagKey      string            `json:"flag_key"`
	Enabled      bool              `json:"enabled"`
	Reason       Reason            `json:"reason"`
	SnapshotETag string            `json:"snapshot_etag,omitempty"`
	Issues       []ConstraintIssue `json:"issues,omitempty"`
}

// BatchRequest names one flag to evaluate in a batch.
type BatchRequest struct {
	FlagKey  string         `json:"flag_key"`
	EntityID string         `json:"entity_id"`
	Context  map[string]any `json:"context,omitempty"`
}

// BatchResult holds one batch entry's outcome: Variant for variant
// flags, Boolean for boolean flags.
type BatchResult struct {
	FlagKey string         `json:"flag_key"`
	Variant *VariantResult `json:"variant,omitempty"`
	Boolean *BooleanResult `json:"boolean,omitempty"`
}

// Flag is a read-only summary of a flag definition.
type Flag struct {
	Key         string `json:"key"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Enabled     bool   `json:"enabled"`
}

// Update announces a newly published snapshot to subscribers.
type Update struct {
	ETag      string
	Version   string
	FetchedAt time.Time
	FlagCount int
}

func issuesFrom(trace []matcher.InvalidConstraint) []ConstraintIssue {
	if len(trace) == 0 {
		return nil
	}
	out := make([]ConstraintIssue, len(trace))
	for i, tr := range trace {
		out[i] = ConstraintIssue{
			Property:   tr.Property,
			Comparator: string(tr.Comparator),
			Reason:     tr.Reason,
		}
	}
	return out
}

func variantResultFrom(r engine.VariantResult) VariantResult {
	return VariantResult{
		FlagKey:       r.FlagKey,
		Match:         r.Match,
		VariantKey:    r.VariantKey,
		Attachment:    r.Attachment,
		Reason:        Reason(r.Reason),
		MatchedRuleID: r.MatchedRuleID,
		SegmentKeys:   r.SegmentKeys,
		SnapshotETag:  r.SnapshotETag,
		Issues:        issuesFrom(r.Trace),
	}
}

func booleanResultFrom(r engine.BooleanResult) BooleanResult {
	return BooleanResult{
		FlagKey:      r.FlagKey,
		Enabled:      r.Enabled,
		Reason:       Reason(r.Reason),
		SnapshotETag: r.SnapshotETag,
		Issues:       issuesFrom(r.Trace),
	}
}

func flagFrom(f *rules.Flag) Flag {
	return Flag{
		Key:         f.Key,
		Description: f.Description,
		Type:        string(f.Type),
		Enabled:     f.Enabled,
	}
}

func updateFrom(u snapshot.Update) Update {
	return Update{
		ETag:      u.ETag,
		Version:   u.Version,
		FetchedAt: u.FetchedAt,
		FlagCount: u.FlagCount,
	}
}
