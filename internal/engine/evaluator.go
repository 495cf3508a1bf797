// Package engine resolves flags against a frozen snapshot. Evaluation is
// pure: it reads only the snapshot and the caller's context, performs no
// I/O, and is safe to call from any number of goroutines.
package engine

import (
	"github.com/TimurManjosov/flagship-go-sdk/internal/matcher"
	"github.com/TimurManjosov/flagship-go-sdk/internal/rollout"
	"github.com/TimurManjosov/flagship-go-sdk/internal/rules"
	"github.com/TimurManjosov/flagship-go-sdk/internal/snapshot"
	"github.com/TimurManjosov/flagship-go-sdk/internal/targeting"
)

// EvaluateVariant resolves a variant flag for the given context.
//
// Resolution order: snapshot presence, flag lookup, enabled check,
// optional expression gate, then rules in ascending rank. The first rule
// whose constraints fully match proceeds to bucketing; if the entity's
// bucket falls inside the rule's distribution that variant wins, otherwise
// the walk continues with the next rule. When nothing matches the flag's
// default variant is returned with reason DEFAULT.
func EvaluateVariant(snap *snapshot.Snapshot, namespace, flagKey string, ectx Context) VariantResult {
	result := VariantResult{NamespaceKey: namespace, FlagKey: flagKey}

	if snap == nil {
		result.Reason = ReasonNotReady
		return result
	}
	result.SnapshotETag = snap.ETag()

	flag, err := snap.Flag(namespace, flagKey)
	if err != nil {
		result.Reason = ReasonFlagNotFound
		return result
	}

	if !flag.Enabled {
		result.Reason = ReasonFlagDisabled
		applyDefault(flag, &result)
		return result
	}

	attrs := contextAttributes(ectx)

	if flag.Expression != nil && *flag.Expression != "" {
		ok, exprErr := targeting.Evaluate(*flag.Expression, attrs)
		if exprErr != nil {
			result.Trace = append(result.Trace, matcher.InvalidConstraint{
				Property:   flag.Key,
				Comparator: "expression",
				Reason:     exprErr.Error(),
			})
		}
		if exprErr != nil || !ok {
			result.Reason = ReasonDefault
			applyDefault(flag, &result)
			return result
		}
	}

	lookup := func(key string) (*rules.Segment, bool) {
		return snap.Segment(namespace, key)
	}

	for i := range flag.Rules {
		rule := &flag.Rules[i]
		matched, trace := matcher.Rule(*rule, lookup, attrs)
		result.Trace = append(result.Trace, trace...)
		if !matched {
			continue
		}

		if len(rule.Distribution) == 0 {
			// A matched rule without a distribution is a plain targeting
			// match: no variant split.
			fillMatch(flag, rule, "", &result)
			return result
		}

		bucket := rollout.Bucket(ectx.EntityID, flag.Key, rule.Rank)
		picked := rollout.PickVariant(rule.Distribution, bucket)
		if picked == "" {
			// Unallocated remainder: treat as no-match, next rule.
			continue
		}
		fillMatch(flag, rule, picked, &result)
		return result
	}

	result.Reason = ReasonDefault
	applyDefault(flag, &result)
	return result
}

// EvaluateBoolean resolves a boolean flag. Boolean flags use the variant
// machinery with the reserved variant keys "true" and "false": a matched
// rule enables the flag unless bucketing selected the "false" variant, and
// the default variant decides the fallthrough value.
func EvaluateBoolean(snap *snapshot.Snapshot, namespace, flagKey string, ectx Context) BooleanResult {
	vr := EvaluateVariant(snap, namespace, flagKey, ectx)

	result := BooleanResult{
		NamespaceKey: vr.NamespaceKey,
		FlagKey:      vr.FlagKey,
		Reason:       vr.Reason,
		SnapshotETag: vr.SnapshotETag,
		Trace:        vr.Trace,
	}

	switch vr.Reason {
	case ReasonMatch:
		result.Enabled = vr.VariantKey != "false"
	case ReasonDefault:
		result.Enabled = vr.VariantKey == "true"
	default:
		// CLIENT_NOT_READY, FLAG_NOT_FOUND, FLAG_DISABLED all resolve to
		// disabled.
	}
	return result
}

func fillMatch(flag *rules.Flag, rule *rules.Rule, variantKey string, result *VariantResult) {
	result.Match = true
	result.Reason = ReasonMatch
	result.MatchedRuleID = rule.ID
	result.SegmentKeys = rule.SegmentKeys
	result.VariantKey = variantKey
	if v := flag.Variant(variantKey); v != nil {
		result.Attachment = v.Attachment
	}
}

func applyDefault(flag *rules.Flag, result *VariantResult) {
	result.VariantKey = flag.DefaultVariant
	if v := flag.Variant(flag.DefaultVariant); v != nil {
		result.Attachment = v.Attachment
	}
}

// contextAttributes merges the entity id into the attribute map under "id"
// so constraints can target it directly. The caller's map is not mutated.
func contextAttributes(ectx Context) map[string]any {
	attrs := make(map[string]any, len(ectx.Attributes)+1)
	if ectx.EntityID != "" {
		attrs["id"] = ectx.EntityID
	}
	for k, v := range ectx.Attributes {
		attrs[k] = v
	}
	return attrs
}
