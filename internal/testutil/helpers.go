// Package testutil provides shared fixtures for evaluation tests.
package testutil

import (
	"testing"
	"time"

	"github.com/TimurManjosov/flagship-go-sdk/internal/rules"
	"github.com/TimurManjosov/flagship-go-sdk/internal/snapshot"
)

// BuildSnapshot freezes a document into a snapshot, failing the test on
// validation errors.
func BuildSnapshot(t *testing.T, doc *rules.Document) *snapshot.Snapshot {
	t.Helper()
	snap, err := snapshot.New(doc, "", time.Now())
	if err != nil {
		t.Fatalf("snapshot.New: %v", err)
	}
	return snap
}

// Document returns a representative flag document: a targeted variant
// flag, a partial rollout, a disabled flag and a boolean toggle, plus a
// reusable segment.
func Document() *rules.Document {
	return &rules.Document{
		Version: "1",
		Namespaces: []rules.Namespace{
			{
				Key: "default",
				Segments: []rules.Segment{
					{
						Key: "beta-testers",
						Constraints: []rules.Constraint{
							{Property: "beta", Comparator: rules.CmpEq, Value: true},
						},
					},
				},
				Flags: []rules.Flag{
					{
						Key:            "new-ui",
						Type:           rules.FlagTypeVariant,
						Enabled:        true,
						DefaultVariant: "off",
						Variants: []rules.Variant{
							{Key: "on", Attachment: map[string]any{"theme": "dark"}},
							{Key: "off"},
						},
						Rules: []rules.Rule{
							{
								ID:   "us-full",
								Rank: 0,
								Constraints: []rules.Constraint{
									{Property: "country", Comparator: rules.CmpEq, Value: "US"},
								},
								Distribution: []rules.DistributionEntry{
									{VariantKey: "on", Percentage: 100},
								},
							},
						},
					},
					{
						Key:            "gradual",
						Type:           rules.FlagTypeVariant,
						Enabled:        true,
						DefaultVariant: "off",
						Variants:       []rules.Variant{{Key: "on"}, {Key: "off"}},
						Rules: []rules.Rule{
							{
								ID:          "beta-60",
								Rank:        0,
								SegmentKeys: []string{"beta-testers"},
								Distribution: []rules.DistributionEntry{
									{VariantKey: "on", Percentage: 60},
								},
							},
						},
					},
					{
						Key:            "dark-launch",
						Type:           rules.FlagTypeVariant,
						Enabled:        false,
						DefaultVariant: "off",
						Variants:       []rules.Variant{{Key: "on"}, {Key: "off"}},
						Rules: []rules.Rule{
							{
								ID:   "everyone",
								Rank: 0,
								Constraints: []rules.Constraint{
									{Property: "id", Comparator: rules.CmpPresent},
								},
								Distribution: []rules.DistributionEntry{
									{VariantKey: "on", Percentage: 100},
								},
							},
						},
					},
					{
						Key:            "kill-switch",
						Type:           rules.FlagTypeBoolean,
						Enabled:        true,
						DefaultVariant: "false",
						Rules: []rules.Rule{
							{
								ID:   "ops",
								Rank: 0,
								Constraints: []rules.Constraint{
									{Property: "role", Comparator: rules.CmpEq, Value: "ops"},
								},
							},
						},
					},
				},
			},
		},
	}
}
