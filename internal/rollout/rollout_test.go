package rollout

import (
	"strconv"
	"testing"

	"github.com/TimurManjosov/flagship-go-sdk/internal/rules"
)

func TestBucket_Deterministic(t *testing.T) {
	b1 := Bucket("user-123", "new-ui", 0)
	b2 := Bucket("user-123", "new-ui", 0)

	if b1 != b2 {
		t.Errorf("Bucket is not deterministic: got %v and %v", b1, b2)
	}
	if b1 < 0 || b1 >= 100 {
		t.Errorf("Bucket out of range: %v", b1)
	}
}

func TestBucket_EmptyEntity(t *testing.T) {
	if b := Bucket("", "new-ui", 0); b != -1 {
		t.Errorf("Expected -1 for empty entity id, got %v", b)
	}
}

func TestBucket_VariesByInput(t *testing.T) {
	base := Bucket("user-123", "new-ui", 0)

	varied := map[string]float64{
		"entity": Bucket("user-124", "new-ui", 0),
		"flag":   Bucket("user-123", "old-ui", 0),
		"rank":   Bucket("user-123", "new-ui", 1),
	}

	// Hash collisions are possible but all three colliding would indicate
	// the inputs are not actually feeding the hash.
	collisions := 0
	for _, b := range varied {
		if b == base {
			collisions++
		}
	}
	if collisions == len(varied) {
		t.Errorf("bucket %v did not change for any varied input", base)
	}
}

func TestBucket_Distribution(t *testing.T) {
	buckets := make([]int, 10)
	const samples = 10000

	for i := 0; i < samples; i++ {
		b := Bucket("user-"+strconv.Itoa(i), "new-ui", 0)
		if b < 0 || b >= 100 {
			t.Fatalf("bucket out of range: %v", b)
		}
		buckets[int(b/10)]++
	}

	// Each decile should hold roughly 1000 samples; allow 30% variance.
	for i, count := range buckets {
		if count < 700 || count > 1300 {
			t.Errorf("decile %d has %d samples, expected ~1000", i, count)
		}
	}
}

func TestPickVariant_InsertionOrder(t *testing.T) {
	dist := []rules.DistributionEntry{
		{VariantKey: "a", Percentage: 50},
		{VariantKey: "b", Percentage: 30},
		{VariantKey: "c", Percentage: 20},
	}

	tests := []struct {
		bucket float64
		want   string
	}{
		{0, "a"},
		{49.99, "a"},
		{50, "b"},
		{79.99, "b"},
		{80, "c"},
		{99.99, "c"},
		{-1, ""},
	}

	for _, tt := range tests {
		if got := PickVariant(dist, tt.bucket); got != tt.want {
			t.Errorf("PickVariant(bucket=%v) = %q, want %q", tt.bucket, got, tt.want)
		}
	}
}

func TestPickVariant_UnallocatedRemainder(t *testing.T) {
	dist := []rules.DistributionEntry{
		{VariantKey: "on", Percentage: 60},
	}

	if got := PickVariant(dist, 59.99); got != "on" {
		t.Errorf("PickVariant(59.99) = %q, want on", got)
	}
	if got := PickVariant(dist, 60); got != "" {
		t.Errorf("PickVariant(60) = %q, want no-match", got)
	}
}

func TestPickVariant_FullCoverageNeverMisses(t *testing.T) {
	dist := []rules.DistributionEntry{
		{VariantKey: "on", Percentage: 100},
	}

	for i := 0; i < 5000; i++ {
		bucket := Bucket("entity-"+strconv.Itoa(i), "full", 0)
		if PickVariant(dist, bucket) != "on" {
			t.Fatalf("full distribution missed bucket %v", bucket)
		}
	}
}

func TestPickVariant_PartialCoverageMissRate(t *testing.T) {
	dist := []rules.DistributionEntry{
		{VariantKey: "on", Percentage: 60},
	}

	const samples = 10000
	misses := 0
	for i := 0; i < samples; i++ {
		bucket := Bucket("entity-"+strconv.Itoa(i), "partial", 0)
		if PickVariant(dist, bucket) == "" {
			misses++
		}
	}

	// ~40% of entities should fall into the unallocated remainder.
	ratio := float64(misses) / samples
	if ratio < 0.35 || ratio > 0.45 {
		t.Errorf("miss ratio = %v, expected ~0.40", ratio)
	}
}

func TestPickVariant_SkipsZeroWeight(t *testing.T) {
	dist := []rules.DistributionEntry{
		{VariantKey: "dead", Percentage: 0},
		{VariantKey: "on", Percentage: 100},
	}

	if got := PickVariant(dist, 0); got != "on" {
		t.Errorf("PickVariant(0) = %q, want on", got)
	}
}
