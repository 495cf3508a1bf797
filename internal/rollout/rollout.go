// Package rollout provides deterministic entity bucketing for percentage
// rollouts. An entity is hashed into a stable pseudo-random bucket and the
// bucket is matched against a rule's variant distribution. The hash input
// is pinned to (entity id, flag key, rule rank): changing it would reshuffle
// every rollout in the field, so treat it as part of the wire contract.
package rollout

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/TimurManjosov/flagship-go-sdk/internal/rules"
)

// bucketGranularity gives buckets a 0.01% resolution so fractional
// distribution percentages bucket correctly.
const bucketGranularity = 10000

// Bucket returns a deterministic value in [0,100) for the given entity,
// flag and rule rank, or -1 when the entity id is empty (no entity means
// no stable identity to bucket on).
func Bucket(entityID, flagKey string, rank int) float64 {
	if entityID == "" {
		return -1
	}
	key := entityID + ":" + flagKey + ":" + strconv.Itoa(rank)
	hash := xxhash.Sum64String(key)
	return float64(hash%bucketGranularity) / (bucketGranularity / 100)
}

// PickVariant walks the distribution in document order, accumulating
// percentage thresholds, and returns the variant whose cumulative share
// covers the bucket. It returns "" when the bucket falls into the
// unallocated remainder (the caller treats that as no-match and moves on
// to the next rule) or when the bucket is negative.
func PickVariant(dist []rules.DistributionEntry, bucket float64) string {
	if bucket < 0 {
		return ""
	}
	cumulative := 0.0
	for _, entry := range dist {
		if entry.Percentage <= 0 {
			continue
		}
		cumulative += entry.Percentage
		if bucket < cumulative {
			return entry.VariantKey
		}
	}
	return ""
}
