package metrics

import (
	"sort"

	"github.com/torosent/perfrun/internal/runner"
)

// FailureBucket is the number of failed runs sharing a reason.
type FailureBucket struct {
	Reason string `json:"reason" yaml:"reason"`
	Count  int    `json:"count" yaml:"count"`
}

// FlattenFailureBuckets converts a reason->count map into rows sorted by
// descending count, then by reason for stability.
func FlattenFailureBuckets(buckets map[string]int) []FailureBucket {
	if len(buckets) == 0 {
		return nil
	}
	rows := make([]FailureBucket, 0, len(buckets))
	for reason, count := range buckets {
		rows = append(rows, FailureBucket{Reason: reason, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Reason < rows[j].Reason
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

// CountFailures groups failures by FailureReason.
func CountFailures(failures []runner.RunFailure) map[string]int {
	if len(failures) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, f := range failures {
		counts[FailureReason(f.Cause)]++
	}
	return counts
}
