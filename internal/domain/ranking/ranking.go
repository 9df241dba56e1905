// Package ranking defines how chunk-level scores are aggregated per parent.
package ranking

import (
	"fmt"

	"github.com/kailas-cloud/audiosearch/internal/domain"
)

// Policy is the aggregation policy.
type Policy string

// Aggregation policies.
const (
	// Min keeps the lowest score per parent and sorts ascending (distances).
	Min Policy = "min"
	// Max keeps the highest score per parent and sorts descending (similarities).
	Max Policy = "max"
)

// IsValid checks if the policy is one of the supported values.
func (p Policy) IsValid() bool {
	return p == Min || p == Max
}

// Parse converts a policy name. Unknown names wrap domain.ErrUnknownRanking.
func Parse(s string) (Policy, error) {
	p := Policy(s)
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q (want %q or %q)", domain.ErrUnknownRanking, s, Min, Max)
	}
	return p, nil
}

// Better reports whether candidate strictly beats current under p.
// Ties keep current, so the first occurrence wins.
func (p Policy) Better(candidate, current float64) bool {
	if p == Max {
		return candidate > current
	}
	return candidate < current
}
