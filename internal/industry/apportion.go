package industry

import (
	"fmt"
	"math"
)

// ShareTolerance is how far from 1.0 the employment-share sum may
// drift before the configuration is rejected.
const ShareTolerance = 1e-6

// EmploymentShares weights the 19 divisions for apportioning
// cross-cutting requirement counts. Weights must be non-negative and
// sum to 1.0 within ShareTolerance.
type EmploymentShares map[Division]float64

// Validate checks the share vector covers exactly the 19 divisions and
// sums to 1.0 within tolerance.
func (s EmploymentShares) Validate() error {
	if len(s) == 0 {
		return &ConfigError{Field: "employment_shares", Reason: "vector is empty"}
	}

	var sum float64
	for _, d := range Divisions() {
		share, ok := s[d]
		if !ok {
			return &ConfigError{
				Field:  "employment_shares",
				Reason: fmt.Sprintf("missing share for division %q", d),
			}
		}
		if share < 0 {
			return &ConfigError{
				Field:  "employment_shares",
				Reason: fmt.Sprintf("negative share %g for division %q", share, d),
			}
		}
		sum += share
	}
	for d := range s {
		if d == CrossCutting || d == Unclassified || !d.Valid() {
			return &ConfigError{
				Field:  "employment_shares",
				Reason: fmt.Sprintf("unexpected division %q in share vector", d),
			}
		}
	}

	if math.Abs(sum-1.0) > ShareTolerance {
		return &ConfigError{
			Field:  "employment_shares",
			Reason: fmt.Sprintf("shares sum to %.8f, want 1.0 within %g", sum, ShareTolerance),
		}
	}
	return nil
}

// Apportion distributes a cross-cutting requirement count across the 19
// divisions by share weight.
func (s EmploymentShares) Apportion(reqCount int) map[Division]float64 {
	out := make(map[Division]float64, len(s))
	for _, d := range Divisions() {
		out[d] = float64(reqCount) * s[d]
	}
	return out
}
