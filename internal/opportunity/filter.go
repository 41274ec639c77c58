package opportunity

import (
	"time"

	"pumptrader/internal/market"
	"pumptrader/internal/policy"
)

// Candidate is an observation that cleared every policy threshold during one cycle.
type Candidate struct {
	Observation market.TokenObservation
	DecidedAt   time.Time
}

// Filter keeps the observations that strictly exceed all three thresholds, in input order.
// It performs no I/O; identical inputs always give identical output.
func Filter(observations []market.TokenObservation, p policy.Policy, decidedAt time.Time) []Candidate {
	candidates := make([]Candidate, 0, len(observations))
	for _, obs := range observations {
		if !Passes(obs, p.Thresholds) {
			continue
		}
		candidates = append(candidates, Candidate{Observation: obs, DecidedAt: decidedAt})
	}
	return candidates
}

// Passes reports whether obs is above every threshold. Values equal to a threshold fail.
func Passes(obs market.TokenObservation, t policy.Thresholds) bool {
	return obs.SafetyScore > t.SafetyScore &&
		obs.Volume24h.GreaterThan(t.MinVolume) &&
		obs.SocialEngagement > t.MinEngagement
}
