package policy

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy is the immutable trading policy shared by every component of a run.
// It is built once from configuration and passed by value; changing it requires a restart.
type Policy struct {
	Thresholds Thresholds
	AutoTrade  AutoTrade
	// Cooldown is the minimum time between two auto-trades on the same contract.
	Cooldown time.Duration
	// MaxConcurrency bounds how many candidates of one cycle are processed at once.
	MaxConcurrency int
}

// Thresholds are exclusive lower bounds a token must exceed to become a candidate.
type Thresholds struct {
	SafetyScore   float64
	MinVolume     decimal.Decimal
	MinEngagement float64
}

// AutoTrade controls automatic buys of filtered candidates.
type AutoTrade struct {
	Enabled bool
	Amount  decimal.Decimal
}
