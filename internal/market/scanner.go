package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrDataSourceUnavailable marks a scan whose underlying source could not be reached at all.
// It is recoverable: the scheduler simply tries again on the next tick.
var ErrDataSourceUnavailable = errors.New("market data source unavailable")

// RawToken is an observation exactly as delivered by a data source. Numeric fields keep
// their textual form; nil means the field was absent.
type RawToken struct {
	ContractAddress  string
	Symbol           string
	Price            *string
	Liquidity        *string
	Volume24h        *string
	SocialEngagement *string
	SafetyScore      *string
}

// Source acquires raw token observations.
type Source interface {
	FetchCandidateTokens(ctx context.Context) ([]RawToken, error)
}

// Scanner turns raw source output into validated observations.
type Scanner struct {
	source  Source
	logger  zerolog.Logger
	dropped atomic.Int64
}

// NewScanner wraps a data source.
func NewScanner(source Source, logger zerolog.Logger) *Scanner {
	return &Scanner{source: source, logger: logger.With().Str("component", "scanner").Logger()}
}

// Scan fetches one batch of observations. Malformed entries are dropped and counted;
// only a failure of the source itself is returned, wrapped in ErrDataSourceUnavailable.
func (s *Scanner) Scan(ctx context.Context) ([]TokenObservation, error) {
	raw, err := s.source.FetchCandidateTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataSourceUnavailable, err)
	}

	// Repeated contracts are kept; the ledger reservation decides which one may trade.
	observations := make([]TokenObservation, 0, len(raw))
	dropped := 0
	for _, item := range raw {
		obs, reason := normalize(item)
		if reason != "" {
			dropped++
			s.logger.Debug().Str("contract", item.ContractAddress).Str("reason", reason).Msg("observation dropped")
			continue
		}
		observations = append(observations, obs)
	}

	s.dropped.Add(int64(dropped))
	s.logger.Debug().Int("received", len(raw)).Int("accepted", len(observations)).Int("dropped", dropped).Msg("scan complete")
	return observations, nil
}

// Dropped reports how many observations were discarded since the scanner was created.
func (s *Scanner) Dropped() int64 {
	return s.dropped.Load()
}

func normalize(raw RawToken) (TokenObservation, string) {
	contract := NormalizeAddress(raw.ContractAddress)
	if contract == "" {
		return TokenObservation{}, "missing contract"
	}
	if raw.Price == nil {
		return TokenObservation{}, "missing price"
	}

	price, err := parseDecimal(raw.Price)
	if err != nil {
		return TokenObservation{}, "price: " + err.Error()
	}
	liquidity, err := parseDecimal(raw.Liquidity)
	if err != nil {
		return TokenObservation{}, "liquidity: " + err.Error()
	}
	volume, err := parseDecimal(raw.Volume24h)
	if err != nil {
		return TokenObservation{}, "volume_24h: " + err.Error()
	}
	engagement, err := parseFloat(raw.SocialEngagement)
	if err != nil {
		return TokenObservation{}, "social_engagement: " + err.Error()
	}
	safety, err := parseFloat(raw.SafetyScore)
	if err != nil {
		return TokenObservation{}, "safety_score: " + err.Error()
	}
	if safety > 100 {
		return TokenObservation{}, "safety_score above 100"
	}

	return TokenObservation{
		ContractAddress:  contract,
		Symbol:           strings.TrimSpace(raw.Symbol),
		Price:            price,
		Liquidity:        liquidity,
		Volume24h:        volume,
		SocialEngagement: engagement,
		SafetyScore:      safety,
	}, ""
}

// parseDecimal treats an absent field as zero and rejects negative or non-numeric values.
func parseDecimal(v *string) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*v))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("not numeric %q", *v)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("negative %s", d)
	}
	return d, nil
}

func parseFloat(v *string) (float64, error) {
	if v == nil {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(*v), 64)
	if err != nil {
		return 0, fmt.Errorf("not numeric %q", *v)
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("out of range %v", f)
	}
	return f, nil
}
