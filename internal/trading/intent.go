package trading

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pumptrader/internal/market"
)

var (
	// ErrInvalidIntent reports an intent that cannot be sent to the venue.
	ErrInvalidIntent = errors.New("invalid trade intent")
	// ErrVenueRejected reports an order the venue refused or could not be reached for.
	ErrVenueRejected = errors.New("venue rejected order")
)

// Direction is the side of a trade.
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// ParseDirection accepts "buy" or "sell" in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	default:
		return "", fmt.Errorf("%w: unknown direction %q", ErrInvalidIntent, s)
	}
}

// Source records who originated an intent.
type Source string

const (
	SourceManual Source = "manual"
	SourceAuto   Source = "auto"
)

// Intent is a request to trade, consumed by exactly one Execute call.
type Intent struct {
	ID              uuid.UUID
	ContractAddress string
	Direction       Direction
	Amount          decimal.Decimal
	Source          Source
}

// NewIntent builds an intent with a fresh id and a canonical contract address.
func NewIntent(contract string, direction Direction, amount decimal.Decimal, source Source) Intent {
	return Intent{
		ID:              uuid.New(),
		ContractAddress: market.NormalizeAddress(contract),
		Direction:       direction,
		Amount:          amount,
		Source:          source,
	}
}

// Validate checks the fields the venue depends on.
func (i Intent) Validate() error {
	if strings.TrimSpace(i.ContractAddress) == "" {
		return fmt.Errorf("%w: contract address is empty", ErrInvalidIntent)
	}
	if !i.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidIntent, i.Amount.String())
	}
	if i.Direction != Buy && i.Direction != Sell {
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidIntent, i.Direction)
	}
	return nil
}
