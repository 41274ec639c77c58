package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is one executed order in the append-only ledger.
type TradeRecord struct {
	ID              int64
	ContractAddress string
	Direction       string
	Amount          decimal.Decimal
	// Price is the executed price reported by the venue.
	Price     decimal.Decimal
	Timestamp time.Time
}
