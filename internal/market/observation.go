package market

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TokenObservation is one normalised token sighting from a single scan.
type TokenObservation struct {
	ContractAddress  string
	Symbol           string
	Price            decimal.Decimal
	Liquidity        decimal.Decimal
	Volume24h        decimal.Decimal
	SocialEngagement float64
	SafetyScore      float64
}

// NormalizeAddress canonicalises a contract address so the same token always maps to
// the same ledger key. EVM hex addresses are returned in checksum form; anything else
// (e.g. base58 mints) is case-sensitive and only trimmed.
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if common.IsHexAddress(addr) {
		return common.HexToAddress(addr).Hex()
	}
	return addr
}
