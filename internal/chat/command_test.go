package chat

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumptrader/internal/trading"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		raw       string
		kind      CommandKind
		direction trading.Direction
		amount    string
		contract  string
	}{
		{raw: "/start", kind: CommandStart},
		{raw: "/start@pump_bot", kind: CommandStart},
		{raw: "/balance", kind: CommandBalance},
		{raw: "/buy 5 ABC", kind: CommandTrade, direction: trading.Buy, amount: "5", contract: "ABC"},
		{raw: "  /SELL@pump_bot 0.25   XyZ ", kind: CommandTrade, direction: trading.Sell, amount: "0.25", contract: "XyZ"},
		{raw: "hello there", kind: CommandUnknown},
		{raw: "/moon", kind: CommandUnknown},
		{raw: "", kind: CommandUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			cmd, err := ParseCommand(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, cmd.Kind)
			if tc.kind == CommandTrade {
				assert.Equal(t, tc.direction, cmd.Direction)
				assert.True(t, cmd.Amount.Equal(decimal.RequireFromString(tc.amount)))
				assert.Equal(t, tc.contract, cmd.Contract)
			}
		})
	}
}

func TestParseCommandMalformedTrade(t *testing.T) {
	for _, raw := range []string{
		"/buy",
		"/buy 5",
		"/buy abc ABC",
		"/sell 0 ABC",
		"/sell -2 ABC",
		"/buy 5 ABC extra",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseCommand(raw)
			require.ErrorIs(t, err, trading.ErrInvalidIntent)
		})
	}
}
