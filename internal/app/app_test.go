package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumptrader/internal/config"
	"pumptrader/internal/market"
	"pumptrader/internal/opportunity"
	"pumptrader/internal/storage"
)

func sampleTrades(n int) []storage.TradeRecord {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	out := make([]storage.TradeRecord, n)
	for i := range out {
		out[i] = storage.TradeRecord{
			ID:              int64(i + 1),
			ContractAddress: "ABC",
			Direction:       "buy",
			Amount:          decimal.NewFromInt(5),
			Price:           decimal.NewFromFloat(2 + float64(i)/100),
			Timestamp:       base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestDownsampleTrades(t *testing.T) {
	trades := sampleTrades(10)
	assert.Len(t, downsampleTrades(trades, 0), 10)
	assert.Len(t, downsampleTrades(trades, 20), 10)

	got := downsampleTrades(trades, 4)
	require.Len(t, got, 4)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(10), got[3].ID)

	assert.Equal(t, int64(10), downsampleTrades(trades, 1)[0].ID)
}

func TestWriteTradesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "trades.csv")
	require.NoError(t, writeTradesCSV(path, sampleTrades(2)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "timestamp", "contract_address", "direction", "amount", "price", "notional"}, rows[0])
	assert.Equal(t, []string{"1", "2024-05-01T12:00:00Z", "ABC", "buy", "5", "2", "10"}, rows[1])
}

func TestWriteTradesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.png")
	require.NoError(t, writeTradesPNG(path, sampleTrades(5)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	require.Error(t, writeTradesPNG(path, sampleTrades(1)))
}

func TestPrintTrades(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printTrades(&buf, nil))
	assert.Equal(t, "no trades found\n", buf.String())

	buf.Reset()
	require.NoError(t, printTrades(&buf, sampleTrades(1)))
	assert.Contains(t, buf.String(), "ABC")
	assert.Contains(t, buf.String(), "2024-05-01T12:00:00Z")
}

func TestScanFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"contract_address": "ABC", "symbol": "ABC", "price": 2.0, "liquidity": 20000, "volume_24h": 5000, "social_engagement": 50, "safety_score": 85},
		{"contract_address": "LOW", "symbol": "LOW", "price": "0.1", "volume_24h": 10, "safety_score": 20},
		{"symbol": "BROKEN", "price": 1}
	]`), 0o600))

	cfg := defaultConfig(t)
	a := NewApp(cfg, zerolog.Nop())
	source := a.newSource(nil, path)

	scanner := market.NewScanner(source, zerolog.Nop())
	observations, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, observations, 2)

	candidates := opportunity.Filter(observations, cfg.Policy(), time.Now())
	var buf bytes.Buffer
	require.NoError(t, printScan(&buf, observations, candidates, scanner.Dropped()))
	assert.Contains(t, buf.String(), "2 observations, 1 candidates, 1 dropped")
}

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  name: test\n"), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}
