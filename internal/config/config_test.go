package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: pumptrader\n"))
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Rules.Cooldown)
	assert.False(t, cfg.AutoTrade.Enabled)
	assert.False(t, cfg.Telegram.Enabled())

	p := cfg.Policy()
	assert.Equal(t, 70.0, p.Thresholds.SafetyScore)
	assert.True(t, p.Thresholds.MinVolume.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 10.0, p.Thresholds.MinEngagement)
	assert.Equal(t, 4, p.MaxConcurrency)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
policy:
  safety_threshold: 80
  min_volume: 2500.5
  min_engagement: 12
  cooldown: 60s
auto_trade:
  enabled: true
  amount: "0.25"
venue:
  endpoint: https://venue.example/trade
telegram:
  bot_token: "123:abc"
  chat_id: "-1001"
`)
	t.Setenv("PUMPTRADER_POLICY_COOLDOWN", "90s")
	t.Setenv("PUMPTRADER_SCHEDULER_INTERVAL", "30s")

	cfg, err := Load(path)
	require.NoError(t, err)

	p := cfg.Policy()
	assert.Equal(t, 80.0, p.Thresholds.SafetyScore)
	assert.True(t, p.Thresholds.MinVolume.Equal(decimal.RequireFromString("2500.5")))
	assert.True(t, p.AutoTrade.Enabled)
	assert.True(t, p.AutoTrade.Amount.Equal(decimal.RequireFromString("0.25")))
	assert.Equal(t, 90*time.Second, p.Cooldown)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.True(t, cfg.Telegram.Enabled())
	assert.Equal(t, "-1001", cfg.Telegram.ChatID)
}

func TestValidate(t *testing.T) {
	tests := map[string]string{
		"auto trade without amount": "auto_trade:\n  enabled: true\nvenue:\n  endpoint: http://x\n",
		"auto trade without venue":  "auto_trade:\n  enabled: true\n  amount: 5\n",
		"threshold above 100":       "policy:\n  safety_threshold: 120\n",
		"negative volume":           "policy:\n  min_volume: -1\n",
		"sub-second interval":       "scheduler:\n  interval: 200ms\n",
		"token without chat":        "telegram:\n  bot_token: abc\n",
		"zero concurrency":          "policy:\n  max_concurrency: 0\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 100}}
	assert.Equal(t, 100, cfg.ResolveMaxPoints(0))
	assert.Equal(t, 5, cfg.ResolveMaxPoints(5))
}
