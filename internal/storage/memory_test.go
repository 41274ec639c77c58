package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trade(contract, direction string, at time.Time) TradeRecord {
	return TradeRecord{
		ContractAddress: contract,
		Direction:       direction,
		Amount:          decimal.NewFromInt(5),
		Price:           decimal.RequireFromString("2.05"),
		Timestamp:       at,
	}
}

func TestMemoryStoreInsertAssignsIDAndTime(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	first, err := s.InsertTrade(ctx, trade("ABC", "buy", time.Time{}))
	require.NoError(t, err)
	second, err := s.InsertTrade(ctx, trade("ABC", "sell", now.Add(time.Second)))
	require.NoError(t, err)

	assert.EqualValues(t, 1, first.ID)
	assert.EqualValues(t, 2, second.ID)
	assert.Equal(t, now, first.Timestamp)

	latest, found, err := s.LatestTradeAt(ctx, "ABC")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, now.Add(time.Second), latest)

	_, found, err = s.LatestTradeAt(ctx, "XYZ")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.InsertTrade(ctx, trade("", "buy", time.Time{}))
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = s.InsertTrade(ctx, trade("ABC", "hold", time.Time{}))
	assert.ErrorIs(t, err, ErrInvalidRecord)

	rec := trade("ABC", "buy", time.Time{})
	rec.Amount = decimal.Zero
	_, err = s.InsertTrade(ctx, rec)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	n, err := s.CountTrades(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStoreQueries(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()

	for i, c := range []string{"A", "B", "A", "C"} {
		_, err := s.InsertTrade(ctx, trade(c, "buy", base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	recent, err := s.ListRecentTrades(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "C", recent[0].ContractAddress)
	assert.Equal(t, "A", recent[1].ContractAddress)

	between, err := s.ListTradesBetween(ctx, base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, between, 2)
	assert.Equal(t, "B", between[0].ContractAddress)

	n, err := s.CountTrades(ctx, "A")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
