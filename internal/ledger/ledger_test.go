package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumptrader/internal/storage"
)

func buy(contract string, at time.Time) storage.TradeRecord {
	return storage.TradeRecord{
		ContractAddress: contract,
		Direction:       "buy",
		Amount:          decimal.NewFromInt(5),
		Price:           decimal.NewFromInt(2),
		Timestamp:       at,
	}
}

func TestTryReserveIsExclusivePerContract(t *testing.T) {
	l := New(storage.NewMemoryStore(), zerolog.Nop())

	var granted atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, ok, err := l.TryReserve(context.Background(), "ABC", time.Minute)
			assert.NoError(t, err)
			if ok {
				granted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, granted.Load())
}

func TestTryReserveIndependentContracts(t *testing.T) {
	l := New(storage.NewMemoryStore(), zerolog.Nop())

	a, ok, err := l.TryReserve(context.Background(), "A", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer a.Release()

	b, ok, err := l.TryReserve(context.Background(), "B", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	b.Release()
}

func TestReleaseWithoutTradeFreesSlot(t *testing.T) {
	l := New(storage.NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	res, ok, err := l.TryReserve(ctx, "ABC", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ABC", res.Contract())

	res.Release()
	res.Release()

	again, ok, err := l.TryReserve(ctx, "ABC", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	again.Release()
}

func TestRecordedTradeKeepsCooldownAfterRelease(t *testing.T) {
	l := New(storage.NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	res, ok, err := l.TryReserve(ctx, "ABC", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = l.Record(ctx, buy("ABC", time.Time{}))
	require.NoError(t, err)
	res.Release()

	_, ok, err = l.TryReserve(ctx, "ABC", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCooldownWindow(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l := New(store, zerolog.Nop())
	l.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := store.InsertTrade(ctx, buy("ABC", now.Add(-10*time.Second)))
	require.NoError(t, err)

	recent, err := l.HasRecentTrade(ctx, "ABC", time.Minute)
	require.NoError(t, err)
	assert.True(t, recent)

	_, ok, err := l.TryReserve(ctx, "ABC", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	recent, err = l.HasRecentTrade(ctx, "ABC", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, recent)

	recent, err = l.HasRecentTrade(ctx, "ABC", 0)
	require.NoError(t, err)
	assert.False(t, recent)
}

type failingStore struct {
	storage.TradeStore
	insertErr error
	latestErr error
}

func (f failingStore) InsertTrade(context.Context, storage.TradeRecord) (storage.TradeRecord, error) {
	return storage.TradeRecord{}, f.insertErr
}

func (f failingStore) LatestTradeAt(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, f.latestErr
}

func TestRecordFailureIsPersistenceFailure(t *testing.T) {
	cause := errors.New("disk full")
	l := New(failingStore{insertErr: cause}, zerolog.Nop())

	_, err := l.Record(context.Background(), buy("ABC", time.Time{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.ErrorIs(t, err, cause)
}

func TestUnrecordedFillKeepsCooldown(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l := New(failingStore{insertErr: errors.New("disk full")}, zerolog.Nop())
	l.now = func() time.Time { return now }
	ctx := context.Background()

	res, ok, err := l.TryReserve(ctx, "ABC", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = l.Record(ctx, buy("ABC", time.Time{}))
	require.ErrorIs(t, err, ErrPersistenceFailure)
	res.Release()

	_, ok, err = l.TryReserve(ctx, "ABC", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = l.TryReserve(ctx, "XYZ", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = l.TryReserve(ctx, "ABC", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTryReserveStoreError(t *testing.T) {
	l := New(failingStore{latestErr: errors.New("timeout")}, zerolog.Nop())

	res, ok, err := l.TryReserve(context.Background(), "ABC", time.Minute)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Nil(t, res)
}

func TestKeyedMutexForgetsIdleKeys(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	unlock()
	assert.Empty(t, k.locks)
}
