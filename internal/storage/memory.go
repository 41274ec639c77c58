package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps the ledger in process memory. It backs runs without a database and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	trades []TradeRecord
	nextID int64
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, now: time.Now}
}

// InsertTrade appends a trade, assigning the next id and, when unset, the current time.
func (s *MemoryStore) InsertTrade(_ context.Context, rec TradeRecord) (TradeRecord, error) {
	if err := validateRecord(rec); err != nil {
		return TradeRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.nextID
	s.nextID++
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now().UTC()
	}
	s.trades = append(s.trades, rec)
	return rec, nil
}

// LatestTradeAt returns the newest timestamp recorded for contract.
func (s *MemoryStore) LatestTradeAt(_ context.Context, contract string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	found := false
	for _, rec := range s.trades {
		if rec.ContractAddress != contract {
			continue
		}
		if !found || rec.Timestamp.After(latest) {
			latest = rec.Timestamp
			found = true
		}
	}
	return latest, found, nil
}

// ListRecentTrades lists up to limit trades, newest first.
func (s *MemoryStore) ListRecentTrades(_ context.Context, limit int) ([]TradeRecord, error) {
	s.mu.RLock()
	out := make([]TradeRecord, len(s.trades))
	copy(out, s.trades)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListTradesBetween lists trades within [from, to) in chronological order.
func (s *MemoryStore) ListTradesBetween(_ context.Context, from, to time.Time) ([]TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TradeRecord, 0)
	for _, rec := range s.trades {
		if !rec.Timestamp.Before(from) && rec.Timestamp.Before(to) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// CountTrades counts trades, optionally for a single contract.
func (s *MemoryStore) CountTrades(_ context.Context, contract string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if contract == "" {
		return int64(len(s.trades)), nil
	}
	var n int64
	for _, rec := range s.trades {
		if rec.ContractAddress == contract {
			n++
		}
	}
	return n, nil
}

var (
	_ TradeStore  = (*MemoryStore)(nil)
	_ TradeReader = (*MemoryStore)(nil)
)
