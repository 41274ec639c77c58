package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pumptrader/internal/storage"
)

// ErrPersistenceFailure wraps any failure to append an executed trade to the store.
var ErrPersistenceFailure = errors.New("ledger write failed")

// Ledger owns trade persistence and the per-contract cooldown index. Checks and writes
// for the same contract are serialised; different contracts never wait on each other.
type Ledger struct {
	store  storage.TradeStore
	locks  *keyedMutex
	logger zerolog.Logger
	now    func() time.Time

	mu         sync.Mutex
	reserved   map[string]struct{}
	// unrecorded holds fills whose ledger write failed, so they still count toward the cooldown.
	unrecorded map[string]time.Time
}

// New wraps a trade store.
func New(store storage.TradeStore, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:      store,
		locks:      newKeyedMutex(),
		logger:     logger.With().Str("component", "ledger").Logger(),
		now:        time.Now,
		reserved:   make(map[string]struct{}),
		unrecorded: make(map[string]time.Time),
	}
}

// Reservation holds the cooldown slot of one contract until released. While it is held,
// TryReserve for the same contract reports the slot as taken.
type Reservation struct {
	ledger   *Ledger
	contract string
	once     sync.Once
}

// Contract returns the reserved contract address.
func (r *Reservation) Contract() string {
	return r.contract
}

// Release frees the slot. A trade recorded while the reservation was held keeps the
// contract in cooldown through the store. Release is idempotent.
func (r *Reservation) Release() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		r.ledger.mu.Lock()
		delete(r.ledger.reserved, r.contract)
		r.ledger.mu.Unlock()
	})
}

// TryReserve atomically checks that contract has neither a trade within window nor an
// outstanding reservation, and if so reserves it. ok=false means the caller must skip.
func (l *Ledger) TryReserve(ctx context.Context, contract string, window time.Duration) (*Reservation, bool, error) {
	unlock := l.locks.Lock(contract)
	defer unlock()

	l.mu.Lock()
	_, taken := l.reserved[contract]
	l.mu.Unlock()
	if taken {
		return nil, false, nil
	}

	recent, err := l.hasRecentTrade(ctx, contract, window)
	if err != nil {
		return nil, false, err
	}
	if recent {
		return nil, false, nil
	}

	l.mu.Lock()
	l.reserved[contract] = struct{}{}
	l.mu.Unlock()
	return &Reservation{ledger: l, contract: contract}, true, nil
}

// HasRecentTrade reports whether contract traded within window of now.
func (l *Ledger) HasRecentTrade(ctx context.Context, contract string, window time.Duration) (bool, error) {
	unlock := l.locks.Lock(contract)
	defer unlock()
	return l.hasRecentTrade(ctx, contract, window)
}

func (l *Ledger) hasRecentTrade(ctx context.Context, contract string, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, nil
	}

	l.mu.Lock()
	filled, pending := l.unrecorded[contract]
	l.mu.Unlock()
	if pending && l.now().Sub(filled) <= window {
		return true, nil
	}

	latest, found, err := l.store.LatestTradeAt(ctx, contract)
	if err != nil {
		return false, fmt.Errorf("check recent trade: %w", err)
	}
	if !found {
		return false, nil
	}
	return l.now().Sub(latest) <= window, nil
}

// Record appends an executed trade. Failures are wrapped in ErrPersistenceFailure.
func (l *Ledger) Record(ctx context.Context, rec storage.TradeRecord) (storage.TradeRecord, error) {
	unlock := l.locks.Lock(rec.ContractAddress)
	defer unlock()

	stored, err := l.store.InsertTrade(ctx, rec)
	if err != nil {
		filled := rec.Timestamp
		if filled.IsZero() {
			filled = l.now()
		}
		l.mu.Lock()
		l.unrecorded[rec.ContractAddress] = filled
		l.mu.Unlock()
		return storage.TradeRecord{}, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	l.logger.Info().Int64("trade_id", stored.ID).
		Str("contract", stored.ContractAddress).
		Str("direction", stored.Direction).
		Str("amount", stored.Amount.String()).
		Str("price", stored.Price.String()).
		Msg("trade recorded")
	return stored, nil
}
