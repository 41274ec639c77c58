package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrInvalidRecord is returned for records that can never be valid ledger rows.
	ErrInvalidRecord = errors.New("storage: invalid trade record")
)

const (
	insertTradeSQL = `INSERT INTO trades (
        contract_address,
        direction,
        amount,
        price,
        "timestamp"
    ) VALUES (
        $1, $2, $3::numeric, $4::numeric, COALESCE($5, now())
    )
    RETURNING id, contract_address, direction, amount::text, price::text, "timestamp";`

	latestTradeAtSQL = `SELECT MAX("timestamp") FROM trades WHERE contract_address = $1;`

	listRecentTradesSQL = `SELECT id, contract_address, direction, amount::text, price::text, "timestamp"
    FROM trades
    ORDER BY "timestamp" DESC, id DESC
    LIMIT $1;`

	listTradesBetweenSQL = `SELECT id, contract_address, direction, amount::text, price::text, "timestamp"
    FROM trades
    WHERE "timestamp" >= $1
      AND "timestamp" < $2
    ORDER BY "timestamp", id;`

	countTradesSQL = `SELECT COUNT(*) FROM trades WHERE ($1 = '' OR contract_address = $1);`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// TradeStore is the append-only persistence the ledger needs.
type TradeStore interface {
	InsertTrade(ctx context.Context, rec TradeRecord) (TradeRecord, error)
	// LatestTradeAt returns the timestamp of the newest trade for contract, if any.
	LatestTradeAt(ctx context.Context, contract string) (time.Time, bool, error)
}

// TradeReader exposes read-only ledger queries for reporting.
type TradeReader interface {
	ListRecentTrades(ctx context.Context, limit int) ([]TradeRecord, error)
	ListTradesBetween(ctx context.Context, from, to time.Time) ([]TradeRecord, error)
	CountTrades(ctx context.Context, contract string) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store is the PostgreSQL-backed trade ledger.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Pool exposes the underlying pool for migrations.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// The session lock dies with the connection; drop it rather than return it to the pool.
			_ = conn.Conn().Close(ctxUnlock)
		}
		conn.Release()
	}
	return unlock, true, nil
}

// InsertTrade appends a trade. A zero Timestamp is filled in by the database.
func (s *Store) InsertTrade(ctx context.Context, rec TradeRecord) (TradeRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return TradeRecord{}, err
	}
	if err := validateRecord(rec); err != nil {
		return TradeRecord{}, err
	}

	var ts interface{}
	if !rec.Timestamp.IsZero() {
		ts = rec.Timestamp.UTC()
	}

	row := pool.QueryRow(ctx, insertTradeSQL,
		rec.ContractAddress,
		rec.Direction,
		rec.Amount.String(),
		rec.Price.String(),
		ts,
	)
	stored, err := scanTrade(row)
	if err != nil {
		return TradeRecord{}, fmt.Errorf("insert trade: %w", err)
	}
	return stored, nil
}

// LatestTradeAt returns the newest trade timestamp recorded for contract.
func (s *Store) LatestTradeAt(ctx context.Context, contract string) (time.Time, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return time.Time{}, false, err
	}

	var latest *time.Time
	if err := pool.QueryRow(ctx, latestTradeAtSQL, contract).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("latest trade: %w", err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}

// ListRecentTrades lists the most recent trades, newest first.
func (s *Store) ListRecentTrades(ctx context.Context, limit int) ([]TradeRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentTradesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent trades: %w", queryErr)
	}
	return collectTrades(rows, limit)
}

// ListTradesBetween lists trades within [from, to) in chronological order.
func (s *Store) ListTradesBetween(ctx context.Context, from, to time.Time) ([]TradeRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listTradesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list trades between: %w", queryErr)
	}
	return collectTrades(rows, 0)
}

// CountTrades counts ledger rows, optionally restricted to one contract.
func (s *Store) CountTrades(ctx context.Context, contract string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countTradesSQL, contract).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count trades: %w", scanErr)
	}
	return count, nil
}

func collectTrades(rows pgx.Rows, capacity int) ([]TradeRecord, error) {
	defer rows.Close()

	trades := make([]TradeRecord, 0, capacity)
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return trades, nil
}

func scanTrade(row pgx.Row) (TradeRecord, error) {
	var (
		rec       TradeRecord
		amountStr string
		priceStr  string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.ContractAddress,
		&rec.Direction,
		&amountStr,
		&priceStr,
		&rec.Timestamp,
	); err != nil {
		return TradeRecord{}, err
	}

	var err error
	rec.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return TradeRecord{}, fmt.Errorf("parse amount: %w", err)
	}
	rec.Price, err = decimal.NewFromString(priceStr)
	if err != nil {
		return TradeRecord{}, fmt.Errorf("parse price: %w", err)
	}
	return rec, nil
}

func validateRecord(rec TradeRecord) error {
	if rec.ContractAddress == "" {
		return fmt.Errorf("%w: empty contract", ErrInvalidRecord)
	}
	if rec.Direction != "buy" && rec.Direction != "sell" {
		return fmt.Errorf("%w: direction %q", ErrInvalidRecord, rec.Direction)
	}
	if !rec.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRecord)
	}
	return nil
}

var (
	_ TradeStore     = (*Store)(nil)
	_ TradeReader    = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
