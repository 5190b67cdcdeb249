package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradebook/trade-service/internal/model"
	"github.com/tradebook/trade-service/internal/policy"
	"github.com/tradebook/trade-service/internal/tradedate"
)

// Schema creates the trades table. Dates are kept as text because rows
// carry whichever shape their producer wrote.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id         TEXT    NOT NULL,
	version          INTEGER NOT NULL CHECK (version > 0),
	counter_party_id TEXT    NOT NULL,
	book_id          TEXT    NOT NULL,
	maturity_date    TEXT    NOT NULL,
	created_date     TEXT    NOT NULL,
	PRIMARY KEY (trade_id, version)
)`

const selectTrades = `SELECT trade_id, version, counter_party_id, book_id, maturity_date, created_date FROM trades`

// PostgresStore implements Store using PostgreSQL as the source of truth.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...Option) *PostgresStore {
	o := buildOptions(opts)
	return &PostgresStore{pool: pool, now: o.now}
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate trades: %w", err)
	}
	return nil
}

// Seed inserts trades that are not present yet. Existing rows are kept.
func (s *PostgresStore) Seed(ctx context.Context, trades []model.Trade) error {
	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(
			`INSERT INTO trades (trade_id, version, counter_party_id, book_id, maturity_date, created_date)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (trade_id, version) DO NOTHING`,
			t.TradeID, t.Version, t.CounterPartyID, t.BookID, t.MaturityDate, t.CreatedDate,
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed trades: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTrades(ctx context.Context) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx, selectTrades+` ORDER BY trade_id, version`)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTrades(rows)
	if err != nil {
		return nil, err
	}
	return model.WithExpiredAll(trades, s.today()), nil
}

func (s *PostgresStore) TradeVersions(ctx context.Context, tradeID string) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx, selectTrades+` WHERE trade_id = $1 ORDER BY version`, tradeID)
	if err != nil {
		return nil, fmt.Errorf("trade versions %s: %w", tradeID, err)
	}
	defer rows.Close()

	trades, err := scanTrades(rows)
	if err != nil {
		return nil, err
	}
	return model.WithExpiredAll(trades, s.today()), nil
}

// Apply runs the policy inside a transaction. A transaction-scoped
// advisory lock on the tradeId serialises writers of the same trade, which
// row locks cannot do for versions that do not exist yet.
func (s *PostgresStore) Apply(ctx context.Context, candidate model.Trade) (policy.Result, error) {
	if err := validate(candidate); err != nil {
		return policy.Result{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return policy.Result{}, fmt.Errorf("begin apply: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, candidate.TradeID); err != nil {
		return policy.Result{}, fmt.Errorf("lock %s: %w", candidate.TradeID, err)
	}

	rows, err := tx.Query(ctx, selectTrades+` WHERE trade_id = $1`, candidate.TradeID)
	if err != nil {
		return policy.Result{}, fmt.Errorf("load %s: %w", candidate.TradeID, err)
	}
	existing, err := scanTrades(rows)
	rows.Close()
	if err != nil {
		return policy.Result{}, err
	}

	today := s.today()
	decision := policy.Decide(candidate, existing, today)
	if err := decision.Outcome.Err(); err != nil {
		return policy.Result{Outcome: decision.Outcome}, fmt.Errorf("apply %s v%d: %w", candidate.TradeID, candidate.Version, err)
	}

	stored := policy.Resolve(candidate, decision, today)
	if decision.Outcome == policy.Replaced {
		_, err = tx.Exec(ctx,
			`UPDATE trades
			 SET counter_party_id = $3, book_id = $4, maturity_date = $5, created_date = $6
			 WHERE trade_id = $1 AND version = $2`,
			stored.TradeID, stored.Version, stored.CounterPartyID, stored.BookID, stored.MaturityDate, stored.CreatedDate,
		)
	} else {
		_, err = tx.Exec(ctx,
			`INSERT INTO trades (trade_id, version, counter_party_id, book_id, maturity_date, created_date)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			stored.TradeID, stored.Version, stored.CounterPartyID, stored.BookID, stored.MaturityDate, stored.CreatedDate,
		)
	}
	if err != nil {
		return policy.Result{}, fmt.Errorf("write %s v%d: %w", stored.TradeID, stored.Version, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return policy.Result{}, fmt.Errorf("commit apply: %w", err)
	}
	return policy.Result{Outcome: decision.Outcome, Trade: stored.WithExpired(today)}, nil
}

func (s *PostgresStore) today() tradedate.Date {
	return tradedate.Today(s.now())
}

// scanTrades reads pgx rows into Trade slices.
func scanTrades(rows pgx.Rows) ([]model.Trade, error) {
	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		if err := rows.Scan(&t.TradeID, &t.Version, &t.CounterPartyID, &t.BookID, &t.MaturityDate, &t.CreatedDate); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
