package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradebook/trade-service/internal/model"
	"github.com/tradebook/trade-service/internal/policy"
	"github.com/tradebook/trade-service/internal/tradedate"
)

const tradesKey = "trades:all"

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache of the full trade list. Apply goes to the primary and invalidates
// the cache; reads check Redis first then fall back to the primary.
//
// Cached rows hold stored fields only. Expired is recomputed on every
// read so a cached snapshot never serves a stale flag across midnight.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
	now     func() time.Time
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration, opts ...Option) *CachedStore {
	o := buildOptions(opts)
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
		now:     o.now,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) Apply(ctx context.Context, candidate model.Trade) (policy.Result, error) {
	res, err := s.primary.Apply(ctx, candidate)
	if err != nil {
		return res, err
	}
	// Invalidate; next read will re-populate.
	s.rdb.Del(ctx, tradesKey)
	return res, nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) ListTrades(ctx context.Context) ([]model.Trade, error) {
	trades, err := s.cached(ctx)
	if err != nil {
		return nil, err
	}
	return model.WithExpiredAll(trades, tradedate.Today(s.now())), nil
}

func (s *CachedStore) TradeVersions(ctx context.Context, tradeID string) ([]model.Trade, error) {
	trades, err := s.cached(ctx)
	if err != nil {
		return nil, err
	}
	today := tradedate.Today(s.now())
	var result []model.Trade
	for _, t := range trades {
		if t.TradeID == tradeID {
			result = append(result, t.WithExpired(today))
		}
	}
	return result, nil
}

// --- Cache helpers ---

func (s *CachedStore) cached(ctx context.Context) ([]model.Trade, error) {
	data, err := s.rdb.Get(ctx, tradesKey).Bytes()
	if err == nil {
		var trades []model.Trade
		if json.Unmarshal(data, &trades) == nil {
			return trades, nil
		}
	}

	// Cache miss: read from primary.
	trades, err := s.primary.ListTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("list trades from primary: %w", err)
	}
	for i := range trades {
		trades[i].Expired = ""
	}
	if data, err := json.Marshal(trades); err == nil {
		s.rdb.Set(ctx, tradesKey, data, s.ttl)
	}
	return trades, nil
}
