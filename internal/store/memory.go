package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tradebook/trade-service/internal/model"
	"github.com/tradebook/trade-service/internal/policy"
	"github.com/tradebook/trade-service/internal/tradedate"
)

// MemoryStore implements Store with an in-memory slice. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	trades []model.Trade
	seed   []model.Trade
	now    func() time.Time
}

// NewMemoryStore creates an in-memory store holding a copy of seed.
func NewMemoryStore(seed []model.Trade, opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	s := &MemoryStore{
		seed: append([]model.Trade(nil), seed...),
		now:  o.now,
	}
	s.Reset()
	return s
}

// Reset restores the seed dataset.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = make([]model.Trade, 0, len(s.seed))
	for _, t := range s.seed {
		t.Expired = ""
		s.trades = append(s.trades, t)
	}
}

func (s *MemoryStore) ListTrades(_ context.Context) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.WithExpiredAll(s.trades, s.today()), nil
}

func (s *MemoryStore) TradeVersions(_ context.Context, tradeID string) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := s.today()
	var result []model.Trade
	for _, t := range s.trades {
		if t.TradeID == tradeID {
			result = append(result, t.WithExpired(today))
		}
	}
	return result, nil
}

func (s *MemoryStore) Apply(_ context.Context, candidate model.Trade) (policy.Result, error) {
	if err := validate(candidate); err != nil {
		return policy.Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.today()
	decision := policy.Decide(candidate, s.trades, today)
	if err := decision.Outcome.Err(); err != nil {
		return policy.Result{Outcome: decision.Outcome}, fmt.Errorf("apply %s v%d: %w", candidate.TradeID, candidate.Version, err)
	}

	stored := policy.Resolve(candidate, decision, today)
	if decision.Outcome == policy.Replaced {
		for i := range s.trades {
			if s.trades[i].Key() == stored.Key() {
				s.trades[i] = stored
			}
		}
	} else {
		s.trades = append(s.trades, stored)
	}

	return policy.Result{Outcome: decision.Outcome, Trade: stored.WithExpired(today)}, nil
}

func (s *MemoryStore) today() tradedate.Date {
	return tradedate.Today(s.now())
}
