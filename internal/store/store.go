// Package store defines the persistence interface for trade records.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache) and in-memory (development and tests).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tradebook/trade-service/internal/model"
	"github.com/tradebook/trade-service/internal/policy"
)

// ErrInvalidTrade is returned by Apply for candidates missing a tradeId or
// carrying a non-positive version.
var ErrInvalidTrade = errors.New("store: trade id and a positive version are required")

// Store is the persistence interface. Apply is the only mutation entry
// point and enforces the versioning policy; everything else is a read.
type Store interface {
	// ListTrades returns every stored record with Expired recomputed
	// against the current day.
	ListTrades(ctx context.Context) ([]model.Trade, error)

	// TradeVersions returns all stored versions of one tradeId.
	TradeVersions(ctx context.Context, tradeID string) ([]model.Trade, error)

	// Apply evaluates the candidate against the versioning policy and
	// stores it when accepted. Rejections leave the store unchanged and
	// return policy.ErrMaturityInPast or policy.ErrLowerVersion alongside
	// a Result carrying the rejected outcome.
	Apply(ctx context.Context, candidate model.Trade) (policy.Result, error)
}

// Option configures a store implementation.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for "today".
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func validate(candidate model.Trade) error {
	if candidate.TradeID == "" || candidate.Version < 1 {
		return ErrInvalidTrade
	}
	return nil
}
