package notify

import (
	"context"
	"sync"

	"github.com/tradebook/trade-service/internal/model"
	"github.com/tradebook/trade-service/internal/query"
)

// DefaultPageSize is the page size a new list view starts with.
const DefaultPageSize = 5

// ViewState is the per-session grid state: pagination, sort and filters.
type ViewState struct {
	Page     int
	PageSize int
	Sort     *query.Sort
	Filters  []query.Predicate
}

// Params converts the state into a list query.
func (s ViewState) Params() query.Params {
	return query.Params{
		Filters:  s.Filters,
		Sort:     s.Sort,
		Page:     s.Page,
		PageSize: s.PageSize,
	}
}

// ListView holds the rows currently shown for one session. Refresh loads a
// page from the source; Apply patches the rows from an upsert.
type ListView struct {
	mu     sync.RWMutex
	source query.Source
	state  ViewState
	rows   []model.Trade
	total  int
}

// NewListView creates a view over source. A zero page size falls back to
// DefaultPageSize.
func NewListView(source query.Source, state ViewState) *ListView {
	if state.PageSize <= 0 {
		state.PageSize = DefaultPageSize
	}
	return &ListView{source: source, state: state}
}

// Refresh re-queries the source with the current state.
func (v *ListView) Refresh(ctx context.Context) error {
	v.mu.RLock()
	params := v.state.Params()
	v.mu.RUnlock()

	res, err := v.source.ListTrades(ctx, params)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.rows = append([]model.Trade(nil), res.Data...)
	v.total = res.Total
	v.mu.Unlock()
	return nil
}

// SetState replaces the grid state. Rows are not reloaded until Refresh.
func (v *ListView) SetState(state ViewState) {
	if state.PageSize <= 0 {
		state.PageSize = DefaultPageSize
	}
	v.mu.Lock()
	v.state = state
	v.mu.Unlock()
}

// State returns the current grid state.
func (v *ListView) State() ViewState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Apply overwrites the row with the same (tradeId, version) or, when none
// is shown, prepends the trade. The source is not consulted.
func (v *ListView) Apply(u Upsert) {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := u.Trade.Key()
	for i := range v.rows {
		if v.rows[i].Key() == key {
			v.rows[i] = u.Trade
			return
		}
	}
	v.rows = append([]model.Trade{u.Trade}, v.rows...)
}

// Attach subscribes the view to bus.
func (v *ListView) Attach(bus *Bus) *Subscription {
	return bus.Subscribe(v.Apply)
}

// Rows returns a copy of the visible rows.
func (v *ListView) Rows() []model.Trade {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]model.Trade(nil), v.rows...)
}

// Total is the filtered count reported by the last Refresh.
func (v *ListView) Total() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.total
}

// Pages is the page count implied by Total and the page size.
func (v *ListView) Pages() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return (v.total + v.state.PageSize - 1) / v.state.PageSize
}
