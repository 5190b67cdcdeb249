// Package workflow runs the client side of a trade submission: a dry run
// of the version rules against a fresh snapshot, an explicit confirmation
// step before overwriting an existing version, and the authoritative
// commit whose outcome is broadcast on the session bus.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tradebook/trade-service/internal/model"
	"github.com/tradebook/trade-service/internal/notify"
	"github.com/tradebook/trade-service/internal/policy"
	"github.com/tradebook/trade-service/internal/query"
	"github.com/tradebook/trade-service/internal/tradedate"
)

var (
	// ErrHigherVersionExists blocks a submission before it is sent.
	ErrHigherVersionExists = errors.New("workflow: a higher version exists for this trade id")

	// ErrNothingPending is returned by Confirm outside the confirmation step.
	ErrNothingPending = errors.New("workflow: no submission awaiting confirmation")
)

// snapshotPageSize bounds each page fetched while collecting the versions
// of one tradeId.
const snapshotPageSize = 100

// Stage is where the workflow stands after a call.
type Stage int

const (
	StageIdle Stage = iota
	StageAwaitingConfirmation
	StageCommitted
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageAwaitingConfirmation:
		return "awaiting_confirmation"
	case StageCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// Step reports the stage reached by Submit or Confirm. Result is set only
// for StageCommitted.
type Step struct {
	Stage  Stage
	Result policy.Result
}

// Committer performs the authoritative write.
type Committer interface {
	CreateTrade(ctx context.Context, t model.Trade) (policy.Result, error)
}

// CommitFunc adapts a function, such as store.Store.Apply, to Committer.
type CommitFunc func(ctx context.Context, t model.Trade) (policy.Result, error)

func (f CommitFunc) CreateTrade(ctx context.Context, t model.Trade) (policy.Result, error) {
	return f(ctx, t)
}

// Workflow holds one session's submission state. It is safe for concurrent
// use but a session is expected to submit one trade at a time.
type Workflow struct {
	source    query.Source
	committer Committer
	bus       *notify.Bus

	mu      sync.Mutex
	pending *model.Trade
}

// New creates a workflow. bus may be nil when nobody listens for upserts.
func New(source query.Source, committer Committer, bus *notify.Bus) *Workflow {
	return &Workflow{source: source, committer: committer, bus: bus}
}

// Submit dry-runs the version rules for candidate. A higher stored
// version blocks with ErrHigherVersionExists; an equal one parks the
// candidate until Confirm or Cancel; anything else is committed at once.
// Maturity is expected to have been checked by Form.Validate; it is only
// normalised to YYYY-MM-DD here.
func (w *Workflow) Submit(ctx context.Context, candidate model.Trade) (Step, error) {
	w.mu.Lock()
	w.pending = nil
	w.mu.Unlock()

	maturity, err := tradedate.NormalizeISO(candidate.MaturityDate)
	if err != nil {
		return Step{}, &ValidationError{Fields: map[string]string{"maturityDate": MsgMaturityFormat}}
	}
	candidate.MaturityDate = maturity
	candidate.CreatedDate = ""
	candidate.Expired = ""

	existing, err := Snapshot(ctx, w.source, candidate.TradeID)
	if err != nil {
		return Step{}, fmt.Errorf("load versions of %s: %w", candidate.TradeID, err)
	}

	switch policy.CheckVersions(candidate, existing).Outcome {
	case policy.RejectedLowerVersion:
		slog.Info("submission blocked", "trade_id", candidate.TradeID, "version", candidate.Version)
		return Step{Stage: StageIdle}, ErrHigherVersionExists
	case policy.Replaced:
		w.mu.Lock()
		w.pending = &candidate
		w.mu.Unlock()
		return Step{Stage: StageAwaitingConfirmation}, nil
	}

	return w.commit(ctx, candidate)
}

// Confirm commits the parked candidate. On failure the candidate stays
// parked so the caller can retry or cancel.
func (w *Workflow) Confirm(ctx context.Context) (Step, error) {
	w.mu.Lock()
	pending := w.pending
	w.mu.Unlock()
	if pending == nil {
		return Step{Stage: StageIdle}, ErrNothingPending
	}

	step, err := w.commit(ctx, *pending)
	if err != nil {
		return Step{Stage: StageAwaitingConfirmation}, err
	}

	w.mu.Lock()
	if w.pending == pending {
		w.pending = nil
	}
	w.mu.Unlock()
	return step, nil
}

// Cancel drops the parked candidate. Nothing is sent or published.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	w.pending = nil
	w.mu.Unlock()
}

// State returns StageAwaitingConfirmation while a candidate is parked.
func (w *Workflow) State() Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		return StageAwaitingConfirmation
	}
	return StageIdle
}

// Pending returns a copy of the parked candidate.
func (w *Workflow) Pending() (model.Trade, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return model.Trade{}, false
	}
	return *w.pending, true
}

// commit sends the candidate and publishes whatever the committer reports;
// the dry run's guess is not consulted.
func (w *Workflow) commit(ctx context.Context, candidate model.Trade) (Step, error) {
	res, err := w.committer.CreateTrade(ctx, candidate)
	if err != nil {
		return Step{Stage: StageIdle}, err
	}

	u := notify.Upsert{Trade: res.Trade, Replaced: res.Replaced()}
	slog.Info("trade "+u.Verb(), "trade_id", res.Trade.TradeID, "version", res.Trade.Version)
	if w.bus != nil {
		w.bus.Publish(u)
	}
	return Step{Stage: StageCommitted, Result: res}, nil
}

// Snapshot collects every stored version of tradeID from source.
func Snapshot(ctx context.Context, source query.Source, tradeID string) ([]model.Trade, error) {
	params := query.Params{
		Filters:  []query.Predicate{{Field: query.FieldTradeID, Op: query.OpEquals, Value: tradeID}},
		PageSize: snapshotPageSize,
	}

	var found []model.Trade
	for {
		res, err := source.ListTrades(ctx, params)
		if err != nil {
			return nil, err
		}
		// equals is case-insensitive; versions belong to the exact id only.
		for _, t := range res.Data {
			if t.TradeID == tradeID {
				found = append(found, t)
			}
		}
		params.Page++
		if len(res.Data) == 0 || params.Page*params.PageSize >= res.Total {
			return found, nil
		}
	}
}
