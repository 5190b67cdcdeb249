package store_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tradebook/trade-service/internal/model"
	"github.com/tradebook/trade-service/internal/policy"
	"github.com/tradebook/trade-service/internal/store"
)

// fixedNow pins "today" to 17 Oct 2026 local time.
func fixedNow() time.Time {
	return time.Date(2026, time.October, 17, 10, 30, 0, 0, time.Local)
}

func newStore(seed ...model.Trade) *store.MemoryStore {
	return store.NewMemoryStore(seed, store.WithClock(fixedNow))
}

func TestApply_ScenarioA_LowerVersionRejected(t *testing.T) {
	ms := newStore(
		model.Trade{TradeID: "T001", Version: 1, CounterPartyID: "CP-101", BookID: "B1", MaturityDate: "31/12/2026", CreatedDate: "10/11/2024"},
		model.Trade{TradeID: "T001", Version: 2, CounterPartyID: "CP-101", BookID: "B1", MaturityDate: "15/03/2027", CreatedDate: "01/12/2024"},
	)
	ctx := context.Background()
	before, _ := ms.ListTrades(ctx)

	res, err := ms.Apply(ctx, model.Trade{TradeID: "T001", Version: 1, CounterPartyID: "CP-X", BookID: "B9", MaturityDate: "2099-12-31"})
	if !errors.Is(err, policy.ErrLowerVersion) {
		t.Fatalf("expected ErrLowerVersion, got %v", err)
	}
	if res.Outcome != policy.RejectedLowerVersion {
		t.Errorf("expected RejectedLowerVersion outcome, got %s", res.Outcome)
	}

	after, _ := ms.ListTrades(ctx)
	if !reflect.DeepEqual(before, after) {
		t.Errorf("store changed after rejection:\nbefore=%+v\nafter=%+v", before, after)
	}
}

func TestApply_ScenarioB_ReplacePreservesCreatedDate(t *testing.T) {
	ms := newStore(
		model.Trade{TradeID: "T001", Version: 2, CounterPartyID: "CP-101", BookID: "B1", MaturityDate: "15/03/2027", CreatedDate: "01/12/2024"},
	)
	ctx := context.Background()

	res, err := ms.Apply(ctx, model.Trade{TradeID: "T001", Version: 2, CounterPartyID: "CP-999", BookID: "B7", MaturityDate: "31/12/2099"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Replaced() {
		t.Fatalf("expected Replaced, got %s", res.Outcome)
	}
	if res.Trade.CreatedDate != "01/12/2024" {
		t.Errorf("expected createdDate 01/12/2024, got %s", res.Trade.CreatedDate)
	}

	versions, _ := ms.TradeVersions(ctx, "T001")
	if len(versions) != 1 {
		t.Fatalf("replace must not duplicate, got %d versions", len(versions))
	}
	got := versions[0]
	if got.CounterPartyID != "CP-999" || got.BookID != "B7" || got.MaturityDate != "31/12/2099" {
		t.Errorf("replace did not overwrite fields: %+v", got)
	}
	if got.CreatedDate != "01/12/2024" {
		t.Errorf("stored createdDate changed: %s", got.CreatedDate)
	}
}

func TestApply_ScenarioC_PastMaturityRejected(t *testing.T) {
	ms := newStore()
	ctx := context.Background()

	res, err := ms.Apply(ctx, model.Trade{TradeID: "TX", Version: 1, CounterPartyID: "CP-X", BookID: "B1", MaturityDate: "01/01/2000"})
	if !errors.Is(err, policy.ErrMaturityInPast) {
		t.Fatalf("expected ErrMaturityInPast, got %v", err)
	}
	if res.Outcome != policy.RejectedMaturityInPast {
		t.Errorf("expected RejectedMaturityInPast, got %s", res.Outcome)
	}
	all, _ := ms.ListTrades(ctx)
	if len(all) != 0 {
		t.Errorf("expected empty store, got %d", len(all))
	}
}

func TestApply_ScenarioD_InsertAssignsToday(t *testing.T) {
	ms := newStore()
	ctx := context.Background()

	res, err := ms.Apply(ctx, model.Trade{TradeID: "T009", Version: 1, CounterPartyID: "CP-1", BookID: "B1", MaturityDate: "2099-01-01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != policy.Inserted {
		t.Fatalf("expected Inserted, got %s", res.Outcome)
	}
	if res.Trade.CreatedDate != "17/10/2026" {
		t.Errorf("expected createdDate 17/10/2026, got %s", res.Trade.CreatedDate)
	}
	if res.Trade.Expired != model.ExpiredNo {
		t.Errorf("expected expired N, got %q", res.Trade.Expired)
	}
}

func TestApply_HigherVersionAppends(t *testing.T) {
	ms := newStore(model.Trade{TradeID: "T1", Version: 1, MaturityDate: "2099-01-01", CreatedDate: "01/01/2026"})
	ctx := context.Background()

	res, err := ms.Apply(ctx, model.Trade{TradeID: "T1", Version: 3, MaturityDate: "2099-01-01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != policy.Inserted {
		t.Fatalf("expected Inserted, got %s", res.Outcome)
	}
	versions, _ := ms.TradeVersions(ctx, "T1")
	if len(versions) != 2 {
		t.Errorf("expected 2 versions, got %d", len(versions))
	}
}

func TestApply_InvalidCandidate(t *testing.T) {
	ms := newStore()
	for _, c := range []model.Trade{
		{Version: 1, MaturityDate: "2099-01-01"},
		{TradeID: "T1", Version: 0, MaturityDate: "2099-01-01"},
	} {
		if _, err := ms.Apply(context.Background(), c); !errors.Is(err, store.ErrInvalidTrade) {
			t.Errorf("expected ErrInvalidTrade for %+v, got %v", c, err)
		}
	}
}

func TestListTrades_RecomputesExpired(t *testing.T) {
	// Stored "N" must be ignored: the flag is derived on read.
	ms := newStore(model.Trade{TradeID: "T004", Version: 1, MaturityDate: "20/02/2025", CreatedDate: "11/06/2024", Expired: model.ExpiredNo})

	all, _ := ms.ListTrades(context.Background())
	if all[0].Expired != model.ExpiredYes {
		t.Errorf("expected expired Y, got %s", all[0].Expired)
	}
}

func TestListTrades_ReturnsCopies(t *testing.T) {
	ms := newStore(model.Fixtures()...)
	ctx := context.Background()

	all, _ := ms.ListTrades(ctx)
	all[0].BookID = "MUTATED"

	again, _ := ms.ListTrades(ctx)
	if again[0].BookID == "MUTATED" {
		t.Error("ListTrades leaked internal state")
	}
}

func TestReset_RestoresSeed(t *testing.T) {
	ms := newStore(model.Fixtures()...)
	ctx := context.Background()

	if _, err := ms.Apply(ctx, model.Trade{TradeID: "NEW", Version: 1, MaturityDate: "2099-01-01"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ms.Reset()

	all, _ := ms.ListTrades(ctx)
	if len(all) != len(model.Fixtures()) {
		t.Errorf("expected %d trades after reset, got %d", len(model.Fixtures()), len(all))
	}
}
