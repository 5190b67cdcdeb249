package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/tradebook/trade-service/internal/model"
	"github.com/tradebook/trade-service/internal/tradedate"
)

var today = tradedate.Date{Year: 2026, Month: time.October, Day: 17}

func trade(id string, version int, maturity string) model.Trade {
	return model.Trade{
		TradeID:        id,
		Version:        version,
		CounterPartyID: "CP-1",
		BookID:         "B1",
		MaturityDate:   maturity,
	}
}

func TestDecide_LowerVersionRejected(t *testing.T) {
	existing := []model.Trade{
		trade("T001", 1, "31/12/2026"),
		trade("T001", 2, "15/03/2027"),
	}
	d := Decide(trade("T001", 1, "2099-12-31"), existing, today)
	if d.Outcome != RejectedLowerVersion {
		t.Fatalf("expected RejectedLowerVersion, got %s", d.Outcome)
	}
	if !errors.Is(d.Outcome.Err(), ErrLowerVersion) {
		t.Errorf("expected ErrLowerVersion, got %v", d.Outcome.Err())
	}
}

func TestDecide_SameVersionReplaced(t *testing.T) {
	prev := trade("T001", 2, "15/03/2027")
	prev.CreatedDate = "01/12/2024"

	d := Decide(trade("T001", 2, "31/12/2099"), []model.Trade{prev}, today)
	if d.Outcome != Replaced {
		t.Fatalf("expected Replaced, got %s", d.Outcome)
	}
	if d.Existing == nil || d.Existing.CreatedDate != "01/12/2024" {
		t.Fatalf("expected existing record to be reported, got %+v", d.Existing)
	}

	stored := Resolve(trade("T001", 2, "31/12/2099"), d, today)
	if stored.CreatedDate != "01/12/2024" {
		t.Errorf("replace must keep createdDate, got %s", stored.CreatedDate)
	}
}

func TestDecide_PastMaturityShortCircuits(t *testing.T) {
	// Would be a valid insert if maturity were in the future.
	d := Decide(trade("TX", 1, "01/01/2000"), nil, today)
	if d.Outcome != RejectedMaturityInPast {
		t.Fatalf("expected RejectedMaturityInPast, got %s", d.Outcome)
	}

	// Past maturity wins over a version conflict too.
	existing := []model.Trade{trade("TX", 5, "2099-01-01")}
	d = Decide(trade("TX", 1, "2000-01-01"), existing, today)
	if d.Outcome != RejectedMaturityInPast {
		t.Fatalf("expected RejectedMaturityInPast before version check, got %s", d.Outcome)
	}
}

func TestDecide_InvalidMaturityRejected(t *testing.T) {
	for _, m := range []string{"", "soon", "2026/12/31"} {
		d := Decide(trade("TX", 1, m), nil, today)
		if d.Outcome != RejectedMaturityInPast {
			t.Errorf("maturity %q: expected RejectedMaturityInPast, got %s", m, d.Outcome)
		}
	}
}

func TestDecide_MaturityTodayAccepted(t *testing.T) {
	d := Decide(trade("T9", 1, today.ISO()), nil, today)
	if d.Outcome != Inserted {
		t.Errorf("maturity equal to today should be accepted, got %s", d.Outcome)
	}
}

func TestDecide_InsertAssignsCreatedDate(t *testing.T) {
	d := Decide(trade("T009", 1, "2099-01-01"), nil, today)
	if d.Outcome != Inserted {
		t.Fatalf("expected Inserted, got %s", d.Outcome)
	}
	stored := Resolve(trade("T009", 1, "2099-01-01"), d, today)
	if stored.CreatedDate != "17/10/2026" {
		t.Errorf("expected createdDate 17/10/2026, got %s", stored.CreatedDate)
	}
}

func TestDecide_InsertKeepsSuppliedCreatedDate(t *testing.T) {
	c := trade("T010", 1, "2099-01-01")
	c.CreatedDate = "2026-10-01"
	stored := Resolve(c, Decide(c, nil, today), today)
	if stored.CreatedDate != "2026-10-01" {
		t.Errorf("expected supplied createdDate kept, got %s", stored.CreatedDate)
	}
}

func TestDecide_IgnoresOtherTradeIDs(t *testing.T) {
	existing := []model.Trade{trade("OTHER", 9, "2099-01-01")}
	d := Decide(trade("T1", 1, "2099-01-01"), existing, today)
	if d.Outcome != Inserted {
		t.Errorf("expected Inserted, got %s", d.Outcome)
	}
}

func TestCheckVersions_SkipsMaturity(t *testing.T) {
	d := CheckVersions(trade("T1", 1, "01/01/2000"), nil)
	if d.Outcome != Inserted {
		t.Errorf("dry run must not evaluate maturity, got %s", d.Outcome)
	}
}

func TestResolve_ClearsExpired(t *testing.T) {
	c := trade("T1", 1, "2099-01-01")
	c.Expired = model.ExpiredYes
	stored := Resolve(c, Decision{Outcome: Inserted}, today)
	if stored.Expired != "" {
		t.Errorf("expired must not be persisted, got %q", stored.Expired)
	}
}

func TestProperty_MonotonicRejection(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("candidate below max stored version is rejected", prop.ForAll(
		func(versions []int, candidate int) bool {
			existing := make([]model.Trade, 0, len(versions))
			maxVersion := 0
			for _, v := range versions {
				existing = append(existing, trade("T1", v, "2099-01-01"))
				if v > maxVersion {
					maxVersion = v
				}
			}
			d := Decide(trade("T1", candidate, "2099-01-01"), existing, today)

			switch {
			case maxVersion > candidate:
				return d.Outcome == RejectedLowerVersion
			case containsInt(versions, candidate):
				return d.Outcome == Replaced
			default:
				return d.Outcome == Inserted
			}
		},
		gen.SliceOf(gen.IntRange(1, 20)),
		gen.IntRange(1, 20),
	))

	properties.Property("past maturity always rejected", prop.ForAll(
		func(versions []int, candidate int, daysAgo int) bool {
			existing := make([]model.Trade, 0, len(versions))
			for _, v := range versions {
				existing = append(existing, trade("T1", v, "2099-01-01"))
			}
			past := tradedate.FromTime(today.Time().AddDate(0, 0, -daysAgo))
			d := Decide(trade("T1", candidate, past.ISO()), existing, today)
			return d.Outcome == RejectedMaturityInPast
		},
		gen.SliceOf(gen.IntRange(1, 20)),
		gen.IntRange(1, 20),
		gen.IntRange(1, 3650),
	))

	properties.TestingRun(t)
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
