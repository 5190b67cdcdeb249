// Package policy decides what happens to a submitted trade version.
//
// The same decision is evaluated twice: as a dry run on the client before
// submission (CheckVersions) and authoritatively by the store on write
// (Decide). Both call sites share this package so the rules cannot drift.
//
// Decision order for Decide:
//  1. maturity unparseable or strictly before today → RejectedMaturityInPast
//  2. any existing version of the tradeId is higher  → RejectedLowerVersion
//  3. an existing record has the same version       → Replaced
//  4. otherwise                                      → Inserted
package policy

import (
	"errors"

	"github.com/tradebook/trade-service/internal/model"
	"github.com/tradebook/trade-service/internal/tradedate"
)

var (
	// ErrMaturityInPast rejects candidates whose maturity date is invalid
	// or before the current calendar day.
	ErrMaturityInPast = errors.New("policy: maturity date is before today")

	// ErrLowerVersion rejects candidates when a higher version of the same
	// tradeId is already stored.
	ErrLowerVersion = errors.New("policy: lower version exists")
)

// Outcome is the terminal state of one submission.
type Outcome int

const (
	Inserted Outcome = iota + 1
	Replaced
	RejectedMaturityInPast
	RejectedLowerVersion
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Replaced:
		return "replaced"
	case RejectedMaturityInPast:
		return "maturity_in_past"
	case RejectedLowerVersion:
		return "lower_version"
	default:
		return "unknown"
	}
}

// Accepted reports whether the outcome stores the candidate.
func (o Outcome) Accepted() bool {
	return o == Inserted || o == Replaced
}

// Err maps rejections to their sentinel error, nil otherwise.
func (o Outcome) Err() error {
	switch o {
	case RejectedMaturityInPast:
		return ErrMaturityInPast
	case RejectedLowerVersion:
		return ErrLowerVersion
	default:
		return nil
	}
}

// Decision is the verdict for one candidate. Existing is the same-version
// record being overwritten and is only set for Replaced.
type Decision struct {
	Outcome  Outcome
	Existing *model.Trade
}

// Result is what a store reports back after applying a candidate.
type Result struct {
	Outcome Outcome     `json:"-"`
	Trade   model.Trade `json:"trade"`
}

// Replaced reports whether the write overwrote an existing version.
func (r Result) Replaced() bool {
	return r.Outcome == Replaced
}

// Decide runs the full rule set. records may contain other tradeIds; they
// are ignored.
func Decide(candidate model.Trade, records []model.Trade, today tradedate.Date) Decision {
	maturity, err := tradedate.Parse(candidate.MaturityDate)
	if err != nil || maturity.Before(today) {
		return Decision{Outcome: RejectedMaturityInPast}
	}
	return CheckVersions(candidate, records)
}

// CheckVersions runs the version rules only. The client uses it as a dry
// run; maturity is validated there by the form.
func CheckVersions(candidate model.Trade, records []model.Trade) Decision {
	var same *model.Trade
	for i := range records {
		r := records[i]
		if r.TradeID != candidate.TradeID {
			continue
		}
		if r.Version > candidate.Version {
			return Decision{Outcome: RejectedLowerVersion}
		}
		if r.Version == candidate.Version && same == nil {
			same = &r
		}
	}
	if same != nil {
		return Decision{Outcome: Replaced, Existing: same}
	}
	return Decision{Outcome: Inserted}
}

// Resolve returns the record to store for an accepted decision.
// A replace keeps the existing createdDate; an insert without one is
// stamped with today in the store's slash shape. Expired is cleared
// because it is never persisted.
func Resolve(candidate model.Trade, d Decision, today tradedate.Date) model.Trade {
	stored := candidate
	stored.Expired = ""
	if d.Outcome == Replaced && d.Existing != nil && d.Existing.CreatedDate != "" {
		stored.CreatedDate = d.Existing.CreatedDate
	}
	if stored.CreatedDate == "" {
		stored.CreatedDate = today.Slash()
	}
	return stored
}
