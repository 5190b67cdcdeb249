// Package model defines the trade record shared by the store, the query
// engine, the HTTP layer and the client.
package model

import (
	"github.com/tradebook/trade-service/internal/tradedate"
)

// Expired flag values.
const (
	ExpiredYes = "Y"
	ExpiredNo  = "N"
)

// Trade is one version of a trade. Versions sharing a TradeID form a
// forward-only history; (TradeID, Version) is unique in the store.
//
// MaturityDate and CreatedDate are kept as text in whichever shape the
// producer used (YYYY-MM-DD from the form, DD/MM/YYYY from the store).
// Expired is derived on every read and never persisted.
type Trade struct {
	TradeID        string `json:"tradeId"`
	Version        int    `json:"version"`
	CounterPartyID string `json:"counterPartyId"`
	BookID         string `json:"bookId"`
	MaturityDate   string `json:"maturityDate"`
	CreatedDate    string `json:"createdDate,omitempty"`
	Expired        string `json:"expired,omitempty"`
}

// Key identifies a single trade version.
type Key struct {
	TradeID string
	Version int
}

// Key returns the (TradeID, Version) pair of t.
func (t Trade) Key() Key {
	return Key{TradeID: t.TradeID, Version: t.Version}
}

// ExpiredFlag returns "Y" when maturity is strictly before today.
// Unparseable maturities are reported as not expired.
func ExpiredFlag(maturity string, today tradedate.Date) string {
	d, err := tradedate.Parse(maturity)
	if err != nil {
		return ExpiredNo
	}
	if d.Before(today) {
		return ExpiredYes
	}
	return ExpiredNo
}

// WithExpired returns a copy of t with Expired recomputed against today.
func (t Trade) WithExpired(today tradedate.Date) Trade {
	t.Expired = ExpiredFlag(t.MaturityDate, today)
	return t
}

// WithExpiredAll recomputes Expired on a copy of every record.
func WithExpiredAll(trades []Trade, today tradedate.Date) []Trade {
	out := make([]Trade, len(trades))
	for i, t := range trades {
		out[i] = t.WithExpired(today)
	}
	return out
}

// Fixtures returns the starting dataset used by the development store.
// T2 v2 exists so that a T2 v1 submission is rejected as a lower version.
func Fixtures() []Trade {
	return []Trade{
		{TradeID: "T001", Version: 1, CounterPartyID: "CP-101", BookID: "B1", MaturityDate: "31/12/2026", CreatedDate: "10/11/2024"},
		{TradeID: "T001", Version: 2, CounterPartyID: "CP-101", BookID: "B1", MaturityDate: "15/03/2027", CreatedDate: "01/12/2024"},
		{TradeID: "T2", Version: 2, CounterPartyID: "CP-205", BookID: "B3", MaturityDate: "10/09/2025", CreatedDate: "22/07/2024"},
		{TradeID: "T002", Version: 1, CounterPartyID: "CP-205", BookID: "B3", MaturityDate: "10/09/2025", CreatedDate: "22/07/2024"},
		{TradeID: "T003", Version: 3, CounterPartyID: "CP-102", BookID: "B2", MaturityDate: "01/01/2028", CreatedDate: "05/10/2024"},
		{TradeID: "T004", Version: 1, CounterPartyID: "CP-305", BookID: "B4", MaturityDate: "20/02/2025", CreatedDate: "11/06/2024"},
		{TradeID: "T005", Version: 2, CounterPartyID: "CP-110", BookID: "B2", MaturityDate: "30/08/2027", CreatedDate: "14/09/2024"},
	}
}
