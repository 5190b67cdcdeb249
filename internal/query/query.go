// Package query filters, sorts and paginates trade records for list views.
//
// Filterable and sortable columns form a closed set (Field) backed by typed
// accessors; unknown columns are rejected instead of silently matching
// nothing. Run never mutates its input.
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tradebook/trade-service/internal/model"
	"github.com/tradebook/trade-service/internal/tradedate"
)

var (
	ErrUnknownField     = errors.New("query: unknown field")
	ErrInvalidDirection = errors.New("query: sort direction must be asc or desc")
)

// Field is a column of the trade grid.
type Field string

const (
	FieldTradeID        Field = "tradeId"
	FieldVersion        Field = "version"
	FieldCounterPartyID Field = "counterPartyId"
	FieldBookID         Field = "bookId"
	FieldMaturityDate   Field = "maturityDate"
	FieldCreatedDate    Field = "createdDate"
	FieldExpired        Field = "expired"
)

// value is one cell read from a trade. present is false for empty text
// columns, which fail every predicate.
type value struct {
	text    string
	num     int
	numeric bool
	present bool
}

func textValue(s string) value {
	return value{text: s, present: s != ""}
}

var accessors = map[Field]func(model.Trade) value{
	FieldTradeID:        func(t model.Trade) value { return textValue(t.TradeID) },
	FieldVersion:        func(t model.Trade) value { return value{text: strconv.Itoa(t.Version), num: t.Version, numeric: true, present: true} },
	FieldCounterPartyID: func(t model.Trade) value { return textValue(t.CounterPartyID) },
	FieldBookID:         func(t model.Trade) value { return textValue(t.BookID) },
	FieldMaturityDate:   func(t model.Trade) value { return textValue(t.MaturityDate) },
	FieldCreatedDate:    func(t model.Trade) value { return textValue(t.CreatedDate) },
	FieldExpired:        func(t model.Trade) value { return textValue(t.Expired) },
}

// ParseField validates a column name.
func ParseField(name string) (Field, error) {
	f := Field(name)
	if _, ok := accessors[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return f, nil
}

// Sort orders the filtered set by one column.
type Sort struct {
	Field Field
	Desc  bool
}

// ParseSort builds a Sort from wire parameters. An empty field means no
// sort; an empty direction means ascending.
func ParseSort(field, dir string) (*Sort, error) {
	if field == "" {
		return nil, nil
	}
	f, err := ParseField(field)
	if err != nil {
		return nil, err
	}
	switch dir {
	case "", "asc":
		return &Sort{Field: f}, nil
	case "desc":
		return &Sort{Field: f, Desc: true}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}
}

// Direction returns "asc" or "desc".
func (s Sort) Direction() string {
	if s.Desc {
		return "desc"
	}
	return "asc"
}

// Params selects one page of the list.
type Params struct {
	Filters  []Predicate
	Sort     *Sort
	Page     int
	PageSize int
}

// Result carries the size of the filtered set and the requested page.
type Result struct {
	Total int           `json:"total"`
	Data  []model.Trade `json:"data"`
}

// Source is anything that can answer a list query: the HTTP client or a
// store wrapped by Over.
type Source interface {
	ListTrades(ctx context.Context, p Params) (Result, error)
}

// Run filters, sorts and paginates records. Page is zero-indexed; Total
// counts the filtered set before pagination.
func Run(records []model.Trade, p Params) Result {
	filtered := make([]model.Trade, 0, len(records))
	for _, r := range records {
		if matchesAll(r, p.Filters) {
			filtered = append(filtered, r)
		}
	}

	if get, ok := sortAccessor(p.Sort); ok {
		desc := p.Sort.Desc
		sort.SliceStable(filtered, func(i, j int) bool {
			c := compare(get(filtered[i]), get(filtered[j]))
			if desc {
				return c > 0
			}
			return c < 0
		})
	}

	page := p.Page
	if page < 0 {
		page = 0
	}
	data := []model.Trade{}
	if p.PageSize > 0 && page <= len(filtered)/p.PageSize {
		start := page * p.PageSize
		if start < len(filtered) {
			end := start + p.PageSize
			if end > len(filtered) {
				end = len(filtered)
			}
			data = filtered[start:end]
		}
	}
	return Result{Total: len(filtered), Data: data}
}

func sortAccessor(s *Sort) (func(model.Trade) value, bool) {
	if s == nil {
		return nil, false
	}
	get, ok := accessors[s.Field]
	return get, ok
}

// compare orders two cells: as dates when both parse as dates, as numbers
// when both are numeric, otherwise as case-sensitive strings.
func compare(a, b value) int {
	if da, err := tradedate.Parse(a.text); err == nil {
		if db, err := tradedate.Parse(b.text); err == nil {
			return da.Compare(db)
		}
	}
	if a.numeric && b.numeric {
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a.text, b.text)
}

type storeLister interface {
	ListTrades(ctx context.Context) ([]model.Trade, error)
}

type overStore struct {
	st storeLister
}

// Over adapts a store's full listing into a Source by running the query
// engine over every read.
func Over(st storeLister) Source {
	return overStore{st: st}
}

func (o overStore) ListTrades(ctx context.Context, p Params) (Result, error) {
	records, err := o.st.ListTrades(ctx)
	if err != nil {
		return Result{}, err
	}
	return Run(records, p), nil
}
