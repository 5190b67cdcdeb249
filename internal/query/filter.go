package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tradebook/trade-service/internal/model"
)

// Operator is a filter comparison.
type Operator string

const (
	OpContains    Operator = "contains"
	OpEquals      Operator = "equals"
	OpStartsWith  Operator = "startsWith"
	OpEndsWith    Operator = "endsWith"
	OpGreaterThan Operator = ">"
	OpLessThan    Operator = "<"
)

// ParseOperator maps a wire operator to an Operator. "is" is an alias of
// equals; empty and unrecognised operators fall back to contains.
func ParseOperator(s string) Operator {
	switch Operator(s) {
	case OpEquals, "is":
		return OpEquals
	case OpStartsWith, OpEndsWith, OpGreaterThan, OpLessThan:
		return Operator(s)
	default:
		return OpContains
	}
}

// Predicate is one (field, operator, value) condition. A filter is the
// conjunction of its predicates.
type Predicate struct {
	Field Field
	Op    Operator
	Value string
}

// Match reports whether t satisfies the predicate. String operators are
// case-insensitive; > and < compare both sides as exact decimals and fail
// when either side is not a number.
func (p Predicate) Match(t model.Trade) bool {
	get, ok := accessors[p.Field]
	if !ok {
		return false
	}
	cell := get(t)
	if !cell.present {
		return false
	}

	switch p.Op {
	case OpGreaterThan, OpLessThan:
		a, err := decimal.NewFromString(strings.TrimSpace(cell.text))
		if err != nil {
			return false
		}
		b, err := decimal.NewFromString(strings.TrimSpace(p.Value))
		if err != nil {
			return false
		}
		if p.Op == OpGreaterThan {
			return a.GreaterThan(b)
		}
		return a.LessThan(b)
	}

	c := strings.ToLower(cell.text)
	v := strings.ToLower(p.Value)
	switch p.Op {
	case OpEquals:
		return c == v
	case OpStartsWith:
		return strings.HasPrefix(c, v)
	case OpEndsWith:
		return strings.HasSuffix(c, v)
	default:
		return strings.Contains(c, v)
	}
}

func matchesAll(t model.Trade, preds []Predicate) bool {
	for _, p := range preds {
		if !p.Match(t) {
			return false
		}
	}
	return true
}

// filterItem accepts both the legacy (columnField/operatorValue) and the
// current (field/operator) grid filter shapes.
type filterItem struct {
	ColumnField   string `json:"columnField,omitempty"`
	Field         string `json:"field,omitempty"`
	Column        string `json:"column,omitempty"`
	OperatorValue string `json:"operatorValue,omitempty"`
	Operator      string `json:"operator,omitempty"`
	Value         any    `json:"value"`
}

type filterModel struct {
	Items []filterItem `json:"items"`
}

// ParseFilters decodes the `filters` query parameter. Items without a
// field are skipped; items naming an unknown field are an error.
func ParseFilters(raw string) ([]Predicate, error) {
	if raw == "" {
		return nil, nil
	}
	var fm filterModel
	if err := json.Unmarshal([]byte(raw), &fm); err != nil {
		return nil, fmt.Errorf("query: invalid filters: %w", err)
	}

	var preds []Predicate
	for _, it := range fm.Items {
		name := firstNonEmpty(it.ColumnField, it.Field, it.Column)
		if name == "" {
			continue
		}
		f, err := ParseField(name)
		if err != nil {
			return nil, err
		}
		preds = append(preds, Predicate{
			Field: f,
			Op:    ParseOperator(firstNonEmpty(it.OperatorValue, it.Operator)),
			Value: valueText(it.Value),
		})
	}
	return preds, nil
}

// EncodeFilters renders predicates in the wire shape ParseFilters reads.
func EncodeFilters(preds []Predicate) (string, error) {
	fm := filterModel{Items: make([]filterItem, 0, len(preds))}
	for _, p := range preds {
		fm.Items = append(fm.Items, filterItem{
			Field:    string(p.Field),
			Operator: string(p.Op),
			Value:    p.Value,
		})
	}
	data, err := json.Marshal(fm)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParsePredicate parses the command-line form field:op:value, for example
// "bookId:equals:B1" or "version:>:1".
func ParsePredicate(s string) (Predicate, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Predicate{}, fmt.Errorf("query: filter %q must be field:operator:value", s)
	}
	f, err := ParseField(parts[0])
	if err != nil {
		return Predicate{}, err
	}
	return Predicate{Field: f, Op: ParseOperator(parts[1]), Value: parts[2]}, nil
}

// valueText mirrors how a grid serialises filter values: null becomes the
// empty string and numbers lose trailing zeros.
func valueText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		data, _ := json.Marshal(x)
		return string(data)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
