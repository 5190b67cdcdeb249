package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tradebook/trade-service/internal/model"
	"github.com/tradebook/trade-service/internal/query"
	"github.com/tradebook/trade-service/internal/tradedate"
)

// Field-level messages reported by Form.Validate.
const (
	MsgRequired       = "required"
	MsgVersion        = "Version must be a whole number of at least 1"
	MsgMaturityFormat = "Maturity must be a date in YYYY-MM-DD format"
	MsgMaturityPast   = "Maturity must be today or later"
)

var (
	// ErrTradeNotFound is returned by Prefill for an unknown tradeId.
	ErrTradeNotFound = errors.New("workflow: trade not found")

	// ErrFieldLocked is returned by Form.Set for fields fixed by Prefill.
	ErrFieldLocked = errors.New("workflow: field is locked while editing")
)

// ValidationError maps form fields to user-facing messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid trade: " + strings.Join(parts, "; ")
}

// Form is the editable state of the trade entry form. Values are kept as
// typed text until Validate. Locked is set when editing an existing trade;
// only version and maturity may then change.
type Form struct {
	TradeID        string
	Version        string
	CounterPartyID string
	BookID         string
	MaturityDate   string
	Locked         bool
}

// NewForm returns the blank entry form: version 1, maturity today.
func NewForm(today tradedate.Date) Form {
	return Form{Version: "1", MaturityDate: today.ISO()}
}

// Set assigns one field by its wire name.
func (f *Form) Set(field, value string) error {
	switch query.Field(field) {
	case query.FieldVersion:
		f.Version = value
		return nil
	case query.FieldMaturityDate:
		f.MaturityDate = value
		return nil
	}

	var target *string
	switch query.Field(field) {
	case query.FieldTradeID:
		target = &f.TradeID
	case query.FieldCounterPartyID:
		target = &f.CounterPartyID
	case query.FieldBookID:
		target = &f.BookID
	default:
		return fmt.Errorf("%w: %q", query.ErrUnknownField, field)
	}
	if f.Locked {
		return fmt.Errorf("%w: %s", ErrFieldLocked, field)
	}
	*target = value
	return nil
}

// Validate checks the form against today and returns the candidate trade.
// Maturity must be written as YYYY-MM-DD and not be before today.
func (f Form) Validate(today tradedate.Date) (model.Trade, error) {
	fields := map[string]string{}

	tradeID := strings.TrimSpace(f.TradeID)
	if tradeID == "" {
		fields["tradeId"] = MsgRequired
	}
	version, err := strconv.Atoi(strings.TrimSpace(f.Version))
	if err != nil || version < 1 {
		fields["version"] = MsgVersion
	}
	if strings.TrimSpace(f.CounterPartyID) == "" {
		fields["counterPartyId"] = MsgRequired
	}
	if strings.TrimSpace(f.BookID) == "" {
		fields["bookId"] = MsgRequired
	}

	maturity, shape, err := tradedate.ParseShape(strings.TrimSpace(f.MaturityDate))
	switch {
	case f.MaturityDate == "":
		fields["maturityDate"] = MsgRequired
	case err != nil || shape != tradedate.ShapeISO:
		fields["maturityDate"] = MsgMaturityFormat
	case maturity.Before(today):
		fields["maturityDate"] = MsgMaturityPast
	}

	if len(fields) > 0 {
		return model.Trade{}, &ValidationError{Fields: fields}
	}
	return model.Trade{
		TradeID:        tradeID,
		Version:        version,
		CounterPartyID: strings.TrimSpace(f.CounterPartyID),
		BookID:         strings.TrimSpace(f.BookID),
		MaturityDate:   maturity.ISO(),
	}, nil
}

// Prefill loads the highest stored version of tradeID as a locked form.
// Maturity is rewritten as YYYY-MM-DD when the stored text parses.
func Prefill(ctx context.Context, source query.Source, tradeID string) (Form, error) {
	versions, err := Snapshot(ctx, source, tradeID)
	if err != nil {
		return Form{}, err
	}
	if len(versions) == 0 {
		return Form{}, fmt.Errorf("%w: %s", ErrTradeNotFound, tradeID)
	}

	current := versions[0]
	for _, t := range versions[1:] {
		if t.Version > current.Version {
			current = t
		}
	}

	maturity := current.MaturityDate
	if iso, err := tradedate.NormalizeISO(maturity); err == nil {
		maturity = iso
	}
	return Form{
		TradeID:        current.TradeID,
		Version:        strconv.Itoa(current.Version),
		CounterPartyID: current.CounterPartyID,
		BookID:         current.BookID,
		MaturityDate:   maturity,
		Locked:         true,
	}, nil
}
