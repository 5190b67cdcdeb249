// Package trade provides the HTTP handlers for listing trades and
// submitting new trade versions.
//
// Every write goes through store.Store.Apply, which enforces the versioning
// policy; the handlers only translate outcomes into status codes.
package trade

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/tradebook/trade-service/internal/metrics"
	"github.com/tradebook/trade-service/internal/model"
	"github.com/tradebook/trade-service/internal/notify"
	"github.com/tradebook/trade-service/internal/policy"
	"github.com/tradebook/trade-service/internal/query"
	"github.com/tradebook/trade-service/internal/store"
)

// Error messages returned to clients for policy rejections.
const (
	MsgMaturityInPast = "Maturity date is before today"
	MsgLowerVersion   = "Lower version exists"
)

// Default list pagination when the query string omits it.
const (
	DefaultPage     = 0
	DefaultPageSize = 10
)

// Service handles trade-book operations. Uses a mutex for serialized
// submissions (single-instance); the Postgres store additionally takes an
// advisory lock per tradeId.
type Service struct {
	store store.Store
	bus   *notify.Bus // optional; receives every accepted submission
	mu    sync.Mutex
}

// NewService creates a new trade service.
// Pass nil for bus if upsert notifications are not needed.
func NewService(st store.Store, bus *notify.Bus) *Service {
	return &Service{store: st, bus: bus}
}

// --- Request/Response types ---

// CreateTradeRequest is the JSON body for POST {tradesPath}. A supplied
// createdDate is kept on insert; expired is derived and ignored if sent.
type CreateTradeRequest struct {
	TradeID        string `json:"tradeId"`
	Version        int    `json:"version"`
	CounterPartyID string `json:"counterPartyId"`
	BookID         string `json:"bookId"`
	MaturityDate   string `json:"maturityDate"`
	CreatedDate    string `json:"createdDate"`
}

// Trade converts the request into a submission candidate.
func (r CreateTradeRequest) Trade() model.Trade {
	return model.Trade{
		TradeID:        r.TradeID,
		Version:        r.Version,
		CounterPartyID: r.CounterPartyID,
		BookID:         r.BookID,
		MaturityDate:   r.MaturityDate,
		CreatedDate:    r.CreatedDate,
	}
}

// CreateTradeResponse is the JSON body returned from an accepted POST.
// Replaced is only present when an existing record was overwritten.
type CreateTradeResponse struct {
	Replaced bool        `json:"replaced,omitempty"`
	Trade    model.Trade `json:"trade"`
}

// --- HTTP Handlers ---

// ListTrades handles GET {tradesPath}
// Query parameters: page, pageSize, sortField, sortDir, filters.
func (s *Service) ListTrades(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	params, err := parseListParams(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := s.store.ListTrades(r.Context())
	if err != nil {
		slog.Error("list trades failed", "err", err)
		writeError(w, "failed to list trades", http.StatusInternalServerError)
		return
	}

	result := query.Run(records, params)
	metrics.StoredTrades.Set(float64(len(records)))
	metrics.ListLatency.Observe(time.Since(start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// CreateTrade handles POST {tradesPath}
// Applies the versioning policy and reports inserted (201) or replaced
// (200). Rejections are 400 for a past maturity and 409 for a lower
// version.
func (s *Service) CreateTrade(w http.ResponseWriter, r *http.Request) {
	var req CreateTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// --- Input validation ---
	if req.TradeID == "" {
		writeError(w, "tradeId is required", http.StatusBadRequest)
		return
	}
	if req.Version < 1 {
		writeError(w, "version must be a positive integer", http.StatusBadRequest)
		return
	}

	candidate := req.Trade()

	// Serialize submissions.
	s.mu.Lock()
	start := time.Now()
	res, err := s.store.Apply(r.Context(), candidate)
	metrics.ApplyLatency.Observe(time.Since(start).Seconds())
	s.mu.Unlock()

	switch {
	case errors.Is(err, policy.ErrMaturityInPast):
		metrics.SubmissionsTotal.WithLabelValues(policy.RejectedMaturityInPast.String()).Inc()
		slog.Info("trade rejected", "trade_id", candidate.TradeID, "version", candidate.Version, "reason", policy.RejectedMaturityInPast.String())
		writeError(w, MsgMaturityInPast, http.StatusBadRequest)
		return
	case errors.Is(err, policy.ErrLowerVersion):
		metrics.SubmissionsTotal.WithLabelValues(policy.RejectedLowerVersion.String()).Inc()
		slog.Info("trade rejected", "trade_id", candidate.TradeID, "version", candidate.Version, "reason", policy.RejectedLowerVersion.String())
		writeError(w, MsgLowerVersion, http.StatusConflict)
		return
	case errors.Is(err, store.ErrInvalidTrade):
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		slog.Error("apply trade failed", "trade_id", candidate.TradeID, "version", candidate.Version, "err", err)
		writeError(w, "failed to save trade", http.StatusInternalServerError)
		return
	}

	metrics.SubmissionsTotal.WithLabelValues(res.Outcome.String()).Inc()
	slog.Info("trade saved",
		"trade_id", res.Trade.TradeID,
		"version", res.Trade.Version,
		"outcome", res.Outcome.String(),
		"maturity", res.Trade.MaturityDate,
		"expired", res.Trade.Expired,
	)

	if s.bus != nil {
		s.bus.Publish(notify.Upsert{Trade: res.Trade, Replaced: res.Replaced()})
	}

	status := http.StatusCreated
	if res.Replaced() {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(CreateTradeResponse{Replaced: res.Replaced(), Trade: res.Trade})
}

// Health handles GET /__health
func (s *Service) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// parseListParams reads pagination, sort and filters from the query string.
func parseListParams(r *http.Request) (query.Params, error) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), DefaultPage)
	if err != nil {
		return query.Params{}, errors.New("page must be a non-negative integer")
	}
	pageSize, err := intParam(q.Get("pageSize"), DefaultPageSize)
	if err != nil {
		return query.Params{}, errors.New("pageSize must be a non-negative integer")
	}
	sort, err := query.ParseSort(q.Get("sortField"), q.Get("sortDir"))
	if err != nil {
		return query.Params{}, err
	}
	filters, err := query.ParseFilters(q.Get("filters"))
	if err != nil {
		return query.Params{}, err
	}
	return query.Params{Filters: filters, Sort: sort, Page: page, PageSize: pageSize}, nil
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
