// Package client is the HTTP data-access layer for the trade API. It
// implements query.Source for list views and commits submissions for the
// workflow.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/tradebook/trade-service/internal/model"
	"github.com/tradebook/trade-service/internal/notify"
	"github.com/tradebook/trade-service/internal/policy"
	"github.com/tradebook/trade-service/internal/query"
)

// TransportError is returned for network failures, non-2xx responses and
// bodies that are not JSON. Status is zero when no response was received.
type TransportError struct {
	Status  int
	Message string
	Body    string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("trade api: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("trade api: %d %s", e.Status, e.Message)
}

// Unwrap maps policy rejections back to their sentinels so callers can use
// errors.Is(err, policy.ErrLowerVersion) regardless of transport.
func (e *TransportError) Unwrap() error {
	switch e.Status {
	case http.StatusConflict:
		return policy.ErrLowerVersion
	case http.StatusBadRequest:
		if e.Message == msgMaturityInPast {
			return policy.ErrMaturityInPast
		}
	}
	return e.Err
}

// msgMaturityInPast matches the server's 400 body for a past maturity.
const msgMaturityInPast = "Maturity date is before today"

// Client talks to one trade API.
type Client struct {
	origin     string
	tradesPath string
	http       *http.Client
}

// New creates a client for origin (scheme://host[:port]) and tradesPath.
// A nil httpClient uses http.DefaultClient.
func New(origin, tradesPath string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		origin:     strings.TrimRight(origin, "/"),
		tradesPath: tradesPath,
		http:       httpClient,
	}
}

// ListTrades fetches one page of the list.
func (c *Client) ListTrades(ctx context.Context, p query.Params) (query.Result, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("pageSize", strconv.Itoa(p.PageSize))
	if p.Sort != nil {
		q.Set("sortField", string(p.Sort.Field))
		q.Set("sortDir", p.Sort.Direction())
	}
	if len(p.Filters) > 0 {
		raw, err := query.EncodeFilters(p.Filters)
		if err != nil {
			return query.Result{}, err
		}
		q.Set("filters", raw)
	}

	var res query.Result
	if _, err := c.do(ctx, http.MethodGet, c.origin+c.tradesPath+"?"+q.Encode(), nil, &res); err != nil {
		return query.Result{}, err
	}
	if res.Data == nil {
		res.Data = []model.Trade{}
	}
	return res, nil
}

// CreateTrade submits a trade. The outcome reflects what the server did:
// 200 means an existing record was replaced, 201 that a new one was added.
func (c *Client) CreateTrade(ctx context.Context, t model.Trade) (policy.Result, error) {
	fields := map[string]any{
		"tradeId":        t.TradeID,
		"version":        t.Version,
		"counterPartyId": t.CounterPartyID,
		"bookId":         t.BookID,
		"maturityDate":   t.MaturityDate,
	}
	if t.CreatedDate != "" {
		fields["createdDate"] = t.CreatedDate
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return policy.Result{}, err
	}

	var resp struct {
		Replaced bool        `json:"replaced"`
		Trade    model.Trade `json:"trade"`
	}
	status, err := c.do(ctx, http.MethodPost, c.origin+c.tradesPath, body, &resp)
	if err != nil {
		return policy.Result{}, err
	}

	outcome := policy.Inserted
	if status == http.StatusOK || resp.Replaced {
		outcome = policy.Replaced
	}
	return policy.Result{Outcome: outcome, Trade: resp.Trade}, nil
}

// Health checks GET /__health.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if _, err := c.do(ctx, http.MethodGet, c.origin+"/__health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return &TransportError{Status: http.StatusOK, Message: "unexpected health status " + strconv.Quote(resp.Status)}
	}
	return nil
}

// Watch reads upsert messages from the server's WebSocket and publishes
// them on bus until ctx is cancelled or the connection drops. It returns
// nil on cancellation.
func (c *Client) Watch(ctx context.Context, bus *notify.Bus) error {
	wsURL, err := c.wsURL()
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return &TransportError{Message: "websocket dial failed", Err: err}
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var msg notify.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &TransportError{Message: "websocket read failed", Err: err}
		}
		u, ok := msg.Upsert()
		if !ok {
			slog.Debug("ignoring websocket message", "type", msg.Type)
			continue
		}
		bus.Publish(u)
	}
}

func (c *Client) wsURL() (string, error) {
	u, err := url.Parse(c.origin + c.tradesPath + "/ws")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

// do sends a request and decodes a JSON response into out. Non-2xx
// responses become a TransportError carrying the server's "error" field.
func (c *Client) do(ctx context.Context, method, target string, body []byte, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &TransportError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &TransportError{Status: resp.StatusCode, Message: "read body failed", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return resp.StatusCode, &TransportError{Status: resp.StatusCode, Message: msg, Body: string(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, &TransportError{
			Status:  resp.StatusCode,
			Message: "response is not JSON",
			Body:    string(data),
			Err:     err,
		}
	}
	return resp.StatusCode, nil
}

// IsTransport reports whether err came from the transport rather than a
// policy rejection.
func IsTransport(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return !errors.Is(err, policy.ErrLowerVersion) && !errors.Is(err, policy.ErrMaturityInPast)
}
