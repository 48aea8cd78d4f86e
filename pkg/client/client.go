package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// Rate is a single resolved exchange rate.
type Rate struct {
	From  string          `json:"from"`
	To    string          `json:"to"`
	Field string          `json:"field"`
	Rate  decimal.Decimal `json:"rate"`
}

// Avg is a multi-exchange averaged rate.
type Avg struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Field  string          `json:"field"`
	Places int32           `json:"dp"`
	Rate   decimal.Decimal `json:"rate"`
}

// ExchangeInfo describes one adapter registered on the server.
type ExchangeInfo struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Pairs int    `json:"pairs"`
}

// Pair is one tradable from/to currency pair.
type Pair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Health is the server's health summary.
type Health struct {
	Status    string `json:"status"`
	Exchanges int    `json:"exchanges"`
	Pairs     int    `json:"pairs"`
}

// Opts adjusts a rate or average lookup. The zero value asks for the last
// price with proxy routing allowed, averaged to the server default precision.
type Opts struct {
	// Field selects the ticker field (last, bid, ask, ...).
	Field string
	// Places is the averaging precision in decimal places. Avg only.
	Places int32
	// NoProxy forbids composing the rate through a hub currency.
	NoProxy bool
}

// RatePush is one update from the websocket rate stream.
type RatePush struct {
	Type      string                     `json:"type"`
	Timestamp string                     `json:"timestamp"`
	Rates     map[string]decimal.Decimal `json:"rates"`
}

// APIError is a non-OK response from the rate server.
type APIError struct {
	Status    int
	RequestID string
	Message   string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rate server returned %d", e.Status)
	}
	return fmt.Sprintf("rate server returned %d: %s", e.Status, e.Message)
}

// envelope is the server's common response wrapper.
type envelope struct {
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
}

type streamRequest struct {
	Type  string   `json:"type"`
	Pairs []string `json:"pairs,omitempty"`
}

// Client fetches rates from a running exchange rate daemon.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a client for the daemon at baseURL, like "http://localhost:8080".
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Rate fetches a single exchange rate for the pair.
func (c *Client) Rate(ctx context.Context, from, to string, opts Opts) (*Rate, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	if opts.Field != "" {
		q.Set("field", opts.Field)
	}
	if opts.NoProxy {
		q.Set("proxy", "false")
	}

	var out Rate
	if err := c.get(ctx, "/api/v1/rate", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Avg fetches the multi-exchange averaged rate for the pair.
func (c *Client) Avg(ctx context.Context, from, to string, opts Opts) (*Avg, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	if opts.Field != "" {
		q.Set("field", opts.Field)
	}
	if opts.Places > 0 {
		q.Set("dp", strconv.Itoa(int(opts.Places)))
	}
	if opts.NoProxy {
		q.Set("proxy", "false")
	}

	var out Avg
	if err := c.get(ctx, "/api/v1/avg", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rates fetches the pair's rate from every exchange that quotes it, keyed by
// exchange code. An empty field asks for the last price.
func (c *Client) Rates(ctx context.Context, from, to, field string) (map[string]decimal.Decimal, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	if field != "" {
		q.Set("field", field)
	}

	var out struct {
		Rates map[string]decimal.Decimal `json:"rates"`
	}
	if err := c.get(ctx, "/api/v1/rates", q, &out); err != nil {
		return nil, err
	}
	return out.Rates, nil
}

// Exchanges lists the adapters registered on the server.
func (c *Client) Exchanges(ctx context.Context) ([]ExchangeInfo, error) {
	var out struct {
		Exchanges []ExchangeInfo `json:"exchanges"`
	}
	if err := c.get(ctx, "/api/v1/exchanges", nil, &out); err != nil {
		return nil, err
	}
	return out.Exchanges, nil
}

// Pairs lists every pair the server has indexed.
func (c *Client) Pairs(ctx context.Context) ([]Pair, error) {
	return c.pairs(ctx, nil)
}

// PairsFrom lists the indexed pairs whose base currency is coin.
func (c *Client) PairsFrom(ctx context.Context, coin string) ([]Pair, error) {
	return c.pairs(ctx, url.Values{"from": {coin}})
}

// PairsTo lists the indexed pairs whose quote currency is coin.
func (c *Client) PairsTo(ctx context.Context, coin string) ([]Pair, error) {
	return c.pairs(ctx, url.Values{"to": {coin}})
}

func (c *Client) pairs(ctx context.Context, q url.Values) ([]Pair, error) {
	var out struct {
		Pairs []Pair `json:"pairs"`
	}
	if err := c.get(ctx, "/api/v1/pairs", q, &out); err != nil {
		return nil, err
	}
	return out.Pairs, nil
}

// Health fetches the server's health summary.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.get(ctx, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Subscribe connects to the server's websocket stream and delivers rate
// pushes on the returned channel until ctx ends or the connection drops, at
// which point the channel is closed. With no pairs the stream carries the
// server's hub snapshot; with pairs it is narrowed to those.
func (c *Client) Subscribe(ctx context.Context, pairs ...string) (<-chan RatePush, error) {
	wsURL, err := c.streamURL()
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rate stream: %w", err)
	}

	if len(pairs) > 0 {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(streamRequest{Type: "subscribe", Pairs: pairs}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to narrow rate stream: %w", err)
		}
	}

	out := make(chan RatePush, 16)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	go func() {
		defer close(out)
		defer close(done)
		defer conn.Close()
		for {
			var push RatePush
			if err := conn.ReadJSON(&push); err != nil {
				return
			}
			if push.Type != "rates" {
				continue
			}
			select {
			case out <- push:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// streamURL rewrites the base URL onto the websocket scheme.
func (c *Client) streamURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", c.baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// get performs one enveloped API request, decoding the data payload into out.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach rate server: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, RequestID: env.RequestID, Message: env.Error}
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}
