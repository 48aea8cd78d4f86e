// Package api provides the HTTP and WebSocket surface of the exchange rate
// daemon.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"

	"github.com/Privex/go-exchange/pkg/exchange"
	"github.com/Privex/go-exchange/pkg/logging"
	"github.com/Privex/go-exchange/pkg/metrics"
)

// Config carries the server settings resolved from configuration.
type Config struct {
	Listen string

	// TLSCert and TLSKey enable TLS when both are set.
	TLSCert string
	TLSKey  string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// CacheTTL and CacheSize bound the response cache over the rate and
	// avg endpoints. A zero value on either disables it.
	CacheTTL  time.Duration
	CacheSize int

	// WSEnabled serves the /ws rate stream, pushing every WSInterval.
	WSEnabled  bool
	WSInterval time.Duration
}

// Server exposes the rate engine over HTTP: single and averaged rate
// lookups, per-exchange rate maps, and registry listings.
type Server struct {
	cfg     Config
	manager *exchange.Manager
	reg     *exchange.Registry
	log     *logging.Logger

	server    *http.Server
	respCache *expirable.LRU[string, []byte]
	hub       *Hub
}

// NewServer creates an API server over the manager and registry.
func NewServer(cfg Config, manager *exchange.Manager, reg *exchange.Registry, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NewNoopLogger()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	s := &Server{
		cfg:     cfg,
		manager: manager,
		reg:     reg,
		log:     log.WithComponent("api"),
	}
	if cfg.CacheSize > 0 && cfg.CacheTTL > 0 {
		s.respCache = expirable.NewLRU[string, []byte](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	if cfg.WSEnabled {
		s.hub = NewHub(manager, cfg.WSInterval, log)
	}
	return s
}

// Handler returns the route table, for serving through a custom listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/rate", s.handleRate)
	mux.HandleFunc("/api/v1/avg", s.handleAvg)
	mux.HandleFunc("/api/v1/rates", s.handleRates)
	mux.HandleFunc("/api/v1/exchanges", s.handleExchanges)
	mux.HandleFunc("/api/v1/pairs", s.handlePairs)
	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.handleWS)
	}
	return mux
}

// Start serves the API until Stop is called. The rate push hub runs
// alongside when websockets are enabled.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	if s.hub != nil {
		go s.hub.Run()
	}

	s.log.Info("starting HTTP server", "addr", s.cfg.Listen,
		"tls", s.cfg.TLSCert != "", "websocket", s.hub != nil)

	var err error
	if s.cfg.TLSCert != "" && s.cfg.TLSKey != "" {
		err = s.server.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
	} else {
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server, disconnecting websocket clients first.
func (s *Server) Stop(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Stop()
	}
	if s.server != nil {
		s.log.Info("stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

// envelope is the common JSON wrapper for API responses.
type envelope struct {
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type rateResult struct {
	From  string          `json:"from"`
	To    string          `json:"to"`
	Field string          `json:"field"`
	Rate  decimal.Decimal `json:"rate"`
}

type avgResult struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Field  string          `json:"field"`
	Places int32           `json:"dp"`
	Rate   decimal.Decimal `json:"rate"`
}

type ratesResult struct {
	From  string                     `json:"from"`
	To    string                     `json:"to"`
	Field string                     `json:"field"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

type healthResult struct {
	Status    string `json:"status"`
	Exchanges int    `json:"exchanges"`
	Pairs     int    `json:"pairs"`
}

type exchangesResult struct {
	Exchanges []exchange.AdapterStats `json:"exchanges"`
}

type pairsResult struct {
	Pairs []exchange.Pair `json:"pairs"`
	Count int             `json:"count"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/health", "200", time.Since(start))
	}()

	s.writeData(w, http.StatusOK, uuid.NewString(), healthResult{
		Status:    "ok",
		Exchanges: len(s.reg.Adapters()),
		Pairs:     len(s.reg.Pairs()),
	})
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := uuid.NewString()
	status := http.StatusOK
	defer func() {
		metrics.RecordHTTPRequest("/api/v1/rate", strconv.Itoa(status), time.Since(start))
	}()

	from, to, ok := pairParams(r)
	if !ok {
		status = http.StatusBadRequest
		s.writeError(w, status, reqID, "missing from/to parameters")
		return
	}
	field := fieldParam(r)
	noProxy := !boolParam(r, "proxy", true)

	key := strings.Join([]string{"rate", exchange.PairKey(from, to), field, strconv.FormatBool(noProxy)}, ":")
	if data, ok := s.cached(key); ok {
		s.writeRaw(w, http.StatusOK, reqID, data)
		return
	}

	rate, err := s.manager.GetRate(r.Context(), from, to, exchange.RateOptions{Field: field, NoProxy: noProxy})
	if err != nil {
		status = statusFor(err)
		s.writeError(w, status, reqID, err.Error())
		return
	}

	s.respond(w, reqID, key, rateResult{
		From:  strings.ToUpper(from),
		To:    strings.ToUpper(to),
		Field: field,
		Rate:  rate,
	})
}

func (s *Server) handleAvg(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := uuid.NewString()
	status := http.StatusOK
	defer func() {
		metrics.RecordHTTPRequest("/api/v1/avg", strconv.Itoa(status), time.Since(start))
	}()

	from, to, ok := pairParams(r)
	if !ok {
		status = http.StatusBadRequest
		s.writeError(w, status, reqID, "missing from/to parameters")
		return
	}
	field := fieldParam(r)
	noProxy := !boolParam(r, "proxy", true)
	places := int32(intParam(r, "dp", 0))
	if places <= 0 {
		places = 8
	}

	key := strings.Join([]string{"avg", exchange.PairKey(from, to), field,
		strconv.Itoa(int(places)), strconv.FormatBool(noProxy)}, ":")
	if data, ok := s.cached(key); ok {
		s.writeRaw(w, http.StatusOK, reqID, data)
		return
	}

	avg, err := s.manager.GetAvg(r.Context(), from, to, exchange.AvgOptions{
		Field:   field,
		Places:  places,
		NoProxy: noProxy,
	})
	if err != nil {
		status = statusFor(err)
		s.writeError(w, status, reqID, err.Error())
		return
	}

	s.respond(w, reqID, key, avgResult{
		From:   strings.ToUpper(from),
		To:     strings.ToUpper(to),
		Field:  field,
		Places: places,
		Rate:   avg,
	})
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := uuid.NewString()
	status := http.StatusOK
	defer func() {
		metrics.RecordHTTPRequest("/api/v1/rates", strconv.Itoa(status), time.Since(start))
	}()

	from, to, ok := pairParams(r)
	if !ok {
		status = http.StatusBadRequest
		s.writeError(w, status, reqID, "missing from/to parameters")
		return
	}
	field := fieldParam(r)
	if !exchange.ValidField(field) {
		status = http.StatusBadRequest
		s.writeError(w, status, reqID, fmt.Sprintf("unknown ticker field %q", field))
		return
	}

	rates := s.manager.AllRates(r.Context(), from, to, field)
	if len(rates) == 0 {
		status = http.StatusNotFound
		s.writeError(w, status, reqID,
			fmt.Sprintf("no exchange quotes %s", exchange.PairKey(from, to)))
		return
	}

	s.writeData(w, http.StatusOK, reqID, ratesResult{
		From:  strings.ToUpper(from),
		To:    strings.ToUpper(to),
		Field: field,
		Rates: rates,
	})
}

func (s *Server) handleExchanges(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/api/v1/exchanges", "200", time.Since(start))
	}()

	s.writeData(w, http.StatusOK, uuid.NewString(), exchangesResult{Exchanges: s.reg.Stats()})
}

func (s *Server) handlePairs(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/api/v1/pairs", "200", time.Since(start))
	}()

	q := r.URL.Query()
	var pairs []exchange.Pair
	switch {
	case q.Get("from") != "":
		pairs = s.reg.ListPairsFrom(q.Get("from"))
	case q.Get("to") != "":
		pairs = s.reg.ListPairsTo(q.Get("to"))
	default:
		pairs = s.reg.Pairs()
	}

	s.writeData(w, http.StatusOK, uuid.NewString(), pairsResult{Pairs: pairs, Count: len(pairs)})
}

// respond marshals data, stores it in the response cache under key, and
// writes the enveloped result.
func (s *Server) respond(w http.ResponseWriter, reqID, key string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.log.Error("failed to encode response", "error", err)
		s.writeError(w, http.StatusInternalServerError, reqID, "encoding failure")
		return
	}
	if s.respCache != nil {
		s.respCache.Add(key, raw)
	}
	s.writeRaw(w, http.StatusOK, reqID, raw)
}

// cached returns the cached data payload for key. The envelope is rebuilt
// per request so every response carries a fresh request id.
func (s *Server) cached(key string) ([]byte, bool) {
	if s.respCache == nil {
		return nil, false
	}
	data, ok := s.respCache.Get(key)
	if ok {
		metrics.RecordCacheOp("response", "hit")
		return data, true
	}
	metrics.RecordCacheOp("response", "miss")
	return nil, false
}

func (s *Server) writeData(w http.ResponseWriter, status int, reqID string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.log.Error("failed to encode response", "error", err)
		s.writeError(w, http.StatusInternalServerError, reqID, "encoding failure")
		return
	}
	s.writeRaw(w, status, reqID, raw)
}

func (s *Server) writeRaw(w http.ResponseWriter, status int, reqID string, data json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{RequestID: reqID, Data: data}); err != nil {
		s.log.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, reqID, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{RequestID: reqID, Error: msg}); err != nil {
		s.log.Error("failed to write error response", "error", err)
	}
}

// statusFor maps engine errors onto HTTP statuses. Rate limiting is checked
// before the general exchange-down case it wraps.
func statusFor(err error) int {
	switch {
	case errors.Is(err, exchange.ErrFieldUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, exchange.ErrPairNotFound):
		return http.StatusNotFound
	case errors.Is(err, exchange.ErrExchangeRateLimited):
		return http.StatusServiceUnavailable
	case errors.Is(err, exchange.ErrExchangeDown):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func pairParams(r *http.Request) (from, to string, ok bool) {
	q := r.URL.Query()
	from = strings.TrimSpace(q.Get("from"))
	to = strings.TrimSpace(q.Get("to"))
	return from, to, from != "" && to != ""
}

func fieldParam(r *http.Request) string {
	field := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("field")))
	if field == "" {
		return exchange.FieldLast
	}
	return field
}

func boolParam(r *http.Request, name string, def bool) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
