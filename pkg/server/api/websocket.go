package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/Privex/go-exchange/pkg/exchange"
	"github.com/Privex/go-exchange/pkg/logging"
	"github.com/Privex/go-exchange/pkg/metrics"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = 54 * time.Second
	wsClientBuffer = 256
)

// Hub pushes averaged exchange rates to websocket clients at a fixed
// interval. Clients receive the hub snapshot pairs by default and can narrow
// the stream to explicit pairs, which are refreshed through GetAvg.
type Hub struct {
	manager  *exchange.Manager
	log      *logging.Logger
	interval time.Duration
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]bool

	done     chan struct{}
	stopOnce sync.Once
}

// wsClient is one connected websocket subscriber.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu    sync.RWMutex
	all   bool
	pairs map[exchange.Pair]bool
}

// wsRequest is a message from a client.
type wsRequest struct {
	Type  string   `json:"type"`  // "subscribe", "unsubscribe", "ping"
	Pairs []string `json:"pairs"` // pair keys like "BTC_USD" or "BTC/USD"
}

// wsRates is the rate push sent to clients.
type wsRates struct {
	Type      string                     `json:"type"` // "rates"
	Timestamp string                     `json:"timestamp"`
	Rates     map[string]decimal.Decimal `json:"rates"`
}

// NewHub creates a rate push hub over the manager.
func NewHub(manager *exchange.Manager, interval time.Duration, log *logging.Logger) *Hub {
	if log == nil {
		log = logging.NewNoopLogger()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Hub{
		manager:  manager,
		log:      log.WithComponent("ws"),
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				// Allow all origins; front with a proxy to restrict.
				return true
			},
		},
		clients: make(map[*wsClient]bool),
		done:    make(chan struct{}),
	}
}

// Run pushes rates until Stop is called.
func (h *Hub) Run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.push()
		}
	}
}

// Stop ends the push loop and disconnects every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.conn.Close()
	}
}

// push refreshes the rates the connected clients are subscribed to and
// broadcasts them. One round is bounded by the push interval.
func (h *Hub) push() {
	targets, anyAll := h.subscriptions()
	if len(targets) == 0 && !anyAll {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.interval)
	defer cancel()

	var snap map[string]decimal.Decimal
	if anyAll {
		snap = h.manager.ProxyRates(ctx)
	}

	merged := make(map[string]decimal.Decimal, len(snap)+len(targets))
	for k, v := range snap {
		merged[k] = v
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for p := range targets {
		if _, ok := merged[p.Key()]; ok {
			continue
		}
		wg.Add(1)
		go func(p exchange.Pair) {
			defer wg.Done()
			avg, err := h.manager.GetAvg(ctx, p.From, p.To, exchange.AvgOptions{})
			if err != nil {
				h.log.Debug("rate refresh for push failed", "pair", p.Key(), "error", err)
				return
			}
			mu.Lock()
			merged[p.Key()] = avg
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	if len(merged) == 0 {
		return
	}
	h.broadcast(snap, merged)
}

// subscriptions returns the union of explicit pair subscriptions and whether
// any client is in subscribe-all mode.
func (h *Hub) subscriptions() (map[exchange.Pair]bool, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := make(map[exchange.Pair]bool)
	anyAll := false
	for c := range h.clients {
		c.mu.RLock()
		if c.all {
			anyAll = true
		}
		for p := range c.pairs {
			targets[p] = true
		}
		c.mu.RUnlock()
	}
	return targets, anyAll
}

// broadcast sends each client its view of the refreshed rates: the hub
// snapshot for subscribe-all clients, the matching subset of merged for
// explicit subscribers. Slow consumers miss the push instead of blocking it.
func (h *Hub) broadcast(snap, merged map[string]decimal.Decimal) {
	now := time.Now().UTC().Format(time.RFC3339)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		rates := c.view(snap, merged)
		if len(rates) == 0 {
			continue
		}
		data, err := json.Marshal(wsRates{Type: "rates", Timestamp: now, Rates: rates})
		if err != nil {
			h.log.Error("failed to marshal rate push", "error", err)
			return
		}
		select {
		case c.send <- data:
		default:
			h.log.Warn("client send buffer full, dropping push", "remote", c.conn.RemoteAddr())
		}
	}
}

// handleWS upgrades the connection and starts the client pumps. New clients
// begin in subscribe-all mode.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, wsClientBuffer),
		all:   true,
		pairs: make(map[exchange.Pair]bool),
	}
	h.register(client)

	go client.writePump()
	go client.readPump()

	h.log.Info("websocket client connected", "remote", conn.RemoteAddr())
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.SetWebsocketClients(n)
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.SetWebsocketClients(n)
}

// view filters the refreshed rates down to what this client subscribed to.
func (c *wsClient) view(snap, merged map[string]decimal.Decimal) map[string]decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.all {
		out := make(map[string]decimal.Decimal, len(snap))
		for k, v := range snap {
			out[k] = v
		}
		return out
	}

	out := make(map[string]decimal.Decimal, len(c.pairs))
	for p := range c.pairs {
		if r, ok := merged[p.Key()]; ok {
			out[p.Key()] = r
		}
	}
	return out
}

// writePump sends queued messages and keepalive pings to the connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				// Channel closed
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes client messages until the connection drops.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Error("websocket read failed", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// handleMessage processes one client request.
func (c *wsClient) handleMessage(data []byte) {
	var msg wsRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.log.Warn("invalid client message", "error", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subscribe(msg.Pairs)
	case "unsubscribe":
		c.unsubscribe(msg.Pairs)
	case "ping":
		c.sendPong()
	default:
		c.hub.log.Warn("unknown message type", "type", msg.Type)
	}
}

// subscribe narrows the stream to the given pairs; an empty list or "*"
// switches back to subscribe-all.
func (c *wsClient) subscribe(pairs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(pairs) == 0 || (len(pairs) == 1 && pairs[0] == "*") {
		c.all = true
		c.pairs = make(map[exchange.Pair]bool)
	} else {
		c.all = false
		for _, s := range pairs {
			p, err := exchange.ParsePair(s)
			if err != nil {
				c.hub.log.Warn("ignoring malformed pair in subscription", "pair", s)
				continue
			}
			c.pairs[p] = true
		}
	}

	c.hub.log.Debug("client subscribed", "pairs", pairs)
}

// unsubscribe removes pairs from the stream; an empty list or "*" clears
// everything including subscribe-all mode.
func (c *wsClient) unsubscribe(pairs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(pairs) == 0 || (len(pairs) == 1 && pairs[0] == "*") {
		c.all = false
		c.pairs = make(map[exchange.Pair]bool)
	} else {
		for _, s := range pairs {
			p, err := exchange.ParsePair(s)
			if err != nil {
				continue
			}
			delete(c.pairs, p)
		}
	}

	c.hub.log.Debug("client unsubscribed", "pairs", pairs)
}

// sendPong answers an application-level ping.
func (c *wsClient) sendPong() {
	pong := map[string]string{"type": "pong"}
	data, _ := json.Marshal(pong)
	select {
	case c.send <- data:
	default:
	}
}
