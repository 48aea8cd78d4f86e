package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Privex/go-exchange/pkg/exchange"
)

func newWSClient(h *Hub) *wsClient {
	return &wsClient{
		hub:   h,
		all:   true,
		pairs: make(map[exchange.Pair]bool),
	}
}

func TestWSSubscribe_NarrowsAndRestores(t *testing.T) {
	h := NewHub(nil, time.Second, nil)
	c := newWSClient(h)

	c.subscribe([]string{"BTC_USD", "hive/usd", "junk"})
	c.mu.RLock()
	assert.False(t, c.all)
	assert.Len(t, c.pairs, 2, "the malformed entry is skipped")
	assert.True(t, c.pairs[exchange.NewPair("BTC", "USD")])
	assert.True(t, c.pairs[exchange.NewPair("HIVE", "USD")])
	c.mu.RUnlock()

	c.unsubscribe([]string{"BTC_USD"})
	c.mu.RLock()
	assert.Len(t, c.pairs, 1)
	c.mu.RUnlock()

	c.subscribe([]string{"*"})
	c.mu.RLock()
	assert.True(t, c.all)
	assert.Empty(t, c.pairs)
	c.mu.RUnlock()

	c.unsubscribe(nil)
	c.mu.RLock()
	assert.False(t, c.all, "unsubscribing everything leaves the stream silent")
	assert.Empty(t, c.pairs)
	c.mu.RUnlock()
}

func TestWSClientView(t *testing.T) {
	h := NewHub(nil, time.Second, nil)
	snap := map[string]decimal.Decimal{
		"BTC_USD": decimal.NewFromInt(9000),
		"USD_BTC": decimal.RequireFromString("0.00011111"),
	}
	merged := map[string]decimal.Decimal{
		"BTC_USD":  decimal.NewFromInt(9000),
		"USD_BTC":  decimal.RequireFromString("0.00011111"),
		"HIVE_USD": decimal.RequireFromString("0.25"),
	}

	all := newWSClient(h)
	view := all.view(snap, merged)
	assert.Len(t, view, 2, "subscribe-all clients see the hub snapshot only")
	assert.True(t, view["BTC_USD"].Equal(decimal.NewFromInt(9000)))

	sub := newWSClient(h)
	sub.subscribe([]string{"HIVE_USD", "LTC_USD"})
	view = sub.view(snap, merged)
	require.Len(t, view, 1, "pairs nothing refreshed are absent")
	assert.True(t, view["HIVE_USD"].Equal(decimal.RequireFromString("0.25")))
}

func TestHubSubscriptions(t *testing.T) {
	h := NewHub(nil, time.Second, nil)

	c1 := newWSClient(h)
	c2 := newWSClient(h)
	c2.subscribe([]string{"HIVE_USD"})
	h.mu.Lock()
	h.clients[c1] = true
	h.clients[c2] = true
	h.mu.Unlock()

	targets, anyAll := h.subscriptions()
	assert.True(t, anyAll)
	require.Len(t, targets, 1)
	assert.True(t, targets[exchange.NewPair("HIVE", "USD")])
}

func TestWebSocket_Stream(t *testing.T) {
	a := newStub("Example A", "exa").
		quote("BTC", "USD", "9000").
		quote("HIVE", "USD", "0.25")
	s, srv := newAPIServer(t, Config{WSEnabled: true, WSInterval: 50 * time.Millisecond}, a)

	go s.hub.Run()
	t.Cleanup(s.hub.Stop)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	// New connections start in subscribe-all mode and receive the hub
	// snapshot on the next tick.
	push := awaitRates(t, conn, func(r wsRates) bool {
		_, ok := r.Rates["BTC_USD"]
		return ok
	})
	assert.Equal(t, "rates", push.Type)
	assert.NotEmpty(t, push.Timestamp)
	assert.True(t, push.Rates["BTC_USD"].Equal(decimal.NewFromInt(9000)), "got %s", push.Rates["BTC_USD"])

	// Narrowing to one pair swaps the snapshot stream for per-pair averages.
	require.NoError(t, conn.WriteJSON(wsRequest{Type: "subscribe", Pairs: []string{"HIVE_USD"}}))
	push = awaitRates(t, conn, func(r wsRates) bool {
		_, ok := r.Rates["HIVE_USD"]
		return ok
	})
	require.Len(t, push.Rates, 1)
	assert.True(t, push.Rates["HIVE_USD"].Equal(decimal.RequireFromString("0.25")), "got %s", push.Rates["HIVE_USD"])

	// Application-level pings are answered between pushes.
	require.NoError(t, conn.WriteJSON(wsRequest{Type: "ping"}))
	awaitMessage(t, conn, func(typ string) bool { return typ == "pong" })
}

// awaitRates reads pushes until one satisfies match, failing the test if the
// read deadline passes first.
func awaitRates(t *testing.T, conn *websocket.Conn, match func(wsRates) bool) wsRates {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "no matching rate push arrived")

		var push wsRates
		require.NoError(t, json.Unmarshal(data, &push))
		if push.Type == "rates" && match(push) {
			return push
		}
	}
}

// awaitMessage reads frames until one's type field satisfies match.
func awaitMessage(t *testing.T, conn *websocket.Conn, match func(string) bool) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "no matching message arrived")

		var msg struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		if match(msg.Type) {
			return
		}
	}
}
