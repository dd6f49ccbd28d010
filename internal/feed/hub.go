// Package feed streams settled trade records over websockets to external
// listeners (token-mint, certificate, and analytics collaborators).
package feed

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gridmarket/gridmarket/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

// tradeEvent is the wire form of a settled trade. All quantities and
// amounts are fixed-point integers.
type tradeEvent struct {
	Event           string `json:"event"`
	TradeID         string `json:"trade_id"`
	BuyOrderID      uint64 `json:"buy_order_id"`
	SellOrderID     uint64 `json:"sell_order_id"`
	Buyer           string `json:"buyer"`
	Seller          string `json:"seller"`
	Quantity        int64  `json:"quantity"`
	ExecutionPrice  int64  `json:"execution_price"`
	GrossAmount     int64  `json:"gross_amount"`
	FeeAmount       int64  `json:"fee_amount"`
	NetSellerAmount int64  `json:"net_seller_amount"`
	ExecutedAt      string `json:"executed_at"`
}

// Hub fans settled trades out to connected websocket clients. Slow clients
// whose send buffer fills are dropped rather than allowed to stall the
// settlement path.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan tradeEvent
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// PublishTrade broadcasts a settled trade to all connected clients.
// Non-blocking: a client with a full buffer is disconnected.
func (h *Hub) PublishTrade(t *domain.Trade) {
	event := tradeEvent{
		Event:           "trade.settled",
		TradeID:         t.ID,
		BuyOrderID:      t.BuyOrderID,
		SellOrderID:     t.SellOrderID,
		Buyer:           t.Buyer,
		Seller:          t.Seller,
		Quantity:        t.Quantity,
		ExecutionPrice:  t.ExecutionPrice,
		GrossAmount:     t.GrossAmount,
		FeeAmount:       t.FeeAmount,
		NetSellerAmount: t.NetSellerAmount,
		ExecutedAt:      t.ExecutedAt.UTC().Format(time.RFC3339Nano),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			h.dropLocked(c)
		}
	}
}

// ServeHTTP upgrades the request to a websocket connection and registers
// the client for trade broadcasts.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan tradeEvent, sendBufferSize),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	go h.readLoop(c)
}

// writeLoop pushes queued events to the client connection.
func (h *Hub) writeLoop(c *client) {
	for event := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(event); err != nil {
			h.drop(c)
			return
		}
	}
	_ = c.conn.Close()
}

// readLoop discards inbound messages and detects disconnects. The feed is
// one-way.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	_ = c.conn.Close()
}

// ClientCount returns the number of connected clients. Useful for testing.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
