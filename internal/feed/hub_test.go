package feed

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gridmarket/gridmarket/internal/domain"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleTrade() *domain.Trade {
	return &domain.Trade{
		ID:              "trade-1",
		BuyOrderID:      1,
		SellOrderID:     2,
		Buyer:           "alice",
		Seller:          "bob",
		Quantity:        100,
		ExecutionPrice:  18,
		GrossAmount:     1800,
		FeeAmount:       4,
		NetSellerAmount: 1796,
		ExecutedAt:      time.Now(),
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishTrade(t *testing.T) {
	hub := newTestHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitForClients(t, hub, 1)

	hub.PublishTrade(sampleTrade())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event tradeEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Event != "trade.settled" {
		t.Errorf("event = %q, want trade.settled", event.Event)
	}
	if event.TradeID != "trade-1" {
		t.Errorf("trade_id = %q, want trade-1", event.TradeID)
	}
	if event.Quantity != 100 || event.ExecutionPrice != 18 {
		t.Errorf("quantity = %d price = %d, want 100 and 18", event.Quantity, event.ExecutionPrice)
	}
}

func TestPublishTrade_Broadcast(t *testing.T) {
	hub := newTestHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	first := dial(t, srv)
	defer first.Close()
	second := dial(t, srv)
	defer second.Close()
	waitForClients(t, hub, 2)

	hub.PublishTrade(sampleTrade())

	for _, conn := range []*websocket.Conn{first, second} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var event tradeEvent
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if event.TradeID != "trade-1" {
			t.Errorf("trade_id = %q, want trade-1", event.TradeID)
		}
	}
}

func TestDisconnectRemovesClient(t *testing.T) {
	hub := newTestHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestPublishTrade_NoClients(t *testing.T) {
	hub := newTestHub()
	// Publishing with nobody connected must not block or panic.
	hub.PublishTrade(sampleTrade())
}
