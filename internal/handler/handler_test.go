package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gridmarket/gridmarket/internal/auth"
	"github.com/gridmarket/gridmarket/internal/engine"
	"github.com/gridmarket/gridmarket/internal/feed"
	"github.com/gridmarket/gridmarket/internal/governance"
	"github.com/gridmarket/gridmarket/internal/ledger"
	"github.com/gridmarket/gridmarket/internal/service"
	"github.com/gridmarket/gridmarket/internal/store"
)

// testEnv bundles all dependencies for handler integration tests.
type testEnv struct {
	router chi.Router
	ledger *ledger.MemLedger
	pauser *governance.Static
	tokens map[string]string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	book := engine.NewBook()
	orderStore := store.NewOrderStore()
	tradeStore := store.NewTradeStore()
	reconStore := store.NewReconStore()
	paramStore := store.NewParamStore(25, true)
	matcher := engine.NewMatcher(book, orderStore)
	sweeper := engine.NewExpirySweeper(time.Hour, matcher)
	lgr := ledger.NewMemLedger()
	pauser := governance.NewStatic(false)
	hub := feed.NewHub(logger)

	settler := engine.NewSettler(book, orderStore, tradeStore, reconStore,
		paramStore, lgr, hub, logger, "market_fees", time.Second, 0)
	scheduler := engine.NewScheduler(matcher, settler, paramStore, pauser, logger, time.Hour)

	registry := auth.NewRegistry()
	authSvc := auth.NewService(registry, "test-secret", time.Hour)

	orderSvc := service.NewOrderService(matcher, sweeper, orderStore, tradeStore, registry, pauser)
	marketSvc := service.NewMarketService(paramStore, tradeStore, reconStore, matcher, pauser)

	env := &testEnv{
		router: NewRouter(authSvc, orderSvc, marketSvc, scheduler, hub, logger),
		ledger: lgr,
		pauser: pauser,
		tokens: make(map[string]string),
	}

	// Pre-registered participants: alice, bob, and an admin.
	for _, p := range []struct {
		name  string
		admin bool
	}{
		{"alice", false},
		{"bob", false},
		{"admin", true},
	} {
		if _, err := authSvc.Register(p.name, "password123", p.admin); err != nil {
			t.Fatalf("register %s: %v", p.name, err)
		}
		token, err := authSvc.Login(p.name, "password123")
		if err != nil {
			t.Fatalf("login %s: %v", p.name, err)
		}
		env.tokens[p.name] = token
	}
	return env
}

// doJSON sends a JSON request, optionally authenticated as the named
// participant, and returns the recorder.
func (env *testEnv) doJSON(t *testing.T, method, path, as string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+env.tokens[as])
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// decodeJSON decodes the response body into v.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
}

// submitOrder submits an order as the given participant and returns the
// decoded response.
func (env *testEnv) submitOrder(t *testing.T, as, side string, qty, price int64) map[string]any {
	t.Helper()
	rr := env.doJSON(t, "POST", "/orders", as, map[string]any{
		"side":        side,
		"quantity":    qty,
		"limit_price": price,
		"ttl_seconds": 3600,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit order: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	return resp
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "GET", "/healthz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "POST", "/participants", "", map[string]any{
		"name":     "carol",
		"password": "hunter22",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.doJSON(t, "POST", "/participants", "", map[string]any{
		"name":     "carol",
		"password": "other",
	})
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate register: expected 409, got %d", rr.Code)
	}

	rr = env.doJSON(t, "POST", "/participants/login", "", map[string]any{
		"name":     "carol",
		"password": "hunter22",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["token"] == "" {
		t.Error("login response missing token")
	}

	rr = env.doJSON(t, "POST", "/participants/login", "", map[string]any{
		"name":     "carol",
		"password": "wrong",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", rr.Code)
	}
}

func TestSubmitOrder(t *testing.T) {
	env := newTestEnv(t)

	resp := env.submitOrder(t, "alice", "buy", 100, 20)
	if resp["owner"] != "alice" {
		t.Errorf("owner = %v, want alice", resp["owner"])
	}
	if resp["status"] != "active" {
		t.Errorf("status = %v, want active", resp["status"])
	}
	if resp["remaining_quantity"] != float64(100) {
		t.Errorf("remaining_quantity = %v, want 100", resp["remaining_quantity"])
	}
}

func TestSubmitOrder_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "POST", "/orders", "", map[string]any{
		"side":        "buy",
		"quantity":    100,
		"limit_price": 20,
		"ttl_seconds": 3600,
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestSubmitOrder_Validation(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "POST", "/orders", "alice", map[string]any{
		"side":        "buy",
		"quantity":    0,
		"limit_price": 20,
		"ttl_seconds": 3600,
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("zero quantity: expected 400, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.doJSON(t, "POST", "/orders", "alice", map[string]any{
		"side":        "buy",
		"quantity":    100,
		"limit_price": 20,
		"ttl_seconds": 3600,
		"bogus":       true,
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown field: expected 400, got %d", rr.Code)
	}
}

func TestSubmitOrder_RejectsNonJSONContentType(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/orders", strings.NewReader("side=buy"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+env.tokens["alice"])
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestCancelOrder(t *testing.T) {
	env := newTestEnv(t)

	resp := env.submitOrder(t, "alice", "buy", 100, 20)
	id := resp["id"].(float64)
	path := fmt.Sprintf("/orders/%.0f", id)

	rr := env.doJSON(t, "DELETE", path, "bob", nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("cancel by non-owner: expected 403, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.doJSON(t, "DELETE", path, "alice", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var cancelled map[string]any
	decodeJSON(t, rr, &cancelled)
	if cancelled["status"] != "cancelled" {
		t.Errorf("status = %v, want cancelled", cancelled["status"])
	}

	rr = env.doJSON(t, "DELETE", path, "alice", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("double cancel: expected 409, got %d", rr.Code)
	}
}

func TestListOrders_SideFilter(t *testing.T) {
	env := newTestEnv(t)

	env.submitOrder(t, "alice", "buy", 100, 20)
	env.submitOrder(t, "alice", "buy", 50, 19)
	env.submitOrder(t, "bob", "sell", 70, 25)

	rr := env.doJSON(t, "GET", "/orders?side=sell", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Orders []map[string]any `json:"orders"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp.Orders) != 1 {
		t.Fatalf("sell orders = %d, want 1", len(resp.Orders))
	}
	if resp.Orders[0]["owner"] != "bob" {
		t.Errorf("owner = %v, want bob", resp.Orders[0]["owner"])
	}

	rr = env.doJSON(t, "GET", "/orders?side=hold", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid side: expected 400, got %d", rr.Code)
	}
}

func TestClearingEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.Credit("bob", ledger.AssetEnergy, 1_000)
	env.ledger.Credit("alice", ledger.AssetCurrency, 100_000)

	env.submitOrder(t, "alice", "buy", 100, 20)
	env.submitOrder(t, "bob", "sell", 100, 18)

	rr := env.doJSON(t, "POST", "/clearing/trigger", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("trigger: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var report map[string]any
	decodeJSON(t, rr, &report)
	if report["status"] != "completed" {
		t.Errorf("status = %v, want completed", report["status"])
	}
	if report["settled"] != float64(1) {
		t.Errorf("settled = %v, want 1", report["settled"])
	}

	rr = env.doJSON(t, "GET", "/trades", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list trades: expected 200, got %d", rr.Code)
	}
	var trades struct {
		Trades []map[string]any `json:"trades"`
	}
	decodeJSON(t, rr, &trades)
	if len(trades.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades.Trades))
	}
	tr := trades.Trades[0]
	// Execution at the resting sell's limit price.
	if tr["execution_price"] != float64(18) {
		t.Errorf("execution_price = %v, want 18", tr["execution_price"])
	}
	// gross 1800, fee floor(1800*25/10000) = 4.
	if tr["gross_amount"] != float64(1800) || tr["fee_amount"] != float64(4) {
		t.Errorf("gross = %v fee = %v, want 1800 and 4", tr["gross_amount"], tr["fee_amount"])
	}

	tradeID := tr["id"].(string)
	rr = env.doJSON(t, "GET", "/trades/"+tradeID, "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("get trade: expected 200, got %d", rr.Code)
	}
}

func TestClearing_SkippedWhilePaused(t *testing.T) {
	env := newTestEnv(t)
	env.pauser.SetPaused(true)

	rr := env.doJSON(t, "POST", "/clearing/trigger", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var report map[string]any
	decodeJSON(t, rr, &report)
	if report["status"] != "skipped_paused" {
		t.Errorf("status = %v, want skipped_paused", report["status"])
	}
}

func TestMarketParameters(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "GET", "/market/parameters", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var params map[string]any
	decodeJSON(t, rr, &params)
	if params["fee_bps"] != float64(25) {
		t.Errorf("fee_bps = %v, want 25", params["fee_bps"])
	}

	rr = env.doJSON(t, "PATCH", "/market/parameters", "alice", map[string]any{"fee_bps": 50})
	if rr.Code != http.StatusForbidden {
		t.Errorf("non-admin patch: expected 403, got %d", rr.Code)
	}

	rr = env.doJSON(t, "PATCH", "/market/parameters", "admin", map[string]any{"fee_bps": 50})
	if rr.Code != http.StatusOK {
		t.Fatalf("admin patch: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	decodeJSON(t, rr, &params)
	if params["fee_bps"] != float64(50) {
		t.Errorf("fee_bps = %v, want 50", params["fee_bps"])
	}
	if params["version"] != float64(2) {
		t.Errorf("version = %v, want 2", params["version"])
	}

	rr = env.doJSON(t, "PATCH", "/market/parameters", "admin", map[string]any{"fee_bps": 2000})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("out-of-bounds fee: expected 400, got %d", rr.Code)
	}
}

func TestMarketBook(t *testing.T) {
	env := newTestEnv(t)

	env.submitOrder(t, "alice", "buy", 100, 20)
	env.submitOrder(t, "alice", "buy", 50, 20)
	env.submitOrder(t, "bob", "sell", 70, 25)

	rr := env.doJSON(t, "GET", "/market/book", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var book struct {
		Buys  []map[string]any `json:"buys"`
		Sells []map[string]any `json:"sells"`
	}
	decodeJSON(t, rr, &book)
	if len(book.Buys) != 1 || len(book.Sells) != 1 {
		t.Fatalf("levels = %d buys, %d sells, want 1 and 1", len(book.Buys), len(book.Sells))
	}
	if book.Buys[0]["total_quantity"] != float64(150) || book.Buys[0]["order_count"] != float64(2) {
		t.Errorf("top buy level = %v, want qty 150 across 2 orders", book.Buys[0])
	}
}

func TestReconciliation_AdminOnly(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "GET", "/market/reconciliation", "alice", nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("non-admin: expected 403, got %d", rr.Code)
	}

	rr = env.doJSON(t, "GET", "/market/reconciliation", "admin", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", rr.Code)
	}
	var resp struct {
		Events []map[string]any `json:"events"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp.Events) != 0 {
		t.Errorf("expected empty reconciliation log, got %d events", len(resp.Events))
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "GET", "/orders/999", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}

	rr = env.doJSON(t, "GET", "/orders/abc", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id: expected 400, got %d", rr.Code)
	}
}
