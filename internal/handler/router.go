package handler

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gridmarket/gridmarket/internal/auth"
	"github.com/gridmarket/gridmarket/internal/engine"
	"github.com/gridmarket/gridmarket/internal/feed"
	"github.com/gridmarket/gridmarket/internal/service"
)

// NewRouter creates a chi router with all routes registered, request
// logging, and Content-Type validation middleware.
func NewRouter(
	authSvc *auth.Service,
	orderSvc *service.OrderService,
	marketSvc *service.MarketService,
	scheduler *engine.Scheduler,
	hub *feed.Hub,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	participantH := NewParticipantHandler(authSvc)
	orderH := NewOrderHandler(orderSvc)
	marketH := NewMarketHandler(marketSvc, scheduler)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Participant routes.
	r.Post("/participants", participantH.Register)
	r.Post("/participants/login", participantH.Login)

	// Order routes. Submission and cancellation require authentication.
	r.Group(func(r chi.Router) {
		r.Use(requireAuth(authSvc))
		r.Post("/orders", orderH.Submit)
		r.Delete("/orders/{order_id}", orderH.Cancel)
	})
	r.Get("/orders", orderH.ListActive)
	r.Get("/orders/{order_id}", orderH.Get)
	r.Get("/orders/{order_id}/trades", orderH.ListTrades)

	// Trade routes.
	r.Get("/trades", marketH.ListTrades)
	r.Get("/trades/{trade_id}", marketH.GetTrade)

	// Market routes.
	r.Get("/market/parameters", marketH.GetParameters)
	r.Get("/market/book", marketH.GetBook)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth(authSvc))
		r.Patch("/market/parameters", marketH.UpdateParameters)
		r.Get("/market/reconciliation", marketH.GetReconciliation)
	})

	// Clearing trigger (oracle collaborator entry point).
	r.Post("/clearing/trigger", marketH.TriggerClearing)

	// Trade feed.
	r.Get("/ws/trades", hub.ServeHTTP)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so the websocket upgrade
// works behind the logging middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT,
// and PATCH requests carrying a body.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) && r.ContentLength > 0 {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
