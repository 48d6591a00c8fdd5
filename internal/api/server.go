// Package api exposes the exchange over REST plus a WebSocket fact stream.
// The wire layer does no business logic: it decodes, passes the caller
// identity through, and maps domain errors to status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"custodex/internal/domain"
	"custodex/internal/engine"
	"custodex/internal/infra"
)

const accountHeader = "X-Account"

// Server handles REST API and WebSocket connections.
type Server struct {
	exchange *engine.Exchange
	router   *mux.Router
	hub      *Hub
	httpSrv  *http.Server
}

// NewServer creates an API server over the exchange. The hub is shared with
// the engine's fact fanout so live subscribers see every fact.
func NewServer(exchange *engine.Exchange, hub *Hub, allowedOrigins []string) *Server {
	s := &Server{
		exchange: exchange,
		router:   mux.NewRouter(),
		hub:      hub,
	}
	s.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", accountHeader},
		AllowCredentials: true,
	})
	s.httpSrv = &http.Server{Handler: c.Handler(s.router)}
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Custody endpoints
	api.HandleFunc("/deposits", s.handleDeposit).Methods("POST")
	api.HandleFunc("/withdrawals", s.handleWithdraw).Methods("POST")
	api.HandleFunc("/balances/{account}", s.handleGetBalances).Methods("GET")

	// Order endpoints
	api.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/{id}/fill", s.handleFillOrder).Methods("POST")

	// Observability
	api.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
	s.router.HandleFunc("/ws", s.hub.ServeWS)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the WebSocket hub and serves HTTP until Stop is called or the
// listener fails. The hub exits when ctx is cancelled. A clean shutdown
// returns nil.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	s.httpSrv.Addr = addr
	slog.Info("API server starting", slog.String("addr", addr))
	if err := s.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes the listener and drains in-flight requests, waiting at most
// until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// ======================================================================================
// Handlers
// ======================================================================================

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	account, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req depositRequest
	if !decode(w, r, &req) {
		return
	}

	newBalance, err := s.exchange.Deposit(r.Context(), domain.Token(req.Token), account, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		Token:      req.Token,
		Account:    string(account),
		NewBalance: newBalance,
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	account, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req depositRequest
	if !decode(w, r, &req) {
		return
	}

	newBalance, err := s.exchange.Withdraw(r.Context(), domain.Token(req.Token), account, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		Token:      req.Token,
		Account:    string(account),
		NewBalance: newBalance,
	})
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]

	balances := s.exchange.Balances(domain.Account(account))
	resp := accountBalancesResponse{
		Account:  account,
		Balances: make(map[string]int64, len(balances)),
	}
	for token, amount := range balances {
		resp.Balances[string(token)] = amount
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	account, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decode(w, r, &req) {
		return
	}

	order, err := s.exchange.CreateOrder(account,
		domain.Token(req.WantedToken), req.WantedAmount,
		domain.Token(req.OfferedToken), req.OfferedAmount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	view, err := s.exchange.GetOrder(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	account, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	if err := s.exchange.CancelOrder(id, account); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request) {
	account, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	trade, err := s.exchange.FillOrder(id, account)
	if err != nil {
		writeError(w, err)
		return
	}

	order := trade.Order
	writeJSON(w, http.StatusOK, tradeResponse{
		OrderID:       order.ID,
		Owner:         string(order.Owner),
		Filler:        string(trade.Filler),
		WantedToken:   string(order.WantedToken),
		WantedAmount:  order.WantedAmount,
		OfferedToken:  string(order.OfferedToken),
		OfferedAmount: order.OfferedAmount,
		FeeAmount:     trade.FeeAmount,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, infra.GlobalMetrics.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ======================================================================================
// Helpers
// ======================================================================================

// caller extracts the authenticated identity set by the environment.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (domain.Account, bool) {
	account := r.Header.Get(accountHeader)
	if account == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing " + accountHeader + " header"})
		return "", false
	}
	return domain.Account(account), true
}

func orderID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", slog.Any("error", err))
	}
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrOrderCancelled),
		errors.Is(err, domain.ErrAlreadyCancelled),
		errors.Is(err, domain.ErrOrderFilled):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrTransferFailed):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
