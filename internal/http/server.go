// Package http is the JSON boundary over the ledger engine. It parses
// and validates request input, translates filter and pagination
// parameters, and maps the engine's error taxonomy onto status codes.
package http

import (
	"net/http"

	applog "tally/internal/log"
	"tally/internal/ledger"
)

type Server struct {
	engine *ledger.Engine
}

// NewServer wires the routes and returns a configured *http.Server.
func NewServer(addr string, engine *ledger.Engine, logger *applog.Logger) *http.Server {
	s := &Server{engine: engine}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)

	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/accounts/{accountID}", s.handleGetAccount)

	mux.HandleFunc("POST /api/accounts/{accountID}/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/accounts/{accountID}/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/accounts/{accountID}/transactions/{txID}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/accounts/{accountID}/transactions/{txID}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/accounts/{accountID}/transactions/{txID}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/accounts/{accountID}/stats", s.handleStats)

	var handler http.Handler = mux
	if logger != nil {
		handler = applog.Middleware(logger.WithComponent(applog.ComponentHTTP))(mux)
	}

	return &http.Server{
		Addr:    addr,
		Handler: handler,
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
