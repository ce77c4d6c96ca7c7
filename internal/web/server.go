package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/minimum-finance/strategy-engine/internal/logger"
	"github.com/minimum-finance/strategy-engine/internal/strategy"
	"github.com/minimum-finance/strategy-engine/internal/vault"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the strategy's read-only status API.
type WebServer struct {
	router   *mux.Router
	addr     string
	strategy *strategy.Strategy
	vault    *vault.Vault
	dbCheck  func() error // nil when persistence is disabled
	started  time.Time
}

// NewWebServer creates a new web server instance. dbCheck may be nil.
func NewWebServer(addr string, strat *strategy.Strategy, v *vault.Vault, dbCheck func() error) *WebServer {
	if addr == "" {
		addr = ":8080"
	}

	server := &WebServer{
		router:   mux.NewRouter(),
		addr:     addr,
		strategy: strat,
		vault:    v,
		dbCheck:  dbCheck,
		started:  time.Now(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/balances", ws.handleGetBalances).Methods("GET")
	api.HandleFunc("/bonds", ws.handleGetBonds).Methods("GET")
	api.HandleFunc("/reserves", ws.handleGetReserves).Methods("GET")
	api.HandleFunc("/reserves/{depositor}", ws.handleGetClaim).Methods("GET")
	api.HandleFunc("/periods", ws.handleGetPeriods).Methods("GET")
	api.HandleFunc("/events", ws.handleGetEvents).Methods("GET")
	api.HandleFunc("/vault/summary", ws.handleGetVaultSummary).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("addr", ws.addr).Msg("Starting web server")

	server := &http.Server{
		Addr:         ws.addr,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if ws.dbCheck != nil {
		if err := ws.dbCheck(); err != nil {
			dbHealthy = false
		}
	}

	status := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		status = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "strategy-engine",
			"version": "1.0.0",
		},
		"strategy_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"paused":           ws.strategy.Paused(),
			"bonding":          ws.strategy.IsBonding(),
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetBalances returns the strategy's bucket balances
func (ws *WebServer) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	balances := ws.strategy.Balances()

	response := map[string]interface{}{
		"balances":      balances,
		"total_balance": balances.Total().String(),
		"timestamp":     time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetBonds returns the bond allow-list and lifecycle state
func (ws *WebServer) handleGetBonds(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"bonds":        ws.strategy.ListBonds(),
		"current_bond": ws.strategy.CurrentBond(),
		"bonding":      ws.strategy.IsBonding(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetReserves returns the pending exit queue
func (ws *WebServer) handleGetReserves(w http.ResponseWriter, r *http.Request) {
	claimants := ws.strategy.PendingClaimants()
	claims := make([]map[string]interface{}, 0, len(claimants))
	for _, depositor := range claimants {
		view := ws.strategy.ClaimOf(depositor)
		claims = append(claims, map[string]interface{}{
			"depositor":    depositor,
			"amount":       view.Amount.String(),
			"period":       view.Period,
			"fully_vested": view.FullyVested,
		})
	}

	response := map[string]interface{}{
		"total_reserves": ws.strategy.Reserves().String(),
		"claims":         claims,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetClaim returns one depositor's pending claim
func (ws *WebServer) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	depositor := vars["depositor"]

	view := ws.strategy.ClaimOf(depositor)
	response := map[string]interface{}{
		"depositor":    depositor,
		"amount":       view.Amount.String(),
		"period":       view.Period,
		"fully_vested": view.FullyVested,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPeriods returns the reserve-period history
func (ws *WebServer) handleGetPeriods(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"periods": ws.strategy.Periods(),
	})
}

// handleGetEvents returns recent strategy events, newest first
func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 500 {
			limit = parsedLimit
		}
	}

	events := ws.strategy.Recorder().Recent(limit)
	response := map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetVaultSummary returns share accounting statistics
func (ws *WebServer) handleGetVaultSummary(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"balance":      ws.vault.Balance().String(),
		"total_shares": ws.vault.TotalShares().String(),
		"share_price":  ws.vault.SharePrice().String(),
		"min_deposit":  ws.vault.MinDeposit().String(),
		"timestamp":    time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
