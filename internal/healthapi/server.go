package healthapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// SymbolHealth is one (symbol,timeframe) freshness line in the health
// response (§6.6).
type SymbolHealth struct {
	Symbol       string `json:"symbol"`
	Timeframe    string `json:"timeframe"`
	FreshMs      int64  `json:"fresh_ms"`
	Stale        bool   `json:"stale"`
	DegradedMode bool   `json:"degraded_mode"`
}

// StageLatency reports p50/p95 for one pipeline stage.
type StageLatency struct {
	Stage string  `json:"stage"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
}

// HealthSnapshot is the full `/health` response body.
type HealthSnapshot struct {
	Status      string            `json:"status"`
	TimeUnixMS  int64             `json:"time_unix_ms"`
	Components  map[string]bool   `json:"components"`
	Symbols     []SymbolHealth    `json:"symbols"`
	QueueDepths map[string]int    `json:"queue_depths"`
	Latencies   []StageLatency    `json:"latencies"`
}

// Reporter supplies the live state the health endpoint renders. The
// top-level engine implements it by reading its own component registry.
type Reporter interface {
	Snapshot() HealthSnapshot
}

// Server is C12's external HTTP/WebSocket surface (§6.3, §6.6). Grounded on
// the teacher's internal/api/server.go (mux.Router + cors.Handler +
// http.Server composition, NewServer/Start/Stop shape), narrowed from a
// backtest-control API to health/metrics/notifications.
type Server struct {
	logger     *zap.Logger
	router     *mux.Router
	httpServer *http.Server
	reporter   Reporter
	hub        *Hub
}

// NewServer builds the router; call Start to bind and serve.
func NewServer(logger *zap.Logger, addr string, reporter Reporter, hub *Hub) *Server {
	s := &Server{
		logger:   logger.Named("healthapi"),
		router:   mux.NewRouter(),
		reporter: reporter,
		hub:      hub,
	}
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", hub.serveWS)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.reporter.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Warn("health encode failed", zap.Error(err))
	}
}

// Start binds and serves; blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("healthapi listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down within ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
