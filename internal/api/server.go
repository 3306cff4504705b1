package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arb-scanner/internal/codec"
	"arb-scanner/internal/premium"
	"arb-scanner/internal/state"
	"arb-scanner/pkg/types"
)

// batchInterval is the cadence tick batches are pushed to consumers.
const batchInterval = 500 * time.Millisecond

// Config controls the broadcast server.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// Server exposes shared state read-only over HTTP and WebSocket.
type Server struct {
	cfg      Config
	state    *state.SharedState
	detector *premium.Detector
	hub      *Hub
	server   *http.Server
	logger   *slog.Logger
	batchID  atomic.Uint64
}

// NewServer wires the endpoints.
func NewServer(cfg Config, st *state.SharedState, detector *premium.Detector, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		state:    st,
		detector: detector,
		hub:      NewHub(logger),
		logger:   logger.With("component", "api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/prices", s.handlePrices)
	mux.HandleFunc("/api/opportunities", s.handleOpportunities)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start serves until Stop is called. Blocks; run in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run()
	go s.pushBatches(ctx)

	s.logger.Info("broadcast server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// pushBatches encodes the current USD ticks and fans them out on a fixed
// cadence.
func (s *Server) pushBatches(ctx context.Context) {
	ticker := time.NewTicker(batchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := s.state.Snapshot()
			if len(snapshot) == 0 {
				continue
			}
			ticks := make([]types.PriceTick, 0, len(snapshot))
			for _, e := range snapshot {
				if e.USD.Mid != 0 {
					ticks = append(ticks, e.USD)
				}
			}
			if len(ticks) == 0 {
				continue
			}
			s.hub.Broadcast(codec.EncodeBatch(ticks, s.batchID.Add(1)))
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// priceView is the JSON shape of one cached entry.
type priceView struct {
	Venue  string  `json:"venue"`
	Symbol string  `json:"symbol"`
	PairID uint32  `json:"pair_id"`
	MidUSD float64 `json:"mid_usd"`
	BidUSD float64 `json:"bid_usd"`
	AskUSD float64 `json:"ask_usd"`
	MidRaw float64 `json:"mid_raw"`
	Quote  string  `json:"quote"`
	AgeMs  uint64  `json:"age_ms"`
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	snapshot := s.state.Snapshot()
	now := types.NowMs()

	out := make([]priceView, 0, len(snapshot))
	for _, e := range snapshot {
		out = append(out, priceView{
			Venue:  e.USD.Venue.String(),
			Symbol: e.Symbol,
			PairID: e.USD.PairID,
			MidUSD: e.USD.Mid.Float(),
			BidUSD: e.USD.Bid.Float(),
			AskUSD: e.USD.Ask.Float(),
			MidRaw: e.Raw.Mid.Float(),
			Quote:  e.Raw.Quote.String(),
			AgeMs:  e.USD.AgeMs(now),
		})
	}

	writeJSON(w, out, s.logger)
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.detector.Active(), s.logger)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.state.CurrentStats(), s.logger)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(req *http.Request) bool {
			return originAllowed(req.Header.Get("Origin"), s.cfg.AllowedOrigins)
		},
	}
	s.hub.ServeWS(w, r, upgrader)
}

func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", "error", err)
	}
}

// originAllowed permits same-host tools (no Origin header) and any
// configured origin; "*" allows everything.
func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
