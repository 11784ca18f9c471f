package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-drift/rendercore/pkg/telemetry"
)

// Server exposes pass traces and metrics over HTTP.
type Server struct {
	trace   *TraceBuffer
	metrics *telemetry.Metrics
	log     zerolog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a diagnostics server. Either source may be nil, in
// which case its endpoint reports the feature as disabled.
func NewServer(trace *TraceBuffer, metrics *telemetry.Metrics, log zerolog.Logger) *Server {
	return &Server{trace: trace, metrics: metrics, log: log}
}

// Handler returns the request multiplexer serving /trace, /metrics and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/trace", s.handleTrace)
	mux.HandleFunc("/health", handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics disabled", http.StatusServiceUnavailable)
		})
	}
	return mux
}

// Start listens on addr and serves in the background.
// Returns the bound address (useful when the port is 0).
func (s *Server) Start(addr string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return s.listener.Addr().String(), nil
	}

	// Bind first to fail fast on port conflicts
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("diagnostics listen: %w", err)
	}

	server := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.server = server
	s.listener = listener

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.mu.Lock()
			if s.server == server {
				s.server = nil
				s.listener = nil
			}
			s.mu.Unlock()
			s.log.Error().Err(err).Msg("diagnostics server stopped")
		}
	}()

	s.log.Info().Str("addr", listener.Addr().String()).Msg("diagnostics server listening")
	return listener.Addr().String(), nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleTrace returns recent pass samples as JSON.
//
// Query parameters: limit keeps the newest samples, op keeps one pass kind,
// state keeps one mount state and min_ms drops fast passes.
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.trace == nil {
		http.Error(w, "pass tracing disabled", http.StatusServiceUnavailable)
		return
	}

	resp := s.trace.Snapshot()
	applyTraceFilters(r, &resp)

	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		http.Error(w, fmt.Sprintf("json encode error: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func applyTraceFilters(r *http.Request, resp *PassTimeline) {
	query := r.URL.Query()
	limit := 0
	if value := query.Get("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var filters []func(PassSample) bool
	if op := query.Get("op"); op != "" {
		filters = append(filters, func(s PassSample) bool { return s.Op == op })
	}
	if state := query.Get("state"); state != "" {
		filters = append(filters, func(s PassSample) bool { return s.StateID == state })
	}
	if v := parseFloatQuery(r, "min_ms"); v > 0 {
		filters = append(filters, func(s PassSample) bool { return s.PassMs >= v })
	}

	if len(filters) > 0 {
		filtered := make([]PassSample, 0, len(resp.Samples))
	outer:
		for _, sample := range resp.Samples {
			for _, f := range filters {
				if !f(sample) {
					continue outer
				}
			}
			filtered = append(filtered, sample)
		}
		resp.Samples = filtered
	}

	if limit > 0 && len(resp.Samples) > limit {
		resp.Samples = resp.Samples[len(resp.Samples)-limit:]
	}
}

func parseFloatQuery(r *http.Request, key string) float64 {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		return 0
	}
	return parsed
}
