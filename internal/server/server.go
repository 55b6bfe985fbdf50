// Package server exposes the decision pipeline over HTTP.
//
// Routes:
//
//	POST /agents/{agent}/message   — run one decision turn
//	GET  /agents/{agent}/decisions — websocket feed of committed decisions
//	GET  /healthz                  — liveness + registered agent IDs
//	GET  /readyz                   — readiness checks
//	GET  /metrics                  — Prometheus scrape endpoint
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/peezy/hyperfy-eliza-client/internal/agent"
	"github.com/peezy/hyperfy-eliza-client/internal/decision"
	"github.com/peezy/hyperfy-eliza-client/internal/health"
	"github.com/peezy/hyperfy-eliza-client/internal/observe"
	"github.com/peezy/hyperfy-eliza-client/internal/turn"
	"github.com/peezy/hyperfy-eliza-client/internal/world"
)

// maxBodyBytes caps inbound snapshot payloads.
const maxBodyBytes = 1 << 20

// Server is the HTTP front of the decision pipeline.
type Server struct {
	coordinator *turn.Coordinator
	registry    *agent.Registry
	health      *health.Handler
	feed        *Feed
	metrics     *observe.Metrics
	logger      *slog.Logger

	httpServer *http.Server
}

// New creates a Server listening on addr once started.
func New(addr string, coordinator *turn.Coordinator, registry *agent.Registry, healthHandler *health.Handler, metrics *observe.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		coordinator: coordinator,
		registry:    registry,
		health:      healthHandler,
		feed:        NewFeed(),
		metrics:     metrics,
		logger:      logger,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Feed events fire only once the decision's records are durable. A
	// failed commit publishes nothing.
	if coordinator != nil {
		coordinator.OnCommit(func(agentID string, d *decision.Decision, err error) {
			if err != nil {
				return
			}
			s.feed.Publish(agentID, observe.OutcomeAct, d)
		})
	}
	return s
}

// Handler builds the routed and instrumented handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /agents/{agent}/message", s.handleMessage)
	mux.HandleFunc("GET /agents/{agent}/decisions", s.handleDecisionFeed)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)
	return observe.Middleware(s.metrics)(mux)
}

// Start serves HTTP until ListenAndServe fails. It always returns a non-nil
// error; [http.ErrServerClosed] after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleMessage runs one decision turn and writes the validated decision.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	res, err := s.coordinator.HandleStimulus(r.Context(), r.PathValue("agent"), body)
	if err != nil {
		s.writeTurnError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, res.Decision)
}

// writeTurnError maps pipeline failures onto the HTTP error contract:
// unknown agent is 404, a malformed or vocabulary-less snapshot is 400, a
// backend outage is a generic 500, and a schema violation is a 500 carrying
// a retry hint.
func (s *Server) writeTurnError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agent.ErrAgentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, world.ErrMissingVocabulary):
		writeError(w, http.StatusBadRequest, "request must include emotes and triggers arrays")
	case errors.Is(err, decision.ErrSchemaViolation):
		s.logger.ErrorContext(ctx, "turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "backend returned an invalid decision; retry the request")
	case errors.Is(err, decision.ErrBackendUnavailable):
		s.logger.ErrorContext(ctx, "turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		var syntax *json.SyntaxError
		if errors.As(err, &syntax) || isSnapshotError(err) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		s.logger.ErrorContext(ctx, "turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// isSnapshotError reports whether err came from snapshot decoding.
func isSnapshotError(err error) bool {
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &typeErr)
}

// handleDecisionFeed upgrades to a websocket and streams committed decisions
// for one agent until the client disconnects.
func (s *Server) handleDecisionFeed(w http.ResponseWriter, r *http.Request) {
	a, err := s.registry.Resolve(r.PathValue("agent"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.WarnContext(r.Context(), "websocket accept failed", "agent_id", a.ID, "error", err)
		return
	}

	events, cancel := s.feed.Subscribe(a.ID)
	defer cancel()

	s.metrics.DecisionSubscribers.Add(r.Context(), 1)
	defer s.metrics.DecisionSubscribers.Add(context.WithoutCancel(r.Context()), -1)

	if err := serveFeed(r.Context(), conn, events); err != nil && !errors.Is(err, context.Canceled) {
		status := websocket.CloseStatus(err)
		if status == -1 || status == websocket.StatusAbnormalClosure {
			s.logger.DebugContext(r.Context(), "decision feed ended", "agent_id", a.ID, "error", err)
		}
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
