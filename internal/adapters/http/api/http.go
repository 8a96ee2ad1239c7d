// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SchemaDependencies
	PublishDependencies
	DataDependencies
	LeaderboardDependencies
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	basePath string

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	schemaHandler      *SchemaHandler
	publishHandler     *PublishHandler
	dataHandler        *DataHandler
	leaderboardHandler *LeaderboardHandler
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithBasePath mounts the business routes under prefix, e.g. "/api".
func WithBasePath(prefix string) ServerOption {
	return func(s *Server) {
		s.basePath = normalizeBasePath(prefix)
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLeaderboardLimit int, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:      NewHealthHandler(deps),
		statsHandler:       NewStatsHandler(statsProvider),
		schemaHandler:      NewSchemaHandler(deps),
		publishHandler:     NewPublishHandler(deps),
		dataHandler:        NewDataHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLeaderboardLimit),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc(s.basePath+"/schema", MetricsMiddleware(s.schemaHandler.HandleGetSchema, "schema"))
	mux.HandleFunc(s.basePath+"/publish", MetricsMiddleware(s.publishHandler.HandlePublish, "publish"))
	mux.HandleFunc(s.basePath+"/data", MetricsMiddleware(s.dataHandler.HandleGetData, "data"))
	mux.HandleFunc(s.basePath+"/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
}

func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}

type errorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	RecordID string `json:"recordId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps the error taxonomy onto status codes. Backend causes
// are logged by the components and never echoed to the client.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	resp := errorResponse{Code: code, Message: publicMessage(err, status)}
	if e, ok := model.AsError(err); ok && e.Undetermined {
		resp.RecordID = e.RecordID
	}
	writeJSON(w, status, resp)
}
