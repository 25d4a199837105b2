package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/quake-hazard-etl/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxAssessBody bounds the size of an on-demand assessment request.
const maxAssessBody = 64 << 10

// Assessor scores a single decoded site record.
type Assessor interface {
	Assess(ctx context.Context, rec domain.SiteRecord) domain.SiteAssessment
}

// Server exposes health, readiness, metrics and on-demand hazard endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /v1/hazard routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, assessor Assessor, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/hazard/assess", s.handleAssess(assessor))
	mux.HandleFunc("GET /v1/hazard/level", handleLevel)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleAssess scores the site record in the request body. Malformed field
// values are not an error: they surface as defaulted scores in the response.
func (s *Server) handleAssess(assessor Assessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAssessBody))
		dec.UseNumber()

		var rec domain.SiteRecord
		if err := dec.Decode(&rec); err != nil || rec == nil {
			sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "request body must be a JSON object"})
			return
		}

		site := assessor.Assess(r.Context(), rec)
		out, err := domain.SerializeAssessment(site)
		if err != nil {
			s.logger.Error("encode assessment", "site_id", site.ID, "error", err)
			sharedobs.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "assessment cannot be encoded"})
			return
		}
		s.logger.Debug("on-demand assessment", "site_id", site.ID, "score", site.Hazard.Score, "level", site.Hazard.Level)
		sharedobs.WriteJSON(w, http.StatusOK, json.RawMessage(out.Value))
	}
}

// handleLevel classifies the score query parameter. Unparseable scores are
// classified as Low rather than rejected.
func handleLevel(w http.ResponseWriter, r *http.Request) {
	score := r.URL.Query().Get("score")
	sharedobs.WriteJSON(w, http.StatusOK, map[string]string{
		"score": score,
		"level": string(domain.CategorizeHazardLevel(score)),
	})
}
