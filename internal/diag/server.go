// Package diag exposes the aggregation state over HTTP for operators:
// manager diagnostics, the discovered device list and Prometheus metrics.
package diag

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/srg/blehub/internal/groutine"
	"github.com/srg/blehub/internal/manager"
)

// Server serves the diagnostics API for a single manager.
type Server struct {
	mgr    *manager.Manager
	logger *logrus.Logger
	srv    *http.Server
}

// NewServer builds the HTTP server on addr. Call Start to begin serving.
func NewServer(addr string, mgr *manager.Manager, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}

	s := &Server{mgr: mgr, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/api/diagnostics", s.handleDiagnostics).Methods(http.MethodGet)
	r.HandleFunc("/api/devices", s.handleDevices).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving in the background. Errors other than a clean close
// are logged, not returned; the diagnostics surface must never take down
// the scan pipeline.
func (s *Server) Start(ctx context.Context) {
	groutine.Go(ctx, "diag-http", func(ctx context.Context) {
		s.logger.WithField("addr", s.srv.Addr).Info("Diagnostics server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("Diagnostics server failed")
		}
	})
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.mgr.Diagnostics())
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	connectableOnly := r.URL.Query().Get("connectable") == "true"
	s.writeJSON(w, s.mgr.DiscoveredServiceInfo(connectableOnly))
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Warn("Failed to encode diagnostics response")
	}
}
