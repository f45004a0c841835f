package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samueltorres/lolcounter/pkg/site"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

const shutdownTimeout = 5 * time.Second

// CounterService is the counter surface exposed to the page.
type CounterService interface {
	Get(ctx context.Context) int64
	Increment(ctx context.Context) int64
	IncrementBy(ctx context.Context, amount int64) int64
}

type counterResponse struct {
	Count int64 `json:"count"`
}

type incrementRequest struct {
	Amount *int64 `json:"amount"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Option func(*Server)

// WithListen sets the listen address, ":8080" by default.
func WithListen(addr string) Option {
	return func(s *Server) {
		s.server.Addr = addr
	}
}

type Server struct {
	counter CounterService
	site    site.SettingsService
	router  *httprouter.Router
	logger  *logrus.Logger
	metrics *routeMetrics
	server  *http.Server
}

func New(
	counter CounterService,
	settings site.SettingsService,
	logger *logrus.Logger,
	registerer prometheus.Registerer,
	opts ...Option) *Server {

	s := &Server{
		counter: counter,
		site:    settings,
		router:  httprouter.New(),
		logger:  logger,
		metrics: newRouteMetrics(registerer),
		server:  &http.Server{Addr: ":8080"},
	}
	s.registerRoutes()

	n := negroni.New(negroni.NewRecovery(), newLoggingMiddleware(logger))
	n.UseHandler(s.router)
	s.server.Handler = n

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.server.Handler.ServeHTTP(w, req)
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("starting http server")

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Stop(err error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("could not stop http server")
	}
}

func (s *Server) registerRoutes() {
	s.router.HandlerFunc(http.MethodGet, "/api/counter", s.metrics.instrument("counter", s.handleGetCounter))
	s.router.HandlerFunc(http.MethodPost, "/api/counter/increment", s.metrics.instrument("increment", s.handleIncrement))
	s.router.HandlerFunc(http.MethodGet, "/api/site", s.metrics.instrument("site", s.handleSite))
}

func (s *Server) handleGetCounter(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, counterResponse{Count: s.counter.Get(r.Context())})
}

func (s *Server) handleIncrement(w http.ResponseWriter, r *http.Request) {
	var req incrementRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil && err != io.EOF {
		s.logger.WithError(err).Info("could not decode increment request")
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid increment request"})
		return
	}

	var count int64
	if req.Amount == nil {
		count = s.counter.Increment(r.Context())
	} else {
		count = s.counter.IncrementBy(r.Context(), *req.Amount)
	}

	s.writeJSON(w, http.StatusOK, counterResponse{Count: count})
}

func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	settings, err := s.site.Settings()
	if err != nil {
		s.logger.WithError(err).Error("could not get site settings")
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "site settings unavailable"})
		return
	}

	s.writeJSON(w, http.StatusOK, settings)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("could not encode response")
	}
}
