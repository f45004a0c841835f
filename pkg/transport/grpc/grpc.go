package grpc

import (
	"context"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the counter.
const ServiceName = "lolcounter.Counter"

const (
	defaultCheckInterval = 10 * time.Second
	checkTimeout         = 2 * time.Second
)

// Pinger checks that the counter store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Option func(*Server)

func WithListen(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

func WithCheckInterval(interval time.Duration) Option {
	return func(s *Server) {
		s.interval = interval
	}
}

// Server serves the standard grpc health service. The counter is reported
// NOT_SERVING while the store is missing or unreachable.
type Server struct {
	addr     string
	interval time.Duration
	pinger   Pinger
	health   *health.Server
	server   *grpc.Server
	logger   *logrus.Logger
}

// NewServer creates the health server. A nil pinger means the store is not
// configured.
func NewServer(pinger Pinger, logger *logrus.Logger, registerer prometheus.Registerer, opts ...Option) *Server {
	metrics := grpc_prometheus.NewServerMetrics()
	server := grpc.NewServer(
		grpc.UnaryInterceptor(metrics.UnaryServerInterceptor()),
		grpc.StreamInterceptor(metrics.StreamServerInterceptor()),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	metrics.InitializeMetrics(server)
	registerer.MustRegister(metrics)

	s := &Server{
		addr:     ":8081",
		interval: defaultCheckInterval,
		pinger:   pinger,
		health:   hs,
		server:   server,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.check()
	return s
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.logger.WithField("addr", s.addr).Info("starting grpc server")
	return s.server.Serve(lis)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

// RunChecks refreshes the serving status until cancel is closed.
func (s *Server) RunChecks(cancel chan struct{}) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			return nil
		case <-ticker.C:
			s.check()
		}
	}
}

func (s *Server) check() {
	status := healthpb.HealthCheckResponse_SERVING
	if s.pinger == nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.WithError(err).Warn("counter store health check failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.health.SetServingStatus(ServiceName, status)
}
