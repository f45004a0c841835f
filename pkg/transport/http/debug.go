package http

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// DebugServer exposes metrics and a liveness probe.
type DebugServer struct {
	logger *logrus.Logger
	server *http.Server
}

func NewDebugServer(addr string, gatherer prometheus.Gatherer, logger *logrus.Logger) *DebugServer {
	router := httprouter.New()
	router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.HandlerFunc(http.MethodGet, "/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &DebugServer{
		logger: logger,
		server: &http.Server{Addr: addr, Handler: router},
	}
}

func (d *DebugServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	d.server.Handler.ServeHTTP(w, req)
}

func (d *DebugServer) Start() error {
	d.logger.WithField("addr", d.server.Addr).Info("starting debug server")

	err := d.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (d *DebugServer) Stop(err error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := d.server.Shutdown(ctx); err != nil {
		d.logger.WithError(err).Error("could not stop debug server")
	}
}
