package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

// routeMetrics instruments the page endpoints, labelled by route name.
type routeMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
}

func newRouteMetrics(registerer prometheus.Registerer) *routeMetrics {
	labels := []string{"handler", "method", "status"}
	m := &routeMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lolcounter",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total page api requests",
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lolcounter",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Page api request latency, store round trips included",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, labels),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lolcounter",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Page api requests being served",
		}, []string{"handler"}),
	}

	registerer.MustRegister(m.requests, m.duration, m.inFlight)
	return m
}

func (m *routeMetrics) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	inFlight := m.inFlight.WithLabelValues(route)

	return func(w http.ResponseWriter, r *http.Request) {
		inFlight.Inc()
		defer inFlight.Dec()

		rw, ok := w.(negroni.ResponseWriter)
		if !ok {
			rw = negroni.NewResponseWriter(w)
		}
		begin := time.Now()
		next(rw, r)

		status := strconv.Itoa(rw.Status())
		m.requests.WithLabelValues(route, r.Method, status).Inc()
		m.duration.WithLabelValues(route, r.Method, status).Observe(time.Since(begin).Seconds())
	}
}

// newLoggingMiddleware logs every request once it has been served.
func newLoggingMiddleware(logger *logrus.Logger) negroni.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		start := time.Now()
		next(w, r)

		res := w.(negroni.ResponseWriter)
		logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   res.Status(),
			"duration": time.Since(start),
		}).Debug("request served")
	}
}
