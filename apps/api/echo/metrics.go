package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/shule/core"
)

// metrics are registered on their own registry, so that many Servers may live in one process (tests).
type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(conf *core.Config) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "shule",
			Name:        "http_requests_total",
			Help:        "Number of HTTP requests, by route and status code.",
			ConstLabels: prometheus.Labels{"env": conf.Env},
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "shule",
			Name:        "http_request_duration_seconds",
			Help:        "Duration of HTTP requests, by route.",
			ConstLabels: prometheus.Labels{"env": conf.Env},
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		timer := prometheus.NewTimer(m.duration.WithLabelValues(ctx.Request().Method, ctx.Path()))
		err := next(ctx)
		timer.ObserveDuration()

		code := ctx.Response().Status
		if err != nil {
			// the error handler has not run yet
			code = http.StatusInternalServerError
			if herr, ok := err.(*echo.HTTPError); ok {
				code = herr.Code
			}
		}
		m.requests.WithLabelValues(ctx.Request().Method, ctx.Path(), strconv.Itoa(code)).Inc()
		return err
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
