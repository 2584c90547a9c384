package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"nowplaying/internal/domain"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "nowplaying", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nowplaying", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "nowplaying", Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nowplaying", Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "nowplaying", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	FetchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "nowplaying", Name: "fetch_failures_total", Help: "Failed bilingual fetch operations."},
		[]string{"op", "kind"},
	)
	LoadMoreEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "nowplaying", Name: "load_more_total", Help: "Infinite-scroll load attempts."},
		[]string{"outcome"}, // ok|busy|end|failed
	)
	MergeDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "nowplaying", Name: "merge_dropped_total", Help: "Secondary-only records dropped by the merge."},
	)
)

// Serve exposes h as /metrics on a side listener; empty addr disables it.
func Serve(addr string, h http.Handler) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency,
		CacheEvents, FetchFailures, LoadMoreEvents, MergeDropped)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveFailure(op string, err error) {
	FetchFailures.WithLabelValues(op, LabelErr(err)).Inc()
}

func ObserveLoadMore(outcome string) {
	LoadMoreEvents.WithLabelValues(outcome).Inc()
}

func ObserveMergeDropped(n int) {
	if n > 0 {
		MergeDropped.Add(float64(n))
	}
}

// LabelErr maps an error to a low-cardinality label.
func LabelErr(err error) string {
	var st interface{ HTTPStatus() int }
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, domain.ErrEmptyResult):
		return "empty"
	case errors.As(err, &st):
		return "status"
	default:
		return "transport"
	}
}
