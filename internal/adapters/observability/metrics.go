package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	FetchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rentsearch", Name: "fetch_requests_total", Help: "Page fetch attempts."},
		[]string{"status"}, // http status or "error"
	)
	FetchRetries = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "rentsearch", Name: "fetch_retries_total", Help: "Fetch attempts consumed by retries."},
	)
	FetchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rentsearch", Name: "fetch_duration_seconds",
			Help:    "Page fetch duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	PagesScraped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rentsearch", Name: "pages_total", Help: "Pages processed per run outcome."},
		[]string{"outcome"}, // ok|fetch_failed|extract_failed
	)
	ListingsReconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rentsearch", Name: "listings_total", Help: "Listings by reconcile action."},
		[]string{"action"}, // new|price_changed|unchanged|closed|failed
	)
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rentsearch", Name: "run_duration_seconds",
			Help:    "Whole scrape run duration seconds.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rentsearch", Name: "http_requests_total", Help: "Read API requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rentsearch", Name: "http_request_duration_seconds",
			Help:    "Read API request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rentsearch", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"},
	)
)

// Serve starts the /metrics endpoint when addr is non-empty.
func Serve(addr string) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(InitRegistry()))

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
	reg.MustRegister(
		FetchRequests, FetchRetries, FetchLatency,
		PagesScraped, ListingsReconciled, RunDuration,
		HTTPRequests, HTTPLatency, CacheEvents,
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveFetch(status int, err error, dur time.Duration) {
	label := "error"
	if err == nil || status > 0 {
		label = strconv.Itoa(status)
	}
	FetchRequests.WithLabelValues(label).Inc()
	FetchLatency.Observe(dur.Seconds())
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}
