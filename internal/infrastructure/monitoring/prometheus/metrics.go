package prometheus

import (
	"strconv"
	"time"
)

// PortalMetrics holds the metrics the portal service and cruncher record.
type PortalMetrics struct {
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	AuthAttemptsTotal CounterVec

	SessionLookupsTotal   CounterVec
	SessionLookupDuration HistogramVec
	SessionLookupResults  HistogramVec

	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec

	IngestMessagesTotal   CounterVec
	IngestProcessDuration HistogramVec

	RedisPoolConnections GaugeVec
	RedisPoolTimeouts    GaugeVec

	HealthCheckStatus GaugeVec
	BuildInfo         GaugeVec
}

var (
	DefaultHTTPDurationBuckets  = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultStoreDurationBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, 1}
	DefaultResultCountBuckets   = []float64{0, 1, 5, 10, 25, 50, 100}
)

// NewPortalMetrics registers every portal metric on collector.
func NewPortalMetrics(collector MetricsCollector) *PortalMetrics {
	return &PortalMetrics{
		HTTPRequestsTotal:   collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "route", "status_code"),
		HTTPRequestDuration: collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "route"),
		HTTPActiveRequests:  collector.RegisterGauge("http_active_requests", "In-flight HTTP requests"),

		AuthAttemptsTotal: collector.RegisterCounter("auth_attempts_total", "Bearer token verifications", "result", "reason"),

		SessionLookupsTotal:   collector.RegisterCounter("session_lookups_total", "User tool lookups by outcome", "outcome"),
		SessionLookupDuration: collector.RegisterHistogram("session_lookup_duration_seconds", "User tool lookup duration", DefaultStoreDurationBuckets),
		SessionLookupResults:  collector.RegisterHistogram("session_lookup_results", "Sessions returned per lookup", DefaultResultCountBuckets),

		CacheHitsTotal:   collector.RegisterCounter("cache_hits_total", "Cache hits", "cache"),
		CacheMissesTotal: collector.RegisterCounter("cache_misses_total", "Cache misses", "cache"),

		IngestMessagesTotal:   collector.RegisterCounter("ingest_messages_total", "Portal session updates consumed", "outcome"),
		IngestProcessDuration: collector.RegisterHistogram("ingest_process_duration_seconds", "Portal session update processing duration", DefaultStoreDurationBuckets),

		RedisPoolConnections: collector.RegisterGauge("redis_pool_connections", "Redis pool connections by state", "state"),
		RedisPoolTimeouts:    collector.RegisterGauge("redis_pool_timeouts", "Times a Redis connection could not be taken from the pool"),

		HealthCheckStatus: collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component"),
		BuildInfo:         collector.RegisterGauge("build_info", "Build information", "version", "commit"),
	}
}

// RecordHTTPRequest counts a served request under its route pattern.
func (m *PortalMetrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthAttempt counts a token verification. reason is empty on success.
func (m *PortalMetrics) RecordAuthAttempt(success bool, reason string) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.AuthAttemptsTotal.WithLabelValues(result, reason).Inc()
}

// RecordSessionLookup records a user tool lookup outcome.
func (m *PortalMetrics) RecordSessionLookup(outcome string, results int, duration time.Duration) {
	m.SessionLookupsTotal.WithLabelValues(outcome).Inc()
	m.SessionLookupDuration.WithLabelValues().Observe(duration.Seconds())
	m.SessionLookupResults.WithLabelValues().Observe(float64(results))
}

// RecordIngest records a consumed portal session update.
func (m *PortalMetrics) RecordIngest(outcome string, duration time.Duration) {
	m.IngestMessagesTotal.WithLabelValues(outcome).Inc()
	m.IngestProcessDuration.WithLabelValues().Observe(duration.Seconds())
}

// RecordRedisPool publishes a snapshot of the Redis connection pool.
func (m *PortalMetrics) RecordRedisPool(total, idle, stale, timeouts uint32) {
	m.RedisPoolConnections.WithLabelValues("total").Set(float64(total))
	m.RedisPoolConnections.WithLabelValues("idle").Set(float64(idle))
	m.RedisPoolConnections.WithLabelValues("stale").Set(float64(stale))
	m.RedisPoolTimeouts.WithLabelValues().Set(float64(timeouts))
}

// SetHealth records a component check result.
func (m *PortalMetrics) SetHealth(component string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}

// CacheHit implements the redis cache observer.
func (m *PortalMetrics) CacheHit(kind string) {
	m.CacheHitsTotal.WithLabelValues(kind).Inc()
}

// CacheMiss implements the redis cache observer.
func (m *PortalMetrics) CacheMiss(kind string) {
	m.CacheMissesTotal.WithLabelValues(kind).Inc()
}
