package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request metrics
	activeRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tts_gateway_active_requests",
		Help: "Number of synthesis requests in flight",
	})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_gateway_requests_total",
		Help: "Total number of synthesis requests",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tts_gateway_request_duration_seconds",
		Help:    "End-to-end synthesis request duration in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"endpoint"})

	chunksPerRequest = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tts_gateway_chunks_per_request",
		Help:    "Number of text chunks a request was split into",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	}, []string{"endpoint"})

	// Provider metrics
	providerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_gateway_provider_requests_total",
		Help: "Total number of outbound provider calls",
	}, []string{"provider", "status"})

	providerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tts_gateway_provider_latency_seconds",
		Help:    "Provider call latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	}, []string{"provider"})

	// Audio metrics
	audioBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_gateway_audio_bytes_total",
		Help: "Total bytes of assembled audio",
	}, []string{"format"})

	audioDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_gateway_audio_duration_seconds",
		Help:    "Playback length of assembled WAV audio",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tts_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// RequestMetrics tracks metrics for a single synthesis request
type RequestMetrics struct {
	endpoint  string
	startTime time.Time
}

// NewRequestMetrics starts tracking a request on endpoint
func NewRequestMetrics(endpoint string) *RequestMetrics {
	activeRequests.Inc()
	return &RequestMetrics{
		endpoint:  endpoint,
		startTime: time.Now(),
	}
}

// RecordChunks records how many chunks the request text produced
func (m *RequestMetrics) RecordChunks(n int) {
	chunksPerRequest.WithLabelValues(m.endpoint).Observe(float64(n))
}

// RecordEnd records the end of the request with its HTTP status
func (m *RequestMetrics) RecordEnd(status int) {
	activeRequests.Dec()
	requestsTotal.WithLabelValues(m.endpoint, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(m.endpoint).Observe(time.Since(m.startTime).Seconds())
}

// RecordError records an error
func (m *RequestMetrics) RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType, m.endpoint).Inc()
}

// RecordProviderCall records one outbound provider call
func RecordProviderCall(provider string, elapsed time.Duration, success bool) {
	providerLatency.WithLabelValues(provider).Observe(elapsed.Seconds())

	status := "success"
	if !success {
		status = "error"
	}
	providerRequests.WithLabelValues(provider, status).Inc()
}

// RecordAssembledAudio records the size and, when known, the playback
// length of a stitched file
func RecordAssembledAudio(format string, size int, duration time.Duration) {
	audioBytes.WithLabelValues(format).Add(float64(size))
	if duration > 0 {
		audioDuration.Observe(duration.Seconds())
	}
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}

// ProviderCallRecorder feeds per-chunk provider calls into the provider
// metrics. It satisfies synth.Observer.
type ProviderCallRecorder struct{}

// ProviderCall records one call and logs failures at debug level
func (ProviderCallRecorder) ProviderCall(provider string, chunk int, elapsed time.Duration, err error) {
	RecordProviderCall(provider, elapsed, err == nil)
	if err != nil {
		logger := GetLogger()
		logger.Debug().
			Err(err).
			Str("provider", provider).
			Int("chunk", chunk).
			Dur("elapsed", elapsed).
			Msg("Provider call failed")
	}
}
