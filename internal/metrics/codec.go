package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values.
const (
	OpEncode = "encode"
	OpDecode = "decode"

	StatusSuccess = "success"
	StatusFailure = "failure"
)

// CodecMetrics holds metrics for plan-fragment encoding and decoding.
type CodecMetrics struct {
	// LatencyHistogram tracks encode/decode latency in seconds.
	// Labels: op (encode, decode), status (success, failure)
	LatencyHistogram *prometheus.HistogramVec

	// WireSizeHistogram tracks envelope size in bytes as sent or received.
	// Labels: op
	WireSizeHistogram *prometheus.HistogramVec

	// PayloadSizeHistogram tracks the uncompressed routing payload size in bytes.
	// Labels: op
	PayloadSizeHistogram *prometheus.HistogramVec

	// FragmentsTotal counts fragments processed.
	// Labels: op, status
	FragmentsTotal *prometheus.CounterVec

	// DecodeFailuresTotal counts rejected envelopes by reason.
	// Labels: reason
	DecodeFailuresTotal *prometheus.CounterVec

	// NodesHistogram tracks the number of node entries per routing.
	NodesHistogram prometheus.Histogram
}

// DefaultCodecLatencyBuckets cover in-memory codec work, from microseconds for
// small routings up to tens of milliseconds for large compressed ones.
var DefaultCodecLatencyBuckets = []float64{
	0.00001, // 10us
	0.00005, // 50us
	0.0001,  // 100us
	0.0005,  // 500us
	0.001,   // 1ms
	0.005,   // 5ms
	0.01,    // 10ms
	0.05,    // 50ms
	0.1,     // 100ms
}

// DefaultFragmentSizeBuckets are size buckets in bytes, 16B to 16MB.
var DefaultFragmentSizeBuckets = prometheus.ExponentialBuckets(16, 4, 11)

// DefaultNodeCountBuckets are buckets for nodes per routing.
var DefaultNodeCountBuckets = []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256, 512}

func newCodecMetrics(f promauto.Factory) *CodecMetrics {
	return &CodecMetrics{
		LatencyHistogram: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "shardroute",
				Subsystem: "codec",
				Name:      "latency_seconds",
				Help:      "Fragment encode/decode latency in seconds.",
				Buckets:   DefaultCodecLatencyBuckets,
			},
			[]string{"op", "status"},
		),
		WireSizeHistogram: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "shardroute",
				Subsystem: "codec",
				Name:      "wire_size_bytes",
				Help:      "Fragment envelope size in bytes.",
				Buckets:   DefaultFragmentSizeBuckets,
			},
			[]string{"op"},
		),
		PayloadSizeHistogram: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "shardroute",
				Subsystem: "codec",
				Name:      "payload_size_bytes",
				Help:      "Uncompressed routing payload size in bytes.",
				Buckets:   DefaultFragmentSizeBuckets,
			},
			[]string{"op"},
		),
		FragmentsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shardroute",
				Subsystem: "codec",
				Name:      "fragments_total",
				Help:      "Total number of fragments encoded or decoded, by status.",
			},
			[]string{"op", "status"},
		),
		DecodeFailuresTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shardroute",
				Subsystem: "codec",
				Name:      "decode_failures_total",
				Help:      "Total number of rejected fragments, by reason.",
			},
			[]string{"reason"},
		),
		NodesHistogram: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "shardroute",
				Subsystem: "routing",
				Name:      "nodes",
				Help:      "Number of node entries per routing.",
				Buckets:   DefaultNodeCountBuckets,
			},
		),
	}
}

// NewCodecMetrics creates codec metrics registered with the default registry.
func NewCodecMetrics() *CodecMetrics {
	return newCodecMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewCodecMetricsWithRegistry creates codec metrics registered with reg.
// Useful for testing to avoid conflicts with the default registry.
func NewCodecMetricsWithRegistry(reg prometheus.Registerer) *CodecMetrics {
	return newCodecMetrics(promauto.With(reg))
}

// RecordEncode records a successful encode.
func (m *CodecMetrics) RecordEncode(durationSeconds float64, wireBytes, payloadBytes, nodes int) {
	if m == nil {
		return
	}
	m.record(OpEncode, durationSeconds, wireBytes, payloadBytes)
	m.NodesHistogram.Observe(float64(nodes))
}

// RecordDecode records a successful decode.
func (m *CodecMetrics) RecordDecode(durationSeconds float64, wireBytes, payloadBytes, nodes int) {
	if m == nil {
		return
	}
	m.record(OpDecode, durationSeconds, wireBytes, payloadBytes)
	m.NodesHistogram.Observe(float64(nodes))
}

func (m *CodecMetrics) record(op string, durationSeconds float64, wireBytes, payloadBytes int) {
	m.LatencyHistogram.WithLabelValues(op, StatusSuccess).Observe(durationSeconds)
	m.FragmentsTotal.WithLabelValues(op, StatusSuccess).Inc()
	m.WireSizeHistogram.WithLabelValues(op).Observe(float64(wireBytes))
	m.PayloadSizeHistogram.WithLabelValues(op).Observe(float64(payloadBytes))
}

// RecordFailure records a failed encode or decode. reason is only tracked for
// decodes.
func (m *CodecMetrics) RecordFailure(op string, durationSeconds float64, reason string) {
	if m == nil {
		return
	}
	m.LatencyHistogram.WithLabelValues(op, StatusFailure).Observe(durationSeconds)
	m.FragmentsTotal.WithLabelValues(op, StatusFailure).Inc()
	if op == OpDecode {
		m.DecodeFailuresTotal.WithLabelValues(reason).Inc()
	}
}
