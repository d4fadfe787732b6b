// Package metrics provides Prometheus metrics for the fragment codec.
//
// CodecMetrics tracks:
//   - encode/decode latency broken down by success/failure
//   - envelope (wire) size and uncompressed routing payload size
//   - fragments processed, by operation and status
//   - decode failures by reason (magic, version, crc, compression, routing, ...)
//   - node entries per routing
//
// Metrics are exposed via a dedicated HTTP server on /metrics in Prometheus format.
//
// Usage:
//
//	codecMetrics := metrics.NewCodecMetrics()
//	encoder := fragment.NewEncoder(fragment.CompressionZstd).WithMetrics(codecMetrics)
//	decoder := fragment.NewDecoder(0).WithMetrics(codecMetrics)
//
//	metricsServer := metrics.NewServer(":9090")
//	metricsServer.Start()
package metrics
