package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/shardroute/internal/fragment"
	"github.com/dray-io/shardroute/internal/logging"
	"github.com/dray-io/shardroute/internal/metrics"
)

const testDescription = `
jobId: 12345678-1234-1234-1234-123456789abc
phaseId: 4
locations:
  node1: {tableA: [1, 2, 3], tableB: []}
  node2: {}
`

func newTestServer(t *testing.T, cfg Config) (*Server, *metrics.CodecMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewCodecMetricsWithRegistry(reg)
	logger := logging.New(logging.Config{Level: logging.LevelDebug, Output: io.Discard})
	return New(cfg, m, logger), m, reg
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t, Config{})
	h := s.Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeJSON, rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusOK, resp.Status)

	s.SetShuttingDown()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEncodeThenDecode(t *testing.T) {
	s, m, _ := newTestServer(t, Config{Compression: fragment.CompressionSnappy})
	h := s.Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/fragments/encode", strings.NewReader(testDescription)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, contentTypeBinary, rec.Header().Get("Content-Type"))
	assert.Equal(t, "12345678-1234-1234-1234-123456789abc", rec.Header().Get(HeaderJobID))

	envelope := rec.Body.Bytes()
	header, err := fragment.DecodeHeader(envelope)
	require.NoError(t, err)
	assert.Equal(t, fragment.CompressionSnappy, header.Compression)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/fragments/decode", bytes.NewReader(envelope)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary fragment.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "12345678-1234-1234-1234-123456789abc", summary.JobID)
	assert.Equal(t, uint32(4), summary.PhaseID)
	assert.True(t, summary.HasLocations)
	require.Len(t, summary.Nodes, 2)
	assert.Equal(t, fragment.NodeSummary{ID: "node1", NumTables: 2, NumShards: 3, ContainsShards: true}, summary.Nodes[0])
	assert.Equal(t, fragment.NodeSummary{ID: "node2"}, summary.Nodes[1])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FragmentsTotal.WithLabelValues(metrics.OpEncode, metrics.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FragmentsTotal.WithLabelValues(metrics.OpDecode, metrics.StatusSuccess)))
}

func TestEncodeCompressionOverride(t *testing.T) {
	s, _, _ := newTestServer(t, Config{})
	h := s.Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/fragments/encode?compression=zstd", strings.NewReader(testDescription)))
	require.Equal(t, http.StatusOK, rec.Code)

	header, err := fragment.DecodeHeader(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, fragment.CompressionZstd, header.Compression)
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		reason string
	}{
		{name: "bad compression", target: "/v1/fragments/encode?compression=brotli", body: testDescription, reason: "compression"},
		{name: "bad yaml", target: "/v1/fragments/encode", body: "locations: [", reason: "description"},
		{name: "unknown field", target: "/v1/fragments/encode", body: "phase: 1\n", reason: "description"},
	}

	s, _, _ := newTestServer(t, Config{})
	h := s.Router()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, StatusError, resp.Status)
			assert.Equal(t, tt.reason, resp.Reason)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	s, m, _ := newTestServer(t, Config{})
	h := s.Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/fragments/decode", strings.NewReader("not a fragment")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "truncated", resp.Reason)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeFailuresTotal.WithLabelValues("truncated")))
}

func TestBodyLimit(t *testing.T) {
	s, _, _ := newTestServer(t, Config{MaxBodyBytes: 8})
	h := s.Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/fragments/decode", bytes.NewReader(make([]byte, 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(t, Config{})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/fragments/decode", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRegisterHandlerMountsMetrics(t *testing.T) {
	s, _, reg := newTestServer(t, Config{})
	s.RegisterHandler("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	h := s.Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/fragments/encode", strings.NewReader(testDescription)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shardroute_codec_fragments_total")
}

func TestStartAndClose(t *testing.T) {
	s, _, _ := newTestServer(t, Config{Addr: "127.0.0.1:0"})
	require.NoError(t, s.Start())
	defer s.Close()

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Close())
	assert.True(t, s.shutDown.Load())
}
