package fragment

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/shardroute/internal/metrics"
	"github.com/dray-io/shardroute/internal/routing"
)

func encodeSample(t *testing.T, c Compression) []byte {
	t.Helper()
	data, err := NewEncoder(c).Encode(&Fragment{JobID: testJobID, PhaseID: 5, Routing: sampleRouting()})
	require.NoError(t, err)
	return data
}

// reseal recomputes the CRC footer after a test mutates data.
func reseal(data []byte) {
	split := len(data) - FooterSize
	binary.BigEndian.PutUint32(data[split:], crc32.Checksum(data[:split], crc32cTable))
}

func TestRoundTripAllCompressions(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionGzip, CompressionSnappy, CompressionLz4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			data := encodeSample(t, c)

			f, err := NewDecoder(0).Decode(data)
			require.NoError(t, err)
			assert.Equal(t, testJobID, f.JobID)
			assert.Equal(t, uint32(5), f.PhaseID)
			assert.True(t, f.Routing.Equal(sampleRouting()), "got %s", f.Routing)
		})
	}
}

func TestRoundTripPreservesAbsentLocations(t *testing.T) {
	data, err := NewEncoder(CompressionZstd).Encode(&Fragment{JobID: testJobID, Routing: routing.New(routing.Locations{})})
	require.NoError(t, err)

	f, err := NewDecoder(0).Decode(data)
	require.NoError(t, err)
	assert.False(t, f.Routing.HasLocations())
	assert.Nil(t, f.Routing.Locations())
	assert.Empty(t, f.Routing.Nodes())
}

func TestDecodeHeader(t *testing.T) {
	data := encodeSample(t, CompressionLz4)

	h, err := DecodeHeader(data)
	require.NoError(t, err)
	assert.Equal(t, MagicBytes, string(h.Magic[:]))
	assert.Equal(t, Version, h.Version)
	assert.Equal(t, testJobID, h.JobID)
	assert.Equal(t, uint32(5), h.PhaseID)
	assert.Equal(t, CompressionLz4, h.Compression)
	assert.Equal(t, uint32(sampleRouting().EncodedLen()), h.PayloadLength)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func([]byte) []byte
		limit   int
		wantErr error
		reason  string
	}{
		{
			name:    "empty",
			mutate:  func([]byte) []byte { return nil },
			wantErr: ErrTruncated,
			reason:  "truncated",
		},
		{
			name:    "short header",
			mutate:  func(b []byte) []byte { return b[:HeaderSize-1] },
			wantErr: ErrTruncated,
			reason:  "truncated",
		},
		{
			name:    "header without footer",
			mutate:  func(b []byte) []byte { return b[:HeaderSize] },
			wantErr: ErrTruncated,
			reason:  "truncated",
		},
		{
			name: "bad magic",
			mutate: func(b []byte) []byte {
				b[0] = 'X'
				return b
			},
			wantErr: ErrInvalidMagic,
			reason:  "magic",
		},
		{
			name: "bad version",
			mutate: func(b []byte) []byte {
				binary.BigEndian.PutUint16(b[7:9], Version+1)
				return b
			},
			wantErr: ErrUnsupportedVersion,
			reason:  "version",
		},
		{
			name: "bad compression",
			mutate: func(b []byte) []byte {
				b[29] = 0x7f
				return b
			},
			wantErr: ErrUnsupportedCompression,
			reason:  "compression",
		},
		{
			name: "corrupt payload",
			mutate: func(b []byte) []byte {
				b[HeaderSize] ^= 0xff
				return b
			},
			wantErr: ErrInvalidCRC,
			reason:  "crc",
		},
		{
			name: "payload over limit",
			mutate: func(b []byte) []byte {
				return b
			},
			limit:   4,
			wantErr: ErrPayloadTooLarge,
			reason:  "too_large",
		},
		{
			name: "declared length too long",
			mutate: func(b []byte) []byte {
				n := binary.BigEndian.Uint32(b[30:34])
				binary.BigEndian.PutUint32(b[30:34], n+1)
				reseal(b)
				return b
			},
			wantErr: ErrLengthMismatch,
			reason:  "length",
		},
		{
			name: "malformed routing",
			mutate: func(b []byte) []byte {
				// node count larger than the remaining payload
				b[HeaderSize] = 0x7f
				reseal(b)
				return b
			},
			wantErr: routing.ErrMalformed,
			reason:  "routing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			m := metrics.NewCodecMetricsWithRegistry(reg)

			data := tt.mutate(encodeSample(t, CompressionNone))
			f, err := NewDecoder(tt.limit).WithMetrics(m).Decode(data)
			require.Error(t, err)
			assert.Nil(t, f)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.reason, FailureReason(err))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeFailuresTotal.WithLabelValues(tt.reason)))
		})
	}
}

func TestDecodeCompressedLengthMismatch(t *testing.T) {
	for _, c := range []Compression{CompressionGzip, CompressionSnappy, CompressionLz4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			data := encodeSample(t, c)
			n := binary.BigEndian.Uint32(data[30:34])
			binary.BigEndian.PutUint32(data[30:34], n-1)
			reseal(data)

			_, err := NewDecoder(0).Decode(data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrLengthMismatch), "got %v", err)
		})
	}
}

func TestDecodeRecordsSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCodecMetricsWithRegistry(reg)

	_, err := NewDecoder(0).WithMetrics(m).Decode(encodeSample(t, CompressionNone))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FragmentsTotal.WithLabelValues(metrics.OpDecode, metrics.StatusSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.FragmentsTotal.WithLabelValues(metrics.OpDecode, metrics.StatusFailure)))
}

func TestValidateCRC(t *testing.T) {
	data := encodeSample(t, CompressionNone)
	require.NoError(t, ValidateCRC(data))

	data[len(data)-1] ^= 0x01
	assert.ErrorIs(t, ValidateCRC(data), ErrInvalidCRC)
	assert.ErrorIs(t, ValidateCRC([]byte{1, 2}), ErrTruncated)
}

func TestFailureReasonOther(t *testing.T) {
	assert.Equal(t, "other", FailureReason(errors.New("boom")))
}
