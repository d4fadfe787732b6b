package fragment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"time"

	"github.com/dray-io/shardroute/internal/metrics"
	"github.com/dray-io/shardroute/internal/routing"
)

// Encoder writes fragment envelopes.
type Encoder struct {
	compression Compression
	metrics     *metrics.CodecMetrics
}

// NewEncoder creates an encoder that compresses payloads with c.
func NewEncoder(c Compression) *Encoder {
	return &Encoder{compression: c}
}

// WithMetrics sets the metrics recorder.
func (e *Encoder) WithMetrics(m *metrics.CodecMetrics) *Encoder {
	e.metrics = m
	return e
}

// Encode returns the envelope bytes for f.
func (e *Encoder) Encode(f *Fragment) ([]byte, error) {
	start := time.Now()
	buf, payloadLen, err := e.encode(f)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		e.metrics.RecordFailure(metrics.OpEncode, elapsed, "")
		return nil, err
	}
	e.metrics.RecordEncode(elapsed, len(buf), payloadLen, len(f.Routing.Nodes()))
	return buf, nil
}

func (e *Encoder) encode(f *Fragment) ([]byte, int, error) {
	payload := routing.Marshal(f.Routing)
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, 0, fmt.Errorf("routing payload of %d bytes exceeds envelope limit", len(payload))
	}

	body, err := compress(payload, e.compression)
	if err != nil {
		return nil, 0, err
	}

	buf := make([]byte, HeaderSize+len(body)+FooterSize)
	offset := encodeHeader(buf, f, e.compression, uint32(len(payload)))
	offset += copy(buf[offset:], body)

	crc := crc32.Checksum(buf[:offset], crc32cTable)
	binary.BigEndian.PutUint32(buf[offset:], crc)

	return buf, len(payload), nil
}

// EncodeTo writes the envelope for f to w and returns the bytes written.
func (e *Encoder) EncodeTo(w io.Writer, f *Fragment) (int64, error) {
	buf, err := e.Encode(f)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// encodeHeader writes the 34-byte header and returns bytes written.
func encodeHeader(buf []byte, f *Fragment, c Compression, payloadLen uint32) int {
	offset := copy(buf, MagicBytes)

	binary.BigEndian.PutUint16(buf[offset:], Version)
	offset += 2

	offset += copy(buf[offset:], f.JobID[:])

	binary.BigEndian.PutUint32(buf[offset:], f.PhaseID)
	offset += 4

	buf[offset] = byte(c)
	offset++

	binary.BigEndian.PutUint32(buf[offset:], payloadLen)
	offset += 4

	return offset
}
