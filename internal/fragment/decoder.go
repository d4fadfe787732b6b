package fragment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/dray-io/shardroute/internal/logging"
	"github.com/dray-io/shardroute/internal/metrics"
	"github.com/dray-io/shardroute/internal/routing"
)

var (
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported fragment version")
	ErrTruncated          = errors.New("truncated fragment")
	ErrInvalidCRC         = errors.New("CRC32C checksum mismatch")
	ErrPayloadTooLarge    = errors.New("fragment payload too large")
	ErrLengthMismatch     = errors.New("payload length mismatch")
)

// Decoder reads fragment envelopes.
type Decoder struct {
	maxPayloadBytes int
	metrics         *metrics.CodecMetrics
	logger          *logging.Logger
}

// NewDecoder creates a decoder rejecting payloads that declare more than
// maxPayloadBytes uncompressed bytes. Zero disables the limit.
func NewDecoder(maxPayloadBytes int) *Decoder {
	return &Decoder{maxPayloadBytes: maxPayloadBytes}
}

// WithMetrics sets the metrics recorder.
func (d *Decoder) WithMetrics(m *metrics.CodecMetrics) *Decoder {
	d.metrics = m
	return d
}

// WithLogger sets the logger used to report rejected envelopes.
func (d *Decoder) WithLogger(l *logging.Logger) *Decoder {
	d.logger = l
	return d
}

// Decode parses a complete envelope. The whole fragment is rejected on any error.
func (d *Decoder) Decode(data []byte) (*Fragment, error) {
	start := time.Now()
	f, err := d.decode(data)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		reason := FailureReason(err)
		d.metrics.RecordFailure(metrics.OpDecode, elapsed, reason)
		if d.logger != nil {
			d.logger.Warnf("rejected routing fragment", map[string]any{
				"reason": reason,
				"bytes":  len(data),
				"error":  err.Error(),
			})
		}
		return nil, err
	}
	d.metrics.RecordDecode(elapsed, len(data), routingLen(data), len(f.Routing.Nodes()))
	return f, nil
}

// DecodeFrom reads r to EOF and decodes the envelope.
func (d *Decoder) DecodeFrom(r io.Reader) (*Fragment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading fragment: %w", err)
	}
	return d.Decode(data)
}

func (d *Decoder) decode(data []byte) (*Fragment, error) {
	header, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	if len(data) < HeaderSize+FooterSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrTruncated, len(data), HeaderSize+FooterSize)
	}
	if d.maxPayloadBytes > 0 && int64(header.PayloadLength) > int64(d.maxPayloadBytes) {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, header.PayloadLength, d.maxPayloadBytes)
	}
	if err := ValidateCRC(data); err != nil {
		return nil, err
	}

	body := data[HeaderSize : len(data)-FooterSize]
	payload, err := decompress(body, header.Compression, int(header.PayloadLength))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if len(payload) != int(header.PayloadLength) {
		return nil, fmt.Errorf("%w: got %d bytes, header says %d", ErrLengthMismatch, len(payload), header.PayloadLength)
	}

	r, err := routing.Unmarshal(payload)
	if err != nil {
		return nil, err
	}

	return &Fragment{
		JobID:   header.JobID,
		PhaseID: header.PhaseID,
		Routing: r,
	}, nil
}

// DecodeHeader parses and validates the envelope header.
func DecodeHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, got %d", ErrTruncated, HeaderSize, len(data))
	}

	h := &Header{}
	offset := copy(h.Magic[:], data[:len(MagicBytes)])
	if string(h.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrInvalidMagic, string(h.Magic[:]), MagicBytes)
	}

	h.Version = binary.BigEndian.Uint16(data[offset:])
	if h.Version != Version {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, h.Version, Version)
	}
	offset += 2

	offset += copy(h.JobID[:], data[offset:offset+16])

	h.PhaseID = binary.BigEndian.Uint32(data[offset:])
	offset += 4

	h.Compression = Compression(data[offset])
	if h.Compression > CompressionZstd {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, h.Compression)
	}
	offset++

	h.PayloadLength = binary.BigEndian.Uint32(data[offset:])

	return h, nil
}

// ValidateCRC checks the CRC32C footer against the preceding bytes.
func ValidateCRC(data []byte) error {
	if len(data) < FooterSize {
		return fmt.Errorf("%w: missing CRC32C footer", ErrTruncated)
	}
	split := len(data) - FooterSize
	want := binary.BigEndian.Uint32(data[split:])
	got := crc32.Checksum(data[:split], crc32cTable)
	if got != want {
		return fmt.Errorf("%w: computed %08x, stored %08x", ErrInvalidCRC, got, want)
	}
	return nil
}

// FailureReason classifies a decode error for metrics labels.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidMagic):
		return "magic"
	case errors.Is(err, ErrUnsupportedVersion):
		return "version"
	case errors.Is(err, ErrTruncated):
		return "truncated"
	case errors.Is(err, ErrInvalidCRC):
		return "crc"
	case errors.Is(err, ErrPayloadTooLarge):
		return "too_large"
	case errors.Is(err, ErrUnsupportedCompression):
		return "compression"
	case errors.Is(err, ErrLengthMismatch):
		return "length"
	case errors.Is(err, routing.ErrMalformed):
		return "routing"
	default:
		return "other"
	}
}

func routingLen(data []byte) int {
	if len(data) < HeaderSize {
		return 0
	}
	return int(binary.BigEndian.Uint32(data[HeaderSize-4:]))
}
