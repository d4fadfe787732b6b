package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

var (
	ErrTruncated      = errors.New("stream truncated")
	ErrVarintOverflow = errors.New("varint overflows 64 bits")
	ErrInvalidFlag    = errors.New("invalid presence flag")
	ErrLengthOverflow = errors.New("declared length exceeds remaining input")
)

const (
	flagAbsent  byte = 0x00
	flagPresent byte = 0x01
)

// Output is the write half of the codec abstraction.
type Output interface {
	WriteUvarint(v uint64) error
	WriteString(s string) error
	// WriteOptionalString writes a presence flag, then s when it is non-nil.
	WriteOptionalString(s *string) error
	WriteBool(b bool) error
}

// Input is the read half of the codec abstraction.
type Input interface {
	ReadUvarint() (uint64, error)
	ReadString() (string, error)
	// ReadOptionalString returns nil when the presence flag says absent.
	ReadOptionalString() (*string, error)
	ReadBool() (bool, error)
	// Remaining returns the number of unread bytes.
	Remaining() int
}

// AppendString appends s as a mandatory string.
func AppendString(dst []byte, s string) []byte {
	dst = AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

// AppendOptionalString appends s as an optional string.
func AppendOptionalString(dst []byte, s *string) []byte {
	if s == nil {
		return append(dst, flagAbsent)
	}
	dst = append(dst, flagPresent)
	return AppendString(dst, *s)
}

// AppendBool appends b as a single flag byte.
func AppendBool(dst []byte, b bool) []byte {
	if b {
		return append(dst, flagPresent)
	}
	return append(dst, flagAbsent)
}

// Buffer is an in-memory Output. Its writes never fail.
type Buffer struct {
	buf []byte
}

// NewBuffer creates a Buffer with the given initial capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{buf: make([]byte, 0, capacity)}
}

func (b *Buffer) WriteUvarint(v uint64) error {
	b.buf = AppendUvarint(b.buf, v)
	return nil
}

func (b *Buffer) WriteString(s string) error {
	b.buf = AppendString(b.buf, s)
	return nil
}

func (b *Buffer) WriteOptionalString(s *string) error {
	b.buf = AppendOptionalString(b.buf, s)
	return nil
}

func (b *Buffer) WriteBool(v bool) error {
	b.buf = AppendBool(b.buf, v)
	return nil
}

// Bytes returns the encoded bytes. The slice aliases the buffer until the next write.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Len returns the number of bytes written.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// Reset discards the contents but keeps the allocated capacity.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
}

// Writer is an Output backed by an io.Writer. The first write error is sticky:
// every later call returns it without touching the underlying writer.
type Writer struct {
	w       *bufio.Writer
	scratch []byte
	written int64
	err     error
}

// NewWriter creates a buffered Writer. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:       bufio.NewWriter(w),
		scratch: make([]byte, 0, 64),
	}
}

func (w *Writer) write(p []byte) error {
	if w.err != nil {
		return w.err
	}
	n, err := w.w.Write(p)
	w.written += int64(n)
	if err != nil {
		w.err = fmt.Errorf("stream write: %w", err)
	}
	return w.err
}

func (w *Writer) WriteUvarint(v uint64) error {
	w.scratch = AppendUvarint(w.scratch[:0], v)
	return w.write(w.scratch)
}

func (w *Writer) WriteString(s string) error {
	w.scratch = AppendString(w.scratch[:0], s)
	return w.write(w.scratch)
}

func (w *Writer) WriteOptionalString(s *string) error {
	w.scratch = AppendOptionalString(w.scratch[:0], s)
	return w.write(w.scratch)
}

func (w *Writer) WriteBool(b bool) error {
	w.scratch = AppendBool(w.scratch[:0], b)
	return w.write(w.scratch)
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if err := w.w.Flush(); err != nil {
		w.err = fmt.Errorf("stream flush: %w", err)
	}
	return w.err
}

// Written returns the number of bytes accepted so far, including buffered bytes.
func (w *Writer) Written() int64 {
	return w.written
}

// Reader is an Input over a byte slice.
type Reader struct {
	src []byte
	off int
}

// NewReader creates a Reader positioned at the start of src.
func NewReader(src []byte) *Reader {
	return &Reader{src: src}
}

func (r *Reader) ReadUvarint() (uint64, error) {
	v, n := Uvarint(r.src[r.off:])
	switch {
	case n == 0:
		return 0, fmt.Errorf("%w: uvarint at offset %d", ErrTruncated, r.off)
	case n < 0:
		return 0, fmt.Errorf("%w: at offset %d", ErrVarintOverflow, r.off)
	}
	r.off += n
	return v, nil
}

func (r *Reader) ReadString() (string, error) {
	start := r.off
	l, err := r.ReadUvarint()
	if err != nil {
		return "", err
	}
	if l > uint64(r.Remaining()) {
		r.off = start
		return "", fmt.Errorf("%w: string of %d bytes at offset %d, %d remaining",
			ErrLengthOverflow, l, start, r.Remaining())
	}
	s := string(r.src[r.off : r.off+int(l)])
	r.off += int(l)
	return s, nil
}

func (r *Reader) ReadOptionalString() (*string, error) {
	present, err := r.readFlag()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	s, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Reader) ReadBool() (bool, error) {
	return r.readFlag()
}

func (r *Reader) readFlag() (bool, error) {
	if r.off >= len(r.src) {
		return false, fmt.Errorf("%w: flag at offset %d", ErrTruncated, r.off)
	}
	b := r.src[r.off]
	switch b {
	case flagAbsent:
		r.off++
		return false, nil
	case flagPresent:
		r.off++
		return true, nil
	default:
		return false, fmt.Errorf("%w: 0x%02x at offset %d", ErrInvalidFlag, b, r.off)
	}
}

func (r *Reader) Remaining() int {
	return len(r.src) - r.off
}

// Offset returns the number of bytes consumed.
func (r *Reader) Offset() int {
	return r.off
}
