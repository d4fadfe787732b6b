// Package stream implements the byte-oriented input/output abstraction that the
// wire codecs in this module are written against.
//
// Three primitives are provided:
//
//   - unsigned varints: LEB128, 7-bit little-endian groups with the high bit of
//     each byte used as the continuation flag, always in the minimum number of
//     groups on output
//   - mandatory strings: uvarint byte length followed by the UTF-8 bytes
//   - optional strings: a one-byte presence flag (0x00 absent, 0x01 present)
//     followed, when present, by a mandatory string
//
// There are no fixed-width integers anywhere in the format.
//
// Usage:
//
//	buf := stream.NewBuffer(64)
//	_ = buf.WriteUvarint(3)
//	_ = buf.WriteString("orders")
//
//	in := stream.NewReader(buf.Bytes())
//	n, err := in.ReadUvarint()
//	name, err := in.ReadString()
package stream
