// Package fragment frames a routing table for forwarding to the next hop of a
// distributed query.
//
// Envelope layout (all fixed-width fields big-endian):
//
//	magic            7 bytes  "SRTFRG1"
//	version          2 bytes  currently 1
//	job id          16 bytes  UUID of the query job
//	phase id         4 bytes  execution phase the routing belongs to
//	compression      1 byte   see Compression
//	payload length   4 bytes  uncompressed routing length
//	payload          N bytes  routing wire encoding, possibly compressed
//	crc32c           4 bytes  Castagnoli checksum of everything before it
//
// The payload is the encoding produced by routing.Marshal. The transport that
// carries envelopes is outside this package.
package fragment
