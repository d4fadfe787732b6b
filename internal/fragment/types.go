package fragment

import (
	"hash/crc32"

	"github.com/google/uuid"

	"github.com/dray-io/shardroute/internal/routing"
)

// MagicBytes identifies a fragment envelope.
const MagicBytes = "SRTFRG1"

// Version is the current envelope format version.
const Version uint16 = 1

// HeaderSize is the fixed size of the envelope header in bytes.
const HeaderSize = 34

// FooterSize is the size of the CRC32C footer.
const FooterSize = 4

// crc32cTable is the Castagnoli polynomial table used for CRC32C.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// Fragment is the routing portion of a plan fragment.
type Fragment struct {
	// JobID identifies the query job the fragment belongs to.
	JobID uuid.UUID
	// PhaseID identifies the execution phase within the job.
	PhaseID uint32
	// Routing is the shard routing for the phase. Nil encodes as no locations.
	Routing *routing.Routing
}

// Header is the decoded envelope header.
type Header struct {
	Magic       [7]byte
	Version     uint16
	JobID       uuid.UUID
	PhaseID     uint32
	Compression Compression
	// PayloadLength is the uncompressed routing length.
	PayloadLength uint32
}
