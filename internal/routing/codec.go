package routing

import (
	"errors"
	"fmt"
	"math"

	"github.com/dray-io/shardroute/internal/stream"
)

var (
	// ErrMalformed wraps every decode failure.
	ErrMalformed    = errors.New("malformed routing")
	ErrShardIDRange = errors.New("shard id out of range")
	ErrTrailingData = errors.New("trailing data after routing")
)

// Minimum encoded size of one element of each counted collection. A declared
// count is rejected when the remaining input cannot hold that many elements.
const (
	minNodeEntryLen  = 2 // presence flag + table count
	minTableEntryLen = 2 // table id length + shard count
	minShardLen      = 1
)

// EncodeTo writes r to out. A nil or location-less routing encodes as a single
// zero count.
func (r *Routing) EncodeTo(out stream.Output) error {
	if !r.HasLocations() {
		return out.WriteUvarint(0)
	}
	if err := out.WriteUvarint(uint64(r.numEntries())); err != nil {
		return err
	}
	if r.hasUnnamed {
		if err := encodeNode(out, nil, r.unnamed); err != nil {
			return err
		}
	}
	for nodeID, tables := range r.locations {
		id := nodeID
		if err := encodeNode(out, &id, tables); err != nil {
			return err
		}
	}
	return nil
}

func encodeNode(out stream.Output, nodeID *string, tables TableShards) error {
	if err := out.WriteOptionalString(nodeID); err != nil {
		return err
	}
	if err := out.WriteUvarint(uint64(len(tables))); err != nil {
		return err
	}
	for tableID, shards := range tables {
		if err := out.WriteString(tableID); err != nil {
			return err
		}
		if err := out.WriteUvarint(uint64(len(shards))); err != nil {
			return err
		}
		for id := range shards {
			if err := out.WriteUvarint(uint64(id)); err != nil {
				return err
			}
		}
	}
	return nil
}

// EncodedLen returns the exact number of bytes EncodeTo writes for r.
func (r *Routing) EncodedLen() int {
	if !r.HasLocations() {
		return 1
	}
	n := stream.UvarintLen(uint64(r.numEntries()))
	if r.hasUnnamed {
		n += 1 + tablesEncodedLen(r.unnamed)
	}
	for nodeID, tables := range r.locations {
		n += 1 + stringEncodedLen(nodeID) + tablesEncodedLen(tables)
	}
	return n
}

func tablesEncodedLen(tables TableShards) int {
	n := stream.UvarintLen(uint64(len(tables)))
	for tableID, shards := range tables {
		n += stringEncodedLen(tableID) + stream.UvarintLen(uint64(len(shards)))
		for id := range shards {
			n += stream.UvarintLen(uint64(id))
		}
	}
	return n
}

func stringEncodedLen(s string) int {
	return stream.UvarintLen(uint64(len(s))) + len(s)
}

// DecodeFrom reads a routing from in. On failure nothing is returned; the input
// position is unspecified.
func DecodeFrom(in stream.Input) (*Routing, error) {
	numNodes, err := readCount(in, minNodeEntryLen)
	if err != nil {
		return nil, fmt.Errorf("%w: node count: %w", ErrMalformed, err)
	}

	r := &Routing{}
	if numNodes == 0 {
		return r, nil
	}

	r.locations = make(Locations, numNodes)
	for i := 0; i < numNodes; i++ {
		nodeID, err := in.ReadOptionalString()
		if err != nil {
			return nil, fmt.Errorf("%w: node %d id: %w", ErrMalformed, i, err)
		}
		tables, err := decodeTables(in)
		if err != nil {
			return nil, fmt.Errorf("%w: node %s: %w", ErrMalformed, describeNode(i, nodeID), err)
		}
		if nodeID == nil {
			r.unnamed = tables
			r.hasUnnamed = true
			continue
		}
		r.locations[*nodeID] = tables
	}
	return r, nil
}

func decodeTables(in stream.Input) (TableShards, error) {
	numTables, err := readCount(in, minTableEntryLen)
	if err != nil {
		return nil, fmt.Errorf("table count: %w", err)
	}

	tables := make(TableShards, numTables)
	for j := 0; j < numTables; j++ {
		tableID, err := in.ReadString()
		if err != nil {
			return nil, fmt.Errorf("table %d id: %w", j, err)
		}
		numShards, err := readCount(in, minShardLen)
		if err != nil {
			return nil, fmt.Errorf("table %q shard count: %w", tableID, err)
		}
		shards := make(ShardSet, numShards)
		for k := 0; k < numShards; k++ {
			id, err := in.ReadUvarint()
			if err != nil {
				return nil, fmt.Errorf("table %q shard %d: %w", tableID, k, err)
			}
			if id > math.MaxUint32 {
				return nil, fmt.Errorf("table %q shard %d: %w: %d", tableID, k, ErrShardIDRange, id)
			}
			shards[uint32(id)] = struct{}{}
		}
		tables[tableID] = shards
	}
	return tables, nil
}

// readCount reads a collection size and checks it against the remaining input.
func readCount(in stream.Input, minElemLen int) (int, error) {
	n, err := in.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if n > uint64(in.Remaining()/minElemLen) {
		return 0, fmt.Errorf("%w: count %d with %d bytes remaining", stream.ErrLengthOverflow, n, in.Remaining())
	}
	return int(n), nil
}

func describeNode(i int, nodeID *string) string {
	if nodeID == nil {
		return fmt.Sprintf("%d (null)", i)
	}
	return fmt.Sprintf("%q", *nodeID)
}

// Marshal encodes r into a new byte slice.
func Marshal(r *Routing) []byte {
	buf := stream.NewBuffer(r.EncodedLen())
	// Buffer writes cannot fail.
	_ = r.EncodeTo(buf)
	return buf.Bytes()
}

// Unmarshal decodes a routing that occupies all of data.
func Unmarshal(data []byte) (*Routing, error) {
	in := stream.NewReader(data)
	r, err := DecodeFrom(in)
	if err != nil {
		return nil, err
	}
	if in.Remaining() > 0 {
		return nil, fmt.Errorf("%w: %w: %d bytes at offset %d", ErrMalformed, ErrTrailingData, in.Remaining(), in.Offset())
	}
	return r, nil
}
