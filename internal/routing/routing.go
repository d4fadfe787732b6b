package routing

import (
	"slices"
	"strconv"
	"strings"
)

// ShardSet is a set of shard ids.
type ShardSet map[uint32]struct{}

// Shards builds a ShardSet. Duplicate ids collapse.
func Shards(ids ...uint32) ShardSet {
	s := make(ShardSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Sorted returns the shard ids in ascending order.
func (s ShardSet) Sorted() []uint32 {
	ids := make([]uint32, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// TableShards maps a table id to the shards of that table held by one node.
type TableShards map[string]ShardSet

// Locations maps a node id to the tables routed to it.
type Locations map[string]TableShards

// Routing describes which shards of which tables live on which nodes.
type Routing struct {
	locations Locations

	// Entry decoded from a null node id. Only the codec produces it.
	unnamed    TableShards
	hasUnnamed bool
}

// New creates a Routing over locations. A nil map means no locations are known.
// The map is not copied; callers must not modify it afterwards.
func New(locations Locations) *Routing {
	return &Routing{locations: locations}
}

// NewEmpty creates a Routing without locations.
func NewEmpty() *Routing {
	return &Routing{}
}

// Locations returns the underlying mapping, or nil if no locations are known.
// The returned map is shared with the Routing and must not be modified.
func (r *Routing) Locations() Locations {
	if r == nil {
		return nil
	}
	return r.locations
}

// UnnamedNode returns the tables of the entry that was decoded with a null node id.
func (r *Routing) UnnamedNode() (TableShards, bool) {
	if r == nil {
		return nil, false
	}
	return r.unnamed, r.hasUnnamed
}

func (r *Routing) numEntries() int {
	n := len(r.locations)
	if r.hasUnnamed {
		n++
	}
	return n
}

// HasLocations reports whether at least one node entry is present.
func (r *Routing) HasLocations() bool {
	return r != nil && r.numEntries() > 0
}

// Nodes returns the node ids in ascending order. The result is never nil.
func (r *Routing) Nodes() []string {
	if !r.HasLocations() {
		return []string{}
	}
	nodes := make([]string, 0, len(r.locations))
	for id := range r.locations {
		nodes = append(nodes, id)
	}
	slices.Sort(nodes)
	return nodes
}

// NumShards returns the number of shards routed to nodeID across all tables.
func (r *Routing) NumShards(nodeID string) int {
	if !r.HasLocations() {
		return 0
	}
	count := 0
	for _, shards := range r.locations[nodeID] {
		count += len(shards)
	}
	return count
}

// ContainsShards reports whether any table routed to nodeID has at least one shard.
func (r *Routing) ContainsShards(nodeID string) bool {
	if !r.HasLocations() {
		return false
	}
	for _, shards := range r.locations[nodeID] {
		if len(shards) > 0 {
			return true
		}
	}
	return false
}

// NumTables returns the number of table entries routed to nodeID, including
// entries with no shards.
func (r *Routing) NumTables(nodeID string) int {
	if !r.HasLocations() {
		return 0
	}
	return len(r.locations[nodeID])
}

// Equal reports whether r and other are indistinguishable on the wire: routings
// without locations are equal whether their map is nil or empty, and nil inner
// containers equal empty ones.
func (r *Routing) Equal(other *Routing) bool {
	if !r.HasLocations() || !other.HasLocations() {
		return r.HasLocations() == other.HasLocations()
	}
	if len(r.locations) != len(other.locations) || r.hasUnnamed != other.hasUnnamed {
		return false
	}
	if r.hasUnnamed && !tablesEqual(r.unnamed, other.unnamed) {
		return false
	}
	for nodeID, tables := range r.locations {
		otherTables, ok := other.locations[nodeID]
		if !ok || !tablesEqual(tables, otherTables) {
			return false
		}
	}
	return true
}

func tablesEqual(a, b TableShards) bool {
	if len(a) != len(b) {
		return false
	}
	for tableID, shards := range a {
		otherShards, ok := b[tableID]
		if !ok || len(shards) != len(otherShards) {
			return false
		}
		for id := range shards {
			if _, ok := otherShards[id]; !ok {
				return false
			}
		}
	}
	return true
}

// String renders the routing with nodes, tables and shards in ascending order,
// e.g. Routing{locations={n1={t1=[1, 2], t2=[]}, n2={}}}.
func (r *Routing) String() string {
	var b strings.Builder
	b.WriteString("Routing{")
	if r.HasLocations() {
		b.WriteString("locations={")
		first := true
		if r.hasUnnamed {
			b.WriteString("<null>=")
			writeTables(&b, r.unnamed)
			first = false
		}
		for _, nodeID := range r.Nodes() {
			if !first {
				b.WriteString(", ")
			}
			first = false
			b.WriteString(nodeID)
			b.WriteByte('=')
			writeTables(&b, r.locations[nodeID])
		}
		b.WriteByte('}')
	}
	b.WriteByte('}')
	return b.String()
}

func writeTables(b *strings.Builder, tables TableShards) {
	tableIDs := make([]string, 0, len(tables))
	for id := range tables {
		tableIDs = append(tableIDs, id)
	}
	slices.Sort(tableIDs)

	b.WriteByte('{')
	for i, tableID := range tableIDs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tableID)
		b.WriteString("=[")
		for j, id := range tables[tableID].Sorted() {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.FormatUint(uint64(id), 10))
		}
		b.WriteByte(']')
	}
	b.WriteByte('}')
}
