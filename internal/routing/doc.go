// Package routing implements the shard routing table carried by plan fragments.
//
// A Routing maps node ids to the tables (or indices) each node serves and, for
// every table, the set of shard ids located on that node:
//
//	node id -> table id -> {shard id, ...}
//
// Absence is significant. A Routing without locations (nil Locations) means no
// placement is known yet; a node entry whose tables all have empty shard sets
// means the node takes part in the plan but holds nothing to read. Queries never
// fail: unknown nodes and absent locations answer with empty or zero values, which
// is the normal state while a plan is still being assembled.
//
// Wire Format
//
// All integers are LEB128 uvarints (see package stream):
//
//	uvarint  node count            0 when locations are absent or empty; nothing follows
//	per node:
//	  optional string  node id     a 0x00 flag encodes a null node id
//	  uvarint          table count
//	  per table:
//	    string   table id
//	    uvarint  shard count
//	    uvarint  shard id ...      set iteration order
//
// Entries are written in map iteration order. Two encodings of the same routing
// may therefore differ byte-wise; compare decoded values with Equal instead.
//
// A Routing is immutable once built and may be read from many goroutines.
package routing
