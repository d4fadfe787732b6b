package fragment

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/dray-io/shardroute/internal/routing"
)

// ErrUnnamedNode is returned when dumping a routing that holds an entry decoded
// from a null node id. The description format only has named nodes.
var ErrUnnamedNode = errors.New("routing has an unnamed node entry")

// Description is the YAML form of a fragment.
type Description struct {
	JobID     string        `yaml:"jobId,omitempty"`
	PhaseID   uint32        `yaml:"phaseId"`
	Locations NodeLocations `yaml:"locations,omitempty"`
}

// NodeLocations maps node id to table id to shard ids. A nil map is omitted
// from the output, an empty one is written as {}.
type NodeLocations map[string]map[string]ShardList

// IsZero reports whether the locations are absent.
func (l NodeLocations) IsZero() bool {
	return l == nil
}

// ShardList is a list of shard ids written in flow style.
type ShardList []uint32

// MarshalYAML implements yaml.Marshaler.
func (s ShardList) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for _, id := range s {
		node.Content = append(node.Content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!int",
			Value: strconv.FormatUint(uint64(id), 10),
		})
	}
	return node, nil
}

// LoadDescription parses a YAML description. An empty jobId gets a fresh
// random id. A missing locations key yields a routing without locations.
func LoadDescription(r io.Reader) (*Fragment, error) {
	var desc Description
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&desc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing description: empty document")
		}
		return nil, fmt.Errorf("parsing description: %w", err)
	}
	return desc.Fragment()
}

// Fragment converts the description to a Fragment.
func (d *Description) Fragment() (*Fragment, error) {
	jobID := uuid.New()
	if d.JobID != "" {
		parsed, err := uuid.Parse(d.JobID)
		if err != nil {
			return nil, fmt.Errorf("invalid jobId %q: %w", d.JobID, err)
		}
		jobID = parsed
	}

	var locations routing.Locations
	if d.Locations != nil {
		locations = make(routing.Locations, len(d.Locations))
		for nodeID, tables := range d.Locations {
			ts := make(routing.TableShards, len(tables))
			for tableID, shards := range tables {
				ts[tableID] = routing.Shards(shards...)
			}
			locations[nodeID] = ts
		}
	}

	return &Fragment{
		JobID:   jobID,
		PhaseID: d.PhaseID,
		Routing: routing.New(locations),
	}, nil
}

// Describe builds the description of f with shard ids in ascending order.
func Describe(f *Fragment) (*Description, error) {
	if _, ok := f.Routing.UnnamedNode(); ok {
		return nil, ErrUnnamedNode
	}

	desc := &Description{
		JobID:   f.JobID.String(),
		PhaseID: f.PhaseID,
	}
	if locations := f.Routing.Locations(); locations != nil {
		desc.Locations = make(NodeLocations, len(locations))
		for nodeID, tables := range locations {
			out := make(map[string]ShardList, len(tables))
			for tableID, shards := range tables {
				out[tableID] = ShardList(shards.Sorted())
			}
			desc.Locations[nodeID] = out
		}
	}
	return desc, nil
}

// DumpDescription writes f as YAML. Map keys are sorted.
func DumpDescription(w io.Writer, f *Fragment) error {
	desc, err := Describe(f)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(desc); err != nil {
		return fmt.Errorf("encoding description: %w", err)
	}
	return enc.Close()
}
