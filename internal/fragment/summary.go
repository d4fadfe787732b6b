package fragment

// Summary is a JSON view of a fragment's routing answered through the query
// operations rather than the raw mapping.
type Summary struct {
	JobID        string        `json:"jobId"`
	PhaseID      uint32        `json:"phaseId"`
	HasLocations bool          `json:"hasLocations"`
	UnnamedNode  bool          `json:"unnamedNode,omitempty"`
	Nodes        []NodeSummary `json:"nodes"`
	Routing      string        `json:"routing"`
}

// NodeSummary holds per-node query results.
type NodeSummary struct {
	ID             string `json:"id"`
	NumTables      int    `json:"numTables"`
	NumShards      int    `json:"numShards"`
	ContainsShards bool   `json:"containsShards"`
}

// Summarize builds the summary of f. Nodes are in ascending id order.
func Summarize(f *Fragment) Summary {
	r := f.Routing
	_, unnamed := r.UnnamedNode()
	s := Summary{
		JobID:        f.JobID.String(),
		PhaseID:      f.PhaseID,
		HasLocations: r.HasLocations(),
		UnnamedNode:  unnamed,
		Nodes:        make([]NodeSummary, 0),
		Routing:      r.String(),
	}
	for _, id := range r.Nodes() {
		s.Nodes = append(s.Nodes, NodeSummary{
			ID:             id,
			NumTables:      r.NumTables(id),
			NumShards:      r.NumShards(id),
			ContainsShards: r.ContainsShards(id),
		})
	}
	return s
}
