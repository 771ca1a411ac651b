package models

import (
	"encoding/json"
	"fmt"
)

// Edge is a directed material/process flow between two nodes. Purely
// structural, no payload.
type Edge struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// WorkflowGraph owns the nodes and edges of one workflow. Node ids are
// unique, stable across edits, and iteration order is insertion order so
// repeated reads produce stable output.
//
// The graph is a plain value with no internal locking: callers must serialize
// writes per workflow id (see services.Workflow).
type WorkflowGraph struct {
	WorkflowID string
	nodes      map[string]*Node
	order      []string
	edges      []Edge
}

// NewWorkflowGraph creates an empty graph for the given workflow id.
func NewWorkflowGraph(workflowID string) *WorkflowGraph {
	return &WorkflowGraph{
		WorkflowID: workflowID,
		nodes:      make(map[string]*Node),
	}
}

// AddNode inserts a node. Ids must be unique within the graph.
func (g *WorkflowGraph) AddNode(n *Node) error {
	if n.ID == "" {
		return fmt.Errorf("node id is required")
	}

	if _, ok := g.nodes[n.ID]; ok {
		return fmt.Errorf("node %s already exists in workflow %s", n.ID, g.WorkflowID)
	}

	n.WorkflowID = g.WorkflowID
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)

	return nil
}

// Node returns the node with the given id, or nil.
func (g *WorkflowGraph) Node(id string) *Node {
	return g.nodes[id]
}

// HasNode reports whether a node with the given id exists.
func (g *WorkflowGraph) HasNode(id string) bool {
	_, ok := g.nodes[id]

	return ok
}

// Nodes returns all nodes in insertion order.
func (g *WorkflowGraph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}

	return nodes
}

// Len returns the number of nodes.
func (g *WorkflowGraph) Len() int {
	return len(g.nodes)
}

// Edges returns a copy of the edge set.
func (g *WorkflowGraph) Edges() []Edge {
	edges := make([]Edge, len(g.edges))
	copy(edges, g.edges)

	return edges
}

// HasEdge reports whether an edge source->target exists.
func (g *WorkflowGraph) HasEdge(source, target string) bool {
	for _, e := range g.edges {
		if e.Source == source && e.Target == target {
			return true
		}
	}

	return false
}

// Connect adds an edge between two existing nodes. Re-adding an existing
// edge succeeds without duplication. Self-loops are rejected.
func (g *WorkflowGraph) Connect(source, target string) error {
	if source == target {
		return fmt.Errorf("self-loop on node %s is not allowed", source)
	}

	if !g.HasNode(source) {
		return fmt.Errorf("edge source node %s does not exist", source)
	}

	if !g.HasNode(target) {
		return fmt.Errorf("edge target node %s does not exist", target)
	}

	if g.HasEdge(source, target) {
		return nil
	}

	g.edges = append(g.edges, Edge{Source: source, Target: target})

	return nil
}

// RemoveNode deletes a node and every edge incident to it.
func (g *WorkflowGraph) RemoveNode(id string) bool {
	if _, ok := g.nodes[id]; !ok {
		return false
	}

	delete(g.nodes, id)

	for i, nodeID := range g.order {
		if nodeID == id {
			g.order = append(g.order[:i], g.order[i+1:]...)

			break
		}
	}

	kept := g.edges[:0]

	for _, e := range g.edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}

	g.edges = kept

	return true
}

// Validate checks the structural invariants: every edge endpoint references
// an existing node and no edge is a self-loop.
func (g *WorkflowGraph) Validate() error {
	for _, e := range g.edges {
		if e.Source == e.Target {
			return fmt.Errorf("self-loop on node %s", e.Source)
		}

		if !g.HasNode(e.Source) {
			return fmt.Errorf("edge references missing source node %s", e.Source)
		}

		if !g.HasNode(e.Target) {
			return fmt.Errorf("edge references missing target node %s", e.Target)
		}
	}

	return nil
}

// Clone returns a deep copy. The action processor applies every action to a
// clone so a failed action leaves the caller's graph untouched.
func (g *WorkflowGraph) Clone() *WorkflowGraph {
	clone := NewWorkflowGraph(g.WorkflowID)

	for _, id := range g.order {
		node := *g.nodes[id]

		if node.Activity.Quantity != nil {
			q := *node.Activity.Quantity
			node.Activity.Quantity = &q
		}

		if node.Footprint != nil {
			f := *node.Footprint
			node.Footprint = &f
		}

		if node.Provenance.ActivityScore != nil {
			s := *node.Provenance.ActivityScore
			node.Provenance.ActivityScore = &s
		}

		if node.Factor != nil {
			factor := *node.Factor

			if factor.UnitConversion != nil {
				c := *factor.UnitConversion
				factor.UnitConversion = &c
			}

			node.Factor = &factor
		}

		clone.nodes[id] = &node
		clone.order = append(clone.order, id)
	}

	clone.edges = make([]Edge, len(g.edges))
	copy(clone.edges, g.edges)

	return clone
}

// graphJSON is the wire/storage representation of a graph.
type graphJSON struct {
	WorkflowID string  `json:"workflow_id"`
	Nodes      []*Node `json:"nodes"`
	Edges      []Edge  `json:"edges"`
}

// MarshalJSON serializes the graph with nodes in insertion order.
func (g *WorkflowGraph) MarshalJSON() ([]byte, error) {
	return json.Marshal(graphJSON{
		WorkflowID: g.WorkflowID,
		Nodes:      g.Nodes(),
		Edges:      g.Edges(),
	})
}

// UnmarshalJSON restores a graph, validating structural invariants.
func (g *WorkflowGraph) UnmarshalJSON(data []byte) error {
	var raw graphJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	restored := NewWorkflowGraph(raw.WorkflowID)

	for _, n := range raw.Nodes {
		if err := restored.AddNode(n); err != nil {
			return err
		}
	}

	restored.edges = raw.Edges

	if err := restored.Validate(); err != nil {
		return err
	}

	*g = *restored

	return nil
}
