package flow

import (
	"errors"
	"fmt"
	"time"
)

// Edge connects two nodes of a graph
type Edge struct {
	ID         string `json:"id" yaml:"id"`
	FromNodeID string `json:"from" yaml:"from"`
	ToNodeID   string `json:"to" yaml:"to"`
	Label      string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Validate checks the edge endpoints
func (e *Edge) Validate() error {
	if e.FromNodeID == "" {
		return errors.New("edge: empty source node")
	}
	if e.ToNodeID == "" {
		return errors.New("edge: empty target node")
	}
	if e.FromNodeID == e.ToNodeID {
		return fmt.Errorf("edge: self-loop on node %s", e.FromNodeID)
	}
	return nil
}

// Graph is a flow document: an ordered node collection plus the edges between nodes
type Graph struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Version      string    `json:"version" yaml:"version"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
	ProjectID    string    `json:"project,omitempty" yaml:"project,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty" yaml:"last_modified,omitempty"`
	Nodes        []*Node   `json:"nodes" yaml:"nodes"`
	Edges        []*Edge   `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// NewGraph creates a flow with a start and an end node connected by an edge
func NewGraph(name, description string) (*Graph, error) {
	if name == "" {
		return nil, errors.New("flow name cannot be empty")
	}

	g := &Graph{
		ID:           NewID(),
		Name:         name,
		Version:      "1.0.0",
		Description:  description,
		LastModified: time.Now(),
		Nodes:        make([]*Node, 0, 2),
		Edges:        make([]*Edge, 0, 1),
	}

	start := NewNode(KindStart, "")
	end := NewNode(KindEnd, "")
	g.Nodes = append(g.Nodes, start, end)
	g.Edges = append(g.Edges, &Edge{ID: NewID(), FromNodeID: start.ID, ToNodeID: end.ID})
	return g, nil
}

// Clone returns a deep copy of the graph
func (g *Graph) Clone() *Graph {
	c := *g
	c.Nodes = CloneNodes(g.Nodes)
	c.Edges = CloneEdges(g.Edges)
	return &c
}

// CloneNodes deep copies a node list
func CloneNodes(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// CloneEdges copies an edge list
func CloneEdges(edges []*Edge) []*Edge {
	if edges == nil {
		return nil
	}
	out := make([]*Edge, len(edges))
	for i, e := range edges {
		if e != nil {
			c := *e
			out[i] = &c
		}
	}
	return out
}

// Node returns the node with the given id
func (g *Graph) Node(id string) (*Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// AddNode appends a node to the graph.
// Duplicate ids are accepted here and reported by Validate.
func (g *Graph) AddNode(node *Node) error {
	if node == nil {
		return errors.New("cannot add nil node")
	}
	g.Nodes = append(g.Nodes, node)
	g.LastModified = time.Now()
	return nil
}

// RemoveNode removes a node and every edge connected to it
func (g *Graph) RemoveNode(nodeID string) error {
	found := false
	nodes := make([]*Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == nodeID {
			found = true
			continue
		}
		nodes = append(nodes, n)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	g.Nodes = nodes

	edges := make([]*Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		if e.FromNodeID != nodeID && e.ToNodeID != nodeID {
			edges = append(edges, e)
		}
	}
	g.Edges = edges
	g.LastModified = time.Now()
	return nil
}

// AddEdge connects two nodes. Duplicate source/target pairs are rejected.
func (g *Graph) AddEdge(edge *Edge) error {
	if edge == nil {
		return errors.New("cannot add nil edge")
	}
	for _, existing := range g.Edges {
		if existing.FromNodeID == edge.FromNodeID && existing.ToNodeID == edge.ToNodeID {
			return fmt.Errorf("duplicate edge from %s to %s", edge.FromNodeID, edge.ToNodeID)
		}
	}
	if edge.ID == "" {
		edge.ID = NewID()
	}
	g.Edges = append(g.Edges, edge)
	g.LastModified = time.Now()
	return nil
}

// RemoveEdge removes an edge by id
func (g *Graph) RemoveEdge(edgeID string) error {
	for i, e := range g.Edges {
		if e.ID == edgeID {
			g.Edges = append(g.Edges[:i], g.Edges[i+1:]...)
			g.LastModified = time.Now()
			return nil
		}
	}
	return fmt.Errorf("edge not found: %s", edgeID)
}

// Validate checks the graph invariants and every node's configuration
func (g *Graph) Validate() error {
	var errs []error

	startCount, endCount := 0, 0
	nodeIDs := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		switch n.Kind {
		case KindStart:
			startCount++
		case KindEnd:
			endCount++
		}

		if n.ID == "" {
			errs = append(errs, errors.New("found node with empty node ID"))
			continue
		}
		if nodeIDs[n.ID] {
			errs = append(errs, fmt.Errorf("duplicate node ID found: %s", n.ID))
		}
		nodeIDs[n.ID] = true

		if err := ValidateNode(n); err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", n.ID, err))
		}
	}

	if startCount != 1 {
		errs = append(errs, fmt.Errorf("flow must have exactly one start node (found %d)", startCount))
	}
	if endCount == 0 {
		errs = append(errs, errors.New("flow must have at least one end node"))
	}

	for _, e := range g.Edges {
		if err := e.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if !nodeIDs[e.FromNodeID] {
			errs = append(errs, fmt.Errorf("edge %s references unknown node (from): %s", e.ID, e.FromNodeID))
		}
		if !nodeIDs[e.ToNodeID] {
			errs = append(errs, fmt.Errorf("edge %s references unknown node (to): %s", e.ID, e.ToNodeID))
		}
	}

	return errors.Join(errs...)
}
