// Package graph implements the in-memory dataflow graph of spec.md
// §4.3: nodes and edges as plain data, type-checked wiring, and cycle
// detection, guarded by a single writer lock.
package graph

import (
	"fmt"
	"sync"

	uuid "github.com/satori/go.uuid"

	"github.com/wireflow/wireflow/internal/core"
	"github.com/wireflow/wireflow/internal/registry"
)

// Node is one instantiated component in the graph.
type Node struct {
	ID        string
	Component string
	Category  core.Category
	Descr     registry.Descriptor
	Instance  registry.Node
	InitArgs  map[string]any
	Status    core.Status
}

// Edge connects one node's output slot to another node's input slot.
type Edge struct {
	ID          string
	FromNode    string
	FromSlot    string
	ToNode      string
	ToSlot      string
	ElementType string
	// Capacity overrides the destination subscriber's buffer capacity.
	// 0 means "use the channel's default capacity".
	Capacity int
}

// Graph is the writer-lock-guarded collection of nodes and edges. The
// zero value is not usable; use New.
type Graph struct {
	reg *registry.Registry

	mu    sync.Mutex // single writer lock, spec.md §4.3
	nodes map[string]*Node
	edges map[string]*Edge
	// inputBound tracks which (node,slot) input pairs already have an
	// incoming edge, since spec.md disallows two edges into the same
	// input slot.
	inputBound map[string]string // "nodeID.slot" -> edgeID
}

// New returns an empty Graph backed by reg for component lookups.
func New(reg *registry.Registry) *Graph {
	return &Graph{
		reg:        reg,
		nodes:      make(map[string]*Node),
		edges:      make(map[string]*Edge),
		inputBound: make(map[string]string),
	}
}

// AddNode instantiates component with initArgs and adds it to the
// graph under id. An empty id generates a fresh UUID, matching
// spec.md §4.3's "server assigns an id if the caller omits one".
func (g *Graph) AddNode(id, component string, initArgs map[string]any) (*Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id == "" {
		id = uuid.NewV4().String()
	}
	if _, exists := g.nodes[id]; exists {
		return nil, fmt.Errorf("node %q: %w", id, core.ErrDuplicateID)
	}

	instance, desc, err := g.reg.Instantiate(component, initArgs)
	if err != nil {
		return nil, err
	}

	n := &Node{
		ID:        id,
		Component: component,
		Category:  desc.Category,
		Descr:     desc,
		Instance:  instance,
		InitArgs:  initArgs,
		Status:    core.StatusStartup,
	}
	g.nodes[id] = n
	return n, nil
}

// RemoveNode deletes a node and every edge touching it. Fails with
// core.ErrNodeNotFound if id is unknown.
func (g *Graph) RemoveNode(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("node %q: %w", id, core.ErrNodeNotFound)
	}
	for eid, e := range g.edges {
		if e.FromNode == id || e.ToNode == id {
			delete(g.edges, eid)
			delete(g.inputBound, e.ToNode+"."+e.ToSlot)
		}
	}
	delete(g.nodes, id)
	return nil
}

// Node returns the node with id, or core.ErrNodeNotFound.
func (g *Graph) Node(id string) (*Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %q: %w", id, core.ErrNodeNotFound)
	}
	return n, nil
}

// ListNodes returns a stable snapshot of all nodes.
func (g *Graph) ListNodes() []*Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// ListEdges returns a stable snapshot of all edges.
func (g *Graph) ListEdges() []*Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	return out
}

// AddEdge wires fromNode's output fromSlot to toNode's input toSlot,
// after checking: both nodes exist, both slots exist on their
// respective node kind, the slots' element types match exactly, the
// input slot has no existing edge, and the new edge would not create
// a cycle.
func (g *Graph) AddEdge(id, fromNode, fromSlot, toNode, toSlot string, capacity ...int) (*Edge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	from, ok := g.nodes[fromNode]
	if !ok {
		return nil, fmt.Errorf("node %q: %w", fromNode, core.ErrNodeNotFound)
	}
	to, ok := g.nodes[toNode]
	if !ok {
		return nil, fmt.Errorf("node %q: %w", toNode, core.ErrNodeNotFound)
	}

	fromType, err := slotType(from.Descr.Outputs, fromSlot)
	if err != nil {
		return nil, err
	}
	toType, err := slotType(to.Descr.Inputs, toSlot)
	if err != nil {
		return nil, err
	}
	if fromType != toType {
		return nil, fmt.Errorf("%s.%s (%s) -> %s.%s (%s): %w",
			fromNode, fromSlot, fromType, toNode, toSlot, toType, core.ErrTypeMismatch)
	}

	inputKey := toNode + "." + toSlot
	if _, bound := g.inputBound[inputKey]; bound {
		return nil, fmt.Errorf("input %s: %w", inputKey, core.ErrDuplicateEdge)
	}

	if id == "" {
		// spec.md §4.3: edge id = src_node:src_slot->dst_node:dst_slot.
		id = fmt.Sprintf("%s:%s->%s:%s", fromNode, fromSlot, toNode, toSlot)
	}
	if _, exists := g.edges[id]; exists {
		return nil, fmt.Errorf("edge %q: %w", id, core.ErrDuplicateID)
	}

	cap := 0
	if len(capacity) > 0 {
		cap = capacity[0]
	}
	e := &Edge{ID: id, FromNode: fromNode, FromSlot: fromSlot, ToNode: toNode, ToSlot: toSlot, ElementType: fromType, Capacity: cap}

	if wouldCycle(g.edges, e) {
		return nil, core.ErrCycleDetected
	}

	g.edges[id] = e
	g.inputBound[inputKey] = id
	return e, nil
}

// FindEdge returns the edge matching the four-tuple (fromNode, fromSlot,
// toNode, toSlot), or core.ErrEdgeNotFound. Edge ids are a server-side
// implementation detail never handed back on POST /graph/edges, so
// DELETE /graph/edges addresses edges by their defining tuple instead.
func (g *Graph) FindEdge(fromNode, fromSlot, toNode, toSlot string) (*Edge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.edges {
		if e.FromNode == fromNode && e.FromSlot == fromSlot && e.ToNode == toNode && e.ToSlot == toSlot {
			return e, nil
		}
	}
	return nil, fmt.Errorf("edge %s.%s->%s.%s: %w", fromNode, fromSlot, toNode, toSlot, core.ErrEdgeNotFound)
}

// RemoveEdge deletes an edge by id.
func (g *Graph) RemoveEdge(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.edges[id]
	if !ok {
		return fmt.Errorf("edge %q: %w", id, core.ErrEdgeNotFound)
	}
	delete(g.edges, id)
	delete(g.inputBound, e.ToNode+"."+e.ToSlot)
	return nil
}

func slotType(slots []registry.Slot, name string) (string, error) {
	for _, s := range slots {
		if s.Name == name {
			return s.Type, nil
		}
	}
	return "", fmt.Errorf("slot %q: %w", name, core.ErrUnknownSlot)
}

// wouldCycle reports whether adding candidate to existing would
// introduce a cycle, via DFS from candidate.ToNode looking for a path
// back to candidate.FromNode.
func wouldCycle(existing map[string]*Edge, candidate *Edge) bool {
	adj := make(map[string][]string)
	for _, e := range existing {
		adj[e.FromNode] = append(adj[e.FromNode], e.ToNode)
	}
	adj[candidate.FromNode] = append(adj[candidate.FromNode], candidate.ToNode)

	visited := make(map[string]bool)
	var visit func(node string) bool
	visit = func(node string) bool {
		if node == candidate.FromNode && visited[node] {
			return true
		}
		if visited[node] {
			return false
		}
		visited[node] = true
		for _, next := range adj[node] {
			if next == candidate.FromNode {
				return true
			}
			if visit(next) {
				return true
			}
		}
		return false
	}
	return visit(candidate.ToNode)
}
