package knowledge

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/shared"
)

const (
	defaultPathDepth     = 5
	maxPathDepth         = 10
	defaultSubgraphDepth = 1
	maxSubgraphDepth     = 5
)

// ErrSelfLoop rejects an edge from a node to itself.
var ErrSelfLoop = fmt.Errorf("knowledge: edge cannot point at its own source: %w", httpx.ErrValidation)

// Graph is an in-memory directed multigraph. Nodes and edges keep insertion
// order so listings and traversals are deterministic.
type Graph struct {
	mu    sync.RWMutex
	nodes []Node
	edges []Edge
	seq   int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

var nodeSortKeys = shared.SortKeys[Node]{
	"label": shared.ByText(func(n Node) string { return n.Label }),
	"type":  shared.ByText(func(n Node) string { return n.Type }),
	"id":    shared.ByText(func(n Node) string { return n.ID }),
}

// ListNodes filters by type and searches the label.
func (g *Graph) ListNodes(_ context.Context, f NodeFilters) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if f.Type != "" && !strings.EqualFold(n.Type, f.Type) {
			continue
		}
		if shared.MatchesSearch(f.Search, n.Label) {
			out = append(out, cloneNode(n))
		}
	}
	if f.SortBy != "" {
		shared.SortItems(out, nodeSortKeys, f.SortBy, "label", f.Descending())
	}
	return out
}

// GetNode returns a node with its incident edges and neighbours.
func (g *Graph) GetNode(_ context.Context, id string) (NodeDetail, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	i := g.nodeIndex(id)
	if i < 0 {
		return NodeDetail{}, ErrNodeNotFound
	}
	edges := []Edge{}
	for _, e := range g.edges {
		if e.Source == id || e.Target == id {
			edges = append(edges, e)
		}
	}
	return NodeDetail{Node: cloneNode(g.nodes[i]), Edges: edges, Neighbors: g.neighborsLocked(id, DirectionBoth)}, nil
}

// AddNode inserts a node. An empty ID is generated.
func (g *Graph) AddNode(_ context.Context, req NodeRequest) (Node, error) {
	if err := httpx.Validate(req); err != nil {
		return Node{}, err
	}
	n := Node{
		ID:         strings.TrimSpace(req.ID),
		Label:      strings.TrimSpace(req.Label),
		Type:       strings.ToLower(strings.TrimSpace(req.Type)),
		Properties: maps.Clone(req.Properties),
	}
	if n.ID == "" {
		n.ID = n.Type + "-" + uuid.NewString()[:8]
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.nodeIndex(n.ID) >= 0 {
		return Node{}, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	g.nodes = append(g.nodes, n)
	return cloneNode(n), nil
}

// UpdateNode replaces label, type and properties. The ID is immutable.
func (g *Graph) UpdateNode(_ context.Context, id string, req NodeRequest) (Node, error) {
	if err := httpx.Validate(req); err != nil {
		return Node{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.nodeIndex(id)
	if i < 0 {
		return Node{}, ErrNodeNotFound
	}
	n := &g.nodes[i]
	n.Label = strings.TrimSpace(req.Label)
	n.Type = strings.ToLower(strings.TrimSpace(req.Type))
	n.Properties = maps.Clone(req.Properties)
	return cloneNode(*n), nil
}

// RemoveNode deletes a node and every edge touching it.
func (g *Graph) RemoveNode(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.nodeIndex(id)
	if i < 0 {
		return ErrNodeNotFound
	}
	g.nodes = slices.Delete(g.nodes, i, i+1)
	g.edges = slices.DeleteFunc(g.edges, func(e Edge) bool { return e.Source == id || e.Target == id })
	return nil
}

var edgeSortKeys = shared.SortKeys[Edge]{
	"type":   shared.ByText(func(e Edge) string { return e.Type }),
	"source": shared.ByText(func(e Edge) string { return e.Source }),
	"target": shared.ByText(func(e Edge) string { return e.Target }),
	"weight": shared.ByNumber(func(e Edge) float64 { return e.Weight }),
}

// ListEdges filters by type and by an incident node.
func (g *Graph) ListEdges(_ context.Context, f EdgeFilters) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if f.Type != "" && !strings.EqualFold(e.Type, f.Type) {
			continue
		}
		if f.Node != "" && e.Source != f.Node && e.Target != f.Node {
			continue
		}
		if shared.MatchesSearch(f.Search, e.Type, e.Source, e.Target) {
			out = append(out, e)
		}
	}
	if f.SortBy != "" {
		shared.SortItems(out, edgeSortKeys, f.SortBy, "type", f.Descending())
	}
	return out
}

// AddEdge links two existing nodes. A weight of zero defaults to 1.
func (g *Graph) AddEdge(_ context.Context, req EdgeRequest) (Edge, error) {
	if err := httpx.Validate(req); err != nil {
		return Edge{}, err
	}
	e := Edge{
		Source: strings.TrimSpace(req.Source),
		Target: strings.TrimSpace(req.Target),
		Type:   strings.ToLower(strings.TrimSpace(req.Type)),
		Weight: req.Weight,
	}
	if e.Weight == 0 {
		e.Weight = 1
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addEdgeLocked(e)
}

func (g *Graph) addEdgeLocked(e Edge) (Edge, error) {
	if g.nodeIndex(e.Source) < 0 {
		return Edge{}, fmt.Errorf("%w: %s", ErrNodeNotFound, e.Source)
	}
	if g.nodeIndex(e.Target) < 0 {
		return Edge{}, fmt.Errorf("%w: %s", ErrNodeNotFound, e.Target)
	}
	if e.Source == e.Target {
		return Edge{}, ErrSelfLoop
	}
	for _, existing := range g.edges {
		if existing.Source == e.Source && existing.Target == e.Target && existing.Type == e.Type {
			return Edge{}, ErrDuplicateEdge
		}
	}
	g.seq++
	e.ID = "edge-" + strconv.Itoa(g.seq)
	g.edges = append(g.edges, e)
	return e, nil
}

// RemoveEdge deletes one edge.
func (g *Graph) RemoveEdge(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := slices.IndexFunc(g.edges, func(e Edge) bool { return e.ID == id })
	if i < 0 {
		return ErrEdgeNotFound
	}
	g.edges = slices.Delete(g.edges, i, i+1)
	return nil
}

// ParseDirection maps a query value onto a Direction. Empty means both.
func ParseDirection(v string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(v))); d {
	case "":
		return DirectionBoth, nil
	case DirectionIn, DirectionOut, DirectionBoth:
		return d, nil
	default:
		return "", ErrInvalidDirection
	}
}

// Neighbors returns the distinct nodes adjacent to id in edge order.
func (g *Graph) Neighbors(_ context.Context, id string, dir Direction) ([]Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.nodeIndex(id) < 0 {
		return nil, ErrNodeNotFound
	}
	return g.neighborsLocked(id, dir), nil
}

// ShortestPath finds the fewest-hop path from one node to another with a
// breadth-first search that follows edges in dir. maxDepth <= 0 uses the
// default limit.
func (g *Graph) ShortestPath(_ context.Context, from, to string, maxDepth int, dir Direction) (Path, error) {
	if maxDepth <= 0 {
		maxDepth = defaultPathDepth
	}
	maxDepth = min(maxDepth, maxPathDepth)

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, id := range []string{from, to} {
		if g.nodeIndex(id) < 0 {
			return Path{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
	}

	type step struct {
		node  string
		depth int
	}
	type via struct {
		edge Edge
		prev string
	}
	// cameFrom records how each visited node was reached; the start maps to nil.
	cameFrom := map[string]*via{from: nil}
	queue := []step{{node: from}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.node == to {
			path := Path{Hops: cur.depth, Nodes: make([]Node, cur.depth+1), Edges: make([]Edge, cur.depth)}
			node := to
			for i := cur.depth; i >= 0; i-- {
				path.Nodes[i] = cloneNode(g.nodes[g.nodeIndex(node)])
				if v := cameFrom[node]; v != nil {
					path.Edges[i-1] = v.edge
					node = v.prev
				}
			}
			return path, nil
		}
		if cur.depth >= maxDepth {
			continue
		}
		for _, e := range g.edges {
			next, ok := follow(e, cur.node, dir)
			if !ok {
				continue
			}
			if _, seen := cameFrom[next]; seen {
				continue
			}
			cameFrom[next] = &via{edge: e, prev: cur.node}
			queue = append(queue, step{node: next, depth: cur.depth + 1})
		}
	}
	return Path{}, fmt.Errorf("%w from %s to %s within %d hops", ErrNoPath, from, to, maxDepth)
}

// Subgraph returns every node within depth hops of center, ignoring edge
// direction, and the edges among them.
func (g *Graph) Subgraph(_ context.Context, center string, depth int) (Subgraph, error) {
	if depth <= 0 {
		depth = defaultSubgraphDepth
	}
	depth = min(depth, maxSubgraphDepth)

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.nodeIndex(center) < 0 {
		return Subgraph{}, ErrNodeNotFound
	}
	included := map[string]bool{center: true}
	order := []string{center}
	frontier := []string{center}
	for range depth {
		var next []string
		for _, id := range frontier {
			for _, n := range g.neighborsLocked(id, DirectionBoth) {
				if !included[n.ID] {
					included[n.ID] = true
					order = append(order, n.ID)
					next = append(next, n.ID)
				}
			}
		}
		frontier = next
	}
	sub := Subgraph{Nodes: make([]Node, 0, len(order)), Edges: []Edge{}}
	for _, id := range order {
		sub.Nodes = append(sub.Nodes, cloneNode(g.nodes[g.nodeIndex(id)]))
	}
	for _, e := range g.edges {
		if included[e.Source] && included[e.Target] {
			sub.Edges = append(sub.Edges, e)
		}
	}
	return sub, nil
}

// Stats counts nodes and edges by type.
func (g *Graph) Stats(_ context.Context) GraphStats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := GraphStats{
		Nodes:       len(g.nodes),
		Edges:       len(g.edges),
		NodesByType: map[string]int{},
		EdgesByType: map[string]int{},
	}
	for _, n := range g.nodes {
		s.NodesByType[n.Type]++
	}
	for _, e := range g.edges {
		s.EdgesByType[e.Type]++
	}
	return s
}

// neighborsLocked expects g.mu to be held.
func (g *Graph) neighborsLocked(id string, dir Direction) []Node {
	seen := map[string]bool{}
	out := []Node{}
	for _, e := range g.edges {
		next, ok := follow(e, id, dir)
		if !ok || seen[next] {
			continue
		}
		seen[next] = true
		if i := g.nodeIndex(next); i >= 0 {
			out = append(out, cloneNode(g.nodes[i]))
		}
	}
	return out
}

// follow returns the far end of e when it can be traversed from id in dir.
func follow(e Edge, id string, dir Direction) (string, bool) {
	if e.Source == id && dir != DirectionIn {
		return e.Target, true
	}
	if e.Target == id && dir != DirectionOut {
		return e.Source, true
	}
	return "", false
}

func (g *Graph) nodeIndex(id string) int {
	return slices.IndexFunc(g.nodes, func(n Node) bool { return n.ID == id })
}

func cloneNode(n Node) Node {
	n.Properties = maps.Clone(n.Properties)
	return n
}
