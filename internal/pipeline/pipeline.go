// Package pipeline models the AI pipeline canvas as a directed acyclic graph.
package pipeline

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
)

// StageType is the kind of pipeline stage a node represents.
type StageType string

// Supported stage types.
const (
	DataSource    StageType = "data_source"
	Ingestion     StageType = "ingestion"
	Preprocessing StageType = "preprocessing"
	FeatureStore  StageType = "feature_store"
	Training      StageType = "training"
	Evaluation    StageType = "evaluation"
	Deployment    StageType = "deployment"
	Inference     StageType = "inference"
	Monitoring    StageType = "monitoring"
)

var stageLabels = map[StageType]string{
	DataSource:    "Data Source",
	Ingestion:     "Ingestion",
	Preprocessing: "Preprocessing",
	FeatureStore:  "Feature Store",
	Training:      "Model Training",
	Evaluation:    "Evaluation",
	Deployment:    "Deployment",
	Inference:     "Inference",
	Monitoring:    "Monitoring",
}

// Layout constants for FromTemplate.
const (
	originX = 40
	originY = 120
	stepX   = 160
)

var (
	// ErrNodeNotFound indicates an unknown node.
	ErrNodeNotFound = fmt.Errorf("pipeline: node %w", httpx.ErrNotFound)
	// ErrEdgeNotFound indicates an unknown edge.
	ErrEdgeNotFound = fmt.Errorf("pipeline: edge %w", httpx.ErrNotFound)
	// ErrUnknownStage indicates an unsupported stage type.
	ErrUnknownStage = fmt.Errorf("pipeline: unknown stage type: %w", httpx.ErrValidation)
	// ErrSelfLoop rejects an edge from a node to itself.
	ErrSelfLoop = fmt.Errorf("pipeline: node cannot connect to itself: %w", httpx.ErrValidation)
	// ErrDuplicateEdge rejects a second edge between the same nodes.
	ErrDuplicateEdge = fmt.Errorf("pipeline: edge already exists: %w", httpx.ErrDuplicate)
	// ErrCycle rejects an edge that would close a loop.
	ErrCycle = fmt.Errorf("pipeline: edge would create a cycle: %w", httpx.ErrConflict)
)

// ValidStage reports whether t is a supported stage type.
func ValidStage(t StageType) bool {
	_, ok := stageLabels[t]
	return ok
}

// Node is a stage on the canvas.
type Node struct {
	ID     string            `json:"id"`
	Type   StageType         `json:"type"`
	Label  string            `json:"label"`
	Config map[string]string `json:"config,omitempty"`
	X      float64           `json:"x"`
	Y      float64           `json:"y"`
}

// Edge connects Source to Target.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// NodeInput creates a node.
type NodeInput struct {
	Type   StageType         `json:"type" validate:"required"`
	Label  string            `json:"label" validate:"max=64"`
	Config map[string]string `json:"config"`
	X      float64           `json:"x"`
	Y      float64           `json:"y"`
}

// NodePatch edits a node. Nil fields are left unchanged.
type NodePatch struct {
	Label  *string           `json:"label,omitempty" validate:"omitempty,max=64"`
	Config map[string]string `json:"config,omitempty"`
	X      *float64          `json:"x,omitempty"`
	Y      *float64          `json:"y,omitempty"`
}

// EdgeInput creates an edge.
type EdgeInput struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// Pipeline is the whole graph. Nodes keep insertion order.
type Pipeline struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
	Seq   int    `json:"seq"`
}

// New returns an empty pipeline.
func New() *Pipeline {
	return &Pipeline{Nodes: []Node{}, Edges: []Edge{}}
}

// FromTemplate chains the given stage types left to right.
func FromTemplate(stages []string) (*Pipeline, error) {
	p := New()
	var prev string
	for i, s := range stages {
		n, err := p.AddNode(NodeInput{Type: StageType(s), X: originX + float64(i*stepX), Y: originY})
		if err != nil {
			return nil, err
		}
		if prev != "" {
			if _, err := p.Connect(prev, n.ID); err != nil {
				return nil, err
			}
		}
		prev = n.ID
	}
	return p, nil
}

// AddNode appends a node. An empty label takes the stage's default.
func (p *Pipeline) AddNode(in NodeInput) (Node, error) {
	if !ValidStage(in.Type) {
		return Node{}, fmt.Errorf("%w: %q", ErrUnknownStage, in.Type)
	}
	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = stageLabels[in.Type]
	}
	n := Node{
		ID:     p.nextID("n"),
		Type:   in.Type,
		Label:  label,
		Config: maps.Clone(in.Config),
		X:      in.X,
		Y:      in.Y,
	}
	p.Nodes = append(p.Nodes, n)
	return n, nil
}

// UpdateNode applies patch.
func (p *Pipeline) UpdateNode(id string, patch NodePatch) (Node, error) {
	i := p.nodeIndex(id)
	if i < 0 {
		return Node{}, ErrNodeNotFound
	}
	n := &p.Nodes[i]
	if patch.Label != nil {
		if label := strings.TrimSpace(*patch.Label); label != "" {
			n.Label = label
		}
	}
	if patch.Config != nil {
		n.Config = maps.Clone(patch.Config)
	}
	if patch.X != nil {
		n.X = *patch.X
	}
	if patch.Y != nil {
		n.Y = *patch.Y
	}
	return *n, nil
}

// RemoveNode deletes the node and its incident edges.
func (p *Pipeline) RemoveNode(id string) error {
	i := p.nodeIndex(id)
	if i < 0 {
		return ErrNodeNotFound
	}
	p.Nodes = slices.Delete(p.Nodes, i, i+1)
	p.Edges = slices.DeleteFunc(p.Edges, func(e Edge) bool { return e.Source == id || e.Target == id })
	return nil
}

// Connect adds an edge after checking endpoints, duplicates and cycles.
func (p *Pipeline) Connect(source, target string) (Edge, error) {
	if p.nodeIndex(source) < 0 || p.nodeIndex(target) < 0 {
		return Edge{}, ErrNodeNotFound
	}
	if source == target {
		return Edge{}, ErrSelfLoop
	}
	for _, e := range p.Edges {
		if e.Source == source && e.Target == target {
			return Edge{}, ErrDuplicateEdge
		}
	}
	if p.reaches(target, source) {
		return Edge{}, ErrCycle
	}
	e := Edge{ID: p.nextID("e"), Source: source, Target: target}
	p.Edges = append(p.Edges, e)
	return e, nil
}

// Disconnect removes an edge.
func (p *Pipeline) Disconnect(edgeID string) error {
	i := slices.IndexFunc(p.Edges, func(e Edge) bool { return e.ID == edgeID })
	if i < 0 {
		return ErrEdgeNotFound
	}
	p.Edges = slices.Delete(p.Edges, i, i+1)
	return nil
}

// Issue is a validation finding.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	NodeID  string `json:"nodeId,omitempty"`
}

// Validate checks the pipeline is runnable. An empty slice means valid.
func (p *Pipeline) Validate() []Issue {
	issues := []Issue{}
	var sources []string
	hasOutput := false
	for _, n := range p.Nodes {
		switch n.Type {
		case DataSource:
			sources = append(sources, n.ID)
		case Deployment, Inference:
			hasOutput = true
		}
	}
	if len(sources) == 0 {
		issues = append(issues, Issue{Code: "missing_source", Message: "pipeline needs at least one data source"})
	}
	if !hasOutput {
		issues = append(issues, Issue{Code: "missing_output", Message: "pipeline needs a deployment or inference stage"})
	}
	if _, err := p.Order(); err != nil {
		issues = append(issues, Issue{Code: "cycle", Message: "pipeline contains a cycle"})
	}
	reached := p.reachableFrom(sources)
	for _, n := range p.Nodes {
		if !reached[n.ID] {
			issues = append(issues, Issue{Code: "unreachable", Message: n.Label + " is not fed by any data source", NodeID: n.ID})
		}
	}
	return issues
}

// Order returns nodes in topological order. Ties keep insertion order.
func (p *Pipeline) Order() ([]Node, error) {
	indegree := make(map[string]int, len(p.Nodes))
	out := make(map[string][]string, len(p.Nodes))
	for _, e := range p.Edges {
		indegree[e.Target]++
		out[e.Source] = append(out[e.Source], e.Target)
	}
	position := make(map[string]int, len(p.Nodes))
	var ready []int
	for i, n := range p.Nodes {
		position[n.ID] = i
		if indegree[n.ID] == 0 {
			ready = append(ready, i)
		}
	}
	order := make([]Node, 0, len(p.Nodes))
	for len(ready) > 0 {
		slices.Sort(ready)
		i := ready[0]
		ready = ready[1:]
		n := p.Nodes[i]
		order = append(order, n)
		for _, next := range out[n.ID] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, position[next])
			}
		}
	}
	if len(order) != len(p.Nodes) {
		return nil, ErrCycle
	}
	return order, nil
}

// Labels returns the ordered stage labels, or insertion order when cyclic.
func (p *Pipeline) Labels() []string {
	nodes, err := p.Order()
	if err != nil {
		nodes = p.Nodes
	}
	labels := make([]string, len(nodes))
	for i, n := range nodes {
		labels[i] = n.Label
	}
	return labels
}

func (p *Pipeline) reaches(from, to string) bool {
	return p.reachableFrom([]string{from})[to]
}

func (p *Pipeline) reachableFrom(starts []string) map[string]bool {
	seen := make(map[string]bool, len(p.Nodes))
	queue := slices.Clone(starts)
	for _, s := range starts {
		seen[s] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range p.Edges {
			if e.Source == cur && !seen[e.Target] {
				seen[e.Target] = true
				queue = append(queue, e.Target)
			}
		}
	}
	return seen
}

func (p *Pipeline) nodeIndex(id string) int {
	return slices.IndexFunc(p.Nodes, func(n Node) bool { return n.ID == id })
}

func (p *Pipeline) nextID(prefix string) string {
	p.Seq++
	return prefix + strconv.Itoa(p.Seq)
}
