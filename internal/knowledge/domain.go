// Package knowledge holds the document library and the knowledge graph that
// links use cases, technologies and collateral.
package knowledge

import (
	"time"

	"github.com/solution-studio/ai-studio/internal/shared"
)

// Document is library metadata. File contents are not stored.
type Document struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Category         string            `json:"category"`
	Type             string            `json:"type"`
	Size             int64             `json:"size"`
	UploadedBy       string            `json:"uploadedBy"`
	UploadedAt       time.Time         `json:"uploadedAt"`
	Description      string            `json:"description"`
	Tags             []string          `json:"tags"`
	Version          int               `json:"version"`
	PreviousVersions []DocumentVersion `json:"previousVersions"`
}

// DocumentVersion is a superseded revision, newest first in PreviousVersions.
type DocumentVersion struct {
	Version    int       `json:"version"`
	Size       int64     `json:"size"`
	UploadedBy string    `json:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt"`
	Note       string    `json:"note,omitempty"`
}

// CategoryCount is one row of Categories.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// DocumentFilters narrows ListDocuments.
type DocumentFilters struct {
	shared.ListFilters
	Category string
	Type     string
	Tag      string
}

// Direction selects edges relative to a node.
type Direction string

// Edge directions.
const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionBoth Direction = "both"
)

// Node is a knowledge graph vertex.
type Node struct {
	ID         string            `json:"id" yaml:"id"`
	Label      string            `json:"label" yaml:"label"`
	Type       string            `json:"type" yaml:"type"`
	Properties map[string]string `json:"properties,omitempty" yaml:"properties"`
}

// Edge is a typed, directed relation between two nodes.
type Edge struct {
	ID     string  `json:"id"`
	Source string  `json:"source" yaml:"source"`
	Target string  `json:"target" yaml:"target"`
	Type   string  `json:"type" yaml:"type"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// NodeDetail is a node with its incident edges and adjacent nodes.
type NodeDetail struct {
	Node
	Edges     []Edge `json:"edges"`
	Neighbors []Node `json:"neighbors"`
}

// Subgraph is a bounded neighbourhood of the graph.
type Subgraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Path is the result of ShortestPath. Nodes has one more entry than Edges.
type Path struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
	Hops  int    `json:"hops"`
}

// GraphStats counts nodes and edges by type.
type GraphStats struct {
	Nodes       int            `json:"nodes"`
	Edges       int            `json:"edges"`
	NodesByType map[string]int `json:"nodesByType"`
	EdgesByType map[string]int `json:"edgesByType"`
}

// NodeFilters narrows ListNodes.
type NodeFilters struct {
	shared.ListFilters
	Type string
}

// EdgeFilters narrows ListEdges.
type EdgeFilters struct {
	shared.ListFilters
	Type string
	Node string
}
