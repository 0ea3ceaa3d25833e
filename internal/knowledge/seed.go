package knowledge

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

type seedFile struct {
	Documents []struct {
		ID               string    `yaml:"id"`
		Name             string    `yaml:"name"`
		Category         string    `yaml:"category"`
		Type             string    `yaml:"type"`
		Size             int64     `yaml:"size"`
		UploadedBy       string    `yaml:"uploadedBy"`
		UploadedAt       time.Time `yaml:"uploadedAt"`
		Description      string    `yaml:"description"`
		Tags             []string  `yaml:"tags"`
		Version          int       `yaml:"version"`
		PreviousVersions []struct {
			Version    int       `yaml:"version"`
			Size       int64     `yaml:"size"`
			UploadedBy string    `yaml:"uploadedBy"`
			UploadedAt time.Time `yaml:"uploadedAt"`
			Note       string    `yaml:"note"`
		} `yaml:"previousVersions"`
	} `yaml:"documents"`
	Graph struct {
		Nodes []Node `yaml:"nodes"`
		Edges []Edge `yaml:"edges"`
	} `yaml:"graph"`
}

// LoadSeed returns a library and graph holding the built-in knowledge base.
func LoadSeed() (*Library, *Graph, error) {
	var data seedFile
	if err := yaml.Unmarshal(seedYAML, &data); err != nil {
		return nil, nil, fmt.Errorf("knowledge: parse seed: %w", err)
	}
	lib := NewLibrary()
	for _, d := range data.Documents {
		doc := Document{
			ID:          d.ID,
			Name:        d.Name,
			Category:    d.Category,
			Type:        d.Type,
			Size:        d.Size,
			UploadedBy:  d.UploadedBy,
			UploadedAt:  d.UploadedAt,
			Description: d.Description,
			Tags:        d.Tags,
			Version:     d.Version,
		}
		for _, v := range d.PreviousVersions {
			doc.PreviousVersions = append(doc.PreviousVersions, DocumentVersion(v))
		}
		if err := lib.seedDocument(doc); err != nil {
			return nil, nil, err
		}
	}

	g := NewGraph()
	for _, n := range data.Graph.Nodes {
		if g.nodeIndex(n.ID) >= 0 {
			return nil, nil, fmt.Errorf("knowledge: duplicate seed node %s", n.ID)
		}
		g.nodes = append(g.nodes, n)
	}
	for _, e := range data.Graph.Edges {
		if e.Weight == 0 {
			e.Weight = 1
		}
		if _, err := g.addEdgeLocked(e); err != nil {
			return nil, nil, fmt.Errorf("knowledge: seed edge %s->%s: %w", e.Source, e.Target, err)
		}
	}
	return lib, g, nil
}
