package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/shared"
)

func seededGraph(t *testing.T) *Graph {
	t.Helper()
	_, g, err := LoadSeed()
	require.NoError(t, err)
	return g
}

func nodeIDs(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestShortestPathFollowsDirection(t *testing.T) {
	g := seededGraph(t)
	ctx := context.Background()

	p, err := g.ShortestPath(ctx, "uc-clinical-notes", "sku-gpu-l40s", 0, DirectionOut)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Hops)
	assert.Equal(t, []string{"uc-clinical-notes", "tech-llm", "tech-inference", "sku-gpu-l40s"}, nodeIDs(p.Nodes))
	require.Len(t, p.Edges, 3)
	assert.Equal(t, "implemented_by", p.Edges[2].Type)

	_, err = g.ShortestPath(ctx, "uc-clinical-notes", "sku-gpu-l40s", 2, DirectionOut)
	assert.ErrorIs(t, err, ErrNoPath)

	p, err = g.ShortestPath(ctx, "sku-gpu-l40s", "uc-fraud-detection", 0, DirectionIn)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Hops)

	_, err = g.ShortestPath(ctx, "ind-retail", "tech-gpu-training", 0, DirectionOut)
	assert.ErrorIs(t, err, ErrNoPath)
	p, err = g.ShortestPath(ctx, "ind-retail", "tech-gpu-training", 0, DirectionBoth)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Hops)

	p, err = g.ShortestPath(ctx, "tech-llm", "tech-llm", 0, DirectionOut)
	require.NoError(t, err)
	assert.Zero(t, p.Hops)
	assert.Len(t, p.Nodes, 1)

	_, err = g.ShortestPath(ctx, "tech-llm", "ghost", 0, DirectionOut)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestSubgraphAndStats(t *testing.T) {
	g := seededGraph(t)
	ctx := context.Background()

	sub, err := g.Subgraph(ctx, "tech-llm", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"tech-llm", "uc-clinical-notes", "tech-inference", "sku-llm-suite", "doc-llm-sizing"}, nodeIDs(sub.Nodes))
	assert.Len(t, sub.Edges, 4)

	stats := g.Stats(ctx)
	assert.Equal(t, 18, stats.Nodes)
	assert.Equal(t, 16, stats.Edges)
	assert.Equal(t, 4, stats.NodesByType["use_case"])
	assert.Equal(t, 3, stats.EdgesByType["implemented_by"])
}

func TestEdgeRulesAndCascade(t *testing.T) {
	g := seededGraph(t)
	ctx := context.Background()

	_, err := g.AddEdge(ctx, EdgeRequest{Source: "uc-fraud-detection", Target: "ind-financial", Type: "serves"})
	assert.ErrorIs(t, err, ErrDuplicateEdge)
	_, err = g.AddEdge(ctx, EdgeRequest{Source: "uc-fraud-detection", Target: "ghost", Type: "serves"})
	assert.ErrorIs(t, err, ErrNodeNotFound)
	_, err = g.AddEdge(ctx, EdgeRequest{Source: "tech-llm", Target: "tech-llm", Type: "uses"})
	assert.ErrorIs(t, err, ErrSelfLoop)
	_, err = g.AddEdge(ctx, EdgeRequest{Source: "tech-llm", Type: "uses"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	e, err := g.AddEdge(ctx, EdgeRequest{Source: "uc-fraud-detection", Target: "ind-financial", Type: "featured_in"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, e.Weight)
	require.NoError(t, g.RemoveEdge(ctx, e.ID))
	assert.ErrorIs(t, g.RemoveEdge(ctx, e.ID), ErrEdgeNotFound)

	require.NoError(t, g.RemoveNode(ctx, "tech-llm"))
	assert.Len(t, g.ListEdges(ctx, EdgeFilters{}), 12)
	assert.Empty(t, g.ListEdges(ctx, EdgeFilters{Node: "tech-llm"}))
	_, err = g.GetNode(ctx, "tech-llm")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestNodeLifecycle(t *testing.T) {
	g := seededGraph(t)
	ctx := context.Background()

	n, err := g.AddNode(ctx, NodeRequest{ID: "tech-vector-db", Label: "Vector Database", Type: "Technology"})
	require.NoError(t, err)
	assert.Equal(t, "technology", n.Type)
	_, err = g.AddNode(ctx, NodeRequest{ID: "tech-vector-db", Label: "Again", Type: "technology"})
	assert.ErrorIs(t, err, ErrDuplicateNode)

	generated, err := g.AddNode(ctx, NodeRequest{Label: "RAG", Type: "pattern"})
	require.NoError(t, err)
	assert.Contains(t, generated.ID, "pattern-")

	_, err = g.AddEdge(ctx, EdgeRequest{Source: "tech-llm", Target: "tech-vector-db", Type: "uses"})
	require.NoError(t, err)
	detail, err := g.GetNode(ctx, "tech-vector-db")
	require.NoError(t, err)
	assert.Equal(t, []string{"tech-llm"}, nodeIDs(detail.Neighbors))

	out, err := g.Neighbors(ctx, "tech-llm", DirectionOut)
	require.NoError(t, err)
	assert.Equal(t, []string{"tech-inference", "sku-llm-suite", "tech-vector-db"}, nodeIDs(out))
	in, err := g.Neighbors(ctx, "tech-llm", DirectionIn)
	require.NoError(t, err)
	assert.Equal(t, []string{"uc-clinical-notes", "doc-llm-sizing"}, nodeIDs(in))

	updated, err := g.UpdateNode(ctx, "tech-vector-db", NodeRequest{Label: "Vector Store", Type: "technology", Properties: map[string]string{"vendor": "any"}})
	require.NoError(t, err)
	assert.Equal(t, "Vector Store", updated.Label)

	techs := g.ListNodes(ctx, NodeFilters{Type: "technology", ListFilters: shared.ListFilters{Search: "VECTOR"}})
	assert.Equal(t, []string{"tech-vector-db"}, nodeIDs(techs))

	_, err = ParseDirection("sideways")
	assert.ErrorIs(t, err, ErrInvalidDirection)
}
