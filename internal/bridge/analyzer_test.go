package bridge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atlasbio/meridian/internal/graph"
	"github.com/atlasbio/meridian/internal/resolver"
)

func diseaseAnchor() resolver.Anchor {
	return resolver.Anchor{Mention: "asthma", EntityType: resolver.EntityDisease, ID: "EFO_0000270", Name: "asthma", Confidence: 0.9}
}

func targetAnchor(id, symbol string) resolver.Anchor {
	return resolver.Anchor{Mention: symbol, EntityType: resolver.EntityTarget, ID: id, Name: symbol, Confidence: 0.9}
}

func TestAnalyzeFindsShortestPath(t *testing.T) {
	disease := graph.NewNode(graph.NodeDisease, "EFO_0000270", "asthma", 0.9)
	il6 := graph.NewNode(graph.NodeTarget, "ENSG00000136244", "IL6", 0.8)
	tnf := graph.NewNode(graph.NodeTarget, "ENSG00000232810", "TNF", 0.7)

	edges := []graph.Edge{
		graph.NewEdge(disease.ID, il6.ID, graph.EdgeDiseaseTarget, 0.8),
		graph.NewEdge(il6.ID, tnf.ID, graph.EdgeTargetTarget, 0.9),
		// Longer detour that BFS must not prefer.
		graph.NewEdge(disease.ID, tnf.ID, graph.EdgeDiseaseTarget, 0.1),
	}

	res := Analyze(
		[]resolver.Anchor{diseaseAnchor(), targetAnchor("ENSG00000136244", "IL6")},
		[]graph.Node{disease, il6, tnf}, edges,
	)

	assert.Equal(t, StatusConnected, res.Status)
	assert.Len(t, res.Pairs, 1)
	pair := res.Pairs[0]
	assert.Equal(t, StatusConnected, pair.Status)
	assert.NotNil(t, pair.Path)
	assert.Equal(t, 1, pair.Path.Hops)
	assert.Equal(t, []string{disease.ID, il6.ID}, pair.Path.NodeIDs)
	assert.Equal(t, 0, res.Primary)
	assert.Empty(t, res.VirtualNodes)
}

func TestAnalyzePrimaryPrefersMostIntermediates(t *testing.T) {
	disease := graph.NewNode(graph.NodeDisease, "EFO_0000270", "asthma", 0.9)
	il6 := graph.NewNode(graph.NodeTarget, "ENSG00000136244", "IL6", 0.8)
	tnf := graph.NewNode(graph.NodeTarget, "ENSG00000232810", "TNF", 0.7)
	egfr := graph.NewNode(graph.NodeTarget, "ENSG00000146648", "EGFR", 0.6)

	edges := []graph.Edge{
		graph.NewEdge(disease.ID, il6.ID, graph.EdgeDiseaseTarget, 0.8),
		graph.NewEdge(il6.ID, tnf.ID, graph.EdgeTargetTarget, 0.9),
		graph.NewEdge(tnf.ID, egfr.ID, graph.EdgeTargetTarget, 0.9),
	}

	anchors := []resolver.Anchor{
		diseaseAnchor(),
		targetAnchor("ENSG00000136244", "IL6"),
		targetAnchor("ENSG00000146648", "EGFR"),
	}
	res := Analyze(anchors, []graph.Node{disease, il6, tnf, egfr}, edges)

	assert.Len(t, res.Pairs, 2)
	// disease->IL6 is direct; IL6->EGFR routes through TNF, making it the
	// most mechanistically specific pair.
	assert.Equal(t, 1, res.Primary)
	assert.Equal(t, 2, res.Pairs[1].Path.Hops)
	assert.Equal(t, []string{il6.ID, tnf.ID, egfr.ID}, res.Pairs[1].Path.NodeIDs)
}

func TestAnalyzeUnresolvedAnchorGetsVirtualNode(t *testing.T) {
	disease := graph.NewNode(graph.NodeDisease, "EFO_0000270", "asthma", 0.9)

	anchors := []resolver.Anchor{
		diseaseAnchor(),
		targetAnchor("ENSG00000000000", "GHOST"),
	}
	res := Analyze(anchors, []graph.Node{disease}, nil)

	assert.Equal(t, StatusNoConnection, res.Status)
	assert.Len(t, res.VirtualNodes, 1)
	assert.True(t, strings.HasPrefix(res.VirtualNodes[0].ID, "virtual:target:"))
	assert.Equal(t, true, res.VirtualNodes[0].Meta["virtual"])

	pair := res.Pairs[0]
	assert.Equal(t, StatusNoConnection, pair.Status)
	assert.Equal(t, ReasonUnresolvedAnchor, pair.Reason)

	assert.Len(t, res.VirtualEdges, 1)
	assert.True(t, res.VirtualEdges[0].IsProxy())
	assert.Equal(t, -1, res.Primary)
}

func TestAnalyzeIgnoresProxyEdges(t *testing.T) {
	disease := graph.NewNode(graph.NodeDisease, "EFO_0000270", "asthma", 0.9)
	il6 := graph.NewNode(graph.NodeTarget, "ENSG00000136244", "IL6", 0.8)

	proxy := graph.NewEdge(disease.ID, il6.ID, graph.EdgeType("gap"), 0)
	proxy.Meta[graph.MetaProxy] = true

	res := Analyze(
		[]resolver.Anchor{diseaseAnchor(), targetAnchor("ENSG00000136244", "IL6")},
		[]graph.Node{disease, il6},
		[]graph.Edge{proxy},
	)

	pair := res.Pairs[0]
	assert.Equal(t, StatusNoConnection, pair.Status)
	assert.Equal(t, ReasonDisconnected, pair.Reason)
}

func TestAnalyzeMatchesByLabelFallback(t *testing.T) {
	// Node present under a different primary id; the anchor binds via the
	// type+label index instead.
	node := graph.NewNode(graph.NodeDisease, "MONDO_0004979", "Asthma", 0.9)
	anchor := resolver.Anchor{Mention: "asthma", EntityType: resolver.EntityDisease, ID: "EFO_0000270", Name: "asthma"}

	res := Analyze([]resolver.Anchor{anchor, anchor}, []graph.Node{node}, nil)
	assert.Equal(t, node.ID, res.Anchors[0].NodeID)
	assert.Empty(t, res.VirtualNodes)
}
