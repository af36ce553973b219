package resolver

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atlasbio/meridian/internal/config"
	"github.com/atlasbio/meridian/internal/logger"
	"github.com/atlasbio/meridian/internal/sources"
)

// stubSources answers entity searches from fixed tables, keyed by lowercased
// query text.
type stubSources struct{}

func (stubSources) SearchDiseases(_ context.Context, text string, _ int) ([]sources.Disease, error) {
	switch {
	case strings.Contains(strings.ToLower(text), "asthma"):
		return []sources.Disease{{ID: "EFO_0000270", Name: "asthma"}}, nil
	case strings.EqualFold(text, "il6"):
		return []sources.Disease{{ID: "EFO_0008056", Name: "IL6 measurement"}}, nil
	}
	return nil, nil
}

func (stubSources) DiseaseTargetsSummary(_ context.Context, _ string, _ int) ([]sources.TargetAssociation, error) {
	return nil, nil
}

func (stubSources) SearchTargets(_ context.Context, text string, _ int) ([]sources.Target, error) {
	lower := strings.ToLower(text)
	switch {
	case lower == "il6":
		return []sources.Target{{ID: "ENSG00000136244", Name: "IL6"}}, nil
	case strings.Contains(lower, "amp-activated"):
		return []sources.Target{{ID: "ENSG00000132356", Name: "AMP-activated protein kinase alpha-1"}}, nil
	}
	return nil, nil
}

func (stubSources) KnownDrugsForTarget(_ context.Context, _ string, _ int) ([]sources.Drug, error) {
	return nil, nil
}

func (stubSources) SearchDrugs(_ context.Context, text string, _ int) ([]sources.Drug, error) {
	if strings.EqualFold(text, "metformin") {
		return []sources.Drug{{ID: "CHEMBL1431", Name: "METFORMIN"}}, nil
	}
	return nil, nil
}

func (stubSources) TargetActivityDrugs(_ context.Context, _ string, _ int) ([]sources.Drug, error) {
	return nil, nil
}

func (stubSources) DrugTargetHints(_ context.Context, drugName string) ([]string, error) {
	if strings.EqualFold(drugName, "metformin") {
		return []string{"protein", "AMP-activated protein kinase alpha-1"}, nil
	}
	return nil, nil
}

func stubCatalog() sources.Catalog {
	s := stubSources{}
	return sources.Catalog{Diseases: s, Targets: s, Drugs: s}
}

func newTestPlanner() *Planner {
	return NewPlanner(logger.NewNop(), nil, stubCatalog(), config.Default())
}

func TestPlanResolvesDiseaseAndTarget(t *testing.T) {
	p := newTestPlanner()
	plan := p.Plan(context.Background(), "What is the relationship between asthma and IL6?", nil)

	assert.Len(t, plan.Anchors, 2)
	assert.Empty(t, plan.UnresolvedMentions)

	disease := plan.Anchors[0]
	assert.Equal(t, EntityDisease, disease.EntityType)
	assert.Equal(t, "EFO_0000270", disease.ID)
	assert.Greater(t, disease.Confidence, 0.7)

	// IL6 must resolve as a target, not the "IL6 measurement" ontology trap.
	target := plan.Anchors[1]
	assert.Equal(t, EntityTarget, target.EntityType)
	assert.Equal(t, "ENSG00000136244", target.ID)

	// Connector words never become anchors.
	for _, a := range plan.Anchors {
		assert.NotEqual(t, "between", strings.ToLower(a.Mention))
		assert.NotEqual(t, "and", strings.ToLower(a.Mention))
	}

	assert.NotEmpty(t, plan.Followups)
	assert.LessOrEqual(t, len(plan.Followups), 8)
}

func TestPlanExpandsDrugAnchors(t *testing.T) {
	p := newTestPlanner()
	plan := p.Plan(context.Background(), "Does metformin affect AMPK?", nil)

	var drug, expanded *Anchor
	for i := range plan.Anchors {
		a := &plan.Anchors[i]
		switch {
		case a.EntityType == EntityDrug:
			drug = a
		case a.Source == "drug_expansion":
			expanded = a
		}
	}

	assert.NotNil(t, drug)
	assert.Equal(t, "CHEMBL1431", drug.ID)

	// The generic "protein" hint is skipped, the specific one is expanded
	// with reduced confidence.
	assert.NotNil(t, expanded)
	assert.Equal(t, EntityTarget, expanded.EntityType)
	assert.Equal(t, "ENSG00000132356", expanded.ID)
	assert.Less(t, expanded.Confidence, drug.Confidence)

	// "AMPK" itself matches nothing in the stub and stays unresolved.
	assert.Contains(t, plan.UnresolvedMentions, "AMPK")
}

func TestPlanEmptyWhenNothingResolves(t *testing.T) {
	p := newTestPlanner()
	plan := p.Plan(context.Background(), "completely unrelated gibberish text", nil)
	assert.Empty(t, plan.Anchors)
}

func TestDedupeAnchorsPrefersOntologyRank(t *testing.T) {
	anchors := []Anchor{
		{EntityType: EntityDisease, ID: "MONDO_0004979", Name: "Asthma", Confidence: 0.9},
		{EntityType: EntityDisease, ID: "EFO_0000270", Name: "asthma", Confidence: 0.9},
		{EntityType: EntityDisease, ID: "DOID_2841", Name: "asthma", Confidence: 0.95},
	}

	out := dedupeAnchors(anchors)
	assert.Len(t, out, 1)
	// Higher confidence beats namespace preference.
	assert.Equal(t, "DOID_2841", out[0].ID)

	out = dedupeAnchors(anchors[:2])
	assert.Len(t, out, 1)
	// At equal confidence EFO outranks MONDO.
	assert.Equal(t, "EFO_0000270", out[0].ID)
}

func TestLexicalExtractorSkipsStopwords(t *testing.T) {
	mentions, err := lexicalExtractor{}.Extract(context.Background(), "link between TP53 and the DNA?")
	assert.NoError(t, err)

	texts := make([]string, 0, len(mentions))
	for _, m := range mentions {
		texts = append(texts, strings.ToLower(m.Text))
	}
	assert.Contains(t, texts, "tp53")
	assert.NotContains(t, texts, "dna")
	assert.NotContains(t, texts, "between")
}

func TestLooksSymbolLike(t *testing.T) {
	assert.True(t, looksSymbolLike("IL6"))
	assert.True(t, looksSymbolLike("TP53"))
	assert.True(t, looksSymbolLike("BRCA-1"))
	assert.False(t, looksSymbolLike("asthma"))
	assert.False(t, looksSymbolLike("A"))
	assert.False(t, looksSymbolLike("AND"))
}
