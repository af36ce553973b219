package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeightsFromSlidersSumToOne(t *testing.T) {
	for _, sliders := range [][2]int{{0, 0}, {50, 50}, {100, 100}, {0, 100}, {100, 0}, {-5, 120}} {
		w := WeightsFromSliders(sliders[0], sliders[1])
		sum := w.Association + w.Drugs + w.Interactions + w.Literature
		assert.InDelta(t, 1.0, sum, 1e-9, "sliders %v", sliders)
		assert.Greater(t, w.Association, 0.0)
		assert.Greater(t, w.Drugs, 0.0)
		assert.Greater(t, w.Interactions, 0.0)
		assert.Greater(t, w.Literature, 0.0)
	}
}

func TestSliderDirection(t *testing.T) {
	lowRisk := WeightsFromSliders(50, 0)
	highRisk := WeightsFromSliders(50, 100)
	assert.Greater(t, lowRisk.Association, highRisk.Association)
	assert.Less(t, lowRisk.Interactions, highRisk.Interactions)

	actionable := WeightsFromSliders(100, 50)
	novel := WeightsFromSliders(0, 50)
	assert.Greater(t, actionable.Drugs, novel.Drugs)
	assert.Less(t, actionable.Literature, novel.Literature)
}

func TestScoreBounds(t *testing.T) {
	w := WeightsFromSliders(50, 50)

	empty := Score(Row{}, w)
	assert.Equal(t, 0.0, empty)

	// Counts far past the caps and an out-of-range association still land
	// in [0,1].
	extreme := Score(Row{AssociationScore: 3.5, DrugCount: 500, InteractionCount: 500, ArticleCount: 500, TrialCount: 500}, w)
	assert.LessOrEqual(t, extreme, 1.0)
	assert.InDelta(t, 1.0, extreme, 1e-9)
}

func TestRankOrderAndTies(t *testing.T) {
	w := WeightsFromSliders(50, 50)
	rows := []Row{
		{TargetID: "t1", Symbol: "ZZZ", AssociationScore: 0.4},
		{TargetID: "t2", Symbol: "AAA", AssociationScore: 0.4},
		{TargetID: "t3", Symbol: "MMM", AssociationScore: 0.9},
	}

	ranked := Rank(rows, w)
	assert.Equal(t, "MMM", ranked[0].Symbol)
	// Equal scores fall back to symbol order so output is deterministic.
	assert.Equal(t, "AAA", ranked[1].Symbol)
	assert.Equal(t, "ZZZ", ranked[2].Symbol)
}
