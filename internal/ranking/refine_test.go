package ranking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type scriptedLLM struct {
	response string
	err      error
}

func (s *scriptedLLM) Generate(_ context.Context, _ string) (string, error) {
	return s.response, s.err
}

func baseRanked() []Ranked {
	w := WeightsFromSliders(50, 50)
	return Rank([]Row{
		{TargetID: "t1", Symbol: "IL6", AssociationScore: 0.9},
		{TargetID: "t2", Symbol: "TNF", AssociationScore: 0.7},
		{TargetID: "t3", Symbol: "EGFR", AssociationScore: 0.5},
	}, w)
}

func TestRefineReorders(t *testing.T) {
	client := &scriptedLLM{response: `{"ranking": [{"index": 2, "reason": "tractable"}, {"index": 0, "reason": "strong"}]}`}

	out, err := Refine(context.Background(), client, "q", baseRanked(), "", time.Second)
	assert.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, "EGFR", out[0].Symbol)
	assert.Equal(t, "tractable", out[0].Reason)
	assert.Equal(t, "IL6", out[1].Symbol)
	// Omitted rows keep their deterministic position at the tail.
	assert.Equal(t, "TNF", out[2].Symbol)
	assert.Empty(t, out[2].Reason)
}

func TestRefineMalformedOutput(t *testing.T) {
	client := &scriptedLLM{response: "the best target is clearly IL6"}
	_, err := Refine(context.Background(), client, "q", baseRanked(), "", time.Second)
	assert.Error(t, err)
}

func TestRefineInvalidIndex(t *testing.T) {
	client := &scriptedLLM{response: `{"ranking": [{"index": 9, "reason": "x"}]}`}
	_, err := Refine(context.Background(), client, "q", baseRanked(), "", time.Second)
	assert.Error(t, err)

	client.response = `{"ranking": [{"index": 0}, {"index": 0}]}`
	_, err = Refine(context.Background(), client, "q", baseRanked(), "", time.Second)
	assert.Error(t, err)
}

func TestRefineGenerationFailure(t *testing.T) {
	client := &scriptedLLM{err: fmt.Errorf("model unavailable")}
	_, err := Refine(context.Background(), client, "q", baseRanked(), "", time.Second)
	assert.Error(t, err)

	_, err = Refine(context.Background(), nil, "q", baseRanked(), "", time.Second)
	assert.Error(t, err)

	_, err = Refine(context.Background(), client, "q", baseRanked()[:1], "", time.Second)
	assert.Error(t, err)
}
