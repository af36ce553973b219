package ranking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atlasbio/meridian/internal/llm"
)

const defaultRefinePrompt = `You are ranking drug targets for the question: %s

Candidates (index, symbol, evidence counts):
%s
Reorder the candidates from most to least promising and give a one-sentence
reason each. Return ONLY JSON:
{"ranking": [{"index": 0, "reason": "..."}]}`

type refinement struct {
	Ranking []struct {
		Index  int    `json:"index"`
		Reason string `json:"reason"`
	} `json:"ranking"`
}

// Refine asks the LLM to reorder and annotate an already-scored ranking
// under a strict timeout. Any failure (timeout, malformed output, bad
// indices) returns an error and the caller keeps the deterministic ranking.
func Refine(ctx context.Context, client llm.LLMClient, query string, ranked []Ranked, prompt string, timeout time.Duration) ([]Ranked, error) {
	if client == nil {
		return nil, fmt.Errorf("no llm client configured")
	}
	if len(ranked) < 2 {
		return nil, fmt.Errorf("nothing to refine")
	}
	if prompt == "" {
		prompt = defaultRefinePrompt
	}

	var rows strings.Builder
	for i, r := range ranked {
		fmt.Fprintf(&rows, "[%d] %s assoc=%.2f drugs=%d interactions=%d articles=%d trials=%d\n",
			i, r.Symbol, r.AssociationScore, r.DrugCount, r.InteractionCount, r.ArticleCount, r.TrialCount)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	response, err := client.Generate(callCtx, fmt.Sprintf(prompt, query, rows.String()))
	if err != nil {
		return nil, fmt.Errorf("refinement generation failed: %w", err)
	}

	parsed, err := llm.ParseJSON[refinement](response)
	if err != nil {
		return nil, fmt.Errorf("refinement output malformed: %w", err)
	}
	if len(parsed.Ranking) == 0 {
		return nil, fmt.Errorf("refinement returned empty ranking")
	}

	used := make(map[int]bool, len(parsed.Ranking))
	out := make([]Ranked, 0, len(ranked))
	for _, item := range parsed.Ranking {
		if item.Index < 0 || item.Index >= len(ranked) || used[item.Index] {
			return nil, fmt.Errorf("refinement referenced invalid index %d", item.Index)
		}
		used[item.Index] = true
		r := ranked[item.Index]
		r.Reason = strings.TrimSpace(item.Reason)
		out = append(out, r)
	}

	// Anything the model omitted keeps its deterministic position at the tail.
	for i, r := range ranked {
		if !used[i] {
			out = append(out, r)
		}
	}
	return out, nil
}
