package ranking

import "sort"

// Row is the accumulated per-target evidence a run has gathered.
type Row struct {
	TargetID         string  `json:"targetId"`
	Symbol           string  `json:"symbol"`
	AssociationScore float64 `json:"associationScore"`
	DrugCount        int     `json:"drugCount"`
	InteractionCount int     `json:"interactionCount"`
	ArticleCount     int     `json:"articleCount"`
	TrialCount       int     `json:"trialCount"`
}

// Weights always sum to 1 after normalization.
type Weights struct {
	Association  float64 `json:"association"`
	Drugs        float64 `json:"drugs"`
	Interactions float64 `json:"interactions"`
	Literature   float64 `json:"literature"`
}

// Ranked is a scored row, optionally annotated by the refinement pass.
type Ranked struct {
	Row
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
}

// WeightsFromSliders maps the two 0-100 UI sliders onto normalized weights.
// actionability leans on drug evidence, low risk tolerance leans on
// established disease association, high risk tolerance trusts network
// inference, novelty leans on literature signals.
func WeightsFromSliders(noveltyActionability, riskTolerance int) Weights {
	a := clampSlider(noveltyActionability) / 100.0
	r := clampSlider(riskTolerance) / 100.0

	w := Weights{
		Association:  0.50 + 0.50*(1-r),
		Drugs:        0.25 + 0.50*a,
		Interactions: 0.25 + 0.25*r,
		Literature:   0.25 + 0.50*(1-a),
	}
	sum := w.Association + w.Drugs + w.Interactions + w.Literature
	w.Association /= sum
	w.Drugs /= sum
	w.Interactions /= sum
	w.Literature /= sum
	return w
}

// Score is the deterministic weighted-linear rank value, always in [0,1]
// when weights sum to 1: every factor is clamped to [0,1] first.
func Score(row Row, w Weights) float64 {
	return w.Association*clamp01(row.AssociationScore) +
		w.Drugs*capRatio(row.DrugCount, 8) +
		w.Interactions*capRatio(row.InteractionCount, 8) +
		w.Literature*capRatio(row.ArticleCount+row.TrialCount, 10)
}

// Rank scores and sorts rows descending. This pass has no external
// dependency and always completes.
func Rank(rows []Row, w Weights) []Ranked {
	out := make([]Ranked, 0, len(rows))
	for _, row := range rows {
		out = append(out, Ranked{Row: row, Score: Score(row, w)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func capRatio(count, limit int) float64 {
	if count <= 0 {
		return 0
	}
	if count >= limit {
		return 1
	}
	return float64(count) / float64(limit)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampSlider(v int) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return float64(v)
}
