package resolver

import "strings"

// StringSimilarity scores how well a candidate entity name matches the raw
// mention, in [0,1]. It is a pure function so it can be tuned independently
// of the planner's control flow. Strategies, best one wins:
//
//	exact normalized match        1.0
//	prefix containment            0.84 + 0.10 * length ratio
//	token overlap (Dice)          2*|common| / (|a|+|b|)
//	initials vs abbreviation      0.80
//	character bigram Dice         raw coefficient (catches typos/inflection)
func StringSimilarity(mention, candidate string) float64 {
	a := normalizeName(mention)
	b := normalizeName(candidate)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}

	best := 0.0

	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) >= 3 && strings.HasPrefix(longer, shorter) {
		best = max(best, 0.84+0.10*float64(len(shorter))/float64(len(longer)))
	}

	aTokens := strings.Fields(a)
	bTokens := strings.Fields(b)
	best = max(best, tokenDice(aTokens, bTokens))

	if initialsMatch(a, bTokens) || initialsMatch(b, aTokens) {
		best = max(best, 0.80)
	}

	best = max(best, bigramDice(a, b))

	return clamp01(best)
}

func tokenDice(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	common := 0
	for _, t := range b {
		if set[t] {
			common++
		}
	}
	return 2 * float64(common) / float64(len(a)+len(b))
}

// initialsMatch reports whether abbr equals the initials of a multi-word
// name, e.g. "nsclc" vs "non small cell lung carcinoma".
func initialsMatch(abbr string, words []string) bool {
	if len(words) < 2 || strings.Contains(abbr, " ") || len(abbr) != len(words) {
		return false
	}
	for i, w := range words {
		if w == "" || abbr[i] != w[0] {
			return false
		}
	}
	return true
}

func bigramDice(a, b string) float64 {
	ga := bigrams(a)
	gb := bigrams(b)
	if len(ga) == 0 || len(gb) == 0 {
		return 0
	}
	counts := make(map[string]int, len(ga))
	for _, g := range ga {
		counts[g]++
	}
	common := 0
	for _, g := range gb {
		if counts[g] > 0 {
			counts[g]--
			common++
		}
	}
	return 2 * float64(common) / float64(len(ga)+len(gb))
}

func bigrams(s string) []string {
	s = strings.ReplaceAll(s, " ", "")
	if len(s) < 2 {
		return nil
	}
	out := make([]string, 0, len(s)-1)
	for i := 0; i+2 <= len(s); i++ {
		out = append(out, s[i:i+2])
	}
	return out
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
