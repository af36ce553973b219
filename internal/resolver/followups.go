package resolver

import (
	"fmt"
	"strings"
)

const maxFollowups = 8

// constraintPhrases are explicit user constraints worth confirming before
// narrowing results.
var constraintPhrases = []string{
	"pediatric", "adult", "resistant", "refractory", "early-onset",
	"late-onset", "metastatic", "chronic", "severe",
}

// buildFollowups derives follow-up questions from anchor pairs,
// disease-target pairs and explicit constraint phrases, capped at 8.
func buildFollowups(query string, anchors []Anchor) []Followup {
	var out []Followup
	add := func(question, kind string) {
		if len(out) >= maxFollowups {
			return
		}
		for _, f := range out {
			if f.Question == question {
				return
			}
		}
		out = append(out, Followup{Question: question, Kind: kind})
	}

	for i := 0; i+1 < len(anchors); i++ {
		add(fmt.Sprintf("What mechanism links %s and %s?", anchors[i].Name, anchors[i+1].Name), "anchor_pair")
	}

	for _, d := range anchors {
		if d.EntityType != EntityDisease {
			continue
		}
		for _, t := range anchors {
			if t.EntityType != EntityTarget {
				continue
			}
			add(fmt.Sprintf("Which pathways connect %s to %s?", t.Name, d.Name), "disease_target")
			add(fmt.Sprintf("Are there drugs targeting %s with evidence in %s?", t.Name, d.Name), "disease_target")
		}
	}

	lower := strings.ToLower(query)
	for _, phrase := range constraintPhrases {
		if strings.Contains(lower, phrase) {
			add(fmt.Sprintf("Should results be restricted to %s cases?", phrase), "constraint")
		}
	}

	return out
}
