package resolver

import "strings"

// Entity types an anchor can resolve to.
const (
	EntityDisease = "disease"
	EntityTarget  = "target"
	EntityDrug    = "drug"
)

// Anchor is a typed, resolved entity extracted from the free-text query. It
// seeds the orchestrator fan-out and serves as a pathfinding endpoint.
type Anchor struct {
	Mention       string  `json:"mention"`
	RequestedType string  `json:"requestedType,omitempty"`
	EntityType    string  `json:"entityType"`
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Confidence    float64 `json:"confidence"`
	Source        string  `json:"source"`
}

// Followup is a suggested next question derived from the resolved anchors.
type Followup struct {
	Question string `json:"question"`
	Kind     string `json:"kind"`
}

// Plan is the full resolver output for one query.
type Plan struct {
	Anchors            []Anchor   `json:"anchors"`
	UnresolvedMentions []string   `json:"unresolvedMentions"`
	Followups          []Followup `json:"followups"`
}

// normalizeName lowers, strips punctuation and collapses whitespace so
// anchors dedupe on surface-form variants.
func normalizeName(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// ontologyRank orders canonical disease id namespaces for dedupe
// tie-breaking: EFO > MONDO > ORPHANET > DOID > HP > anything else.
func ontologyRank(id string) int {
	upper := strings.ToUpper(id)
	prefixes := []string{"EFO", "MONDO", "ORPHANET", "DOID", "HP"}
	for i, p := range prefixes {
		if strings.HasPrefix(upper, p) {
			return i
		}
	}
	return len(prefixes)
}
