package resolver

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atlasbio/meridian/internal/config"
	"github.com/atlasbio/meridian/internal/llm"
	"github.com/atlasbio/meridian/internal/logger"
	"github.com/atlasbio/meridian/internal/sources"
)

const (
	// Accept thresholds are length-dependent: single-token mentions are
	// noisy (stray capitalized words) so they must score higher.
	singleTokenThreshold = 0.70
	phraseThreshold      = 0.50

	// diseasePreferenceGap gates the disease-over-target preference when
	// one mention scores highly as both.
	diseasePreferenceGap = 0.82

	// Anchors produced through the lexical fallback carry slightly lower
	// confidence; that is the only caller-visible trace of LLM failure.
	lexicalConfidencePenalty = 0.92

	typeMatchBoost      = 0.10
	typeMismatchPenalty = 0.15
	symbolBoost         = 0.12
	measurementPenalty  = 0.30

	maxExpandedTargetsPerDrug = 4
	searchHitsPerVariant      = 5
)

// Planner turns a free-text query into scored anchors, unresolved mentions
// and follow-up questions.
type Planner struct {
	log        *logger.Logger
	catalog    sources.Catalog
	extractors []MentionExtractor
}

func NewPlanner(log *logger.Logger, client llm.LLMClient, catalog sources.Catalog, cfg *config.Config) *Planner {
	var extractors []MentionExtractor
	if client != nil {
		timeout := time.Duration(cfg.LLM.TimeoutMS) * time.Millisecond
		extractors = append(extractors, newLLMExtractor(client, cfg.Prompts.Mentions, timeout))
	}
	extractors = append(extractors, lexicalExtractor{})

	return &Planner{
		log:        log.With("component", "planner"),
		catalog:    catalog,
		extractors: extractors,
	}
}

// Plan resolves the query. It never returns an error: resolution failures
// surface as unresolved mentions and an empty anchor list.
func (p *Planner) Plan(ctx context.Context, query string, rec sources.HealthRecorder) Plan {
	mentions := p.extractMentions(ctx, query)
	if len(mentions) == 0 {
		return Plan{}
	}

	type outcome struct {
		anchor *Anchor
		text   string
	}
	outcomes := make([]outcome, len(mentions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, m := range mentions {
		i, m := i, m
		g.Go(func() error {
			a := p.resolveMention(gctx, m, rec)
			outcomes[i] = outcome{anchor: a, text: m.Text}
			return nil
		})
	}
	_ = g.Wait()

	var anchors []Anchor
	var unresolved []string
	for _, o := range outcomes {
		if o.anchor != nil {
			anchors = append(anchors, *o.anchor)
		} else {
			unresolved = append(unresolved, o.text)
		}
	}

	anchors = dedupeAnchors(anchors)
	anchors = append(anchors, p.expandDrugAnchors(ctx, anchors, rec)...)
	anchors = dedupeAnchors(anchors)

	return Plan{
		Anchors:            anchors,
		UnresolvedMentions: unresolved,
		Followups:          buildFollowups(query, anchors),
	}
}

func (p *Planner) extractMentions(ctx context.Context, query string) []Mention {
	for _, e := range p.extractors {
		mentions, err := e.Extract(ctx, query)
		if err == nil && len(mentions) > 0 {
			return mentions
		}
		if err != nil {
			p.log.Debug("mention extractor failed, trying next", "error", err)
		}
	}
	return nil
}

type candidate struct {
	entityType string
	id         string
	name       string
	source     string
	score      float64
}

func (p *Planner) resolveMention(ctx context.Context, m Mention, rec sources.HealthRecorder) *Anchor {
	entityTypes := []string{EntityDisease, EntityTarget, EntityDrug}
	if m.RequestedType != "" {
		entityTypes = []string{m.RequestedType}
	}

	var mu sync.Mutex
	best := map[string]candidate{}
	consider := func(c candidate) {
		mu.Lock()
		defer mu.Unlock()
		if cur, ok := best[c.entityType]; !ok || c.score > cur.score {
			best[c.entityType] = c
		}
	}

	variants := mentionVariants(m.Text)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for _, entityType := range entityTypes {
		for _, v := range variants {
			entityType, v := entityType, v
			g.Go(func() error {
				for _, c := range p.searchCandidates(gctx, entityType, v, rec) {
					c.score = p.scoreCandidate(m, c.entityType, c.name)
					consider(c)
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	chosen, ok := pickCandidate(m, best)
	if !ok || chosen.score < acceptThreshold(m.Text) {
		return nil
	}

	confidence := chosen.score
	if m.FromFallback {
		confidence *= lexicalConfidencePenalty
	}

	return &Anchor{
		Mention:       m.Text,
		RequestedType: m.RequestedType,
		EntityType:    chosen.entityType,
		ID:            chosen.id,
		Name:          chosen.name,
		Confidence:    clamp01(confidence),
		Source:        chosen.source,
	}
}

func (p *Planner) searchCandidates(ctx context.Context, entityType, text string, rec sources.HealthRecorder) []candidate {
	switch entityType {
	case EntityDisease:
		hits := sources.Guarded(ctx, p.log, rec, sources.SourceOpenTargets, []sources.Disease(nil), func(ctx context.Context) ([]sources.Disease, error) {
			return p.catalog.Diseases.SearchDiseases(ctx, text, searchHitsPerVariant)
		})
		out := make([]candidate, 0, len(hits))
		for _, h := range hits {
			out = append(out, candidate{entityType: EntityDisease, id: h.ID, name: h.Name, source: sources.SourceOpenTargets})
		}
		return out

	case EntityTarget:
		hits := sources.Guarded(ctx, p.log, rec, sources.SourceOpenTargets, []sources.Target(nil), func(ctx context.Context) ([]sources.Target, error) {
			return p.catalog.Targets.SearchTargets(ctx, text, searchHitsPerVariant)
		})
		out := make([]candidate, 0, len(hits))
		for _, h := range hits {
			out = append(out, candidate{entityType: EntityTarget, id: h.ID, name: h.Name, source: sources.SourceOpenTargets})
		}
		return out

	case EntityDrug:
		hits := sources.Guarded(ctx, p.log, rec, sources.SourceChembl, []sources.Drug(nil), func(ctx context.Context) ([]sources.Drug, error) {
			return p.catalog.Drugs.SearchDrugs(ctx, text, searchHitsPerVariant)
		})
		out := make([]candidate, 0, len(hits))
		for _, h := range hits {
			out = append(out, candidate{entityType: EntityDrug, id: h.ID, name: h.Name, source: sources.SourceChembl})
		}
		return out
	}
	return nil
}

func (p *Planner) scoreCandidate(m Mention, entityType, name string) float64 {
	s := StringSimilarity(m.Text, name)
	if m.RequestedType != "" {
		if m.RequestedType == entityType {
			s += typeMatchBoost
		} else {
			s -= typeMismatchPenalty
		}
	}
	if entityType == EntityTarget && looksSymbolLike(m.Text) {
		s += symbolBoost
	}
	if entityType == EntityDisease && measurementLike(name) {
		s -= measurementPenalty
	}
	return clamp01(s)
}

// pickCandidate chooses one entity interpretation per mention. When the same
// surface mention scores highly as both disease and target, the disease
// reading wins unless the mention looks lexically target-like.
func pickCandidate(m Mention, best map[string]candidate) (candidate, bool) {
	d, dok := best[EntityDisease]
	_, tok := best[EntityTarget]
	if dok && tok && d.score >= diseasePreferenceGap && !looksTargetLike(m.Text) {
		return d, true
	}

	var chosen candidate
	found := false
	for _, c := range best {
		if !found || c.score > chosen.score {
			chosen = c
			found = true
		}
	}
	return chosen, found
}

func acceptThreshold(mention string) float64 {
	if len(strings.Fields(mention)) == 1 {
		return singleTokenThreshold
	}
	return phraseThreshold
}

// mentionVariants produces 2-3 normalized spellings of a mention to widen
// recall on case/punctuation/alias differences.
func mentionVariants(text string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] || len(out) >= 3 {
			return
		}
		seen[v] = true
		out = append(out, v)
	}

	add(text)
	add(strings.ToLower(text))
	stripped := strings.NewReplacer("-", " ", "_", " ", "'", "", ",", "").Replace(text)
	add(strings.Join(strings.Fields(stripped), " "))
	return out
}

// measurementLike rejects biomarker-measurement ontology entries that shadow
// the actual disease ("IL6 measurement", "glucose level").
func measurementLike(name string) bool {
	lower := strings.ToLower(name)
	for _, w := range []string{"measurement", "level", "count", "concentration", "quantification"} {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func dedupeAnchors(anchors []Anchor) []Anchor {
	byKey := map[string]Anchor{}
	var order []string
	for _, a := range anchors {
		key := a.EntityType + "|" + normalizeName(a.Name)
		cur, ok := byKey[key]
		if !ok {
			byKey[key] = a
			order = append(order, key)
			continue
		}
		if a.Confidence > cur.Confidence {
			byKey[key] = a
		} else if a.Confidence == cur.Confidence && ontologyRank(a.ID) < ontologyRank(cur.ID) {
			byKey[key] = a
		}
	}

	out := make([]Anchor, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out
}

// genericTargetHints are mechanism target names too vague to expand into
// target anchors.
var genericTargetHints = map[string]bool{
	"protein": true, "enzyme": true, "receptor": true, "channel": true,
	"transporter": true, "unknown": true, "other": true, "dna": true,
	"rna": true, "membrane": true,
}

func (p *Planner) expandDrugAnchors(ctx context.Context, anchors []Anchor, rec sources.HealthRecorder) []Anchor {
	var expanded []Anchor
	for _, a := range anchors {
		if a.EntityType != EntityDrug {
			continue
		}

		hints := sources.Guarded(ctx, p.log, rec, sources.SourceChembl, []string(nil), func(ctx context.Context) ([]string, error) {
			return p.catalog.Drugs.DrugTargetHints(ctx, a.Name)
		})

		added := 0
		for _, hint := range hints {
			if added >= maxExpandedTargetsPerDrug {
				break
			}
			if isGenericHint(hint) {
				continue
			}
			hits := sources.Guarded(ctx, p.log, rec, sources.SourceOpenTargets, []sources.Target(nil), func(ctx context.Context) ([]sources.Target, error) {
				return p.catalog.Targets.SearchTargets(ctx, hint, 1)
			})
			if len(hits) == 0 || StringSimilarity(hint, hits[0].Name) < 0.4 {
				continue
			}
			expanded = append(expanded, Anchor{
				Mention:    a.Mention,
				EntityType: EntityTarget,
				ID:         hits[0].ID,
				Name:       hits[0].Name,
				Confidence: clamp01(0.6 * a.Confidence),
				Source:     "drug_expansion",
			})
			added++
		}
	}
	return expanded
}

func isGenericHint(hint string) bool {
	norm := normalizeName(hint)
	if genericTargetHints[norm] {
		return true
	}
	words := strings.Fields(norm)
	if len(words) == 0 {
		return true
	}
	generic := 0
	for _, w := range words {
		if genericTargetHints[w] {
			generic++
		}
	}
	return generic == len(words)
}
