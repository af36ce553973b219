package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/atlasbio/meridian/internal/llm"
)

// Mention is a raw text span that may resolve to an anchor.
type Mention struct {
	Text          string
	RequestedType string // disease/target/drug, empty = try all
	FromFallback  bool
}

// MentionExtractor pulls candidate mentions out of free text. Extractors are
// tried in order; the first non-empty result wins.
type MentionExtractor interface {
	Extract(ctx context.Context, query string) ([]Mention, error)
}

// --- LLM extractor ---

type llmExtractor struct {
	client  llm.LLMClient
	prompt  string
	timeout time.Duration
}

func newLLMExtractor(client llm.LLMClient, prompt string, timeout time.Duration) *llmExtractor {
	if prompt == "" {
		prompt = defaultMentionPrompt
	}
	return &llmExtractor{client: client, prompt: prompt, timeout: timeout}
}

const defaultMentionPrompt = `Extract biomedical entity mentions from the question below.
Return ONLY a JSON object of the form:
{"mentions": [{"text": "...", "type": "disease|target|drug|unknown"}]}
Do not invent entities that are not literally mentioned. Connector words
(between, versus, and, cause) are never mentions.

Question: %s`

type extractedMentions struct {
	Mentions []struct {
		Text string `json:"text"`
		Type string `json:"type"`
	} `json:"mentions"`
}

func (e *llmExtractor) Extract(ctx context.Context, query string) ([]Mention, error) {
	if e.client == nil {
		return nil, fmt.Errorf("no llm client configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	response, err := e.client.Generate(callCtx, fmt.Sprintf(e.prompt, query))
	if err != nil {
		return nil, fmt.Errorf("mention extraction failed: %w", err)
	}

	parsed, err := llm.ParseJSON[extractedMentions](response)
	if err != nil {
		return nil, err
	}

	var out []Mention
	for _, m := range parsed.Mentions {
		text := cleanMention(m.Text)
		if text == "" {
			continue
		}
		reqType := strings.ToLower(strings.TrimSpace(m.Type))
		if reqType != EntityDisease && reqType != EntityTarget && reqType != EntityDrug {
			reqType = ""
		}
		out = append(out, Mention{Text: text, RequestedType: reqType})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("llm returned no mentions")
	}
	return out, nil
}

// --- Lexical extractor ---

type lexicalExtractor struct{}

var (
	betweenRe = regexp.MustCompile(`(?i)\bbetween\s+(.+?)\s+and\s+(.+?)(?:[?.!,]|$)`)
	versusRe  = regexp.MustCompile(`(?i)\b(.+?)\s+(?:vs\.?|versus)\s+(.+?)(?:[?.!,]|$)`)
	causalRe  = regexp.MustCompile(`(?i)\b(?:does|do|can|could|how does)?\s*(.+?)\s+(?:cause|causes|affect|affects|influence|influences|drive|drives|modulate|modulates)\s+(.+?)(?:[?.!,]|$)`)
	quotedRe  = regexp.MustCompile(`["'“”]([^"'“”]{2,60})["'“”]`)
	symbolRe  = regexp.MustCompile(`\b[A-Z][A-Z0-9-]{1,7}\b`)
)

var mentionStopwords = map[string]bool{
	"and": true, "or": true, "the": true, "a": true, "an": true, "of": true,
	"in": true, "for": true, "with": true, "what": true, "which": true,
	"between": true, "versus": true, "vs": true, "is": true, "are": true,
	"how": true, "does": true, "do": true, "role": true, "link": true,
	"relationship": true, "connection": true, "dna": true, "rna": true,
}

func (lexicalExtractor) Extract(_ context.Context, query string) ([]Mention, error) {
	seen := map[string]bool{}
	var out []Mention

	add := func(text, reqType string) {
		text = cleanMention(text)
		if text == "" {
			return
		}
		key := strings.ToLower(text)
		if mentionStopwords[key] || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Mention{Text: text, RequestedType: reqType, FromFallback: true})
	}

	for _, m := range quotedRe.FindAllStringSubmatch(query, -1) {
		add(m[1], "")
	}
	if m := betweenRe.FindStringSubmatch(query); m != nil {
		add(m[1], "")
		add(m[2], "")
	}
	if m := versusRe.FindStringSubmatch(query); m != nil {
		add(m[1], "")
		add(m[2], "")
	}
	if m := causalRe.FindStringSubmatch(query); m != nil {
		add(m[1], "")
		add(m[2], "")
	}

	// Gene-symbol-like tokens: short, uppercase-dominated, optionally with
	// digits ("IL6", "TP53", "EGFR", "BRCA-1").
	for _, tok := range symbolRe.FindAllString(query, -1) {
		if looksSymbolLike(tok) {
			add(tok, EntityTarget)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no lexical mentions found")
	}
	return out, nil
}

// cleanMention trims connective noise off a raw span.
func cleanMention(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'?.!,;:`)
	for _, prefix := range []string{"the ", "a ", "an ", "role of ", "effect of "} {
		if strings.HasPrefix(strings.ToLower(s), prefix) {
			s = s[len(prefix):]
		}
	}
	s = strings.TrimSpace(s)
	if len(s) < 2 || len(s) > 80 {
		return ""
	}
	if mentionStopwords[strings.ToLower(s)] {
		return ""
	}
	return s
}

// looksSymbolLike reports whether a token has the shape of a gene symbol.
func looksSymbolLike(tok string) bool {
	if len(tok) < 2 || len(tok) > 8 || strings.Contains(tok, " ") {
		return false
	}
	upper, digits := 0, 0
	for _, r := range tok {
		switch {
		case r >= 'A' && r <= 'Z':
			upper++
		case r >= '0' && r <= '9':
			digits++
		case r == '-':
		default:
			return false
		}
	}
	if mentionStopwords[strings.ToLower(tok)] {
		return false
	}
	return upper >= 2 || (upper >= 1 && digits >= 1)
}

// looksTargetLike flags mentions whose surface form suggests a gene/protein
// rather than a disease (digits or hyphens in a short token).
func looksTargetLike(mention string) bool {
	if looksSymbolLike(mention) {
		return true
	}
	return len(mention) <= 12 && strings.ContainsAny(mention, "0123456789-")
}
