package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/atlasbio/meridian/internal/cache"
	"github.com/atlasbio/meridian/internal/logger"
)

// LiteratureClient serves Europe PMC article search and ClinicalTrials.gov
// study search behind one contract. The halves fail independently so each
// source reports its own health.
type LiteratureClient struct {
	pmc       *httpJSON
	trials    *httpJSON
	pmcBase   string
	trialBase string
}

func NewLiteratureClient(log *logger.Logger, c cache.Cache, pmcBase, trialBase string, timeout, cacheTTL time.Duration) *LiteratureClient {
	return &LiteratureClient{
		pmc:       newHTTPJSON(log.With("source", SourceEuropePMC), c, timeout, cacheTTL),
		trials:    newHTTPJSON(log.With("source", SourceClinicalTrials), c, timeout, cacheTTL),
		pmcBase:   strings.TrimRight(pmcBase, "/"),
		trialBase: strings.TrimRight(trialBase, "/"),
	}
}

func literatureQuery(disease, targetSymbol, drugHint string) string {
	terms := []string{disease, targetSymbol}
	if drugHint != "" {
		terms = append(terms, drugHint)
	}
	return strings.Join(nonEmpty(terms), " AND ")
}

func (c *LiteratureClient) SearchArticles(ctx context.Context, disease, targetSymbol, drugHint string) ([]Article, error) {
	query := literatureQuery(disease, targetSymbol, drugHint)
	params := url.Values{}
	params.Set("query", query)
	params.Set("format", "json")
	params.Set("pageSize", "10")

	endpoint := fmt.Sprintf("%s/search?%s", c.pmcBase, params.Encode())
	key := "epmc:search:" + strings.ToLower(query)

	var resp struct {
		ResultList struct {
			Result []struct {
				ID      string `json:"id"`
				Title   string `json:"title"`
				PubYear string `json:"pubYear"`
			} `json:"result"`
		} `json:"resultList"`
	}
	if err := c.pmc.getJSON(ctx, key, endpoint, &resp); err != nil {
		return nil, err
	}

	out := make([]Article, 0, len(resp.ResultList.Result))
	for _, r := range resp.ResultList.Result {
		year := 0
		fmt.Sscanf(r.PubYear, "%d", &year)
		out = append(out, Article{ID: r.ID, Title: r.Title, Year: year})
	}
	return out, nil
}

func (c *LiteratureClient) SearchTrials(ctx context.Context, disease, targetSymbol, drugHint string) ([]Trial, error) {
	query := literatureQuery(disease, targetSymbol, drugHint)

	params := url.Values{}
	params.Set("query.term", query)
	params.Set("pageSize", "10")

	endpoint := fmt.Sprintf("%s/studies?%s", c.trialBase, params.Encode())
	key := "ctgov:search:" + strings.ToLower(query)

	var resp struct {
		Studies []struct {
			ProtocolSection struct {
				Identification struct {
					NCTID      string `json:"nctId"`
					BriefTitle string `json:"briefTitle"`
				} `json:"identificationModule"`
				Status struct {
					OverallStatus string `json:"overallStatus"`
				} `json:"statusModule"`
				Design struct {
					Phases []string `json:"phases"`
				} `json:"designModule"`
			} `json:"protocolSection"`
		} `json:"studies"`
	}
	if err := c.trials.getJSON(ctx, key, endpoint, &resp); err != nil {
		return nil, err
	}

	out := make([]Trial, 0, len(resp.Studies))
	for _, s := range resp.Studies {
		id := s.ProtocolSection.Identification.NCTID
		if id == "" {
			continue
		}
		phase := ""
		if len(s.ProtocolSection.Design.Phases) > 0 {
			phase = s.ProtocolSection.Design.Phases[0]
		}
		out = append(out, Trial{
			ID:     id,
			Title:  s.ProtocolSection.Identification.BriefTitle,
			Phase:  phase,
			Status: s.ProtocolSection.Status.OverallStatus,
		})
	}
	return out, nil
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
