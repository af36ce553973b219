package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atlasbio/meridian/internal/cache"
	"github.com/atlasbio/meridian/internal/logger"
)

// OpenTargetsClient talks to the Open Targets Platform GraphQL API. It
// serves disease search, target search, disease-target association summaries
// and known drugs per target.
type OpenTargetsClient struct {
	http *httpJSON
	url  string
}

func NewOpenTargetsClient(log *logger.Logger, c cache.Cache, url string, timeout, cacheTTL time.Duration) *OpenTargetsClient {
	return &OpenTargetsClient{
		http: newHTTPJSON(log.With("source", SourceOpenTargets), c, timeout, cacheTTL),
		url:  url,
	}
}

const searchQuery = `
query search($q: String!, $entity: [String!], $size: Int!) {
  search(queryString: $q, entityNames: $entity, page: {index: 0, size: $size}) {
    hits { id name description }
  }
}`

const associatedTargetsQuery = `
query associatedTargets($efoId: String!, $size: Int!) {
  disease(efoId: $efoId) {
    associatedTargets(page: {index: 0, size: $size}) {
      rows {
        target { id approvedSymbol approvedName }
        score
      }
    }
  }
}`

const knownDrugsQuery = `
query knownDrugs($ensemblId: String!, $size: Int!) {
  target(ensemblId: $ensemblId) {
    knownDrugs(size: $size) {
      rows { drug { id name } phase }
    }
  }
}`

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type searchResponse struct {
	Data struct {
		Search struct {
			Hits []struct {
				ID          string `json:"id"`
				Name        string `json:"name"`
				Description string `json:"description"`
			} `json:"hits"`
		} `json:"search"`
	} `json:"data"`
}

func (c *OpenTargetsClient) search(ctx context.Context, entity, text string, n int) (searchResponse, error) {
	var resp searchResponse
	key := fmt.Sprintf("ot:search:%s:%s:%d", entity, strings.ToLower(text), n)
	err := c.http.postJSON(ctx, key, c.url, gqlRequest{
		Query: searchQuery,
		Variables: map[string]interface{}{
			"q":      text,
			"entity": []string{entity},
			"size":   n,
		},
	}, &resp)
	return resp, err
}

func (c *OpenTargetsClient) SearchDiseases(ctx context.Context, text string, n int) ([]Disease, error) {
	resp, err := c.search(ctx, "disease", text, n)
	if err != nil {
		return nil, err
	}
	diseases := make([]Disease, 0, len(resp.Data.Search.Hits))
	for _, h := range resp.Data.Search.Hits {
		diseases = append(diseases, Disease{ID: h.ID, Name: h.Name, Description: h.Description})
	}
	return diseases, nil
}

func (c *OpenTargetsClient) SearchTargets(ctx context.Context, text string, n int) ([]Target, error) {
	resp, err := c.search(ctx, "target", text, n)
	if err != nil {
		return nil, err
	}
	targets := make([]Target, 0, len(resp.Data.Search.Hits))
	for _, h := range resp.Data.Search.Hits {
		targets = append(targets, Target{ID: h.ID, Name: h.Name, Description: h.Description})
	}
	return targets, nil
}

func (c *OpenTargetsClient) DiseaseTargetsSummary(ctx context.Context, diseaseID string, n int) ([]TargetAssociation, error) {
	var resp struct {
		Data struct {
			Disease struct {
				AssociatedTargets struct {
					Rows []struct {
						Target struct {
							ID             string `json:"id"`
							ApprovedSymbol string `json:"approvedSymbol"`
							ApprovedName   string `json:"approvedName"`
						} `json:"target"`
						Score float64 `json:"score"`
					} `json:"rows"`
				} `json:"associatedTargets"`
			} `json:"disease"`
		} `json:"data"`
	}

	key := fmt.Sprintf("ot:assoc:%s:%d", diseaseID, n)
	err := c.http.postJSON(ctx, key, c.url, gqlRequest{
		Query: associatedTargetsQuery,
		Variables: map[string]interface{}{
			"efoId": diseaseID,
			"size":  n,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	rows := resp.Data.Disease.AssociatedTargets.Rows
	out := make([]TargetAssociation, 0, len(rows))
	for _, r := range rows {
		out = append(out, TargetAssociation{
			TargetID:         r.Target.ID,
			TargetSymbol:     r.Target.ApprovedSymbol,
			TargetName:       r.Target.ApprovedName,
			AssociationScore: r.Score,
		})
	}
	return out, nil
}

func (c *OpenTargetsClient) KnownDrugsForTarget(ctx context.Context, targetID string, n int) ([]Drug, error) {
	var resp struct {
		Data struct {
			Target struct {
				KnownDrugs struct {
					Rows []struct {
						Drug struct {
							ID   string `json:"id"`
							Name string `json:"name"`
						} `json:"drug"`
						Phase int `json:"phase"`
					} `json:"rows"`
				} `json:"knownDrugs"`
			} `json:"target"`
		} `json:"data"`
	}

	key := fmt.Sprintf("ot:drugs:%s:%d", targetID, n)
	err := c.http.postJSON(ctx, key, c.url, gqlRequest{
		Query: knownDrugsQuery,
		Variables: map[string]interface{}{
			"ensemblId": targetID,
			"size":      n,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	rows := resp.Data.Target.KnownDrugs.Rows
	seen := make(map[string]bool, len(rows))
	out := make([]Drug, 0, len(rows))
	for _, r := range rows {
		if r.Drug.ID == "" || seen[r.Drug.ID] {
			continue
		}
		seen[r.Drug.ID] = true
		out = append(out, Drug{ID: r.Drug.ID, Name: r.Drug.Name, Phase: r.Phase})
	}
	return out, nil
}
