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

// ReactomeClient resolves pathway membership for a gene symbol via the
// Reactome ContentService mapping endpoint.
type ReactomeClient struct {
	http *httpJSON
	base string
}

func NewReactomeClient(log *logger.Logger, c cache.Cache, base string, timeout, cacheTTL time.Duration) *ReactomeClient {
	return &ReactomeClient{
		http: newHTTPJSON(log.With("source", SourceReactome), c, timeout, cacheTTL),
		base: strings.TrimRight(base, "/"),
	}
}

func (c *ReactomeClient) PathwaysByGene(ctx context.Context, symbol string) ([]Pathway, error) {
	var resp []struct {
		StID        string `json:"stId"`
		DisplayName string `json:"displayName"`
		SpeciesName string `json:"speciesName"`
	}

	endpoint := fmt.Sprintf("%s/data/mapping/UniProt/%s/pathways?species=9606", c.base, url.PathEscape(symbol))
	key := "reactome:pathways:" + strings.ToUpper(symbol)
	if err := c.http.getJSON(ctx, key, endpoint, &resp); err != nil {
		return nil, err
	}

	out := make([]Pathway, 0, len(resp))
	for _, p := range resp {
		if p.StID == "" {
			continue
		}
		out = append(out, Pathway{ID: p.StID, Name: p.DisplayName, Species: p.SpeciesName})
	}
	return out, nil
}
