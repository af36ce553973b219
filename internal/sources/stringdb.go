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

// StringClient fetches protein-protein interaction networks from STRING.
type StringClient struct {
	http *httpJSON
	base string
}

func NewStringClient(log *logger.Logger, c cache.Cache, base string, timeout, cacheTTL time.Duration) *StringClient {
	return &StringClient{
		http: newHTTPJSON(log.With("source", SourceString), c, timeout, cacheTTL),
		base: strings.TrimRight(base, "/"),
	}
}

func (c *StringClient) InteractionNetwork(ctx context.Context, symbols []string, confidence float64, maxNeighbors int) (Network, error) {
	if len(symbols) == 0 {
		return Network{}, nil
	}

	params := url.Values{}
	params.Set("identifiers", strings.Join(symbols, "\r"))
	params.Set("species", "9606")
	params.Set("required_score", fmt.Sprintf("%d", int(confidence*1000)))
	params.Set("add_nodes", fmt.Sprintf("%d", maxNeighbors))
	params.Set("caller_identity", "meridian")

	endpoint := fmt.Sprintf("%s/json/network?%s", c.base, params.Encode())
	key := fmt.Sprintf("string:net:%s:%.2f:%d", strings.ToUpper(strings.Join(symbols, ",")), confidence, maxNeighbors)

	var resp []struct {
		A     string  `json:"preferredName_A"`
		B     string  `json:"preferredName_B"`
		Score float64 `json:"score"`
	}
	if err := c.http.getJSON(ctx, key, endpoint, &resp); err != nil {
		return Network{}, err
	}

	net := Network{}
	seen := map[string]bool{}
	for _, row := range resp {
		if row.A == "" || row.B == "" || row.A == row.B {
			continue
		}
		net.Edges = append(net.Edges, Interaction{A: row.A, B: row.B, Score: row.Score})
		for _, sym := range []string{row.A, row.B} {
			if !seen[sym] {
				seen[sym] = true
				net.Nodes = append(net.Nodes, sym)
			}
		}
	}
	return net, nil
}
