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

// ChemblClient serves bioactivity lookups: molecules active against a target
// symbol, and mechanism-of-action target hints for a drug name.
type ChemblClient struct {
	http *httpJSON
	base string
}

func NewChemblClient(log *logger.Logger, c cache.Cache, base string, timeout, cacheTTL time.Duration) *ChemblClient {
	return &ChemblClient{
		http: newHTTPJSON(log.With("source", SourceChembl), c, timeout, cacheTTL),
		base: strings.TrimRight(base, "/"),
	}
}

func (c *ChemblClient) SearchDrugs(ctx context.Context, text string, n int) ([]Drug, error) {
	params := url.Values{}
	params.Set("pref_name__icontains", text)
	params.Set("limit", fmt.Sprintf("%d", n))

	endpoint := fmt.Sprintf("%s/molecule.json?%s", c.base, params.Encode())
	key := fmt.Sprintf("chembl:molecule:%s:%d", strings.ToUpper(text), n)

	var resp struct {
		Molecules []struct {
			ChemblID string `json:"molecule_chembl_id"`
			PrefName string `json:"pref_name"`
			MaxPhase string `json:"max_phase"`
		} `json:"molecules"`
	}
	if err := c.http.getJSON(ctx, key, endpoint, &resp); err != nil {
		return nil, err
	}

	out := make([]Drug, 0, len(resp.Molecules))
	for _, m := range resp.Molecules {
		if m.ChemblID == "" {
			continue
		}
		phase := 0
		fmt.Sscanf(m.MaxPhase, "%d", &phase)
		out = append(out, Drug{ID: m.ChemblID, Name: m.PrefName, Phase: phase})
	}
	return out, nil
}

func (c *ChemblClient) TargetActivityDrugs(ctx context.Context, symbol string, n int) ([]Drug, error) {
	params := url.Values{}
	params.Set("target_pref_name__icontains", symbol)
	params.Set("pchembl_value__isnull", "false")
	params.Set("order_by", "-pchembl_value")
	params.Set("limit", fmt.Sprintf("%d", n))

	endpoint := fmt.Sprintf("%s/activity.json?%s", c.base, params.Encode())
	key := fmt.Sprintf("chembl:activity:%s:%d", strings.ToUpper(symbol), n)

	var resp struct {
		Activities []struct {
			MoleculeID   string `json:"molecule_chembl_id"`
			MoleculeName string `json:"molecule_pref_name"`
			Pchembl      string `json:"pchembl_value"`
		} `json:"activities"`
	}
	if err := c.http.getJSON(ctx, key, endpoint, &resp); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	out := make([]Drug, 0, len(resp.Activities))
	for _, a := range resp.Activities {
		if a.MoleculeID == "" || seen[a.MoleculeID] {
			continue
		}
		seen[a.MoleculeID] = true
		name := a.MoleculeName
		if name == "" {
			name = a.MoleculeID
		}
		out = append(out, Drug{ID: a.MoleculeID, Name: name, Potency: parsePotency(a.Pchembl)})
	}
	return out, nil
}

func (c *ChemblClient) DrugTargetHints(ctx context.Context, drugName string) ([]string, error) {
	params := url.Values{}
	params.Set("molecule_pref_name__iexact", drugName)
	params.Set("limit", "10")

	endpoint := fmt.Sprintf("%s/mechanism.json?%s", c.base, params.Encode())
	key := "chembl:mechanism:" + strings.ToUpper(drugName)

	var resp struct {
		Mechanisms []struct {
			MechanismOfAction string `json:"mechanism_of_action"`
			TargetName        string `json:"target_pref_name"`
		} `json:"mechanisms"`
	}
	if err := c.http.getJSON(ctx, key, endpoint, &resp); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var hints []string
	for _, m := range resp.Mechanisms {
		hint := strings.TrimSpace(m.TargetName)
		if hint == "" || seen[strings.ToUpper(hint)] {
			continue
		}
		seen[strings.ToUpper(hint)] = true
		hints = append(hints, hint)
	}
	return hints, nil
}

func parsePotency(s string) float64 {
	var v float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &v)
	if err != nil {
		return 0
	}
	return v
}
