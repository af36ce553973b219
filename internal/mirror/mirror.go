package mirror

import (
	"context"
	"time"

	"github.com/atlasbio/meridian/internal/graph"
	"github.com/atlasbio/meridian/internal/logger"
)

// Mirror persists committed graph deltas into Memgraph for post-run
// inspection. The in-run store stays authoritative; mirror failures are
// logged and otherwise ignored.
type Mirror struct {
	log     *logger.Logger
	driver  GraphDriver
	timeout time.Duration
}

func New(log *logger.Logger, driver GraphDriver) *Mirror {
	return &Mirror{log: log, driver: driver, timeout: 5 * time.Second}
}

// EnsureIndices creates lookup indices. Failures are tolerated since the
// indices may already exist.
func (m *Mirror) EnsureIndices(ctx context.Context) {
	queries := []string{
		"CREATE INDEX ON :Evidence(id);",
		"CREATE INDEX ON :Evidence(run_id);",
	}
	for _, q := range queries {
		if _, err := m.driver.ExecuteQuery(ctx, q, nil); err != nil {
			m.log.Debug("index creation skipped", "query", q, "error", err)
		}
	}
}

// ApplyPatch upserts a delta keyed by the deterministic node and edge ids,
// scoped to the run. Re-applying the same patch is a no-op.
func (m *Mirror) ApplyPatch(ctx context.Context, runID string, patch graph.Patch) {
	if patch.Empty() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	for _, node := range patch.Nodes {
		params := map[string]interface{}{
			"id":         node.ID,
			"run_id":     runID,
			"type":       string(node.Type),
			"primary_id": node.PrimaryID,
			"label":      node.Label,
			"score":      node.Score,
		}
		_, err := m.driver.ExecuteQuery(ctx, `
			MERGE (n:Evidence {id: $id, run_id: $run_id})
			SET n.type = $type, n.primary_id = $primary_id,
			    n.label = $label, n.score = $score`, params)
		if err != nil {
			m.log.Warn("mirror node upsert failed", "node", node.ID, "error", err)
			return
		}
	}

	for _, edge := range patch.Edges {
		params := map[string]interface{}{
			"id":     edge.ID,
			"run_id": runID,
			"source": edge.Source,
			"target": edge.Target,
			"type":   string(edge.Type),
			"weight": edge.Weight,
		}
		_, err := m.driver.ExecuteQuery(ctx, `
			MATCH (a:Evidence {id: $source, run_id: $run_id})
			MATCH (b:Evidence {id: $target, run_id: $run_id})
			MERGE (a)-[r:RELATES {id: $id}]->(b)
			SET r.type = $type, r.weight = $weight`, params)
		if err != nil {
			m.log.Warn("mirror edge upsert failed", "edge", edge.ID, "error", err)
			return
		}
	}
}
