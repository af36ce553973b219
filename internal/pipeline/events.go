package pipeline

import (
	"time"

	"github.com/atlasbio/meridian/internal/bridge"
	"github.com/atlasbio/meridian/internal/graph"
	"github.com/atlasbio/meridian/internal/ranking"
	"github.com/atlasbio/meridian/internal/resolver"
)

type EventType string

const (
	EventStatus     EventType = "status"
	EventGraphPatch EventType = "graph_patch"
	EventRanking    EventType = "ranking"
	EventPathUpdate EventType = "path_update"
	EventEnrichment EventType = "enrichment_ready"
	EventError      EventType = "error"
	EventDone       EventType = "done"
)

// Pipeline phase names.
const (
	PhaseResolve      = "P0"
	PhaseTargets      = "P1"
	PhasePathways     = "P2"
	PhaseDrugs        = "P3"
	PhaseInteractions = "P4"
	PhaseLiterature   = "P5"
	PhaseRank         = "P6"
)

// PhaseStatus is the progress snapshot for one phase. Pct is monotonic
// non-decreasing across a whole run.
type PhaseStatus struct {
	Phase        string            `json:"phase"`
	Message      string            `json:"message"`
	Pct          int               `json:"pct"`
	Counts       map[string]int    `json:"counts,omitempty"`
	SourceHealth map[string]Health `json:"sourceHealth"`
	Partial      bool              `json:"partial"`
}

type ErrorPayload struct {
	Phase       string `json:"phase"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

type RunStats struct {
	Nodes      int               `json:"nodes"`
	Edges      int               `json:"edges"`
	Anchors    int               `json:"anchors"`
	Partial    bool              `json:"partial"`
	DurationMS int64             `json:"durationMs"`
	Health     map[string]Health `json:"sourceHealth"`
}

// Event is the transport-agnostic streaming unit. graph_patch payloads are
// additive deltas; consumers merge, never replace.
type Event struct {
	Type         EventType        `json:"type"`
	RunID        string           `json:"runId"`
	Seq          int64            `json:"seq"`
	At           time.Time        `json:"at"`
	Status       *PhaseStatus     `json:"status,omitempty"`
	Patch        *graph.Patch     `json:"patch,omitempty"`
	Plan         *resolver.Plan   `json:"plan,omitempty"`
	Ranking      []ranking.Ranked `json:"ranking,omitempty"`
	RankingStage string           `json:"rankingStage,omitempty"`
	Bridge       *bridge.Result   `json:"bridge,omitempty"`
	Error        *ErrorPayload    `json:"error,omitempty"`
	Stats        *RunStats        `json:"stats,omitempty"`
}
