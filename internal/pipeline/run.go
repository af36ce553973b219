package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/atlasbio/meridian/internal/bridge"
	"github.com/atlasbio/meridian/internal/graph"
	"github.com/atlasbio/meridian/internal/logger"
	"github.com/atlasbio/meridian/internal/ranking"
	"github.com/atlasbio/meridian/internal/resolver"
	"github.com/atlasbio/meridian/internal/sources"
)

// PhaseToggles lets a caller skip the optional evidence phases P2-P5.
type PhaseToggles struct {
	SkipPathways     bool `json:"skipPathways"`
	SkipDrugs        bool `json:"skipDrugs"`
	SkipInteractions bool `json:"skipInteractions"`
	SkipLiterature   bool `json:"skipLiterature"`
}

// RunRequest starts one evidence-fusion run.
type RunRequest struct {
	Query       string       `json:"query"`
	SessionID   string       `json:"sessionId,omitempty"`
	Novelty     *int         `json:"novelty,omitempty"`
	Risk        *int         `json:"risk,omitempty"`
	Toggles     PhaseToggles `json:"toggles"`
	SeedSymbols []string     `json:"seedSymbols,omitempty"`
}

// Run is the external handle on an in-flight run: an event stream and a
// cancel switch.
type Run struct {
	ID        string
	SessionID string
	Query     string

	events chan Event
	cancel context.CancelFunc

	doneOnce sync.Once
	done     chan struct{}
}

func (r *Run) Events() <-chan Event { return r.events }

// Cancel aborts in-flight work; graph merges stay atomic.
func (r *Run) Cancel() { r.cancel() }

// Done closes when the run has finished and the event channel is closed.
func (r *Run) Done() <-chan struct{} { return r.done }

func (r *Run) finish() {
	r.doneOnce.Do(func() {
		close(r.events)
		close(r.done)
	})
}

// runState is the RunContext: all per-run mutable state, owned exclusively
// by this run's task tree. Nothing here is shared across runs. The mutex
// covers seq/pct and the accumulators, which batch items update
// concurrently within a phase.
type runState struct {
	run *Run
	req RunRequest
	log *logger.Logger

	store  *graph.Store
	health *HealthTracker
	sink   PatchSink

	mu         sync.Mutex
	plan       resolver.Plan
	lastBridge *bridge.Result

	// Per-target evidence accumulators, keyed by target node primary id.
	assoc        map[string]float64
	symbols      map[string]string
	pathways     map[string]int
	drugs        map[string]int
	interactions map[string]int
	articles     map[string]int
	trials       map[string]int

	seq     int64
	pct     int
	partial bool
	started time.Time
}

func newRunState(run *Run, req RunRequest, log *logger.Logger) *runState {
	return &runState{
		run:          run,
		req:          req,
		log:          log.With("run_id", run.ID),
		store:        graph.NewStore(),
		health: NewHealthTracker(
			sources.SourceOpenTargets,
			sources.SourceReactome,
			sources.SourceString,
			sources.SourceChembl,
			sources.SourceEuropePMC,
			sources.SourceClinicalTrials,
		),
		assoc:        map[string]float64{},
		symbols:      map[string]string{},
		pathways:     map[string]int{},
		drugs:        map[string]int{},
		interactions: map[string]int{},
		articles:     map[string]int{},
		trials:       map[string]int{},
		started:      time.Now(),
	}
}

// emit delivers an event unless the run is cancelled. A slow consumer backs
// the pipeline up against the buffered channel rather than losing events.
func (rs *runState) emit(ctx context.Context, ev Event) {
	rs.mu.Lock()
	rs.seq++
	ev.Seq = rs.seq
	rs.mu.Unlock()

	ev.RunID = rs.run.ID
	ev.At = time.Now()
	select {
	case rs.run.events <- ev:
	case <-ctx.Done():
	}
}

// setPct enforces monotonic non-decreasing progress per run.
func (rs *runState) setPct(pct int) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if pct > rs.pct {
		rs.pct = pct
	}
	return rs.pct
}

// recordTarget registers target evidence; the strongest association wins.
func (rs *runState) recordTarget(targetID, symbol string, score float64) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if score > rs.assoc[targetID] {
		rs.assoc[targetID] = score
	} else if _, ok := rs.assoc[targetID]; !ok {
		rs.assoc[targetID] = score
	}
	if symbol != "" {
		rs.symbols[targetID] = symbol
	}
}

func (rs *runState) recordPathways(targetID string, n int) {
	rs.mu.Lock()
	rs.pathways[targetID] += n
	rs.mu.Unlock()
}

func (rs *runState) recordDrugs(targetID string, n int) {
	rs.mu.Lock()
	rs.drugs[targetID] += n
	rs.mu.Unlock()
}

func (rs *runState) recordInteractions(targetID string, n int) {
	rs.mu.Lock()
	rs.interactions[targetID] += n
	rs.mu.Unlock()
}

func (rs *runState) recordLiterature(targetID string, articles, trials int) {
	rs.mu.Lock()
	rs.articles[targetID] += articles
	rs.trials[targetID] += trials
	rs.mu.Unlock()
}

// symbolFor returns the accumulated symbol for a target id.
func (rs *runState) symbolFor(targetID string) string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.symbols[targetID]
}

func (rs *runState) targetCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.assoc)
}

func (rs *runState) emitStatus(ctx context.Context, phase, message string, pct int, partial bool, counts map[string]int) {
	rs.emit(ctx, Event{
		Type: EventStatus,
		Status: &PhaseStatus{
			Phase:        phase,
			Message:      message,
			Pct:          rs.setPct(pct),
			Counts:       counts,
			SourceHealth: rs.health.Snapshot(),
			Partial:      partial,
		},
	})
	if partial {
		rs.markPartial()
	}
}

func (rs *runState) emitPatch(ctx context.Context, nodes []graph.Node, edges []graph.Edge) {
	newNodes := rs.store.UpsertNodes(nodes)
	newEdges := rs.store.UpsertEdges(edges)
	if len(newNodes) == 0 && len(newEdges) == 0 {
		return
	}
	patch := graph.Patch{Nodes: newNodes, Edges: newEdges}
	if rs.sink != nil {
		// Mirroring is fire and forget; it must never slow the run down.
		go rs.sink.ApplyPatch(context.Background(), rs.run.ID, patch)
	}
	rs.emit(ctx, Event{Type: EventGraphPatch, Patch: &patch})
}

func (rs *runState) emitError(ctx context.Context, phase, message string, recoverable bool) {
	rs.emit(ctx, Event{Type: EventError, Error: &ErrorPayload{Phase: phase, Message: message, Recoverable: recoverable}})
}

func (rs *runState) emitBridge(ctx context.Context) {
	anchors := rs.anchors()
	if len(anchors) < 2 {
		return
	}
	nodes, edges := rs.store.Snapshot()
	result := bridge.Analyze(anchors, nodes, edges)
	rs.mu.Lock()
	rs.lastBridge = &result
	rs.mu.Unlock()
	rs.emit(ctx, Event{Type: EventPathUpdate, Bridge: &result})
}

func (rs *runState) emitRanking(ctx context.Context, stage string, ranked []ranking.Ranked) {
	rs.emit(ctx, Event{Type: EventRanking, RankingStage: stage, Ranking: ranked})
}

// rankingRows snapshots the accumulators into scorer input.
func (rs *runState) rankingRows() []ranking.Row {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rows := make([]ranking.Row, 0, len(rs.assoc))
	for targetID, score := range rs.assoc {
		rows = append(rows, ranking.Row{
			TargetID:         targetID,
			Symbol:           rs.symbols[targetID],
			AssociationScore: score,
			DrugCount:        rs.drugs[targetID],
			InteractionCount: rs.interactions[targetID],
			ArticleCount:     rs.articles[targetID],
			TrialCount:       rs.trials[targetID],
		})
	}
	return rows
}

// topTargets returns up to n target ids ordered by association strength.
func (rs *runState) topTargets(n int) []string {
	rows := rs.rankingRows()
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].AssociationScore > rows[j].AssociationScore
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.TargetID)
	}
	return ids
}

func (rs *runState) markPartial() {
	rs.mu.Lock()
	rs.partial = true
	rs.mu.Unlock()
}

func (rs *runState) isPartial() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.partial
}

func (rs *runState) anchors() []resolver.Anchor {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.plan.Anchors
}

func (rs *runState) stats() *RunStats {
	return &RunStats{
		Nodes:      rs.store.NodeCount(),
		Edges:      rs.store.EdgeCount(),
		Anchors:    len(rs.anchors()),
		Partial:    rs.isPartial(),
		DurationMS: time.Since(rs.started).Milliseconds(),
		Health:     rs.health.Snapshot(),
	}
}
