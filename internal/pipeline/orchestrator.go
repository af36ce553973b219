package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/atlasbio/meridian/internal/config"
	"github.com/atlasbio/meridian/internal/graph"
	"github.com/atlasbio/meridian/internal/llm"
	"github.com/atlasbio/meridian/internal/logger"
	"github.com/atlasbio/meridian/internal/ranking"
	"github.com/atlasbio/meridian/internal/resolver"
	"github.com/atlasbio/meridian/internal/sources"
)

// PatchSink receives every committed graph delta, best effort. Failures must
// never slow down or fail the run.
type PatchSink interface {
	ApplyPatch(ctx context.Context, runID string, patch graph.Patch)
}

// finishedRunRetention keeps completed runs reachable by id long enough for
// a late event-stream attachment, after which they are evicted.
const finishedRunRetention = 5 * time.Minute

// Orchestrator owns run lifecycles: it admits runs per session, executes the
// phased fan-out and streams events through each run's channel.
type Orchestrator struct {
	log       *logger.Logger
	cfg       *config.Config
	catalog   sources.Catalog
	llm       llm.LLMClient
	planner   *resolver.Planner
	registry  *SessionRegistry
	sink      PatchSink
	retention time.Duration

	mu   sync.Mutex
	runs map[string]*Run
}

func NewOrchestrator(log *logger.Logger, cfg *config.Config, catalog sources.Catalog, client llm.LLMClient, sink PatchSink) *Orchestrator {
	return &Orchestrator{
		log:       log,
		cfg:       cfg,
		catalog:   catalog,
		llm:       client,
		planner:   resolver.NewPlanner(log, client, catalog, cfg),
		registry:  NewSessionRegistry(),
		retention: finishedRunRetention,
		runs:      make(map[string]*Run),
	}
}

// Start admits and launches a run. It fails fast with ErrSessionBusy when the
// session already has an active run.
func (o *Orchestrator) Start(req RunRequest) (*Run, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	req.Query = query

	runID := uuid.New().String()
	if err := o.registry.Acquire(req.SessionID, runID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &Run{
		ID:        runID,
		SessionID: req.SessionID,
		Query:     query,
		events:    make(chan Event, 64),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	o.mu.Lock()
	o.runs[runID] = run
	o.mu.Unlock()

	go o.execute(ctx, run, req)
	return run, nil
}

// Get returns a live or recently finished run by id.
func (o *Orchestrator) Get(runID string) (*Run, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	run, ok := o.runs[runID]
	return run, ok
}

// Interrupt cancels a run by id and drops it from the registry. Handlers
// already draining the event channel keep their reference; the channel
// closes once the run winds down.
func (o *Orchestrator) Interrupt(runID string) bool {
	o.mu.Lock()
	run, ok := o.runs[runID]
	if ok {
		delete(o.runs, runID)
	}
	o.mu.Unlock()
	if !ok {
		return false
	}
	run.Cancel()
	return true
}

func (o *Orchestrator) evict(runID string) {
	o.mu.Lock()
	delete(o.runs, runID)
	o.mu.Unlock()
}

func (o *Orchestrator) toggles(req RunRequest) PhaseToggles {
	t := req.Toggles
	t.SkipPathways = t.SkipPathways || o.cfg.Pipeline.SkipPathways
	t.SkipDrugs = t.SkipDrugs || o.cfg.Pipeline.SkipDrugs
	t.SkipInteractions = t.SkipInteractions || o.cfg.Pipeline.SkipInteractions
	t.SkipLiterature = t.SkipLiterature || o.cfg.Pipeline.SkipLiterature
	return t
}

// execute runs all phases. cancelCtx reflects only explicit interruption;
// runCtx adds the whole-run deadline and phase contexts add per-phase
// deadlines on top. Events are emitted against cancelCtx so that partial
// results still flow after a budget expires.
func (o *Orchestrator) execute(cancelCtx context.Context, run *Run, req RunRequest) {
	rs := newRunState(run, req, o.log)
	rs.sink = o.sink

	defer func() {
		o.registry.Release(run.SessionID, run.ID)
		run.finish()
		time.AfterFunc(o.retention, func() { o.evict(run.ID) })
	}()

	runCtx, cancelRun := context.WithTimeout(cancelCtx, time.Duration(o.cfg.Pipeline.RunBudgetMS)*time.Millisecond)
	defer cancelRun()

	toggles := o.toggles(req)

	o.phaseResolve(cancelCtx, runCtx, rs)
	o.phaseTargets(cancelCtx, runCtx, rs)
	if !toggles.SkipPathways {
		o.phasePathways(cancelCtx, runCtx, rs)
	}
	if !toggles.SkipDrugs {
		o.phaseDrugs(cancelCtx, runCtx, rs)
	}
	if !toggles.SkipInteractions {
		o.phaseInteractions(cancelCtx, runCtx, rs)
	}
	if !toggles.SkipLiterature {
		o.phaseLiterature(cancelCtx, runCtx, rs)
	}

	// Ranking always runs, even after the run budget is spent: it only
	// needs the evidence accumulated so far.
	o.phaseRank(cancelCtx, rs)

	rs.emit(cancelCtx, Event{Type: EventDone, Stats: rs.stats()})
	rs.log.Info("run finished",
		"nodes", rs.store.NodeCount(),
		"edges", rs.store.EdgeCount(),
		"partial", rs.isPartial(),
		"duration_ms", time.Since(rs.started).Milliseconds(),
	)
}

// phaseCtx layers the per-phase budget on top of the run budget.
func (o *Orchestrator) phaseCtx(runCtx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(runCtx, time.Duration(o.cfg.Pipeline.PhaseBudgetMS)*time.Millisecond)
}

// closePhase reports phase completion, marking it partial when its context
// expired before all work ran or any source degraded during the phase.
func (rs *runState) closePhase(evCtx, phaseCtx context.Context, phase, message string, pct int, counts map[string]int) {
	partial := phaseCtx.Err() != nil || rs.health.PhaseDegraded()
	rs.emitStatus(evCtx, phase, message, pct, partial, counts)
	rs.emitBridge(evCtx)
}

func (o *Orchestrator) phaseResolve(evCtx, runCtx context.Context, rs *runState) {
	rs.health.BeginPhase()
	rs.emitStatus(evCtx, PhaseResolve, "resolving entities", 5, false, nil)

	ctx, cancel := o.phaseCtx(runCtx)
	defer cancel()

	plan := o.planner.Plan(ctx, rs.req.Query, rs.health)
	rs.mu.Lock()
	rs.plan = plan
	rs.mu.Unlock()

	if len(plan.Anchors) == 0 {
		// Keep the run alive in degraded form: a placeholder node for the
		// raw query so downstream consumers have something to render.
		node := graph.NewNode(graph.NodeDisease, "query:"+rs.req.Query, rs.req.Query, 0)
		node.Meta["degraded"] = true
		rs.emitPatch(evCtx, []graph.Node{node}, nil)
		rs.emitError(evCtx, PhaseResolve, "no entities could be resolved from the query", true)
		rs.emit(evCtx, Event{
			Type:   EventStatus,
			Plan:   &plan,
			Status: &PhaseStatus{Phase: PhaseResolve, Message: "resolved 0 anchors", Pct: rs.setPct(15), SourceHealth: rs.health.Snapshot(), Partial: true},
		})
		rs.markPartial()
		return
	}

	nodes := make([]graph.Node, 0, len(plan.Anchors))
	for _, a := range plan.Anchors {
		var nt graph.NodeType
		switch a.EntityType {
		case resolver.EntityDisease:
			nt = graph.NodeDisease
		case resolver.EntityDrug:
			nt = graph.NodeDrug
		default:
			nt = graph.NodeTarget
		}
		node := graph.NewNode(nt, a.ID, a.Name, a.Confidence)
		node.Meta["anchor"] = true
		node.Meta["mention"] = a.Mention
		node.Meta["resolvedBy"] = a.Source
		nodes = append(nodes, node)

		if nt == graph.NodeTarget {
			rs.recordTarget(a.ID, a.Name, a.Confidence)
		}
	}
	rs.emitPatch(evCtx, nodes, nil)

	rs.emit(evCtx, Event{
		Type: EventStatus,
		Plan: &plan,
		Status: &PhaseStatus{
			Phase:        PhaseResolve,
			Message:      fmt.Sprintf("resolved %d anchors", len(plan.Anchors)),
			Pct:          rs.setPct(15),
			Counts:       map[string]int{"anchors": len(plan.Anchors), "unresolved": len(plan.UnresolvedMentions)},
			SourceHealth: rs.health.Snapshot(),
		},
	})
}

func (o *Orchestrator) phaseTargets(evCtx, runCtx context.Context, rs *runState) {
	rs.health.BeginPhase()
	rs.emitStatus(evCtx, PhaseTargets, "expanding disease targets", 20, false, nil)

	ctx, cancel := o.phaseCtx(runCtx)
	defer cancel()

	var diseases []resolver.Anchor
	for _, a := range rs.anchors() {
		if a.EntityType == resolver.EntityDisease {
			diseases = append(diseases, a)
		}
	}

	var attempts atomic.Int64
	forEachBatch(ctx, diseases, o.cfg.Pipeline.BatchSize, o.batchDelay(), func(ctx context.Context, anchor resolver.Anchor) {
		attempts.Add(1)
		assocs := sources.Guarded(ctx, rs.log, rs.health, sources.SourceOpenTargets, nil,
			func(ctx context.Context) ([]sources.TargetAssociation, error) {
				return o.catalog.Diseases.DiseaseTargetsSummary(ctx, anchor.ID, o.cfg.Pipeline.MaxTargets)
			})

		diseaseNodeID := graph.NodeID(graph.NodeDisease, anchor.ID)
		nodes := make([]graph.Node, 0, len(assocs))
		edges := make([]graph.Edge, 0, len(assocs))
		for _, assoc := range assocs {
			rs.recordTarget(assoc.TargetID, assoc.TargetSymbol, assoc.AssociationScore)
			node := graph.NewNode(graph.NodeTarget, assoc.TargetID, assoc.TargetSymbol, assoc.AssociationScore)
			node.Meta["name"] = assoc.TargetName
			nodes = append(nodes, node)
			edges = append(edges, graph.NewEdge(diseaseNodeID, node.ID, graph.EdgeDiseaseTarget, assoc.AssociationScore))
		}
		rs.emitPatch(evCtx, nodes, edges)
	})
	rs.health.FinalizePhase(sources.SourceOpenTargets, int(attempts.Load()))

	// Seed symbols keep the run useful when association expansion came back
	// empty (no disease anchors, or the source is down).
	if rs.targetCount() == 0 {
		o.seedTargets(evCtx, ctx, rs)
	}

	rs.closePhase(evCtx, ctx, PhaseTargets, "target expansion complete", 35, map[string]int{"targets": rs.targetCount()})
}

func (o *Orchestrator) seedTargets(evCtx, ctx context.Context, rs *runState) {
	seeds := rs.req.SeedSymbols
	if len(seeds) == 0 {
		seeds = o.cfg.Pipeline.SeedSymbols
	}
	if len(seeds) == 0 {
		return
	}

	forEachBatch(ctx, seeds, o.cfg.Pipeline.BatchSize, o.batchDelay(), func(ctx context.Context, symbol string) {
		hits := sources.Guarded(ctx, rs.log, rs.health, sources.SourceOpenTargets, nil,
			func(ctx context.Context) ([]sources.Target, error) {
				return o.catalog.Targets.SearchTargets(ctx, symbol, 1)
			})
		if len(hits) == 0 {
			return
		}
		hit := hits[0]
		rs.recordTarget(hit.ID, hit.Name, 0.5)
		node := graph.NewNode(graph.NodeTarget, hit.ID, hit.Name, 0.5)
		node.Meta["seeded"] = true
		rs.emitPatch(evCtx, []graph.Node{node}, nil)
	})
}

func (o *Orchestrator) phasePathways(evCtx, runCtx context.Context, rs *runState) {
	rs.health.BeginPhase()
	rs.emitStatus(evCtx, PhasePathways, "mapping pathways", 40, false, nil)

	ctx, cancel := o.phaseCtx(runCtx)
	defer cancel()

	targets := rs.topTargets(o.cfg.Pipeline.MaxTargets)
	var attempts atomic.Int64
	forEachBatch(ctx, targets, o.cfg.Pipeline.BatchSize, o.batchDelay(), func(ctx context.Context, targetID string) {
		symbol := rs.symbolFor(targetID)
		if symbol == "" {
			return
		}
		attempts.Add(1)
		pathways := sources.Guarded(ctx, rs.log, rs.health, sources.SourceReactome, nil,
			func(ctx context.Context) ([]sources.Pathway, error) {
				return o.catalog.Pathways.PathwaysByGene(ctx, symbol)
			})
		if len(pathways) == 0 {
			return
		}

		targetNodeID := graph.NodeID(graph.NodeTarget, targetID)
		nodes := make([]graph.Node, 0, len(pathways))
		edges := make([]graph.Edge, 0, len(pathways))
		for _, pw := range pathways {
			node := graph.NewNode(graph.NodePathway, pw.ID, pw.Name, 0)
			if pw.Species != "" {
				node.Meta["species"] = pw.Species
			}
			nodes = append(nodes, node)
			edges = append(edges, graph.NewEdge(targetNodeID, node.ID, graph.EdgeTargetPathway, 1))
		}
		rs.recordPathways(targetID, len(pathways))
		rs.emitPatch(evCtx, nodes, edges)
	})
	rs.health.FinalizePhase(sources.SourceReactome, int(attempts.Load()))

	rs.closePhase(evCtx, ctx, PhasePathways, "pathway mapping complete", 50, nil)
}

func (o *Orchestrator) phaseDrugs(evCtx, runCtx context.Context, rs *runState) {
	rs.health.BeginPhase()
	rs.emitStatus(evCtx, PhaseDrugs, "collecting drug evidence", 55, false, nil)

	ctx, cancel := o.phaseCtx(runCtx)
	defer cancel()

	targets := rs.topTargets(o.cfg.Pipeline.MaxTargets)
	var otAttempts, chAttempts atomic.Int64
	forEachBatch(ctx, targets, o.cfg.Pipeline.BatchSize, o.batchDelay(), func(ctx context.Context, targetID string) {
		otAttempts.Add(1)
		drugs := sources.Guarded(ctx, rs.log, rs.health, sources.SourceOpenTargets, nil,
			func(ctx context.Context) ([]sources.Drug, error) {
				return o.catalog.Targets.KnownDrugsForTarget(ctx, targetID, 10)
			})

		// Bioactivity fallback when no approved or clinical drugs are known.
		if len(drugs) == 0 {
			if symbol := rs.symbolFor(targetID); symbol != "" {
				chAttempts.Add(1)
				drugs = sources.Guarded(ctx, rs.log, rs.health, sources.SourceChembl, nil,
					func(ctx context.Context) ([]sources.Drug, error) {
						return o.catalog.Drugs.TargetActivityDrugs(ctx, symbol, 10)
					})
			}
		}
		if len(drugs) == 0 {
			return
		}

		targetNodeID := graph.NodeID(graph.NodeTarget, targetID)
		nodes := make([]graph.Node, 0, len(drugs))
		edges := make([]graph.Edge, 0, len(drugs))
		for _, d := range drugs {
			node := graph.NewNode(graph.NodeDrug, d.ID, d.Name, 0)
			if d.Phase > 0 {
				node.Meta["maxPhase"] = d.Phase
			}
			if d.Potency > 0 {
				node.Meta["potency"] = d.Potency
			}
			nodes = append(nodes, node)
			edges = append(edges, graph.NewEdge(targetNodeID, node.ID, graph.EdgeTargetDrug, 1))
		}
		rs.recordDrugs(targetID, len(drugs))
		rs.emitPatch(evCtx, nodes, edges)
	})
	rs.health.FinalizePhase(sources.SourceOpenTargets, int(otAttempts.Load()))
	rs.health.FinalizePhase(sources.SourceChembl, int(chAttempts.Load()))

	rs.closePhase(evCtx, ctx, PhaseDrugs, "drug evidence complete", 62, nil)
}

func (o *Orchestrator) phaseInteractions(evCtx, runCtx context.Context, rs *runState) {
	rs.health.BeginPhase()
	rs.emitStatus(evCtx, PhaseInteractions, "building interaction network", 66, false, nil)

	ctx, cancel := o.phaseCtx(runCtx)
	defer cancel()

	targets := rs.topTargets(o.cfg.Pipeline.MaxTargets)
	byLabel := make(map[string]string, len(targets)) // upper symbol -> target primary id
	symbols := make([]string, 0, len(targets))
	for _, id := range targets {
		if symbol := rs.symbolFor(id); symbol != "" {
			symbols = append(symbols, symbol)
			byLabel[strings.ToUpper(symbol)] = id
		}
	}

	if len(symbols) > 0 {
		network := sources.Guarded(ctx, rs.log, rs.health, sources.SourceString, sources.Network{},
			func(ctx context.Context) (sources.Network, error) {
				return o.catalog.Interactions.InteractionNetwork(ctx, symbols, 0.7, 5)
			})
		rs.health.FinalizePhase(sources.SourceString, 1)

		var nodes []graph.Node
		var edges []graph.Edge
		endpoint := func(symbol string) string {
			if id, ok := byLabel[strings.ToUpper(symbol)]; ok {
				return graph.NodeID(graph.NodeTarget, id)
			}
			// Partners outside the ranked set come in as lightweight
			// interaction nodes keyed by symbol.
			node := graph.NewNode(graph.NodeInteraction, symbol, symbol, 0)
			nodes = append(nodes, node)
			return node.ID
		}
		for _, edge := range network.Edges {
			a, b := endpoint(edge.A), endpoint(edge.B)
			if a == b {
				continue
			}
			edges = append(edges, graph.NewEdge(a, b, graph.EdgeTargetTarget, edge.Score))
			if id, ok := byLabel[strings.ToUpper(edge.A)]; ok {
				rs.recordInteractions(id, 1)
			}
			if id, ok := byLabel[strings.ToUpper(edge.B)]; ok {
				rs.recordInteractions(id, 1)
			}
		}
		rs.emitPatch(evCtx, nodes, edges)
	}

	rs.closePhase(evCtx, ctx, PhaseInteractions, "interaction network complete", 74, nil)
}

func (o *Orchestrator) phaseLiterature(evCtx, runCtx context.Context, rs *runState) {
	rs.health.BeginPhase()
	rs.emitStatus(evCtx, PhaseLiterature, "enriching with literature and trials", 78, false, nil)

	ctx, cancel := o.phaseCtx(runCtx)
	defer cancel()

	disease := rs.req.Query
	for _, a := range rs.anchors() {
		if a.EntityType == resolver.EntityDisease {
			disease = a.Name
			break
		}
	}

	targets := rs.topTargets(o.cfg.Pipeline.MaxLiteratureTargets)
	var pmcAttempts, ctAttempts atomic.Int64
	forEachBatch(ctx, targets, o.cfg.Pipeline.BatchSize, o.batchDelay(), func(ctx context.Context, targetID string) {
		symbol := rs.symbolFor(targetID)
		if symbol == "" {
			return
		}
		pmcAttempts.Add(1)
		articles := sources.Guarded(ctx, rs.log, rs.health, sources.SourceEuropePMC, nil,
			func(ctx context.Context) ([]sources.Article, error) {
				return o.catalog.Literature.SearchArticles(ctx, disease, symbol, "")
			})
		ctAttempts.Add(1)
		trials := sources.Guarded(ctx, rs.log, rs.health, sources.SourceClinicalTrials, nil,
			func(ctx context.Context) ([]sources.Trial, error) {
				return o.catalog.Literature.SearchTrials(ctx, disease, symbol, "")
			})
		if len(articles) == 0 && len(trials) == 0 {
			return
		}

		rs.recordLiterature(targetID, len(articles), len(trials))
		node := graph.Node{
			ID:   graph.NodeID(graph.NodeTarget, targetID),
			Meta: map[string]interface{}{"articleCount": len(articles), "trialCount": len(trials)},
		}
		rs.emitPatch(evCtx, []graph.Node{node}, nil)
	})
	rs.health.FinalizePhase(sources.SourceEuropePMC, int(pmcAttempts.Load()))
	rs.health.FinalizePhase(sources.SourceClinicalTrials, int(ctAttempts.Load()))

	rs.emit(evCtx, Event{Type: EventEnrichment})
	rs.closePhase(evCtx, ctx, PhaseLiterature, "enrichment complete", 88, nil)
}

// phaseRank always runs: the deterministic pass needs nothing external, and
// the refinement pass is strictly optional.
func (o *Orchestrator) phaseRank(evCtx context.Context, rs *runState) {
	rs.emitStatus(evCtx, PhaseRank, "ranking targets", 92, false, nil)

	novelty, risk := o.cfg.Ranking.NoveltySlider, o.cfg.Ranking.RiskSlider
	if rs.req.Novelty != nil {
		novelty = *rs.req.Novelty
	}
	if rs.req.Risk != nil {
		risk = *rs.req.Risk
	}

	ranked := ranking.Rank(rs.rankingRows(), ranking.WeightsFromSliders(novelty, risk))
	rs.emitRanking(evCtx, "deterministic", ranked)

	if o.llm != nil && len(ranked) >= 2 {
		refined, err := ranking.Refine(evCtx, o.llm, rs.req.Query, ranked,
			o.cfg.Prompts.Refine, time.Duration(o.cfg.Ranking.RefineTimeoutMS)*time.Millisecond)
		if err != nil {
			rs.log.Warn("ranking refinement discarded", "error", err)
		} else {
			rs.emitRanking(evCtx, "refined", refined)
		}
	}

	rs.emitBridge(evCtx)
	rs.emitStatus(evCtx, PhaseRank, "ranking complete", 100, false, map[string]int{"ranked": len(ranked)})
}

func (o *Orchestrator) batchDelay() time.Duration {
	return time.Duration(o.cfg.Pipeline.BatchDelayMS) * time.Millisecond
}
