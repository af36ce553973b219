package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasbio/meridian/internal/config"
	"github.com/atlasbio/meridian/internal/logger"
	"github.com/atlasbio/meridian/internal/sources"
)

// fakeSources serves a tiny asthma/IL6 world. gate, when set, blocks disease
// search until closed so tests can hold a run open.
type fakeSources struct {
	gate           chan struct{}
	pathwayErr     bool
	pathwayTimeout bool
	trialsErr      bool
}

func (f *fakeSources) SearchDiseases(ctx context.Context, text string, _ int) ([]sources.Disease, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if strings.Contains(strings.ToLower(text), "asthma") {
		return []sources.Disease{{ID: "EFO_0000270", Name: "asthma"}}, nil
	}
	return nil, nil
}

func (f *fakeSources) DiseaseTargetsSummary(_ context.Context, diseaseID string, _ int) ([]sources.TargetAssociation, error) {
	if diseaseID != "EFO_0000270" {
		return nil, nil
	}
	return []sources.TargetAssociation{
		{TargetID: "ENSG00000136244", TargetSymbol: "IL6", TargetName: "interleukin 6", AssociationScore: 0.8},
		{TargetID: "ENSG00000232810", TargetSymbol: "TNF", TargetName: "tumor necrosis factor", AssociationScore: 0.6},
	}, nil
}

func (f *fakeSources) SearchTargets(_ context.Context, text string, _ int) ([]sources.Target, error) {
	if strings.EqualFold(text, "il6") {
		return []sources.Target{{ID: "ENSG00000136244", Name: "IL6"}}, nil
	}
	return nil, nil
}

func (f *fakeSources) KnownDrugsForTarget(_ context.Context, targetID string, _ int) ([]sources.Drug, error) {
	if targetID == "ENSG00000136244" {
		return []sources.Drug{{ID: "CHEMBL1201837", Name: "TOCILIZUMAB", Phase: 4}}, nil
	}
	return nil, nil
}

func (f *fakeSources) PathwaysByGene(_ context.Context, symbol string) ([]sources.Pathway, error) {
	if f.pathwayTimeout {
		return nil, context.DeadlineExceeded
	}
	if f.pathwayErr {
		return nil, fmt.Errorf("reactome unavailable")
	}
	return []sources.Pathway{{ID: "R-HSA-6785807", Name: "Interleukin-4 and Interleukin-13 signaling"}}, nil
}

func (f *fakeSources) InteractionNetwork(_ context.Context, _ []string, _ float64, _ int) (sources.Network, error) {
	return sources.Network{
		Nodes: []string{"IL6", "TNF", "STAT3"},
		Edges: []sources.Interaction{
			{A: "IL6", B: "TNF", Score: 0.9},
			{A: "IL6", B: "STAT3", Score: 0.7},
		},
	}, nil
}

func (f *fakeSources) SearchDrugs(_ context.Context, _ string, _ int) ([]sources.Drug, error) {
	return nil, nil
}

func (f *fakeSources) TargetActivityDrugs(_ context.Context, _ string, _ int) ([]sources.Drug, error) {
	return nil, nil
}

func (f *fakeSources) DrugTargetHints(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (f *fakeSources) SearchArticles(_ context.Context, _, _, _ string) ([]sources.Article, error) {
	return []sources.Article{{ID: "PMC1"}, {ID: "PMC2"}, {ID: "PMC3"}}, nil
}

func (f *fakeSources) SearchTrials(_ context.Context, _, _, _ string) ([]sources.Trial, error) {
	if f.trialsErr {
		return nil, fmt.Errorf("clinicaltrials unavailable")
	}
	return []sources.Trial{{ID: "NCT001"}}, nil
}

func fakeCatalog(f *fakeSources) sources.Catalog {
	return sources.Catalog{
		Diseases:     f,
		Targets:      f,
		Pathways:     f,
		Interactions: f,
		Drugs:        f,
		Literature:   f,
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Pipeline.BatchDelayMS = 0
	cfg.Pipeline.PhaseBudgetMS = 3000
	cfg.Pipeline.RunBudgetMS = 15000
	return cfg
}

// drainEvents consumes a run's stream in the background so the pipeline
// never blocks on a full channel.
func drainEvents(run *Run) {
	for range run.Events() {
	}
}

func collectEvents(t *testing.T, run *Run) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(20 * time.Second)
	for {
		select {
		case ev, open := <-run.Events():
			if !open {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("run did not finish in time")
		}
	}
}

func TestRunHappyPathWithDegradedSource(t *testing.T) {
	f := &fakeSources{pathwayErr: true}
	o := NewOrchestrator(logger.NewNop(), testConfig(), fakeCatalog(f), nil, nil)

	run, err := o.Start(RunRequest{Query: "What is the relationship between asthma and IL6?"})
	require.NoError(t, err)

	events := collectEvents(t, run)
	require.NotEmpty(t, events)

	var done *Event
	var patches, rankings, pathUpdates int
	lastPct := 0
	for i := range events {
		ev := events[i]
		switch ev.Type {
		case EventStatus:
			// Progress never goes backwards.
			assert.GreaterOrEqual(t, ev.Status.Pct, lastPct)
			lastPct = ev.Status.Pct
		case EventGraphPatch:
			patches++
			assert.False(t, ev.Patch.Empty())
		case EventRanking:
			rankings++
			assert.Equal(t, "deterministic", ev.RankingStage)
			assert.Len(t, ev.Ranking, 2)
			assert.Equal(t, "IL6", ev.Ranking[0].Symbol)
		case EventPathUpdate:
			pathUpdates++
		case EventDone:
			done = &events[i]
		}
	}

	assert.Equal(t, 100, lastPct)
	assert.Greater(t, patches, 0)
	assert.Equal(t, 1, rankings)
	assert.Greater(t, pathUpdates, 0)

	require.NotNil(t, done)
	require.NotNil(t, done.Stats)
	assert.Greater(t, done.Stats.Nodes, 2)
	assert.Greater(t, done.Stats.Edges, 0)
	assert.Equal(t, 2, done.Stats.Anchors)

	// Every pathway call failed, so reactome ends the run red while the
	// healthy sources stay green.
	assert.Equal(t, HealthRed, done.Stats.Health[sources.SourceReactome])
	assert.Equal(t, HealthGreen, done.Stats.Health[sources.SourceOpenTargets])
	assert.Equal(t, HealthGreen, done.Stats.Health[sources.SourceString])
}

func TestPathwayTimeoutsStayYellowAndMarkPhasePartial(t *testing.T) {
	f := &fakeSources{pathwayTimeout: true}
	o := NewOrchestrator(logger.NewNop(), testConfig(), fakeCatalog(f), nil, nil)

	run, err := o.Start(RunRequest{Query: "What is the relationship between asthma and IL6?"})
	require.NoError(t, err)

	events := collectEvents(t, run)

	phases := map[string]*PhaseStatus{}
	var done *Event
	for i := range events {
		ev := events[i]
		if ev.Type == EventStatus {
			phases[ev.Status.Phase] = ev.Status
		}
		if ev.Type == EventDone {
			done = &events[i]
		}
	}

	// Timeouts are transient degradation: yellow, never red.
	require.NotNil(t, done)
	assert.Equal(t, HealthYellow, done.Stats.Health[sources.SourceReactome])

	require.NotNil(t, phases[PhasePathways])
	assert.True(t, phases[PhasePathways].Partial)

	// The later phases still run to completion.
	assert.NotNil(t, phases[PhaseDrugs])
	assert.NotNil(t, phases[PhaseInteractions])
	assert.NotNil(t, phases[PhaseLiterature])
	assert.NotNil(t, phases[PhaseRank])
	assert.Equal(t, 100, phases[PhaseRank].Pct)
}

func TestTrialsOutageDegradesClinicalTrialsOnly(t *testing.T) {
	f := &fakeSources{trialsErr: true}
	o := NewOrchestrator(logger.NewNop(), testConfig(), fakeCatalog(f), nil, nil)

	run, err := o.Start(RunRequest{Query: "What is the relationship between asthma and IL6?"})
	require.NoError(t, err)

	events := collectEvents(t, run)

	var done *Event
	var litPhase *PhaseStatus
	var sawArticleCounts bool
	for i := range events {
		ev := events[i]
		switch ev.Type {
		case EventStatus:
			if ev.Status.Phase == PhaseLiterature {
				litPhase = ev.Status
			}
		case EventGraphPatch:
			for _, n := range ev.Patch.Nodes {
				if n.Meta["articleCount"] == 3 {
					sawArticleCounts = true
				}
			}
		case EventDone:
			done = &events[i]
		}
	}

	// The trials half failing hard for every target lands on the trials
	// source alone; the article half stays green and its results flow.
	require.NotNil(t, done)
	assert.Equal(t, HealthRed, done.Stats.Health[sources.SourceClinicalTrials])
	assert.Equal(t, HealthGreen, done.Stats.Health[sources.SourceEuropePMC])
	assert.True(t, sawArticleCounts)

	require.NotNil(t, litPhase)
	assert.True(t, litPhase.Partial)
}

func TestRunZeroAnchorsDegradesGracefully(t *testing.T) {
	f := &fakeSources{}
	o := NewOrchestrator(logger.NewNop(), testConfig(), fakeCatalog(f), nil, nil)

	run, err := o.Start(RunRequest{Query: "completely unrelated gibberish text"})
	require.NoError(t, err)

	events := collectEvents(t, run)

	var sawError, sawDone, sawPlaceholder bool
	for _, ev := range events {
		switch ev.Type {
		case EventError:
			assert.True(t, ev.Error.Recoverable)
			sawError = true
		case EventGraphPatch:
			for _, n := range ev.Patch.Nodes {
				if n.Meta["degraded"] == true {
					sawPlaceholder = true
				}
			}
		case EventDone:
			sawDone = true
			assert.True(t, ev.Stats.Partial)
		}
	}

	assert.True(t, sawError)
	assert.True(t, sawPlaceholder)
	assert.True(t, sawDone)
}

func TestRunRejectsEmptyQuery(t *testing.T) {
	o := NewOrchestrator(logger.NewNop(), testConfig(), fakeCatalog(&fakeSources{}), nil, nil)
	_, err := o.Start(RunRequest{Query: "   "})
	assert.Error(t, err)
}

func TestSessionAllowsOneActiveRun(t *testing.T) {
	f := &fakeSources{gate: make(chan struct{})}
	o := NewOrchestrator(logger.NewNop(), testConfig(), fakeCatalog(f), nil, nil)

	first, err := o.Start(RunRequest{Query: "asthma and IL6?", SessionID: "s1"})
	require.NoError(t, err)
	go drainEvents(first)

	_, err = o.Start(RunRequest{Query: "asthma again?", SessionID: "s1"})
	assert.ErrorIs(t, err, ErrSessionBusy)

	// A different session is unaffected.
	other, err := o.Start(RunRequest{Query: "asthma and IL6?", SessionID: "s2"})
	require.NoError(t, err)
	go drainEvents(other)

	close(f.gate)
	<-first.Done()

	// The slot frees up once the run winds down.
	third, err := o.Start(RunRequest{Query: "asthma and IL6?", SessionID: "s1"})
	require.NoError(t, err)
	go drainEvents(third)
	<-third.Done()
	<-other.Done()
}

func TestFinishedRunsAreEvicted(t *testing.T) {
	f := &fakeSources{}
	o := NewOrchestrator(logger.NewNop(), testConfig(), fakeCatalog(f), nil, nil)
	o.retention = 10 * time.Millisecond

	run, err := o.Start(RunRequest{Query: "asthma and IL6?"})
	require.NoError(t, err)
	go drainEvents(run)
	<-run.Done()

	assert.Eventually(t, func() bool {
		_, ok := o.Get(run.ID)
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestInterruptCancelsRun(t *testing.T) {
	f := &fakeSources{gate: make(chan struct{})}
	o := NewOrchestrator(logger.NewNop(), testConfig(), fakeCatalog(f), nil, nil)

	run, err := o.Start(RunRequest{Query: "asthma and IL6?", SessionID: "s1"})
	require.NoError(t, err)
	go drainEvents(run)

	assert.True(t, o.Interrupt(run.ID))
	assert.False(t, o.Interrupt(run.ID))

	select {
	case <-run.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("interrupted run did not stop")
	}
}

func TestPhaseTogglesSkipWork(t *testing.T) {
	f := &fakeSources{}
	o := NewOrchestrator(logger.NewNop(), testConfig(), fakeCatalog(f), nil, nil)

	run, err := o.Start(RunRequest{
		Query: "asthma and IL6?",
		Toggles: PhaseToggles{
			SkipPathways:     true,
			SkipDrugs:        true,
			SkipInteractions: true,
			SkipLiterature:   true,
		},
	})
	require.NoError(t, err)

	events := collectEvents(t, run)

	phases := map[string]bool{}
	var sawRanking bool
	for _, ev := range events {
		if ev.Type == EventStatus {
			phases[ev.Status.Phase] = true
		}
		if ev.Type == EventRanking {
			sawRanking = true
		}
	}

	assert.True(t, phases[PhaseResolve])
	assert.True(t, phases[PhaseTargets])
	assert.False(t, phases[PhasePathways])
	assert.False(t, phases[PhaseDrugs])
	assert.False(t, phases[PhaseInteractions])
	assert.False(t, phases[PhaseLiterature])
	// Ranking always runs.
	assert.True(t, phases[PhaseRank])
	assert.True(t, sawRanking)
}
