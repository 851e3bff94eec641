package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/growthdesk/growthdesk-go/pkg/contextstore"
	"github.com/growthdesk/growthdesk-go/pkg/labs"
	"github.com/growthdesk/growthdesk-go/pkg/models"
	"github.com/growthdesk/growthdesk-go/utils"
)

var serviceNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type serviceFixture struct {
	store    *contextstore.SQLiteStore
	registry *labs.Registry
	service  *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store, err := contextstore.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.SaveCompany(&models.Company{
		ID:         "c1",
		Name:       "StridePath",
		WebsiteURL: "https://stridepath.example",
		Industry:   "Athletic footwear",
	}); err != nil {
		t.Fatalf("failed to save company: %v", err)
	}

	catalog := labs.NewCatalog()
	registry := labs.NewRegistry()
	adapter := labs.NewAdapter(registry, catalog, store)
	service := NewService(store, catalog, adapter, nil, nil).
		WithClock(func() time.Time { return serviceNow }).
		WithEventBus(utils.NewEventBus())

	return &serviceFixture{store: store, registry: registry, service: service}
}

func staticEngine(data map[string]any, score float64) labs.Engine {
	return labs.EngineFunc(func(ctx context.Context, input labs.EngineInput) (*labs.EngineResult, error) {
		return &labs.EngineResult{Success: true, Data: data, Score: score}, nil
	})
}

func (f *serviceFixture) registerAllEngines() {
	for _, id := range models.AllLabIDs {
		f.registry.Register(id, staticEngine(map[string]any{}, 50))
	}
}

func TestRunFailsWithoutCompanyID(t *testing.T) {
	f := newServiceFixture(t)
	output := f.service.RunFullGAPOrchestrator(context.Background(), models.OrchestratorInput{})
	if output.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(output.Error, "company_id") {
		t.Errorf("unexpected error %q", output.Error)
	}
}

func TestRunFailsForUnknownCompany(t *testing.T) {
	f := newServiceFixture(t)
	output := f.service.RunFullGAPOrchestrator(context.Background(), models.OrchestratorInput{CompanyID: "ghost"})
	if output.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(output.Error, "not found") {
		t.Errorf("unexpected error %q", output.Error)
	}
}

func TestRunMergesSuccessfulLabs(t *testing.T) {
	f := newServiceFixture(t)
	f.registerAllEngines()
	f.registry.Register(models.LabBrand, staticEngine(map[string]any{
		"positioning": "Performance everyday shoes",
		"value_props": []any{"comfort", "durability"},
		"summary":     "Brand fundamentals in place",
	}, 70))

	output := f.service.RunFullGAPOrchestrator(context.Background(), models.OrchestratorInput{CompanyID: "c1"})

	if !output.Success {
		t.Fatalf("expected success, got error %q", output.Error)
	}
	if len(output.LabsRun) == 0 {
		t.Fatal("expected labs to run")
	}

	graph, err := f.store.LoadContextGraph("c1")
	if err != nil {
		t.Fatalf("failed to load graph: %v", err)
	}
	cell, ok := graph.Field(models.DomainBrand, "positioning")
	if !ok || !cell.IsPopulated() {
		t.Fatal("expected brand.positioning persisted")
	}
	prov := cell.CurrentProvenance()
	if prov == nil || prov.Source != "brand_lab" {
		t.Errorf("unexpected provenance %+v", prov)
	}
	if output.HealthAfter.Completeness <= output.HealthBefore.Completeness {
		t.Errorf("expected completeness to improve: before %d after %d",
			output.HealthBefore.Completeness, output.HealthAfter.Completeness)
	}
}

func TestRunDegradesOnLabFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.registerAllEngines()
	f.registry.Register(models.LabSEO, labs.EngineFunc(func(ctx context.Context, input labs.EngineInput) (*labs.EngineResult, error) {
		return &labs.EngineResult{Success: false, Error: "crawler blocked"}, nil
	}))

	output := f.service.RunFullGAPOrchestrator(context.Background(), models.OrchestratorInput{CompanyID: "c1"})

	if !output.Success {
		t.Fatalf("one failing lab must not fail the run: %q", output.Error)
	}
	found := false
	for _, warning := range output.Warnings {
		if strings.Contains(warning, "seo") && strings.Contains(warning, "crawler blocked") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected seo failure warning, got %v", output.Warnings)
	}
	for _, id := range output.LabsRun {
		if id == string(models.LabSEO) {
			t.Error("failed lab must not count as run")
		}
	}
}

func TestRunConvertsLabPanicToFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.registerAllEngines()
	f.registry.Register(models.LabOps, labs.EngineFunc(func(ctx context.Context, input labs.EngineInput) (*labs.EngineResult, error) {
		panic("nil map write")
	}))

	output := f.service.RunFullGAPOrchestrator(context.Background(), models.OrchestratorInput{CompanyID: "c1"})

	if !output.Success {
		t.Fatalf("a panicking lab must not fail the run: %q", output.Error)
	}
	var opsOutput *models.LabRefinementOutput
	for i := range output.LabOutputs {
		if output.LabOutputs[i].LabID == models.LabOps {
			opsOutput = &output.LabOutputs[i]
		}
	}
	if opsOutput == nil {
		t.Fatal("expected ops lab output")
	}
	if opsOutput.Success || !strings.Contains(opsOutput.Error, "lab panicked") {
		t.Errorf("unexpected ops output %+v", opsOutput)
	}
}

func TestRunSkipLabs(t *testing.T) {
	f := newServiceFixture(t)
	f.registerAllEngines()

	skip := []models.LabID{models.LabBrand, models.LabSEO}
	output := f.service.RunFullGAPOrchestrator(context.Background(), models.OrchestratorInput{
		CompanyID: "c1",
		SkipLabs:  skip,
	})

	if !output.Success {
		t.Fatalf("unexpected failure: %q", output.Error)
	}
	for _, id := range output.LabsRun {
		for _, skipped := range skip {
			if id == string(skipped) {
				t.Errorf("skipped lab %s was run", id)
			}
		}
	}
}

func TestRunDryRunPersistsNothing(t *testing.T) {
	f := newServiceFixture(t)
	engineCalls := 0
	for _, id := range models.AllLabIDs {
		f.registry.Register(id, labs.EngineFunc(func(ctx context.Context, input labs.EngineInput) (*labs.EngineResult, error) {
			engineCalls++
			return &labs.EngineResult{Success: true, Data: map[string]any{}, Score: 50}, nil
		}))
	}

	output := f.service.RunFullGAPOrchestrator(context.Background(), models.OrchestratorInput{
		CompanyID: "c1",
		DryRun:    true,
	})

	if !output.Success {
		t.Fatalf("unexpected failure: %q", output.Error)
	}
	if engineCalls != 0 {
		t.Errorf("dry run executed %d lab engines", engineCalls)
	}
	if len(output.LabsRun) != 0 || len(output.LabOutputs) != 0 {
		t.Errorf("dry run reported executed labs: run %v, outputs %d",
			output.LabsRun, len(output.LabOutputs))
	}
	if output.Plan == nil || len(output.Plan.Items) == 0 {
		t.Error("dry run must still produce a plan")
	}
	if output.Findings == nil {
		t.Error("dry run must still return shaped findings")
	}
	if output.CompetitionGap != nil {
		t.Error("dry run must not touch the competition gap")
	}
	if output.SnapshotID != "" {
		t.Error("dry run must not create a snapshot")
	}

	graph, err := f.store.LoadContextGraph("c1")
	if err != nil {
		t.Fatalf("failed to load graph: %v", err)
	}
	if graph != nil {
		t.Error("dry run must not persist a context graph")
	}
	snapshots, err := f.store.ListSnapshotsByCompany("c1")
	if err != nil {
		t.Fatalf("failed to list snapshots: %v", err)
	}
	if len(snapshots) != 0 {
		t.Errorf("dry run persisted %d snapshots", len(snapshots))
	}
	persisted, err := f.store.ListInsightsByCompany("c1")
	if err != nil {
		t.Fatalf("failed to list insights: %v", err)
	}
	if len(persisted) != 0 {
		t.Errorf("dry run persisted %d insights", len(persisted))
	}
	logs, err := f.store.ListRunLogsByCompany("c1")
	if err != nil {
		t.Fatalf("failed to list run logs: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("dry run persisted %d run logs", len(logs))
	}
}

func TestRunRecordsSnapshotAndRunLog(t *testing.T) {
	f := newServiceFixture(t)
	f.registerAllEngines()
	f.registry.Register(models.LabBrand, staticEngine(map[string]any{
		"positioning": "Performance everyday shoes",
		"issues":      []any{"No messaging pillars"},
		"quick_wins":  []any{"Add testimonials above the fold"},
	}, 70))

	output := f.service.RunFullGAPOrchestrator(context.Background(), models.OrchestratorInput{
		CompanyID:  "c1",
		GapIARunID: "plan-123",
	})

	if !output.Success {
		t.Fatalf("unexpected failure: %q", output.Error)
	}
	if output.SnapshotID == "" {
		t.Fatal("expected a snapshot id")
	}

	snapshot, err := f.store.GetSnapshot(output.SnapshotID)
	if err != nil {
		t.Fatalf("failed to load snapshot: %v", err)
	}
	if snapshot == nil {
		t.Fatal("snapshot not persisted")
	}
	if snapshot.Changes.FieldsAdded == 0 {
		t.Error("expected added fields in snapshot changes")
	}
	if snapshot.Changes.InsightsCreated != len(output.Insights) {
		t.Errorf("insight count mismatch: %d vs %d",
			snapshot.Changes.InsightsCreated, len(output.Insights))
	}
	if len(snapshot.LabsRun) != len(output.LabsRun) {
		t.Errorf("labs run mismatch: %v vs %v", snapshot.LabsRun, output.LabsRun)
	}

	logs, err := f.store.ListRunLogsByCompany("c1")
	if err != nil {
		t.Fatalf("failed to list run logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 run log, got %d", len(logs))
	}
	if logs[0].PlanID != "plan-123" {
		t.Errorf("unexpected plan id %q", logs[0].PlanID)
	}
	if logs[0].QuickWinsCount != 1 {
		t.Errorf("expected 1 quick win, got %d", logs[0].QuickWinsCount)
	}
}

func TestRunFallbackFindingsWithoutGapEngine(t *testing.T) {
	f := newServiceFixture(t)
	f.registerAllEngines()
	f.registry.Register(models.LabBrand, staticEngine(map[string]any{
		"summary": "Brand fundamentals in place",
	}, 90))

	output := f.service.RunFullGAPOrchestrator(context.Background(), models.OrchestratorInput{CompanyID: "c1"})

	if !output.Success {
		t.Fatalf("unexpected failure: %q", output.Error)
	}
	if output.Findings == nil {
		t.Fatal("expected fallback findings")
	}
	if output.Findings.MaturityStage == "" {
		t.Error("expected a maturity stage")
	}
	if score, ok := output.Findings.Scores["brand"]; !ok || score != 90 {
		t.Errorf("expected brand dimension score 90, got %d (%v)", score, ok)
	}
}

type staticGapEngine struct {
	findings *models.GAPStructuredOutput
	calls    int
}

func (e *staticGapEngine) Synthesize(ctx context.Context, company *models.Company, graph *models.CompanyContextGraph, labOutputs []models.LabRefinementOutput) (*models.GAPStructuredOutput, error) {
	e.calls++
	return e.findings, nil
}

func seedField(t *testing.T, graph *models.CompanyContextGraph, domain, field string, value any, source string) {
	t.Helper()
	cells, ok := graph.Domains[domain]
	if !ok {
		t.Fatalf("unknown domain %s", domain)
	}
	cells[field] = &models.ContextField{
		Value: value,
		Provenance: []models.ProvenanceEntry{{
			Source:     source,
			UpdatedAt:  serviceNow.AddDate(0, 0, -1),
			Confidence: 0.9,
		}},
	}
}

func TestRunHealthUsesInjectedClock(t *testing.T) {
	f := newServiceFixture(t)
	f.registerAllEngines()

	graph, err := f.store.GetOrCreateContextGraph("c1", "StridePath")
	if err != nil {
		t.Fatalf("failed to create graph: %v", err)
	}
	graph.Domains[models.DomainBrand]["positioning"] = &models.ContextField{
		Value: "Performance everyday shoes",
		Provenance: []models.ProvenanceEntry{{
			Source:    "User",
			UpdatedAt: time.Now(),
		}},
	}
	if err := f.store.SaveContextGraph(graph, "seed"); err != nil {
		t.Fatalf("failed to save graph: %v", err)
	}

	// A clock far past the wall clock makes every field stale; wall-clock
	// assessment would report it fresh.
	farFuture := time.Now().AddDate(10, 0, 0)
	f.service.WithClock(func() time.Time { return farFuture })

	output := f.service.RunFullGAPOrchestrator(context.Background(), models.OrchestratorInput{
		CompanyID: "c1",
		DryRun:    true,
	})

	if !output.Success {
		t.Fatalf("unexpected failure: %q", output.Error)
	}
	if output.HealthBefore.Freshness != 0 {
		t.Errorf("expected freshness 0 under the injected clock, got %d",
			output.HealthBefore.Freshness)
	}
	if len(output.HealthBefore.StaleFields) == 0 {
		t.Error("expected stale fields under the injected clock")
	}
}

func TestRunPreservesConfirmedAndCompetitiveFields(t *testing.T) {
	f := newServiceFixture(t)
	f.registerAllEngines()
	// The seo lab's projections never touch identity; its business_model
	// claim reaches the graph only through canonical extraction.
	f.registry.Register(models.LabSEO, staticEngine(map[string]any{
		"business_model": "Marketplace aggregator",
	}, 60))
	gapEngine := &staticGapEngine{findings: &models.GAPStructuredOutput{
		Scores:             map[string]int{"brand": 55},
		OverallScore:       55,
		MaturityStage:      models.MaturityDeveloping,
		AudienceSummary:    "Everyone aged 18-80",
		BrandIdentityNotes: "Bold and loud",
	}}
	f.service.gapEngine = gapEngine

	graph, err := f.store.GetOrCreateContextGraph("c1", "StridePath")
	if err != nil {
		t.Fatalf("failed to create graph: %v", err)
	}
	seedField(t, graph, models.DomainIdentity, "businessModel", "DTC ecommerce", "User")
	seedField(t, graph, models.DomainAudience, "audienceSummary", "Runners aged 25-40", "User")
	seedField(t, graph, models.DomainCompetitive, "competitors", []any{"Nike", "Hoka"}, "competition_gap_runner")
	seedField(t, graph, models.DomainCompetitive, "positionSummary", "challenger", "competition_gap_runner")
	if err := f.store.SaveContextGraph(graph, "seed"); err != nil {
		t.Fatalf("failed to save graph: %v", err)
	}

	output := f.service.RunFullGAPOrchestrator(context.Background(), models.OrchestratorInput{CompanyID: "c1"})
	if !output.Success {
		t.Fatalf("unexpected failure: %q", output.Error)
	}
	if gapEngine.calls != 1 {
		t.Fatalf("expected 1 gap engine call, got %d", gapEngine.calls)
	}

	after, err := f.store.LoadContextGraph("c1")
	if err != nil {
		t.Fatalf("failed to reload graph: %v", err)
	}

	confirmed := []struct {
		domain, field string
		want          string
	}{
		{models.DomainIdentity, "businessModel", "DTC ecommerce"},
		{models.DomainAudience, "audienceSummary", "Runners aged 25-40"},
	}
	for _, tc := range confirmed {
		cell, ok := after.Field(tc.domain, tc.field)
		if !ok {
			t.Fatalf("%s.%s missing after run", tc.domain, tc.field)
		}
		if cell.Value != tc.want {
			t.Errorf("%s.%s overwritten: got %v, want %q", tc.domain, tc.field, cell.Value, tc.want)
		}
		if prov := cell.CurrentProvenance(); prov == nil || prov.Source != "User" {
			t.Errorf("%s.%s provenance changed: %+v", tc.domain, tc.field, prov)
		}
	}

	for _, field := range []string{"competitors", "positionSummary"} {
		cell, ok := after.Field(models.DomainCompetitive, field)
		if !ok {
			t.Fatalf("competitive.%s missing after run", field)
		}
		if prov := cell.CurrentProvenance(); prov == nil || prov.Source != "competition_gap_runner" {
			t.Errorf("competitive.%s written by something other than the competition runner: %+v", field, prov)
		}
	}
	competitors, ok := after.Field(models.DomainCompetitive, "competitors")
	if !ok {
		t.Fatal("competitive.competitors missing")
	}
	if list, isList := competitors.Value.([]any); !isList || len(list) != 2 {
		t.Errorf("competitive.competitors changed: %v", competitors.Value)
	}

	// Positive control: the unpopulated allow-listed cell accepts the
	// proposal.
	notes, ok := after.Field(models.DomainBrand, "brandIdentityNotes")
	if !ok || notes.Value != "Bold and loud" {
		t.Errorf("expected gap proposal on brand.brandIdentityNotes, got %v (%v)", notes, ok)
	}
}

func TestRunSkipsGapEngineWithoutWebsiteURL(t *testing.T) {
	f := newServiceFixture(t)
	if err := f.store.SaveCompany(&models.Company{
		ID:   "c2",
		Name: "NoSite Co",
	}); err != nil {
		t.Fatalf("failed to save company: %v", err)
	}
	f.registerAllEngines()
	gapEngine := &staticGapEngine{findings: &models.GAPStructuredOutput{
		Scores:       map[string]int{},
		OverallScore: 50,
	}}
	f.service.gapEngine = gapEngine

	output := f.service.RunFullGAPOrchestrator(context.Background(), models.OrchestratorInput{CompanyID: "c2"})
	if !output.Success {
		t.Fatalf("unexpected failure: %q", output.Error)
	}
	if gapEngine.calls != 0 {
		t.Errorf("gap engine invoked %d times without a website url", gapEngine.calls)
	}
	if output.Findings == nil {
		t.Error("expected fallback findings")
	}
}

func TestMaturityStageFor(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{95, models.MaturityLeading},
		{80, models.MaturityLeading},
		{79, models.MaturityScaling},
		{60, models.MaturityScaling},
		{59, models.MaturityDeveloping},
		{40, models.MaturityDeveloping},
		{39, models.MaturityEmerging},
		{0, models.MaturityEmerging},
	}
	for _, tc := range cases {
		if got := MaturityStageFor(tc.score); got != tc.want {
			t.Errorf("MaturityStageFor(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}
