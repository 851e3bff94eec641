package competition

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthdesk/growthdesk-go/pkg/contextstore"
	"github.com/growthdesk/growthdesk-go/pkg/labs"
	"github.com/growthdesk/growthdesk-go/pkg/models"
)

var runnerNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRunnerFixture(t *testing.T, engine labs.Engine) (*Runner, *contextstore.SQLiteStore) {
	t.Helper()
	store, err := contextstore.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	company := &models.Company{
		ID:            "c1",
		Name:          "StridePath",
		WebsiteURL:    "https://stridepath.example",
		Industry:      "Athletic footwear",
		BusinessModel: "DTC ecommerce brand",
		CreatedAt:     runnerNow,
		UpdatedAt:     runnerNow,
	}
	require.NoError(t, store.SaveCompany(company))

	runner := NewRunner(store, engine).WithClock(func() time.Time { return runnerNow })
	return runner, store
}

func competitorEngine(data map[string]any) labs.Engine {
	return labs.EngineFunc(func(ctx context.Context, input labs.EngineInput) (*labs.EngineResult, error) {
		return &labs.EngineResult{Success: true, Data: data}, nil
	})
}

func seedCompetitors(t *testing.T, store *contextstore.SQLiteStore, updatedAt time.Time, validForDays int) {
	t.Helper()
	graph, err := store.GetOrCreateContextGraph("c1", "StridePath")
	require.NoError(t, err)
	graph.Domains[models.DomainCompetitive]["competitors"] = &models.ContextField{
		Value: []any{map[string]any{"name": "Nike"}},
		Provenance: []models.ProvenanceEntry{
			{Source: WriterID, UpdatedAt: updatedAt, Confidence: 0.85, ValidForDays: validForDays},
		},
	}
	require.NoError(t, store.SaveContextGraph(graph, WriterID))
}

func TestIsCacheValidBoundary(t *testing.T) {
	t.Run("29 day old entry is valid", func(t *testing.T) {
		runner, store := newRunnerFixture(t, competitorEngine(nil))
		seedCompetitors(t, store, runnerNow.AddDate(0, 0, -29), 30)

		graph, err := store.LoadContextGraph("c1")
		require.NoError(t, err)
		valid, validUntil := runner.IsCacheValid(graph)
		assert.True(t, valid)
		require.NotNil(t, validUntil)
		assert.Equal(t, runnerNow.AddDate(0, 0, 1), *validUntil)
	})

	t.Run("31 day old entry is invalid", func(t *testing.T) {
		runner, store := newRunnerFixture(t, competitorEngine(nil))
		seedCompetitors(t, store, runnerNow.AddDate(0, 0, -31), 30)

		graph, err := store.LoadContextGraph("c1")
		require.NoError(t, err)
		valid, _ := runner.IsCacheValid(graph)
		assert.False(t, valid)
	})

	t.Run("custom validity window is honored", func(t *testing.T) {
		runner, store := newRunnerFixture(t, competitorEngine(nil))
		seedCompetitors(t, store, runnerNow.AddDate(0, 0, -31), 60)

		graph, err := store.LoadContextGraph("c1")
		require.NoError(t, err)
		valid, _ := runner.IsCacheValid(graph)
		assert.True(t, valid)
	})

	t.Run("fails closed without a graph", func(t *testing.T) {
		runner, _ := newRunnerFixture(t, competitorEngine(nil))
		valid, _ := runner.IsCacheValid(nil)
		assert.False(t, valid)
	})
}

func TestRunCachedFastPath(t *testing.T) {
	engineCalls := 0
	engine := labs.EngineFunc(func(ctx context.Context, input labs.EngineInput) (*labs.EngineResult, error) {
		engineCalls++
		return &labs.EngineResult{Success: true, Data: map[string]any{}}, nil
	})
	runner, store := newRunnerFixture(t, engine)
	seedCompetitors(t, store, runnerNow.AddDate(0, 0, -5), 30)

	result := runner.Run(context.Background(), "c1", false)

	assert.True(t, result.Success)
	assert.True(t, result.Cached)
	assert.Equal(t, 1, result.Competitors)
	assert.Equal(t, 0, engineCalls, "cached run must not invoke the engine")
}

func TestRunForceBypassesCache(t *testing.T) {
	engineCalls := 0
	engine := labs.EngineFunc(func(ctx context.Context, input labs.EngineInput) (*labs.EngineResult, error) {
		engineCalls++
		return &labs.EngineResult{Success: true, Data: map[string]any{
			"competitors":      []any{"Nike", "Hoka"},
			"position_summary": "Premium challenger in performance running",
		}}, nil
	})
	runner, store := newRunnerFixture(t, engine)
	seedCompetitors(t, store, runnerNow.AddDate(0, 0, -5), 30)

	result := runner.Run(context.Background(), "c1", true)

	assert.True(t, result.Success)
	assert.False(t, result.Cached)
	assert.Equal(t, 1, engineCalls)
	assert.Equal(t, 2, result.Competitors)
}

func TestRunWritesExclusiveFieldsWithProvenance(t *testing.T) {
	engine := competitorEngine(map[string]any{
		"competitors":      []any{"Nike", "Disruptive Advertising", "Hoka"},
		"position_summary": "Premium challenger in performance running",
		"differentiators":  []any{"carbon plate tech"},
	})
	runner, store := newRunnerFixture(t, engine)

	result := runner.Run(context.Background(), "c1", false)

	assert.True(t, result.Success)
	// The marketing vendor is filtered out by the category guardrail.
	assert.Equal(t, 2, result.Competitors)
	assert.Equal(t, 3, result.FieldsUpdated)

	graph, err := store.LoadContextGraph("c1")
	require.NoError(t, err)
	for _, field := range []string{"competitors", "positionSummary", "differentiators"} {
		cell, ok := graph.Field(models.DomainCompetitive, field)
		require.True(t, ok, "expected %s written", field)
		prov := cell.CurrentProvenance()
		require.NotNil(t, prov)
		assert.Equal(t, WriterID, prov.Source)
		assert.Equal(t, DefaultCacheDays, prov.ValidForDays)
	}
}

func TestRunEngineFailureIsNotFatal(t *testing.T) {
	engine := labs.EngineFunc(func(ctx context.Context, input labs.EngineInput) (*labs.EngineResult, error) {
		return &labs.EngineResult{Success: false, Error: "model unavailable"}, nil
	})
	runner, store := newRunnerFixture(t, engine)

	result := runner.Run(context.Background(), "c1", false)

	assert.False(t, result.Success)
	assert.Equal(t, "model unavailable", result.Error)

	// Competitive domain untouched.
	graph, err := store.LoadContextGraph("c1")
	require.NoError(t, err)
	readiness := ValidateForStrategy(graph)
	assert.False(t, readiness.Ready)
}

func TestRunImportsRecentCompletedRun(t *testing.T) {
	engineCalls := 0
	engine := labs.EngineFunc(func(ctx context.Context, input labs.EngineInput) (*labs.EngineResult, error) {
		engineCalls++
		return &labs.EngineResult{Success: true, Data: map[string]any{}}, nil
	})
	runner, store := newRunnerFixture(t, engine)

	run, err := store.CreateDiagnosticRun(&models.DiagnosticRun{
		ID:        "run-1",
		CompanyID: "c1",
		ToolID:    string(models.LabCompetitor),
		Status:    models.DiagnosticRunRunning,
	})
	require.NoError(t, err)
	require.NoError(t, store.UpdateDiagnosticRun(run.ID, models.DiagnosticRunUpdate{
		Status:  models.DiagnosticRunCompleted,
		RawJSON: `{"competitors":["Nike","Hoka"],"position_summary":"challenger"}`,
	}))

	result := runner.Run(context.Background(), "c1", false)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Competitors)
	assert.Equal(t, run.ID, result.RunID)
	assert.Equal(t, 0, engineCalls, "recent run import must shortcut the engine call")
}

func TestValidateForStrategy(t *testing.T) {
	t.Run("nil graph", func(t *testing.T) {
		readiness := ValidateForStrategy(nil)
		assert.False(t, readiness.Ready)
		assert.Len(t, readiness.MissingFields, 2)
	})

	t.Run("competitors without summary", func(t *testing.T) {
		graph := models.NewCompanyContextGraph("c1", "StridePath")
		graph.Domains[models.DomainCompetitive]["competitors"] = &models.ContextField{
			Value: []any{map[string]any{"name": "Nike"}},
		}
		readiness := ValidateForStrategy(graph)
		assert.False(t, readiness.Ready)
		assert.Equal(t, []string{"competitive.positionSummary"}, readiness.MissingFields)
	})

	t.Run("both present", func(t *testing.T) {
		graph := models.NewCompanyContextGraph("c1", "StridePath")
		graph.Domains[models.DomainCompetitive]["competitors"] = &models.ContextField{
			Value: []any{map[string]any{"name": "Nike"}},
		}
		graph.Domains[models.DomainCompetitive]["positionSummary"] = &models.ContextField{
			Value: "challenger",
		}
		readiness := ValidateForStrategy(graph)
		assert.True(t, readiness.Ready)
	})
}
