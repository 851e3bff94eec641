package contextstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthdesk/growthdesk-go/pkg/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCompanyRoundTrip(t *testing.T) {
	store := newTestStore(t)

	company := &models.Company{
		ID:         "c1",
		Name:       "StridePath",
		WebsiteURL: "https://stridepath.example",
		Industry:   "Athletic footwear",
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.SaveCompany(company))

	loaded, err := store.GetCompany("c1")
	require.NoError(t, err)
	assert.Equal(t, "StridePath", loaded.Name)
	assert.Equal(t, "Athletic footwear", loaded.Industry)

	t.Run("upsert replaces", func(t *testing.T) {
		company.Name = "StridePath Running Co"
		require.NoError(t, store.SaveCompany(company))
		loaded, err := store.GetCompany("c1")
		require.NoError(t, err)
		assert.Equal(t, "StridePath Running Co", loaded.Name)
	})

	t.Run("missing company errors", func(t *testing.T) {
		_, err := store.GetCompany("ghost")
		assert.Error(t, err)
	})

	t.Run("list is sorted by name", func(t *testing.T) {
		require.NoError(t, store.SaveCompany(&models.Company{ID: "c2", Name: "Alpine Gear"}))
		companies, err := store.ListCompanies()
		require.NoError(t, err)
		require.Len(t, companies, 2)
		assert.Equal(t, "Alpine Gear", companies[0].Name)
	})
}

func TestContextGraphVersioning(t *testing.T) {
	store := newTestStore(t)

	loaded, err := store.LoadContextGraph("c1")
	require.NoError(t, err)
	assert.Nil(t, loaded, "missing graph loads as nil, not error")

	graph, err := store.GetOrCreateContextGraph("c1", "StridePath")
	require.NoError(t, err)
	assert.Equal(t, int64(1), graph.Version, "bootstrap save bumps version to 1")

	graph.Domains[models.DomainBrand]["positioning"] = &models.ContextField{
		Value: "Performance everyday shoes",
		Provenance: []models.ProvenanceEntry{
			{Source: "brand_lab", UpdatedAt: time.Now().UTC(), Confidence: 0.85},
		},
	}
	require.NoError(t, store.SaveContextGraph(graph, "gap_orchestrator"))
	assert.Equal(t, int64(2), graph.Version)

	reloaded, err := store.LoadContextGraph("c1")
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, int64(2), reloaded.Version)
	cell, ok := reloaded.Field(models.DomainBrand, "positioning")
	require.True(t, ok)
	assert.Equal(t, "Performance everyday shoes", cell.Value)
	require.Len(t, cell.Provenance, 1)
	assert.Equal(t, "brand_lab", cell.Provenance[0].Source)

	t.Run("get or create returns existing", func(t *testing.T) {
		again, err := store.GetOrCreateContextGraph("c1", "StridePath")
		require.NoError(t, err)
		assert.Equal(t, int64(2), again.Version)
	})

	t.Run("writer id is required", func(t *testing.T) {
		assert.Error(t, store.SaveContextGraph(graph, ""))
	})

	t.Run("nil graph is rejected", func(t *testing.T) {
		assert.Error(t, store.SaveContextGraph(nil, "gap_orchestrator"))
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	older := &models.GAPSnapshot{
		ID:        "snap-old",
		CompanyID: "c1",
		Timestamp: base,
		LabsRun:   []string{"brand"},
		Changes:   models.SnapshotChanges{FieldsAdded: 2},
	}
	newer := &models.GAPSnapshot{
		ID:        "snap-new",
		CompanyID: "c1",
		Timestamp: base.Add(time.Hour),
		LabsRun:   []string{"brand", "seo"},
		Changes:   models.SnapshotChanges{FieldsAdded: 1, ScoreChange: 12},
	}
	require.NoError(t, store.SaveSnapshot(older))
	require.NoError(t, store.SaveSnapshot(newer))

	loaded, err := store.GetSnapshot("snap-old")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Changes.FieldsAdded)
	assert.Equal(t, []string{"brand"}, loaded.LabsRun)

	snapshots, err := store.ListSnapshotsByCompany("c1")
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "snap-new", snapshots[0].ID, "newest first")

	_, err = store.GetSnapshot("ghost")
	assert.Error(t, err)
}

func TestRunLogRoundTrip(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRunLog(&models.GapRunLog{
		ID:            "log-1",
		CompanyID:     "c1",
		MaturityStage: "developing",
		Scores:        map[string]int{"brand": 55},
		CreatedAt:     base,
	}))
	require.NoError(t, store.SaveRunLog(&models.GapRunLog{
		ID:             "log-2",
		CompanyID:      "c1",
		MaturityStage:  "scaling",
		QuickWinsCount: 3,
		CreatedAt:      base.Add(time.Hour),
	}))

	logs, err := store.ListRunLogsByCompany("c1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "log-2", logs[0].ID, "newest first")
	assert.Equal(t, 3, logs[0].QuickWinsCount)
	assert.Equal(t, 55, logs[1].Scores["brand"])
}

func TestDiagnosticRunLifecycle(t *testing.T) {
	store := newTestStore(t)

	run, err := store.CreateDiagnosticRun(&models.DiagnosticRun{
		ID:        "run-1",
		CompanyID: "c1",
		ToolID:    "competitor",
		Status:    models.DiagnosticRunRunning,
	})
	require.NoError(t, err)
	assert.False(t, run.CreatedAt.IsZero())

	t.Run("id is required", func(t *testing.T) {
		_, err := store.CreateDiagnosticRun(&models.DiagnosticRun{CompanyID: "c1", ToolID: "competitor"})
		assert.Error(t, err)
	})

	t.Run("no completed run yet", func(t *testing.T) {
		latest, err := store.LatestCompletedRun("c1", "competitor")
		require.NoError(t, err)
		assert.Nil(t, latest)
	})

	score := 68.0
	require.NoError(t, store.UpdateDiagnosticRun("run-1", models.DiagnosticRunUpdate{
		Status:  models.DiagnosticRunCompleted,
		Score:   &score,
		Summary: "two direct competitors found",
		RawJSON: `{"competitors":["Nike","Hoka"]}`,
	}))

	t.Run("latest completed run", func(t *testing.T) {
		latest, err := store.LatestCompletedRun("c1", "competitor")
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, "run-1", latest.ID)
		require.NotNil(t, latest.Score)
		assert.Equal(t, 68.0, *latest.Score)
		assert.Contains(t, latest.RawJSON, "Nike")
	})

	t.Run("update unknown run errors", func(t *testing.T) {
		err := store.UpdateDiagnosticRun("ghost", models.DiagnosticRunUpdate{Status: models.DiagnosticRunFailed})
		assert.Error(t, err)
	})
}

func TestInsightRoundTrip(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.SaveInsights(nil), "empty batch is a no-op")

	insights := []models.ClientInsight{
		{
			ID: "i1", CompanyID: "c1", LabID: models.LabSEO, Category: "seo",
			Title: "Missing meta descriptions", Kind: models.InsightKindIssue,
			Severity: models.SeverityHigh, Status: models.InsightStatusOpen, CreatedAt: now,
		},
		{
			ID: "i2", CompanyID: "c1", LabID: models.LabBrand, Category: "brand",
			Title: "Add testimonials", Kind: models.InsightKindQuickWin,
			Severity: models.SeverityLow, Status: models.InsightStatusOpen, CreatedAt: now,
		},
		{
			ID: "i3", CompanyID: "other", LabID: models.LabBrand, Category: "brand",
			Title: "Unrelated", Kind: models.InsightKindIssue,
			Severity: models.SeverityLow, Status: models.InsightStatusOpen, CreatedAt: now,
		},
	}
	require.NoError(t, store.SaveInsights(insights))

	listed, err := store.ListInsightsByCompany("c1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	for _, insight := range listed {
		assert.Equal(t, "c1", insight.CompanyID)
		assert.Equal(t, models.InsightStatusOpen, insight.Status)
	}
}
