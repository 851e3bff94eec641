package contextstore

import (
	"errors"

	"github.com/growthdesk/growthdesk-go/pkg/models"
)

// ErrNotFound is returned by single-record lookups when no row exists.
var ErrNotFound = errors.New("not found")

// ContextStore is the interface for context graph persistence. Graphs are
// read and written whole; there is no field-level persistence API.
type ContextStore interface {
	// LoadContextGraph returns the graph for a company, or nil when none
	// exists yet.
	LoadContextGraph(companyID string) (*models.CompanyContextGraph, error)

	// GetOrCreateContextGraph returns the existing graph or creates and
	// persists an empty one.
	GetOrCreateContextGraph(companyID, companyName string) (*models.CompanyContextGraph, error)

	// SaveContextGraph persists the graph, bumping its version and recording
	// the writer id for audit.
	SaveContextGraph(graph *models.CompanyContextGraph, writerID string) error
}

// CompanyStore persists client company records.
type CompanyStore interface {
	SaveCompany(company *models.Company) error
	GetCompany(id string) (*models.Company, error)
	ListCompanies() ([]*models.Company, error)
}

// SnapshotStore persists immutable orchestration snapshots.
type SnapshotStore interface {
	SaveSnapshot(snapshot *models.GAPSnapshot) error
	GetSnapshot(id string) (*models.GAPSnapshot, error)
	ListSnapshotsByCompany(companyID string) ([]*models.GAPSnapshot, error)
}

// RunLogStore persists the per-run history rows.
type RunLogStore interface {
	SaveRunLog(log *models.GapRunLog) error
	ListRunLogsByCompany(companyID string) ([]*models.GapRunLog, error)
}

// DiagnosticRunStore tracks per-lab diagnostic runs. All writes are
// best-effort observability; callers must tolerate failures.
type DiagnosticRunStore interface {
	CreateDiagnosticRun(run *models.DiagnosticRun) (*models.DiagnosticRun, error)
	UpdateDiagnosticRun(id string, update models.DiagnosticRunUpdate) error
	// LatestCompletedRun returns the newest completed run for a tool, or nil
	// when none exists.
	LatestCompletedRun(companyID, toolID string) (*models.DiagnosticRun, error)
}

// InsightStore persists extracted client insights.
type InsightStore interface {
	SaveInsights(insights []models.ClientInsight) error
	ListInsightsByCompany(companyID string) ([]models.ClientInsight, error)
}

// Store is the full persistence surface used by the orchestrator stack.
type Store interface {
	ContextStore
	CompanyStore
	SnapshotStore
	RunLogStore
	DiagnosticRunStore
	InsightStore
	Close() error
}
