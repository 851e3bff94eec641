package models

import "time"

// Maturity stage labels for the structured GAP output.
const (
	MaturityLeading    = "leading"
	MaturityScaling    = "scaling"
	MaturityDeveloping = "developing"
	MaturityEmerging   = "emerging"
)

// GAPStructuredOutput is the machine-readable synthesis of a full GAP run:
// per-dimension scores, maturity stage, findings, and the optional extended
// fields used to seed the context graph.
type GAPStructuredOutput struct {
	Scores               map[string]int    `json:"scores"` // dimension -> 0-100
	OverallScore         int               `json:"overall_score"`
	MaturityStage        string            `json:"maturity_stage"`
	DimensionDiagnostics map[string]string `json:"dimension_diagnostics,omitempty"`
	KeyFindings          []string          `json:"key_findings,omitempty"`
	NextSteps            []string          `json:"next_steps,omitempty"`
	KPIsToWatch          []string          `json:"kpis_to_watch,omitempty"`

	// Extended fields, only proposed into the graph under allow-list rules.
	PrimaryOffers      []string `json:"primary_offers,omitempty"`
	Competitors        []string `json:"competitors,omitempty"`
	AudienceSummary    string   `json:"audience_summary,omitempty"`
	BrandIdentityNotes string   `json:"brand_identity_notes,omitempty"`
	Unknowns           []string `json:"unknowns,omitempty"`
}

// SnapshotChanges summarizes what one orchestration run changed. Counts come
// from a structural graph diff, not an approximation.
type SnapshotChanges struct {
	FieldsUpdated   int `json:"fields_updated"`
	FieldsAdded     int `json:"fields_added"`
	InsightsCreated int `json:"insights_created"`
	ScoreChange     int `json:"score_change"`
}

// GAPSnapshot is the immutable record of one orchestration run. Created
// once, never mutated; used for historical and QBR reporting.
type GAPSnapshot struct {
	ID            string               `json:"id"`
	CompanyID     string               `json:"company_id"`
	Timestamp     time.Time            `json:"timestamp"`
	ContextBefore *CompanyContextGraph `json:"context_before"`
	ContextAfter  *CompanyContextGraph `json:"context_after"`
	GapFindings   *GAPStructuredOutput `json:"gap_findings,omitempty"`
	Insights      []ClientInsight      `json:"insights,omitempty"`
	LabsRun       []string             `json:"labs_run"`
	Changes       SnapshotChanges      `json:"changes"`
}

// OrchestratorInput is the sole request shape of the orchestrator
// entrypoint.
type OrchestratorInput struct {
	CompanyID  string  `json:"company_id"`
	GapIARunID string  `json:"gap_ia_run_id,omitempty"`
	ForceLabs  []LabID `json:"force_labs,omitempty"`
	SkipLabs   []LabID `json:"skip_labs,omitempty"`
	DryRun     bool    `json:"dry_run,omitempty"`
}

// OrchestratorOutput is the fully-shaped result of an orchestration run.
// Success is false only when an unrecoverable early error occurred; every
// other sub-step failure degrades into per-lab flags and warnings.
type OrchestratorOutput struct {
	Success        bool                    `json:"success"`
	Error          string                  `json:"error,omitempty"`
	CompanyID      string                  `json:"company_id"`
	HealthBefore   ContextHealthAssessment `json:"health_before"`
	HealthAfter    ContextHealthAssessment `json:"health_after"`
	Plan           *LabRunPlan             `json:"plan,omitempty"`
	CompetitionGap *CompetitionGapResult   `json:"competition_gap,omitempty"`
	LabOutputs     []LabRefinementOutput   `json:"lab_outputs"`
	LabsRun        []string                `json:"labs_run"`
	Findings       *GAPStructuredOutput    `json:"findings,omitempty"`
	Insights       []ClientInsight         `json:"insights,omitempty"`
	SnapshotID     string                  `json:"snapshot_id,omitempty"`
	Warnings       []string                `json:"warnings,omitempty"`
	DurationMs     int64                   `json:"duration_ms"`
}

// GapRunLog is the run-history row persisted after each orchestration.
type GapRunLog struct {
	ID               string         `json:"id"`
	PlanID           string         `json:"plan_id"`
	CompanyID        string         `json:"company_id"`
	URL              string         `json:"url,omitempty"`
	MaturityStage    string         `json:"maturity_stage,omitempty"`
	Scores           map[string]int `json:"scores,omitempty"`
	QuickWinsCount   int            `json:"quick_wins_count"`
	InitiativesCount int            `json:"initiatives_count"`
	RawPlan          string         `json:"raw_plan,omitempty"` // truncated payload
	CreatedAt        time.Time      `json:"created_at"`
}
