package models

// LabID identifies a diagnostic lab.
type LabID string

const (
	LabBrand      LabID = "brand"
	LabWebsite    LabID = "website"
	LabSEO        LabID = "seo"
	LabContent    LabID = "content"
	LabDemand     LabID = "demand"
	LabOps        LabID = "ops"
	LabAudience   LabID = "audience"
	LabCreative   LabID = "creative"
	LabMedia      LabID = "media"
	LabUX         LabID = "ux"
	LabCompetitor LabID = "competitor"
)

// AllLabIDs lists every known lab in catalog order.
var AllLabIDs = []LabID{
	LabBrand, LabWebsite, LabSEO, LabContent, LabDemand,
	LabOps, LabAudience, LabCreative, LabMedia, LabUX, LabCompetitor,
}

// LabRunPlanItem is one scheduled lab in an execution plan.
type LabRunPlanItem struct {
	LabID               LabID    `json:"lab_id"`
	LabName             string   `json:"lab_name"`
	Reason              string   `json:"reason"`
	FieldsToFill        []string `json:"fields_to_fill"`
	Priority            int      `json:"priority"` // 1 = highest, runs first
	EstimatedDurationMs int64    `json:"estimated_duration_ms"`
}

// LabRunPlan is a prioritized lab execution plan. Recomputed per
// orchestration run, never persisted.
type LabRunPlan struct {
	Items                    []LabRunPlanItem `json:"items"`
	TotalEstimatedDurationMs int64            `json:"total_estimated_duration_ms"`
	MissingFieldsCount       int              `json:"missing_fields_count"`
	// UnmappedFields lists field paths that triggered planning but have no
	// registered owner lab. They are skipped, not errors, but operators need
	// to see registry drift.
	UnmappedFields []string `json:"unmapped_fields,omitempty"`
}

// LabRefinedContext is a candidate context-graph write produced by a lab.
// It is not merged until the orchestrator folds it into a working copy.
type LabRefinedContext struct {
	Domain     string  `json:"domain"`
	Field      string  `json:"field"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// LabDiagnostics carries the reporting projection of a lab run.
type LabDiagnostics struct {
	Score           float64  `json:"score"`
	Summary         string   `json:"summary"`
	Issues          []string `json:"issues,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// InsightSeverity buckets insight urgency.
type InsightSeverity string

const (
	SeverityLow    InsightSeverity = "low"
	SeverityMedium InsightSeverity = "medium"
	SeverityHigh   InsightSeverity = "high"
)

// Insight unit kinds.
const (
	InsightKindIssue    = "issue"
	InsightKindQuickWin = "quick_win"
)

// LabInsightUnit is a single normalized finding emitted by a lab run.
type LabInsightUnit struct {
	Text     string          `json:"text"`
	Kind     string          `json:"kind"`
	Severity InsightSeverity `json:"severity"`
}

// LabRefinementOutput is the normalized result of one lab execution.
type LabRefinementOutput struct {
	LabID          LabID               `json:"lab_id"`
	LabName        string              `json:"lab_name"`
	Success        bool                `json:"success"`
	Error          string              `json:"error,omitempty"`
	RefinedContext []LabRefinedContext `json:"refined_context"`
	Diagnostics    LabDiagnostics      `json:"diagnostics"`
	Insights       []LabInsightUnit    `json:"insights"`
	RunID          string              `json:"run_id"`
	DurationMs     int64               `json:"duration_ms"`
	RawEngineData  map[string]any      `json:"raw_engine_data,omitempty"`
}
