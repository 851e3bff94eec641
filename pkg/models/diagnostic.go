package models

import "time"

// DiagnosticRunStatus tracks the state of a per-lab diagnostic run record.
type DiagnosticRunStatus string

const (
	DiagnosticRunRunning   DiagnosticRunStatus = "running"
	DiagnosticRunCompleted DiagnosticRunStatus = "completed"
	DiagnosticRunFailed    DiagnosticRunStatus = "failed"
)

// DiagnosticRun is the observability record tracking one lab execution.
// Writing it is best-effort: a failed write never aborts the lab run.
type DiagnosticRun struct {
	ID        string              `json:"id"`
	CompanyID string              `json:"company_id"`
	ToolID    string              `json:"tool_id"`
	Status    DiagnosticRunStatus `json:"status"`
	Score     *float64            `json:"score,omitempty"`
	Summary   string              `json:"summary,omitempty"`
	RawJSON   string              `json:"raw_json,omitempty"`
	Metadata  map[string]any      `json:"metadata,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// DiagnosticRunUpdate carries the fields updatable on a diagnostic run.
type DiagnosticRunUpdate struct {
	Status  DiagnosticRunStatus `json:"status"`
	Score   *float64            `json:"score,omitempty"`
	Summary string              `json:"summary,omitempty"`
	RawJSON string              `json:"raw_json,omitempty"`
}
