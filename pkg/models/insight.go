package models

import "time"

// InsightStatus tracks the lifecycle of a client insight.
type InsightStatus string

const (
	InsightStatusOpen       InsightStatus = "open"
	InsightStatusInProgress InsightStatus = "in_progress"
	InsightStatusResolved   InsightStatus = "resolved"
	InsightStatusDismissed  InsightStatus = "dismissed"
)

// ClientInsight is a normalized, persistable finding extracted from lab
// insight units during orchestration.
type ClientInsight struct {
	ID        string          `json:"id"`
	CompanyID string          `json:"company_id"`
	LabID     LabID           `json:"lab_id"`
	Category  string          `json:"category"`
	Title     string          `json:"title"`
	Kind      string          `json:"kind"`
	Severity  InsightSeverity `json:"severity"`
	Status    InsightStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}
