package models

// ContextHealthAssessment is a derived, read-only snapshot of a context
// graph's completeness and freshness. Recomputed on demand, never persisted.
type ContextHealthAssessment struct {
	Completeness          int      `json:"completeness"` // 0-100
	Freshness             int      `json:"freshness"`    // 0-100
	MissingCriticalFields []string `json:"missing_critical_fields"`
	StaleFields           []string `json:"stale_fields"`
	StaleSections         []string `json:"stale_sections"`
	Recommendations       []string `json:"recommendations"`
}

// QuickScore collapses an assessment into a single weighted 0-100 score for
// lightweight callers.
func (a ContextHealthAssessment) QuickScore() int {
	return int(float64(a.Completeness)*0.7 + float64(a.Freshness)*0.3 + 0.5)
}
