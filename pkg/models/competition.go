package models

import "time"

// CompetitionGapResult is the return value of a competition gap run. It is
// not persisted as an entity; the run's effect lives in the graph's
// competitive domain.
type CompetitionGapResult struct {
	Success       bool       `json:"success"`
	Error         string     `json:"error,omitempty"`
	Cached        bool       `json:"cached"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
	FieldsUpdated int        `json:"fields_updated"`
	Competitors   int        `json:"competitors"`
	RunID         string     `json:"run_id,omitempty"`
	DurationMs    int64      `json:"duration_ms"`
}

// CategoryFingerprint is the target company's inferred category profile,
// derived from substring matches against industry/business-model/offer text.
type CategoryFingerprint struct {
	IsAgencyOrServices bool `json:"is_agency_or_services"`
	IsMarketplace      bool `json:"is_marketplace"`
	IsPlatformOrSaaS   bool `json:"is_platform_or_saas"`
}

// CompetitorCandidate is an LLM-sourced competitor before guardrail
// filtering.
type CompetitorCandidate struct {
	Name     string `json:"name"`
	Domain   string `json:"domain,omitempty"`
	Category string `json:"category,omitempty"`
}

// RejectedCompetitor pairs a filtered-out candidate with the specific
// guardrail reason.
type RejectedCompetitor struct {
	Competitor CompetitorCandidate `json:"competitor"`
	Reason     string              `json:"reason"`
}

// CompetitorFilterResult partitions candidates into accepted and rejected.
type CompetitorFilterResult struct {
	Valid    []CompetitorCandidate `json:"valid"`
	Rejected []RejectedCompetitor  `json:"rejected"`
}

// StrategyReadiness is the read-only guard result consulted before strategy
// generation is allowed.
type StrategyReadiness struct {
	Ready         bool     `json:"ready"`
	MissingFields []string `json:"missing_fields,omitempty"`
}
