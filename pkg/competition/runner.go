// Package competition guarantees the competitive domain of a context graph
// is populated and fresh before any other lab planning happens. It is the
// sole legitimate writer of the exclusive competitive field paths.
package competition

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/growthdesk/growthdesk-go/pkg/contextstore"
	"github.com/growthdesk/growthdesk-go/pkg/labs"
	"github.com/growthdesk/growthdesk-go/pkg/models"
	"github.com/growthdesk/growthdesk-go/utils"
)

// WriterID is the canonical source marker recorded on every graph save made
// by this component.
const WriterID = "competition_lab"

// DefaultCacheDays is the cache validity window when a provenance entry
// carries no validForDays override.
const DefaultCacheDays = 30

// recentRunMaxAge bounds how old an imported Competition Lab run may be.
const recentRunMaxAge = 30 * 24 * time.Hour

// ExclusiveFields are the competitive-domain paths only this component may
// write. The orchestrator asserts no other lab touches them.
var ExclusiveFields = []string{
	"competitive.competitors",
	"competitive.positionSummary",
	"competitive.differentiators",
}

// Store is the persistence surface the runner needs.
type Store interface {
	contextstore.ContextStore
	contextstore.CompanyStore
	contextstore.DiagnosticRunStore
}

// Runner executes competition gap runs.
type Runner struct {
	store  Store
	engine labs.Engine
	events *utils.EventBus
	logger *utils.Logger
	now    func() time.Time
}

// NewRunner creates a competition gap runner around the competitor lab
// engine.
func NewRunner(store Store, engine labs.Engine) *Runner {
	return &Runner{
		store:  store,
		engine: engine,
		events: utils.GetEventBus(),
		logger: utils.GetLogger(),
		now:    time.Now,
	}
}

// WithClock returns a copy of the runner using the given clock. Test hook.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	return &Runner{store: r.store, engine: r.engine, events: r.events, logger: r.logger, now: now}
}

// IsCacheValid reports whether the graph's competitive context is still
// within its validity window. Fails closed: no graph, no competitive
// domain, or no competitor list means invalid.
func (r *Runner) IsCacheValid(graph *models.CompanyContextGraph) (bool, *time.Time) {
	if graph == nil {
		return false, nil
	}
	cell, ok := graph.Field(models.DomainCompetitive, "competitors")
	if !ok || !cell.IsPopulated() {
		return false, nil
	}
	prov := cell.CurrentProvenance()
	if prov == nil {
		return false, nil
	}
	validForDays := prov.ValidForDays
	if validForDays <= 0 {
		validForDays = DefaultCacheDays
	}
	validUntil := prov.UpdatedAt.AddDate(0, 0, validForDays)
	if r.now().After(validUntil) {
		return false, nil
	}
	return true, &validUntil
}

// Run executes a competition gap run for a company. All paths return the
// same result shape; engine failures come back as a failed result, never as
// a panic or error, so the caller's pipeline continues.
func (r *Runner) Run(ctx context.Context, companyID string, forceRun bool) *models.CompetitionGapResult {
	start := r.now()
	result := &models.CompetitionGapResult{}

	finish := func() *models.CompetitionGapResult {
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	graph, err := r.store.LoadContextGraph(companyID)
	if err != nil {
		result.Error = fmt.Sprintf("failed to load context graph: %v", err)
		return finish()
	}

	// Idempotent fast path: fresh cache, no writes.
	if !forceRun {
		if valid, validUntil := r.IsCacheValid(graph); valid {
			result.Success = true
			result.Cached = true
			result.ValidUntil = validUntil
			result.Competitors = competitorCount(graph)
			return finish()
		}
	}

	company, err := r.store.GetCompany(companyID)
	if err != nil {
		result.Error = fmt.Sprintf("failed to load company: %v", err)
		return finish()
	}
	if graph == nil {
		graph, err = r.store.GetOrCreateContextGraph(companyID, company.Name)
		if err != nil {
			result.Error = fmt.Sprintf("failed to create context graph: %v", err)
			return finish()
		}
	}

	// Reuse a recent completed Competition Lab run before paying for a
	// fresh engine call.
	if imported := r.importRecentRun(companyID, graph, result); imported {
		return finish()
	}

	// Full engine run.
	runID := uuid.New().String()
	engineResult, err := r.engine.Run(ctx, labs.EngineInput{
		CompanyID:  companyID,
		Company:    company,
		WebsiteURL: labs.NormalizeWebsiteURL(company.WebsiteURL),
		Context:    graph,
	})
	if err != nil {
		result.Error = fmt.Sprintf("competitor lab engine error: %v", err)
		return finish()
	}
	if !engineResult.Success {
		// Downstream strategy generation stays blocked by the readiness
		// guard; the caller's run continues.
		result.Error = engineResult.Error
		return finish()
	}

	fingerprint := DeriveCategoryFingerprint(company)
	fieldsUpdated, competitors := r.applyEngineData(graph, fingerprint, engineResult.Data)
	if err := r.store.SaveContextGraph(graph, WriterID); err != nil {
		result.Error = fmt.Sprintf("failed to save competitive context: %v", err)
		return finish()
	}

	r.events.Publish(utils.Event{
		Type:   utils.EventCompetitionGapUpdated,
		Source: "competition",
		Payload: map[string]any{
			"company_id":  companyID,
			"competitors": competitors,
		},
	})

	result.Success = true
	result.RunID = runID
	result.FieldsUpdated = fieldsUpdated
	result.Competitors = competitors
	return finish()
}

// importRecentRun looks for a completed Competition Lab diagnostic run with
// at least one competitor, younger than 30 days, and imports its payload
// into the graph. Returns true when the result was settled from the import.
func (r *Runner) importRecentRun(companyID string, graph *models.CompanyContextGraph, result *models.CompetitionGapResult) bool {
	run, err := r.store.LatestCompletedRun(companyID, string(models.LabCompetitor))
	if err != nil || run == nil {
		return false
	}
	if r.now().Sub(run.UpdatedAt) >= recentRunMaxAge || run.RawJSON == "" {
		return false
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(run.RawJSON), &data); err != nil {
		r.logger.Warn("Failed to parse stored competition lab payload",
			utils.Component("competition"),
			utils.String("run_id", run.ID))
		return false
	}
	if len(competitorList(data["competitors"])) == 0 {
		return false
	}

	fieldsUpdated, competitors := r.applyEngineData(graph, models.CategoryFingerprint{
		// Imported runs were filtered at capture time; re-filtering with an
		// empty fingerprint would wrongly reject agency candidates.
		IsAgencyOrServices: true, IsMarketplace: true, IsPlatformOrSaaS: true,
	}, data)
	if err := r.store.SaveContextGraph(graph, WriterID); err != nil {
		result.Error = fmt.Sprintf("failed to save imported competitive context: %v", err)
		return true
	}

	result.Success = true
	result.FieldsUpdated = fieldsUpdated
	result.Competitors = competitors
	result.RunID = run.ID
	return true
}

// applyEngineData writes competitor lab output into the graph's competitive
// domain, applying the category guardrail and duplicate collapse first.
func (r *Runner) applyEngineData(graph *models.CompanyContextGraph, fingerprint models.CategoryFingerprint, data map[string]any) (fieldsUpdated, competitors int) {
	if data == nil {
		return 0, 0
	}
	now := r.now().UTC()

	candidates := competitorList(data["competitors"])
	filtered := FilterCompetitorsByCategory(fingerprint, candidates)
	for _, rejected := range filtered.Rejected {
		r.logger.Info("Competitor rejected by category guardrail",
			utils.Component("competition"),
			utils.String("competitor", rejected.Competitor.Name),
			utils.String("reason", rejected.Reason))
	}
	accepted := DedupeCompetitors(filtered.Valid)

	writeField := func(field string, value any) {
		graph.Domains[models.DomainCompetitive][field] = &models.ContextField{
			Value: value,
			Provenance: append([]models.ProvenanceEntry{{
				Source:       WriterID,
				UpdatedAt:    now,
				Confidence:   0.85,
				ValidForDays: DefaultCacheDays,
			}}, provenanceOf(graph, field)...),
		}
		fieldsUpdated++
	}

	if len(accepted) > 0 {
		values := make([]any, 0, len(accepted))
		for _, candidate := range accepted {
			values = append(values, map[string]any{
				"name":     candidate.Name,
				"domain":   candidate.Domain,
				"category": candidate.Category,
			})
		}
		writeField("competitors", values)
		competitors = len(accepted)
	}
	if summary, ok := data["position_summary"].(string); ok && summary != "" {
		writeField("positionSummary", summary)
	}
	if diffs, ok := data["differentiators"]; ok && diffs != nil {
		writeField("differentiators", diffs)
	}

	return fieldsUpdated, competitors
}

// ValidateForStrategy is the read-only guard callers consult before
// allowing strategy generation: it requires a non-empty competitor list and
// a position summary.
func ValidateForStrategy(graph *models.CompanyContextGraph) models.StrategyReadiness {
	var missing []string
	if graph == nil {
		return models.StrategyReadiness{
			Ready:         false,
			MissingFields: []string{"competitive.competitors", "competitive.positionSummary"},
		}
	}
	if cell, ok := graph.Field(models.DomainCompetitive, "competitors"); !ok || !cell.IsPopulated() {
		missing = append(missing, "competitive.competitors")
	}
	if cell, ok := graph.Field(models.DomainCompetitive, "positionSummary"); !ok || !cell.IsPopulated() {
		missing = append(missing, "competitive.positionSummary")
	}
	return models.StrategyReadiness{Ready: len(missing) == 0, MissingFields: missing}
}

func competitorCount(graph *models.CompanyContextGraph) int {
	cell, ok := graph.Field(models.DomainCompetitive, "competitors")
	if !ok {
		return 0
	}
	if list, ok := cell.Value.([]any); ok {
		return len(list)
	}
	return 0
}

// competitorList parses the competitors payload, which may be a list of
// strings or of {name, domain, category} objects.
func competitorList(raw any) []models.CompetitorCandidate {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	var candidates []models.CompetitorCandidate
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if v != "" {
				candidates = append(candidates, models.CompetitorCandidate{Name: v})
			}
		case map[string]any:
			candidate := models.CompetitorCandidate{}
			if name, ok := v["name"].(string); ok {
				candidate.Name = name
			}
			if domain, ok := v["domain"].(string); ok {
				candidate.Domain = domain
			}
			if category, ok := v["category"].(string); ok {
				candidate.Category = category
			}
			if candidate.Name != "" {
				candidates = append(candidates, candidate)
			}
		}
	}
	return candidates
}

func provenanceOf(graph *models.CompanyContextGraph, field string) []models.ProvenanceEntry {
	if cell, ok := graph.Field(models.DomainCompetitive, field); ok && cell != nil {
		return cell.Provenance
	}
	return nil
}
