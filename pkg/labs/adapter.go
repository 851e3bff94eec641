package labs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/growthdesk/growthdesk-go/pkg/contextstore"
	"github.com/growthdesk/growthdesk-go/pkg/models"
	"github.com/growthdesk/growthdesk-go/utils"
)

// Insight extraction limits.
const (
	maxIssueInsights    = 5
	maxQuickWinInsights = 3
	maxIssueTextLen     = 100
	maxQuickWinTextLen  = 80
)

// Adapter runs lab engines in refinement mode, normalizing heterogeneous
// engine outputs into the common refinement shape and recording per-run
// diagnostics.
type Adapter struct {
	registry *Registry
	catalog  *Catalog
	runs     contextstore.DiagnosticRunStore // optional, best-effort observability
	logger   *utils.Logger
}

// NewAdapter creates a lab execution adapter. The diagnostic run store may
// be nil; tracking is pure observability and never gates execution.
func NewAdapter(registry *Registry, catalog *Catalog, runs contextstore.DiagnosticRunStore) *Adapter {
	return &Adapter{
		registry: registry,
		catalog:  catalog,
		runs:     runs,
		logger:   utils.GetLogger(),
	}
}

// RunLabInRefinementMode executes one lab engine and projects its raw output
// into refined context candidates, diagnostics, and insight units. Engine
// failures come back as a failed output, never as an error; callers treat
// them as recoverable per-lab failures.
func (a *Adapter) RunLabInRefinementMode(ctx context.Context, labID models.LabID, company *models.Company, graph *models.CompanyContextGraph) *models.LabRefinementOutput {
	start := time.Now()
	runID := uuid.New().String()
	labName := a.catalog.LabName(labID)

	output := &models.LabRefinementOutput{
		LabID:          labID,
		LabName:        labName,
		RunID:          runID,
		RefinedContext: []models.LabRefinedContext{},
		Insights:       []models.LabInsightUnit{},
	}

	diagRunID := a.trackRunStart(labID, company, runID)

	engine, err := a.registry.Get(labID)
	if err != nil {
		if errors.Is(err, ErrUnknownLab) {
			output.Error = err.Error()
		} else {
			output.Error = fmt.Sprintf("engine lookup failed: %v", err)
		}
		output.DurationMs = time.Since(start).Milliseconds()
		a.trackRunEnd(diagRunID, models.DiagnosticRunFailed, nil, output.Error, "")
		return output
	}

	input := EngineInput{
		CompanyID:  company.ID,
		Company:    company,
		WebsiteURL: NormalizeWebsiteURL(company.WebsiteURL),
		Context:    graph,
	}

	result, err := engine.Run(ctx, input)
	if err != nil {
		output.Error = fmt.Sprintf("engine error: %v", err)
		output.DurationMs = time.Since(start).Milliseconds()
		a.trackRunEnd(diagRunID, models.DiagnosticRunFailed, nil, output.Error, "")
		return output
	}
	if !result.Success {
		output.Error = result.Error
		output.DurationMs = time.Since(start).Milliseconds()
		a.trackRunEnd(diagRunID, models.DiagnosticRunFailed, nil, result.Error, "")
		return output
	}

	output.Success = true
	output.RawEngineData = result.Data
	output.RefinedContext = projectRefinedContext(labID, result.Data)
	output.Diagnostics = projectDiagnostics(result)
	output.Insights = projectInsights(result.Data)
	output.DurationMs = time.Since(start).Milliseconds()

	rawJSON := ""
	if data, err := json.Marshal(result.Data); err == nil {
		rawJSON = string(data)
	}
	score := result.Score
	a.trackRunEnd(diagRunID, models.DiagnosticRunCompleted, &score, output.Diagnostics.Summary, rawJSON)

	return output
}

// trackRunStart creates the diagnostic run record. Best-effort: failures
// are logged and an empty id is returned.
func (a *Adapter) trackRunStart(labID models.LabID, company *models.Company, runID string) string {
	if a.runs == nil {
		return ""
	}
	run, err := a.runs.CreateDiagnosticRun(&models.DiagnosticRun{
		ID:        runID,
		CompanyID: company.ID,
		ToolID:    string(labID),
		Status:    models.DiagnosticRunRunning,
		Metadata:  map[string]any{"mode": "refinement"},
	})
	if err != nil {
		a.logger.Warn("Failed to create diagnostic run record",
			utils.Component("labs"),
			utils.String("lab_id", string(labID)),
			utils.String("error", err.Error()))
		return ""
	}
	return run.ID
}

// trackRunEnd updates the diagnostic run record. Best-effort.
func (a *Adapter) trackRunEnd(diagRunID string, status models.DiagnosticRunStatus, score *float64, summary, rawJSON string) {
	if a.runs == nil || diagRunID == "" {
		return
	}
	err := a.runs.UpdateDiagnosticRun(diagRunID, models.DiagnosticRunUpdate{
		Status:  status,
		Score:   score,
		Summary: summary,
		RawJSON: rawJSON,
	})
	if err != nil {
		a.logger.Warn("Failed to update diagnostic run record",
			utils.Component("labs"),
			utils.String("run_id", diagRunID),
			utils.String("error", err.Error()))
	}
}

// projectRefinedContext extracts candidate context writes from raw engine
// data using the per-lab projection table.
func projectRefinedContext(labID models.LabID, data map[string]any) []models.LabRefinedContext {
	refined := []models.LabRefinedContext{}
	if data == nil {
		return refined
	}
	for _, proj := range refinementProjections[labID] {
		value, ok := data[proj.DataKey]
		if !ok || value == nil {
			continue
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		refined = append(refined, models.LabRefinedContext{
			Domain:     proj.Domain,
			Field:      proj.Field,
			Value:      value,
			Confidence: proj.Confidence,
		})
	}
	return refined
}

// projectDiagnostics extracts the reporting projection from an engine
// result.
func projectDiagnostics(result *EngineResult) models.LabDiagnostics {
	diag := models.LabDiagnostics{Score: result.Score}
	if result.Data == nil {
		return diag
	}
	if summary, ok := result.Data["summary"].(string); ok {
		diag.Summary = summary
	}
	diag.Issues = stringList(result.Data["issues"])
	diag.Recommendations = stringList(result.Data["recommendations"])
	return diag
}

// projectInsights extracts up to 5 issues and 3 quick wins from raw engine
// data, truncated and tagged with a severity derived from the item itself.
func projectInsights(data map[string]any) []models.LabInsightUnit {
	insights := []models.LabInsightUnit{}
	if data == nil {
		return insights
	}

	issues, _ := data["issues"].([]any)
	for i, item := range issues {
		if i >= maxIssueInsights {
			break
		}
		text := itemText(item)
		if text == "" {
			continue
		}
		insights = append(insights, models.LabInsightUnit{
			Text:     truncate(text, maxIssueTextLen),
			Kind:     models.InsightKindIssue,
			Severity: itemSeverity(item),
		})
	}

	quickWins, _ := data["quick_wins"].([]any)
	for i, item := range quickWins {
		if i >= maxQuickWinInsights {
			break
		}
		text := itemText(item)
		if text == "" {
			continue
		}
		insights = append(insights, models.LabInsightUnit{
			Text:     truncate(text, maxQuickWinTextLen),
			Kind:     models.InsightKindQuickWin,
			Severity: itemSeverity(item),
		})
	}

	return insights
}

// itemText pulls the display text from an issue/quick-win item, which may be
// a bare string or an object with title/description keys.
func itemText(item any) string {
	switch v := item.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		for _, key := range []string{"title", "description", "text"} {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// itemSeverity derives a severity from an item's own severity/priority/
// impact fields, defaulting to medium when absent.
func itemSeverity(item any) models.InsightSeverity {
	obj, ok := item.(map[string]any)
	if !ok {
		return models.SeverityMedium
	}
	for _, key := range []string{"severity", "priority", "impact"} {
		raw, ok := obj[key].(string)
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "high", "critical", "urgent":
			return models.SeverityHigh
		case "low", "minor":
			return models.SeverityLow
		case "medium", "moderate":
			return models.SeverityMedium
		}
	}
	return models.SeverityMedium
}

func stringList(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if text := itemText(item); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// truncate limits s to max characters, never splitting a multi-byte rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
