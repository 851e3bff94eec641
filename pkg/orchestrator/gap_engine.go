package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/growthdesk/growthdesk-go/pkg/ai"
	"github.com/growthdesk/growthdesk-go/pkg/insights"
	"github.com/growthdesk/growthdesk-go/pkg/models"
	"github.com/growthdesk/growthdesk-go/utils"
)

// GapEngine synthesizes the structured GAP findings from the run's lab
// outputs and the refined graph.
type GapEngine interface {
	Synthesize(ctx context.Context, company *models.Company, graph *models.CompanyContextGraph, labOutputs []models.LabRefinementOutput) (*models.GAPStructuredOutput, error)
}

// Maturity stage score thresholds.
const (
	leadingThreshold    = 80
	scalingThreshold    = 60
	developingThreshold = 40
)

// MaturityStageFor maps an overall score to a maturity stage label.
func MaturityStageFor(score int) string {
	switch {
	case score >= leadingThreshold:
		return models.MaturityLeading
	case score >= scalingThreshold:
		return models.MaturityScaling
	case score >= developingThreshold:
		return models.MaturityDeveloping
	default:
		return models.MaturityEmerging
	}
}

// synthesizeFindings runs the GAP engine, falling back to a deterministic
// build from lab diagnostics when no engine is configured, the company has
// no website URL for the engine to assess, or the engine fails.
func (s *Service) synthesizeFindings(ctx context.Context, company *models.Company, graph *models.CompanyContextGraph, labOutputs []models.LabRefinementOutput, planHealth models.ContextHealthAssessment) *models.GAPStructuredOutput {
	if s.gapEngine != nil && company.WebsiteURL != "" {
		findings, err := s.gapEngine.Synthesize(ctx, company, graph, labOutputs)
		if err == nil && findings != nil {
			return findings
		}
		if err != nil {
			s.logger.Warn("GAP synthesis failed, building findings from lab diagnostics",
				utils.Component("orchestrator"),
				utils.Error(err))
		}
	}
	return BuildFallbackFindings(labOutputs, planHealth)
}

// BuildFallbackFindings assembles a structured GAP output directly from lab
// diagnostics. Deterministic: no model call involved.
func BuildFallbackFindings(labOutputs []models.LabRefinementOutput, health models.ContextHealthAssessment) *models.GAPStructuredOutput {
	findings := &models.GAPStructuredOutput{
		Scores:               map[string]int{},
		DimensionDiagnostics: map[string]string{},
	}
	total := 0
	scored := 0
	for _, output := range labOutputs {
		if !output.Success {
			continue
		}
		dimension := insights.CategoryForLab(output.LabID)
		score := int(output.Diagnostics.Score + 0.5)
		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}
		findings.Scores[dimension] = score
		if output.Diagnostics.Summary != "" {
			findings.DimensionDiagnostics[dimension] = output.Diagnostics.Summary
		}
		total += score
		scored++
		for _, issue := range output.Diagnostics.Issues {
			findings.KeyFindings = append(findings.KeyFindings, issue)
		}
		for _, rec := range output.Diagnostics.Recommendations {
			findings.NextSteps = append(findings.NextSteps, rec)
		}
	}
	if scored > 0 {
		findings.OverallScore = total / scored
	} else {
		// No lab signal at all; score on context health alone.
		findings.OverallScore = health.QuickScore()
	}
	findings.MaturityStage = MaturityStageFor(findings.OverallScore)
	if len(findings.KeyFindings) > maxFallbackFindings {
		findings.KeyFindings = findings.KeyFindings[:maxFallbackFindings]
	}
	if len(findings.NextSteps) > maxFallbackNextSteps {
		findings.NextSteps = findings.NextSteps[:maxFallbackNextSteps]
	}
	for _, missing := range health.MissingCriticalFields {
		findings.Unknowns = append(findings.Unknowns, missing)
	}
	return findings
}

const (
	maxFallbackFindings  = 10
	maxFallbackNextSteps = 8
)

// LLMGapEngine synthesizes findings with a model call.
type LLMGapEngine struct {
	client ai.Client
	logger *utils.Logger
}

// NewLLMGapEngine creates a GAP engine backed by an LLM client.
func NewLLMGapEngine(client ai.Client) *LLMGapEngine {
	return &LLMGapEngine{client: client, logger: utils.GetLogger()}
}

// Synthesize asks the model for a structured GAP assessment and validates
// the response shape.
func (e *LLMGapEngine) Synthesize(ctx context.Context, company *models.Company, graph *models.CompanyContextGraph, labOutputs []models.LabRefinementOutput) (*models.GAPStructuredOutput, error) {
	prompt := e.buildPrompt(company, labOutputs)
	response, err := e.client.Complete(ctx, ai.Request{
		Messages: []ai.Message{{Role: "user", Content: prompt}},
		SystemMsg: "You are a growth marketing analyst. Respond with a single JSON object, " +
			"no prose outside it.",
		JSONMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gap synthesis request failed: %w", err)
	}
	var findings models.GAPStructuredOutput
	if err := json.Unmarshal([]byte(stripCodeFences(response.Content)), &findings); err != nil {
		return nil, fmt.Errorf("gap synthesis returned invalid JSON: %w", err)
	}
	if findings.Scores == nil {
		findings.Scores = map[string]int{}
	}
	if findings.OverallScore < 0 || findings.OverallScore > 100 {
		return nil, fmt.Errorf("gap synthesis overall score %d out of range", findings.OverallScore)
	}
	if findings.MaturityStage == "" {
		findings.MaturityStage = MaturityStageFor(findings.OverallScore)
	}
	return &findings, nil
}

func (e *LLMGapEngine) buildPrompt(company *models.Company, labOutputs []models.LabRefinementOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Synthesize a growth assessment for %s", company.Name)
	if company.Industry != "" {
		fmt.Fprintf(&b, " (%s)", company.Industry)
	}
	b.WriteString(".\n\nDiagnostic results by lab:\n")

	sorted := append([]models.LabRefinementOutput(nil), labOutputs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LabID < sorted[j].LabID })
	for _, output := range sorted {
		if !output.Success {
			continue
		}
		fmt.Fprintf(&b, "- %s: score %.0f. %s\n", output.LabID, output.Diagnostics.Score, output.Diagnostics.Summary)
		for _, issue := range output.Diagnostics.Issues {
			fmt.Fprintf(&b, "  issue: %s\n", issue)
		}
	}

	b.WriteString(`
Return a JSON object with:
  "scores": object mapping dimension name to 0-100 integer
  "overall_score": 0-100 integer
  "maturity_stage": one of "leading", "scaling", "developing", "emerging"
  "dimension_diagnostics": object mapping dimension name to a one-line diagnosis
  "key_findings": array of strings
  "next_steps": array of strings
  "kpis_to_watch": array of strings
  "primary_offers": array of strings (omit if unknown)
  "audience_summary": string (omit if unknown)
  "brand_identity_notes": string (omit if unknown)
  "unknowns": array of strings naming what could not be determined
`)
	return b.String()
}

func stripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
	}
	return strings.TrimSpace(trimmed)
}
