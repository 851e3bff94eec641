// Package orchestrator runs the full GAP cycle: assess context health,
// refresh the competition gap, plan labs, execute them sequentially,
// merge refinements, synthesize findings, extract insights, and snapshot
// the run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/growthdesk/growthdesk-go/pkg/canonical"
	"github.com/growthdesk/growthdesk-go/pkg/competition"
	"github.com/growthdesk/growthdesk-go/pkg/contextstore"
	"github.com/growthdesk/growthdesk-go/pkg/health"
	"github.com/growthdesk/growthdesk-go/pkg/insights"
	"github.com/growthdesk/growthdesk-go/pkg/labs"
	"github.com/growthdesk/growthdesk-go/pkg/merge"
	"github.com/growthdesk/growthdesk-go/pkg/models"
	"github.com/growthdesk/growthdesk-go/pkg/planner"
	"github.com/growthdesk/growthdesk-go/utils"
)

// GraphWriterID identifies orchestrator writes in the context graph audit
// trail.
const GraphWriterID = "gap_orchestrator"

// Service wires the orchestration pipeline together. All collaborators are
// injected; CompetitionRunner and GapEngine may be nil.
type Service struct {
	store       contextstore.Store
	assessor    *health.Assessor
	planner     *planner.Planner
	adapter     *labs.Adapter
	competition *competition.Runner
	gapEngine   GapEngine
	index       *insights.Index // nil when semantic search is disabled
	bus         *utils.EventBus
	logger      *utils.Logger
	now         func() time.Time
}

// NewService creates an orchestrator service.
func NewService(store contextstore.Store, catalog *labs.Catalog, adapter *labs.Adapter, competitionRunner *competition.Runner, gapEngine GapEngine) *Service {
	return &Service{
		store:       store,
		assessor:    health.NewAssessor(catalog),
		planner:     planner.NewPlanner(catalog),
		adapter:     adapter,
		competition: competitionRunner,
		gapEngine:   gapEngine,
		bus:         utils.GetEventBus(),
		logger:      utils.GetLogger(),
		now:         time.Now,
	}
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.assessor = s.assessor.WithClock(now)
	return s
}

// WithEventBus overrides the event bus for tests.
func (s *Service) WithEventBus(bus *utils.EventBus) *Service {
	s.bus = bus
	return s
}

// WithInsightIndex enables semantic indexing of persisted insights.
func (s *Service) WithInsightIndex(index *insights.Index) *Service {
	s.index = index
	return s
}

// RunFullGAPOrchestrator executes one full orchestration cycle. It degrades
// rather than aborts: individual lab and sub-step failures surface as
// warnings and per-lab flags, and only early unrecoverable conditions (a
// missing company, a broken store) produce Success=false.
func (s *Service) RunFullGAPOrchestrator(ctx context.Context, input models.OrchestratorInput) *models.OrchestratorOutput {
	started := s.now()
	output := &models.OrchestratorOutput{
		CompanyID:  input.CompanyID,
		LabOutputs: []models.LabRefinementOutput{},
		LabsRun:    []string{},
	}
	fail := func(format string, args ...any) *models.OrchestratorOutput {
		output.Success = false
		output.Error = fmt.Sprintf(format, args...)
		output.DurationMs = s.now().Sub(started).Milliseconds()
		s.bus.Publish(utils.Event{
			Type:    utils.EventGapRunFailed,
			Source:  "orchestrator",
			Payload: map[string]any{"company_id": input.CompanyID, "error": output.Error},
		})
		return output
	}

	if input.CompanyID == "" {
		return fail("company_id is required")
	}

	company, err := s.store.GetCompany(input.CompanyID)
	if errors.Is(err, contextstore.ErrNotFound) {
		return fail("company %s not found", input.CompanyID)
	}
	if err != nil {
		return fail("failed to load company: %v", err)
	}

	graph, err := s.loadGraph(input, company)
	if err != nil {
		return fail("failed to load context graph: %v", err)
	}

	output.HealthBefore = s.assessor.Assess(graph)
	s.logger.Info("Starting orchestration run",
		utils.Component("orchestrator"),
		utils.String("company_id", company.ID),
		utils.Int("completeness", output.HealthBefore.Completeness),
		utils.Bool("dry_run", input.DryRun))

	// Competition gap runs first so its exclusive competitive fields are in
	// place before planning.
	if s.shouldRunCompetition(input) {
		forceRun := containsLab(input.ForceLabs, models.LabCompetitor)
		result := s.competition.Run(ctx, company.ID, forceRun)
		output.CompetitionGap = result
		if !result.Success {
			output.Warnings = append(output.Warnings,
				fmt.Sprintf("competition gap failed: %s", result.Error))
		} else if !result.Cached {
			// The runner persisted its own writes; pick them up.
			if refreshed, loadErr := s.store.LoadContextGraph(company.ID); loadErr == nil && refreshed != nil {
				graph = refreshed
			}
		}
	}

	planHealth := s.assessor.Assess(graph)
	plan := s.planner.Plan(planHealth, input.ForceLabs, input.SkipLabs)
	output.Plan = plan

	working := graph.Clone()
	// Dry runs preview the plan only; no engine executes and the adapter
	// records nothing.
	if !input.DryRun {
		for _, item := range plan.Items {
			// The competitor lab's execution path is the competition runner
			// above.
			if item.LabID == models.LabCompetitor {
				continue
			}
			labOutput := s.runLabSafely(ctx, item.LabID, company, working)
			output.LabOutputs = append(output.LabOutputs, *labOutput)
			if !labOutput.Success {
				output.Warnings = append(output.Warnings,
					fmt.Sprintf("lab %s failed: %s", item.LabID, labOutput.Error))
				continue
			}
			merged := merge.Merge(working, labOutput.RefinedContext, item.LabID)
			working = merged.Graph
			output.LabsRun = append(output.LabsRun, string(item.LabID))
			if len(merged.SkippedWrites) > 0 {
				s.logger.Warn("Lab produced writes into unknown domains",
					utils.String("lab_id", string(item.LabID)),
					utils.Int("skipped", len(merged.SkippedWrites)))
			}
		}
	}

	// Broad canonical extraction from raw lab data. Best-effort.
	extracted := canonical.ExtractFromLabOutputs(output.LabOutputs)
	if len(extracted) > 0 {
		merged := canonical.MergeExtractionResults(extracted)
		accepted, rejected := canonical.CanonicalizeFindings(merged)
		for _, r := range rejected {
			s.logger.Debug("Rejected canonical proposal",
				utils.String("path", r.Field.Path),
				utils.String("reason", r.Reason))
		}
		canonical.UpsertContextFields(working, accepted, s.now())
	}

	if input.DryRun {
		output.Findings = BuildFallbackFindings(output.LabOutputs, planHealth)
	} else {
		output.Findings = s.synthesizeFindings(ctx, company, working, output.LabOutputs, planHealth)
	}

	// Restricted GAP extraction: allow-listed paths, missing cells only.
	if output.Findings != nil {
		gapFields := canonical.ExtractFromFullGap(output.Findings)
		proposals := canonical.GetFieldsForGapToPropose(working, gapFields.Fields)
		accepted, _ := canonical.CanonicalizeFindings(proposals)
		canonical.UpsertContextFields(working, accepted, s.now())
	}

	output.Insights = insights.ExtractFromLabOutputs(company.ID, output.LabOutputs, s.now())

	if !input.DryRun {
		if err := s.store.SaveContextGraph(working, GraphWriterID); err != nil {
			output.Warnings = append(output.Warnings,
				fmt.Sprintf("failed to persist context graph: %v", err))
		} else {
			s.bus.Publish(utils.Event{
				Type:    utils.EventContextGraphSaved,
				Source:  "orchestrator",
				Payload: map[string]any{"company_id": company.ID, "version": working.Version},
			})
		}
		if len(output.Insights) > 0 {
			if err := s.store.SaveInsights(output.Insights); err != nil {
				output.Warnings = append(output.Warnings,
					fmt.Sprintf("failed to persist insights: %v", err))
			} else if s.index != nil {
				if err := s.index.Add(ctx, output.Insights); err != nil {
					s.logger.Warn("Failed to index insights",
						utils.Component("orchestrator"),
						utils.String("company_id", company.ID),
						utils.Error(err))
				}
			}
		}
	}

	output.HealthAfter = s.assessor.Assess(working)

	if !input.DryRun {
		snapshotID, snapErr := s.saveSnapshot(company.ID, graph, working, output)
		if snapErr != nil {
			output.Warnings = append(output.Warnings,
				fmt.Sprintf("failed to persist snapshot: %v", snapErr))
		} else {
			output.SnapshotID = snapshotID
		}
		s.saveRunLog(company, input, output)
	}

	output.Success = true
	output.DurationMs = s.now().Sub(started).Milliseconds()
	s.bus.Publish(utils.Event{
		Type:   utils.EventGapRunCompleted,
		Source: "orchestrator",
		Payload: map[string]any{
			"company_id":  company.ID,
			"labs_run":    len(output.LabsRun),
			"snapshot_id": output.SnapshotID,
			"duration_ms": output.DurationMs,
		},
	})
	s.logger.Info("Orchestration run complete",
		utils.Component("orchestrator"),
		utils.String("company_id", company.ID),
		utils.Int("labs_run", len(output.LabsRun)),
		utils.Int("warnings", len(output.Warnings)))
	return output
}

// loadGraph resolves the starting graph. Dry runs never persist a newly
// created graph.
func (s *Service) loadGraph(input models.OrchestratorInput, company *models.Company) (*models.CompanyContextGraph, error) {
	if input.DryRun {
		graph, err := s.store.LoadContextGraph(company.ID)
		if err != nil {
			return nil, err
		}
		if graph == nil {
			graph = models.NewCompanyContextGraph(company.ID, company.Name)
		}
		return graph, nil
	}
	return s.store.GetOrCreateContextGraph(company.ID, company.Name)
}

func (s *Service) shouldRunCompetition(input models.OrchestratorInput) bool {
	if s.competition == nil || input.DryRun {
		return false
	}
	return !containsLab(input.SkipLabs, models.LabCompetitor)
}

// runLabSafely executes one lab and converts panics into failed outputs so
// a single misbehaving engine cannot abort the run.
func (s *Service) runLabSafely(ctx context.Context, labID models.LabID, company *models.Company, graph *models.CompanyContextGraph) (output *models.LabRefinementOutput) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Lab panicked", fmt.Errorf("%v", r),
				utils.String("lab_id", string(labID)))
			output = &models.LabRefinementOutput{
				LabID:   labID,
				Success: false,
				Error:   fmt.Sprintf("lab panicked: %v", r),
			}
		}
	}()
	return s.adapter.RunLabInRefinementMode(ctx, labID, company, graph)
}

func containsLab(ids []models.LabID, id models.LabID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
