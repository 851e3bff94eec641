package orchestrator

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/growthdesk/growthdesk-go/pkg/merge"
	"github.com/growthdesk/growthdesk-go/pkg/models"
	"github.com/growthdesk/growthdesk-go/utils"
)

const maxRawPlanBytes = 16 * 1024

// saveSnapshot persists the immutable record of this run. Change counts
// come from a structural diff of the before and after graphs.
func (s *Service) saveSnapshot(companyID string, before, after *models.CompanyContextGraph, output *models.OrchestratorOutput) (string, error) {
	updated, added := merge.DiffGraphs(before, after)
	snapshot := &models.GAPSnapshot{
		ID:            uuid.NewString(),
		CompanyID:     companyID,
		Timestamp:     s.now().UTC(),
		ContextBefore: before,
		ContextAfter:  after,
		GapFindings:   output.Findings,
		Insights:      output.Insights,
		LabsRun:       append([]string(nil), output.LabsRun...),
		Changes: models.SnapshotChanges{
			FieldsUpdated:   updated,
			FieldsAdded:     added,
			InsightsCreated: len(output.Insights),
			ScoreChange:     output.HealthAfter.QuickScore() - output.HealthBefore.QuickScore(),
		},
	}
	if err := s.store.SaveSnapshot(snapshot); err != nil {
		return "", err
	}
	return snapshot.ID, nil
}

// saveRunLog records the run history row. Best-effort: failures are logged
// and swallowed.
func (s *Service) saveRunLog(company *models.Company, input models.OrchestratorInput, output *models.OrchestratorOutput) {
	logEntry := &models.GapRunLog{
		ID:        uuid.NewString(),
		PlanID:    input.GapIARunID,
		CompanyID: company.ID,
		URL:       company.WebsiteURL,
		CreatedAt: s.now().UTC(),
	}
	if output.Findings != nil {
		logEntry.MaturityStage = output.Findings.MaturityStage
		logEntry.Scores = output.Findings.Scores
		logEntry.InitiativesCount = len(output.Findings.NextSteps)
	}
	for _, insight := range output.Insights {
		if insight.Kind == models.InsightKindQuickWin {
			logEntry.QuickWinsCount++
		}
	}
	if raw, err := json.Marshal(output.Findings); err == nil {
		if len(raw) > maxRawPlanBytes {
			raw = raw[:maxRawPlanBytes]
		}
		logEntry.RawPlan = string(raw)
	}
	if err := s.store.SaveRunLog(logEntry); err != nil {
		s.logger.Warn("Failed to persist run log",
			utils.Component("orchestrator"),
			utils.String("company_id", company.ID),
			utils.Error(err))
	}
}
