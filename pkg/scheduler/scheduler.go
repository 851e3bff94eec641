// Package scheduler triggers periodic context refresh runs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/growthdesk/growthdesk-go/pkg/contextstore"
	"github.com/growthdesk/growthdesk-go/pkg/models"
	"github.com/growthdesk/growthdesk-go/pkg/queue"
	"github.com/growthdesk/growthdesk-go/utils"
)

// Enqueuer is the subset of the run queue the scheduler needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, input models.OrchestratorInput) (*queue.JobInfo, error)
}

// RefreshScheduler enqueues an orchestration run per company on a cron
// schedule.
type RefreshScheduler struct {
	companies contextstore.CompanyStore
	enqueuer  Enqueuer
	cron      *cron.Cron
	schedule  string
	entryID   cron.EntryID
	logger    *utils.Logger
}

// NewRefreshScheduler creates a scheduler. schedule is a standard 5-field
// cron expression.
func NewRefreshScheduler(companies contextstore.CompanyStore, enqueuer Enqueuer, schedule string) (*RefreshScheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}
	return &RefreshScheduler{
		companies: companies,
		enqueuer:  enqueuer,
		cron:      cron.New(),
		schedule:  schedule,
		logger:    utils.GetLogger(),
	}, nil
}

// Start begins the scheduling loop.
func (s *RefreshScheduler) Start() error {
	entryID, err := s.cron.AddFunc(s.schedule, s.runRefreshCycle)
	if err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}
	s.entryID = entryID
	s.cron.Start()
	s.logger.Info("Refresh scheduler started",
		utils.Component("scheduler"),
		utils.String("schedule", s.schedule))
	return nil
}

// Stop halts scheduling. Already-enqueued jobs are unaffected.
func (s *RefreshScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Refresh scheduler stopped", utils.Component("scheduler"))
}

// NextRun reports the next scheduled cycle time.
func (s *RefreshScheduler) NextRun() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// runRefreshCycle enqueues one run per known company. Per-company failures
// are logged and skipped.
func (s *RefreshScheduler) runRefreshCycle() {
	ctx := context.Background()
	companies, err := s.companies.ListCompanies()
	if err != nil {
		s.logger.Error("Refresh cycle failed to list companies", err,
			utils.Component("scheduler"))
		return
	}
	enqueued := 0
	for _, company := range companies {
		info, err := s.enqueuer.Enqueue(ctx, models.OrchestratorInput{CompanyID: company.ID})
		if err != nil {
			s.logger.Warn("Failed to enqueue refresh run",
				utils.Component("scheduler"),
				utils.String("company_id", company.ID),
				utils.Error(err))
			continue
		}
		s.logger.Debug("Enqueued refresh run",
			utils.String("company_id", company.ID),
			utils.String("job_id", info.ID))
		enqueued++
	}
	s.logger.Info("Refresh cycle complete",
		utils.Component("scheduler"),
		utils.Int("companies", len(companies)),
		utils.Int("enqueued", enqueued))
}
