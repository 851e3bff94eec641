// Worker process for GrowthDesk.
// Executes queued orchestration runs from Redis.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/growthdesk/growthdesk-go/pkg/ai"
	"github.com/growthdesk/growthdesk-go/pkg/competition"
	"github.com/growthdesk/growthdesk-go/pkg/config"
	"github.com/growthdesk/growthdesk-go/pkg/contextstore"
	"github.com/growthdesk/growthdesk-go/pkg/labs"
	"github.com/growthdesk/growthdesk-go/pkg/models"
	"github.com/growthdesk/growthdesk-go/pkg/orchestrator"
	"github.com/growthdesk/growthdesk-go/pkg/queue"
	"github.com/growthdesk/growthdesk-go/utils"
)

const workerVersion = "v0.1.0"

// Worker pulls orchestration jobs off the queue and runs them.
type Worker struct {
	id           string
	runQueue     *queue.RunQueue
	orchestrator *orchestrator.Service
	logger       *utils.Logger
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewWorker wires a worker from configuration.
func NewWorker(cfg *config.Config) (*Worker, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required for the worker")
	}
	runQueue, err := queue.NewRunQueue(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := contextstore.NewSQLiteStore(filepath.Join(cfg.DataDir, "growthdesk.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	catalog := labs.NewCatalog()
	registry := labs.NewRegistry()

	var llmClient ai.Client
	if cfg.LLMAPIKey != "" {
		llmClient, err = ai.NewOpenAIClient(ai.ClientConfig{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		labs.RegisterLLMEngines(registry, catalog, llmClient)
	}

	adapter := labs.NewAdapter(registry, catalog, store)

	var competitionRunner *competition.Runner
	if engine, err := registry.Get(models.LabCompetitor); err == nil {
		competitionRunner = competition.NewRunner(store, engine)
	}

	var gapEngine orchestrator.GapEngine
	if llmClient != nil {
		gapEngine = orchestrator.NewLLMGapEngine(llmClient)
	}

	hostname, _ := os.Hostname()
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		id:           fmt.Sprintf("worker-%s-%d", hostname, os.Getpid()),
		runQueue:     runQueue,
		orchestrator: orchestrator.NewService(store, catalog, adapter, competitionRunner, gapEngine),
		logger:       utils.GetLogger(),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start runs the consume loop until the worker is stopped.
func (w *Worker) Start() error {
	w.logger.Info("Worker starting",
		utils.Component("worker"),
		utils.String("worker_id", w.id))

	concurrency := 2
	if concStr := os.Getenv("WORKER_CONCURRENCY"); concStr != "" {
		if c, err := strconv.Atoi(concStr); err == nil && c > 0 {
			concurrency = c
		}
	}
	w.logger.Info("Worker concurrency set", utils.Int("concurrency", concurrency))

	sem := make(chan struct{}, concurrency)
	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("Worker shutting down", utils.Component("worker"))
			return nil
		default:
			sem <- struct{}{}
			job, err := w.runQueue.Dequeue(w.ctx, 5*time.Second)
			if err != nil {
				<-sem
				if w.ctx.Err() != nil {
					return nil
				}
				w.logger.Error("Error popping from queue", err, utils.Component("worker"))
				time.Sleep(1 * time.Second)
				continue
			}
			if job == nil {
				<-sem
				continue
			}
			go func(job *queue.Job) {
				defer func() { <-sem }()
				w.processJob(job)
			}(job)
		}
	}
}

// processJob runs one orchestration and stores the result.
func (w *Worker) processJob(job *queue.Job) {
	w.logger.Info("Processing run",
		utils.Component("worker"),
		utils.String("job_id", job.ID),
		utils.String("company_id", job.Input.CompanyID))

	output := w.orchestrator.RunFullGAPOrchestrator(w.ctx, job.Input)
	result := &queue.JobResult{
		ID:         job.ID,
		Success:    output.Success,
		Error:      output.Error,
		Output:     output,
		ExecutedAt: time.Now().UTC().Format(time.RFC3339),
		WorkerID:   w.id,
	}
	if err := w.runQueue.StoreResult(w.ctx, result); err != nil {
		w.logger.Error("Failed to store run result", err,
			utils.Component("worker"),
			utils.String("job_id", job.ID))
		return
	}
	if result.Success {
		w.logger.Info("Run completed",
			utils.String("job_id", job.ID),
			utils.Int("labs_run", len(output.LabsRun)))
	} else {
		w.logger.Error("Run failed", fmt.Errorf("%s", result.Error),
			utils.String("job_id", job.ID))
	}
}

// Stop cancels the consume loop.
func (w *Worker) Stop() {
	w.cancel()
	w.runQueue.Close()
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Println("GrowthDesk worker version:", workerVersion)
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.GetLogger()
	logger.SetLevel(utils.ParseLogLevel(cfg.LogLevel))
	logger.SetFormat(cfg.LogFormat)
	logger.SetService("growthdesk-worker")

	worker, err := NewWorker(cfg)
	if err != nil {
		log.Fatalf("Failed to create worker: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- worker.Start()
	}()

	select {
	case <-sigChan:
		log.Println("Received shutdown signal")
		worker.Stop()
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Worker error: %v", err)
		}
	}

	log.Println("Worker stopped")
}
