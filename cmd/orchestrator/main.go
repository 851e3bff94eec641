// Entry point for the GrowthDesk orchestration API server.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/growthdesk/growthdesk-go/pkg/ai"
	"github.com/growthdesk/growthdesk-go/pkg/api"
	"github.com/growthdesk/growthdesk-go/pkg/competition"
	"github.com/growthdesk/growthdesk-go/pkg/config"
	"github.com/growthdesk/growthdesk-go/pkg/contextstore"
	"github.com/growthdesk/growthdesk-go/pkg/insights"
	"github.com/growthdesk/growthdesk-go/pkg/labs"
	"github.com/growthdesk/growthdesk-go/pkg/models"
	"github.com/growthdesk/growthdesk-go/pkg/orchestrator"
	"github.com/growthdesk/growthdesk-go/pkg/queue"
	"github.com/growthdesk/growthdesk-go/pkg/report"
	"github.com/growthdesk/growthdesk-go/pkg/scheduler"
	"github.com/growthdesk/growthdesk-go/utils"
	chromem "github.com/philippgille/chromem-go"
)

const serverVersion = "v0.1.0"

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Println("GrowthDesk orchestrator version:", serverVersion)
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.GetLogger()
	logger.SetLevel(utils.ParseLogLevel(cfg.LogLevel))
	logger.SetFormat(cfg.LogFormat)
	logger.SetService("growthdesk-orchestrator")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	store, err := contextstore.NewSQLiteStore(filepath.Join(cfg.DataDir, "growthdesk.db"))
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

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
			log.Fatalf("Failed to create LLM client: %v", err)
		}
		labs.RegisterLLMEngines(registry, catalog, llmClient)
	} else {
		logger.Warn("No LLM API key configured; lab engines are unavailable",
			utils.Component("server"))
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

	orchestratorService := orchestrator.NewService(store, catalog, adapter, competitionRunner, gapEngine)

	var insightIndex *insights.Index
	if cfg.EnableInsightIndex {
		embed := chromem.NewEmbeddingFuncOpenAI(cfg.LLMAPIKey, chromem.EmbeddingModelOpenAI3Small)
		insightIndex, err = insights.NewIndex(filepath.Join(cfg.DataDir, "insight_index"), embed)
		if err != nil {
			log.Fatalf("Failed to open insight index: %v", err)
		}
		orchestratorService.WithInsightIndex(insightIndex)
	}

	var runQueue *queue.RunQueue
	if cfg.RedisURL != "" {
		runQueue, err = queue.NewRunQueue(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer runQueue.Close()
	}

	var refreshScheduler *scheduler.RefreshScheduler
	if cfg.RefreshSchedule != "" && runQueue != nil {
		refreshScheduler, err = scheduler.NewRefreshScheduler(store, runQueue, cfg.RefreshSchedule)
		if err != nil {
			log.Fatalf("Failed to create refresh scheduler: %v", err)
		}
		if err := refreshScheduler.Start(); err != nil {
			log.Fatalf("Failed to start refresh scheduler: %v", err)
		}
		defer refreshScheduler.Stop()
	}

	reports := report.NewQBRGenerator(filepath.Join(cfg.DataDir, "reports"))
	server := api.NewServer(cfg, store, catalog, orchestratorService, runQueue, reports)
	if insightIndex != nil {
		server.WithInsightIndex(insightIndex)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(cfg.Port)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Received shutdown signal", utils.Component("server"))
		// Deferred cleanups run on return.
		time.Sleep(100 * time.Millisecond)
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}
