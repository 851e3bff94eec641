// Package api exposes the orchestration platform over HTTP.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/growthdesk/growthdesk-go/pkg/competition"
	"github.com/growthdesk/growthdesk-go/pkg/config"
	"github.com/growthdesk/growthdesk-go/pkg/contextstore"
	"github.com/growthdesk/growthdesk-go/pkg/health"
	"github.com/growthdesk/growthdesk-go/pkg/insights"
	"github.com/growthdesk/growthdesk-go/pkg/labs"
	"github.com/growthdesk/growthdesk-go/pkg/orchestrator"
	"github.com/growthdesk/growthdesk-go/pkg/planner"
	"github.com/growthdesk/growthdesk-go/pkg/queue"
	"github.com/growthdesk/growthdesk-go/pkg/report"
	"github.com/growthdesk/growthdesk-go/utils"
)

// Server is the HTTP front of the orchestration platform.
type Server struct {
	router       *mux.Router
	store        contextstore.Store
	orchestrator *orchestrator.Service
	assessor     *health.Assessor
	planner      *planner.Planner
	runQueue     *queue.RunQueue // nil when async runs are disabled
	reports      *report.QBRGenerator
	index        *insights.Index    // nil when semantic search is disabled
	auth         *utils.AuthManager // nil when auth is disabled
	logger       *utils.Logger
}

// NewServer wires the HTTP server. runQueue and auth may be nil.
func NewServer(cfg *config.Config, store contextstore.Store, catalog *labs.Catalog, orchestratorService *orchestrator.Service, runQueue *queue.RunQueue, reports *report.QBRGenerator) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		store:        store,
		orchestrator: orchestratorService,
		assessor:     health.NewAssessor(catalog),
		planner:      planner.NewPlanner(catalog),
		runQueue:     runQueue,
		reports:      reports,
		logger:       utils.GetLogger(),
	}
	if cfg.EnableAuth {
		s.auth = utils.NewAuthManager(cfg.JWTSecret, 0)
	}
	s.setupRoutes()
	return s
}

// WithInsightIndex enables the insight search endpoint.
func (s *Server) WithInsightIndex(index *insights.Index) *Server {
	s.index = index
	return s
}

// Handler returns the router wrapped with CORS, ready for ListenAndServe.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

// Start starts the HTTP server.
func (s *Server) Start(port string) error {
	s.logger.Info("Starting API server",
		utils.Component("api"),
		utils.String("port", port))
	return http.ListenAndServe(":"+port, s.Handler())
}

// setupRoutes sets up the HTTP routes with API versioning
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.errorRecoveryMiddleware)

	// Health check (no version, no auth)
	s.router.HandleFunc("/health", s.handleServiceHealth).Methods("GET")

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	if s.auth != nil {
		v1.Use(s.auth.Middleware)
	}

	// Companies
	v1.HandleFunc("/companies", s.handleCreateCompany).Methods("POST")
	v1.HandleFunc("/companies", s.handleListCompanies).Methods("GET")
	v1.HandleFunc("/companies/{id}", s.handleGetCompany).Methods("GET")

	// Orchestration runs
	v1.HandleFunc("/companies/{id}/runs", s.handleRunOrchestrator).Methods("POST")
	v1.HandleFunc("/companies/{id}/runs/enqueue", s.handleEnqueueRun).Methods("POST")
	v1.HandleFunc("/runs/{jobID}", s.handleGetRunResult).Methods("GET")
	v1.HandleFunc("/companies/{id}/runlogs", s.handleListRunLogs).Methods("GET")

	// Context graph
	v1.HandleFunc("/companies/{id}/context", s.handleGetContextGraph).Methods("GET")
	v1.HandleFunc("/companies/{id}/context/health", s.handleGetContextHealth).Methods("GET")
	v1.HandleFunc("/companies/{id}/plan", s.handlePreviewPlan).Methods("GET")

	// Snapshots and insights
	v1.HandleFunc("/companies/{id}/snapshots", s.handleListSnapshots).Methods("GET")
	v1.HandleFunc("/snapshots/{id}", s.handleGetSnapshot).Methods("GET")
	v1.HandleFunc("/companies/{id}/insights", s.handleListInsights).Methods("GET")
	v1.HandleFunc("/companies/{id}/insights/search", s.handleSearchInsights).Methods("GET")

	// Strategy gate
	v1.HandleFunc("/companies/{id}/strategy/readiness", s.handleStrategyReadiness).Methods("GET")

	// Reports
	v1.HandleFunc("/companies/{id}/reports/qbr", s.handleGenerateQBR).Methods("POST")
}

// strategyReadiness resolves the strategy gate for a company's graph.
func (s *Server) strategyReadiness(companyID string) (any, error) {
	graph, err := s.store.LoadContextGraph(companyID)
	if err != nil {
		return nil, err
	}
	return competition.ValidateForStrategy(graph), nil
}
