package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/growthdesk/growthdesk-go/pkg/contextstore"
	"github.com/growthdesk/growthdesk-go/pkg/labs"
	"github.com/growthdesk/growthdesk-go/pkg/models"
)

// handleServiceHealth reports process liveness.
func (s *Server) handleServiceHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateCompanyRequest is the company creation payload.
type CreateCompanyRequest struct {
	Name          string `json:"name"`
	WebsiteURL    string `json:"website_url,omitempty"`
	Industry      string `json:"industry,omitempty"`
	BusinessModel string `json:"business_model,omitempty"`
	ProductOffer  string `json:"product_offer,omitempty"`
}

func (s *Server) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	var req CreateCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestResponse(w, "invalid request body")
		return
	}
	if req.Name == "" {
		writeBadRequestResponse(w, "name is required")
		return
	}
	now := time.Now().UTC()
	company := &models.Company{
		ID:            uuid.NewString(),
		Name:          req.Name,
		WebsiteURL:    labs.NormalizeWebsiteURL(req.WebsiteURL),
		Industry:      req.Industry,
		BusinessModel: req.BusinessModel,
		ProductOffer:  req.ProductOffer,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.SaveCompany(company); err != nil {
		writeInternalServerErrorResponse(w, fmt.Sprintf("failed to save company: %v", err))
		return
	}
	writeJSONResponse(w, http.StatusCreated, company)
}

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.store.ListCompanies()
	if err != nil {
		writeInternalServerErrorResponse(w, fmt.Sprintf("failed to list companies: %v", err))
		return
	}
	writeSuccessResponse(w, companies)
}

func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	company, err := s.store.GetCompany(id)
	if errors.Is(err, contextstore.ErrNotFound) {
		writeNotFoundResponse(w, fmt.Sprintf("company %s not found", id))
		return
	}
	if err != nil {
		writeInternalServerErrorResponse(w, fmt.Sprintf("failed to load company: %v", err))
		return
	}
	writeSuccessResponse(w, company)
}

// RunRequest is the orchestration run payload. All fields optional.
type RunRequest struct {
	GapIARunID string         `json:"gap_ia_run_id,omitempty"`
	ForceLabs  []models.LabID `json:"force_labs,omitempty"`
	SkipLabs   []models.LabID `json:"skip_labs,omitempty"`
	DryRun     bool           `json:"dry_run,omitempty"`
}

func (s *Server) decodeRunInput(r *http.Request) (models.OrchestratorInput, error) {
	companyID := mux.Vars(r)["id"]
	input := models.OrchestratorInput{CompanyID: companyID}
	if r.Body == nil || r.ContentLength == 0 {
		return input, nil
	}
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return input, fmt.Errorf("invalid request body")
	}
	input.GapIARunID = req.GapIARunID
	input.ForceLabs = req.ForceLabs
	input.SkipLabs = req.SkipLabs
	input.DryRun = req.DryRun
	return input, nil
}

// handleRunOrchestrator executes a full orchestration run synchronously.
func (s *Server) handleRunOrchestrator(w http.ResponseWriter, r *http.Request) {
	input, err := s.decodeRunInput(r)
	if err != nil {
		writeBadRequestResponse(w, err.Error())
		return
	}
	output := s.orchestrator.RunFullGAPOrchestrator(r.Context(), input)
	status := http.StatusOK
	if !output.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSONResponse(w, status, output)
}

// handleEnqueueRun queues an orchestration run for a worker.
func (s *Server) handleEnqueueRun(w http.ResponseWriter, r *http.Request) {
	if s.runQueue == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "async runs are not enabled")
		return
	}
	input, err := s.decodeRunInput(r)
	if err != nil {
		writeBadRequestResponse(w, err.Error())
		return
	}
	info, err := s.runQueue.Enqueue(r.Context(), input)
	if err != nil {
		writeInternalServerErrorResponse(w, fmt.Sprintf("failed to enqueue run: %v", err))
		return
	}
	writeJSONResponse(w, http.StatusAccepted, info)
}

func (s *Server) handleGetRunResult(w http.ResponseWriter, r *http.Request) {
	if s.runQueue == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "async runs are not enabled")
		return
	}
	jobID := mux.Vars(r)["jobID"]
	result, err := s.runQueue.GetResult(r.Context(), jobID)
	if err != nil {
		writeNotFoundResponse(w, fmt.Sprintf("run %s not found or still processing", jobID))
		return
	}
	writeSuccessResponse(w, result)
}

func (s *Server) handleListRunLogs(w http.ResponseWriter, r *http.Request) {
	companyID := mux.Vars(r)["id"]
	logs, err := s.store.ListRunLogsByCompany(companyID)
	if err != nil {
		writeInternalServerErrorResponse(w, fmt.Sprintf("failed to list run logs: %v", err))
		return
	}
	limit := parseLimit(r, 50)
	if len(logs) > limit {
		logs = logs[:limit]
	}
	writeSuccessResponse(w, logs)
}

func (s *Server) handleGetContextGraph(w http.ResponseWriter, r *http.Request) {
	companyID := mux.Vars(r)["id"]
	graph, err := s.store.LoadContextGraph(companyID)
	if err != nil {
		writeInternalServerErrorResponse(w, fmt.Sprintf("failed to load context graph: %v", err))
		return
	}
	if graph == nil {
		writeNotFoundResponse(w, fmt.Sprintf("no context graph for company %s", companyID))
		return
	}
	writeSuccessResponse(w, graph)
}

func (s *Server) handleGetContextHealth(w http.ResponseWriter, r *http.Request) {
	companyID := mux.Vars(r)["id"]
	graph, err := s.store.LoadContextGraph(companyID)
	if err != nil {
		writeInternalServerErrorResponse(w, fmt.Sprintf("failed to load context graph: %v", err))
		return
	}
	assessment := s.assessor.Assess(graph)
	writeSuccessResponse(w, map[string]any{
		"assessment":  assessment,
		"quick_score": assessment.QuickScore(),
	})
}

// handlePreviewPlan computes the lab plan without executing anything.
func (s *Server) handlePreviewPlan(w http.ResponseWriter, r *http.Request) {
	companyID := mux.Vars(r)["id"]
	graph, err := s.store.LoadContextGraph(companyID)
	if err != nil {
		writeInternalServerErrorResponse(w, fmt.Sprintf("failed to load context graph: %v", err))
		return
	}
	assessment := s.assessor.Assess(graph)
	plan := s.planner.Plan(assessment, nil, nil)
	writeSuccessResponse(w, plan)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	companyID := mux.Vars(r)["id"]
	snapshots, err := s.store.ListSnapshotsByCompany(companyID)
	if err != nil {
		writeInternalServerErrorResponse(w, fmt.Sprintf("failed to list snapshots: %v", err))
		return
	}
	limit := parseLimit(r, 20)
	if len(snapshots) > limit {
		snapshots = snapshots[:limit]
	}
	writeSuccessResponse(w, snapshots)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snapshot, err := s.store.GetSnapshot(id)
	if errors.Is(err, contextstore.ErrNotFound) {
		writeNotFoundResponse(w, fmt.Sprintf("snapshot %s not found", id))
		return
	}
	if err != nil {
		writeInternalServerErrorResponse(w, fmt.Sprintf("failed to load snapshot: %v", err))
		return
	}
	writeSuccessResponse(w, snapshot)
}

func (s *Server) handleListInsights(w http.ResponseWriter, r *http.Request) {
	companyID := mux.Vars(r)["id"]
	items, err := s.store.ListInsightsByCompany(companyID)
	if err != nil {
		writeInternalServerErrorResponse(w, fmt.Sprintf("failed to list insights: %v", err))
		return
	}
	writeSuccessResponse(w, items)
}

// handleSearchInsights runs a semantic search over the company's insight
// titles.
func (s *Server) handleSearchInsights(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "insight search is not enabled")
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		writeBadRequestResponse(w, "query parameter q is required")
		return
	}
	companyID := mux.Vars(r)["id"]
	hits, err := s.index.Search(r.Context(), query, companyID, parseLimit(r, 5))
	if err != nil {
		writeInternalServerErrorResponse(w, fmt.Sprintf("failed to search insights: %v", err))
		return
	}
	writeSuccessResponse(w, hits)
}

func (s *Server) handleStrategyReadiness(w http.ResponseWriter, r *http.Request) {
	companyID := mux.Vars(r)["id"]
	readiness, err := s.strategyReadiness(companyID)
	if err != nil {
		writeInternalServerErrorResponse(w, fmt.Sprintf("failed to load context graph: %v", err))
		return
	}
	writeSuccessResponse(w, readiness)
}

// handleGenerateQBR renders a PDF report from the company's most recent
// snapshot.
func (s *Server) handleGenerateQBR(w http.ResponseWriter, r *http.Request) {
	companyID := mux.Vars(r)["id"]
	company, err := s.store.GetCompany(companyID)
	if errors.Is(err, contextstore.ErrNotFound) {
		writeNotFoundResponse(w, fmt.Sprintf("company %s not found", companyID))
		return
	}
	if err != nil {
		writeInternalServerErrorResponse(w, fmt.Sprintf("failed to load company: %v", err))
		return
	}
	snapshots, err := s.store.ListSnapshotsByCompany(companyID)
	if err != nil {
		writeInternalServerErrorResponse(w, fmt.Sprintf("failed to list snapshots: %v", err))
		return
	}
	if len(snapshots) == 0 {
		writeNotFoundResponse(w, fmt.Sprintf("no snapshots for company %s", companyID))
		return
	}
	filePath, err := s.reports.Generate(company, snapshots[0])
	if err != nil {
		writeInternalServerErrorResponse(w, fmt.Sprintf("failed to generate report: %v", err))
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]any{
		"file_path":   filePath,
		"snapshot_id": snapshots[0].ID,
	})
}
