package contextstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/growthdesk/growthdesk-go/pkg/models"
)

// SQLiteStore provides SQLite-based persistence for context graphs,
// snapshots, run logs, diagnostic runs, and insights.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based storage instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writes anyway, keep the pool small
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// retryOnBusy retries a database operation if it fails due to SQLITE_BUSY.
// Safety net on top of the busy_timeout pragma.
func (s *SQLiteStore) retryOnBusy(operation func() error, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}
		if err.Error() == "database is locked (5) (SQLITE_BUSY)" {
			backoff := time.Duration(10*(1<<uint(i))) * time.Millisecond
			time.Sleep(backoff)
			continue
		}
		return err
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

// initSchema creates the database schema if it doesn't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		website_url TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS context_graphs (
		company_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		last_writer TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS context_graph_writes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		writer_id TEXT NOT NULL,
		written_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_graph_writes_company ON context_graph_writes(company_id);

	CREATE TABLE IF NOT EXISTS gap_snapshots (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		data TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_company ON gap_snapshots(company_id);

	CREATE TABLE IF NOT EXISTS gap_run_logs (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		maturity_stage TEXT,
		created_at DATETIME NOT NULL,
		data TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_run_logs_company ON gap_run_logs(company_id);

	CREATE TABLE IF NOT EXISTS diagnostic_runs (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		tool_id TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		data TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_diagnostic_runs_lookup ON diagnostic_runs(company_id, tool_id, status);

	CREATE TABLE IF NOT EXISTS client_insights (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		lab_id TEXT NOT NULL,
		severity TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		data TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_insights_company ON client_insights(company_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveCompany persists a company record
func (s *SQLiteStore) SaveCompany(company *models.Company) error {
	data, err := json.Marshal(company)
	if err != nil {
		return fmt.Errorf("failed to marshal company: %w", err)
	}
	return s.retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO companies (id, name, website_url, created_at, updated_at, data)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				website_url = excluded.website_url,
				updated_at = excluded.updated_at,
				data = excluded.data`,
			company.ID, company.Name, company.WebsiteURL,
			company.CreatedAt, company.UpdatedAt, string(data))
		return err
	}, 5)
}

// GetCompany retrieves a company by ID
func (s *SQLiteStore) GetCompany(id string) (*models.Company, error) {
	var data string
	err := s.db.QueryRow("SELECT data FROM companies WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("company %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	var company models.Company
	if err := json.Unmarshal([]byte(data), &company); err != nil {
		return nil, fmt.Errorf("failed to unmarshal company: %w", err)
	}
	return &company, nil
}

// ListCompanies lists all companies
func (s *SQLiteStore) ListCompanies() ([]*models.Company, error) {
	rows, err := s.db.Query("SELECT data FROM companies ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		var company models.Company
		if err := json.Unmarshal([]byte(data), &company); err != nil {
			return nil, fmt.Errorf("failed to unmarshal company: %w", err)
		}
		companies = append(companies, &company)
	}
	return companies, rows.Err()
}

// LoadContextGraph returns the graph for a company, or nil when none exists
func (s *SQLiteStore) LoadContextGraph(companyID string) (*models.CompanyContextGraph, error) {
	var data string
	err := s.db.QueryRow("SELECT data FROM context_graphs WHERE company_id = ?", companyID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load context graph: %w", err)
	}
	var graph models.CompanyContextGraph
	if err := json.Unmarshal([]byte(data), &graph); err != nil {
		return nil, fmt.Errorf("failed to unmarshal context graph: %w", err)
	}
	return &graph, nil
}

// GetOrCreateContextGraph returns the existing graph or creates an empty one
func (s *SQLiteStore) GetOrCreateContextGraph(companyID, companyName string) (*models.CompanyContextGraph, error) {
	graph, err := s.LoadContextGraph(companyID)
	if err != nil {
		return nil, err
	}
	if graph != nil {
		return graph, nil
	}

	graph = models.NewCompanyContextGraph(companyID, companyName)
	if err := s.SaveContextGraph(graph, "bootstrap"); err != nil {
		return nil, fmt.Errorf("failed to create context graph: %w", err)
	}
	return graph, nil
}

// SaveContextGraph persists the graph, bumping its version and recording the
// writer id for audit
func (s *SQLiteStore) SaveContextGraph(graph *models.CompanyContextGraph, writerID string) error {
	if graph == nil {
		return fmt.Errorf("context graph is required")
	}
	if graph.CompanyID == "" {
		return fmt.Errorf("context graph company id is required")
	}
	if writerID == "" {
		return fmt.Errorf("writer id is required")
	}

	now := time.Now().UTC()
	graph.Version++
	graph.UpdatedAt = now

	data, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("failed to marshal context graph: %w", err)
	}

	return s.retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO context_graphs (company_id, version, last_writer, created_at, updated_at, data)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(company_id) DO UPDATE SET
				version = excluded.version,
				last_writer = excluded.last_writer,
				updated_at = excluded.updated_at,
				data = excluded.data`,
			graph.CompanyID, graph.Version, writerID, graph.CreatedAt, now, string(data))
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			INSERT INTO context_graph_writes (company_id, version, writer_id, written_at)
			VALUES (?, ?, ?, ?)`,
			graph.CompanyID, graph.Version, writerID, now)
		if err != nil {
			return err
		}

		return tx.Commit()
	}, 5)
}

// SaveSnapshot persists an orchestration snapshot
func (s *SQLiteStore) SaveSnapshot(snapshot *models.GAPSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return s.retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO gap_snapshots (id, company_id, created_at, data)
			VALUES (?, ?, ?, ?)`,
			snapshot.ID, snapshot.CompanyID, snapshot.Timestamp, string(data))
		return err
	}, 5)
}

// GetSnapshot retrieves a snapshot by ID
func (s *SQLiteStore) GetSnapshot(id string) (*models.GAPSnapshot, error) {
	var data string
	err := s.db.QueryRow("SELECT data FROM gap_snapshots WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	var snapshot models.GAPSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

// ListSnapshotsByCompany lists snapshots for a company, newest first
func (s *SQLiteStore) ListSnapshotsByCompany(companyID string) ([]*models.GAPSnapshot, error) {
	rows, err := s.db.Query(
		"SELECT data FROM gap_snapshots WHERE company_id = ? ORDER BY created_at DESC", companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.GAPSnapshot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		var snapshot models.GAPSnapshot
		if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		snapshots = append(snapshots, &snapshot)
	}
	return snapshots, rows.Err()
}

// SaveRunLog persists a run-history row
func (s *SQLiteStore) SaveRunLog(log *models.GapRunLog) error {
	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to marshal run log: %w", err)
	}
	return s.retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO gap_run_logs (id, company_id, maturity_stage, created_at, data)
			VALUES (?, ?, ?, ?, ?)`,
			log.ID, log.CompanyID, log.MaturityStage, log.CreatedAt, string(data))
		return err
	}, 5)
}

// ListRunLogsByCompany lists run logs for a company, newest first
func (s *SQLiteStore) ListRunLogsByCompany(companyID string) ([]*models.GapRunLog, error) {
	rows, err := s.db.Query(
		"SELECT data FROM gap_run_logs WHERE company_id = ? ORDER BY created_at DESC", companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.GapRunLog
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan run log: %w", err)
		}
		var log models.GapRunLog
		if err := json.Unmarshal([]byte(data), &log); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run log: %w", err)
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}

// CreateDiagnosticRun creates a diagnostic run tracking record
func (s *SQLiteStore) CreateDiagnosticRun(run *models.DiagnosticRun) (*models.DiagnosticRun, error) {
	if run.ID == "" {
		return nil, fmt.Errorf("diagnostic run id is required")
	}
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now

	data, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal diagnostic run: %w", err)
	}
	err = s.retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO diagnostic_runs (id, company_id, tool_id, status, created_at, updated_at, data)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.CompanyID, run.ToolID, string(run.Status), run.CreatedAt, run.UpdatedAt, string(data))
		return err
	}, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to create diagnostic run: %w", err)
	}
	return run, nil
}

// UpdateDiagnosticRun updates the status and results of a diagnostic run
func (s *SQLiteStore) UpdateDiagnosticRun(id string, update models.DiagnosticRunUpdate) error {
	var data string
	err := s.db.QueryRow("SELECT data FROM diagnostic_runs WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return fmt.Errorf("diagnostic run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get diagnostic run: %w", err)
	}

	var run models.DiagnosticRun
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return fmt.Errorf("failed to unmarshal diagnostic run: %w", err)
	}

	run.Status = update.Status
	if update.Score != nil {
		run.Score = update.Score
	}
	if update.Summary != "" {
		run.Summary = update.Summary
	}
	if update.RawJSON != "" {
		run.RawJSON = update.RawJSON
	}
	run.UpdatedAt = time.Now().UTC()

	updated, err := json.Marshal(&run)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostic run: %w", err)
	}
	return s.retryOnBusy(func() error {
		_, err := s.db.Exec(`
			UPDATE diagnostic_runs SET status = ?, updated_at = ?, data = ? WHERE id = ?`,
			string(run.Status), run.UpdatedAt, string(updated), id)
		return err
	}, 5)
}

// LatestCompletedRun returns the newest completed run for a tool, or nil
func (s *SQLiteStore) LatestCompletedRun(companyID, toolID string) (*models.DiagnosticRun, error) {
	var data string
	err := s.db.QueryRow(`
		SELECT data FROM diagnostic_runs
		WHERE company_id = ? AND tool_id = ? AND status = ?
		ORDER BY updated_at DESC LIMIT 1`,
		companyID, toolID, string(models.DiagnosticRunCompleted)).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query diagnostic runs: %w", err)
	}
	var run models.DiagnosticRun
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal diagnostic run: %w", err)
	}
	return &run, nil
}

// SaveInsights persists a batch of client insights
func (s *SQLiteStore) SaveInsights(insights []models.ClientInsight) error {
	if len(insights) == 0 {
		return nil
	}
	return s.retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO client_insights (id, company_id, lab_id, severity, status, created_at, data)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, insight := range insights {
			data, err := json.Marshal(insight)
			if err != nil {
				return fmt.Errorf("failed to marshal insight: %w", err)
			}
			if _, err := stmt.Exec(insight.ID, insight.CompanyID, string(insight.LabID),
				string(insight.Severity), string(insight.Status), insight.CreatedAt, string(data)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, 5)
}

// ListInsightsByCompany lists insights for a company, newest first
func (s *SQLiteStore) ListInsightsByCompany(companyID string) ([]models.ClientInsight, error) {
	rows, err := s.db.Query(
		"SELECT data FROM client_insights WHERE company_id = ? ORDER BY created_at DESC", companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	defer rows.Close()

	var insights []models.ClientInsight
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		var insight models.ClientInsight
		if err := json.Unmarshal([]byte(data), &insight); err != nil {
			return nil, fmt.Errorf("failed to unmarshal insight: %w", err)
		}
		insights = append(insights, insight)
	}
	return insights, rows.Err()
}
