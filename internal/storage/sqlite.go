package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/truckfactor/truckfactor-go/internal/models"
)

// SQLiteStore implements storage using SQLite (for local/development)
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewSQLiteStore creates a new SQLite storage
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	// WAL mode for better concurrency across parallel project analyses
	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	store := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		generated_at DATETIME NOT NULL,
		baseline_tf INTEGER NOT NULL,
		social_tf INTEGER NOT NULL,
		empty_project INTEGER NOT NULL,
		alias_unconfirmed INTEGER NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_project
		ON reports(project_id, generated_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveReport stores one per-project report. The full record is kept as a
// JSON payload; scalar columns exist for listing and filtering.
func (s *SQLiteStore) SaveReport(ctx context.Context, report *models.ProjectReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reports
			(id, project_id, generated_at, baseline_tf, social_tf, empty_project, alias_unconfirmed, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID,
		report.ProjectID,
		report.GeneratedAt,
		report.Baseline.TruckFactor,
		report.Social.TruckFactor,
		report.EmptyProject,
		report.AliasUnconfirmed,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("save report for %s: %w", report.ProjectID, err)
	}

	s.logger.WithField("project", report.ProjectID).Debug("Report saved")
	return nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, projectID string) (*models.ProjectReport, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload, `
		SELECT payload FROM reports
		WHERE project_id = ?
		ORDER BY generated_at DESC
		LIMIT 1`, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report for %s: %w", projectID, err)
	}

	var report models.ProjectReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("unmarshal report for %s: %w", projectID, err)
	}
	return &report, nil
}

func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]*models.ProjectReport, error) {
	if limit <= 0 {
		limit = 50
	}

	var payloads []string
	err := s.db.SelectContext(ctx, &payloads, `
		SELECT payload FROM reports
		ORDER BY generated_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	reports := make([]*models.ProjectReport, 0, len(payloads))
	for _, payload := range payloads {
		var report models.ProjectReport
		if err := json.Unmarshal([]byte(payload), &report); err != nil {
			s.logger.WithError(err).Warn("Skipping corrupt report record")
			continue
		}
		reports = append(reports, &report)
	}
	return reports, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
