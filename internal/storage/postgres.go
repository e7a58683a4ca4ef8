package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/truckfactor/truckfactor-go/internal/models"
)

// PostgresStore implements storage using PostgreSQL
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore creates a new PostgreSQL storage
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{
		db:     db,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		generated_at TIMESTAMPTZ NOT NULL,
		baseline_tf INTEGER NOT NULL,
		social_tf INTEGER NOT NULL,
		empty_project BOOLEAN NOT NULL,
		alias_unconfirmed BOOLEAN NOT NULL,
		payload JSONB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_project
		ON reports(project_id, generated_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *PostgresStore) SaveReport(ctx context.Context, report *models.ProjectReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports
			(id, project_id, generated_at, baseline_tf, social_tf, empty_project, alias_unconfirmed, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`,
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

func (s *PostgresStore) GetReport(ctx context.Context, projectID string) (*models.ProjectReport, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload, `
		SELECT payload FROM reports
		WHERE project_id = $1
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

func (s *PostgresStore) ListReports(ctx context.Context, limit int) ([]*models.ProjectReport, error) {
	if limit <= 0 {
		limit = 50
	}

	var payloads []string
	err := s.db.SelectContext(ctx, &payloads, `
		SELECT payload FROM reports
		ORDER BY generated_at DESC
		LIMIT $1`, limit)
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
