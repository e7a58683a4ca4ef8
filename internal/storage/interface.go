package storage

import (
	"context"
	"errors"

	"github.com/truckfactor/truckfactor-go/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// Store persists project reports for the downstream evaluation harness.
type Store interface {
	// SaveReport stores one per-project report.
	SaveReport(ctx context.Context, report *models.ProjectReport) error

	// GetReport returns the most recent report for a project.
	GetReport(ctx context.Context, projectID string) (*models.ProjectReport, error)

	// ListReports returns the most recent reports, newest first.
	ListReports(ctx context.Context, limit int) ([]*models.ProjectReport, error)

	// Close releases the underlying connection.
	Close() error
}
