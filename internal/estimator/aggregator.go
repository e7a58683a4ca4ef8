package estimator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/truckfactor/truckfactor-go/internal/models"
)

// Aggregate merges both estimator traces for a project into one report
// and enforces the cross-estimator invariants. Violations are reported as
// errors rather than silently repaired.
func Aggregate(snapshot *models.ProjectSnapshot, baseline, social *models.TruckFactorResult, params models.ReportParams) (*models.ProjectReport, error) {
	if baseline == nil || social == nil {
		return nil, fmt.Errorf("aggregate %s: both estimator results are required", snapshot.ProjectID)
	}

	hasContributors := len(snapshot.Contributors) > 0
	hasFiles := snapshot.FileCount > 0

	if hasContributors && hasFiles {
		if len(baseline.CoverageTrace) == 0 {
			return nil, fmt.Errorf("aggregate %s: baseline coverage trace is empty for a non-empty project", snapshot.ProjectID)
		}
		if len(social.CoverageTrace) == 0 {
			return nil, fmt.Errorf("aggregate %s: social coverage trace is empty for a non-empty project", snapshot.ProjectID)
		}
		if baseline.TruckFactor < 1 {
			return nil, fmt.Errorf("aggregate %s: baseline truck factor %d below 1 with %d files present",
				snapshot.ProjectID, baseline.TruckFactor, snapshot.FileCount)
		}
		if social.TruckFactor < baseline.TruckFactor {
			return nil, fmt.Errorf("aggregate %s: social truck factor %d below baseline %d (redundancy cannot lower the estimate)",
				snapshot.ProjectID, social.TruckFactor, baseline.TruckFactor)
		}
	}

	report := &models.ProjectReport{
		ID:               uuid.NewString(),
		ProjectID:        snapshot.ProjectID,
		GeneratedAt:      time.Now().UTC(),
		Contributors:     snapshot.Contributors,
		Baseline:         baseline,
		Social:           social,
		Params:           params,
		EmptyProject:     !hasContributors || !hasFiles,
		AliasUnconfirmed: len(snapshot.Pending) > 0,
		ParseIssues:      snapshot.ParseIssues,
	}
	return report, nil
}
