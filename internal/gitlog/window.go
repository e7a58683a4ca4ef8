package gitlog

import (
	"time"

	"github.com/truckfactor/truckfactor-go/internal/models"
)

// Window constrains analysis to a slice of history. Zero bounds mean
// unbounded on that side.
type Window struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the window places no constraint at all.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Apply filters commits to those inside the window. An inverted window
// (start after end) is treated as unbounded, matching the behavior of
// taking the full history rather than an empty one.
func (w Window) Apply(commits []models.Commit) []models.Commit {
	if w.IsZero() {
		return commits
	}
	if !w.Start.IsZero() && !w.End.IsZero() && w.Start.After(w.End) {
		return commits
	}

	filtered := make([]models.Commit, 0, len(commits))
	for _, commit := range commits {
		if !w.Start.IsZero() && commit.Timestamp.Before(w.Start) {
			continue
		}
		if !w.End.IsZero() && commit.Timestamp.After(w.End) {
			continue
		}
		filtered = append(filtered, commit)
	}
	return filtered
}
