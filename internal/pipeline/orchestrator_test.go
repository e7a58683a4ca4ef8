package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truckfactor/truckfactor-go/internal/config"
)

// testLog covers four files across three contributors: alice solely owns
// two, bob solely owns two, and carol has minor touches on alice's files
// right after alice worked on them.
const testLog = `sha1|Alice|alice@example.com|2024-03-01T12:00:00+00:00|Initial engine
100	0	a.go
100	0	b.go

sha2|Bob|bob@example.com|2024-03-01T12:01:00+00:00|Storage layer
100	0	c.go
100	0	d.go

sha3|Carol|carol@example.com|2024-03-01T13:00:00+00:00|Small fixes
10	0	a.go
10	0	b.go
`

func testOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	cfg := config.Default()
	cfg.Ownership.WeightMode = "lines"

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	orchestrator, err := NewOrchestrator(cfg, logger, nil)
	require.NoError(t, err)
	return orchestrator
}

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commits.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestAnalyze_FromLogFile(t *testing.T) {
	orchestrator := testOrchestrator(t)

	report, err := orchestrator.Analyze(context.Background(), Project{
		ID:      "proj-a",
		LogPath: writeLog(t, testLog),
	})
	require.NoError(t, err)

	assert.Equal(t, "proj-a", report.ProjectID)
	assert.Len(t, report.Contributors, 3)
	assert.False(t, report.EmptyProject)

	// Carol's fresh collaboration with alice absorbs one departure in
	// the social variant.
	assert.Equal(t, 2, report.Baseline.TruckFactor)
	assert.Equal(t, 3, report.Social.TruckFactor)
}

func TestAnalyze_NoInputYieldsEmptyProjectReport(t *testing.T) {
	orchestrator := testOrchestrator(t)

	report, err := orchestrator.Analyze(context.Background(), Project{ID: "proj-empty"})
	require.NoError(t, err)

	assert.True(t, report.EmptyProject)
	assert.Equal(t, 0, report.Baseline.TruckFactor)
	assert.Equal(t, 0, report.Social.TruckFactor)
	assert.Empty(t, report.Contributors)
}

func TestAnalyzeAll_OneFailureDoesNotAbortSiblings(t *testing.T) {
	orchestrator := testOrchestrator(t)

	projects := []Project{
		{ID: "proj-good", LogPath: writeLog(t, testLog)},
		{ID: "proj-bad", LogPath: filepath.Join(t.TempDir(), "missing.log")},
	}

	batch, err := orchestrator.AnalyzeAll(context.Background(), projects)
	require.NoError(t, err)

	require.Len(t, batch.Reports, 1)
	assert.Equal(t, "proj-good", batch.Reports[0].ProjectID)

	require.Len(t, batch.Failed, 1)
	assert.Error(t, batch.Failed["proj-bad"])
}

func TestAnalyzeAll_ManyProjectsConcurrently(t *testing.T) {
	orchestrator := testOrchestrator(t)

	logPath := writeLog(t, testLog)
	var projects []Project
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6"} {
		projects = append(projects, Project{ID: id, LogPath: logPath})
	}

	batch, err := orchestrator.AnalyzeAll(context.Background(), projects)
	require.NoError(t, err)
	require.Len(t, batch.Reports, 6)
	assert.Empty(t, batch.Failed)

	for _, report := range batch.Reports {
		assert.Equal(t, 2, report.Baseline.TruckFactor)
		assert.Equal(t, 3, report.Social.TruckFactor)
	}
}
