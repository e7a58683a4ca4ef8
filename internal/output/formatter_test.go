package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truckfactor/truckfactor-go/internal/models"
)

func sampleReport() *models.ProjectReport {
	return &models.ProjectReport{
		ID:          "report-1",
		ProjectID:   "proj-a",
		GeneratedAt: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		Contributors: []models.Contributor{
			{ID: "alice|alice@example.com", Name: "Alice"},
			{ID: "bob|bob@example.com", Name: "Bob"},
		},
		Baseline: &models.TruckFactorResult{
			Variant:       models.VariantBaseline,
			TruckFactor:   2,
			RemovalOrder:  []string{"alice|alice@example.com", "bob|bob@example.com"},
			CoverageTrace: []float64{0.5, 0},
		},
		Social: &models.TruckFactorResult{
			Variant:       models.VariantSocial,
			TruckFactor:   2,
			RemovalOrder:  []string{"alice|alice@example.com", "bob|bob@example.com"},
			CoverageTrace: []float64{0.5, 0},
		},
		Params: models.ReportParams{
			WeightMode:          "doa",
			KnowledgeThreshold:  0.75,
			CoverageThreshold:   0.5,
			RedundancyThreshold: 1.0,
			DecayStrength:       0.25,
		},
	}
}

func TestWriteReport_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sampleReport(), FormatText))

	out := buf.String()
	assert.Contains(t, out, "Project: proj-a")
	assert.Contains(t, out, "Baseline truck factor: 2")
	assert.Contains(t, out, "Social truck factor:   2")
	assert.Contains(t, out, "Removal order (baseline):")
	assert.Contains(t, out, "mode=doa")
	assert.NotContains(t, out, "unconfirmed merges")
}

func TestWriteReport_TextFlags(t *testing.T) {
	report := sampleReport()
	report.AliasUnconfirmed = true
	report.ParseIssues = []models.ParseIssue{{Line: 7, Reason: "non-numeric line counts"}}

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, report, FormatText))

	out := buf.String()
	assert.Contains(t, out, "unconfirmed merges")
	assert.Contains(t, out, "1 malformed commit records were skipped")
}

func TestWriteReport_TextEmptyProject(t *testing.T) {
	report := &models.ProjectReport{
		ProjectID:    "proj-empty",
		EmptyProject: true,
		Baseline:     &models.TruckFactorResult{},
		Social:       &models.TruckFactorResult{},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, report, FormatText))

	out := buf.String()
	assert.Contains(t, out, "truck factor 0")
	assert.NotContains(t, out, "Baseline truck factor")
}

func TestWriteReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sampleReport(), FormatJSON))

	var decoded models.ProjectReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "proj-a", decoded.ProjectID)
	assert.Equal(t, 2, decoded.Baseline.TruckFactor)
	assert.Equal(t, "doa", decoded.Params.WeightMode)
}

func TestWriteReport_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := WriteReport(&buf, sampleReport(), Format("yaml"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "yaml"))
}
