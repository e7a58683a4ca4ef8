package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/truckfactor/truckfactor-go/internal/models"
)

// Format selects the report rendering.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// WriteReport renders one project report. JSON output is the record
// format consumed by the downstream evaluation harness; text output is a
// human summary.
func WriteReport(w io.Writer, report *models.ProjectReport, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatText:
		_, err := io.WriteString(w, formatText(report))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func formatText(report *models.ProjectReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Project: %s\n", report.ProjectID)
	if report.EmptyProject {
		b.WriteString("  (empty project: no commits or no files — truck factor 0)\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Contributors: %d\n", len(report.Contributors))
	fmt.Fprintf(&b, "Baseline truck factor: %d\n", report.Baseline.TruckFactor)
	fmt.Fprintf(&b, "Social truck factor:   %d\n", report.Social.TruckFactor)

	if report.AliasUnconfirmed {
		b.WriteString("  note: identity resolution has unconfirmed merges; discount accordingly\n")
	}
	if len(report.ParseIssues) > 0 {
		fmt.Fprintf(&b, "  note: %d malformed commit records were skipped\n", len(report.ParseIssues))
	}

	writeRemoval(&b, "baseline", report.Baseline)
	writeRemoval(&b, "social", report.Social)

	fmt.Fprintf(&b, "Parameters: mode=%s knowledge=%.2f coverage=%.2f redundancy=%.2f decay=%.2f\n",
		report.Params.WeightMode,
		report.Params.KnowledgeThreshold,
		report.Params.CoverageThreshold,
		report.Params.RedundancyThreshold,
		report.Params.DecayStrength,
	)
	return b.String()
}

func writeRemoval(b *strings.Builder, label string, result *models.TruckFactorResult) {
	if result == nil || len(result.RemovalOrder) == 0 {
		return
	}
	fmt.Fprintf(b, "Removal order (%s):\n", label)
	for i, id := range result.RemovalOrder {
		coverage := result.CoverageTrace[i]
		fmt.Fprintf(b, "  %2d. %-40s coverage %.2f\n", i+1, id, coverage)
	}
}
