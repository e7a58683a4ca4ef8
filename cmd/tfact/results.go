package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/truckfactor/truckfactor-go/internal/output"
	"github.com/truckfactor/truckfactor-go/internal/storage"
)

var (
	resultsLimit int
	resultsJSON  bool
)

var resultsCmd = &cobra.Command{
	Use:   "results [project-id]",
	Short: "Show stored truck factor reports",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runResults,
}

func init() {
	resultsCmd.Flags().IntVar(&resultsLimit, "limit", 20, "maximum reports to list")
	resultsCmd.Flags().BoolVar(&resultsJSON, "json", false, "emit JSON records")
}

func runResults(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	format := output.FormatText
	if resultsJSON {
		format = output.FormatJSON
	}

	if len(args) == 1 {
		report, err := store.GetReport(ctx, args[0])
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no report stored for project %q", args[0])
		}
		if err != nil {
			return err
		}
		return output.WriteReport(os.Stdout, report, format)
	}

	reports, err := store.ListReports(ctx, resultsLimit)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Println("No reports stored yet. Run 'tfact analyze --save' first.")
		return nil
	}

	for _, report := range reports {
		if resultsJSON {
			if err := output.WriteReport(os.Stdout, report, format); err != nil {
				return err
			}
			continue
		}
		flags := ""
		if report.EmptyProject {
			flags += " [empty]"
		}
		if report.AliasUnconfirmed {
			flags += " [alias-unconfirmed]"
		}
		fmt.Printf("%-30s baseline=%d social=%d  %s%s\n",
			report.ProjectID,
			report.Baseline.TruckFactor,
			report.Social.TruckFactor,
			report.GeneratedAt.Format("2006-01-02 15:04"),
			flags)
	}
	return nil
}
