package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/truckfactor/truckfactor-go/internal/gitlog"
	"github.com/truckfactor/truckfactor-go/internal/identity"
	"github.com/truckfactor/truckfactor-go/internal/output"
	"github.com/truckfactor/truckfactor-go/internal/pipeline"
	"github.com/truckfactor/truckfactor-go/internal/storage"
)

var (
	analyzeLogFile       string
	analyzeProjectID     string
	analyzeOverrides     string
	analyzeSince         string
	analyzeUntil         string
	analyzeJSON          bool
	analyzeSave          bool
	analyzeNoRedundancy  bool
	analyzeKnowledgeThr  float64
	analyzeCoverageThr   float64
	analyzeRedundancyThr float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [repo-path...]",
	Short: "Estimate truck factor for one or more repositories",
	Long: `Analyze local git repositories (or a pre-materialized commit log) and
report baseline and socially-aware truck factor estimates. Multiple
repositories are analyzed concurrently; one failing repository does not
abort the others.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeLogFile, "log", "", "materialized git log file (numstat format) instead of a repo path")
	analyzeCmd.Flags().StringVar(&analyzeProjectID, "project", "", "project ID (defaults to the repo directory name)")
	analyzeCmd.Flags().StringVar(&analyzeOverrides, "overrides", "", "manual alias override mapping (YAML)")
	analyzeCmd.Flags().StringVar(&analyzeSince, "since", "", "only consider commits at or after this date (YYYY-MM-DD or RFC3339)")
	analyzeCmd.Flags().StringVar(&analyzeUntil, "until", "", "only consider commits at or before this date (YYYY-MM-DD or RFC3339)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit JSON records for the evaluation harness")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "persist reports to the configured store")
	analyzeCmd.Flags().BoolVar(&analyzeNoRedundancy, "no-redundancy", false, "disable social redundancy (redundancy threshold = +Inf)")
	analyzeCmd.Flags().Float64Var(&analyzeKnowledgeThr, "knowledge-threshold", -1, "override knowledge threshold [0,1]")
	analyzeCmd.Flags().Float64Var(&analyzeCoverageThr, "coverage-threshold", -1, "override coverage threshold [0,1]")
	analyzeCmd.Flags().Float64Var(&analyzeRedundancyThr, "redundancy-threshold", -1, "override redundancy threshold")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 0 && analyzeLogFile == "" {
		return fmt.Errorf("provide at least one repository path or --log")
	}

	if analyzeOverrides != "" {
		cfg.Identity.OverridesPath = analyzeOverrides
	}
	if analyzeKnowledgeThr >= 0 {
		cfg.Estimator.KnowledgeThreshold = analyzeKnowledgeThr
	}
	if analyzeCoverageThr >= 0 {
		cfg.Estimator.CoverageThreshold = analyzeCoverageThr
	}
	if analyzeRedundancyThr >= 0 {
		cfg.Estimator.RedundancyThreshold = analyzeRedundancyThr
	}
	if analyzeNoRedundancy {
		cfg.Estimator.RedundancyThreshold = math.Inf(1)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	queue, err := identity.NewBoltQueue(cfg.Identity.PendingDBPath)
	if err != nil {
		logger.WithError(err).Warn("Pending-review queue unavailable; candidates will not be persisted")
		queue = nil
	} else {
		defer queue.Close()
	}

	var reviewQueue identity.ReviewQueue
	if queue != nil {
		reviewQueue = queue
	}

	orchestrator, err := pipeline.NewOrchestrator(cfg, logger, reviewQueue)
	if err != nil {
		return err
	}

	window, err := parseWindow(analyzeSince, analyzeUntil)
	if err != nil {
		return err
	}

	projects := collectProjects(args, window)
	batch, err := orchestrator.AnalyzeAll(ctx, projects)
	if err != nil {
		return err
	}

	format := output.FormatText
	if analyzeJSON {
		format = output.FormatJSON
	}

	sort.Slice(batch.Reports, func(i, j int) bool {
		return batch.Reports[i].ProjectID < batch.Reports[j].ProjectID
	})

	var store storage.Store
	if analyzeSave {
		store, err = storage.New(cfg.Storage, logger)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	for _, report := range batch.Reports {
		if err := output.WriteReport(os.Stdout, report, format); err != nil {
			return err
		}
		if store != nil {
			if err := store.SaveReport(ctx, report); err != nil {
				return err
			}
		}
	}

	for projectID, projectErr := range batch.Failed {
		fmt.Fprintf(os.Stderr, "❌ %s: %v\n", projectID, projectErr)
	}
	if len(batch.Failed) > 0 {
		return fmt.Errorf("%d of %d projects failed", len(batch.Failed), len(projects))
	}
	return nil
}

func collectProjects(args []string, window gitlog.Window) []pipeline.Project {
	var projects []pipeline.Project

	if analyzeLogFile != "" {
		id := analyzeProjectID
		if id == "" {
			id = filepath.Base(analyzeLogFile)
		}
		projects = append(projects, pipeline.Project{ID: id, LogPath: analyzeLogFile, Window: window})
	}

	for _, path := range args {
		id := filepath.Base(filepath.Clean(path))
		if len(args) == 1 && analyzeProjectID != "" && analyzeLogFile == "" {
			id = analyzeProjectID
		}
		projects = append(projects, pipeline.Project{ID: id, RepoPath: path, Window: window})
	}
	return projects
}

// parseWindow accepts plain dates or full RFC3339 timestamps. An --until
// given as a date is inclusive of that whole day.
func parseWindow(since, until string) (gitlog.Window, error) {
	var window gitlog.Window

	parse := func(value string, endOfDay bool) (time.Time, error) {
		if ts, err := time.Parse(time.RFC3339, value); err == nil {
			return ts, nil
		}
		ts, err := time.Parse("2006-01-02", value)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC3339)", value)
		}
		if endOfDay {
			ts = ts.Add(24*time.Hour - time.Nanosecond)
		}
		return ts, nil
	}

	if since != "" {
		ts, err := parse(since, false)
		if err != nil {
			return gitlog.Window{}, err
		}
		window.Start = ts
	}
	if until != "" {
		ts, err := parse(until, true)
		if err != nil {
			return gitlog.Window{}, err
		}
		window.End = ts
	}
	return window, nil
}
