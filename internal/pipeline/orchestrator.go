package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/truckfactor/truckfactor-go/internal/collab"
	"github.com/truckfactor/truckfactor-go/internal/config"
	"github.com/truckfactor/truckfactor-go/internal/estimator"
	"github.com/truckfactor/truckfactor-go/internal/gitlog"
	"github.com/truckfactor/truckfactor-go/internal/identity"
	"github.com/truckfactor/truckfactor-go/internal/models"
	"github.com/truckfactor/truckfactor-go/internal/ownership"
)

// Project describes one analysis input: either a local git clone or a
// pre-materialized commit log file.
type Project struct {
	ID       string
	RepoPath string // local clone; git log is executed here
	LogPath  string // materialized log file; takes precedence when set
	Window   gitlog.Window
}

// Orchestrator runs the full estimation pipeline per project and fans out
// across projects. Each project's snapshot is self-contained, so
// independent projects run concurrently with no shared mutable state.
type Orchestrator struct {
	cfg     *config.Config
	logger  *logrus.Logger
	queue   identity.ReviewQueue
	builder *ownership.Builder
}

// NewOrchestrator wires the pipeline stages. queue may be nil, in which
// case pending merge candidates are not persisted.
func NewOrchestrator(cfg *config.Config, logger *logrus.Logger, queue identity.ReviewQueue) (*Orchestrator, error) {
	builder, err := ownership.NewBuilder(cfg.Ownership)
	if err != nil {
		return nil, err
	}
	if queue == nil {
		queue = identity.NopQueue{}
	}
	return &Orchestrator{
		cfg:     cfg,
		logger:  logger,
		queue:   queue,
		builder: builder,
	}, nil
}

// BatchResult collects per-project outcomes; one project's failure never
// aborts its siblings.
type BatchResult struct {
	Reports []*models.ProjectReport
	Failed  map[string]error
}

// AnalyzeAll analyzes every project with bounded concurrency.
func (o *Orchestrator) AnalyzeAll(ctx context.Context, projects []Project) (*BatchResult, error) {
	result := &BatchResult{Failed: make(map[string]error)}

	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(o.cfg.Batch.Concurrency)

	for _, project := range projects {
		project := project
		group.Go(func() error {
			report, err := o.Analyze(ctx, project)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.logger.WithError(err).WithField("project", project.ID).Error("Project analysis failed")
				result.Failed[project.ID] = err
				return nil // sibling projects continue
			}
			result.Reports = append(result.Reports, report)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Analyze runs the strict stage chain for one project: resolve
// identities, build the ownership matrix and collaboration graph, run
// both estimators concurrently against the immutable snapshot, then
// aggregate.
func (o *Orchestrator) Analyze(ctx context.Context, project Project) (*models.ProjectReport, error) {
	startTime := time.Now()
	o.logger.WithField("project", project.ID).Info("Starting truck factor analysis")

	parsed, err := o.loadCommits(project)
	if err != nil {
		return nil, fmt.Errorf("load commits for %s: %w", project.ID, err)
	}
	commits := project.Window.Apply(parsed.Commits)

	overrides, err := identity.LoadOverrides(o.cfg.Identity.OverridesPath)
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}

	resolver := identity.NewResolver(o.cfg.Identity, overrides)
	resolution := resolver.Resolve(project.ID, commits)

	if len(resolution.Pending) > 0 {
		if err := o.queue.Enqueue(resolution.Pending); err != nil {
			// Analysis proceeds with best-effort canonicalization; the
			// report is flagged alias-unconfirmed either way.
			o.logger.WithError(err).WithField("project", project.ID).Warn("Failed to persist pending merge candidates")
		}
	}

	renames := gitlog.RenameMap(commits)
	matrix := o.builder.Build(resolution, commits, renames)

	graphBuilder := collab.NewBuilder(o.cfg.Collab)
	graph := graphBuilder.Build(resolution.Contributors, matrix)

	snapshot := &models.ProjectSnapshot{
		ProjectID:    project.ID,
		Contributors: resolution.Contributors,
		Ownership:    matrix.Entries,
		Edges:        graph.Edges(),
		FileCount:    len(matrix.Files()),
		CommitCount:  len(commits),
		Pending:      resolution.Pending,
		ParseIssues:  parsed.Issues,
	}

	est := estimator.New(o.cfg.Estimator)

	// Both estimators read the same immutable snapshot; neither mutates
	// shared data.
	var baseline, social *models.TruckFactorResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		baseline = est.Baseline(project.ID, snapshot.Contributors, matrix)
	}()
	go func() {
		defer wg.Done()
		social = est.Social(project.ID, snapshot.Contributors, matrix, graph)
	}()
	wg.Wait()

	report, err := estimator.Aggregate(snapshot, baseline, social, models.ReportParams{
		WeightMode:          o.cfg.Ownership.WeightMode,
		KnowledgeThreshold:  o.cfg.Estimator.KnowledgeThreshold,
		CoverageThreshold:   o.cfg.Estimator.CoverageThreshold,
		RedundancyThreshold: o.cfg.Estimator.RedundancyThreshold,
		FreshConnection:     o.cfg.Collab.FreshConnectionWeight,
		DecayStrength:       o.cfg.Collab.DecayStrength,
	})
	if err != nil {
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{
		"project":  project.ID,
		"baseline": report.Baseline.TruckFactor,
		"social":   report.Social.TruckFactor,
		"duration": time.Since(startTime),
	}).Info("Analysis complete")

	return report, nil
}

func (o *Orchestrator) loadCommits(project Project) (*gitlog.ParseResult, error) {
	if project.LogPath != "" {
		file, err := os.Open(project.LogPath)
		if err != nil {
			return nil, fmt.Errorf("open commit log: %w", err)
		}
		defer file.Close()
		return gitlog.Parse(io.Reader(file))
	}
	if project.RepoPath != "" {
		return gitlog.ParseGitHistory(project.RepoPath)
	}
	// No input at all is a data gap, not an error: the report will carry
	// the empty-project flag.
	return &gitlog.ParseResult{}, nil
}
