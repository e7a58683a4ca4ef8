// Package estimator implements the truck factor estimators: the baseline
// ownership-coverage variant and the socially-aware variant that models
// knowledge redundancy through the collaboration graph.
package estimator

import (
	"log/slog"
	"sort"

	"github.com/truckfactor/truckfactor-go/internal/collab"
	"github.com/truckfactor/truckfactor-go/internal/config"
	"github.com/truckfactor/truckfactor-go/internal/models"
	"github.com/truckfactor/truckfactor-go/internal/ownership"
)

// Estimator runs greedy truck factor estimation over an immutable
// snapshot. Each run keeps its mutable working state local, so a single
// Estimator is safe to use concurrently across snapshots and the baseline
// and social variants may run concurrently against the same snapshot.
type Estimator struct {
	cfg    config.EstimatorConfig
	logger *slog.Logger
}

func New(cfg config.EstimatorConfig) *Estimator {
	return &Estimator{
		cfg:    cfg,
		logger: slog.Default().With("component", "estimator"),
	}
}

// Baseline computes the truck factor under the independent-knowledge
// assumption: a file stays covered only while some remaining contributor
// individually holds a qualifying ownership share on it.
func (e *Estimator) Baseline(projectID string, contributors []models.Contributor, matrix *ownership.Matrix) *models.TruckFactorResult {
	ws := newWorkset(contributors, matrix, e.cfg.KnowledgeThreshold)
	result := e.run(ws, func(path string) bool {
		return ws.anyQualifiedRemaining(path)
	})
	result.ProjectID = projectID
	result.Variant = models.VariantBaseline
	return result
}

// Social computes the truck factor with collaboration-aware redundancy:
// a file also stays covered when a remaining contributor who touched it
// is graph-adjacent, at or above the redundancy threshold, to a departed
// contributor who held qualifying knowledge. With the redundancy
// threshold at +Inf no adjacency ever qualifies and the result converges
// exactly to the baseline's.
func (e *Estimator) Social(projectID string, contributors []models.Contributor, matrix *ownership.Matrix, graph *collab.Graph) *models.TruckFactorResult {
	ws := newWorkset(contributors, matrix, e.cfg.KnowledgeThreshold)
	result := e.run(ws, func(path string) bool {
		if ws.anyQualifiedRemaining(path) {
			return true
		}
		// Departed knowledge survives when a remaining toucher of the
		// file collaborated closely enough with a departed qualifier.
		for _, departed := range ws.qualified[path] {
			if !ws.removed[departed] {
				continue
			}
			for _, toucher := range ws.touchers[path] {
				if ws.removed[toucher] || toucher == departed {
					continue
				}
				if graph.Adjacent(toucher, departed, e.cfg.RedundancyThreshold) {
					return true
				}
			}
		}
		return false
	})
	result.ProjectID = projectID
	result.Variant = models.VariantSocial
	return result
}

// run executes the greedy removal loop: repeatedly remove the contributor
// qualified on the most still-covered files (ties broken by cumulative
// ownership weight, then canonical ID) until file coverage falls to the
// configured threshold. The loop runs at least once whenever both files
// and contributors exist, so the reported factor is never zero for a
// non-empty project. This greedy strategy is the standard set-cover
// approximation for this metric family and does not claim optimality.
func (e *Estimator) run(ws *workset, alive func(path string) bool) *models.TruckFactorResult {
	result := &models.TruckFactorResult{
		RemovalOrder:  []string{},
		CoverageTrace: []float64{},
	}

	if len(ws.files) == 0 || len(ws.order) == 0 {
		return result
	}

	for {
		coverage := ws.coverage(alive)
		if len(result.RemovalOrder) > 0 && coverage < e.cfg.CoverageThreshold {
			break
		}

		next, ok := ws.pick(alive)
		if !ok {
			break
		}
		ws.removed[next] = true
		result.RemovalOrder = append(result.RemovalOrder, next)
		result.CoverageTrace = append(result.CoverageTrace, ws.coverage(alive))
	}

	result.TruckFactor = len(result.RemovalOrder)
	e.logger.Debug("greedy removal complete",
		"files", len(ws.files),
		"contributors", len(ws.order),
		"truck_factor", result.TruckFactor,
	)
	return result
}

// workset is the mutable working state for one greedy run over an
// otherwise immutable snapshot.
type workset struct {
	files     []string
	order     []string            // contributor IDs, deterministic order
	qualified map[string][]string // file -> qualifying contributor IDs
	qualSet   map[string]map[string]bool
	touchers  map[string][]string // file -> contributors with any activity
	totals    map[string]float64  // contributor -> cumulative weight
	removed   map[string]bool
}

func newWorkset(contributors []models.Contributor, matrix *ownership.Matrix, knowledgeThreshold float64) *workset {
	ws := &workset{
		files:     matrix.Files(),
		qualified: make(map[string][]string),
		qualSet:   make(map[string]map[string]bool),
		touchers:  make(map[string][]string),
		totals:    make(map[string]float64),
		removed:   make(map[string]bool),
	}

	for _, c := range contributors {
		ws.order = append(ws.order, c.ID)
		ws.totals[c.ID] = matrix.TotalWeight(c.ID)
	}
	sort.Strings(ws.order)

	for _, path := range ws.files {
		ws.qualSet[path] = make(map[string]bool)
		for _, entry := range matrix.EntriesFor(path) {
			if entry.Weight <= 0 {
				continue
			}
			ws.touchers[path] = append(ws.touchers[path], entry.ContributorID)
			if matrix.Share(path, entry.ContributorID) >= knowledgeThreshold {
				ws.qualified[path] = append(ws.qualified[path], entry.ContributorID)
				ws.qualSet[path][entry.ContributorID] = true
			}
		}
	}

	return ws
}

func (ws *workset) anyQualifiedRemaining(path string) bool {
	for _, cid := range ws.qualified[path] {
		if !ws.removed[cid] {
			return true
		}
	}
	return false
}

// coverage is the fraction of files that still have a covering owner
// under the supplied abandonment definition.
func (ws *workset) coverage(alive func(path string) bool) float64 {
	if len(ws.files) == 0 {
		return 0
	}
	covered := 0
	for _, path := range ws.files {
		if alive(path) {
			covered++
		}
	}
	return float64(covered) / float64(len(ws.files))
}

// pick selects the next contributor to remove: the one qualified on the
// largest number of still-covered files, ties broken by total cumulative
// weight descending, then canonical ID ascending for determinism.
func (ws *workset) pick(alive func(path string) bool) (string, bool) {
	impact := make(map[string]int)
	for _, path := range ws.files {
		if !alive(path) {
			continue
		}
		for cid := range ws.qualSet[path] {
			if !ws.removed[cid] {
				impact[cid]++
			}
		}
	}

	best := ""
	for _, cid := range ws.order {
		if ws.removed[cid] {
			continue
		}
		if best == "" {
			best = cid
			continue
		}
		switch {
		case impact[cid] > impact[best]:
			best = cid
		case impact[cid] == impact[best] && ws.totals[cid] > ws.totals[best]:
			best = cid
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}
