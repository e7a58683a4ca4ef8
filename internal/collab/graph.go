package collab

import (
	"math"
	"regexp"
	"sort"

	"github.com/truckfactor/truckfactor-go/internal/config"
	"github.com/truckfactor/truckfactor-go/internal/models"
	"github.com/truckfactor/truckfactor-go/internal/ownership"
)

// botPattern flags automation accounts so they never contribute
// collaboration signal.
var botPattern = regexp.MustCompile(`(?i)(\[bot\]|\bbot\b|dependabot|renovate)`)

// Builder derives the collaboration graph from the ownership matrix.
// The graph is rebuilt wholesale per snapshot; it is never updated
// incrementally.
type Builder struct {
	cfg config.CollabConfig
}

func NewBuilder(cfg config.CollabConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Graph is an undirected simple weighted graph over contributors, stored
// as an index arena with per-node adjacency maps for O(1) weight lookups.
type Graph struct {
	ids    []string
	index  map[string]int
	adj    []map[int]float64
	shared []map[int]int
}

// Build connects every pair of contributors that both hold non-zero
// ownership on a shared file. The per-file edge increment is
//
//	max(0, fresh − decay·ln(1+gapDays))
//
// where gapDays is the gap between the two contributors' activity
// intervals on the file (zero when the intervals overlap). This keeps
// contributors who touched a file years apart from being linked.
func (b *Builder) Build(contributors []models.Contributor, matrix *ownership.Matrix) *Graph {
	g := &Graph{index: make(map[string]int, len(contributors))}

	bots := make(map[string]bool)
	for _, c := range contributors {
		g.index[c.ID] = len(g.ids)
		g.ids = append(g.ids, c.ID)
		if b.cfg.FilterBots && (botPattern.MatchString(c.Name) || botPattern.MatchString(c.Email)) {
			bots[c.ID] = true
		}
	}
	g.adj = make([]map[int]float64, len(g.ids))
	g.shared = make([]map[int]int, len(g.ids))
	for i := range g.adj {
		g.adj[i] = make(map[int]float64)
		g.shared[i] = make(map[int]int)
	}

	for _, path := range matrix.Files() {
		entries := matrix.EntriesFor(path)
		for i := 0; i < len(entries); i++ {
			for j := i + 1; j < len(entries); j++ {
				a, bEntry := entries[i], entries[j]
				if a.ContributorID == bEntry.ContributorID {
					continue
				}
				if bots[a.ContributorID] || bots[bEntry.ContributorID] {
					continue
				}
				if a.Weight <= 0 || bEntry.Weight <= 0 {
					continue
				}

				increment := b.increment(intervalGapDays(a, bEntry))
				if increment <= 0 {
					continue
				}

				ia, ok := g.index[a.ContributorID]
				if !ok {
					continue
				}
				ib, ok := g.index[bEntry.ContributorID]
				if !ok {
					continue
				}
				g.adj[ia][ib] += increment
				g.adj[ib][ia] += increment
				g.shared[ia][ib]++
				g.shared[ib][ia]++
			}
		}
	}

	return g
}

func (b *Builder) increment(gapDays float64) float64 {
	return b.cfg.FreshConnectionWeight - b.cfg.DecayStrength*math.Log(1+gapDays)
}

// intervalGapDays measures the distance between two contributors'
// activity intervals on a file. Overlapping intervals give zero.
func intervalGapDays(a, b models.FileOwnershipEntry) float64 {
	if !a.LastTouch.Before(b.FirstTouch) && !b.LastTouch.Before(a.FirstTouch) {
		return 0
	}
	var gap float64
	if a.LastTouch.Before(b.FirstTouch) {
		gap = b.FirstTouch.Sub(a.LastTouch).Hours() / 24
	} else {
		gap = a.FirstTouch.Sub(b.LastTouch).Hours() / 24
	}
	return gap
}

// Size returns the number of contributor nodes.
func (g *Graph) Size() int {
	return len(g.ids)
}

// Index returns the arena index of a contributor ID.
func (g *Graph) Index(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// ID returns the contributor ID at an arena index.
func (g *Graph) ID(i int) string {
	return g.ids[i]
}

// Weight returns the edge weight between two contributors, zero when not
// connected.
func (g *Graph) Weight(a, b string) float64 {
	ia, ok := g.index[a]
	if !ok {
		return 0
	}
	ib, ok := g.index[b]
	if !ok {
		return 0
	}
	return g.adj[ia][ib]
}

// WeightIdx is the index-based variant of Weight for hot loops.
func (g *Graph) WeightIdx(ia, ib int) float64 {
	return g.adj[ia][ib]
}

// Adjacent reports whether two contributors are connected with weight at
// or above the given threshold. A +Inf threshold is never satisfied,
// which degenerates the socially-aware estimator to the baseline.
func (g *Graph) Adjacent(a, b string, threshold float64) bool {
	if math.IsInf(threshold, 1) {
		return false
	}
	return g.Weight(a, b) >= threshold
}

// Edges materializes the edge set, sorted by (A, B) with A < B.
// Zero-weight pairs are omitted; the graph is sparse.
func (g *Graph) Edges() []models.CollaborationEdge {
	var edges []models.CollaborationEdge
	for ia, neighbors := range g.adj {
		for ib, weight := range neighbors {
			if ia >= ib || weight <= 0 {
				continue
			}
			a, b := g.ids[ia], g.ids[ib]
			if a > b {
				a, b = b, a
			}
			edges = append(edges, models.CollaborationEdge{
				A:      a,
				B:      b,
				Weight: weight,
				Shared: g.shared[ia][ib],
			})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return edges
}

// Degree returns a contributor's weighted degree; isolated contributors
// return zero (a valid state, not an error).
func (g *Graph) Degree(id string) float64 {
	i, ok := g.index[id]
	if !ok {
		return 0
	}
	total := 0.0
	for _, weight := range g.adj[i] {
		total += weight
	}
	return total
}
