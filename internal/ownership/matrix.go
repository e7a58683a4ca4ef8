package ownership

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/gobwas/glob"

	"github.com/truckfactor/truckfactor-go/internal/config"
	"github.com/truckfactor/truckfactor-go/internal/identity"
	"github.com/truckfactor/truckfactor-go/internal/models"
)

// Builder accumulates the per-file, per-contributor knowledge matrix from
// a commit stream. Building is deterministic and order-independent: the
// result depends only on the set of commits, never on stream order.
type Builder struct {
	cfg      config.OwnershipConfig
	excludes []glob.Glob
}

// NewBuilder compiles the third-party exclusion patterns up front so a
// bad pattern fails at configuration time, not mid-analysis.
func NewBuilder(cfg config.OwnershipConfig) (*Builder, error) {
	builder := &Builder{cfg: cfg}
	for _, pattern := range cfg.ExcludePatterns {
		compiled, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compile exclude pattern %q: %w", pattern, err)
		}
		builder.excludes = append(builder.excludes, compiled)
	}
	return builder, nil
}

// Matrix is the finished ownership matrix for one snapshot.
type Matrix struct {
	Entries []models.FileOwnershipEntry

	files   []string
	byFile  map[string][]int // indexes into Entries, per file
	shares  map[string]map[string]float64
	totals  map[string]float64 // per-contributor cumulative weight
	touched map[string]map[string]bool
}

// cell is the working accumulator for one (file, contributor) pair.
type cell struct {
	lines       float64
	commits     int
	firstTouch  time.Time
	lastTouch   time.Time
	firstAuthor bool
}

// fileAccum tracks per-file state needed for first-authorship and DoA.
type fileAccum struct {
	cells map[string]*cell

	// earliest commit on the file, resolved order-independently by
	// (timestamp, SHA) so stream order never matters
	earliestTime time.Time
	earliestSHA  string
	earliestCID  string
}

// Build produces the ownership matrix. renames maps historical paths to
// their final logical path; pass nil when no rename signal is available,
// in which case renamed files are treated as distinct (a documented
// approximation).
func (b *Builder) Build(resolution *identity.Resolution, commits []models.Commit, renames map[string]string) *Matrix {
	accum := make(map[string]*fileAccum)

	for _, commit := range commits {
		cid, ok := resolution.Canonical(commit.Identity())
		if !ok {
			// Identity not seen during resolution; attribute to the raw
			// key so the contribution is not dropped.
			cid = commit.Identity().Key()
		}

		for _, change := range commit.FilesChanged {
			path := b.logicalPath(change.Path, renames)
			if b.excluded(path) {
				continue
			}

			fa, ok := accum[path]
			if !ok {
				fa = &fileAccum{cells: make(map[string]*cell)}
				accum[path] = fa
			}

			c, ok := fa.cells[cid]
			if !ok {
				c = &cell{firstTouch: commit.Timestamp, lastTouch: commit.Timestamp}
				fa.cells[cid] = c
			}
			c.lines += float64(change.Additions + change.Deletions)
			c.commits++
			if commit.Timestamp.Before(c.firstTouch) {
				c.firstTouch = commit.Timestamp
			}
			if commit.Timestamp.After(c.lastTouch) {
				c.lastTouch = commit.Timestamp
			}

			if fa.earliestSHA == "" ||
				commit.Timestamp.Before(fa.earliestTime) ||
				(commit.Timestamp.Equal(fa.earliestTime) && commit.SHA < fa.earliestSHA) {
				fa.earliestTime = commit.Timestamp
				fa.earliestSHA = commit.SHA
				fa.earliestCID = cid
			}
		}
	}

	return b.finalize(accum)
}

func (b *Builder) logicalPath(path string, renames map[string]string) string {
	if renames == nil {
		return path
	}
	if final, ok := renames[path]; ok {
		return final
	}
	return path
}

func (b *Builder) excluded(path string) bool {
	for _, pattern := range b.excludes {
		if pattern.Match(path) {
			return true
		}
	}
	return false
}

// finalize converts accumulators into sorted entries with weights and
// normalized shares.
//
// Weight semantics per mode:
//
//	lines:   added+deleted lines; shares normalize by the file's total
//	commits: commit count; shares normalize by the file's total
//	doa:     degree of authorship (Avelino et al.); shares normalize by
//	         the file's maximum DoA, and a contributor whose absolute DoA
//	         falls below the model's base constant gets share 0 (the study
//	         applies both a normalized and an absolute cutoff)
func (b *Builder) finalize(accum map[string]*fileAccum) *Matrix {
	m := &Matrix{
		byFile:  make(map[string][]int),
		shares:  make(map[string]map[string]float64),
		totals:  make(map[string]float64),
		touched: make(map[string]map[string]bool),
	}

	paths := make([]string, 0, len(accum))
	for path := range accum {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	m.files = paths

	for _, path := range paths {
		fa := accum[path]
		if fa.earliestCID != "" {
			if c, ok := fa.cells[fa.earliestCID]; ok {
				c.firstAuthor = true
			}
		}

		cids := make([]string, 0, len(fa.cells))
		totalLines := 0.0
		for cid, c := range fa.cells {
			cids = append(cids, cid)
			totalLines += c.lines
		}
		sort.Strings(cids)

		weights := make(map[string]float64, len(cids))
		for _, cid := range cids {
			c := fa.cells[cid]
			switch b.cfg.WeightMode {
			case "lines":
				weights[cid] = c.lines
			case "commits":
				weights[cid] = float64(c.commits)
			default: // doa
				others := totalLines - c.lines
				doa := b.cfg.DoABase +
					boolWeight(c.firstAuthor)*b.cfg.DoAFirstAuthor +
					c.lines*b.cfg.DoAChanges -
					math.Log(1+others)*b.cfg.DoAOthersChanges
				if doa < 0 {
					doa = 0
				}
				weights[cid] = doa
			}
		}

		m.shares[path] = b.normalize(weights)
		m.touched[path] = make(map[string]bool, len(cids))

		for _, cid := range cids {
			c := fa.cells[cid]
			m.Entries = append(m.Entries, models.FileOwnershipEntry{
				Path:          path,
				ContributorID: cid,
				Weight:        weights[cid],
				FirstAuthor:   c.firstAuthor,
				FirstTouch:    c.firstTouch,
				LastTouch:     c.lastTouch,
			})
			m.byFile[path] = append(m.byFile[path], len(m.Entries)-1)
			m.totals[cid] += weights[cid]
			m.touched[path][cid] = true
		}
	}

	return m
}

func (b *Builder) normalize(weights map[string]float64) map[string]float64 {
	shares := make(map[string]float64, len(weights))

	if b.cfg.WeightMode == "doa" {
		maxWeight := 0.0
		for _, w := range weights {
			if w > maxWeight {
				maxWeight = w
			}
		}
		for cid, w := range weights {
			if maxWeight == 0 || w < b.cfg.DoABase {
				shares[cid] = 0
				continue
			}
			shares[cid] = w / maxWeight
		}
		return shares
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}
	for cid, w := range weights {
		if total == 0 {
			shares[cid] = 0
			continue
		}
		shares[cid] = w / total
	}
	return shares
}

func boolWeight(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Files returns the tracked file paths in sorted order.
func (m *Matrix) Files() []string {
	return m.files
}

// EntriesFor returns the ownership entries for one file.
func (m *Matrix) EntriesFor(path string) []models.FileOwnershipEntry {
	indexes := m.byFile[path]
	entries := make([]models.FileOwnershipEntry, 0, len(indexes))
	for _, i := range indexes {
		entries = append(entries, m.Entries[i])
	}
	return entries
}

// Share returns the normalized ownership share of a contributor on a file.
func (m *Matrix) Share(path, contributorID string) float64 {
	return m.shares[path][contributorID]
}

// Touched reports whether the contributor has any recorded activity on
// the file.
func (m *Matrix) Touched(path, contributorID string) bool {
	return m.touched[path][contributorID]
}

// TotalWeight returns a contributor's cumulative weight across all files;
// the estimators use it as a tie-break.
func (m *Matrix) TotalWeight(contributorID string) float64 {
	return m.totals[contributorID]
}
