package collab

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truckfactor/truckfactor-go/internal/config"
	"github.com/truckfactor/truckfactor-go/internal/identity"
	"github.com/truckfactor/truckfactor-go/internal/models"
	"github.com/truckfactor/truckfactor-go/internal/ownership"
)

var t0 = time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

func commitAt(sha, name, email string, ts time.Time, paths ...string) models.Commit {
	changes := make([]models.FileChange, len(paths))
	for i, path := range paths {
		changes[i] = models.FileChange{Path: path, Additions: 10}
	}
	return models.Commit{
		SHA:          sha,
		Author:       name,
		Email:        email,
		Timestamp:    ts,
		FilesChanged: changes,
	}
}

func buildGraph(t *testing.T, commits []models.Commit) *Graph {
	t.Helper()
	cfg := config.Default()
	cfg.Ownership.WeightMode = "lines"

	resolver := identity.NewResolver(cfg.Identity, identity.Overrides{})
	resolution := resolver.Resolve("test-project", commits)

	builder, err := ownership.NewBuilder(cfg.Ownership)
	require.NoError(t, err)
	matrix := builder.Build(resolution, commits, nil)

	return NewBuilder(cfg.Collab).Build(resolution.Contributors, matrix)
}

func TestBuild_SharedFileCreatesEdge(t *testing.T) {
	commits := []models.Commit{
		commitAt("sha1", "Alice", "alice@example.com", t0, "main.go"),
		commitAt("sha2", "Bob", "bob@example.com", t0, "main.go"),
		commitAt("sha3", "Carol", "carol@example.com", t0, "other.go"),
	}

	graph := buildGraph(t, commits)
	require.Equal(t, 3, graph.Size())

	// Same-timestamp activity overlaps, so the edge carries one full
	// fresh connection.
	weight := graph.Weight("alice|alice@example.com", "bob|bob@example.com")
	assert.InDelta(t, 1.0, weight, 1e-9)

	// Symmetric, and no link to Carol who shares no files.
	assert.InDelta(t, weight, graph.Weight("bob|bob@example.com", "alice|alice@example.com"), 1e-9)
	assert.Zero(t, graph.Weight("alice|alice@example.com", "carol|carol@example.com"))

	edges := graph.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, "alice|alice@example.com", edges[0].A)
	assert.Equal(t, "bob|bob@example.com", edges[0].B)
	assert.Equal(t, 1, edges[0].Shared)
	assert.Less(t, edges[0].A, edges[0].B)
}

func TestBuild_WeightAccumulatesAcrossSharedFiles(t *testing.T) {
	commits := []models.Commit{
		commitAt("sha1", "Alice", "alice@example.com", t0, "a.go", "b.go"),
		commitAt("sha2", "Bob", "bob@example.com", t0, "a.go", "b.go"),
	}

	graph := buildGraph(t, commits)

	assert.InDelta(t, 2.0, graph.Weight("alice|alice@example.com", "bob|bob@example.com"), 1e-9)

	edges := graph.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, 2, edges[0].Shared)
}

func TestBuild_TemporalDecayWeakensDistantActivity(t *testing.T) {
	// Bob touches the file thirty days after Alice last did; the edge
	// survives but at a fraction of a fresh connection.
	commits := []models.Commit{
		commitAt("sha1", "Alice", "alice@example.com", t0, "main.go"),
		commitAt("sha2", "Bob", "bob@example.com", t0.Add(30*24*time.Hour), "main.go"),
	}

	graph := buildGraph(t, commits)

	want := 1.0 - 0.25*math.Log(1+30)
	assert.InDelta(t, want, graph.Weight("alice|alice@example.com", "bob|bob@example.com"), 1e-6)
}

func TestBuild_AncientGapProducesNoEdge(t *testing.T) {
	// Two years apart: the decayed increment goes negative and is
	// clamped away entirely.
	commits := []models.Commit{
		commitAt("sha1", "Alice", "alice@example.com", t0, "main.go"),
		commitAt("sha2", "Bob", "bob@example.com", t0.Add(730*24*time.Hour), "main.go"),
	}

	graph := buildGraph(t, commits)

	assert.Zero(t, graph.Weight("alice|alice@example.com", "bob|bob@example.com"))
	assert.Empty(t, graph.Edges())
}

func TestBuild_BotsCarryNoCollaborationSignal(t *testing.T) {
	commits := []models.Commit{
		commitAt("sha1", "Alice", "alice@example.com", t0, "go.mod"),
		commitAt("sha2", "dependabot[bot]", "49699333+dependabot@users.noreply.github.com", t0, "go.mod"),
	}

	graph := buildGraph(t, commits)

	assert.Empty(t, graph.Edges())
	assert.Zero(t, graph.Degree("alice|alice@example.com"))
}

func TestAdjacent(t *testing.T) {
	commits := []models.Commit{
		commitAt("sha1", "Alice", "alice@example.com", t0, "a.go", "b.go"),
		commitAt("sha2", "Bob", "bob@example.com", t0, "a.go", "b.go"),
	}
	graph := buildGraph(t, commits)

	alice := "alice|alice@example.com"
	bob := "bob|bob@example.com"

	assert.True(t, graph.Adjacent(alice, bob, 1.0))
	assert.True(t, graph.Adjacent(alice, bob, 2.0))
	assert.False(t, graph.Adjacent(alice, bob, 2.5))

	// +Inf can never be satisfied, whatever the weight.
	assert.False(t, graph.Adjacent(alice, bob, math.Inf(1)))

	// Unknown contributors are simply not adjacent.
	assert.False(t, graph.Adjacent(alice, "ghost|ghost@example.com", 0.1))
}

func TestDegree(t *testing.T) {
	commits := []models.Commit{
		commitAt("sha1", "Alice", "alice@example.com", t0, "a.go", "b.go"),
		commitAt("sha2", "Bob", "bob@example.com", t0, "a.go"),
		commitAt("sha3", "Carol", "carol@example.com", t0, "b.go"),
	}
	graph := buildGraph(t, commits)

	assert.InDelta(t, 2.0, graph.Degree("alice|alice@example.com"), 1e-9)
	assert.InDelta(t, 1.0, graph.Degree("bob|bob@example.com"), 1e-9)
	assert.Zero(t, graph.Degree("ghost|ghost@example.com"))
}
