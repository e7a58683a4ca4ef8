package gitlog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `abc123|Alice|alice@example.com|2024-03-01T12:00:00+00:00|Add estimator core
10	2	internal/estimator/estimator.go
5	0	internal/estimator/workset.go

def456|Bob|bob@example.com|2024-03-02T09:30:00+01:00|Fix coverage accounting
3	1	internal/estimator/estimator.go
`

func TestParse_Basic(t *testing.T) {
	result, err := Parse(strings.NewReader(sampleLog))
	require.NoError(t, err)
	require.Len(t, result.Commits, 2)
	assert.Empty(t, result.Issues)

	first := result.Commits[0]
	assert.Equal(t, "abc123", first.SHA)
	assert.Equal(t, "Alice", first.Author)
	assert.Equal(t, "alice@example.com", first.Email)
	assert.Equal(t, "Add estimator core", first.Message)
	require.Len(t, first.FilesChanged, 2)
	assert.Equal(t, "internal/estimator/estimator.go", first.FilesChanged[0].Path)
	assert.Equal(t, 10, first.FilesChanged[0].Additions)
	assert.Equal(t, 2, first.FilesChanged[0].Deletions)

	second := result.Commits[1]
	assert.Equal(t, "def456", second.SHA)
	require.Len(t, second.FilesChanged, 1)
}

func TestParse_MessageWithPipes(t *testing.T) {
	log := "abc123|Alice|alice@example.com|2024-03-01T12:00:00+00:00|Fix a | b | c handling\n" +
		"1\t1\tmain.go\n"

	result, err := Parse(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, result.Commits, 1)
	assert.Equal(t, "Fix a | b | c handling", result.Commits[0].Message)
}

func TestParse_MalformedRecordsAreCollected(t *testing.T) {
	log := `abc123|Alice|alice@example.com|2024-03-01T12:00:00+00:00|Good commit
5	1	main.go

def456|Bob|bob@example.com
xyz789|Carol|carol@example.com|not-a-timestamp|Bad date
ghi012|Dave|dave@example.com|2024-03-03T08:00:00+00:00|Another good one
x	y	broken.go
2	3	fine.go
`

	result, err := Parse(strings.NewReader(log))
	require.NoError(t, err)

	// Good commits survive; each malformed record yields one issue.
	require.Len(t, result.Commits, 2)
	assert.Equal(t, "abc123", result.Commits[0].SHA)
	assert.Equal(t, "ghi012", result.Commits[1].SHA)
	require.Len(t, result.Commits[1].FilesChanged, 1)
	assert.Equal(t, "fine.go", result.Commits[1].FilesChanged[0].Path)

	require.Len(t, result.Issues, 3)
	assert.Contains(t, result.Issues[0].Reason, "5 fields")
	assert.Contains(t, result.Issues[1].Reason, "timestamp")
	assert.Contains(t, result.Issues[2].Reason, "non-numeric")
}

func TestParse_BinaryChangesSkipped(t *testing.T) {
	log := `abc123|Alice|alice@example.com|2024-03-01T12:00:00+00:00|Add logo
-	-	assets/logo.png
4	0	readme.md
`

	result, err := Parse(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, result.Commits, 1)
	require.Len(t, result.Commits[0].FilesChanged, 1)
	assert.Equal(t, "readme.md", result.Commits[0].FilesChanged[0].Path)
	assert.Empty(t, result.Issues, "binary markers are expected, not malformed")
}

func TestParse_RenameNotation(t *testing.T) {
	log := `abc123|Alice|alice@example.com|2024-03-01T12:00:00+00:00|Reorganize packages
7	2	internal/{ownership => knowledge}/matrix.go
3	3	{ => pkg}/util.go
1	0	old_name.go => new_name.go
5	5	cmd/{tool => }/main.go
`

	result, err := Parse(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, result.Commits, 1)
	changes := result.Commits[0].FilesChanged
	require.Len(t, changes, 4)

	assert.Equal(t, "internal/knowledge/matrix.go", changes[0].Path)
	assert.Equal(t, "internal/ownership/matrix.go", changes[0].OldPath)

	assert.Equal(t, "pkg/util.go", changes[1].Path)
	assert.Equal(t, "util.go", changes[1].OldPath)

	assert.Equal(t, "new_name.go", changes[2].Path)
	assert.Equal(t, "old_name.go", changes[2].OldPath)

	assert.Equal(t, "cmd/main.go", changes[3].Path)
	assert.Equal(t, "cmd/tool/main.go", changes[3].OldPath)
}

func TestParseRenamePath(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		path    string
		oldPath string
	}{
		{"no rename", "internal/estimator/estimator.go", "internal/estimator/estimator.go", ""},
		{"braced middle", "internal/{a => b}/file.go", "internal/b/file.go", "internal/a/file.go"},
		{"braced empty left", "{ => pkg}/file.go", "pkg/file.go", "file.go"},
		{"braced empty right", "pkg/{sub => }/file.go", "pkg/file.go", "pkg/sub/file.go"},
		{"plain", "a.go => b.go", "b.go", "a.go"},
		{"path with spaces", "docs/user guide.md", "docs/user guide.md", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, oldPath := parseRenamePath(tt.raw)
			if path != tt.path {
				t.Errorf("parseRenamePath(%q) path = %q, want %q", tt.raw, path, tt.path)
			}
			if oldPath != tt.oldPath {
				t.Errorf("parseRenamePath(%q) oldPath = %q, want %q", tt.raw, oldPath, tt.oldPath)
			}
		})
	}
}

func TestRenameMap_FollowsChains(t *testing.T) {
	log := `sha1|Alice|alice@example.com|2024-03-01T12:00:00+00:00|First rename
5	0	b.go => c.go

sha2|Alice|alice@example.com|2024-03-02T12:00:00+00:00|Second rename
5	0	a.go => b.go
`

	result, err := Parse(strings.NewReader(log))
	require.NoError(t, err)

	renames := RenameMap(result.Commits)
	assert.Equal(t, "c.go", renames["a.go"])
	assert.Equal(t, "c.go", renames["b.go"])
}

func TestRenameMap_CycleDoesNotLoop(t *testing.T) {
	log := `sha1|Alice|alice@example.com|2024-03-01T12:00:00+00:00|Swap part one
5	0	a.go => b.go

sha2|Alice|alice@example.com|2024-03-02T12:00:00+00:00|Swap part two
5	0	b.go => a.go
`

	result, err := Parse(strings.NewReader(log))
	require.NoError(t, err)

	// A rename cycle must terminate; each side resolves to the other.
	renames := RenameMap(result.Commits)
	assert.Equal(t, "b.go", renames["a.go"])
	assert.Equal(t, "a.go", renames["b.go"])
}

func TestParse_EmptyInput(t *testing.T) {
	result, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, result.Commits)
	assert.Empty(t, result.Issues)
}
