package gitlog

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/truckfactor/truckfactor-go/internal/models"
)

// ParseResult is the outcome of parsing one commit log. Malformed records
// are collected as issues and do not abort the parse.
type ParseResult struct {
	Commits []models.Commit
	Issues  []models.ParseIssue
}

// ParseGitHistory executes git log against a local clone and parses the
// output. Rename detection (-M) supplies the rename signal consumed by
// the ownership builder.
func ParseGitHistory(repoPath string) (*ParseResult, error) {
	cmd := exec.Command("git", "log",
		"--numstat",
		"-M",
		"--no-merges",
		"--pretty=format:%H|%an|%ae|%ad|%s",
		"--date=iso-strict")

	cmd.Dir = repoPath
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("git log failed: %w (output: %s)", err, string(output))
	}

	return Parse(strings.NewReader(string(output)))
}

// Parse reads a materialized git log (numstat + pretty header format) from
// r. This is the batch file-exchange entry point: the log may have been
// produced elsewhere and shipped as a file.
func Parse(r io.Reader) (*ParseResult, error) {
	result := &ParseResult{}
	var currentCommit *models.Commit

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		// Empty line separates commits
		if line == "" {
			if currentCommit != nil {
				result.Commits = append(result.Commits, *currentCommit)
				currentCommit = nil
			}
			continue
		}

		// Commit header line: SHA|Author|Email|Date|Message
		if strings.Contains(line, "|") {
			// Save previous commit
			if currentCommit != nil {
				result.Commits = append(result.Commits, *currentCommit)
				currentCommit = nil
			}

			parts := strings.SplitN(line, "|", 5)
			if len(parts) != 5 {
				result.Issues = append(result.Issues, models.ParseIssue{
					Line:   lineNo,
					Record: line,
					Reason: "commit header does not have 5 fields",
				})
				continue
			}

			timestamp, err := time.Parse(time.RFC3339, parts[3])
			if err != nil {
				result.Issues = append(result.Issues, models.ParseIssue{
					Line:   lineNo,
					Record: line,
					Reason: fmt.Sprintf("unparseable timestamp %q", parts[3]),
				})
				continue
			}

			currentCommit = &models.Commit{
				SHA:          parts[0],
				Author:       parts[1],
				Email:        parts[2],
				Timestamp:    timestamp,
				Message:      parts[4],
				FilesChanged: []models.FileChange{},
			}
			continue
		}

		// File change line: additions deletions path
		if currentCommit == nil {
			result.Issues = append(result.Issues, models.ParseIssue{
				Line:   lineNo,
				Record: line,
				Reason: "file change record outside a commit",
			})
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			result.Issues = append(result.Issues, models.ParseIssue{
				Line:   lineNo,
				Record: line,
				Reason: "file change record has fewer than 3 fields",
			})
			continue
		}

		// Binary files are marked with "-" and carry no line counts
		if fields[0] == "-" || fields[1] == "-" {
			continue
		}

		additions, errA := strconv.Atoi(fields[0])
		deletions, errD := strconv.Atoi(fields[1])
		if errA != nil || errD != nil {
			result.Issues = append(result.Issues, models.ParseIssue{
				Line:   lineNo,
				Record: line,
				Reason: "non-numeric line counts",
			})
			continue
		}

		rawPath := strings.Join(fields[2:], " ")
		path, oldPath := parseRenamePath(rawPath)

		currentCommit.FilesChanged = append(currentCommit.FilesChanged, models.FileChange{
			Path:      path,
			OldPath:   oldPath,
			Additions: additions,
			Deletions: deletions,
		})
	}

	// Don't forget the last commit
	if currentCommit != nil {
		result.Commits = append(result.Commits, *currentCommit)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning git log output: %w", err)
	}

	return result, nil
}

// parseRenamePath resolves git's rename notation into (newPath, oldPath).
// Handles both the braced form "dir/{old.go => new.go}" (including empty
// sides like "{ => pkg}/file.go") and the plain "old.go => new.go" form.
// Non-rename paths return oldPath == "".
func parseRenamePath(raw string) (string, string) {
	if !strings.Contains(raw, " => ") {
		return raw, ""
	}

	open := strings.Index(raw, "{")
	closing := strings.Index(raw, "}")
	if open >= 0 && closing > open {
		prefix := raw[:open]
		suffix := raw[closing+1:]
		inner := raw[open+1 : closing]
		parts := strings.SplitN(inner, " => ", 2)
		if len(parts) != 2 {
			return raw, ""
		}
		oldPath := cleanJoined(prefix + parts[0] + suffix)
		newPath := cleanJoined(prefix + parts[1] + suffix)
		return newPath, oldPath
	}

	parts := strings.SplitN(raw, " => ", 2)
	return parts[1], parts[0]
}

// cleanJoined collapses the double slashes left behind when one side of a
// braced rename is empty.
func cleanJoined(p string) string {
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return strings.TrimPrefix(p, "/")
}

// RenameMap follows rename chains across the full history and maps every
// historical path to its final logical path. Commits must be supplied in
// any order; renames are applied newest-wins by walking the chain.
func RenameMap(commits []models.Commit) map[string]string {
	// forward[old] = new, one hop per recorded rename
	forward := make(map[string]string)
	for _, commit := range commits {
		for _, change := range commit.FilesChanged {
			if change.OldPath != "" && change.OldPath != change.Path {
				forward[change.OldPath] = change.Path
			}
		}
	}

	resolved := make(map[string]string, len(forward))
	for old := range forward {
		seen := map[string]bool{old: true}
		final := old
		for {
			next, ok := forward[final]
			if !ok || seen[next] {
				break
			}
			seen[next] = true
			final = next
		}
		resolved[old] = final
	}
	return resolved
}
