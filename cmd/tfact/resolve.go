package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/truckfactor/truckfactor-go/internal/gitlog"
	"github.com/truckfactor/truckfactor-go/internal/identity"
	"github.com/truckfactor/truckfactor-go/internal/models"
)

var (
	resolveLogFile   string
	resolveOverrides string
	resolveExport    string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [repo-path]",
	Short: "Preview contributor identity resolution",
	Long: `Run identity resolution only and show the canonical contributor set
plus any merge candidates that need manual review. Use --export to write
a review skeleton; edit it into an override mapping and pass it back via
'analyze --overrides'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveLogFile, "log", "", "materialized git log file instead of a repo path")
	resolveCmd.Flags().StringVar(&resolveOverrides, "overrides", "", "manual alias override mapping (YAML)")
	resolveCmd.Flags().StringVar(&resolveExport, "export", "", "write pending merge candidates to this YAML file")
}

func runResolve(cmd *cobra.Command, args []string) error {
	var parsed *gitlog.ParseResult
	var err error
	var projectID string

	switch {
	case resolveLogFile != "":
		file, openErr := os.Open(resolveLogFile)
		if openErr != nil {
			return fmt.Errorf("open commit log: %w", openErr)
		}
		defer file.Close()
		parsed, err = gitlog.Parse(file)
		projectID = resolveLogFile
	case len(args) == 1:
		parsed, err = gitlog.ParseGitHistory(args[0])
		projectID = args[0]
	default:
		return fmt.Errorf("provide a repository path or --log")
	}
	if err != nil {
		return err
	}

	if resolveOverrides != "" {
		cfg.Identity.OverridesPath = resolveOverrides
	}
	overrides, err := identity.LoadOverrides(cfg.Identity.OverridesPath)
	if err != nil {
		return err
	}

	resolver := identity.NewResolver(cfg.Identity, overrides)
	resolution := resolver.Resolve(projectID, parsed.Commits)

	fmt.Printf("👥 %d canonical contributors from %d commits\n\n", len(resolution.Contributors), len(parsed.Commits))
	for _, c := range resolution.Contributors {
		fmt.Printf("  %s <%s> — %d commits", c.Name, c.Email, c.TotalCommits)
		if len(c.Aliases) > 1 {
			fmt.Printf(" (%d aliases)", len(c.Aliases))
		}
		fmt.Println()
	}

	if len(resolution.Pending) > 0 {
		fmt.Printf("\n⚠️  %d merge candidates need manual review:\n", len(resolution.Pending))
		for _, candidate := range resolution.Pending {
			fmt.Printf("  %s <%s>  ~  %s <%s>  (similarity %.2f)\n",
				candidate.Left.Name, candidate.Left.Email,
				candidate.Right.Name, candidate.Right.Email,
				candidate.Similarity)
		}
	}

	if resolveExport != "" {
		if err := exportCandidates(resolveExport, resolution.Pending); err != nil {
			return err
		}
		fmt.Printf("\n📝 Review skeleton written to %s\n", resolveExport)
	}

	return nil
}

// exportCandidates writes pending candidates in the override file shape:
// each candidate pair becomes a proposed group the reviewer can keep,
// rename, or delete.
func exportCandidates(path string, candidates []models.MergeCandidate) error {
	groups := make(map[string][]models.RawIdentity)
	for i, candidate := range candidates {
		label := fmt.Sprintf("review-%03d", i+1)
		groups[label] = []models.RawIdentity{candidate.Left, candidate.Right}
	}

	data, err := yaml.Marshal(map[string]any{"groups": groups})
	if err != nil {
		return fmt.Errorf("marshal review skeleton: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write review skeleton: %w", err)
	}
	return nil
}
