package models

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// RawIdentity is a name/email pair exactly as observed in the commit log.
type RawIdentity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Key returns the normalized identity key used throughout resolution.
// An email without "@" is treated as unknown.
func (r RawIdentity) Key() string {
	name := strings.ToLower(strings.TrimSpace(r.Name))
	email := strings.ToLower(strings.TrimSpace(r.Email))
	if name == "" {
		name = "UNKNOWN"
	}
	if email == "" || !strings.Contains(email, "@") {
		email = "UNKNOWN"
	}
	return name + "|" + email
}

// Contributor is a canonical contributor produced by identity resolution.
// Immutable once resolution completes for a snapshot.
type Contributor struct {
	ID            string        `json:"id" db:"id"`
	Name          string        `json:"name" db:"name"`
	Email         string        `json:"email" db:"email"`
	Aliases       []RawIdentity `json:"aliases"`
	FirstActivity time.Time     `json:"first_activity" db:"first_activity"`
	LastActivity  time.Time     `json:"last_activity" db:"last_activity"`
	TotalCommits  int           `json:"total_commits" db:"total_commits"`
}

// Commit represents one commit from the project's history.
type Commit struct {
	SHA          string       `json:"sha" db:"sha"`
	Author       string       `json:"author" db:"author"`
	Email        string       `json:"author_email" db:"author_email"`
	Timestamp    time.Time    `json:"timestamp" db:"timestamp"`
	Message      string       `json:"message" db:"message"`
	FilesChanged []FileChange `json:"files_changed"`
}

// Identity returns the commit author's raw identity.
func (c Commit) Identity() RawIdentity {
	return RawIdentity{Name: c.Author, Email: c.Email}
}

// FileChange represents file modifications in a commit. When the change
// was detected as a rename, OldPath holds the pre-rename path.
type FileChange struct {
	Path      string `json:"path"`
	OldPath   string `json:"old_path,omitempty"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// FileOwnershipEntry is one cell of the ownership matrix: how much
// knowledge a contributor holds on a file.
type FileOwnershipEntry struct {
	Path          string    `json:"path"`
	ContributorID string    `json:"contributor_id"`
	Weight        float64   `json:"weight"`
	FirstAuthor   bool      `json:"first_author"`
	FirstTouch    time.Time `json:"first_touch"`
	LastTouch     time.Time `json:"last_touch"`
}

// CollaborationEdge connects two contributors who share file activity.
// Undirected; A < B by canonical ID, no self-loops, weight > 0.
type CollaborationEdge struct {
	A      string  `json:"a"`
	B      string  `json:"b"`
	Weight float64 `json:"weight"`
	Shared int     `json:"shared_files"`
}

// EstimatorVariant names which estimator produced a result.
type EstimatorVariant string

const (
	VariantBaseline EstimatorVariant = "baseline"
	VariantSocial   EstimatorVariant = "social"
)

// TruckFactorResult is the output of a single estimator run.
type TruckFactorResult struct {
	ProjectID     string           `json:"project_id"`
	Variant       EstimatorVariant `json:"variant"`
	TruckFactor   int              `json:"truck_factor"`
	RemovalOrder  []string         `json:"removal_order"`
	CoverageTrace []float64        `json:"coverage_trace"`
}

// ParseIssue records a malformed commit-log record that was skipped.
type ParseIssue struct {
	Line   int    `json:"line"`
	Record string `json:"record"`
	Reason string `json:"reason"`
}

// MergeCandidate is a low-confidence identity merge surfaced for manual
// review instead of being applied silently.
type MergeCandidate struct {
	ProjectID  string      `json:"project_id"`
	Left       RawIdentity `json:"left"`
	Right      RawIdentity `json:"right"`
	Similarity float64     `json:"similarity"`
	Reason     string      `json:"reason"`
}

// ProjectSnapshot holds everything the estimators consume for one project
// at one point in time. Rebuilt wholesale on re-analysis, never mutated.
type ProjectSnapshot struct {
	ProjectID    string               `json:"project_id"`
	Contributors []Contributor        `json:"contributors"`
	Ownership    []FileOwnershipEntry `json:"ownership"`
	Edges        []CollaborationEdge  `json:"edges"`
	FileCount    int                  `json:"file_count"`
	CommitCount  int                  `json:"commit_count"`
	Pending      []MergeCandidate     `json:"pending_merges,omitempty"`
	ParseIssues  []ParseIssue         `json:"parse_issues,omitempty"`
}

// ProjectReport is the aggregated per-project record handed to downstream
// evaluation tooling.
type ProjectReport struct {
	ID               string             `json:"id" db:"id"`
	ProjectID        string             `json:"project_id" db:"project_id"`
	GeneratedAt      time.Time          `json:"generated_at" db:"generated_at"`
	Contributors     []Contributor      `json:"contributors"`
	Baseline         *TruckFactorResult `json:"baseline"`
	Social           *TruckFactorResult `json:"social"`
	Params           ReportParams       `json:"params"`
	EmptyProject     bool               `json:"empty_project"`
	AliasUnconfirmed bool               `json:"alias_unconfirmed"`
	ParseIssues      []ParseIssue       `json:"parse_issues,omitempty"`
}

// ReportParams records the tuning parameters a report was produced with,
// so downstream consumers can group comparable runs.
type ReportParams struct {
	WeightMode          string  `json:"weight_mode"`
	KnowledgeThreshold  float64 `json:"knowledge_threshold"`
	CoverageThreshold   float64 `json:"coverage_threshold"`
	RedundancyThreshold float64 `json:"redundancy_threshold"`
	FreshConnection     float64 `json:"fresh_connection_weight"`
	DecayStrength       float64 `json:"decay_strength"`
}

// reportParamsWire is the JSON shape. JSON cannot represent +Inf, so a
// disabled redundancy threshold is encoded as null.
type reportParamsWire struct {
	WeightMode          string   `json:"weight_mode"`
	KnowledgeThreshold  float64  `json:"knowledge_threshold"`
	CoverageThreshold   float64  `json:"coverage_threshold"`
	RedundancyThreshold *float64 `json:"redundancy_threshold"`
	FreshConnection     float64  `json:"fresh_connection_weight"`
	DecayStrength       float64  `json:"decay_strength"`
}

func (p ReportParams) MarshalJSON() ([]byte, error) {
	w := reportParamsWire{
		WeightMode:         p.WeightMode,
		KnowledgeThreshold: p.KnowledgeThreshold,
		CoverageThreshold:  p.CoverageThreshold,
		FreshConnection:    p.FreshConnection,
		DecayStrength:      p.DecayStrength,
	}
	if !math.IsInf(p.RedundancyThreshold, 1) {
		w.RedundancyThreshold = &p.RedundancyThreshold
	}
	return json.Marshal(w)
}

func (p *ReportParams) UnmarshalJSON(data []byte) error {
	var w reportParamsWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.WeightMode = w.WeightMode
	p.KnowledgeThreshold = w.KnowledgeThreshold
	p.CoverageThreshold = w.CoverageThreshold
	p.FreshConnection = w.FreshConnection
	p.DecayStrength = w.DecayStrength
	if w.RedundancyThreshold != nil {
		p.RedundancyThreshold = *w.RedundancyThreshold
	} else {
		p.RedundancyThreshold = math.Inf(1)
	}
	return nil
}
