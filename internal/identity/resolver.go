package identity

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/agext/levenshtein"

	"github.com/truckfactor/truckfactor-go/internal/config"
	"github.com/truckfactor/truckfactor-go/internal/models"
)

// Resolver canonicalizes raw commit identities into unique contributors.
// Resolution runs in two phases: exact grouping on identical email, then
// similarity clustering on normalized names and email local parts. Pairs
// scoring below the merge threshold but above the review threshold are
// surfaced as pending merge candidates instead of being applied.
type Resolver struct {
	cfg       config.IdentityConfig
	overrides Overrides
	params    *levenshtein.Params
	logger    *slog.Logger
}

// Resolution is the immutable outcome of resolving one project's
// identities. Canonical lookups are valid for the snapshot's lifetime.
type Resolution struct {
	Contributors []models.Contributor
	Pending      []models.MergeCandidate

	byKey map[string]string // raw identity key -> canonical ID
}

// Canonical maps a raw identity to its canonical contributor ID.
func (r *Resolution) Canonical(id models.RawIdentity) (string, bool) {
	canonical, ok := r.byKey[id.Key()]
	return canonical, ok
}

// NewResolver creates a resolver. overrides may be empty.
func NewResolver(cfg config.IdentityConfig, overrides Overrides) *Resolver {
	return &Resolver{
		cfg:       cfg,
		overrides: overrides,
		params:    levenshtein.NewParams(),
		logger:    slog.Default().With("component", "identity_resolver"),
	}
}

// observed accumulates per-raw-identity activity while scanning commits.
type observed struct {
	identity models.RawIdentity
	commits  int
	first    time.Time
	last     time.Time
}

// Resolve partitions the raw identities seen across commits into canonical
// contributors. An empty commit stream yields an empty contributor set.
// Resolving an already-canonical set is a fixed point: every phase merges
// strictly by key equality or by thresholds that do not depend on
// iteration order.
func (r *Resolver) Resolve(projectID string, commits []models.Commit) *Resolution {
	byRawKey := make(map[string]*observed)
	for _, commit := range commits {
		id := commit.Identity()
		key := id.Key()
		obs, ok := byRawKey[key]
		if !ok {
			obs = &observed{identity: id, first: commit.Timestamp, last: commit.Timestamp}
			byRawKey[key] = obs
		}
		obs.commits++
		if commit.Timestamp.Before(obs.first) {
			obs.first = commit.Timestamp
		}
		if commit.Timestamp.After(obs.last) {
			obs.last = commit.Timestamp
		}
	}

	if len(byRawKey) == 0 {
		return &Resolution{byKey: map[string]string{}}
	}

	// Sorted keys keep every later phase deterministic.
	keys := make([]string, 0, len(byRawKey))
	for key := range byRawKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	dsu := newDSU(keys)

	// Phase 1: exact grouping on identical (normalized) email.
	byEmail := make(map[string][]string)
	for _, key := range keys {
		email := emailOf(key)
		if email == "UNKNOWN" {
			continue
		}
		byEmail[email] = append(byEmail[email], key)
	}
	emails := make([]string, 0, len(byEmail))
	for email := range byEmail {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	for _, email := range emails {
		group := byEmail[email]
		for _, key := range group[1:] {
			dsu.union(group[0], key)
		}
	}

	// Phase 2: similarity clustering across cluster representatives.
	pending := r.similarityPass(projectID, keys, dsu)

	// Phase 3: manual overrides are authoritative. Identities sharing an
	// override group are merged; an overridden identity is detached from
	// whatever the automatic phases decided.
	byKey := r.assignCanonical(keys, dsu)

	contributors := buildContributors(byKey, byRawKey)

	r.logger.Debug("identity resolution complete",
		"project", projectID,
		"raw_identities", len(keys),
		"contributors", len(contributors),
		"pending_review", len(pending),
	)

	return &Resolution{
		Contributors: contributors,
		Pending:      pending,
		byKey:        byKey,
	}
}

// similarityPass merges clusters whose names (or email local parts) are
// close enough, and collects review candidates for near misses.
func (r *Resolver) similarityPass(projectID string, keys []string, dsu *dsu) []models.MergeCandidate {
	var pending []models.MergeCandidate

	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			a, b := keys[i], keys[j]
			if dsu.find(a) == dsu.find(b) {
				continue
			}
			// Overridden identities are never auto-merged; the override
			// table decides their fate in the final phase.
			if _, ok := r.overrides.Lookup(a); ok {
				continue
			}
			if _, ok := r.overrides.Lookup(b); ok {
				continue
			}

			score := r.similarity(a, b)
			if score >= r.cfg.SimilarityThreshold {
				dsu.union(a, b)
			} else if score >= r.cfg.ReviewThreshold {
				pending = append(pending, models.MergeCandidate{
					ProjectID:  projectID,
					Left:       identityFromKey(a),
					Right:      identityFromKey(b),
					Similarity: score,
					Reason:     "name similarity below auto-merge threshold",
				})
			}
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Left.Key() != pending[j].Left.Key() {
			return pending[i].Left.Key() < pending[j].Left.Key()
		}
		return pending[i].Right.Key() < pending[j].Right.Key()
	})
	return pending
}

// similarity scores two raw identity keys. Name similarity dominates;
// the email local part catches people committing as "jdoe@corp.com" and
// "John Doe <john.doe@gmail.com>".
func (r *Resolver) similarity(a, b string) float64 {
	nameA, nameB := nameOf(a), nameOf(b)
	best := 0.0
	if nameA != "unknown" && nameB != "unknown" {
		best = levenshtein.Similarity(nameA, nameB, r.params)
	}

	localA, localB := emailLocalOf(a), emailLocalOf(b)
	if localA != "" && localB != "" {
		if s := levenshtein.Similarity(localA, localB, r.params); s > best {
			best = s
		}
	}
	if nameA != "unknown" && localB != "" {
		if s := levenshtein.Similarity(squash(nameA), localB, r.params); s > best {
			best = s
		}
	}
	if nameB != "unknown" && localA != "" {
		if s := levenshtein.Similarity(squash(nameB), localA, r.params); s > best {
			best = s
		}
	}
	return best
}

// assignCanonical folds override groups on top of the automatic clusters
// and picks each cluster's canonical ID: the lexicographically smallest
// member key, or the override group label.
func (r *Resolver) assignCanonical(keys []string, dsu *dsu) map[string]string {
	clusters := make(map[string][]string)
	for _, key := range keys {
		if label, ok := r.overrides.Lookup(key); ok {
			clusters["override:"+label] = append(clusters["override:"+label], key)
			continue
		}
		root := dsu.find(key)
		clusters["auto:"+root] = append(clusters["auto:"+root], key)
	}

	byKey := make(map[string]string, len(keys))
	for label, members := range clusters {
		sort.Strings(members)
		canonical := members[0]
		if strings.HasPrefix(label, "override:") {
			canonical = strings.TrimPrefix(label, "override:")
		}
		for _, key := range members {
			byKey[key] = canonical
		}
	}
	return byKey
}

func buildContributors(byKey map[string]string, byRawKey map[string]*observed) []models.Contributor {
	grouped := make(map[string][]string)
	for key, canonical := range byKey {
		grouped[canonical] = append(grouped[canonical], key)
	}

	contributors := make([]models.Contributor, 0, len(grouped))
	for canonical, members := range grouped {
		sort.Strings(members)

		c := models.Contributor{ID: canonical}
		primaryCommits := -1
		for _, key := range members {
			obs := byRawKey[key]
			c.Aliases = append(c.Aliases, obs.identity)
			c.TotalCommits += obs.commits
			if c.FirstActivity.IsZero() || obs.first.Before(c.FirstActivity) {
				c.FirstActivity = obs.first
			}
			if obs.last.After(c.LastActivity) {
				c.LastActivity = obs.last
			}
			// Primary display identity: the alias with the most commits,
			// ties broken by key order.
			if obs.commits > primaryCommits {
				primaryCommits = obs.commits
				c.Name = obs.identity.Name
				c.Email = obs.identity.Email
			}
		}
		contributors = append(contributors, c)
	}

	sort.Slice(contributors, func(i, j int) bool {
		return contributors[i].ID < contributors[j].ID
	})
	return contributors
}

// Key helpers. Raw identity keys have the form "name|email" with UNKNOWN
// placeholders (see models.RawIdentity.Key).

func nameOf(key string) string {
	parts := strings.SplitN(key, "|", 2)
	return strings.ToLower(parts[0])
}

func emailOf(key string) string {
	parts := strings.SplitN(key, "|", 2)
	if len(parts) != 2 {
		return "UNKNOWN"
	}
	return parts[1]
}

func emailLocalOf(key string) string {
	email := emailOf(key)
	if email == "UNKNOWN" {
		return ""
	}
	at := strings.Index(email, "@")
	if at <= 0 {
		return ""
	}
	return email[:at]
}

func identityFromKey(key string) models.RawIdentity {
	parts := strings.SplitN(key, "|", 2)
	id := models.RawIdentity{Name: parts[0]}
	if len(parts) == 2 && parts[1] != "UNKNOWN" {
		id.Email = parts[1]
	}
	if id.Name == "UNKNOWN" {
		id.Name = ""
	}
	return id
}

func squash(name string) string {
	return strings.ReplaceAll(name, " ", "")
}

// dsu is a plain union-find over string keys with path compression.
type dsu struct {
	parent map[string]string
}

func newDSU(keys []string) *dsu {
	parent := make(map[string]string, len(keys))
	for _, key := range keys {
		parent[key] = key
	}
	return &dsu{parent: parent}
}

func (d *dsu) find(key string) string {
	root := key
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for d.parent[key] != root {
		key, d.parent[key] = d.parent[key], root
	}
	return root
}

// union attaches the lexicographically larger root under the smaller one,
// so cluster roots are stable regardless of merge order.
func (d *dsu) union(a, b string) {
	ra, rb := d.find(a), d.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		d.parent[rb] = ra
	} else {
		d.parent[ra] = rb
	}
}
