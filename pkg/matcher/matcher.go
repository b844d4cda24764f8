// Package matcher scores free-text queries against skill metadata with a
// deterministic, explainable heuristic and ranks the candidates.
package matcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openskills/skillagent/pkg/types/skills"
)

// Tier scores. Each candidate is scored by the best tier it reaches.
const (
	ExactTriggerScore   = 1.0
	PartialTriggerScore = 0.8
	NameMatchScore      = 0.7
	DescriptionScore    = 0.5
	TagMatchScore       = 0.4

	// tokenSubsetFactor discounts matches found through token containment
	// rather than a literal substring.
	tokenSubsetFactor = 0.9
)

const (
	// DefaultMinScore is the threshold below which candidates are dropped.
	DefaultMinScore = 0.3
	// DefaultLimit caps the number of results when no limit is given.
	DefaultLimit = 5
)

// Result is a scored candidate.
type Result struct {
	Metadata  skills.Metadata
	Score     float64
	MatchedBy string
}

// Matcher ranks skill metadata against queries.
type Matcher struct {
	minScore float64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithMinScore sets the minimum score a candidate needs to be returned.
func WithMinScore(score float64) Option {
	return func(m *Matcher) {
		m.minScore = score
	}
}

// New creates a Matcher.
func New(opts ...Option) *Matcher {
	m := &Matcher{minScore: DefaultMinScore}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MinScore returns the configured threshold.
func (m *Matcher) MinScore() float64 {
	return m.minScore
}

// Match scores every candidate, drops those under the threshold and returns
// at most limit results ordered by descending score. Candidates with equal
// scores keep their input order.
func (m *Matcher) Match(query string, candidates []skills.Metadata, limit int) []Result {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var results []Result
	for _, md := range candidates {
		res, ok := Score(query, md)
		if !ok || res.Score < m.minScore {
			continue
		}
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// BestMatch returns the highest ranked candidate, if any clears the threshold.
func (m *Matcher) BestMatch(query string, candidates []skills.Metadata) (Result, bool) {
	results := m.Match(query, candidates, 1)
	if len(results) == 0 {
		return Result{}, false
	}
	return results[0], true
}

// Score evaluates query against a single candidate. It returns false when no
// signal matched at all. Scores are always within [0, 1].
func Score(query string, md skills.Metadata) (Result, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Result{}, false
	}
	queryWords := tokenSet(q)

	best := Result{Metadata: md}
	consider := func(score float64, reason string) {
		if score > best.Score {
			best.Score = score
			best.MatchedBy = reason
		}
	}

	for _, trigger := range md.Triggers {
		t := strings.ToLower(strings.TrimSpace(trigger))
		if t == "" {
			continue
		}
		if t == q {
			best.Score = ExactTriggerScore
			best.MatchedBy = "exact trigger: " + trigger
			return best, true
		}
		if strings.Contains(q, t) {
			consider(PartialTriggerScore, "partial trigger: "+trigger)
		}
		if containsAll(queryWords, tokenSet(t)) {
			consider(PartialTriggerScore*tokenSubsetFactor, "trigger words: "+trigger)
		}
	}

	name := strings.ToLower(strings.NewReplacer("-", " ", "_", " ").Replace(md.Name))
	if name != "" {
		if strings.Contains(q, name) || strings.Contains(name, q) {
			consider(NameMatchScore, "name: "+md.Name)
		} else if containsAll(queryWords, tokenSet(name)) {
			consider(NameMatchScore*tokenSubsetFactor, "name words: "+md.Name)
		}
	}

	descWords := Keywords(md.Description)
	var common []string
	for _, w := range descWords {
		if _, ok := queryWords[w]; ok {
			common = append(common, w)
		}
	}
	if len(common) > 0 {
		ratio := float64(len(common)) / float64(len(descWords))
		consider(DescriptionScore*(0.5+0.5*ratio), "description keywords: "+strings.Join(common, ", "))
	}

	for _, tag := range md.Tags {
		t := strings.ToLower(tag)
		if t != "" && strings.Contains(q, t) {
			consider(TagMatchScore, "tag: "+tag)
		}
	}

	if best.Score <= 0 {
		return Result{}, false
	}
	return best, true
}

// QuickMatch is a loose relevance predicate: a trigger or the name contains
// the query or is contained by it, or a description word longer than three
// characters appears in the query.
func QuickMatch(md skills.Metadata, query string) bool {
	q := strings.ToLower(query)
	if q == "" {
		return false
	}
	for _, trigger := range md.Triggers {
		t := strings.ToLower(trigger)
		if t != "" && (strings.Contains(t, q) || strings.Contains(q, t)) {
			return true
		}
	}
	name := strings.ToLower(md.Name)
	if strings.Contains(name, q) || strings.Contains(q, name) {
		return true
	}
	for _, word := range strings.Fields(strings.ToLower(md.Description)) {
		if len(word) > 3 && strings.Contains(q, word) {
			return true
		}
	}
	return false
}

// String renders a result for logs and the CLI.
func (r Result) String() string {
	return fmt.Sprintf("%s (%.2f, %s)", r.Metadata.Name, r.Score, r.MatchedBy)
}
