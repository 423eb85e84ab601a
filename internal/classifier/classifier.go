// Package classifier scores a query's complexity by additive feature
// points and routes it to one of three retrieval strategies. It
// is pure and independent of conversation state: the same query string
// always yields the same classification, regardless of session history.
package classifier

import (
	"fmt"
	"strings"

	"github.com/policyqa/core/internal/types"
)

// Thresholds configures the score cutoffs between query types.
type Thresholds struct {
	Simple  float64
	Complex float64
}

// DefaultThresholds classifies simple <= 1, moderate <= 3, else complex.
var DefaultThresholds = Thresholds{Simple: 1, Complex: 3}

var interrogativePrefixes = []string{"what", "who", "when", "where"}
var howWhyPrefixes = []string{"how", "why"}
var comparisonTerms = []string{"compare", "difference", "versus", "vs"}

// Classify scores the original (never context-enhanced) query and returns
// its complexity type along with a human-auditable explanation. Classify
// never consults conversation state — word counts must use the original
// query, not the context-enhanced one, which is enforced simply by never
// being handed the enhanced query at all.
func Classify(query string, t Thresholds) (types.QueryType, types.QueryExplanation) {
	score, _ := score(query)
	queryType := classify(score, t)

	return queryType, types.QueryExplanation{
		QueryType: queryType,
		Strategy:  strategyFor(queryType),
		TimingsMs: map[types.EventType]int64{},
	}
}

// Explain renders the human-readable prose the orchestrator logs
// alongside the QueryExplanation.
func Explain(query string, t Thresholds) string {
	s, contributions := score(query)
	queryType := classify(s, t)
	return fmt.Sprintf(
		"query %q classified as %s (score=%.0f via [%s]; thresholds: simple<=%.0f, moderate<=%.0f)",
		query, queryType, s, strings.Join(contributions, ", "), t.Simple, t.Complex,
	)
}

// score computes the additive feature score and the list of
// per-feature contributions that produced it.
func score(query string) (float64, []string) {
	words := strings.Fields(query)
	wordCount := len(words)
	lower := strings.ToLower(query)

	var total float64
	contributions := make([]string, 0, 5)

	switch {
	case wordCount <= 5:
		// 0 points
	case wordCount <= 12:
		total += 1
		contributions = append(contributions, "word_count in [6,12]: +1")
	case wordCount <= 25:
		total += 2
		contributions = append(contributions, "word_count in [13,25]: +2")
	default:
		total += 3
		contributions = append(contributions, "word_count > 25: +3")
	}

	firstWord := ""
	if len(words) > 0 {
		firstWord = strings.ToLower(strings.Trim(words[0], "?.,!"))
	}
	switch {
	case containsString(interrogativePrefixes, firstWord):
		// 0 points
	case containsString(howWhyPrefixes, firstWord):
		total += 2
		contributions = append(contributions, "starts with how/why: +2")
	}

	if containsAny(lower, comparisonTerms) {
		total += 3
		contributions = append(contributions, "contains compare/difference/versus: +3")
	}

	if connectsClauses(lower) {
		total += 1
		contributions = append(contributions, `contains "and" connecting clauses: +1`)
	}

	if strings.Count(query, "?") >= 2 {
		total += 2
		contributions = append(contributions, "contains multiple '?': +2")
	}

	return total, contributions
}

func classify(score float64, t Thresholds) types.QueryType {
	switch {
	case score <= t.Simple:
		return types.QueryTypeSimple
	case score <= t.Complex:
		return types.QueryTypeModerate
	default:
		return types.QueryTypeComplex
	}
}

// strategyFor maps a classified query type onto the retrieval strategy it
// dispatches to: simple->simple, moderate->hybrid, complex->advanced.
func strategyFor(qt types.QueryType) types.Strategy {
	switch qt {
	case types.QueryTypeSimple:
		return types.StrategySimple
	case types.QueryTypeModerate:
		return types.StrategyHybrid
	default:
		return types.StrategyAdvanced
	}
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsAny(haystack string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}

// connectsClauses is a light heuristic for "and" joining two clauses
// rather than a simple noun conjunction: requires "and" with words on
// both sides beyond a trivial list (more than one word before/after).
func connectsClauses(lower string) bool {
	idx := strings.Index(lower, " and ")
	if idx < 0 {
		return false
	}
	before := strings.Fields(lower[:idx])
	after := strings.Fields(lower[idx+len(" and "):])
	return len(before) >= 2 && len(after) >= 2
}
