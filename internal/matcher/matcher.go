// Package matcher resolves a desired value against a filter's value set.
// Matching is a pure function of its inputs: exact case-insensitive equality
// first, then similarity-ranked fuzzy candidates.
package matcher

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Kind tags the three match outcomes.
type Kind int

const (
	KindNone Kind = iota
	KindExact
	KindFuzzy
)

// Candidate is one fuzzy-ranked value.
type Candidate struct {
	Value string
	Score float64
}

// Result is the outcome of one Match call. Value is set for KindExact,
// Candidates for KindFuzzy.
type Result struct {
	Kind       Kind
	Value      string
	Candidates []Candidate
}

// Matcher holds the similarity threshold and candidate cap.
type Matcher struct {
	threshold      float64
	maxSuggestions int
}

const (
	DefaultThreshold      = 0.6
	DefaultMaxSuggestions = 5
)

func New(threshold float64, maxSuggestions int) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if maxSuggestions <= 0 {
		maxSuggestions = DefaultMaxSuggestions
	}
	return &Matcher{threshold: threshold, maxSuggestions: maxSuggestions}
}

// Match resolves desired against candidates. Exact equality is
// case-insensitive and takes precedence over any fuzzy score. Fuzzy
// candidates are ranked by score descending; ties keep the candidates'
// original order.
func (m *Matcher) Match(desired string, candidates []string) Result {
	normalized := normalize(desired)
	if normalized == "" {
		return Result{Kind: KindNone}
	}

	for _, c := range candidates {
		if normalize(c) == normalized {
			return Result{Kind: KindExact, Value: c}
		}
	}

	ranked := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		score := Similarity(normalized, normalize(c))
		if score >= m.threshold {
			ranked = append(ranked, Candidate{Value: c, Score: score})
		}
	}

	if len(ranked) == 0 {
		return Result{Kind: KindNone}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > m.maxSuggestions {
		ranked = ranked[:m.maxSuggestions]
	}

	return Result{Kind: KindFuzzy, Candidates: ranked}
}

// Similarity scores two normalized strings in [0,1]. It takes the better of
// edit-distance similarity and token overlap, so both near-misspellings
// ("governmentl" vs "Governmental") and reordered multi-word values
// ("payable accounts" vs "Accounts Payable") score high.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	edit := editSimilarity(a, b)
	overlap := tokenOverlap(a, b)
	if overlap > edit {
		return overlap
	}
	return edit
}

func editSimilarity(a, b string) float64 {
	distance := levenshtein.ComputeDistance(a, b)
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(distance)/float64(longest)
}

// tokenOverlap is the Jaccard index over whitespace-separated tokens.
func tokenOverlap(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(tokensA))
	for _, t := range tokensA {
		setA[t] = struct{}{}
	}

	union := make(map[string]struct{}, len(tokensA)+len(tokensB))
	for t := range setA {
		union[t] = struct{}{}
	}

	shared := 0
	for _, t := range tokensB {
		if _, seen := union[t]; !seen {
			union[t] = struct{}{}
			continue
		}
		if _, ok := setA[t]; ok {
			shared++
			delete(setA, t)
		}
	}

	return float64(shared) / float64(len(union))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
