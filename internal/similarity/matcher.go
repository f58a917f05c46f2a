// Package similarity scores extracted marking text against reference part
// numbers.
//
// Texts are normalized (upper-cased, whitespace collapsed) before any
// comparison. Scores lie in [0,1]: exactly 1 only for identical normalized
// texts, 0 whenever either side is empty. Disjoint texts can also score 0.
package similarity

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/ic-marking-mcp/internal/logging"
)

// Method selects a scoring algorithm.
type Method string

const (
	// Ratio is the overall edit similarity of the full strings.
	Ratio Method = "ratio"
	// PartialRatio scores the best-aligned window of the longer string.
	PartialRatio Method = "partial_ratio"
	// TokenSort ignores word order.
	TokenSort Method = "token_sort"
	// TokenSet compares the sets of words.
	TokenSet Method = "token_set"
	// Levenshtein is 1 - editDistance/max(len).
	Levenshtein Method = "levenshtein"

	// DefaultMethod is used for empty and unknown method names.
	DefaultMethod = Ratio
)

// methodAliases maps accepted names to methods.
var methodAliases = map[string]Method{
	"":                 DefaultMethod,
	"default":          DefaultMethod,
	"rapidfuzz":        DefaultMethod,
	"ratio":            Ratio,
	"partial_ratio":    PartialRatio,
	"partial":          PartialRatio,
	"token_sort":       TokenSort,
	"token_sort_ratio": TokenSort,
	"token_set":        TokenSet,
	"token_set_ratio":  TokenSet,
	"levenshtein":      Levenshtein,
}

var scorers = map[Method]func(a, b string) float64{
	Ratio:        ratio,
	PartialRatio: partialRatio,
	TokenSort:    tokenSortRatio,
	TokenSet:     tokenSetRatio,
	Levenshtein:  levenshteinRatio,
}

// maxInexactScore keeps non-identical texts strictly below an exact match.
var maxInexactScore = math.Nextafter(1, 0)

// UnknownMethodError reports a method name that is not recognized.
type UnknownMethodError struct {
	Name string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown similarity method %q", e.Name)
}

// ParseMethod resolves a method name. Matching is case-insensitive; empty
// selects DefaultMethod.
func ParseMethod(name string) (Method, error) {
	if m, ok := methodAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return m, nil
	}
	return "", &UnknownMethodError{Name: name}
}

// Methods lists the canonical method names.
func Methods() []Method {
	return []Method{Ratio, PartialRatio, TokenSort, TokenSet, Levenshtein}
}

// Normalize upper-cases s, collapses runs of whitespace to one space and
// trims it.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

// Match is one ranked candidate.
type Match struct {
	// Text is the candidate as supplied.
	Text string `json:"text"`

	// Score is its similarity to the query.
	Score float64 `json:"score"`

	// Index is the candidate's position in the input list.
	Index int `json:"index"`
}

// Matcher scores texts. It has no mutable state and is safe for concurrent
// use.
type Matcher struct {
	log *logrus.Entry
}

// NewMatcher returns a Matcher that reports unknown methods to log. A nil
// log discards them.
func NewMatcher(log *logrus.Entry) *Matcher {
	if log == nil {
		log = logging.Discard()
	}
	return &Matcher{log: log}
}

// Calculate returns the similarity of a and b under method.
//
// An unknown method is logged as a warning and replaced by DefaultMethod.
func (m *Matcher) Calculate(a, b, method string) float64 {
	return score(Normalize(a), Normalize(b), m.resolve(method))
}

// FindBestMatches ranks candidates by similarity to query.
//
// Blank candidates are skipped. The result is sorted by descending score;
// equal scores keep their input order. At most limit matches are returned,
// none when limit is not positive.
func (m *Matcher) FindBestMatches(query string, candidates []string, method string, limit int) []Match {
	if limit <= 0 {
		return []Match{}
	}
	resolved := m.resolve(method)
	q := Normalize(query)

	matches := make([]Match, 0, len(candidates))
	for i, c := range candidates {
		nc := Normalize(c)
		if nc == "" {
			continue
		}
		matches = append(matches, Match{Text: c, Score: score(q, nc, resolved), Index: i})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func (m *Matcher) resolve(name string) Method {
	method, err := ParseMethod(name)
	if err != nil {
		m.log.WithField("method", name).WithError(err).Warnf("using %s instead", DefaultMethod)
		return DefaultMethod
	}
	return method
}

// score compares two normalized texts.
func score(a, b string, method Method) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	s := scorers[method](a, b) / 100
	switch {
	case math.IsNaN(s) || s < 0:
		return 0
	case s > maxInexactScore:
		return maxInexactScore
	}
	return s
}
