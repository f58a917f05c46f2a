package similarity

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// The scorers below work on runes and return values on a 0-100 scale.
// Inputs are already normalized.

// ratio is the normalized Indel similarity: 200*LCS/(len(a)+len(b)).
func ratio(a, b string) float64 {
	return ratioRunes([]rune(a), []rune(b))
}

func ratioRunes(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	return 200 * float64(lcsLength(a, b)) / float64(total)
}

// lcsLength returns the length of the longest common subsequence.
func lcsLength(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// partialRatio aligns the shorter string against every window of the longer
// one, including windows that hang off either end, and keeps the best ratio.
// Strings of equal length are tried in both directions.
func partialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		return 0
	}

	best := bestWindow(ra, rb)
	if len(ra) == len(rb) && best < 100 {
		best = max(best, bestWindow(rb, ra))
	}
	return best
}

func bestWindow(short, long []rune) float64 {
	n, m := len(short), len(long)
	best := 0.0
	consider := func(window []rune) bool {
		if s := ratioRunes(short, window); s > best {
			best = s
		}
		return best == 100
	}

	for i := 1; i < n; i++ {
		if consider(long[:i]) {
			return best
		}
	}
	for i := 0; i <= m-n; i++ {
		if consider(long[i : i+n]) {
			return best
		}
	}
	for i := m - n + 1; i < m; i++ {
		if consider(long[i:]) {
			return best
		}
	}
	return best
}

// tokenSortRatio compares the strings after sorting their tokens.
func tokenSortRatio(a, b string) float64 {
	return ratio(sortedTokens(strings.Fields(a)), sortedTokens(strings.Fields(b)))
}

func sortedTokens(tokens []string) string {
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

// tokenSetRatio compares the token sets. Shared tokens count fully; a set
// that is contained in the other scores 100.
func tokenSetRatio(a, b string) float64 {
	setA, setB := tokenSet(a), tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	var common, onlyA, onlyB []string
	for tok := range setA {
		if setB[tok] {
			common = append(common, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if !setA[tok] {
			onlyB = append(onlyB, tok)
		}
	}

	if len(common) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	diffA, diffB := sortedTokens(onlyA), sortedTokens(onlyB)
	best := ratio(diffA, diffB)
	if len(common) == 0 {
		return best
	}

	sect := sortedTokens(common)
	withA := sect + " " + diffA
	withB := sect + " " + diffB
	return max(best, ratio(sect, withA), ratio(sect, withB))
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(s)
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// levenshteinRatio is 100*(1 - distance/max(len(a), len(b))).
func levenshteinRatio(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(dist)/float64(longest))
}
