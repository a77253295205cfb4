package textnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// SimilarityThreshold is the edit-distance ratio above which two normalized
// names are considered the same entity.
const SimilarityThreshold = 0.85

// Similar reports whether two company names refer to the same entity. Names
// match when their normalized keys are equal, when one non-empty key contains
// the other, or when Similarity exceeds SimilarityThreshold.
func Similar(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return true
	}
	if na != "" && nb != "" && (strings.Contains(na, nb) || strings.Contains(nb, na)) {
		return true
	}
	return ratio(na, nb) > SimilarityThreshold
}

// Similarity returns 1 - EditDistance/maxLen over the normalized forms of a
// and b. Two empty keys have similarity 1.
func Similarity(a, b string) float64 {
	return ratio(Normalize(a), Normalize(b))
}

func ratio(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(EditDistance(a, b))/float64(maxLen)
}

// EditDistance returns the Levenshtein distance between a and b, counted in
// runes with unit cost for insert, delete and substitute.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	dp := make([][]int, len(ra)+1)
	for i := range dp {
		dp[i] = make([]int, len(rb)+1)
		dp[i][0] = i
	}
	for j := range dp[0] {
		dp[0][j] = j
	}

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			dp[i][j] = min(
				dp[i-1][j]+1,
				dp[i][j-1]+1,
				dp[i-1][j-1]+cost,
			)
		}
	}
	return dp[len(ra)][len(rb)]
}

// ContentHash returns the hex SHA-256 digest of s. Used as a dedup
// fingerprint for fetched content.
func ContentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
