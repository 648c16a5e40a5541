package similarity

import "strings"

// bigramMatchThreshold is the minimum Dice score for two longer tokens to be
// considered the same word despite extraction noise.
const bigramMatchThreshold = 0.8

// Levenshtein computes the edit distance between two strings with unit
// insert/delete/substitute costs, using a rolling single-row table.
func Levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// EditRatio scores two strings in [0,1] as 1 - distance/max(len).
// Two empty strings are identical and score 1.
func EditRatio(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(a, b))/float64(longest)
}

// BigramDice scores two strings in [0,1] by 2-character substring overlap:
// 2*|intersection| / (|set(a)| + |set(b)|). Cheaper than EditRatio for
// short tokens.
func BigramDice(a, b string) float64 {
	if a == b {
		return 1
	}
	ba := bigrams(a)
	bb := bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}
	inter := 0
	for g := range ba {
		if bb[g] {
			inter++
		}
	}
	return 2 * float64(inter) / float64(len(ba)+len(bb))
}

func bigrams(s string) map[string]bool {
	r := []rune(s)
	if len(r) < 2 {
		return nil
	}
	set := make(map[string]bool, len(r)-1)
	for i := 0; i+1 < len(r); i++ {
		set[string(r[i:i+2])] = true
	}
	return set
}

// TokensMatch reports whether two normalized tokens should be treated as the
// same word. Exact equality matches; a token of length >=3 contained in the
// other matches (PDF extraction merges or splits short words); two tokens of
// length >=4 match when their bigram overlap is at least 0.8.
func TokensMatch(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) >= 3 && strings.Contains(b, a) {
		return true
	}
	if len(b) >= 3 && strings.Contains(a, b) {
		return true
	}
	if len(a) >= 4 && len(b) >= 4 && BigramDice(a, b) >= bigramMatchThreshold {
		return true
	}
	return false
}
