package matcher

import (
	"strings"

	"github.com/nev3rmi/citeanchor/internal/passage"
	"github.com/nev3rmi/citeanchor/internal/pdftext"
	"github.com/nev3rmi/citeanchor/internal/similarity"
)

const (
	// lineWindowMax is the largest number of consecutive lines tried as a
	// single window.
	lineWindowMax = 5

	// shortBlockChars marks blocks eligible for the word-bag rescue pass.
	shortBlockChars = 60

	// wordBagScore is the score a successful word-bag pass contributes.
	wordBagScore = 0.8

	// windowLengthRatioMax caps how much longer than the block a window may
	// be for the word-bag pass to apply.
	windowLengthRatioMax = 2.0
)

// MatchLines aligns passage blocks against grouped lines instead of word
// tokens. Result TokenIndices are line indices. Used when whole-line
// granularity suffices, with the same acceptance threshold as the token
// path.
func MatchLines(p passage.Passage, lines []pdftext.Line) []Result {
	var results []Result
	for _, b := range p.Blocks {
		if len(b.Tokens) == 0 {
			continue
		}
		indices, score := lineWindowScan(b, lines)
		strategy := StrategyLineWindow
		if score < ScoreThreshold {
			strategy = StrategyNone
		}
		results = append(results, Result{
			BlockIndex:   b.Index,
			TokenIndices: indices,
			Score:        score,
			Strategy:     strategy,
		})
	}
	return results
}

// lineWindowScan tries every window of 1..lineWindowMax consecutive lines
// and keeps the best-scoring one. Smaller windows are tried first, so a tie
// resolves to the tightest window.
func lineWindowScan(b passage.Block, lines []pdftext.Line) ([]int, float64) {
	best := 0.0
	var bestIndices []int
	for size := 1; size <= lineWindowMax; size++ {
		for start := 0; start+size <= len(lines); start++ {
			window := joinWindow(lines[start : start+size])
			s := scoreWindow(b, window)
			if s > best {
				best = s
				bestIndices = indexRange(start, size)
			}
		}
	}
	return bestIndices, best
}

func joinWindow(lines []pdftext.Line) string {
	parts := make([]string, 0, len(lines))
	for _, ln := range lines {
		if ln.Normalized != "" {
			parts = append(parts, ln.Normalized)
		}
	}
	return strings.Join(parts, " ")
}

// scoreWindow is max(substring containment, edit ratio, word-bag). The
// word-bag pass applies only to short blocks the other measures scored
// below threshold.
func scoreWindow(b passage.Block, window string) float64 {
	if window == "" {
		return 0
	}
	if strings.Contains(window, b.Normalized) {
		return 1.0
	}
	s := similarity.EditRatio(window, b.Normalized)
	if len(b.Normalized) < shortBlockChars && s < ScoreThreshold && wordBagContains(b, window) {
		s = wordBagScore
	}
	return s
}

// wordBagContains requires every block token of length >=3 to appear as a
// substring of some window word, and the window to be no more than twice
// the block's length.
func wordBagContains(b passage.Block, window string) bool {
	if float64(len(window)) > windowLengthRatioMax*float64(len(b.Normalized)) {
		return false
	}
	windowWords := strings.Fields(window)
	for _, tok := range b.Tokens {
		if len(tok) < 3 {
			continue
		}
		found := false
		for _, w := range windowWords {
			if strings.Contains(w, tok) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func indexRange(start, size int) []int {
	out := make([]int, size)
	for i := range out {
		out[i] = start + i
	}
	return out
}
