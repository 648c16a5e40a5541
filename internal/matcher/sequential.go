package matcher

import (
	"github.com/nev3rmi/citeanchor/internal/pdftext"
	"github.com/nev3rmi/citeanchor/internal/similarity"
)

// Sequential aligns a block in reading order. Every page position whose
// token matches the block's first token starts a candidate alignment; the
// candidate matching the most block tokens wins.
type Sequential struct{}

func (Sequential) MatchBlock(blockTokens []string, page []pdftext.Token) ([]int, float64, Strategy) {
	if len(blockTokens) == 0 || len(page) == 0 {
		return nil, 0, StrategySequential
	}

	first := blockTokens[0]
	var best []int
	for start, pt := range page {
		if !similarity.TokensMatch(pt.Normalized, first) {
			continue
		}
		cand := alignFrom(start, blockTokens, page)
		if len(cand) > len(best) {
			best = cand
		}
	}

	score := float64(len(best)) / float64(len(blockTokens))
	return best, score, StrategySequential
}

// alignFrom runs a bounded two-pointer walk from a candidate start. On a
// mismatch it first skips page tokens (styled runs fragment oddly), up to
// maxPageSkips consecutively, then spends a chunk-token skip (duplicated or
// corrupted chunk text) and tries again. The candidate ends when either
// stream runs out or both tolerances are exhausted.
func alignFrom(start int, blockTokens []string, page []pdftext.Token) []int {
	var matched []int
	pi, bi := start, 0
	pageSkips, chunkSkips := 0, 0

	for pi < len(page) && bi < len(blockTokens) {
		if similarity.TokensMatch(page[pi].Normalized, blockTokens[bi]) {
			matched = append(matched, pi)
			pi++
			bi++
			pageSkips = 0
			continue
		}
		if pageSkips < maxPageSkips {
			pageSkips++
			pi++
			continue
		}
		if chunkSkips < maxChunkSkips {
			chunkSkips++
			bi++
			pageSkips = 0
			continue
		}
		break
	}
	return matched
}
