package matcher

import (
	"math"

	"github.com/nev3rmi/citeanchor/internal/pdftext"
	"github.com/nev3rmi/citeanchor/internal/similarity"
)

// Proximity matches short blocks (titles, headers) whose on-page word order
// may differ from reading order. It anchors on the block's first token,
// collects page tokens within a y band around the anchor, and greedily
// pairs band tokens to unused block tokens. Sequential alignment runs as
// well: the proximity result wins only when it covers at least
// proximityMinCoverage of the block and strictly beats the ordered match,
// so a fully ordered sentence reports as sequential.
type Proximity struct{}

func (Proximity) MatchBlock(blockTokens []string, page []pdftext.Token) ([]int, float64, Strategy) {
	proxIndices, proxScore := proximityScan(blockTokens, page)
	seqIndices, seqScore, _ := Sequential{}.MatchBlock(blockTokens, page)

	if proxScore >= proximityMinCoverage && proxScore > seqScore {
		return proxIndices, proxScore, StrategyProximity
	}
	return seqIndices, seqScore, StrategySequential
}

func proximityScan(blockTokens []string, page []pdftext.Token) ([]int, float64) {
	if len(blockTokens) == 0 || len(page) == 0 {
		return nil, 0
	}

	anchor := -1
	for i, pt := range page {
		if similarity.TokensMatch(pt.Normalized, blockTokens[0]) {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		return nil, 0
	}

	anchorY := page[anchor].Y
	anchorPage := page[anchor].Page
	used := make([]bool, len(blockTokens))
	var matched []int
	for i, pt := range page {
		if pt.Page != anchorPage || math.Abs(pt.Y-anchorY) > proximityYTolerance {
			continue
		}
		for bi, bt := range blockTokens {
			if used[bi] {
				continue
			}
			if similarity.TokensMatch(pt.Normalized, bt) {
				used[bi] = true
				matched = append(matched, i)
				break
			}
		}
	}
	return matched, float64(len(matched)) / float64(len(blockTokens))
}
