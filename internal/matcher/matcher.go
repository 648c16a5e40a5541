package matcher

import (
	"github.com/nev3rmi/citeanchor/internal/passage"
	"github.com/nev3rmi/citeanchor/internal/pdftext"
)

const (
	// ScoreThreshold is the global acceptance cutoff. It applies to every
	// matching path; a best score below it yields StrategyNone.
	ScoreThreshold = 0.75

	// proximityMaxTokens is the largest block the proximity strategy takes
	// on. Longer blocks go straight to sequential alignment.
	proximityMaxTokens = 15

	// proximityMinCoverage is the matched fraction below which a proximity
	// attempt falls back to sequential alignment.
	proximityMinCoverage = 0.6

	// proximityYTolerance is the half-height in page pixels of the band
	// collected around the anchor token.
	proximityYTolerance = 20.0

	// maxPageSkips bounds consecutive page tokens skipped during sequential
	// alignment; maxChunkSkips bounds skipped chunk tokens per candidate.
	maxPageSkips  = 20
	maxChunkSkips = 20
)

// Strategy identifies which matching path produced a result.
type Strategy string

const (
	StrategySequential Strategy = "sequential"
	StrategyProximity  Strategy = "proximity"
	StrategyLineWindow Strategy = "line_window"
	StrategyNone       Strategy = "none"
)

// Result is the outcome of matching one block. TokenIndices index into the
// unit stream the match ran against: page tokens for the token strategies,
// lines for StrategyLineWindow. Below-threshold results keep the best score
// and indices found but carry StrategyNone.
type Result struct {
	BlockIndex   int      `json:"block_index"`
	TokenIndices []int    `json:"token_indices"`
	Score        float64  `json:"score"`
	Strategy     Strategy `json:"strategy"`
}

// Accepted reports whether the result cleared the acceptance threshold.
func (r Result) Accepted() bool { return r.Strategy != StrategyNone }

// BlockMatcher aligns one chunk block's tokens against a tokenized page.
type BlockMatcher interface {
	MatchBlock(blockTokens []string, page []pdftext.Token) (indices []int, score float64, strategy Strategy)
}

// ForBlock selects the strategy for a block by its token count. This is the
// single policy decision point.
func ForBlock(blockTokens []string) BlockMatcher {
	if len(blockTokens) <= proximityMaxTokens {
		return Proximity{}
	}
	return Sequential{}
}

// MatchPassage aligns every block of a passage against the page tokens and
// returns one Result per block that has tokens. Blocks with zero tokens
// after normalization are skipped. The result set is complete, never
// partial: callers receive the outcome for every matchable block.
func MatchPassage(p passage.Passage, tokens []pdftext.Token) []Result {
	var results []Result
	for _, b := range p.Blocks {
		if len(b.Tokens) == 0 {
			continue
		}
		indices, score, strategy := ForBlock(b.Tokens).MatchBlock(b.Tokens, tokens)
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

// AcceptedIndices pools the matched token indices of all accepted results,
// deduplicated, in first-seen order.
func AcceptedIndices(results []Result) []int {
	seen := make(map[int]bool)
	var out []int
	for _, r := range results {
		if !r.Accepted() {
			continue
		}
		for _, idx := range r.TokenIndices {
			if !seen[idx] {
				seen[idx] = true
				out = append(out, idx)
			}
		}
	}
	return out
}
