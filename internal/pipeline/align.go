package pipeline

import (
	"fmt"

	"github.com/nev3rmi/citeanchor/internal/highlight"
	"github.com/nev3rmi/citeanchor/internal/matcher"
	"github.com/nev3rmi/citeanchor/internal/passage"
	"github.com/nev3rmi/citeanchor/internal/pdftext"
	"github.com/nev3rmi/citeanchor/internal/viewer"
)

// AlignResult is the matcher output and synthesized geometry for one
// passage against a set of pages.
type AlignResult struct {
	Results []matcher.Result   `json:"results"`
	Regions []highlight.Region `json:"regions"`

	// PageErrors records pages that could not contribute tokens. A failed
	// page is equivalent to an empty one.
	PageErrors []string `json:"page_errors,omitempty"`
}

// Align tokenizes the given pages, matches the passage block by block and
// synthesizes highlight regions.
func Align(src viewer.PageSource, pages []int, passageText, sourceText string) AlignResult {
	p := passage.New(passageText)
	if p.IsEmpty() {
		return AlignResult{}
	}

	var out AlignResult
	var tokens []pdftext.Token
	for _, pageNum := range pages {
		_, runs, err := src.Page(pageNum)
		if err != nil {
			out.PageErrors = append(out.PageErrors, fmt.Sprintf("page %d: %v", pageNum, err))
			continue
		}
		toks := pdftext.Tokenize(runs)
		for i := range toks {
			toks[i].Page = pageNum
		}
		tokens = append(tokens, toks...)
	}

	out.Results = matcher.MatchPassage(p, tokens)
	out.Regions = highlight.FromTokens(tokens, matcher.AcceptedIndices(out.Results), sourceText)
	return out
}

// AlignLines is the line-granularity variant: page runs are grouped into
// visual lines and the passage is scored with the line-window matcher.
func AlignLines(src viewer.PageSource, pages []int, passageText, sourceText string) AlignResult {
	p := passage.New(passageText)
	if p.IsEmpty() {
		return AlignResult{}
	}

	var out AlignResult
	var lines []pdftext.Line
	for _, pageNum := range pages {
		_, runs, err := src.Page(pageNum)
		if err != nil {
			out.PageErrors = append(out.PageErrors, fmt.Sprintf("page %d: %v", pageNum, err))
			continue
		}
		pageLines := pdftext.GroupLines(runs)
		for i := range pageLines {
			pageLines[i].Page = pageNum
		}
		lines = append(lines, pageLines...)
	}

	out.Results = matcher.MatchLines(p, lines)
	out.Regions = highlight.FromLines(lines, matcher.AcceptedIndices(out.Results), sourceText)
	return out
}
