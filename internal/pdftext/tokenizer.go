package pdftext

import (
	"unicode"

	"github.com/nev3rmi/citeanchor/internal/textnorm"
)

// Run is one raw positioned text item from a rendered page's text layer.
// Transform is the 6-element affine matrix the renderer reports; indices 4
// and 5 carry the baseline x and y. Coordinates are page space at scale 1.0.
type Run struct {
	Str       string     `json:"str"`
	Transform [6]float64 `json:"transform"`
	Width     float64    `json:"width"`
	Height    float64    `json:"height"`
}

func (r Run) X() float64 { return r.Transform[4] }
func (r Run) Y() float64 { return r.Transform[5] }

// Viewport is a page's dimensions at scale 1.0.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Token is a single word reconstructed from a run, with its geometry.
type Token struct {
	Text       string
	Normalized string
	X          float64
	Y          float64
	Width      float64
	Height     float64
	ItemIndex  int // index of the source run in the page's item list
	Page       int // 1-indexed page number, set when pages are concatenated
}

type runKey struct {
	x, y float64
	text string
}

type indexedRun struct {
	Run
	idx int
}

// dedupRuns drops runs with identical (x, y, text). PDF text layers commonly
// duplicate items for accessibility/selection layers.
func dedupRuns(runs []Run) []indexedRun {
	seen := make(map[runKey]bool, len(runs))
	out := make([]indexedRun, 0, len(runs))
	for i, r := range runs {
		k := runKey{x: r.X(), y: r.Y(), text: r.Str}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, indexedRun{Run: r, idx: i})
	}
	return out
}

// Tokenize splits each run into word-level tokens. A run reports only its
// total width, so each word gets a left edge and width from the run's uniform
// per-character width estimate. Run order is preserved.
func Tokenize(runs []Run) []Token {
	var tokens []Token
	for _, ir := range dedupRuns(runs) {
		tokens = appendRunTokens(tokens, ir.Run, ir.idx)
	}
	return tokens
}

func appendRunTokens(tokens []Token, r Run, itemIndex int) []Token {
	chars := []rune(r.Str)
	if len(chars) == 0 {
		return tokens
	}
	charW := r.Width / float64(len(chars))

	start := -1
	for i := 0; i <= len(chars); i++ {
		if i < len(chars) && !unicode.IsSpace(chars[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			word := string(chars[start:i])
			tokens = append(tokens, Token{
				Text:       word,
				Normalized: textnorm.NormalizeToken(word),
				X:          r.X() + charW*float64(start),
				Y:          r.Y(),
				Width:      charW * float64(i-start),
				Height:     r.Height,
				ItemIndex:  itemIndex,
			})
			start = -1
		}
	}
	return tokens
}
