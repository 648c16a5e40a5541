// Package highlight converts matched token geometry into renderable
// highlight regions.
package highlight

import (
	"sort"

	"github.com/nev3rmi/citeanchor/internal/pdftext"
)

const (
	// baselineOffsetRatio compensates for the gap between a token's
	// baseline origin and its visual top.
	baselineOffsetRatio = 0.15

	// lineClusterTolerance groups rects whose y differs by less than this
	// many points into one visual line.
	lineClusterTolerance = 5.0
)

// Rect is an axis-aligned rectangle in page space at scale 1.0.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) right() float64 { return r.X + r.Width }
func (r Rect) top() float64   { return r.Y + r.Height }

// Region is the renderable highlight for one page: one merged rect per
// visual line plus the envelope around all of them.
type Region struct {
	PageNumber   int    `json:"page_number"`
	Rects        []Rect `json:"rects"`
	BoundingRect Rect   `json:"bounding_rect"`
	SourceText   string `json:"source_text"`
}

// FromTokens synthesizes highlight regions from matched page tokens, one
// region per page that contributed a match. Pages are emitted in ascending
// order.
func FromTokens(tokens []pdftext.Token, indices []int, sourceText string) []Region {
	byPage := make(map[int][]Rect)
	for _, idx := range indices {
		if idx < 0 || idx >= len(tokens) {
			continue
		}
		t := tokens[idx]
		byPage[t.Page] = append(byPage[t.Page], Rect{
			X:      t.X,
			Y:      t.Y - baselineOffsetRatio*t.Height,
			Width:  t.Width,
			Height: t.Height,
		})
	}
	return regionsForPages(byPage, sourceText)
}

// FromLines synthesizes regions from whole matched lines, used when the
// matcher ran at line granularity.
func FromLines(lines []pdftext.Line, indices []int, sourceText string) []Region {
	byPage := make(map[int][]Rect)
	for _, idx := range indices {
		if idx < 0 || idx >= len(lines) {
			continue
		}
		ln := lines[idx]
		byPage[ln.Page] = append(byPage[ln.Page], Rect{
			X:      ln.X,
			Y:      ln.Y - baselineOffsetRatio*ln.Height,
			Width:  ln.Width,
			Height: ln.Height,
		})
	}
	return regionsForPages(byPage, sourceText)
}

func regionsForPages(byPage map[int][]Rect, sourceText string) []Region {
	pages := make([]int, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	var regions []Region
	for _, p := range pages {
		merged := mergeLineRects(byPage[p])
		if len(merged) == 0 {
			continue
		}
		regions = append(regions, Region{
			PageNumber:   p,
			Rects:        merged,
			BoundingRect: spanRect(merged),
			SourceText:   sourceText,
		})
	}
	return regions
}

// mergeLineRects clusters rects into visual lines and emits one spanning
// rect per line, filling the gaps between individually matched tokens so a
// partially matched run renders as one continuous band.
func mergeLineRects(rects []Rect) []Rect {
	if len(rects) == 0 {
		return nil
	}
	sorted := make([]Rect, len(rects))
	copy(sorted, rects)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var merged []Rect
	var cluster []Rect
	flush := func() {
		if len(cluster) > 0 {
			merged = append(merged, spanRect(cluster))
			cluster = nil
		}
	}
	for _, r := range sorted {
		if len(cluster) > 0 && abs(r.Y-cluster[0].Y) >= lineClusterTolerance {
			flush()
		}
		cluster = append(cluster, r)
	}
	flush()
	return merged
}

// spanRect covers a cluster from its leftmost edge to its rightmost.
func spanRect(cluster []Rect) Rect {
	left := cluster[0].X
	right := cluster[0].right()
	bottom := cluster[0].Y
	top := cluster[0].top()
	for _, r := range cluster[1:] {
		left = min(left, r.X)
		right = max(right, r.right())
		bottom = min(bottom, r.Y)
		top = max(top, r.top())
	}
	return Rect{X: left, Y: bottom, Width: right - left, Height: top - bottom}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
