package pdftext

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/nev3rmi/citeanchor/internal/textnorm"
)

// LineYTolerance is the y distance in page pixels within which runs belong
// to the same visual line.
const LineYTolerance = 5.0

// Line is a group of runs sharing a y band, concatenated left to right.
type Line struct {
	Text       string
	Normalized string
	X          float64
	Y          float64
	Width      float64
	Height     float64
	Items      []int // source run indices, left to right
	Page       int
}

// splitWordRe matches a stranded single letter followed by a lowercase word
// remainder, an artifact of some PDF producers splitting the first glyph of
// a word into its own run.
var splitWordRe = regexp.MustCompile(`\b([A-Za-z]) ([a-z]{2,})\b`)

func rejoinSplitWords(s string) string {
	return splitWordRe.ReplaceAllString(s, "${1}${2}")
}

// GroupLines merges deduplicated runs into visual lines: sort by (y desc,
// x asc), band together runs whose y differs from the band anchor by less
// than LineYTolerance, concatenate left to right.
func GroupLines(runs []Run) []Line {
	items := dedupRuns(runs)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Y() != items[j].Y() {
			return items[i].Y() > items[j].Y()
		}
		return items[i].X() < items[j].X()
	})

	var lines []Line
	var band []indexedRun
	flush := func() {
		if len(band) > 0 {
			lines = append(lines, buildLine(band))
			band = nil
		}
	}
	for _, it := range items {
		if len(band) > 0 && math.Abs(it.Y()-band[0].Y()) >= LineYTolerance {
			flush()
		}
		band = append(band, it)
	}
	flush()
	return lines
}

func buildLine(band []indexedRun) Line {
	members := make([]indexedRun, len(band))
	copy(members, band)
	sort.SliceStable(members, func(i, j int) bool { return members[i].X() < members[j].X() })

	var sb strings.Builder
	minX := math.Inf(1)
	maxRight := math.Inf(-1)
	height := 0.0
	items := make([]int, 0, len(members))
	for _, m := range members {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(m.Str)
		if m.X() < minX {
			minX = m.X()
		}
		if right := m.X() + m.Width; right > maxRight {
			maxRight = right
		}
		if m.Height > height {
			height = m.Height
		}
		items = append(items, m.idx)
	}

	text := rejoinSplitWords(sb.String())
	return Line{
		Text:       text,
		Normalized: textnorm.Normalize(text),
		X:          minX,
		Y:          band[0].Y(),
		Width:      maxRight - minX,
		Height:     height,
		Items:      items,
	}
}
