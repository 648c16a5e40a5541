package matcher

import (
	"math"
	"strings"
	"testing"

	"github.com/nev3rmi/citeanchor/internal/passage"
	"github.com/nev3rmi/citeanchor/internal/pdftext"
	"github.com/nev3rmi/citeanchor/internal/textnorm"
)

func visualLine(text string, y float64) pdftext.Line {
	return pdftext.Line{
		Text:       text,
		Normalized: textnorm.Normalize(text),
		X:          10,
		Y:          y,
		Width:      400,
		Height:     12,
	}
}

func TestMatchLines_ContainmentAcrossWindow(t *testing.T) {
	lines := []pdftext.Line{
		visualLine("Some unrelated heading", 700),
		visualLine("The quick brown", 650),
		visualLine("fox jumps over", 630),
		visualLine("another line", 610),
	}
	p := passage.New("quick brown fox jumps")

	results := MatchLines(p, lines)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Strategy != StrategyLineWindow || r.Score != 1.0 {
		t.Fatalf("expected line-window containment score 1.0, got %q score %f", r.Strategy, r.Score)
	}
	if len(r.TokenIndices) != 2 || r.TokenIndices[0] != 1 || r.TokenIndices[1] != 2 {
		t.Errorf("expected window [1 2], got %v", r.TokenIndices)
	}
}

func TestMatchLines_TiePrefersTightestWindow(t *testing.T) {
	lines := []pdftext.Line{
		visualLine("intro text here", 700),
		visualLine("beta gamma", 680),
		visualLine("closing words", 660),
	}
	p := passage.New("beta gamma")

	results := MatchLines(p, lines)
	r := results[0]
	if r.Score != 1.0 {
		t.Fatalf("expected score 1.0, got %f", r.Score)
	}
	if len(r.TokenIndices) != 1 || r.TokenIndices[0] != 1 {
		t.Errorf("expected the single containing line, got window %v", r.TokenIndices)
	}
}

func TestMatchLines_EditRatioAtThreshold(t *testing.T) {
	// One substitution over four characters scores exactly 0.75.
	lines := []pdftext.Line{visualLine("abcx", 100)}
	p := passage.New("abcd")

	results := MatchLines(p, lines)
	r := results[0]
	if r.Score != 0.75 {
		t.Fatalf("expected score 0.75, got %f", r.Score)
	}
	if r.Strategy != StrategyLineWindow {
		t.Errorf("expected boundary score accepted, got %q", r.Strategy)
	}
}

func TestMatchLines_JustBelowThresholdRejected(t *testing.T) {
	// Thirteen substitutions over fifty characters scores 0.74.
	lines := []pdftext.Line{visualLine(strings.Repeat("a", 37)+strings.Repeat("b", 13), 100)}
	p := passage.New(strings.Repeat("a", 50))

	results := MatchLines(p, lines)
	r := results[0]
	if math.Abs(r.Score-0.74) > 1e-9 {
		t.Fatalf("expected score 0.74, got %f", r.Score)
	}
	if r.Strategy != StrategyNone {
		t.Errorf("expected rejection below threshold, got %q", r.Strategy)
	}
	if len(r.TokenIndices) != 1 {
		t.Errorf("expected best window kept for diagnostics, got %v", r.TokenIndices)
	}
}

func TestMatchLines_WordBagRescuesShortBlock(t *testing.T) {
	// The words appear hyphenated and reordered, so the edit ratio is poor,
	// but every block token is a substring of some window word.
	lines := []pdftext.Line{visualLine("vehicle: NFC-equipped", 500)}
	p := passage.New("NFC equipped vehicle")

	results := MatchLines(p, lines)
	r := results[0]
	if r.Score != 0.8 {
		t.Fatalf("expected word-bag score 0.8, got %f", r.Score)
	}
	if r.Strategy != StrategyLineWindow {
		t.Errorf("expected word-bag match accepted, got %q", r.Strategy)
	}
}

func TestMatchLines_WordBagLengthRatioCap(t *testing.T) {
	// All block tokens appear in the line, but the line is more than twice
	// the block's length, so the word-bag pass does not apply.
	lines := []pdftext.Line{visualLine("the vehicle on display is equipped with nfc readers", 500)}
	p := passage.New("NFC equipped")

	results := MatchLines(p, lines)
	r := results[0]
	if r.Score >= ScoreThreshold {
		t.Fatalf("expected sub-threshold score, got %f", r.Score)
	}
	if r.Strategy != StrategyNone {
		t.Errorf("expected rejection, got %q", r.Strategy)
	}
}

func TestMatchLines_NoLines(t *testing.T) {
	p := passage.New("alpha beta")
	results := MatchLines(p, nil)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Strategy != StrategyNone || r.Score != 0 {
		t.Errorf("expected empty page to score 0, got %q score %f", r.Strategy, r.Score)
	}
}
