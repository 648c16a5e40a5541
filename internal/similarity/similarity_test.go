package similarity

import "testing"

func TestLevenshtein_KnownDistances(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"", "abc", 3},
		{"abc", "", 3},
		{"same", "same", 0},
		{"a", "b", 1},
	}
	for _, c := range cases {
		if got := Levenshtein(c.a, c.b); got != c.want {
			t.Errorf("Levenshtein(%q, %q): expected %d, got %d", c.a, c.b, c.want, got)
		}
	}
}

func TestEditRatio_Identity(t *testing.T) {
	for _, s := range []string{"", "a", "hello world", "the vehicle is equipped with nfc"} {
		if got := EditRatio(s, s); got != 1.0 {
			t.Errorf("EditRatio(%q, %q): expected 1.0, got %f", s, s, got)
		}
	}
}

func TestEditRatio_Symmetry(t *testing.T) {
	pairs := [][2]string{
		{"kitten", "sitting"},
		{"science news", "news science"},
		{"", "abc"},
		{"vol 1", "volume 1"},
	}
	for _, p := range pairs {
		ab := EditRatio(p[0], p[1])
		ba := EditRatio(p[1], p[0])
		if ab != ba {
			t.Errorf("EditRatio not symmetric for %q/%q: %f vs %f", p[0], p[1], ab, ba)
		}
	}
}

func TestEditRatio_BothEmpty(t *testing.T) {
	if got := EditRatio("", ""); got != 1.0 {
		t.Errorf("expected 1.0 for two empty strings, got %f", got)
	}
}

func TestEditRatio_Range(t *testing.T) {
	if got := EditRatio("abcd", "wxyz"); got != 0.0 {
		t.Errorf("expected 0.0 for fully distinct equal-length strings, got %f", got)
	}
	got := EditRatio("abcdefghij", "abcdefghix")
	if got != 0.9 {
		t.Errorf("expected 0.9 for one substitution in ten, got %f", got)
	}
}

func TestBigramDice_IdenticalAndDisjoint(t *testing.T) {
	if got := BigramDice("night", "night"); got != 1.0 {
		t.Errorf("expected 1.0 for identical strings, got %f", got)
	}
	if got := BigramDice("abab", "cdcd"); got != 0.0 {
		t.Errorf("expected 0.0 for disjoint bigram sets, got %f", got)
	}
}

func TestBigramDice_Symmetry(t *testing.T) {
	a, b := "healed", "sealed"
	if BigramDice(a, b) != BigramDice(b, a) {
		t.Errorf("BigramDice not symmetric for %q/%q", a, b)
	}
}

func TestBigramDice_ShortStrings(t *testing.T) {
	// Single-rune strings have no bigrams and cannot overlap.
	if got := BigramDice("a", "ab"); got != 0.0 {
		t.Errorf("expected 0.0 when one side has no bigrams, got %f", got)
	}
	if got := BigramDice("x", "x"); got != 1.0 {
		t.Errorf("expected 1.0 for equal strings regardless of length, got %f", got)
	}
}

func TestTokensMatch_Exact(t *testing.T) {
	if !TokensMatch("vehicle", "vehicle") {
		t.Error("expected exact tokens to match")
	}
	if TokensMatch("on", "of") {
		t.Error("expected short distinct tokens not to match")
	}
}

func TestTokensMatch_Substring(t *testing.T) {
	if !TokensMatch("equip", "equipped") {
		t.Error("expected contained token of length >=3 to match")
	}
	if !TokensMatch("equipped", "equip") {
		t.Error("expected containment to match in either direction")
	}
	// A two-letter token must not match by containment.
	if TokensMatch("he", "the") {
		t.Error("expected two-letter containment not to match")
	}
}

func TestTokensMatch_BigramTolerance(t *testing.T) {
	// First-character corruption keeps 6 of 7 bigrams, Dice 12/14 > 0.8.
	if !TokensMatch("equipped", "cquipped") {
		t.Error("expected near-identical long tokens to match via bigrams")
	}
	if TokensMatch("abcd", "wxyz") {
		t.Error("expected unrelated tokens not to match")
	}
}
