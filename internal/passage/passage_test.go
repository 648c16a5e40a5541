package passage

import "testing"

func TestNew_SplitsLinesIntoBlocks(t *testing.T) {
	p := New("The vehicle is equipped with NFC.\nThe key fob communicates wirelessly.")
	if len(p.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(p.Blocks))
	}
	if p.Blocks[0].Text != "The vehicle is equipped with NFC." {
		t.Errorf("unexpected first block text: %q", p.Blocks[0].Text)
	}
	if p.Blocks[0].Index != 0 || p.Blocks[1].Index != 1 {
		t.Errorf("expected sequential indices, got %d and %d", p.Blocks[0].Index, p.Blocks[1].Index)
	}
}

func TestNew_DropsNoiseFragments(t *testing.T) {
	p := New("Real content line here\n\n  \na\n..\nAnother real line")
	if len(p.Blocks) != 2 {
		t.Fatalf("expected noise fragments dropped, got %d blocks", len(p.Blocks))
	}
	if p.Blocks[1].Text != "Another real line" {
		t.Errorf("unexpected second block: %q", p.Blocks[1].Text)
	}
	// Indices stay dense after filtering.
	if p.Blocks[1].Index != 1 {
		t.Errorf("expected index 1 after filtering, got %d", p.Blocks[1].Index)
	}
}

func TestNew_NormalizesBlocks(t *testing.T) {
	p := New("  The   QUICK brown fox.  ")
	if len(p.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(p.Blocks))
	}
	b := p.Blocks[0]
	if b.Normalized != "the quick brown fox." {
		t.Errorf("unexpected normalized text: %q", b.Normalized)
	}
	want := []string{"the", "quick", "brown", "fox"}
	if len(b.Tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %v", len(want), b.Tokens)
	}
	for i := range want {
		if b.Tokens[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], b.Tokens[i])
		}
	}
}

func TestNew_EmptyPassage(t *testing.T) {
	for _, raw := range []string{"", "\n\n", "  \n a \n"} {
		if p := New(raw); !p.IsEmpty() {
			t.Errorf("expected empty passage for %q, got %d blocks", raw, len(p.Blocks))
		}
	}
}
