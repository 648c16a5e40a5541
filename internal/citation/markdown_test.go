package citation

import "testing"

func TestExtractRefs_FindsCitationLinks(t *testing.T) {
	md := "The accessory pairs over NFC " +
		"[report.pdf - Page 3 - Chunk 12 - [NFC equipped]](#cite-1) and " +
		"ships with a charging dock " +
		"[guide.pdf - Page 7 - Chunk 9 - dock assembly](#cite-2). " +
		"See [the docs](https://example.com) for more."

	refs := ExtractRefs(md)
	if len(refs) != 2 {
		t.Fatalf("expected 2 citation refs, got %d", len(refs))
	}
	if refs[0].Filename != "report.pdf" || refs[0].Page != 3 || refs[0].ChunkID != "12" {
		t.Errorf("first ref: got %+v", refs[0])
	}
	if refs[0].SourceText != "NFC equipped" {
		t.Errorf("first ref source text: got %q", refs[0].SourceText)
	}
	if refs[1].Filename != "guide.pdf" || refs[1].ChunkID != "9" {
		t.Errorf("second ref: got %+v", refs[1])
	}
}

func TestExtractRefs_SkipsPlainLinks(t *testing.T) {
	refs := ExtractRefs("see [the manual](https://example.com/manual) online")
	if len(refs) != 0 {
		t.Errorf("expected no refs from plain links, got %v", refs)
	}
}

func TestExtractRefs_NoLinks(t *testing.T) {
	if refs := ExtractRefs("plain paragraph, no links at all"); refs != nil {
		t.Errorf("expected nil, got %v", refs)
	}
}

func TestExtractRefs_NestedInEmphasis(t *testing.T) {
	refs := ExtractRefs("*[a.pdf - Page 1 - Chunk 2 - [x y]](#c)*")
	if len(refs) != 1 {
		t.Fatalf("expected ref inside emphasis found, got %d", len(refs))
	}
	if refs[0].SourceText != "x y" {
		t.Errorf("source text: got %q", refs[0].SourceText)
	}
}
