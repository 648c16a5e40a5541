// Package citation parses citation link text and extracts citation links
// from chat markdown.
package citation

import (
	"regexp"
	"strconv"
	"strings"
)

// Ref is one parsed citation reference.
type Ref struct {
	Filename   string `json:"filename,omitempty"`
	Page       int    `json:"page,omitempty"`
	ChunkID    string `json:"chunk_id,omitempty"`
	SourceText string `json:"source_text"`
	Raw        string `json:"raw"`
}

var refRe = regexp.MustCompile(`^(.+?\.pdf)\s*-\s*Page\s+(\d+)\s*-\s*Chunk\s+(\S+)\s*-\s*(.+)$`)

// ParseRef parses citation link text of the form
//
//	report.pdf - Page 3 - Chunk 12 - [quoted source text]
//
// The brackets around the source text are optional. Text that does not
// match the form yields a Ref whose SourceText is the whole input, with no
// page or chunk hint.
func ParseRef(text string) Ref {
	text = strings.TrimSpace(text)

	m := refRe.FindStringSubmatch(text)
	if m == nil {
		return Ref{SourceText: text, Raw: text}
	}

	page, err := strconv.Atoi(m[2])
	if err != nil {
		return Ref{SourceText: text, Raw: text}
	}

	src := strings.TrimSpace(m[4])
	if strings.HasPrefix(src, "[") && strings.HasSuffix(src, "]") {
		src = src[1 : len(src)-1]
	}

	return Ref{
		Filename:   m[1],
		Page:       page,
		ChunkID:    m[3],
		SourceText: src,
		Raw:        text,
	}
}

// HasChunk reports whether the ref carries a chunk id that can be resolved
// against the retrieval backend.
func (r Ref) HasChunk() bool { return r.ChunkID != "" }

// HasPage reports whether the ref names a target page.
func (r Ref) HasPage() bool { return r.Page > 0 }
