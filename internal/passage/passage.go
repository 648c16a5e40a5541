package passage

import (
	"strings"

	"github.com/nev3rmi/citeanchor/internal/textnorm"
)

// minBlockChars filters noise fragments: a line must have at least this many
// characters after trimming to become a block.
const minBlockChars = 3

// Block is one line of a passage, matched independently against a page.
type Block struct {
	Text       string   // Trimmed source line
	Normalized string   // Normalized form for window comparison
	Tokens     []string // Normalized word tokens
	Index      int      // Position within the passage's kept blocks
}

// Passage is retrieval-returned chunk text split into matchable blocks.
// Immutable once built; a citation change replaces it wholesale.
type Passage struct {
	RawText string
	Blocks  []Block
}

// New splits raw chunk text into blocks, one per non-empty trimmed line of
// at least minBlockChars characters.
func New(raw string) Passage {
	p := Passage{RawText: raw}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < minBlockChars {
			continue
		}
		p.Blocks = append(p.Blocks, Block{
			Text:       line,
			Normalized: textnorm.Normalize(line),
			Tokens:     textnorm.Fields(line),
			Index:      len(p.Blocks),
		})
	}
	return p
}

// IsEmpty reports whether the passage produced no matchable blocks.
func (p Passage) IsEmpty() bool { return len(p.Blocks) == 0 }
