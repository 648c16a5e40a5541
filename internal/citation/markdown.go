package citation

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ExtractRefs returns the citation references found in link text of a
// markdown document, in document order. Links whose text does not carry a
// chunk id are not citations and are skipped.
func ExtractRefs(markdown string) []Ref {
	src := []byte(markdown)
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var refs []Ref
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if _, ok := n.(*ast.Link); !ok {
			return ast.WalkContinue, nil
		}
		ref := ParseRef(linkText(n, src))
		if ref.HasChunk() {
			refs = append(refs, ref)
		}
		return ast.WalkSkipChildren, nil
	})
	return refs
}

// linkText collects the plain text inside a link node, including literal
// bracket characters from nested spans.
func linkText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		} else {
			buf.WriteString(linkText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
