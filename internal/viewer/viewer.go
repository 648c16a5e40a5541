// Package viewer defines the boundary between the highlight pipeline and
// the embedding PDF viewer.
package viewer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nev3rmi/citeanchor/internal/highlight"
	"github.com/nev3rmi/citeanchor/internal/pdftext"
)

// PageSource supplies one page's viewport and raw text runs at scale 1.0.
// Page numbers are 1-indexed.
type PageSource interface {
	Page(pageNum int) (pdftext.Viewport, []pdftext.Run, error)
}

// Renderer receives highlight output from the pipeline. EnsureTextLayer is
// the capability the pipeline awaits before scrolling: the embedding
// viewer materializes its text layer for the target page lazily.
type Renderer interface {
	SetHighlights(regions []highlight.Region)
	ScrollTo(region highlight.Region)
	EnsureTextLayer(page int)
}

// Directive types queued for a polling viewer client.
const (
	DirectiveSetHighlights   = "set_highlights"
	DirectiveScrollTo        = "scroll_to"
	DirectiveEnsureTextLayer = "ensure_text_layer"
)

// Directive is one queued renderer instruction.
type Directive struct {
	Type    string             `json:"type"`
	Regions []highlight.Region `json:"regions,omitempty"`
	Region  *highlight.Region  `json:"region,omitempty"`
	Page    int                `json:"page,omitempty"`
}

// Queue is a Renderer that records directives for a client that applies
// them on its next poll.
type Queue struct {
	mu         sync.Mutex
	directives []Directive
}

func NewQueue() *Queue { return &Queue{} }

func (q *Queue) SetHighlights(regions []highlight.Region) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if regions == nil {
		regions = []highlight.Region{}
	}
	q.directives = append(q.directives, Directive{Type: DirectiveSetHighlights, Regions: regions})
}

func (q *Queue) ScrollTo(region highlight.Region) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.directives = append(q.directives, Directive{Type: DirectiveScrollTo, Region: &region})
}

func (q *Queue) EnsureTextLayer(page int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.directives = append(q.directives, Directive{Type: DirectiveEnsureTextLayer, Page: page})
}

// Drain returns the queued directives and empties the queue.
func (q *Queue) Drain() []Directive {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.directives
	q.directives = nil
	return out
}

// Len reports the number of queued directives.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.directives)
}

// RunStore is a PageSource fed by client-pushed text runs.
type RunStore struct {
	mu    sync.Mutex
	pages map[int]pushedPage
}

type pushedPage struct {
	viewport pdftext.Viewport
	runs     []pdftext.Run
}

func NewRunStore() *RunStore {
	return &RunStore{pages: make(map[int]pushedPage)}
}

// Put stores one page's runs, replacing any earlier push for that page.
func (s *RunStore) Put(pageNum int, vp pdftext.Viewport, runs []pdftext.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[pageNum] = pushedPage{viewport: vp, runs: runs}
}

func (s *RunStore) Page(pageNum int) (pdftext.Viewport, []pdftext.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pg, ok := s.pages[pageNum]
	if !ok {
		return pdftext.Viewport{}, nil, fmt.Errorf("page %d not pushed", pageNum)
	}
	return pg.viewport, pg.runs, nil
}

// Pages lists the page numbers pushed so far, in ascending order.
func (s *RunStore) Pages() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.pages))
	for p := range s.pages {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
