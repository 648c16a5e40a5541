package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/nev3rmi/citeanchor/internal/chunkstore"
	"github.com/nev3rmi/citeanchor/internal/citation"
	"github.com/nev3rmi/citeanchor/internal/highlight"
	"github.com/nev3rmi/citeanchor/internal/matcher"
	"github.com/nev3rmi/citeanchor/internal/pdftext"
	"github.com/nev3rmi/citeanchor/internal/viewer"
)

// State names a stage of the highlight pipeline.
type State string

const (
	StateIdle                    State = "idle"
	StateAwaitingLayout          State = "awaiting_layout"
	StateFetchingMetadata        State = "fetching_metadata"
	StateAwaitingRenderStability State = "awaiting_render_stability"
	StateMatching                State = "matching"
	StateAwaitingViewer          State = "awaiting_viewer"
	StateComplete                State = "complete"
)

// resizeThreshold is the container delta in either dimension past which
// completed geometry is invalid.
const resizeThreshold = 10.0

// Size is a measured container extent in CSS pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Timing holds the delays that pace one session's pipeline.
type Timing struct {
	SettleFirst        time.Duration
	SettleResize       time.Duration
	ResizeDebounce     time.Duration
	LayoutPollInterval time.Duration
}

func (t Timing) withDefaults() Timing {
	if t.SettleFirst <= 0 {
		t.SettleFirst = 800 * time.Millisecond
	}
	if t.SettleResize <= 0 {
		t.SettleResize = 300 * time.Millisecond
	}
	if t.ResizeDebounce <= 0 {
		t.ResizeDebounce = 300 * time.Millisecond
	}
	if t.LayoutPollInterval <= 0 {
		t.LayoutPollInterval = 100 * time.Millisecond
	}
	return t
}

// MetadataFetcher resolves a chunk id to its retrieval metadata.
type MetadataFetcher interface {
	FetchChunk(ctx context.Context, chunkID string) (*chunkstore.Chunk, error)
}

type eventKind int

const (
	evCitation eventKind = iota
	evLayout
	evLayoutPoll
	evResize
	evDebouncedResize
	evViewerReady
	evMetadataDone
	evSettleDone
	evMatchDone
)

// event is one run-loop input. Async completions carry the epoch current
// when they were scheduled; a zero epoch marks external events that are
// never stale.
type event struct {
	kind     eventKind
	epoch    int
	linkText string
	width    float64
	height   float64
	chunk    *chunkstore.Chunk
	err      error
	align    AlignResult
}

// SessionConfig carries the collaborators for one session.
type SessionConfig struct {
	ID       string
	Source   viewer.PageSource
	Renderer viewer.Renderer
	Runs     *viewer.RunStore
	Fetcher  MetadataFetcher
	Timing   Timing
	Sem      chan struct{}
	Stats    *Stats
	Log      *slog.Logger
}

// Session owns one viewer's highlight pipeline. A single run-loop
// goroutine consumes events and is the only writer of session state;
// Snapshot reads it under the mutex.
type Session struct {
	ID        string
	CreatedAt time.Time

	source   viewer.PageSource
	renderer viewer.Renderer
	runs     *viewer.RunStore
	fetcher  MetadataFetcher
	timing   Timing
	sem      chan struct{}
	stats    *Stats
	log      *slog.Logger

	events chan event
	done   chan struct{}
	cancel context.CancelFunc

	debounce *time.Timer

	mu          sync.Mutex
	state       State
	epoch       int
	ref         citation.Ref
	chunk       *chunkstore.Chunk
	container   Size
	viewerReady bool
	degraded    bool
	scrolled    bool
	lastError   string
	align       AlignResult
	updatedAt   time.Time
}

func NewSession(cfg SessionConfig) *Session {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	now := time.Now()
	return &Session{
		ID:        cfg.ID,
		CreatedAt: now,
		source:    cfg.Source,
		renderer:  cfg.Renderer,
		runs:      cfg.Runs,
		fetcher:   cfg.Fetcher,
		timing:    cfg.Timing.withDefaults(),
		sem:       cfg.Sem,
		stats:     cfg.Stats,
		log:       log.With("session_id", cfg.ID),
		events:    make(chan event, 64),
		done:      make(chan struct{}),
		state:     StateIdle,
		updatedAt: now,
	}
}

// Start launches the run loop.
func (s *Session) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.run(ctx)
}

// Stop terminates the run loop and waits for it to exit.
func (s *Session) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

// post delivers an event unless the run loop has already exited.
func (s *Session) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// SetCitation starts (or restarts) the pipeline for a citation link.
func (s *Session) SetCitation(linkText string) {
	s.post(event{kind: evCitation, linkText: linkText})
}

// ReportLayout records a container measurement from the viewer.
func (s *Session) ReportLayout(width, height float64) {
	s.post(event{kind: evLayout, width: width, height: height})
}

// ReportResize records a container resize. Bursts are debounced before
// they act on the pipeline.
func (s *Session) ReportResize(width, height float64) {
	s.post(event{kind: evResize, width: width, height: height})
}

// ViewerReady signals the embedding viewer can accept scroll directives.
func (s *Session) ViewerReady() {
	s.post(event{kind: evViewerReady})
}

// PushPage stores one page's text runs for matching.
func (s *Session) PushPage(pageNum int, vp pdftext.Viewport, runs []pdftext.Run) error {
	if s.runs == nil {
		return fmt.Errorf("session does not accept pushed pages")
	}
	s.runs.Put(pageNum, vp, runs)
	s.touch()
	return nil
}

// DrainDirectives consumes queued renderer directives when the session's
// renderer is a polled queue. Polling counts as session activity.
func (s *Session) DrainDirectives() []viewer.Directive {
	q, ok := s.renderer.(*viewer.Queue)
	if !ok {
		return []viewer.Directive{}
	}
	s.touch()
	out := q.Drain()
	if out == nil {
		out = []viewer.Directive{}
	}
	return out
}

// LastActive reports when the session last saw activity, for TTL eviction.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *Session) touch() {
	s.mu.Lock()
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) handle(ctx context.Context, ev event) {
	// Epoch-tagged completions from a superseded citation are dropped.
	if ev.epoch != 0 && s.stale(ev.epoch) {
		s.log.Debug("stale event discarded", "epoch", ev.epoch)
		return
	}

	switch ev.kind {
	case evCitation:
		s.startCitation(ctx, ev.linkText)
	case evLayout:
		s.setContainer(ev.width, ev.height)
		s.maybeLeaveLayout(ctx, false)
	case evLayoutPoll:
		s.maybeLeaveLayout(ctx, true)
	case evResize:
		s.debounceResize(ev.width, ev.height)
	case evDebouncedResize:
		s.applyResize(ev.width, ev.height)
	case evViewerReady:
		s.setViewerReady()
		s.finish()
	case evMetadataDone:
		s.metadataDone(ev.chunk, ev.err)
	case evSettleDone:
		s.startMatching(ctx)
	case evMatchDone:
		s.matchDone(ev.align)
	}
}

func (s *Session) stale(epoch int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return epoch != s.epoch
}

func (s *Session) setContainer(w, h float64) {
	s.mu.Lock()
	s.container = Size{Width: w, Height: h}
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) setViewerReady() {
	s.mu.Lock()
	s.viewerReady = true
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// startCitation resets all downstream state and re-enters the pipeline at
// layout readiness. In-flight work for the previous citation becomes stale
// through the epoch bump.
func (s *Session) startCitation(ctx context.Context, linkText string) {
	s.stopDebounce()

	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.ref = citation.ParseRef(linkText)
	ref := s.ref
	s.chunk = nil
	s.align = AlignResult{}
	s.degraded = false
	s.scrolled = false
	s.lastError = ""
	s.state = StateAwaitingLayout
	s.updatedAt = time.Now()
	s.mu.Unlock()

	s.renderer.SetHighlights(nil)
	s.log.Info("citation selected", "epoch", epoch, "chunk_id", ref.ChunkID, "page", ref.Page)
	if s.stats != nil {
		s.stats.CitationStarted()
	}

	s.maybeLeaveLayout(ctx, true)
}

// maybeLeaveLayout advances out of AwaitingLayout once the container has a
// nonzero measured size. With reschedule set it keeps a single poll chain
// alive until then.
func (s *Session) maybeLeaveLayout(ctx context.Context, reschedule bool) {
	s.mu.Lock()
	if s.state != StateAwaitingLayout {
		s.mu.Unlock()
		return
	}
	epoch := s.epoch
	ready := s.container.Width > 0 && s.container.Height > 0
	hasChunk := s.ref.HasChunk()
	chunkID := s.ref.ChunkID
	if ready {
		if hasChunk {
			s.state = StateFetchingMetadata
		} else {
			s.state = StateAwaitingRenderStability
		}
		s.updatedAt = time.Now()
	}
	s.mu.Unlock()

	if !ready {
		if reschedule {
			time.AfterFunc(s.timing.LayoutPollInterval, func() {
				s.post(event{kind: evLayoutPoll, epoch: epoch})
			})
		}
		return
	}

	if hasChunk {
		s.log.Debug("layout ready, fetching metadata", "chunk_id", chunkID)
		go s.fetchMetadata(ctx, epoch, chunkID)
	} else {
		s.log.Debug("layout ready, no chunk to resolve")
		s.scheduleSettle(epoch, s.timing.SettleFirst)
	}
}

func (s *Session) fetchMetadata(ctx context.Context, epoch int, chunkID string) {
	if s.fetcher == nil {
		s.post(event{kind: evMetadataDone, epoch: epoch, err: fmt.Errorf("no metadata fetcher configured")})
		return
	}
	if s.stats != nil {
		s.stats.MetadataFetch()
	}
	chunk, err := s.fetcher.FetchChunk(ctx, chunkID)
	s.post(event{kind: evMetadataDone, epoch: epoch, chunk: chunk, err: err})
}

// metadataDone stores the fetched chunk, or proceeds degraded on the
// citation-embedded text. The fetch is never retried here: a citation
// re-click is the retry path.
func (s *Session) metadataDone(chunk *chunkstore.Chunk, err error) {
	s.mu.Lock()
	if s.state != StateFetchingMetadata {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.degraded = true
		s.lastError = err.Error()
	} else {
		s.chunk = chunk
	}
	epoch := s.epoch
	s.state = StateAwaitingRenderStability
	s.updatedAt = time.Now()
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("metadata fetch failed, proceeding degraded", "error", err)
		if s.stats != nil {
			s.stats.MetadataFailure()
		}
	} else {
		s.log.Debug("metadata resolved", "pages", chunk.Pages)
	}
	s.scheduleSettle(epoch, s.timing.SettleFirst)
}

// scheduleSettle waits out the renderer's own asynchronous scale
// computation before matching.
func (s *Session) scheduleSettle(epoch int, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.post(event{kind: evSettleDone, epoch: epoch})
	})
}

func (s *Session) startMatching(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateAwaitingRenderStability {
		s.mu.Unlock()
		return
	}
	s.state = StateMatching
	epoch := s.epoch
	sourceText := s.ref.SourceText
	text := sourceText
	if s.chunk != nil && s.chunk.Text != "" {
		text = s.chunk.Text
	}
	pages := s.targetPagesLocked()
	s.updatedAt = time.Now()
	s.mu.Unlock()

	go s.match(ctx, epoch, text, sourceText, pages)
}

// targetPagesLocked resolves which pages to search: chunk metadata first,
// then the citation's page hint, then page 1.
func (s *Session) targetPagesLocked() []int {
	if s.chunk != nil && len(s.chunk.Pages) > 0 {
		return append([]int(nil), s.chunk.Pages...)
	}
	if s.ref.HasPage() {
		return []int{s.ref.Page}
	}
	return []int{1}
}

// match runs the tokenize+match+synthesize stage under the engine-wide
// semaphore. The computation itself touches no session state.
func (s *Session) match(ctx context.Context, epoch int, text, sourceText string, pages []int) {
	if s.sem != nil {
		select {
		case s.sem <- struct{}{}:
			defer func() { <-s.sem }()
		case <-ctx.Done():
			return
		}
	}
	start := time.Now()
	res := Align(s.source, pages, text, sourceText)
	if s.stats != nil {
		s.stats.RecordMatch(time.Since(start).Milliseconds(), res.Results)
	}
	s.post(event{kind: evMatchDone, epoch: epoch, align: res})
}

// matchDone publishes geometry and waits for the viewer. An empty region
// set is a valid outcome, not a failure.
func (s *Session) matchDone(res AlignResult) {
	s.mu.Lock()
	if s.state != StateMatching {
		s.mu.Unlock()
		return
	}
	s.align = res
	s.state = StateAwaitingViewer
	ready := s.viewerReady
	s.updatedAt = time.Now()
	s.mu.Unlock()

	for _, pe := range res.PageErrors {
		s.log.Warn("page contributed no tokens", "error", pe)
	}
	s.renderer.SetHighlights(res.Regions)
	s.log.Info("matching complete", "regions", len(res.Regions), "blocks", len(res.Results))

	if ready {
		s.finish()
	}
}

// finish moves AwaitingViewer to Complete, scrolling to the first region
// exactly once per citation.
func (s *Session) finish() {
	s.mu.Lock()
	if s.state != StateAwaitingViewer {
		s.mu.Unlock()
		return
	}
	s.state = StateComplete
	doScroll := !s.scrolled && len(s.align.Regions) > 0
	var target highlight.Region
	if doScroll {
		s.scrolled = true
		target = s.align.Regions[0]
	}
	s.updatedAt = time.Now()
	s.mu.Unlock()

	if doScroll {
		s.renderer.EnsureTextLayer(target.PageNumber)
		s.renderer.ScrollTo(target)
		if s.stats != nil {
			s.stats.Scroll()
		}
		s.log.Info("scrolled to highlight", "page", target.PageNumber)
	}
}

func (s *Session) debounceResize(w, h float64) {
	s.mu.Lock()
	epoch := s.epoch
	s.updatedAt = time.Now()
	s.mu.Unlock()

	s.stopDebounce()
	s.debounce = time.AfterFunc(s.timing.ResizeDebounce, func() {
		s.post(event{kind: evDebouncedResize, epoch: epoch, width: w, height: h})
	})
}

func (s *Session) stopDebounce() {
	if s.debounce != nil {
		s.debounce.Stop()
	}
}

// applyResize re-enters the pipeline at render stability when completed
// geometry moved by more than the threshold. Metadata and layout readiness
// stay valid, and the citation's one scroll is not repeated.
func (s *Session) applyResize(w, h float64) {
	s.mu.Lock()
	dw := math.Abs(w - s.container.Width)
	dh := math.Abs(h - s.container.Height)
	s.container = Size{Width: w, Height: h}
	reenter := s.state == StateComplete && (dw > resizeThreshold || dh > resizeThreshold)
	epoch := s.epoch
	if reenter {
		s.align = AlignResult{}
		s.state = StateAwaitingRenderStability
	}
	s.updatedAt = time.Now()
	s.mu.Unlock()

	if !reenter {
		return
	}
	s.renderer.SetHighlights(nil)
	s.log.Info("container resized, recomputing", "width", w, "height", h)
	if s.stats != nil {
		s.stats.ResizeReentry()
	}
	s.scheduleSettle(epoch, s.timing.SettleResize)
}

// Snapshot is a read-only, JSON-safe copy of session state.
type Snapshot struct {
	ID          string             `json:"session_id"`
	State       State              `json:"state"`
	Epoch       int                `json:"epoch"`
	Ref         citation.Ref       `json:"ref"`
	HasPassage  bool               `json:"has_passage"`
	PDFURL      string             `json:"pdf_url,omitempty"`
	TargetPages []int              `json:"target_pages"`
	Container   Size               `json:"container"`
	Degraded    bool               `json:"degraded"`
	Error       string             `json:"error,omitempty"`
	Results     []matcher.Result   `json:"results"`
	Regions     []highlight.Region `json:"regions"`
	PageErrors  []string           `json:"page_errors,omitempty"`
	Scrolled    bool               `json:"scrolled"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := s.align.Results
	if results == nil {
		results = []matcher.Result{}
	}
	regions := s.align.Regions
	if regions == nil {
		regions = []highlight.Region{}
	}
	hasPassage := s.ref.SourceText != "" || (s.chunk != nil && s.chunk.Text != "")
	var pdfURL string
	if s.chunk != nil {
		pdfURL = s.chunk.PDFURL
	}
	return Snapshot{
		ID:          s.ID,
		State:       s.state,
		Epoch:       s.epoch,
		Ref:         s.ref,
		HasPassage:  hasPassage,
		PDFURL:      pdfURL,
		TargetPages: s.targetPagesLocked(),
		Container:   s.container,
		Degraded:    s.degraded,
		Error:       s.lastError,
		Results:     results,
		Regions:     regions,
		PageErrors:  s.align.PageErrors,
		Scrolled:    s.scrolled,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.updatedAt,
	}
}
