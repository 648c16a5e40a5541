package pdftext

import (
	"bytes"
	"fmt"
	"os"

	pdflib "github.com/ledongthuc/pdf"
)

// ExtractionError reports a failed page text extraction. The failed page
// contributes zero tokens; matching proceeds over pages that succeeded.
type ExtractionError struct {
	Page int
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract page %d: %v", e.Page, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// FileSource extracts positioned text runs from a PDF document.
type FileSource struct {
	f      *os.File
	reader *pdflib.Reader
}

// OpenFile opens a PDF from disk.
func OpenFile(path string) (*FileSource, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &FileSource{f: f, reader: reader}, nil
}

// NewSource reads a PDF held in memory, typically a downloaded document.
func NewSource(data []byte) (*FileSource, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return &FileSource{reader: reader}, nil
}

// PageCount returns the number of pages in the document.
func (s *FileSource) PageCount() int { return s.reader.NumPage() }

// Page returns the viewport and raw text runs for a 1-indexed page.
func (s *FileSource) Page(pageNum int) (vp Viewport, runs []Run, err error) {
	// The underlying library panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			vp, runs = Viewport{}, nil
			err = &ExtractionError{Page: pageNum, Err: fmt.Errorf("%v", r)}
		}
	}()

	if pageNum < 1 || pageNum > s.reader.NumPage() {
		return Viewport{}, nil, &ExtractionError{
			Page: pageNum,
			Err:  fmt.Errorf("page out of range (1..%d)", s.reader.NumPage()),
		}
	}
	page := s.reader.Page(pageNum)
	if page.V.IsNull() {
		return Viewport{}, nil, &ExtractionError{Page: pageNum, Err: fmt.Errorf("null page object")}
	}

	vp = pageViewport(page)
	for _, t := range page.Content().Text {
		if t.S == "" {
			continue
		}
		runs = append(runs, Run{
			Str:       t.S,
			Transform: [6]float64{1, 0, 0, 1, t.X, t.Y},
			Width:     t.W,
			Height:    t.FontSize,
		})
	}
	return vp, runs, nil
}

// pageViewport reads the MediaBox, defaulting to US letter when absent.
func pageViewport(page pdflib.Page) Viewport {
	mb := page.V.Key("MediaBox")
	if mb.Kind() == pdflib.Array && mb.Len() >= 4 {
		return Viewport{
			Width:  mb.Index(2).Float64() - mb.Index(0).Float64(),
			Height: mb.Index(3).Float64() - mb.Index(1).Float64(),
		}
	}
	return Viewport{Width: 612, Height: 792}
}

// Close releases the underlying file when the source was opened from disk.
func (s *FileSource) Close() error {
	if s.f != nil {
		return s.f.Close()
	}
	return nil
}
