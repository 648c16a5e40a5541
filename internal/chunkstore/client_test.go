package chunkstore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(endpoint string) *Client {
	c := NewClient(endpoint, "test-key", time.Second, time.Second)
	c.backoff = func(int) time.Duration { return 0 }
	return c
}

func TestFetchChunk_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("chunkID"); got != "c42" {
			t.Errorf("chunkID query: got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header: got %q", got)
		}
		w.Write([]byte(`{"chunk_context": "<em>NFC</em> equipped", "page_numbers": [2, 3], "pdf_url": "http://x/doc.pdf"}`))
	}))
	defer srv.Close()

	chunk, err := newTestClient(srv.URL).FetchChunk(context.Background(), "c42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunk.Text != "NFC equipped" {
		t.Errorf("expected markup stripped, got %q", chunk.Text)
	}
	if len(chunk.Pages) != 2 || chunk.Pages[0] != 2 || chunk.Pages[1] != 3 {
		t.Errorf("pages: got %v", chunk.Pages)
	}
	if chunk.PDFURL != "http://x/doc.pdf" {
		t.Errorf("pdf url: got %q", chunk.PDFURL)
	}
}

func TestFetchChunk_DoubleEncodedContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chunk_context": "\"inner text here\"", "page_numbers": [1]}`))
	}))
	defer srv.Close()

	chunk, err := newTestClient(srv.URL).FetchChunk(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunk.Text != "inner text here" {
		t.Errorf("expected second decode applied, got %q", chunk.Text)
	}
}

func TestFetchChunk_MissingPagesDefaultsToOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chunk_context": "some text"}`))
	}))
	defer srv.Close()

	chunk, err := newTestClient(srv.URL).FetchChunk(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunk.Pages) != 1 || chunk.Pages[0] != 1 {
		t.Errorf("expected default page 1, got %v", chunk.Pages)
	}
}

func TestFetchChunk_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchChunk(context.Background(), "c1")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.ChunkID != "c1" {
		t.Errorf("chunk id on error: got %q", fe.ChunkID)
	}
}

func TestFetchChunk_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv.URL).FetchChunk(context.Background(), "c1")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestStripHTML(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain text stays", "plain text stays"},
		{"<em>NFC</em> equipped", "NFC equipped"},
		{"<p>first block</p><p>second block</p>", "first block\nsecond block"},
		{"keep<br>breaks", "keep\nbreaks"},
		{"<script>var x;</script>visible", "visible"},
		{"AT&amp;T", "AT&T"},
	}
	for _, tc := range cases {
		if got := StripHTML(tc.in); got != tc.want {
			t.Errorf("StripHTML(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDownloadPDF_RetriesTransient(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("%PDF-1.7 data"))
	}))
	defer srv.Close()

	data, err := newTestClient(srv.URL).DownloadPDF(context.Background(), srv.URL+"/doc.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "%PDF-1.7 data" {
		t.Errorf("body: got %q", data)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDownloadPDF_PermanentErrorNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).DownloadPDF(context.Background(), srv.URL+"/doc.pdf")
	if err == nil {
		t.Fatal("expected error")
	}
	if IsTransient(err) {
		t.Error("expected permanent error")
	}
	if attempts != 1 {
		t.Errorf("expected a single attempt, got %d", attempts)
	}
}

func TestDownloadPDF_ExhaustsRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).DownloadPDF(context.Background(), srv.URL+"/doc.pdf")
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != MaxRetries {
		t.Errorf("expected %d attempts, got %d", MaxRetries, attempts)
	}
}
