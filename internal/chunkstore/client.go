// Package chunkstore talks to the retrieval backend that serves chunk
// metadata and source PDFs.
package chunkstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	defaultMetadataTimeout = 10 * time.Second
	defaultDownloadTimeout = 60 * time.Second
)

// Chunk is the resolved retrieval metadata for one citation.
type Chunk struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Pages  []int  `json:"pages"`
	PDFURL string `json:"pdf_url,omitempty"`
}

// FetchError marks a metadata fetch that failed recoverably: the pipeline
// proceeds degraded on citation-embedded data instead.
type FetchError struct {
	ChunkID string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch chunk %s: %v", e.ChunkID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client communicates with the retrieval backend HTTP API.
type Client struct {
	endpoint        string
	apiKey          string
	metadataTimeout time.Duration
	downloadTimeout time.Duration
	httpClient      *http.Client
	backoff         func(int) time.Duration
}

func NewClient(endpoint, apiKey string, metadataTimeout, downloadTimeout time.Duration) *Client {
	if metadataTimeout <= 0 {
		metadataTimeout = defaultMetadataTimeout
	}
	if downloadTimeout <= 0 {
		downloadTimeout = defaultDownloadTimeout
	}
	return &Client{
		endpoint:        endpoint,
		apiKey:          apiKey,
		metadataTimeout: metadataTimeout,
		downloadTimeout: downloadTimeout,
		httpClient:      &http.Client{},
		backoff:         Backoff,
	}
}

// FetchChunk resolves a chunk id to its text and target pages. It is never
// retried: a citation re-click is the only retry trigger.
func (c *Client) FetchChunk(ctx context.Context, chunkID string) (*Chunk, error) {
	ctx, cancel := context.WithTimeout(ctx, c.metadataTimeout)
	defer cancel()

	u := c.endpoint + "?chunkID=" + url.QueryEscape(chunkID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{ChunkID: chunkID, Err: fmt.Errorf("create request: %w", err)}
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &FetchError{ChunkID: chunkID, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &FetchError{ChunkID: chunkID, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))}
	}

	var meta struct {
		ChunkContext json.RawMessage `json:"chunk_context"`
		PageNumbers  []int           `json:"page_numbers"`
		PDFURL       string          `json:"pdf_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, &FetchError{ChunkID: chunkID, Err: fmt.Errorf("decode metadata: %w", err)}
	}

	text, err := decodeContext(meta.ChunkContext)
	if err != nil {
		return nil, &FetchError{ChunkID: chunkID, Err: err}
	}

	pages := meta.PageNumbers
	if len(pages) == 0 {
		pages = []int{1}
	}

	return &Chunk{ID: chunkID, Text: text, Pages: pages, PDFURL: meta.PDFURL}, nil
}

// decodeContext unwraps chunk_context, which arrives either as a plain
// JSON string or double-encoded as a string containing another JSON
// string. Markup in the result is stripped to plain text.
func decodeContext(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("decode chunk_context: %w", err)
	}
	var inner string
	if json.Unmarshal([]byte(s), &inner) == nil {
		s = inner
	}
	return StripHTML(s), nil
}

// StripHTML reduces markup-bearing chunk text to plain text. Retrieval
// responses carry fragment markup such as <em> query highlights; block
// elements become line breaks so the passage splits into blocks.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return s
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style":
				return
			case "br", "p", "div", "li":
				buf.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(buf.String())
}

// DownloadPDF fetches a source document, retrying transient transport
// failures with backoff.
func (c *Client) DownloadPDF(ctx context.Context, pdfURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		data, err := c.downloadOnce(ctx, pdfURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !IsTransient(err) {
			return nil, err
		}
		if attempt < MaxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}
	}
	return nil, fmt.Errorf("download pdf: %w", lastErr)
}

func (c *Client) downloadOnce(ctx context.Context, pdfURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		statusErr := fmt.Errorf("download %s: status %d: %s", pdfURL, resp.StatusCode, string(respBody))
		if resp.StatusCode >= 500 {
			return nil, &TransientError{Err: statusErr}
		}
		return nil, statusErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("read body: %w", err)}
	}
	return data, nil
}

// Close releases any resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
