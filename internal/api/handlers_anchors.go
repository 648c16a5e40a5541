package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nev3rmi/citeanchor/internal/citation"
	"github.com/nev3rmi/citeanchor/internal/pdftext"
	"github.com/nev3rmi/citeanchor/internal/pipeline"
)

type createAnchorRequest struct {
	LinkText  string        `json:"link_text,omitempty"`
	Markdown  string        `json:"markdown,omitempty"`
	Container pipeline.Size `json:"container,omitempty"`
}

// handleCreateAnchor creates a session. The body is optional: a viewer can
// seed the initial layout and citation here instead of posting them as
// separate events. When markdown is given, the first citation link in it
// becomes the active citation.
func (s *Server) handleCreateAnchor(w http.ResponseWriter, r *http.Request) {
	var req createAnchorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "invalid session body: "+err.Error(), http.StatusBadRequest)
		return
	}

	linkText := req.LinkText
	if linkText == "" && req.Markdown != "" {
		refs := citation.ExtractRefs(req.Markdown)
		if len(refs) == 0 {
			jsonError(w, "markdown contains no citation links", http.StatusBadRequest)
			return
		}
		linkText = refs[0].Raw
	}

	sess := s.engine.CreateSession()
	if req.Container.Width > 0 && req.Container.Height > 0 {
		sess.ReportLayout(req.Container.Width, req.Container.Height)
	}
	if linkText != "" {
		sess.SetCitation(linkText)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"session_id": sess.ID,
		"poll_url":   fmt.Sprintf("/api/anchors/%s", sess.ID),
	})
}

func (s *Server) handleListAnchors(w http.ResponseWriter, r *http.Request) {
	sessions := s.engine.Sessions()
	snaps := make([]any, 0, len(sessions))
	for _, sess := range sessions {
		snaps = append(snaps, sess.Snapshot())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"sessions": snaps})
}

// handleGetAnchor is the viewer's poll endpoint: the session snapshot plus
// any directives queued since the last poll. Draining is destructive, so
// only the owning viewer should poll here.
func (s *Server) handleGetAnchor(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sess := s.engine.Session(sessionID)
	if sess == nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"session":    sess.Snapshot(),
		"directives": sess.DrainDirectives(),
	})
}

func (s *Server) handleDeleteAnchor(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !s.engine.DropSession(sessionID) {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"deleted": sessionID})
}

type anchorEvent struct {
	Type     string  `json:"type"`
	LinkText string  `json:"link_text,omitempty"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
}

func (s *Server) handleAnchorEvent(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sess := s.engine.Session(sessionID)
	if sess == nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}

	var ev anchorEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		jsonError(w, "invalid event body: "+err.Error(), http.StatusBadRequest)
		return
	}

	switch ev.Type {
	case "citation":
		if ev.LinkText == "" {
			jsonError(w, "link_text is required for citation events", http.StatusBadRequest)
			return
		}
		sess.SetCitation(ev.LinkText)
	case "layout":
		sess.ReportLayout(ev.Width, ev.Height)
	case "resize":
		sess.ReportResize(ev.Width, ev.Height)
	case "viewer_ready":
		sess.ViewerReady()
	default:
		jsonError(w, fmt.Sprintf("unknown event type: %q", ev.Type), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"status": "accepted"})
}

type pushPageRequest struct {
	Page     int              `json:"page"`
	Viewport pdftext.Viewport `json:"viewport"`
	Items    []pdftext.Run    `json:"items"`
}

func (s *Server) handlePushPage(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxPushBytes)

	sessionID := chi.URLParam(r, "sessionID")
	sess := s.engine.Session(sessionID)
	if sess == nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}

	var req pushPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid page body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Page < 1 {
		jsonError(w, "page must be a positive 1-indexed page number", http.StatusBadRequest)
		return
	}

	if err := sess.PushPage(req.Page, req.Viewport, req.Items); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "stored",
		"page":   req.Page,
		"items":  len(req.Items),
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
