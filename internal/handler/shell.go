// Package handler contains the HTTP handlers of the sharebin server.
//
// A handler parses the request, calls one service method, and writes the
// response. Business rules live in internal/service; handlers only know
// HTTP.
package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/sakif/sharebin/internal/route"
)

// ShellHandler serves the HTML page every browser route lands on. The
// server resolves the path with the same router the client uses, so a
// shared link like /abc123 gets a title naming the snippet.
type ShellHandler struct {
	templates *template.Template
	baseURL   string
	logger    *slog.Logger
}

// NewShellHandler parses base.html and shell.html from templateDir once.
func NewShellHandler(templateDir, baseURL string, logger *slog.Logger) (*ShellHandler, error) {
	tmpl, err := template.ParseFiles(
		filepath.Join(templateDir, "base.html"),
		filepath.Join(templateDir, "shell.html"),
	)
	if err != nil {
		return nil, err
	}
	return &ShellHandler{templates: tmpl, baseURL: baseURL, logger: logger}, nil
}

type shellData struct {
	Title     string
	Page      string
	SnippetID string
	APIPath   string
	ShareURL  string
}

// HandleShell renders the page for any non-API path.
//
// HTTP: GET /, GET /{path}
func (h *ShellHandler) HandleShell(w http.ResponseWriter, r *http.Request) {
	rt := route.Parse(r.URL.Path)
	data := shellData{
		Title: PageTitle(rt),
		Page:  rt.Page.String(),
	}
	if rt.IsSnippet() {
		data.SnippetID = rt.SnippetID
		data.APIPath = h.baseURL + "/api/snippets/" + rt.SnippetID
		data.ShareURL = h.baseURL + "/" + rt.Fragment()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// PageTitle names a route for the browser tab.
func PageTitle(rt route.Route) string {
	switch rt.Page {
	case route.Editor:
		if rt.IsSnippet() {
			return rt.SnippetID + " · sharebin"
		}
		return "Editor · sharebin"
	case route.Login:
		return "Sign in · sharebin"
	case route.Profile:
		return "Profile · sharebin"
	case route.Upload:
		return "Upload · sharebin"
	}
	return "sharebin"
}
