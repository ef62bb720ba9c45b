package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/sharebin/internal/api"
	"github.com/sakif/sharebin/internal/auth"
	"github.com/sakif/sharebin/internal/model"
	"github.com/sakif/sharebin/internal/service"
)

// SnippetHandler exposes the snippet endpoints of the share contract.
// It only translates HTTP; every rule lives in service.SnippetService.
type SnippetHandler struct {
	snippets *service.SnippetService
	logger   *slog.Logger
}

func NewSnippetHandler(snippets *service.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{snippets: snippets, logger: logger}
}

// HandleGet returns one snippet.
//
// HTTP: GET /api/snippets/{id} → 200 | 404 | 410
func (h *SnippetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.snippets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(s))
}

// HandleCreate saves a new snippet for the signed-in user.
//
// HTTP: POST /api/snippets (Bearer) → 201 {snippetId, url}
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req api.CreateSnippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	s, err := h.snippets.Create(r.Context(), service.CreateInput{
		Content:  req.Content,
		Name:     req.Name,
		Language: req.Language,
		CustomID: req.CustomID,
		Editing:  req.Editing,
		OwnerID:  userID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, api.CreateSnippetResponse{
		SnippetID: s.ID,
		URL:       h.snippets.ShareURL(s.ID),
	})
}

// HandleUpdate overwrites a snippet whose editing flag is on.
//
// HTTP: PUT /api/snippets/{id} → 200 | 403 | 404 | 410
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateSnippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	s, err := h.snippets.Update(r.Context(), chi.URLParam(r, "id"), service.UpdateInput{
		Content:  req.Content,
		Name:     req.Name,
		Language: req.Language,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(s))
}

// HandleSetEditing flips the editing flag.
//
// HTTP: PATCH /api/snippets/{id}/editing (Bearer) → 200 {editing}
func (h *SnippetHandler) HandleSetEditing(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req api.EditingBody
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	editing, err := h.snippets.SetEditing(r.Context(), userID, chi.URLParam(r, "id"), req.Editing)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.EditingBody{Editing: editing})
}

// HandleListMine lists the caller's own snippets, newest first.
//
// HTTP: GET /api/me/snippets?limit=20&offset=0 (Bearer)
func (h *SnippetHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	// Bad numbers fall back to the defaults rather than failing the page.
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	list, err := h.snippets.ListByOwner(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]api.SnippetResponse, 0, len(list))
	for i := range list {
		out = append(out, toResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, api.SnippetListResponse{Snippets: out})
}

func toResponse(s *model.Snippet) api.SnippetResponse {
	return api.SnippetResponse{
		ID:       s.ID,
		Content:  s.Content,
		Name:     s.Name,
		Language: s.Language,
		Editing:  s.Editing,
		OwnerID:  s.OwnerID,
	}
}
