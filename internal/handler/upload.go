package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/sharebin/internal/api"
	"github.com/sakif/sharebin/internal/apperror"
	"github.com/sakif/sharebin/internal/service"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

// UploadHandler accepts file uploads and serves them back.
type UploadHandler struct {
	uploads *service.UploadService
	maxBody int64
	logger  *slog.Logger
}

func NewUploadHandler(uploads *service.UploadService, maxBody int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{uploads: uploads, maxBody: maxBody, logger: logger}
}

// HandleUpload stores every part of the "files" field.
//
// HTTP: POST /api/upload (multipart/form-data) → 200 {files:[...]}
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, apperror.ValidationFailed("files",
				fmt.Sprintf("upload exceeds %d bytes", h.maxBody)))
			return
		}
		writeError(w, apperror.ValidationFailed("files", "expected a multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, fmt.Errorf("opening %s: %w", fh.Filename, err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, fmt.Errorf("reading %s: %w", fh.Filename, err))
			return
		}
		uploads = append(uploads, service.Upload{Name: fh.Filename, Data: data})
	}

	stored, err := h.uploads.Store(r.Context(), uploads)
	if err != nil {
		writeError(w, err)
		return
	}

	out := api.UploadResponse{Files: make([]api.UploadedFile, 0, len(stored))}
	for _, f := range stored {
		out.Files = append(out.Files, api.UploadedFile{
			FileID:        f.ID,
			FileName:      f.Name,
			ShareableLink: h.uploads.Link(f.ID),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleDownload serves a stored file. Range requests work through
// http.ServeContent.
//
// HTTP: GET /files/{id}
func (h *UploadHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	f, err := h.uploads.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	contentType, disposition := servedAs(f.ContentType)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": f.Name}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
	http.ServeContent(w, r, f.Name, f.CreatedAt, bytes.NewReader(f.Data))
}

// inlineTypes can be shown in the browser without running anything.
var inlineTypes = map[string]bool{
	"text/plain": true,
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"audio/mpeg": true,
	"audio/wave": true,
	"video/mp4":  true,
	"video/webm": true,
}

// servedAs picks the headers a stored file goes out with. Files share the
// origin of the HTML pages, so anything a browser could execute (HTML, SVG,
// XML, scripts) is downgraded to plain text and sent as an attachment.
func servedAs(stored string) (contentType, disposition string) {
	mediaType, _, err := mime.ParseMediaType(stored)
	if err != nil {
		return "application/octet-stream", "attachment"
	}
	if inlineTypes[mediaType] {
		if mediaType == "text/plain" {
			return "text/plain; charset=utf-8", "inline"
		}
		return mediaType, "inline"
	}
	if strings.HasPrefix(mediaType, "text/") || strings.Contains(mediaType, "xml") ||
		strings.Contains(mediaType, "javascript") || strings.Contains(mediaType, "html") {
		return "text/plain; charset=utf-8", "attachment"
	}
	return mediaType, "attachment"
}
