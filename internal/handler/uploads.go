package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/artifact-chat/internal/service"
)

// UploadHandler stores and serves attachments.
type UploadHandler struct {
	service   *service.AttachmentService
	maxMemory int64
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(svc *service.AttachmentService, maxMemory int64) *UploadHandler {
	return &UploadHandler{
		service:   svc,
		maxMemory: maxMemory,
	}
}

// Upload handles POST /api/uploads
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	parts := r.MultipartForm.File["file"]
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}

	file, err := readFilePart(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	resp, err := h.service.Upload(r.Context(), file)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Get handles GET /api/uploads/{filename}
func (h *UploadHandler) Get(w http.ResponseWriter, r *http.Request) {
	f, info, err := h.service.Open(chi.URLParam(r, "filename"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer f.Close()

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
