package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/artifact-chat/internal/model"
	"github.com/capitalize-ai/artifact-chat/pkg/logger"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeServiceError maps a service error onto a status code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrProvider):
		log.Warn("completion provider failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, model.ErrConfiguration):
		log.Error("service misconfigured", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, model.ErrStorage):
		log.Error("storage failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to persist data")
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// readFilePart loads one multipart file into memory.
func readFilePart(fh *multipart.FileHeader) (model.FileUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return model.FileUpload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return model.FileUpload{}, err
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return model.FileUpload{
		Filename:    fh.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}
