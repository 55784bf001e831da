package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/rs/zerolog/log"
)

const maxUploadSize = 10 << 20 // 10 MB

// UploadHandler stores an uploaded file and returns {key,url}. The file part
// may be named "file" (resources) or "image" (found items).
func (h *Handler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "uploads are disabled"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		log.Error().Err(err).Msg("Failed to parse form")
		writeError(w, fmt.Errorf("%w: failed to parse form", models.ErrValidation))
		return
	}

	file, header, err := formFile(r, "file", "image")
	if err != nil {
		writeError(w, fmt.Errorf("%w: file is required", models.ErrValidation))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	res, err := h.images.UploadImage(r.Context(), file, header.Filename, contentType, header.Size)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upload file")
		writeError(w, fmt.Errorf("%w: %v", models.ErrWrite, err))
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func formFile(r *http.Request, names ...string) (multipart.File, *multipart.FileHeader, error) {
	var lastErr error
	for _, name := range names {
		file, header, err := r.FormFile(name)
		if err == nil {
			return file, header, nil
		}
		lastErr = err
	}
	return nil, nil, lastErr
}
