package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/services"
	"github.com/campusconnect/campusconnect/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handler contains all HTTP handlers
type Handler struct {
	store  storage.Store
	images storage.ImageStore // nil when uploads are disabled
	events services.EventPublisher
	now    func() time.Time
	newID  func() string
}

// NewHandler creates a new handler instance. images may be nil and events
// defaults to a publisher that drops everything.
func NewHandler(store storage.Store, images storage.ImageStore, events services.EventPublisher) *Handler {
	if events == nil {
		events = services.NopPublisher{}
	}
	return &Handler{
		store:  store,
		images: images,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

// HealthCheckHandler returns health status
func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{
		"database": "ok",
		"rabbitmq": "ok",
		"storage":  "disabled",
	}
	healthy := true

	if err := h.store.Ping(ctx); err != nil {
		healthy = false
		checks["database"] = err.Error()
	}

	if err := h.events.HealthCheck(); err != nil {
		healthy = false
		checks["rabbitmq"] = err.Error()
	}

	if h.images != nil {
		checks["storage"] = "ok"
		if err := h.images.HealthCheck(ctx); err != nil {
			healthy = false
			checks["storage"] = err.Error()
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"ok":     healthy,
		"checks": checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps the error taxonomy onto HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		status = http.StatusForbidden
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return errors.Join(models.ErrValidation, err)
	}
	return nil
}
