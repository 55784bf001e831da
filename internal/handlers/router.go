package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// NewRouter configures all routes and middleware
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")

	api.HandleFunc("/lostfound", h.ListItemsHandler).Methods("GET")
	api.HandleFunc("/lostfound", h.CreateItemHandler).Methods("POST")
	api.HandleFunc("/lostfound/{id}", h.GetItemHandler).Methods("GET")
	api.HandleFunc("/lostfound/{id}", h.DeleteItemHandler).Methods("DELETE")
	api.HandleFunc("/lostfound/{id}/claim", h.ClaimItemHandler).Methods("PATCH")
	api.HandleFunc("/lostfound/{id}/status", h.UpdateStatusHandler).Methods("PATCH")

	api.HandleFunc("/upload", h.UploadHandler).Methods("POST")

	api.HandleFunc("/notices", h.ListNoticesHandler).Methods("GET")
	api.HandleFunc("/notices", h.CreateNoticeHandler).Methods("POST")
	api.HandleFunc("/resources", h.ListResourcesHandler).Methods("GET")
	api.HandleFunc("/resources", h.CreateResourceHandler).Methods("POST")
	api.HandleFunc("/groups", h.ListGroupsHandler).Methods("GET")
	api.HandleFunc("/groups", h.CreateGroupHandler).Methods("POST")
	api.HandleFunc("/groups/{id}/join", h.JoinGroupHandler).Methods("POST")
	api.HandleFunc("/events", h.ListEventsHandler).Methods("GET")
	api.HandleFunc("/events", h.CreateEventHandler).Methods("POST")

	// Health check at root
	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")

	return r
}

// loggingMiddleware logs all HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Dur("duration_ms", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Msg("HTTP request")
	})
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
