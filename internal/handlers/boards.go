package handlers

import (
	"net/http"
	"strings"

	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/gorilla/mux"
)

func (h *Handler) ListNoticesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	notices, err := h.store.ListNotices(r.Context(), models.NoticeFilter{
		Department: q.Get("department"),
		Year:       q.Get("year"),
		Type:       q.Get("type"),
		Query:      q.Get("q"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notices)
}

func (h *Handler) CreateNoticeHandler(w http.ResponseWriter, r *http.Request) {
	var n models.Notice
	if err := decodeJSON(r, &n); err != nil {
		writeError(w, err)
		return
	}
	if err := models.ValidateNotice(n); err != nil {
		writeError(w, err)
		return
	}

	n.ID = h.newID()
	n.Title = strings.TrimSpace(n.Title)
	n.CreatedAt = h.now()
	if err := h.store.CreateNotice(r.Context(), n); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *Handler) ListResourcesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resources, err := h.store.ListResources(r.Context(), models.ResourceFilter{
		Subject: q.Get("subject"),
		Year:    q.Get("year"),
		Query:   q.Get("q"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resources)
}

func (h *Handler) CreateResourceHandler(w http.ResponseWriter, r *http.Request) {
	var res models.Resource
	if err := decodeJSON(r, &res); err != nil {
		writeError(w, err)
		return
	}
	if err := models.ValidateResource(res); err != nil {
		writeError(w, err)
		return
	}

	res.ID = h.newID()
	res.Title = strings.TrimSpace(res.Title)
	res.Popularity = 0
	res.CreatedAt = h.now()
	if err := h.store.CreateResource(r.Context(), res); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) ListGroupsHandler(w http.ResponseWriter, r *http.Request) {
	groups, err := h.store.ListGroups(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// CreateGroupHandler creates a study group with its creator as first member
func (h *Handler) CreateGroupHandler(w http.ResponseWriter, r *http.Request) {
	var g models.StudyGroup
	if err := decodeJSON(r, &g); err != nil {
		writeError(w, err)
		return
	}
	if err := models.ValidateStudyGroup(g); err != nil {
		writeError(w, err)
		return
	}

	g.ID = h.newID()
	g.Name = strings.TrimSpace(g.Name)
	g.Members = []string{}
	if g.CreatedByEmail != "" {
		g.Members = append(g.Members, g.CreatedByEmail)
	}
	g.CreatedAt = h.now()
	if err := h.store.CreateGroup(r.Context(), g); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

type joinGroupRequest struct {
	Email string `json:"email"`
}

func (h *Handler) JoinGroupHandler(w http.ResponseWriter, r *http.Request) {
	var req joinGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email is required"})
		return
	}

	g, err := h.store.JoinGroup(r.Context(), mux.Vars(r)["id"], email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *Handler) ListEventsHandler(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.ListEvents(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) CreateEventHandler(w http.ResponseWriter, r *http.Request) {
	var e models.Event
	if err := decodeJSON(r, &e); err != nil {
		writeError(w, err)
		return
	}
	if err := models.ValidateEvent(e); err != nil {
		writeError(w, err)
		return
	}

	e.ID = h.newID()
	e.Title = strings.TrimSpace(e.Title)
	e.CreatedAt = h.now()
	if err := h.store.CreateEvent(r.Context(), e); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}
