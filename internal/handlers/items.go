package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// ListItemsHandler returns found items, newest first
func (h *Handler) ListItemsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := models.ItemFilter{
		Owner: q.Get("owner"),
		Query: q.Get("q"),
	}
	if s := q.Get("status"); s != "" {
		status, err := models.ParseItemStatus(s)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.Status = status
	}

	items, err := h.store.ListItems(r.Context(), filter)
	if err != nil {
		writeError(w, fmt.Errorf("failed to list items: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// GetItemHandler returns a single item
func (h *Handler) GetItemHandler(w http.ResponseWriter, r *http.Request) {
	item, err := h.store.GetItem(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// CreateItemHandler handles reporting a new found item
func (h *Handler) CreateItemHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateFoundItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	item := req.ToItem(h.newID(), h.now())
	if err := h.store.CreateItem(r.Context(), item); err != nil {
		writeError(w, err)
		return
	}

	h.publish(r.Context(), models.EventItemReported, item, item.OwnerEmail)

	log.Info().
		Str("item_id", item.ID).
		Str("title", item.Title).
		Str("owner", item.OwnerEmail).
		Msg("Found item reported")

	writeJSON(w, http.StatusCreated, item)
}

// DeleteItemHandler removes an item. The acting identity comes from the
// reporter query parameter and is compared with the owner email; a request
// without one is let through, matching the mobile backend.
func (h *Handler) DeleteItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]
	reporter := r.URL.Query().Get("reporter")

	item, err := h.store.GetItem(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}

	if reporter == "" {
		log.Warn().Str("item_id", id).Msg("Delete without reporter identity")
	} else if !item.CanBeDeletedBy(reporter) {
		log.Warn().
			Str("item_id", id).
			Str("reporter", reporter).
			Msg("Delete rejected: reporter is not the owner")
		writeError(w, fmt.Errorf("item %s: %w", id, models.ErrForbidden))
		return
	}

	if err := h.store.DeleteItem(ctx, id); err != nil {
		writeError(w, err)
		return
	}

	h.publish(ctx, models.EventItemDeleted, item, reporter)

	log.Info().Str("item_id", id).Msg("Found item deleted")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ClaimItemHandler marks an item as claimed
func (h *Handler) ClaimItemHandler(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.StatusClaimed)
}

// UpdateStatusHandler sets an item's status from the request body
func (h *Handler) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	status, err := models.ParseItemStatus(string(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	h.setStatus(w, r, status)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, status models.ItemStatus) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	item, err := h.store.UpdateItemStatus(ctx, id, status)
	if err != nil {
		writeError(w, err)
		return
	}

	eventType := models.EventItemUpdated
	if status == models.StatusClaimed {
		eventType = models.EventItemClaimed
	}
	h.publish(ctx, eventType, item, "")

	log.Info().
		Str("item_id", id).
		Str("status", string(status)).
		Msg("Found item status updated")

	writeJSON(w, http.StatusOK, item)
}

// publish announces a change; a broker failure never fails the request
func (h *Handler) publish(ctx context.Context, eventType string, item models.FoundItem, actor string) {
	event := models.ItemEvent{
		Type:      eventType,
		ItemID:    item.ID,
		Title:     item.Title,
		Status:    item.Status,
		Actor:     actor,
		Timestamp: h.now(),
	}
	if err := h.events.PublishItemEvent(ctx, event); err != nil {
		log.Error().Err(err).Str("item_id", item.ID).Msg("Failed to publish item event")
	}
}
