package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/campusconnect/campusconnect/internal/models"
)

// ApplySnapshot merges a full listing from the remote into the cache.
//
// The result is every local-only item (newest first), then items the server
// confirmed but has not listed yet, then the snapshot in server order.
// Locally deleted ids are left out and local claims are overlaid until the
// remote catches up. Once the remote has accepted a claim or delete, the
// override lasts at most the confirm grace period; after that the snapshot
// wins. Snapshots after Close are ignored.
func (r *Reconciler) ApplySnapshot(snapshot []models.FoundItem) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	now := r.now()
	listed := make(map[string]models.FoundItem, len(snapshot))
	for _, item := range snapshot {
		if _, dup := listed[item.ID]; !dup {
			listed[item.ID] = item
		}
	}

	expired := func(at time.Time) bool {
		return !at.IsZero() && now.Sub(at) > r.confirmGrace
	}
	for id, rm := range r.removed {
		if rm.queued || r.isInflightLocked(id) {
			continue
		}
		if _, ok := listed[id]; !ok || expired(rm.resolved) {
			delete(r.removed, id)
		}
	}
	for id, c := range r.claimed {
		if c.queued || r.isInflightLocked(id) {
			continue
		}
		if item, ok := listed[id]; !ok || item.Status == models.StatusClaimed || expired(c.confirmed) {
			delete(r.claimed, id)
		}
	}
	for id, at := range r.awaiting {
		if _, ok := listed[id]; ok || now.Sub(at) > r.confirmGrace {
			delete(r.awaiting, id)
		}
	}

	merged := make([]Entry, 0, len(r.entries)+len(snapshot))
	for _, e := range r.entries {
		if e.Item.IsLocal() {
			merged = append(merged, e)
		}
	}
	for _, e := range r.entries {
		if _, ok := r.awaiting[e.Item.ID]; ok {
			if _, ok := listed[e.Item.ID]; !ok {
				merged = append(merged, e)
			}
		}
	}

	seen := make(map[string]struct{}, len(snapshot))
	for _, item := range snapshot {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		if _, ok := r.removed[item.ID]; ok {
			continue
		}
		if _, ok := r.claimed[item.ID]; ok {
			item.Status = models.StatusClaimed
		}
		merged = append(merged, Entry{Item: item, State: Synced})
	}

	r.entries = merged
	for id := range r.gen {
		r.pruneLocked(id)
	}
	v, items := r.changedLocked()
	r.mu.Unlock()
	r.publish(v, items)

	r.logger.Debug().Int("listed", len(snapshot)).Int("cached", len(items)).Msg("Applied found items snapshot")
}

// Refresh lists the remote once and applies the result. On failure the cache
// is left as it is.
func (r *Reconciler) Refresh(ctx context.Context, filter models.ItemFilter) error {
	items, err := r.remote.List(ctx, filter)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to refresh found items, keeping cached list")
		return fmt.Errorf("refresh found items: %w", err)
	}
	r.ApplySnapshot(items)
	return nil
}
