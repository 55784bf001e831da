package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/campusconnect/campusconnect/internal/models"
	"golang.org/x/sync/errgroup"
)

// Draft is what the user fills in when reporting a found item
type Draft struct {
	Title       string
	Description string
	Location    string
	Contact     string
	ImageURI    string
	// Date defaults to today (YYYY-MM-DD)
	Date string
	// OwnerEmail defaults to the current session user
	OwnerEmail string
	// RequestKey identifies one logical submission. While a report with the
	// same key is in flight, repeats return the pending item and ErrInFlight.
	RequestKey string
}

func (d Draft) request() models.CreateFoundItemRequest {
	req := models.CreateFoundItemRequest{
		Title:       d.Title,
		Description: d.Description,
		Location:    d.Location,
		Contact:     d.Contact,
		ImageURI:    d.ImageURI,
		Date:        d.Date,
		OwnerEmail:  d.OwnerEmail,
	}
	req.Normalize()
	return req
}

// Report inserts the item at the head of the cache under a temporary id and
// creates it remotely. On success the temporary entry is replaced in place by
// the server copy. On failure the item stays cached as Unsynced and the
// returned error matches models.ErrLocalOnly and the cause.
func (r *Reconciler) Report(ctx context.Context, d Draft) (models.FoundItem, error) {
	req := d.request()
	if req.OwnerEmail == "" {
		req.OwnerEmail, _ = r.identity.CurrentUser()
	}
	if err := req.Validate(); err != nil {
		return models.FoundItem{}, err
	}

	r.mu.Lock()
	if localID, ok := r.requests[d.RequestKey]; ok && d.RequestKey != "" {
		var pending models.FoundItem
		if i := r.indexLocked(localID); i >= 0 {
			pending = r.entries[i].Item
		}
		r.mu.Unlock()
		return pending, fmt.Errorf("report %q: %w", d.RequestKey, models.ErrInFlight)
	}

	now := r.now()
	if req.Date == "" {
		req.Date = now.UTC().Format(models.DateLayout)
	}
	item := req.ToItem(models.NewLocalID(now), now)
	r.insertLocked(0, Entry{Item: item, State: Pending})
	r.inflight[item.ID] = struct{}{}
	if d.RequestKey != "" {
		r.requests[d.RequestKey] = item.ID
	}
	v, items := r.changedLocked()
	r.mu.Unlock()
	r.publish(v, items)

	r.logger.Debug().Str("local_id", item.ID).Str("title", item.Title).Msg("Reporting found item")
	return r.create(ctx, item.ID, d.RequestKey, req)
}

// create runs the remote create for a Pending entry and reconciles the result
func (r *Reconciler) create(ctx context.Context, localID, key string, req models.CreateFoundItemRequest) (models.FoundItem, error) {
	created, err := r.remote.Create(ctx, req)

	r.mu.Lock()
	delete(r.inflight, localID)
	if key != "" && r.requests[key] == localID {
		delete(r.requests, key)
	}

	i := r.indexLocked(localID)
	if err != nil {
		var local models.FoundItem
		if i >= 0 {
			r.entries[i].State = Unsynced
			local = r.entries[i].Item
		}
		v, items := r.changedLocked()
		r.mu.Unlock()
		r.publish(v, items)

		r.logger.Warn().Err(err).Str("local_id", localID).Msg("Found item kept locally, create failed")
		return local, fmt.Errorf("%w: %w", models.ErrLocalOnly, err)
	}

	switch j := r.indexLocked(created.ID); {
	case j >= 0:
		// a snapshot got there first
		r.entries[j] = Entry{Item: created, State: Synced}
		if i >= 0 {
			r.removeLocked(i)
		}
	case i >= 0:
		r.entries[i] = Entry{Item: created, State: Synced}
	default:
		r.insertLocked(0, Entry{Item: created, State: Synced})
	}
	r.awaiting[created.ID] = r.now()
	v, items := r.changedLocked()
	r.mu.Unlock()
	r.publish(v, items)

	r.logger.Info().Str("local_id", localID).Str("id", created.ID).Msg("Found item reported")
	return created, nil
}

// MarkDone claims an item. It leaves the active view at once and the remote
// status update follows. Claiming an already claimed item is a no-op.
func (r *Reconciler) MarkDone(ctx context.Context, id string) error {
	r.mu.Lock()
	i := r.indexLocked(id)
	switch {
	case i < 0:
		r.mu.Unlock()
		return fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	case r.isInflightLocked(id):
		r.mu.Unlock()
		return fmt.Errorf("item %s: %w", id, models.ErrInFlight)
	case r.entries[i].Item.IsLocal():
		r.mu.Unlock()
		return fmt.Errorf("%w: item %s is not synced yet, retry or delete it first", models.ErrValidation, id)
	case !r.entries[i].Item.IsActive():
		r.mu.Unlock()
		return nil
	}

	prev := r.entries[i].Item.Status
	r.entries[i].Item.Status = models.StatusClaimed
	gen := r.touchLocked(id)
	r.claimed[id] = &claim{prev: prev, gen: gen}
	r.inflight[id] = struct{}{}
	v, items := r.changedLocked()
	r.mu.Unlock()
	r.publish(v, items)

	return r.claim(ctx, id, gen)
}

// Claim is MarkDone under the name the API uses
func (r *Reconciler) Claim(ctx context.Context, id string) error {
	return r.MarkDone(ctx, id)
}

func (r *Reconciler) claim(ctx context.Context, id string, gen uint64) error {
	updated, err := r.remote.UpdateStatus(ctx, id, models.StatusClaimed)

	r.mu.Lock()
	delete(r.inflight, id)
	c := r.claimed[id]
	if c == nil || c.gen != gen || r.gen[id] != gen {
		// superseded by a later operation on the same item
		r.mu.Unlock()
		return err
	}

	var result error
	switch {
	case err == nil:
		c.queued = false
		c.confirmed = r.now()
		if i := r.indexLocked(id); i >= 0 && updated.ID == id {
			updated.Status = models.StatusClaimed
			r.entries[i].Item = updated
		}
	case errors.Is(err, models.ErrNotFound):
		delete(r.claimed, id)
		if i := r.indexLocked(id); i >= 0 {
			r.removeLocked(i)
		}
		r.pruneLocked(id)
		result = fmt.Errorf("claim %s: %w", id, err)
	case errors.Is(err, models.ErrForbidden), errors.Is(err, models.ErrValidation), r.policy == PolicyRestore:
		delete(r.claimed, id)
		if i := r.indexLocked(id); i >= 0 {
			r.entries[i].Item.Status = c.prev
		}
		result = fmt.Errorf("claim %s: %w", id, err)
	default:
		c.queued = true
		result = fmt.Errorf("claim %s: %w: %w", id, models.ErrQueued, err)
	}
	v, items := r.changedLocked()
	r.mu.Unlock()
	r.publish(v, items)

	if result != nil {
		r.logger.Warn().Err(err).Str("id", id).Msg("Failed to claim found item")
	}
	return result
}

// Delete removes an item on behalf of actor, or the session user when actor
// is empty. With a known actor the ownership rule is checked before anything
// changes. Local-only items are dropped without contacting the remote.
func (r *Reconciler) Delete(ctx context.Context, id, actor string) error {
	if actor == "" {
		actor, _ = r.identity.CurrentUser()
	}

	r.mu.Lock()
	i := r.indexLocked(id)
	switch {
	case i < 0:
		r.mu.Unlock()
		return fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	case r.isInflightLocked(id):
		r.mu.Unlock()
		return fmt.Errorf("item %s: %w", id, models.ErrInFlight)
	case actor != "" && !r.entries[i].Item.CanBeDeletedBy(actor):
		r.mu.Unlock()
		return fmt.Errorf("%w: %s may not delete item %s", models.ErrForbidden, actor, id)
	}

	e := r.removeLocked(i)
	gen := r.touchLocked(id)
	delete(r.claimed, id)
	if e.Item.IsLocal() {
		r.pruneLocked(id)
		v, items := r.changedLocked()
		r.mu.Unlock()
		r.publish(v, items)
		return nil
	}

	r.removed[id] = &removal{item: e.Item, state: e.State, index: i, actor: actor, gen: gen}
	r.inflight[id] = struct{}{}
	v, items := r.changedLocked()
	r.mu.Unlock()
	r.publish(v, items)

	return r.remove(ctx, id, actor, gen)
}

func (r *Reconciler) remove(ctx context.Context, id, actor string, gen uint64) error {
	err := r.remote.Delete(ctx, id, actor)

	r.mu.Lock()
	delete(r.inflight, id)
	rm := r.removed[id]
	if rm == nil || rm.gen != gen {
		r.mu.Unlock()
		return err
	}

	var result error
	restored := false
	switch {
	case err == nil:
		rm.queued = false
		rm.resolved = r.now()
	case errors.Is(err, models.ErrNotFound):
		rm.queued = false
		rm.resolved = r.now()
		result = fmt.Errorf("delete %s: %w", id, err)
	case errors.Is(err, models.ErrForbidden), errors.Is(err, models.ErrValidation), r.policy == PolicyRestore:
		delete(r.removed, id)
		if r.indexLocked(id) < 0 {
			r.insertLocked(rm.index, Entry{Item: rm.item, State: rm.state})
			restored = true
		}
		result = fmt.Errorf("delete %s: %w", id, err)
	default:
		rm.queued = true
		result = fmt.Errorf("delete %s: %w: %w", id, models.ErrQueued, err)
	}
	if restored {
		v, items := r.changedLocked()
		r.mu.Unlock()
		r.publish(v, items)
	} else {
		r.mu.Unlock()
	}

	if result != nil {
		r.logger.Warn().Err(err).Str("id", id).Msg("Failed to delete found item")
	}
	return result
}

// RetryUnsynced re-issues the create of every unsynced report and every
// queued claim or delete. Each success is reconciled like a first attempt.
// The returned error joins all failures.
func (r *Reconciler) RetryUnsynced(ctx context.Context) error {
	type retryCreate struct {
		localID string
		req     models.CreateFoundItemRequest
	}
	type retryOp struct {
		id    string
		actor string
		gen   uint64
	}

	var creates []retryCreate
	var claims, removals []retryOp

	r.mu.Lock()
	for i := range r.entries {
		e := &r.entries[i]
		if e.State != Unsynced || r.isInflightLocked(e.Item.ID) {
			continue
		}
		e.State = Pending
		r.inflight[e.Item.ID] = struct{}{}
		creates = append(creates, retryCreate{localID: e.Item.ID, req: requestFor(e.Item)})
	}
	for id, c := range r.claimed {
		if c.queued && !r.isInflightLocked(id) {
			r.inflight[id] = struct{}{}
			claims = append(claims, retryOp{id: id, gen: c.gen})
		}
	}
	for id, rm := range r.removed {
		if rm.queued && !r.isInflightLocked(id) {
			r.inflight[id] = struct{}{}
			removals = append(removals, retryOp{id: id, actor: rm.actor, gen: rm.gen})
		}
	}
	var v uint64
	var items []models.FoundItem
	if len(creates) > 0 {
		v, items = r.changedLocked()
	}
	r.mu.Unlock()
	if items != nil {
		r.publish(v, items)
	}

	if len(creates)+len(claims)+len(removals) == 0 {
		return nil
	}
	r.logger.Info().
		Int("reports", len(creates)).
		Int("claims", len(claims)).
		Int("deletes", len(removals)).
		Msg("Retrying unsynced operations")

	var mu sync.Mutex
	var errs []error
	collect := func(err error) {
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.retryLimit)
	for _, c := range creates {
		c := c
		g.Go(func() error {
			_, err := r.create(gctx, c.localID, "", c.req)
			collect(err)
			return nil
		})
	}
	for _, c := range claims {
		c := c
		g.Go(func() error {
			collect(r.claim(gctx, c.id, c.gen))
			return nil
		})
	}
	for _, rm := range removals {
		rm := rm
		g.Go(func() error {
			collect(r.remove(gctx, rm.id, rm.actor, rm.gen))
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func requestFor(item models.FoundItem) models.CreateFoundItemRequest {
	return models.CreateFoundItemRequest{
		Title:       item.Title,
		Description: item.Description,
		Location:    item.Location,
		Contact:     item.Contact,
		ImageURI:    item.ImageURI,
		Date:        item.Date,
		OwnerEmail:  item.OwnerEmail,
	}
}
