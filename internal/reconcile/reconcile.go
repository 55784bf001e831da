// Package reconcile keeps the client-side cache of found items. Mutations are
// applied optimistically and then reconciled against the remote result or
// the next live snapshot.
//
// Every cache mutation goes through r.mu, and remote I/O never happens while
// it is held. Two operations on the same item cannot overlap: the second one
// fails fast with models.ErrInFlight.
package reconcile

import (
	"sync"
	"time"

	"github.com/campusconnect/campusconnect/internal/client"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SyncState describes how far an entry got towards the server
type SyncState int

const (
	// Synced entries are known to the server
	Synced SyncState = iota
	// Pending entries have a create in flight
	Pending
	// Unsynced entries failed to reach the server and live only locally
	Unsynced
)

func (s SyncState) String() string {
	switch s {
	case Synced:
		return "synced"
	case Pending:
		return "pending"
	case Unsynced:
		return "unsynced"
	}
	return "unknown"
}

// Policy decides what happens to a claim or delete that failed for a
// transient reason (network or unspecified write failure).
type Policy int

const (
	// PolicyRestore puts the item back into the cache and returns the error
	PolicyRestore Policy = iota
	// PolicyQueue keeps the local change and queues the remote call for
	// RetryUnsynced. The queue lives in memory only.
	PolicyQueue
)

// Entry is a cached item together with its sync state
type Entry struct {
	Item  models.FoundItem
	State SyncState
}

// removal tracks an item taken out of the cache by Delete. While it exists,
// snapshots that still contain the id do not bring the item back.
type removal struct {
	item     models.FoundItem
	state    SyncState
	index    int
	actor    string
	gen      uint64
	queued   bool
	resolved time.Time // when the remote accepted the delete
}

// claim overlays the Claimed status on snapshot copies of an item until the
// remote lists it as claimed, or confirmGrace after the remote accepted it.
type claim struct {
	prev      models.ItemStatus
	gen       uint64
	queued    bool
	confirmed time.Time
}

// Reconciler owns the cache. Use New to create one.
type Reconciler struct {
	remote       client.Remote
	identity     session.Provider
	policy       Policy
	logger       zerolog.Logger
	now          func() time.Time
	confirmGrace time.Duration
	retryLimit   int

	mu          sync.Mutex
	entries     []Entry
	inflight    map[string]struct{}
	requests    map[string]string
	removed     map[string]*removal
	claimed     map[string]*claim
	awaiting    map[string]time.Time
	gen         map[string]uint64
	opSeq       uint64
	version     uint64
	closed      bool
	unsubscribe func()

	notifyMu    sync.Mutex
	notified    uint64
	watchers    map[int]func([]models.FoundItem)
	nextWatcher int
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithPolicy selects the failure policy for claims and deletes
func WithPolicy(p Policy) Option {
	return func(r *Reconciler) { r.policy = p }
}

// WithIdentity sets the provider used to tag new reports and check deletes
func WithIdentity(p session.Provider) Option {
	return func(r *Reconciler) { r.identity = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithConfirmGrace sets how long a freshly created item survives snapshots
// that do not contain it yet (default 30s).
func WithConfirmGrace(d time.Duration) Option {
	return func(r *Reconciler) { r.confirmGrace = d }
}

// WithRetryConcurrency bounds parallel remote calls in RetryUnsynced
func WithRetryConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.retryLimit = n
		}
	}
}

// New creates a reconciler with an empty cache
func New(remote client.Remote, opts ...Option) *Reconciler {
	r := &Reconciler{
		remote:       remote,
		identity:     session.Static(""),
		policy:       PolicyRestore,
		logger:       log.Logger,
		now:          time.Now,
		confirmGrace: 30 * time.Second,
		retryLimit:   4,
		inflight:     make(map[string]struct{}),
		requests:     make(map[string]string),
		removed:      make(map[string]*removal),
		claimed:      make(map[string]*claim),
		awaiting:     make(map[string]time.Time),
		gen:          make(map[string]uint64),
		watchers:     make(map[int]func([]models.FoundItem)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Items returns a copy of the cache in display order
func (r *Reconciler) Items() []models.FoundItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.itemsLocked()
}

// Active returns the cached items that are not claimed
func (r *Reconciler) Active() []models.FoundItem {
	items := r.Items()
	active := items[:0]
	for _, item := range items {
		if item.IsActive() {
			active = append(active, item)
		}
	}
	return active
}

// Entries returns the cache with sync states
func (r *Reconciler) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Get looks up a cached item
func (r *Reconciler) Get(id string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexLocked(id); i >= 0 {
		return r.entries[i], true
	}
	return Entry{}, false
}

// QueuedCount reports how many remote calls wait for RetryUnsynced,
// including unsynced reports.
func (r *Reconciler) QueuedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.entries {
		if e.State == Unsynced {
			n++
		}
	}
	for _, rm := range r.removed {
		if rm.queued {
			n++
		}
	}
	for _, c := range r.claimed {
		if c.queued {
			n++
		}
	}
	return n
}

// Watch registers fn to receive a copy of the cache after every change,
// starting with the current contents. fn runs synchronously and must not
// call back into the reconciler.
func (r *Reconciler) Watch(fn func([]models.FoundItem)) (cancel func()) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	id := r.nextWatcher
	r.nextWatcher++
	r.watchers[id] = fn

	fn(r.Items())

	var once sync.Once
	return func() {
		once.Do(func() {
			r.notifyMu.Lock()
			delete(r.watchers, id)
			r.notifyMu.Unlock()
		})
	}
}

// Attach feeds snapshots from sub into the cache until Close
func (r *Reconciler) Attach(sub client.Subscriber) {
	unsubscribe := sub.Subscribe(r.ApplySnapshot)

	r.mu.Lock()
	prev := r.unsubscribe
	r.unsubscribe = unsubscribe
	closed := r.closed
	r.mu.Unlock()

	if prev != nil {
		prev()
	}
	if closed {
		unsubscribe()
	}
}

// Close stops the attached subscription and drops all watchers. Snapshots
// arriving afterwards are ignored. Close is idempotent.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.closed = true
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	r.notifyMu.Lock()
	r.watchers = make(map[int]func([]models.FoundItem))
	r.notifyMu.Unlock()
}

// changedLocked bumps the cache version and returns what to publish
func (r *Reconciler) changedLocked() (uint64, []models.FoundItem) {
	r.version++
	return r.version, r.itemsLocked()
}

// publish notifies watchers unless a newer version was already delivered
func (r *Reconciler) publish(version uint64, items []models.FoundItem) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	if version <= r.notified {
		return
	}
	r.notified = version
	for _, fn := range r.watchers {
		fn(items)
	}
}

func (r *Reconciler) itemsLocked() []models.FoundItem {
	items := make([]models.FoundItem, len(r.entries))
	for i, e := range r.entries {
		items[i] = e.Item
	}
	return items
}

func (r *Reconciler) indexLocked(id string) int {
	for i := range r.entries {
		if r.entries[i].Item.ID == id {
			return i
		}
	}
	return -1
}

func (r *Reconciler) removeLocked(i int) Entry {
	e := r.entries[i]
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
	return e
}

func (r *Reconciler) insertLocked(i int, e Entry) {
	if i < 0 {
		i = 0
	}
	if i > len(r.entries) {
		i = len(r.entries)
	}
	r.entries = append(r.entries, Entry{})
	copy(r.entries[i+1:], r.entries[i:])
	r.entries[i] = e
}

// touchLocked starts a new operation generation for id. Generations come
// from one counter, so an id pruned from gen never sees a value reused.
func (r *Reconciler) touchLocked(id string) uint64 {
	r.opSeq++
	r.gen[id] = r.opSeq
	return r.opSeq
}

// pruneLocked forgets the generation of an id that has left the cache and
// has nothing pending.
func (r *Reconciler) pruneLocked(id string) {
	if r.isInflightLocked(id) {
		return
	}
	if _, ok := r.removed[id]; ok {
		return
	}
	if _, ok := r.claimed[id]; ok {
		return
	}
	if r.indexLocked(id) >= 0 {
		return
	}
	delete(r.gen, id)
}

func (r *Reconciler) isInflightLocked(id string) bool {
	_, ok := r.inflight[id]
	return ok
}
