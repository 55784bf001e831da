package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/campusconnect/campusconnect/internal/handlers"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/storage"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	goleak.VerifyTestMain(m,
		// idle keep-alive connections of the default transport
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func newAPI(t *testing.T) (*Client, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage(storage.DemoItems(time.Now().UTC())...)
	srv := httptest.NewServer(handlers.NewRouter(handlers.NewHandler(store, nil, nil)))
	t.Cleanup(srv.Close)
	return New(srv.URL + "/api"), store
}

func TestClient_RoundTrip(t *testing.T) {
	c, _ := newAPI(t)
	ctx := context.Background()

	items, err := c.List(ctx, models.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, items, 2)

	created, err := c.Create(ctx, models.CreateFoundItemRequest{Title: "Black Wallet", OwnerEmail: "a@x.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.IsLocal())

	mine, err := c.List(ctx, models.ItemFilter{Owner: "a@x.com"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, created.ID, mine[0].ID)

	claimed, err := c.UpdateStatus(ctx, created.ID, models.StatusClaimed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClaimed, claimed.Status)

	active, err := c.UpdateStatus(ctx, created.ID, models.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, active.Status)

	require.NoError(t, c.Delete(ctx, created.ID, "a@x.com"))
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	c, _ := newAPI(t)
	ctx := context.Background()

	_, err := c.Create(ctx, models.CreateFoundItemRequest{})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.True(t, IsStatus(err, http.StatusBadRequest))

	err = c.Delete(ctx, "f1", "someoneelse@example.com")
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.NotErrorIs(t, err, models.ErrNotFound)

	err = c.Delete(ctx, "missing", "demo@gmail.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NotErrorIs(t, err, models.ErrForbidden)

	_, err = c.UpdateStatus(ctx, "missing", models.StatusClaimed)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, models.ErrValidation},
		{http.StatusForbidden, models.ErrForbidden},
		{http.StatusNotFound, models.ErrNotFound},
		{http.StatusInternalServerError, models.ErrWrite},
		{http.StatusConflict, models.ErrWrite},
		{http.StatusServiceUnavailable, models.ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":"nope"}`)
			}))
			defer srv.Close()

			err := New(srv.URL).Delete(context.Background(), "x", "")
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).List(context.Background(), models.ItemFilter{})
	assert.ErrorIs(t, err, models.ErrNetwork)
	assert.False(t, errors.Is(err, models.ErrWrite))
}

func TestClient_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	_, err := New(srv.URL, WithTimeout(20*time.Millisecond)).List(context.Background(), models.ItemFilter{})
	assert.ErrorIs(t, err, models.ErrNetwork)
}

func TestClient_CreateWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"title":"x"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Create(context.Background(), models.CreateFoundItemRequest{Title: "x"})
	assert.ErrorIs(t, err, models.ErrWrite)
}

func TestClient_UploadImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("image")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"imageUrl": "http://cdn/" + header.Filename + "?len=" + string(rune('0'+len(data))),
		})
	}))
	defer srv.Close()

	res, err := New(srv.URL).UploadImage(context.Background(), "w.jpg", "image/jpeg", strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/w.jpg?len=3", res.URL)
}

// countingRemote serves a fixed list and counts List calls
type countingRemote struct {
	Remote
	lists atomic.Int32
	items []models.FoundItem
	err   error
}

func (r *countingRemote) List(context.Context, models.ItemFilter) ([]models.FoundItem, error) {
	r.lists.Add(1)
	return r.items, r.err
}

func TestPoller_DeliversAndStops(t *testing.T) {
	remote := &countingRemote{items: []models.FoundItem{{ID: "f1"}}}
	p := NewPoller(remote, 5*time.Millisecond, models.ItemFilter{})

	var mu sync.Mutex
	var deliveries int
	unsubscribe := p.Subscribe(func(items []models.FoundItem) {
		mu.Lock()
		defer mu.Unlock()
		deliveries++
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return deliveries >= 3
	}, time.Second, time.Millisecond)

	unsubscribe()
	mu.Lock()
	after := deliveries
	mu.Unlock()

	// idempotent, and nothing arrives afterwards
	unsubscribe()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, after, deliveries)
	mu.Unlock()
}

func TestPoller_SkipsFailedRefresh(t *testing.T) {
	remote := &countingRemote{err: models.ErrNetwork}
	p := NewPoller(remote, 5*time.Millisecond, models.ItemFilter{})

	called := make(chan struct{}, 1)
	unsubscribe := p.Subscribe(func([]models.FoundItem) { called <- struct{}{} })

	require.Eventually(t, func() bool { return remote.lists.Load() >= 2 }, time.Second, time.Millisecond)
	unsubscribe()
	assert.Empty(t, called)
}

func TestNewPoller_DefaultInterval(t *testing.T) {
	p := NewPoller(&countingRemote{}, 0, models.ItemFilter{})
	assert.Equal(t, DefaultPollInterval, p.interval)
}

// fakeSource emits events pushed to its channel until ctx ends or fail is closed
type fakeSource struct {
	events chan models.ItemEvent
	fail   chan struct{}
}

func (s *fakeSource) Consume(ctx context.Context, handler func(models.ItemEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.fail:
			return errors.New("channel closed")
		case e := <-s.events:
			handler(e)
		}
	}
}

func TestPushSubscriber_RefreshesOnEvents(t *testing.T) {
	remote := &countingRemote{items: []models.FoundItem{{ID: "f1"}}}
	source := &fakeSource{events: make(chan models.ItemEvent), fail: make(chan struct{})}
	p := NewPushSubscriber(remote, source, models.ItemFilter{}, time.Hour)

	var got atomic.Int32
	unsubscribe := p.Subscribe(func([]models.FoundItem) { got.Add(1) })
	defer unsubscribe()

	require.Eventually(t, func() bool { return got.Load() == 1 }, time.Second, time.Millisecond)

	source.events <- models.ItemEvent{Type: models.EventItemReported, ItemID: "f2"}
	require.Eventually(t, func() bool { return got.Load() == 2 }, time.Second, time.Millisecond)
}

func TestPushSubscriber_FallsBackToPolling(t *testing.T) {
	remote := &countingRemote{items: []models.FoundItem{{ID: "f1"}}}
	source := &fakeSource{events: make(chan models.ItemEvent), fail: make(chan struct{})}
	p := NewPushSubscriber(remote, source, models.ItemFilter{}, 5*time.Millisecond)

	var got atomic.Int32
	unsubscribe := p.Subscribe(func([]models.FoundItem) { got.Add(1) })

	require.Eventually(t, func() bool { return got.Load() >= 1 }, time.Second, time.Millisecond)
	close(source.fail)
	require.Eventually(t, func() bool { return got.Load() >= 4 }, time.Second, time.Millisecond)

	unsubscribe()
	unsubscribe()
}
