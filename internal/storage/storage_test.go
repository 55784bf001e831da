package storage

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusconnect/campusconnect/internal/models"
)

func newTestSQLite(t *testing.T) *SQLStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// stores runs fn against every backend that works without external services
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStorage()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestSQLite(t)) })
}

var base = time.Date(2025, 9, 20, 10, 0, 0, 0, time.UTC)

func TestItems_CRUD(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		for i, item := range DemoItems(base) {
			item.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			require.NoError(t, s.CreateItem(ctx, item))
		}

		items, err := s.ListItems(ctx, models.ItemFilter{})
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "f2", items[0].ID, "newest first")
		assert.Equal(t, "f1", items[1].ID)
		assert.Equal(t, "demo@gmail.com", items[1].OwnerEmail)
		assert.Equal(t, "2025-09-20", items[1].Date)

		got, err := s.GetItem(ctx, "f1")
		require.NoError(t, err)
		assert.Equal(t, "Black Wallet (Levi's)", got.Title)
		assert.Equal(t, models.StatusActive, got.Status)

		updated, err := s.UpdateItemStatus(ctx, "f1", models.StatusClaimed)
		require.NoError(t, err)
		assert.Equal(t, models.StatusClaimed, updated.Status)

		claimed, err := s.ListItems(ctx, models.ItemFilter{Status: models.StatusClaimed})
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, "f1", claimed[0].ID)

		require.NoError(t, s.DeleteItem(ctx, "f1"))
		_, err = s.GetItem(ctx, "f1")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestItems_Errors(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		assert.ErrorIs(t, s.DeleteItem(ctx, "missing"), models.ErrNotFound)
		_, err := s.UpdateItemStatus(ctx, "missing", models.StatusClaimed)
		assert.ErrorIs(t, err, models.ErrNotFound)

		item := models.FoundItem{ID: "dup", Title: "Pen", Date: "2025-09-20", CreatedAt: base}
		require.NoError(t, s.CreateItem(ctx, item))
		assert.ErrorIs(t, s.CreateItem(ctx, item), models.ErrWrite)
	})
}

func TestItems_Filter(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, item := range DemoItems(base) {
			require.NoError(t, s.CreateItem(ctx, item))
		}

		byOwner, err := s.ListItems(ctx, models.ItemFilter{Owner: "someoneelse@example.com"})
		require.NoError(t, err)
		require.Len(t, byOwner, 1)
		assert.Equal(t, "f2", byOwner[0].ID)

		byQuery, err := s.ListItems(ctx, models.ItemFilter{Query: "LIBRARY"})
		require.NoError(t, err)
		require.Len(t, byQuery, 1)
		assert.Equal(t, "f1", byQuery[0].ID)
	})
}

func TestItems_FilterTreatsWildcardsLiterally(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i, title := range []string{"100% cotton scarf", "1000 piece puzzle", "snake_case notes", "snakeXcase sticker"} {
			item := models.FoundItem{ID: title, Title: title, Date: "2025-09-20", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
			require.NoError(t, s.CreateItem(ctx, item))
		}

		percent, err := s.ListItems(ctx, models.ItemFilter{Query: "100%"})
		require.NoError(t, err)
		require.Len(t, percent, 1)
		assert.Equal(t, "100% cotton scarf", percent[0].Title)

		underscore, err := s.ListItems(ctx, models.ItemFilter{Query: "e_c"})
		require.NoError(t, err)
		require.Len(t, underscore, 1)
		assert.Equal(t, "snake_case notes", underscore[0].Title)
	})
}

func TestBoards(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		require.NoError(t, s.CreateNotice(ctx, models.Notice{ID: "n1", Title: "Exam timetable", Department: "CS", CreatedAt: base}))
		require.NoError(t, s.CreateNotice(ctx, models.Notice{ID: "n2", Title: "Sports day", Department: "PE", CreatedAt: base.Add(time.Hour)}))
		notices, err := s.ListNotices(ctx, models.NoticeFilter{Department: "CS"})
		require.NoError(t, err)
		require.Len(t, notices, 1)
		assert.Equal(t, "n1", notices[0].ID)

		require.NoError(t, s.CreateResource(ctx, models.Resource{ID: "r1", Title: "DSA notes", Subject: "CS", CreatedAt: base}))
		resources, err := s.ListResources(ctx, models.ResourceFilter{Query: "dsa"})
		require.NoError(t, err)
		require.Len(t, resources, 1)
		assert.Zero(t, resources[0].Popularity)

		require.NoError(t, s.CreateEvent(ctx, models.Event{ID: "e2", Title: "Hackathon", Date: "2025-11-01", CreatedAt: base}))
		require.NoError(t, s.CreateEvent(ctx, models.Event{ID: "e1", Title: "Fresher's party", Date: "2025-10-01", CreatedAt: base}))
		events, err := s.ListEvents(ctx)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "e1", events[0].ID, "earliest date first")
	})
}

func TestGroups_JoinIsSetSemantics(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		group := models.StudyGroup{ID: "g1", Name: "Algorithms", CreatedByEmail: "a@x.com", Members: []string{"a@x.com"}, CreatedAt: base}
		require.NoError(t, s.CreateGroup(ctx, group))

		joined, err := s.JoinGroup(ctx, "g1", "b@x.com")
		require.NoError(t, err)
		assert.Equal(t, []string{"a@x.com", "b@x.com"}, joined.Members)

		again, err := s.JoinGroup(ctx, "g1", "b@x.com")
		require.NoError(t, err)
		assert.Equal(t, []string{"a@x.com", "b@x.com"}, again.Members)

		groups, err := s.ListGroups(ctx)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, []string{"a@x.com", "b@x.com"}, groups[0].Members)

		_, err = s.JoinGroup(ctx, "nope", "b@x.com")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestRebind(t *testing.T) {
	pg := &SQLStorage{postgres: true}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &SQLStorage{}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("photo.JPG", base)
	assert.Regexp(t, `^uploads/2025-09-20/[0-9a-f-]{36}\.jpg$`, key)
}
