package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/campusconnect/campusconnect/internal/models"
)

// MemoryStorage keeps everything in process memory. Each instance owns its
// data; nothing is shared between instances.
type MemoryStorage struct {
	mu        sync.RWMutex
	items     []models.FoundItem
	notices   []models.Notice
	resources []models.Resource
	groups    []models.StudyGroup
	events    []models.Event
}

// NewMemoryStorage creates an empty store, optionally seeded with items
func NewMemoryStorage(seed ...models.FoundItem) *MemoryStorage {
	s := &MemoryStorage{}
	for _, item := range seed {
		s.items = append(s.items, item)
	}
	return s
}

// DemoItems returns the two sample reports the mobile app ships with
func DemoItems(now time.Time) []models.FoundItem {
	return []models.FoundItem{
		{
			ID:          "f1",
			Title:       "Black Wallet (Levi's)",
			Description: "Black leather wallet with student ID and some cash inside.",
			Location:    "Library - 2nd Floor",
			Contact:     "080-xxx-xxxx",
			Date:        "2025-09-20",
			OwnerEmail:  "demo@gmail.com",
			Status:      models.StatusActive,
			CreatedAt:   now.Add(-time.Minute),
		},
		{
			ID:          "f2",
			Title:       "Silver Keychain with 3 keys",
			Description: "Small silver keychain found near cafeteria.",
			Location:    "Cafeteria",
			Contact:     "example@student.edu",
			Date:        "2025-09-21",
			OwnerEmail:  "someoneelse@example.com",
			Status:      models.StatusActive,
			CreatedAt:   now,
		},
	}
}

func (s *MemoryStorage) ListItems(_ context.Context, filter models.ItemFilter) ([]models.FoundItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.FoundItem, 0, len(s.items))
	for _, item := range s.items {
		if filter.Matches(item) {
			items = append(items, item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (s *MemoryStorage) GetItem(_ context.Context, id string) (models.FoundItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.items[i], nil
	}
	return models.FoundItem{}, fmt.Errorf("item %s: %w", id, models.ErrNotFound)
}

func (s *MemoryStorage) CreateItem(_ context.Context, item models.FoundItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(item.ID) >= 0 {
		return fmt.Errorf("%w: item %s already exists", models.ErrWrite, item.ID)
	}
	s.items = append(s.items, item)
	return nil
}

func (s *MemoryStorage) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

func (s *MemoryStorage) UpdateItemStatus(_ context.Context, id string, status models.ItemStatus) (models.FoundItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.FoundItem{}, fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	s.items[i].Status = status
	return s.items[i], nil
}

func (s *MemoryStorage) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *MemoryStorage) ListNotices(_ context.Context, filter models.NoticeFilter) ([]models.Notice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Notice, 0, len(s.notices))
	for _, n := range s.notices {
		if filter.Matches(n) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStorage) CreateNotice(_ context.Context, notice models.Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, notice)
	return nil
}

func (s *MemoryStorage) ListResources(_ context.Context, filter models.ResourceFilter) ([]models.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Resource, 0, len(s.resources))
	for _, r := range s.resources {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStorage) CreateResource(_ context.Context, resource models.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = append(s.resources, resource)
	return nil
}

func (s *MemoryStorage) ListGroups(_ context.Context) ([]models.StudyGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.StudyGroup, 0, len(s.groups))
	for _, g := range s.groups {
		g.Members = append([]string(nil), g.Members...)
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStorage) CreateGroup(_ context.Context, group models.StudyGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	group.Members = append([]string(nil), group.Members...)
	s.groups = append(s.groups, group)
	return nil
}

func (s *MemoryStorage) JoinGroup(_ context.Context, id, email string) (models.StudyGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.groups {
		if s.groups[i].ID == id {
			s.groups[i].AddMember(email)
			g := s.groups[i]
			g.Members = append([]string(nil), g.Members...)
			return g, nil
		}
	}
	return models.StudyGroup{}, fmt.Errorf("group %s: %w", id, models.ErrNotFound)
}

func (s *MemoryStorage) ListEvents(_ context.Context) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]models.Event(nil), s.events...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *MemoryStorage) CreateEvent(_ context.Context, event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStorage) Ping(context.Context) error { return nil }

func (s *MemoryStorage) Close() error { return nil }
