package storage

import (
	"context"

	"github.com/campusconnect/campusconnect/internal/models"
)

// ItemStore persists found items. Listings are newest first.
// Lookups of unknown ids fail with models.ErrNotFound.
type ItemStore interface {
	ListItems(ctx context.Context, filter models.ItemFilter) ([]models.FoundItem, error)
	GetItem(ctx context.Context, id string) (models.FoundItem, error)
	CreateItem(ctx context.Context, item models.FoundItem) error
	DeleteItem(ctx context.Context, id string) error
	UpdateItemStatus(ctx context.Context, id string, status models.ItemStatus) (models.FoundItem, error)
}

// BoardStore persists the secondary campus boards
type BoardStore interface {
	ListNotices(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, error)
	CreateNotice(ctx context.Context, notice models.Notice) error

	ListResources(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, error)
	CreateResource(ctx context.Context, resource models.Resource) error

	ListGroups(ctx context.Context) ([]models.StudyGroup, error)
	CreateGroup(ctx context.Context, group models.StudyGroup) error
	JoinGroup(ctx context.Context, id, email string) (models.StudyGroup, error)

	// ListEvents orders by event date ascending
	ListEvents(ctx context.Context) ([]models.Event, error)
	CreateEvent(ctx context.Context, event models.Event) error
}

// Store is a complete persistence backend
type Store interface {
	ItemStore
	BoardStore
	Ping(ctx context.Context) error
	Close() error
}
