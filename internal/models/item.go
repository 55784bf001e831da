package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// ItemStatus is the lifecycle state of a found item
type ItemStatus string

const (
	StatusActive  ItemStatus = "Active"
	StatusClaimed ItemStatus = "Claimed"
)

// DateLayout is the calendar date format used for FoundItem.Date
const DateLayout = "2006-01-02"

// LocalIDPrefix marks ids generated on the client before the server assigned one
const LocalIDPrefix = "local-"

// FoundItem represents a reported found item
type FoundItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Contact     string     `json:"contact,omitempty"`
	ImageURI    string     `json:"imageUri,omitempty"`
	Date        string     `json:"date"`
	OwnerEmail  string     `json:"ownerEmail,omitempty"`
	Status      ItemStatus `json:"status,omitempty"`
	CreatedAt   time.Time  `json:"createdAt,omitzero"`
}

// UnmarshalJSON accepts both field spellings used by the historical backends
// (imageUrl/imageUri and reportedByEmail/ownerEmail).
func (i *FoundItem) UnmarshalJSON(data []byte) error {
	type plain FoundItem
	var wire struct {
		plain
		ImageURL        string `json:"imageUrl"`
		ReportedByEmail string `json:"reportedByEmail"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*i = FoundItem(wire.plain)
	if i.ImageURI == "" {
		i.ImageURI = wire.ImageURL
	}
	if i.OwnerEmail == "" {
		i.OwnerEmail = wire.ReportedByEmail
	}
	return nil
}

// IsLocal reports whether the item has not been confirmed by the server yet
func (i FoundItem) IsLocal() bool {
	return IsLocalID(i.ID)
}

// IsActive reports whether the item belongs in the active view
func (i FoundItem) IsActive() bool {
	return i.Status == "" || i.Status == StatusActive
}

// CanBeDeletedBy applies the ownership rule: an item without an owner is
// deletable by anyone, otherwise only by the owner.
func (i FoundItem) CanBeDeletedBy(identity string) bool {
	return i.OwnerEmail == "" || i.OwnerEmail == identity
}

// CreateFoundItemRequest is the payload for reporting a found item
type CreateFoundItemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Contact     string `json:"contact"`
	ImageURI    string `json:"imageUri"`
	Date        string `json:"date"`
	OwnerEmail  string `json:"ownerEmail"`
}

// UnmarshalJSON accepts the imageUrl and reportedByEmail aliases
func (r *CreateFoundItemRequest) UnmarshalJSON(data []byte) error {
	type plain CreateFoundItemRequest
	var wire struct {
		plain
		ImageURL        string `json:"imageUrl"`
		ReportedByEmail string `json:"reportedByEmail"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*r = CreateFoundItemRequest(wire.plain)
	if r.ImageURI == "" {
		r.ImageURI = wire.ImageURL
	}
	if r.OwnerEmail == "" {
		r.OwnerEmail = wire.ReportedByEmail
	}
	return nil
}

// Normalize trims the text fields in place
func (r *CreateFoundItemRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Location = strings.TrimSpace(r.Location)
	r.Contact = strings.TrimSpace(r.Contact)
	r.ImageURI = strings.TrimSpace(r.ImageURI)
	r.Date = strings.TrimSpace(r.Date)
	r.OwnerEmail = strings.TrimSpace(r.OwnerEmail)
}

// Validate checks the request without touching any backend
func (r CreateFoundItemRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if r.Date != "" {
		if _, err := time.Parse(DateLayout, r.Date); err != nil {
			return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
		}
	}
	return nil
}

// ToItem builds an active item from the request, defaulting the date to now
func (r CreateFoundItemRequest) ToItem(id string, now time.Time) FoundItem {
	date := r.Date
	if date == "" {
		date = now.UTC().Format(DateLayout)
	}
	return FoundItem{
		ID:          id,
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Contact:     r.Contact,
		ImageURI:    r.ImageURI,
		Date:        date,
		OwnerEmail:  r.OwnerEmail,
		Status:      StatusActive,
		CreatedAt:   now,
	}
}

// UpdateStatusRequest is the payload for changing an item's status
type UpdateStatusRequest struct {
	Status ItemStatus `json:"status"`
}

// ParseItemStatus maps user input onto a known status
func ParseItemStatus(s string) (ItemStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return StatusActive, nil
	case "claimed":
		return StatusClaimed, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
}

// ItemFilter narrows a listing; empty fields match everything
type ItemFilter struct {
	Status ItemStatus
	Owner  string
	Query  string
}

// Matches applies the filter to a single item
func (f ItemFilter) Matches(item FoundItem) bool {
	if f.Status != "" && item.Status != f.Status {
		return false
	}
	if f.Owner != "" && item.OwnerEmail != f.Owner {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(item.Title), q) &&
			!strings.Contains(strings.ToLower(item.Description), q) &&
			!strings.Contains(strings.ToLower(item.Location), q) {
			return false
		}
	}
	return true
}

// ItemEvent is published whenever the found-items collection changes
type ItemEvent struct {
	Type      string     `json:"type"`
	ItemID    string     `json:"item_id"`
	Title     string     `json:"title,omitempty"`
	Status    ItemStatus `json:"status,omitempty"`
	Actor     string     `json:"actor,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Routing keys for ItemEvent
const (
	EventItemReported = "item.reported"
	EventItemClaimed  = "item.claimed"
	EventItemUpdated  = "item.updated"
	EventItemDeleted  = "item.deleted"
)

var localSeq atomic.Uint64

// NewLocalID returns a client-side id that is unique within the process and
// never collides with server-assigned UUIDs.
func NewLocalID(now time.Time) string {
	return fmt.Sprintf("%s%d-%d", LocalIDPrefix, now.UnixMilli(), localSeq.Add(1))
}

// IsLocalID reports whether id was produced by NewLocalID
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}
