package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoundItem_UnmarshalAliases(t *testing.T) {
	var item FoundItem
	err := json.Unmarshal([]byte(`{
		"id": "abc",
		"title": "Black Wallet",
		"imageUrl": "http://img/1.jpg",
		"reportedByEmail": "a@x.com",
		"status": "Active"
	}`), &item)
	require.NoError(t, err)

	assert.Equal(t, "http://img/1.jpg", item.ImageURI)
	assert.Equal(t, "a@x.com", item.OwnerEmail)

	out, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"imageUri":"http://img/1.jpg"`)
	assert.Contains(t, string(out), `"ownerEmail":"a@x.com"`)
	assert.NotContains(t, string(out), "reportedByEmail")
}

func TestFoundItem_CanonicalNameWins(t *testing.T) {
	var item FoundItem
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","ownerEmail":"new@x.com","reportedByEmail":"old@x.com"}`), &item))
	assert.Equal(t, "new@x.com", item.OwnerEmail)
}

func TestFoundItem_OmitsUnsetCreatedAt(t *testing.T) {
	out, err := json.Marshal(FoundItem{ID: "local-1", Title: "Pen"})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "createdAt")

	out, err = json.Marshal(FoundItem{ID: "f1", CreatedAt: time.Date(2025, 9, 20, 10, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"createdAt":"2025-09-20T10:00:00Z"`)
}

func TestFoundItem_CanBeDeletedBy(t *testing.T) {
	owned := FoundItem{ID: "f1", OwnerEmail: "a@x.com"}
	assert.True(t, owned.CanBeDeletedBy("a@x.com"))
	assert.False(t, owned.CanBeDeletedBy("b@x.com"))
	assert.False(t, owned.CanBeDeletedBy(""))

	unowned := FoundItem{ID: "f2"}
	assert.True(t, unowned.CanBeDeletedBy("anyone@x.com"))
}

func TestFoundItem_IsActive(t *testing.T) {
	assert.True(t, FoundItem{}.IsActive())
	assert.True(t, FoundItem{Status: StatusActive}.IsActive())
	assert.False(t, FoundItem{Status: StatusClaimed}.IsActive())
}

func TestCreateFoundItemRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateFoundItemRequest
		wantErr bool
	}{
		{"title only", CreateFoundItemRequest{Title: "Keys"}, false},
		{"missing title", CreateFoundItemRequest{Description: "no title"}, true},
		{"blank title", CreateFoundItemRequest{Title: "  "}, true},
		{"good date", CreateFoundItemRequest{Title: "Keys", Date: "2025-09-20"}, false},
		{"bad date", CreateFoundItemRequest{Title: "Keys", Date: "20/09/2025"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateFoundItemRequest_ToItem(t *testing.T) {
	now := time.Date(2025, 9, 20, 23, 30, 0, 0, time.UTC)
	req := CreateFoundItemRequest{Title: " Keys ", Location: " Gym ", ImageURI: "u"}
	req.Normalize()

	item := req.ToItem("id-1", now)
	assert.Equal(t, "Keys", item.Title)
	assert.Equal(t, "Gym", item.Location)
	assert.Equal(t, "2025-09-20", item.Date)
	assert.Equal(t, StatusActive, item.Status)
	assert.Equal(t, now, item.CreatedAt)
}

func TestParseItemStatus(t *testing.T) {
	s, err := ParseItemStatus("CLAIMED")
	require.NoError(t, err)
	assert.Equal(t, StatusClaimed, s)

	_, err = ParseItemStatus("lost")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestItemFilter_Matches(t *testing.T) {
	item := FoundItem{Title: "Black Wallet", Location: "Library", OwnerEmail: "a@x.com", Status: StatusActive}

	assert.True(t, ItemFilter{}.Matches(item))
	assert.True(t, ItemFilter{Query: "wallet"}.Matches(item))
	assert.True(t, ItemFilter{Query: "LIBRARY"}.Matches(item))
	assert.False(t, ItemFilter{Query: "keys"}.Matches(item))
	assert.False(t, ItemFilter{Status: StatusClaimed}.Matches(item))
	assert.False(t, ItemFilter{Owner: "b@x.com"}.Matches(item))
}

func TestNewLocalID(t *testing.T) {
	now := time.Now()
	a, b := NewLocalID(now), NewLocalID(now)

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, LocalIDPrefix))
	assert.True(t, IsLocalID(b))
	assert.False(t, IsLocalID("550e8400-e29b-41d4-a716-446655440000"))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.Join(errors.New("dial"), ErrNetwork)))
	assert.True(t, IsTransient(ErrWrite))
	assert.False(t, IsTransient(ErrForbidden))
	assert.False(t, IsTransient(ErrNotFound))
}

func TestParseUploadResult(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"key and url", `{"key":"uploads/a.jpg","url":"http://cdn/a.jpg"}`, "http://cdn/a.jpg"},
		{"imageUrl", `{"imageUrl":"http://cdn/b.jpg"}`, "http://cdn/b.jpg"},
		{"assets", `{"assets":[{"uri":"file:///c.jpg"}]}`, "file:///c.jpg"},
		{"uri", `{"uri":"file:///d.jpg"}`, "file:///d.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseUploadResult([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.URL)
		})
	}

	_, err := ParseUploadResult([]byte(`{"key":"only"}`))
	assert.ErrorIs(t, err, ErrWrite)

	_, err = ParseUploadResult([]byte(`not json`))
	assert.Error(t, err)
}

func TestStudyGroup_AddMember(t *testing.T) {
	g := StudyGroup{Name: "Algorithms", Members: []string{"a@x.com"}}
	assert.False(t, g.AddMember("a@x.com"))
	assert.True(t, g.AddMember("b@x.com"))
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, g.Members)
}

func TestBoardFilters(t *testing.T) {
	n := Notice{Title: "Exam schedule", Department: "CS", Year: "2"}
	assert.True(t, NoticeFilter{Department: "CS", Query: "exam"}.Matches(n))
	assert.False(t, NoticeFilter{Year: "3"}.Matches(n))

	r := Resource{Title: "Linear algebra notes", Subject: "Math"}
	assert.True(t, ResourceFilter{Query: "algebra"}.Matches(r))
	assert.False(t, ResourceFilter{Subject: "Physics"}.Matches(r))

	assert.ErrorIs(t, ValidateEvent(Event{Title: "Fair", Date: "tomorrow"}), ErrValidation)
	assert.NoError(t, ValidateEvent(Event{Title: "Fair", Date: "2025-10-01"}))
	assert.ErrorIs(t, ValidateStudyGroup(StudyGroup{}), ErrValidation)
}
