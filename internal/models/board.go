package models

import (
	"fmt"
	"strings"
	"time"
)

// Notice is a campus notice board entry
type Notice struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content,omitempty"`
	Department string    `json:"department,omitempty"`
	Year       string    `json:"year,omitempty"`
	Type       string    `json:"type,omitempty"`
	PostedBy   string    `json:"postedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NoticeFilter narrows notice listings
type NoticeFilter struct {
	Department string
	Year       string
	Type       string
	Query      string
}

func (f NoticeFilter) Matches(n Notice) bool {
	if f.Department != "" && n.Department != f.Department {
		return false
	}
	if f.Year != "" && n.Year != f.Year {
		return false
	}
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	return containsFold(f.Query, n.Title, n.Content)
}

// Resource is a shared study resource (link or uploaded file)
type Resource struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Subject    string    `json:"subject,omitempty"`
	Year       string    `json:"year,omitempty"`
	URL        string    `json:"url,omitempty"`
	Popularity int       `json:"popularity"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ResourceFilter narrows resource listings
type ResourceFilter struct {
	Subject string
	Year    string
	Query   string
}

func (f ResourceFilter) Matches(r Resource) bool {
	if f.Subject != "" && r.Subject != f.Subject {
		return false
	}
	if f.Year != "" && r.Year != f.Year {
		return false
	}
	return containsFold(f.Query, r.Title, r.Subject)
}

// StudyGroup is a study group students can join
type StudyGroup struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Subject        string    `json:"subject,omitempty"`
	Description    string    `json:"description,omitempty"`
	MeetingTime    string    `json:"meetingTime,omitempty"`
	CreatedByEmail string    `json:"createdByEmail,omitempty"`
	Members        []string  `json:"members"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AddMember adds email to the group once; it reports whether the set changed
func (g *StudyGroup) AddMember(email string) bool {
	for _, m := range g.Members {
		if m == email {
			return false
		}
	}
	g.Members = append(g.Members, email)
	return true
}

// Event is a calendar entry
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Date        string    `json:"date,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ValidateNotice checks the required fields of a new notice
func ValidateNotice(n Notice) error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	return nil
}

func ValidateResource(r Resource) error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	return nil
}

func ValidateStudyGroup(g StudyGroup) error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	return nil
}

func ValidateEvent(e Event) error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if e.Date != "" {
		if _, err := time.Parse(DateLayout, e.Date); err != nil {
			return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
		}
	}
	return nil
}

func containsFold(query string, fields ...string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
