// Package session supplies the signed-in user's identifier. The identifier is
// an email address used only as an ownership tag; nothing here verifies it.
package session

import (
	"strings"
	"sync"
)

// Provider exposes the current user, if any
type Provider interface {
	CurrentUser() (string, bool)
}

// Static is a fixed identity; the zero value is signed out
type Static string

func (s Static) CurrentUser() (string, bool) {
	id := strings.TrimSpace(string(s))
	return id, id != ""
}

// Session is a mutable identity for long-running clients
type Session struct {
	mu    sync.RWMutex
	email string
}

// New returns a session signed in as email (empty means signed out)
func New(email string) *Session {
	return &Session{email: strings.TrimSpace(email)}
}

func (s *Session) CurrentUser() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email, s.email != ""
}

// SignIn switches the current identity
func (s *Session) SignIn(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = strings.TrimSpace(email)
}

// SignOut clears the current identity
func (s *Session) SignOut() {
	s.SignIn("")
}
