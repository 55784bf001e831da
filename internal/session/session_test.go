package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatic(t *testing.T) {
	id, ok := Static(" a@x.com ").CurrentUser()
	assert.True(t, ok)
	assert.Equal(t, "a@x.com", id)

	_, ok = Static("").CurrentUser()
	assert.False(t, ok)
}

func TestSession_SignInOut(t *testing.T) {
	s := New("")
	_, ok := s.CurrentUser()
	assert.False(t, ok)

	s.SignIn("b@x.com")
	id, ok := s.CurrentUser()
	assert.True(t, ok)
	assert.Equal(t, "b@x.com", id)

	s.SignOut()
	_, ok = s.CurrentUser()
	assert.False(t, ok)
}
