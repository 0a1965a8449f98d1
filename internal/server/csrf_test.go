package server

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCSRF(t *testing.T) {
	c := NewCSRF("csrf-secret")
	alice, bob := uuid.New(), uuid.New()

	token := c.Token(alice)
	assert.Equal(t, token, c.Token(alice), "tokens are stable per user")
	assert.True(t, c.Valid(alice, token))
	assert.False(t, c.Valid(bob, token))
	assert.False(t, c.Valid(alice, ""))
	assert.False(t, NewCSRF("other-secret").Valid(alice, token))
}
