package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryFirstAndLastConnection(t *testing.T) {
	registry := NewRegistry()

	first := &Client{userID: "alice"}
	second := &Client{userID: "alice"}

	assert.True(t, registry.Add(first))
	assert.False(t, registry.Add(second))
	assert.Equal(t, 2, registry.Connections("alice"))
	assert.Equal(t, 1, registry.Users())

	assert.False(t, registry.Remove(first))
	assert.True(t, registry.Remove(second))
	assert.Equal(t, 0, registry.Connections("alice"))
	assert.Equal(t, 0, registry.Users())
}

func TestRegistryRemoveUnknownClient(t *testing.T) {
	registry := NewRegistry()

	stranger := &Client{userID: "alice"}
	assert.False(t, registry.Remove(stranger))

	registry.Add(&Client{userID: "alice"})
	assert.False(t, registry.Remove(&Client{userID: "alice"}))
	assert.Equal(t, 1, registry.Connections("alice"))
}

func TestRegistryTracksDistinctUsers(t *testing.T) {
	registry := NewRegistry()

	registry.Add(&Client{userID: "alice"})
	registry.Add(&Client{userID: "bob"})

	assert.Equal(t, 2, registry.Users())
	assert.Equal(t, 1, registry.Connections("alice"))
	assert.Equal(t, 1, registry.Connections("bob"))
}
