// internal/hub/hub_test.go
package hub

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerRegistration(t *testing.T) {
	h := NewHub("t1", logrus.New())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	playerID := uuid.New()
	sub, ok := h.AddPlayer(ctx, cancel, nil, playerID)
	require.True(t, ok)
	assert.True(t, h.IsPlayerConnected(playerID))
	assert.Equal(t, 1, h.SubscriberCount())

	// One live connection per seat.
	_, ok = h.AddPlayer(ctx, cancel, nil, playerID)
	assert.False(t, ok)
	assert.Equal(t, 1, h.SubscriberCount())

	assert.True(t, h.Remove(sub))
	assert.False(t, h.IsPlayerConnected(playerID))
	assert.False(t, h.Remove(sub), "removing twice is a no-op")
	assert.Equal(t, 0, h.SubscriberCount())
}

func TestSpectatorRegistration(t *testing.T) {
	h := NewHub("t1", logrus.New())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := h.AddSpectator(ctx, cancel, nil)
	b := h.AddSpectator(ctx, cancel, nil)
	assert.Equal(t, 2, h.SubscriberCount())

	assert.True(t, h.Remove(a))
	assert.True(t, h.Remove(b))
	assert.Equal(t, 0, h.SubscriberCount())
}

func TestStaleSubscriberDoesNotEvictReplacement(t *testing.T) {
	h := NewHub("t1", logrus.New())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	playerID := uuid.New()
	old, ok := h.AddPlayer(ctx, cancel, nil, playerID)
	require.True(t, ok)
	require.True(t, h.Remove(old))

	fresh, ok := h.AddPlayer(ctx, cancel, nil, playerID)
	require.True(t, ok)

	// A late Remove from the old connection must not drop the new one.
	assert.False(t, h.Remove(old))
	assert.True(t, h.IsPlayerConnected(playerID))
	assert.True(t, h.Remove(fresh))
}
