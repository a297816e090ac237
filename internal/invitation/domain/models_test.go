package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	terminal := []Status{StatusAccepted, StatusDeclined, StatusExpired}

	for _, next := range terminal {
		assert.True(t, StatusPending.CanTransition(next), "pending -> %s", next)
	}
	assert.False(t, StatusPending.Terminal())

	for _, from := range terminal {
		assert.True(t, from.Terminal())
		for _, next := range []Status{StatusPending, StatusAccepted, StatusDeclined, StatusExpired} {
			assert.False(t, from.CanTransition(next), "%s -> %s", from, next)
		}
	}
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	inv := Invitation{Status: StatusPending, ExpiresAt: now.Add(time.Hour)}

	assert.False(t, inv.IsExpired(now))
	assert.Equal(t, StatusPending, inv.EffectiveStatus(now))

	late := now.Add(2 * time.Hour)
	assert.True(t, inv.IsExpired(late))
	assert.Equal(t, StatusExpired, inv.EffectiveStatus(late))

	// Expiry does not rewrite already-terminal states.
	inv.Status = StatusDeclined
	assert.Equal(t, StatusDeclined, inv.EffectiveStatus(late))
}
