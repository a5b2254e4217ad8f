package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCanTransitionTo(t *testing.T) {
	t.Run("LegalEdges", func(t *testing.T) {
		assert.True(t, StatusPending.CanTransitionTo(StatusProcessing))
		assert.True(t, StatusPending.CanTransitionTo(StatusPaid))
		assert.True(t, StatusPending.CanTransitionTo(StatusFailed))
		assert.True(t, StatusPending.CanTransitionTo(StatusCancelled))
		assert.True(t, StatusProcessing.CanTransitionTo(StatusPaid))
		assert.True(t, StatusProcessing.CanTransitionTo(StatusFailed))
		assert.True(t, StatusPaid.CanTransitionTo(StatusRefunded))
		assert.True(t, StatusPaid.CanTransitionTo(StatusPartiallyRefunded))
		assert.True(t, StatusPartiallyRefunded.CanTransitionTo(StatusRefunded))
	})

	t.Run("IllegalEdges", func(t *testing.T) {
		assert.False(t, StatusPaid.CanTransitionTo(StatusPending))
		assert.False(t, StatusFailed.CanTransitionTo(StatusPaid))
		assert.False(t, StatusCancelled.CanTransitionTo(StatusProcessing))
		assert.False(t, StatusRefunded.CanTransitionTo(StatusPaid))
		assert.False(t, StatusPending.CanTransitionTo(StatusRefunded))
	})
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusPaid.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusRefunded.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.False(t, StatusPartiallyRefunded.Terminal())
}
