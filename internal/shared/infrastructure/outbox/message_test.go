package outbox

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.FixedZone("CET", 3600))

	t.Run("uses payload event id", func(t *testing.T) {
		id := uuid.New()
		msg, err := NewMessage("scheduling.solution.applied", []byte(`{"event_id":"`+id.String()+`"}`), now)
		require.NoError(t, err)

		assert.Equal(t, id, msg.EventID)
		assert.Equal(t, now.UTC(), msg.CreatedAt)
		assert.False(t, msg.IsPublished())
		assert.False(t, msg.IsDead())
	})

	t.Run("generates id otherwise", func(t *testing.T) {
		msg, err := NewMessage("k", []byte(`{"x":1}`), now)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, msg.EventID)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := NewMessage("", []byte(`{}`), now)
		assert.ErrorIs(t, err, ErrEmptyRoutingKey)

		_, err = NewMessage("k", []byte(`{`), now)
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})
}

func TestMessage_CanRetry(t *testing.T) {
	msg := &Message{}
	assert.True(t, msg.CanRetry(3))
	assert.False(t, msg.CanRetry(0))

	msg.RetryCount = 2
	assert.False(t, msg.CanRetry(3))
}
