package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iseeyou-platform/realtime/internal/domain"
	"github.com/iseeyou-platform/realtime/internal/store"
)

func msg(id, conv, sender, text string, at time.Time) domain.Message {
	return domain.Message{
		ID:             domain.MessageID(id),
		ConversationID: domain.ConversationID(conv),
		SenderID:       domain.UserID(sender),
		Text:           text,
		CreatedAt:      at,
	}
}

func TestAppend_OptimisticEchoCollapsed(t *testing.T) {
	s := store.New(3 * time.Second)
	t0 := time.Now()

	local, err := domain.NewLocalMessage("c1", "admin-1", "hello")
	require.NoError(t, err)
	assert.True(t, local.ID.IsTemp())
	assert.True(t, s.Append(local))

	echo := msg("srv-42", "c1", "admin-1", "hello", t0.Add(1500*time.Millisecond))
	assert.False(t, s.Append(echo), "server echo must be suppressed")

	got := s.Messages("c1")
	require.Len(t, got, 1)
	// The temp id is not rewritten with the server id.
	assert.Equal(t, local.ID, got[0].ID)
}

func TestAppend_SameTextOutsideWindowKept(t *testing.T) {
	s := store.New(3 * time.Second)
	t0 := time.Now()

	assert.True(t, s.Append(msg("a", "c1", "u1", "ok", t0)))
	assert.True(t, s.Append(msg("b", "c1", "u1", "ok", t0.Add(10*time.Second))),
		"time-window dedup must not over-suppress")
	assert.Len(t, s.Messages("c1"), 2)
}

func TestAppend_SameIDRejected(t *testing.T) {
	s := store.New(3 * time.Second)
	t0 := time.Now()

	assert.True(t, s.Append(msg("srv-1", "c1", "u1", "first", t0)))
	assert.False(t, s.Append(msg("srv-1", "c1", "u1", "first", t0.Add(time.Minute))))
	assert.Len(t, s.Messages("c1"), 1)
}

func TestAppend_SameTextOtherConversationKept(t *testing.T) {
	s := store.New(3 * time.Second)
	t0 := time.Now()

	assert.True(t, s.Append(msg("a", "c1", "u1", "hi", t0)))
	assert.True(t, s.Append(msg("b", "c2", "u1", "hi", t0)))
	assert.Len(t, s.Messages("c1"), 1)
	assert.Len(t, s.Messages("c2"), 1)
}

func TestMessages_InsertionOrder(t *testing.T) {
	s := store.New(0)
	t0 := time.Now()

	// Server timestamps deliberately out of order: the store keeps
	// arrival order.
	require.True(t, s.Append(msg("a", "c1", "u1", "one", t0.Add(5*time.Second))))
	require.True(t, s.Append(msg("b", "c1", "u2", "two", t0)))

	got := s.Messages("c1")
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Text)
	assert.Equal(t, "two", got[1].Text)
}

func TestMessages_ReturnsCopy(t *testing.T) {
	s := store.New(0)
	require.True(t, s.Append(msg("a", "c1", "u1", "one", time.Now())))

	got := s.Messages("c1")
	got[0].Text = "mutated"
	assert.Equal(t, "one", s.Messages("c1")[0].Text)
}

func TestClear(t *testing.T) {
	s := store.New(0)
	require.True(t, s.Append(msg("a", "c1", "u1", "one", time.Now())))
	require.True(t, s.Append(msg("b", "c2", "u1", "two", time.Now())))

	s.Clear()
	assert.Empty(t, s.Messages("c1"))
	assert.Empty(t, s.Messages("c2"))
	assert.Empty(t, s.Conversations())
}
