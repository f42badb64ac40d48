// Package store holds the per-conversation message lists for the
// active admin session. History is client-side only; Clear never
// touches the server.
package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iseeyou-platform/realtime/internal/domain"
)

// DefaultDedupWindow is a heuristic, not a protocol guarantee: wide
// enough to collapse an optimistic send with its server echo, narrow
// enough to keep genuinely repeated texts apart. Tune per deployment
// via Config.
const DefaultDedupWindow = 3 * time.Second

type Store struct {
	window time.Duration

	mu     sync.RWMutex
	byConv map[domain.ConversationID][]domain.Message
}

func New(window time.Duration) *Store {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Store{
		window: window,
		byConv: make(map[domain.ConversationID][]domain.Message),
	}
}

// Append is the dedup gate. It returns false without mutating state
// when the message is a semantic duplicate of one already stored for
// the conversation: identical id, or identical text with CreatedAt
// within the dedup window. The latter collapses an optimistic local
// send with the server's broadcast of the same message. A rejected
// duplicate is the invariant working, not an error.
func (s *Store) Append(msg domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.byConv[msg.ConversationID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if s.duplicate(msgs[i], msg) {
			log.Debug().Str("module", "store").Str("conversation", string(msg.ConversationID)).
				Str("id", string(msg.ID)).Msg("duplicate suppressed")
			return false
		}
	}
	s.byConv[msg.ConversationID] = append(msgs, msg)
	return true
}

func (s *Store) duplicate(have, incoming domain.Message) bool {
	if have.ID != "" && have.ID == incoming.ID {
		return true
	}
	if have.Text != incoming.Text {
		return false
	}
	delta := incoming.CreatedAt.Sub(have.CreatedAt)
	if delta < 0 {
		delta = -delta
	}
	return delta <= s.window
}

// Messages returns the conversation's entries in insertion order as
// observed by the store. Out-of-order transport delivery is not
// corrected here.
func (s *Store) Messages(conv domain.ConversationID) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.byConv[conv]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Conversations lists the conversation ids with stored history.
func (s *Store) Conversations() []domain.ConversationID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ConversationID, 0, len(s.byConv))
	for id := range s.byConv {
		out = append(out, id)
	}
	return out
}

// Clear discards all client-side history. Server-held history is
// untouched.
func (s *Store) Clear() {
	s.mu.Lock()
	s.byConv = make(map[domain.ConversationID][]domain.Message)
	s.mu.Unlock()
}
