package connection

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/iseeyou-platform/realtime/internal/core"
	"github.com/iseeyou-platform/realtime/internal/domain"
)

var ErrHandleClosed = errors.New("connection handle closed")

// Unsubscribe removes exactly the callback it was returned for; other
// subscribers and the channel itself are unaffected.
type Unsubscribe func()

// Handle is the per-identity view over one live channel. Subscribers
// come and go freely without touching channel lifecycle.
type Handle struct {
	identity  domain.UserID
	transport core.Transport

	mu      sync.Mutex
	subs    map[int]func(domain.Message)
	nextSub int
	joined  map[domain.ConversationID]struct{}
	status  core.StatusKind
	closed  bool
}

func newHandle(identity domain.UserID, transport core.Transport) *Handle {
	return &Handle{
		identity:  identity,
		transport: transport,
		subs:      make(map[int]func(domain.Message)),
		joined:    make(map[domain.ConversationID]struct{}),
		status:    core.StatusDisconnected,
	}
}

func (h *Handle) Identity() domain.UserID { return h.identity }

// Status is the connectivity indicator for the console header.
func (h *Handle) Status() core.StatusKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Subscribe registers a callback invoked once per inbound event. After
// the handle is torn down it returns an error, never a silent queue.
func (h *Handle) Subscribe(fn func(domain.Message)) (Unsubscribe, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHandleClosed
	}
	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}, nil
}

// dispatch delivers one inbound event to every registered subscriber.
// The registry is snapshotted first so a subscriber removing itself
// mid-dispatch cannot corrupt delivery to the others.
func (h *Handle) dispatch(msg domain.Message) {
	h.mu.Lock()
	snapshot := make([]func(domain.Message), 0, len(h.subs))
	for _, fn := range h.subs {
		snapshot = append(snapshot, fn)
	}
	h.mu.Unlock()

	for _, fn := range snapshot {
		fn(msg)
	}
}

func (h *Handle) onStatus(ev core.StatusEvent) {
	h.mu.Lock()
	h.status = ev.Kind
	if ev.Kind == core.StatusDisconnected {
		// Room membership does not survive a transport drop; forget it
		// so a fresh JoinConversation actually re-sends the join.
		h.joined = make(map[domain.ConversationID]struct{})
	}
	h.mu.Unlock()
	if ev.Err != nil {
		log.Warn().Err(ev.Err).Str("module", "connection").Str("user", string(h.identity)).
			Str("status", string(ev.Kind)).Int("attempt", ev.Attempt).Msg("channel status")
	}
}

// JoinConversation is idempotent within one connection epoch.
func (h *Handle) JoinConversation(id domain.ConversationID) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHandleClosed
	}
	if _, ok := h.joined[id]; ok {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	if err := h.transport.JoinConversation(id); err != nil {
		return err
	}
	h.mu.Lock()
	h.joined[id] = struct{}{}
	h.mu.Unlock()
	log.Info().Str("module", "connection").Str("user", string(h.identity)).
		Str("conversation", string(id)).Msg("joined conversation")
	return nil
}

// JoinAllConversations subscribes the admin to every conversation on
// the backend in one call.
func (h *Handle) JoinAllConversations(ack core.Ack) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHandleClosed
	}
	h.mu.Unlock()
	return h.transport.JoinAllConversations(h.identity, h.loggingAck("admin_join_all_conversations", ack))
}

// Send targets a single conversation. Fire-and-forget: the ack only
// reports delivery to the backend, failures are logged, not retried.
func (h *Handle) Send(out core.OutboundMessage, ack core.Ack) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHandleClosed
	}
	h.mu.Unlock()
	return h.transport.SendMessage(out, h.loggingAck("send_message", ack))
}

// SendToMany is the operator broadcast path.
func (h *Handle) SendToMany(out core.OutboundBroadcast, ack core.Ack) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHandleClosed
	}
	h.mu.Unlock()
	return h.transport.SendMessages(out, h.loggingAck("send_messages", ack))
}

func (h *Handle) MarkRead(id domain.ConversationID, ack core.Ack) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHandleClosed
	}
	h.mu.Unlock()
	return h.transport.MarkRead(id, h.loggingAck("mark_read", ack))
}

func (h *Handle) loggingAck(op string, ack core.Ack) core.Ack {
	return func(err error) {
		if err != nil {
			log.Warn().Err(err).Str("module", "connection").Str("user", string(h.identity)).
				Str("op", op).Msg("ack failure")
		}
		if ack != nil {
			ack(err)
		}
	}
}

func (h *Handle) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.subs = make(map[int]func(domain.Message))
	h.joined = make(map[domain.ConversationID]struct{})
	h.status = core.StatusDisconnected
	h.mu.Unlock()
	_ = h.transport.Close()
}
