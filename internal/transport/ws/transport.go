// Package ws implements the admin event channel over a websocket.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/iseeyou-platform/realtime/internal/core"
	"github.com/iseeyou-platform/realtime/internal/domain"
)

const (
	DefaultMaxAttempts = 5
	DefaultBackoff     = 2 * time.Second
	DefaultAckTimeout  = 10 * time.Second
	DefaultSendBuffer  = 32
)

var (
	ErrBackpressure    = errors.New("backpressure")
	ErrClosed          = errors.New("transport closed")
	ErrFailed          = errors.New("transport failed, recreate it")
	ErrAckTimeout      = errors.New("ack timeout")
	ErrReconnectBudget = errors.New("reconnect attempts exhausted")
)

type Options struct {
	URL         string
	MaxAttempts int
	Backoff     time.Duration
	AckTimeout  time.Duration
	SendBuffer  int
}

func (o *Options) fillDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultBackoff
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = DefaultAckTimeout
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = DefaultSendBuffer
	}
}

// Factory opens one channel per admin identity.
type Factory struct {
	opts Options
}

func NewFactory(opts Options) *Factory {
	opts.fillDefaults()
	return &Factory{opts: opts}
}

func (f *Factory) Open(identity domain.UserID) (core.Transport, error) {
	if identity == "" {
		return nil, errors.New("empty identity")
	}
	return &Transport{
		opts:     f.opts,
		identity: identity,
		send:     make(chan []byte, f.opts.SendBuffer),
		pending:  make(map[string]*pendingAck),
	}, nil
}

type pendingAck struct {
	ack   core.Ack
	timer *time.Timer
}

// Transport is one live channel for one admin identity. It owns the
// reconnection budget; after the budget is exhausted it is failed for
// good and the owner must recreate it.
type Transport struct {
	opts     Options
	identity domain.UserID

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool
	failed bool

	send chan []byte

	cbMu      sync.RWMutex
	onMessage func(domain.Message)
	onStatus  func(core.StatusEvent)

	ackMu   sync.Mutex
	pending map[string]*pendingAck

	cancel context.CancelFunc
}

func (t *Transport) OnMessage(fn func(domain.Message)) {
	t.cbMu.Lock()
	t.onMessage = fn
	t.cbMu.Unlock()
}

func (t *Transport) OnStatus(fn func(core.StatusEvent)) {
	t.cbMu.Lock()
	t.onStatus = fn
	t.cbMu.Unlock()
}

func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.conn != nil {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	conn, err := t.dial(ctx)
	if err != nil {
		t.emitStatus(core.StatusEvent{Kind: core.StatusConnectError, Err: err})
		return fmt.Errorf("connect %s: %w", t.opts.URL, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.conn = conn
	t.cancel = cancel
	t.mu.Unlock()

	go t.writePump(ctx)
	go t.readPump(ctx, conn)

	t.emitStatus(core.StatusEvent{Kind: core.StatusConnected})
	log.Info().Str("module", "transport.ws").Str("user", string(t.identity)).Msg("channel connected")
	return nil
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(t.opts.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("userId", string(t.identity))
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	return conn, err
}

// reconnect runs after a transport-level drop. Conversation room
// membership does not survive it; rejoining is the caller's job.
func (t *Transport) reconnect(ctx context.Context) {
	for attempt := 1; attempt <= t.opts.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.opts.Backoff * time.Duration(attempt)):
		}
		t.mu.RLock()
		closed := t.closed
		t.mu.RUnlock()
		if closed {
			return
		}

		conn, err := t.dial(ctx)
		if err != nil {
			log.Warn().Err(err).Str("module", "transport.ws").Str("user", string(t.identity)).
				Int("attempt", attempt).Msg("reconnect failed")
			t.emitStatus(core.StatusEvent{Kind: core.StatusConnectError, Attempt: attempt, Err: err})
			continue
		}

		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()
		go t.readPump(ctx, conn)
		t.emitStatus(core.StatusEvent{Kind: core.StatusConnected, Attempt: attempt})
		log.Info().Str("module", "transport.ws").Str("user", string(t.identity)).
			Int("attempt", attempt).Msg("channel reconnected")
		return
	}

	t.mu.Lock()
	t.failed = true
	t.mu.Unlock()
	t.failAllAcks(ErrReconnectBudget)
	t.emitStatus(core.StatusEvent{Kind: core.StatusDisconnected, Attempt: t.opts.MaxAttempts, Err: ErrReconnectBudget})
	log.Error().Str("module", "transport.ws").Str("user", string(t.identity)).Msg("reconnect budget exhausted, channel failed")
}

func (t *Transport) JoinConversation(id domain.ConversationID) error {
	return t.emit("join_conversation", joinPayload{ConversationID: id}, "")
}

func (t *Transport) MarkRead(id domain.ConversationID, ack core.Ack) error {
	return t.emitWithAck("mark_read", markReadPayload{ConversationID: id}, ack)
}

func (t *Transport) SendMessage(out core.OutboundMessage, ack core.Ack) error {
	return t.emitWithAck("send_message", out, ack)
}

func (t *Transport) SendMessages(out core.OutboundBroadcast, ack core.Ack) error {
	return t.emitWithAck("send_messages", out, ack)
}

func (t *Transport) JoinAllConversations(user domain.UserID, ack core.Ack) error {
	return t.emitWithAck("admin_join_all_conversations", joinAllPayload{UserID: user}, ack)
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	t.failAllAcks(ErrClosed)
	log.Info().Str("module", "transport.ws").Str("user", string(t.identity)).Msg("channel closed")
	return nil
}

func (t *Transport) registerAck(id string, ack core.Ack) {
	timer := time.AfterFunc(t.opts.AckTimeout, func() {
		t.resolveAck(id, ErrAckTimeout)
	})
	t.ackMu.Lock()
	t.pending[id] = &pendingAck{ack: ack, timer: timer}
	t.ackMu.Unlock()
}

func (t *Transport) resolveAck(id string, err error) {
	t.ackMu.Lock()
	p, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.ackMu.Unlock()
	if !ok {
		return
	}
	p.timer.Stop()
	if p.ack != nil {
		p.ack(err)
	}
}

func (t *Transport) failAllAcks(err error) {
	t.ackMu.Lock()
	pending := t.pending
	t.pending = make(map[string]*pendingAck)
	t.ackMu.Unlock()
	for _, p := range pending {
		p.timer.Stop()
		if p.ack != nil {
			p.ack(err)
		}
	}
}

func newAckID() string { return uuid.NewString() }

type joinPayload struct {
	ConversationID domain.ConversationID `json:"conversationId"`
}

type markReadPayload struct {
	ConversationID domain.ConversationID `json:"conversationId"`
}

type joinAllPayload struct {
	UserID domain.UserID `json:"userId"`
}
