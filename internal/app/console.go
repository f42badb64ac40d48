// Package app wires the channel, the message store and the call
// controller into one console session.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/iseeyou-platform/realtime/internal/call"
	"github.com/iseeyou-platform/realtime/internal/connection"
	"github.com/iseeyou-platform/realtime/internal/core"
	"github.com/iseeyou-platform/realtime/internal/domain"
	"github.com/iseeyou-platform/realtime/internal/store"
)

// Console is the session-scoped facade the HTTP surface talks to. One
// Console serves one admin identity.
type Console struct {
	Manager *connection.Manager
	Store   *store.Store
	Calls   *call.Controller
	Tracks  *TrackLog

	identity domain.UserID

	mu     sync.Mutex
	handle *connection.Handle
	unsub  connection.Unsubscribe
}

func NewConsole(identity domain.UserID, manager *connection.Manager, st *store.Store, calls *call.Controller) *Console {
	return &Console{
		Manager:  manager,
		Store:    st,
		Calls:    calls,
		Tracks:   &TrackLog{},
		identity: identity,
	}
}

func (c *Console) Identity() domain.UserID { return c.identity }

// Start opens (or reuses) the channel for this identity, feeds the
// store from the subscription and joins all conversations as admin.
func (c *Console) Start(ctx context.Context) error {
	handle, err := c.Manager.Connect(ctx, c.identity)
	if err != nil {
		return err
	}

	unsub, err := handle.Subscribe(func(msg domain.Message) {
		c.Store.Append(msg)
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.handle = handle
	c.unsub = unsub
	c.mu.Unlock()

	if err := handle.JoinAllConversations(nil); err != nil {
		log.Warn().Err(err).Str("module", "app").Str("user", string(c.identity)).Msg("join all conversations not sent")
	}
	return nil
}

func (c *Console) Stop() {
	c.mu.Lock()
	unsub := c.unsub
	c.unsub = nil
	c.handle = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	c.Manager.Disconnect(c.identity)
}

func (c *Console) Status() core.StatusKind {
	c.mu.Lock()
	handle := c.handle
	c.mu.Unlock()
	if handle == nil {
		return core.StatusDisconnected
	}
	return handle.Status()
}

func (c *Console) Join(conv domain.ConversationID) error {
	handle, err := c.currentHandle()
	if err != nil {
		return err
	}
	return handle.JoinConversation(conv)
}

func (c *Console) MarkRead(conv domain.ConversationID) error {
	handle, err := c.currentHandle()
	if err != nil {
		return err
	}
	return handle.MarkRead(conv, nil)
}

// SendText inserts the optimistic entry first, so the UI updates with
// zero latency, then dispatches the send. The server echo is collapsed
// later by the store's dedup gate.
func (c *Console) SendText(conv domain.ConversationID, text string) (domain.Message, error) {
	handle, err := c.currentHandle()
	if err != nil {
		return domain.Message{}, err
	}
	msg, err := domain.NewLocalMessage(conv, c.identity, text)
	if err != nil {
		return domain.Message{}, err
	}
	c.Store.Append(msg)

	err = handle.Send(core.OutboundMessage{ConversationID: conv, Text: text}, nil)
	if err != nil {
		return msg, err
	}
	return msg, nil
}

// Broadcast is the operator multi-conversation send. No optimistic
// insert: broadcast targets are usually not on screen.
func (c *Console) Broadcast(convs []domain.ConversationID, text string) error {
	handle, err := c.currentHandle()
	if err != nil {
		return err
	}
	return handle.SendToMany(core.OutboundBroadcast{ConversationIDs: convs, Text: text}, nil)
}

func (c *Console) AcceptCall(ctx context.Context) error {
	return c.Calls.Accept(ctx, c.Tracks)
}

func (c *Console) currentHandle() (*connection.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return nil, connection.ErrHandleClosed
	}
	return c.handle, nil
}

// TrackEvent records one remote-media lifecycle change for the UI.
type TrackEvent struct {
	Kind    string `json:"kind"`
	TrackID string `json:"trackId"`
	Live    bool   `json:"live"`
}

// TrackLog implements call.RenderTarget. The console UI polls it; this
// core never renders media itself.
type TrackLog struct {
	mu     sync.Mutex
	events []TrackEvent
}

func (t *TrackLog) TrackStarted(kind, trackID string) {
	t.mu.Lock()
	t.events = append(t.events, TrackEvent{Kind: kind, TrackID: trackID, Live: true})
	t.mu.Unlock()
}

func (t *TrackLog) TrackEnded(trackID string) {
	t.mu.Lock()
	t.events = append(t.events, TrackEvent{TrackID: trackID, Live: false})
	t.mu.Unlock()
}

func (t *TrackLog) Snapshot() []TrackEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TrackEvent, len(t.events))
	copy(out, t.events)
	return out
}

// Reset clears track history between calls.
func (t *TrackLog) Reset() {
	t.mu.Lock()
	t.events = nil
	t.mu.Unlock()
}
