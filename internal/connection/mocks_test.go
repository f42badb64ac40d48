package connection_test

import (
	"context"
	"sync"

	"github.com/iseeyou-platform/realtime/internal/core"
	"github.com/iseeyou-platform/realtime/internal/domain"
)

// fakeTransport records operations and lets tests push inbound events.
type fakeTransport struct {
	mu        sync.Mutex
	identity  domain.UserID
	connected int
	joined    []domain.ConversationID
	sent      []core.OutboundMessage
	broadcast []core.OutboundBroadcast
	marked    []domain.ConversationID
	closed    bool
	ackErr    error

	onMessage func(domain.Message)
	onStatus  func(core.StatusEvent)
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connected++
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) JoinConversation(id domain.ConversationID) error {
	f.mu.Lock()
	f.joined = append(f.joined, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) MarkRead(id domain.ConversationID, ack core.Ack) error {
	f.mu.Lock()
	f.marked = append(f.marked, id)
	err := f.ackErr
	f.mu.Unlock()
	if ack != nil {
		ack(err)
	}
	return nil
}

func (f *fakeTransport) SendMessage(out core.OutboundMessage, ack core.Ack) error {
	f.mu.Lock()
	f.sent = append(f.sent, out)
	err := f.ackErr
	f.mu.Unlock()
	if ack != nil {
		ack(err)
	}
	return nil
}

func (f *fakeTransport) SendMessages(out core.OutboundBroadcast, ack core.Ack) error {
	f.mu.Lock()
	f.broadcast = append(f.broadcast, out)
	err := f.ackErr
	f.mu.Unlock()
	if ack != nil {
		ack(err)
	}
	return nil
}

func (f *fakeTransport) JoinAllConversations(user domain.UserID, ack core.Ack) error {
	if ack != nil {
		ack(nil)
	}
	return nil
}

func (f *fakeTransport) OnMessage(fn func(domain.Message))  { f.onMessage = fn }
func (f *fakeTransport) OnStatus(fn func(core.StatusEvent)) { f.onStatus = fn }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) emit(msg domain.Message)    { f.onMessage(msg) }
func (f *fakeTransport) status(ev core.StatusEvent) { f.onStatus(ev) }

func (f *fakeTransport) joinCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.joined)
}

// fakeFactory counts how many channels were ever opened.
type fakeFactory struct {
	mu     sync.Mutex
	opened []*fakeTransport
}

func (f *fakeFactory) Open(identity domain.UserID) (core.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTransport{identity: identity}
	f.opened = append(f.opened, t)
	return t, nil
}

func (f *fakeFactory) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

func (f *fakeFactory) last() *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened[len(f.opened)-1]
}
