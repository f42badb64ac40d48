package core

import (
	"context"

	"github.com/iseeyou-platform/realtime/internal/domain"
)

// Ack is invoked once when the backend acknowledges (err == nil) or
// fails to acknowledge an outbound operation. Failure to acknowledge is
// logged by the owner, never retried.
type Ack func(err error)

// StatusKind mirrors the channel-level events the backend emits.
type StatusKind string

const (
	StatusConnected    StatusKind = "connect"
	StatusDisconnected StatusKind = "disconnect"
	StatusConnectError StatusKind = "connect_error"
)

// StatusEvent reports a transport-level state change. Attempt carries
// the reconnection attempt number for connect_error events.
type StatusEvent struct {
	Kind    StatusKind
	Attempt int
	Err     error
}

// OutboundMessage addresses a single conversation.
type OutboundMessage struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	Text           string                `json:"textContent"`
	ImagePath      string                `json:"imagePath,omitempty"`
	VideoPath      string                `json:"videoPath,omitempty"`
}

// OutboundBroadcast addresses an explicit list of conversations, used
// for operator broadcast messaging.
type OutboundBroadcast struct {
	ConversationIDs []domain.ConversationID `json:"conversationIds"`
	Text            string                  `json:"textContent"`
	ImagePath       string                  `json:"imagePath,omitempty"`
	VideoPath       string                  `json:"videoPath,omitempty"`
}

// Transport abstracts the single bidirectional event channel between an
// admin client and the messaging backend.
// Owned by the connection manager; the manager must Close() it.
type Transport interface {
	// Connect establishes the channel. Reconnection after a drop is the
	// transport's job, with a bounded attempt budget; once the budget is
	// exhausted the transport is failed for good and must be recreated.
	Connect(ctx context.Context) error

	JoinConversation(id domain.ConversationID) error
	MarkRead(id domain.ConversationID, ack Ack) error
	SendMessage(out OutboundMessage, ack Ack) error
	SendMessages(out OutboundBroadcast, ack Ack) error
	JoinAllConversations(user domain.UserID, ack Ack) error

	// OnMessage registers the single inbound sink. Fan-out to UI
	// subscribers happens above the transport.
	OnMessage(fn func(domain.Message))
	// OnStatus registers the connectivity sink.
	OnStatus(fn func(StatusEvent))

	Close() error
}

// TransportFactory opens one channel for a given admin identity.
type TransportFactory interface {
	Open(identity domain.UserID) (Transport, error)
}
