package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iseeyou-platform/realtime/internal/core"
	"github.com/iseeyou-platform/realtime/internal/domain"
	"github.com/iseeyou-platform/realtime/internal/transport/ws"
)

// wireFrame mirrors the channel envelope for test-side assertions.
type wireFrame struct {
	Type    string          `json:"type"`
	AckID   string          `json:"ackId,omitempty"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// chatServer is a minimal messaging backend double.
type chatServer struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conn   *websocket.Conn
	ackErr string
	noAck  bool

	frames chan wireFrame
	users  chan string
}

func newChatServer(t *testing.T) (*chatServer, *httptest.Server) {
	s := &chatServer{
		t:      t,
		frames: make(chan wireFrame, 16),
		users:  make(chan string, 4),
	}
	hs := httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(hs.Close)
	return s, hs
}

func (s *chatServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.users <- r.URL.Query().Get("userId")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame wireFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		s.frames <- frame
		s.mu.Lock()
		noAck, ackErr := s.noAck, s.ackErr
		s.mu.Unlock()
		if frame.AckID != "" && !noAck {
			s.write(wireFrame{Type: "ack", AckID: frame.AckID, Error: ackErr})
		}
	}
}

func (s *chatServer) setAckErr(msg string) {
	s.mu.Lock()
	s.ackErr = msg
	s.mu.Unlock()
}

func (s *chatServer) setNoAck() {
	s.mu.Lock()
	s.noAck = true
	s.mu.Unlock()
}

func (s *chatServer) write(frame wireFrame) {
	raw, err := json.Marshal(frame)
	require.NoError(s.t, err)
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotNil(s.t, s.conn)
	require.NoError(s.t, s.conn.WriteMessage(websocket.TextMessage, raw))
}

func (s *chatServer) push(msg domain.Message) {
	raw, err := json.Marshal(msg)
	require.NoError(s.t, err)
	s.write(wireFrame{Type: "message", Payload: raw})
}

func (s *chatServer) nextFrame(t *testing.T) wireFrame {
	select {
	case frame := <-s.frames:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("no frame from client")
		return wireFrame{}
	}
}

func wsURL(hs *httptest.Server) string {
	return "ws" + strings.TrimPrefix(hs.URL, "http")
}

func openTransport(t *testing.T, hs *httptest.Server, opts ws.Options) core.Transport {
	opts.URL = wsURL(hs)
	factory := ws.NewFactory(opts)
	transport, err := factory.Open("admin-1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = transport.Close() })
	return transport
}

func TestConnect_CarriesIdentityAndEmitsStatus(t *testing.T) {
	server, hs := newChatServer(t)
	transport := openTransport(t, hs, ws.Options{})

	statuses := make(chan core.StatusEvent, 4)
	transport.OnStatus(func(ev core.StatusEvent) { statuses <- ev })

	require.NoError(t, transport.Connect(context.Background()))

	select {
	case user := <-server.users:
		assert.Equal(t, "admin-1", user)
	case <-time.After(2 * time.Second):
		t.Fatal("server saw no connection")
	}
	select {
	case ev := <-statuses:
		assert.Equal(t, core.StatusConnected, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no connect status")
	}

	// Connect again is a no-op on an established channel.
	require.NoError(t, transport.Connect(context.Background()))
}

func TestConnect_Refused(t *testing.T) {
	factory := ws.NewFactory(ws.Options{URL: "ws://127.0.0.1:1/ws"})
	transport, err := factory.Open("admin-1")
	require.NoError(t, err)

	var ev core.StatusEvent
	transport.OnStatus(func(e core.StatusEvent) { ev = e })
	assert.Error(t, transport.Connect(context.Background()))
	assert.Equal(t, core.StatusConnectError, ev.Kind)
}

func TestJoinConversation_FrameOnWire(t *testing.T) {
	server, hs := newChatServer(t)
	transport := openTransport(t, hs, ws.Options{})
	require.NoError(t, transport.Connect(context.Background()))
	<-server.users

	require.NoError(t, transport.JoinConversation("c1"))

	frame := server.nextFrame(t)
	assert.Equal(t, "join_conversation", frame.Type)
	assert.JSONEq(t, `{"conversationId":"c1"}`, string(frame.Payload))
}

func TestSendMessage_AckResolved(t *testing.T) {
	server, hs := newChatServer(t)
	transport := openTransport(t, hs, ws.Options{})
	require.NoError(t, transport.Connect(context.Background()))
	<-server.users

	acked := make(chan error, 1)
	require.NoError(t, transport.SendMessage(core.OutboundMessage{
		ConversationID: "c1",
		Text:           "hello",
	}, func(err error) { acked <- err }))

	frame := server.nextFrame(t)
	assert.Equal(t, "send_message", frame.Type)
	assert.NotEmpty(t, frame.AckID)

	select {
	case err := <-acked:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ack never resolved")
	}
}

func TestSendMessages_AckError(t *testing.T) {
	server, hs := newChatServer(t)
	server.setAckErr("conversation not found")
	transport := openTransport(t, hs, ws.Options{})
	require.NoError(t, transport.Connect(context.Background()))
	<-server.users

	acked := make(chan error, 1)
	require.NoError(t, transport.SendMessages(core.OutboundBroadcast{
		ConversationIDs: []domain.ConversationID{"c1", "c2"},
		Text:            "notice",
	}, func(err error) { acked <- err }))

	frame := server.nextFrame(t)
	assert.Equal(t, "send_messages", frame.Type)

	select {
	case err := <-acked:
		assert.EqualError(t, err, "conversation not found")
	case <-time.After(2 * time.Second):
		t.Fatal("ack never resolved")
	}
}

func TestSend_AckTimeout(t *testing.T) {
	server, hs := newChatServer(t)
	server.setNoAck()
	transport := openTransport(t, hs, ws.Options{AckTimeout: 100 * time.Millisecond})
	require.NoError(t, transport.Connect(context.Background()))
	<-server.users

	acked := make(chan error, 1)
	require.NoError(t, transport.MarkRead("c1", func(err error) { acked <- err }))

	select {
	case err := <-acked:
		assert.ErrorIs(t, err, ws.ErrAckTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("ack timeout never fired")
	}
}

func TestInboundMessage_Delivered(t *testing.T) {
	server, hs := newChatServer(t)
	transport := openTransport(t, hs, ws.Options{})

	inbound := make(chan domain.Message, 1)
	transport.OnMessage(func(msg domain.Message) { inbound <- msg })
	require.NoError(t, transport.Connect(context.Background()))
	<-server.users

	server.push(domain.Message{
		ID:             "srv-1",
		ConversationID: "c1",
		SenderID:       "customer-7",
		Text:           "xin chào",
		CreatedAt:      time.Now(),
	})

	select {
	case msg := <-inbound:
		assert.Equal(t, domain.MessageID("srv-1"), msg.ID)
		assert.Equal(t, "xin chào", msg.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("inbound message never delivered")
	}
}

func TestSend_BeforeConnectFails(t *testing.T) {
	_, hs := newChatServer(t)
	transport := openTransport(t, hs, ws.Options{})
	assert.Error(t, transport.JoinConversation("c1"))
}

func TestClose_FailsPendingAcksAndRejectsSends(t *testing.T) {
	server, hs := newChatServer(t)
	server.setNoAck()
	transport := openTransport(t, hs, ws.Options{AckTimeout: time.Minute})
	require.NoError(t, transport.Connect(context.Background()))
	<-server.users

	acked := make(chan error, 1)
	require.NoError(t, transport.MarkRead("c1", func(err error) { acked <- err }))
	require.NoError(t, transport.Close())

	select {
	case err := <-acked:
		assert.ErrorIs(t, err, ws.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("pending ack not failed on close")
	}

	assert.ErrorIs(t, transport.JoinConversation("c1"), ws.ErrClosed)
}
