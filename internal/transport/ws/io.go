package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/iseeyou-platform/realtime/internal/core"
	"github.com/iseeyou-platform/realtime/internal/domain"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// envelope is the wire frame. Payload shape depends on Type.
type envelope struct {
	Type    string          `json:"type"`
	AckID   string          `json:"ackId,omitempty"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (t *Transport) emit(eventType string, payload any, ackID string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(envelope{Type: eventType, AckID: ackID, Payload: raw})
	if err != nil {
		return err
	}
	return t.trySend(frame)
}

func (t *Transport) emitWithAck(eventType string, payload any, ack core.Ack) error {
	ackID := newAckID()
	if ack != nil {
		t.registerAck(ackID, ack)
	}
	if err := t.emit(eventType, payload, ackID); err != nil {
		t.resolveAck(ackID, err)
		return err
	}
	return nil
}

func (t *Transport) trySend(frame []byte) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrClosed
	}
	if t.failed {
		return ErrFailed
	}
	if t.conn == nil {
		return errors.New("not connected")
	}
	select {
	case t.send <- frame:
	default:
		return ErrBackpressure
	}
	return nil
}

// writePump is the single writer for the channel across its whole life,
// including reconnects. It picks up the current conn per frame.
func (t *Transport) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "transport.ws").Msg("writePump ctx done")
			return
		case frame, ok := <-t.send:
			if !ok {
				return
			}
			if err := t.writeFrame(websocket.TextMessage, frame); err != nil {
				log.Error().Err(err).Str("module", "transport.ws").Msg("writePump write error")
			}
		case <-ticker.C:
			if err := t.writeFrame(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "transport.ws").Msg("writePump ping error")
			}
		}
	}
}

func (t *Transport) writeFrame(messageType int, frame []byte) error {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return errors.New("not connected")
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, frame)
}

// readPump is bound to one connection epoch; a replacement pump starts
// after a successful reconnect.
func (t *Transport) readPump(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.RLock()
			closed := t.closed
			t.mu.RUnlock()
			if closed || ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("module", "transport.ws").Str("user", string(t.identity)).Msg("readPump read error")
			t.emitStatus(core.StatusEvent{Kind: core.StatusDisconnected, Err: err})
			t.reconnect(ctx)
			return
		}
		t.handleFrame(data)
	}
}

func (t *Transport) handleFrame(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "transport.ws").Msg("bad frame")
		return
	}

	switch env.Type {
	case "message":
		var msg domain.Message
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			log.Error().Err(err).Str("module", "transport.ws").Msg("bad message payload")
			return
		}
		t.cbMu.RLock()
		fn := t.onMessage
		t.cbMu.RUnlock()
		if fn != nil {
			fn(msg)
		}
	case "ack":
		var err error
		if env.Error != "" {
			err = errors.New(env.Error)
		}
		t.resolveAck(env.AckID, err)
	case "pong":
	default:
		log.Warn().Str("module", "transport.ws").Str("type", env.Type).Msg("unknown event")
	}
}

func (t *Transport) emitStatus(ev core.StatusEvent) {
	t.cbMu.RLock()
	fn := t.onStatus
	t.cbMu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}
