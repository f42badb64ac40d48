// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxTextLen = 4096

	// TempIDPrefix marks client-generated ids assigned to optimistic
	// sends before the server has confirmed the message.
	TempIDPrefix = "tmp-"
)

var (
	ErrTextEmpty   = errors.New("text empty")
	ErrTextTooLong = errors.New("text too long")
)

type (
	UserID         string
	ConversationID string
	MessageID      string
)

type SenderRole string

const (
	RoleAdmin      SenderRole = "admin"
	RoleCustomer   SenderRole = "customer"
	RoleConsultant SenderRole = "consultant"
)

// NewTempMessageID returns a client-generated id for an optimistic send.
func NewTempMessageID() MessageID {
	return MessageID(TempIDPrefix + uuid.NewString())
}

// IsTemp reports whether the id was client-generated rather than
// assigned by the server.
func (id MessageID) IsTemp() bool {
	return strings.HasPrefix(string(id), TempIDPrefix)
}

type Message struct {
	ID             MessageID      `json:"id"`
	ConversationID ConversationID `json:"conversationId"`
	SenderID       UserID         `json:"senderId"`
	SenderRole     SenderRole     `json:"senderRole,omitempty"`
	Text           string         `json:"textContent"`
	ImagePath      string         `json:"imagePath,omitempty"`
	VideoPath      string         `json:"videoPath,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// NewLocalMessage builds the optimistic entry inserted before the send
// is dispatched. Keeps ad-hoc struct literals out of callers.
func NewLocalMessage(conv ConversationID, sender UserID, text string) (Message, error) {
	if len(text) == 0 {
		return Message{}, ErrTextEmpty
	}
	if len(text) > MaxTextLen {
		return Message{}, ErrTextTooLong
	}
	return Message{
		ID:             NewTempMessageID(),
		ConversationID: conv,
		SenderID:       sender,
		SenderRole:     RoleAdmin,
		Text:           text,
		CreatedAt:      time.Now(),
	}, nil
}
