package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/iseeyou-platform/realtime/internal/app"
	"github.com/iseeyou-platform/realtime/internal/domain"
)

type handlers struct {
	console *app.Console
}

func (h *handlers) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"identity":  h.console.Identity(),
		"status":    h.console.Status(),
		"callState": h.console.Calls.State().String(),
	})
}

func (h *handlers) joinConversation(c *gin.Context) {
	conv := domain.ConversationID(c.Param("id"))
	if err := h.console.Join(conv); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"joined": conv})
}

func (h *handlers) markRead(c *gin.Context) {
	conv := domain.ConversationID(c.Param("id"))
	if err := h.console.MarkRead(conv); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": conv})
}

func (h *handlers) messages(c *gin.Context) {
	conv := domain.ConversationID(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"messages": h.console.Store.Messages(conv)})
}

type sendRequest struct {
	ConversationID domain.ConversationID `json:"conversationId" binding:"required"`
	Text           string                `json:"textContent" binding:"required"`
}

func (h *handlers) sendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing conversationId or textContent"})
		return
	}
	msg, err := h.console.SendText(req.ConversationID, req.Text)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, msg)
}

type broadcastRequest struct {
	ConversationIDs []domain.ConversationID `json:"conversationIds" binding:"required"`
	Text            string                  `json:"textContent" binding:"required"`
}

func (h *handlers) broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing conversationIds or textContent"})
		return
	}
	if err := h.console.Broadcast(req.ConversationIDs, req.Text); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"conversations": len(req.ConversationIDs)})
}

func (h *handlers) callState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":   h.console.Calls.State().String(),
		"session": h.console.Calls.Session(),
		"tracks":  h.console.Tracks.Snapshot(),
	})
}

// callEvent is where the UI-embedded signaling SDK forwards its
// listener callbacks.
type callEventRequest struct {
	Event   string             `json:"event" binding:"required"`
	Session domain.CallSession `json:"session"`
}

func (h *handlers) callEvent(c *gin.Context) {
	var req callEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing event"})
		return
	}
	switch req.Event {
	case "incoming":
		h.console.Calls.HandleIncoming(req.Session)
	case "cancelled":
		h.console.Calls.HandleRemoteCancelled(req.Session.SessionID)
	case "ended":
		h.console.Calls.HandleRemoteEnded(req.Session.SessionID)
	case "outgoing_accepted", "outgoing_rejected":
		// The console only takes incoming calls; outgoing callbacks are
		// observed for the audit trail.
		log.Info().Str("module", "adapters.httpapi").Str("event", req.Event).
			Str("session", string(req.Session.SessionID)).Msg("outgoing call event")
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.console.Calls.State().String()})
}

func (h *handlers) acceptCall(c *gin.Context) {
	if err := h.console.AcceptCall(c.Request.Context()); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": h.console.Calls.State().String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.console.Calls.State().String()})
}

func (h *handlers) rejectCall(c *gin.Context) {
	if err := h.console.Calls.Reject(c.Request.Context()); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.console.Calls.State().String()})
}

func (h *handlers) endCall(c *gin.Context) {
	if err := h.console.Calls.End(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.console.Calls.State().String()})
}

func (h *handlers) resetCall(c *gin.Context) {
	h.console.Calls.Reset()
	h.console.Tracks.Reset()
	c.JSON(http.StatusOK, gin.H{"state": h.console.Calls.State().String()})
}
