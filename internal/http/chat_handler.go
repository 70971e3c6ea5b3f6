package http

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"grounded-chat/internal/domain"
	"grounded-chat/internal/service"
)

// ChatHandler expone las operaciones de sesiones, adjuntos y turnos.
type ChatHandler struct {
	logger        *zap.Logger
	conversations *service.ConversationService
	attachments   *service.AttachmentService
}

// NewChatHandler crea una instancia de ChatHandler con dependencias necesarias.
func NewChatHandler(
	logger *zap.Logger,
	conversations *service.ConversationService,
	attachments *service.AttachmentService,
) *ChatHandler {
	return &ChatHandler{
		logger:        logger,
		conversations: conversations,
		attachments:   attachments,
	}
}

// CreateSession maneja POST /session.
func (h *ChatHandler) CreateSession(c *gin.Context) {
	session, err := h.conversations.StartSession(c.Request.Context())
	if err != nil {
		h.logger.Error("create session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}

	messages, err := h.conversations.History(c.Request.Context(), session.ID)
	if err != nil {
		h.logger.Error("load history failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": session, "messages": messages})
}

// GetHistory maneja GET /session/:id/history. Una sesion desconocida devuelve
// una lista vacia, no un error.
func (h *ChatHandler) GetHistory(c *gin.Context) {
	messages, err := h.conversations.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("load history failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// ResetSession maneja POST /session/:id/reset: descarta la sesion y su handle
// y devuelve la sesion nueva con su saludo.
func (h *ChatHandler) ResetSession(c *gin.Context) {
	session, err := h.conversations.Reset(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("reset session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not reset session"})
		return
	}

	messages, err := h.conversations.History(c.Request.Context(), session.ID)
	if err != nil {
		h.logger.Error("load history failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": session, "messages": messages})
}

// StageAttachment maneja POST /session/:id/attachment. Acepta base64 puro con
// mime_type, o un data URI completo en data.
func (h *ChatHandler) StageAttachment(c *gin.Context) {
	var req struct {
		Data     string `json:"data" binding:"required"`
		MimeType string `json:"mime_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid attachment request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	var (
		att domain.Attachment
		err error
	)
	if strings.HasPrefix(req.Data, "data:") {
		att, err = h.attachments.EncodeDataURI(req.Data)
	} else {
		var raw []byte
		raw, err = base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			err = service.ErrAttachmentInvalid
		} else {
			att, err = h.attachments.Encode(req.MimeType, raw)
		}
	}
	if err != nil {
		h.writeAttachmentError(c, err)
		return
	}

	h.attachments.Stage(c.Param("id"), att)
	c.JSON(http.StatusCreated, gin.H{"staged": true, "mime_type": att.MimeType})
}

// RemoveAttachment maneja DELETE /session/:id/attachment.
func (h *ChatHandler) RemoveAttachment(c *gin.Context) {
	h.attachments.Clear(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// PostMessage maneja POST /session/:id/message y responde por SSE: un evento
// "snapshot" por cada version del mensaje en curso, y al final "done" con el
// mensaje persistido o "error" con el mensaje de sistema.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid post message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sessionID := c.Param("id")

	// Las validaciones de envio se resuelven antes de abrir el stream SSE.
	if h.conversations.Status(sessionID).Busy() {
		c.JSON(http.StatusConflict, gin.H{"error": "turn already in progress"})
		return
	}
	_, staged := h.attachments.Staged(sessionID)
	if strings.TrimSpace(req.Content) == "" && !staged {
		c.JSON(http.StatusBadRequest, gin.H{"error": "turn requires text or an attachment"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	type turnResult struct {
		msg domain.Message
		err error
	}

	snapshots := make(chan domain.Message, 16)
	done := make(chan turnResult, 1)
	go func() {
		final, err := h.conversations.SubmitTurn(c.Request.Context(), sessionID, req.Content, func(m domain.Message) {
			snapshots <- m
		})
		close(snapshots)
		done <- turnResult{msg: final, err: err}
	}()

	for msg := range snapshots {
		c.SSEvent("snapshot", msg)
		c.Writer.Flush()
	}

	res := <-done
	if res.err != nil {
		h.logger.Error("turn failed", zap.Error(res.err), zap.String("session_id", sessionID))
		c.SSEvent("error", res.msg)
	} else {
		c.SSEvent("done", res.msg)
	}
	c.Writer.Flush()
}

func (h *ChatHandler) writeAttachmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAttachmentTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "attachment exceeds the 5 MiB limit"})
	case errors.Is(err, service.ErrUnsupportedMediaType):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "only image attachments are supported"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attachment payload"})
	}
}
