package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medibot/internal/domain"
	"medibot/internal/service"
)

// ChatHandler mantiene dependencias para endpoints de sesiones y mensajes.
type ChatHandler struct {
	logger   *zap.Logger
	chatServ *service.ChatService
}

// NewChatHandler crea una instancia de ChatHandler con dependencias necesarias.
func NewChatHandler(logger *zap.Logger, chatServ *service.ChatService) *ChatHandler {
	return &ChatHandler{
		logger:   logger,
		chatServ: chatServ,
	}
}

// StartSession maneja POST /api/chat/startSession.
func (h *ChatHandler) StartSession(c *gin.Context) {
	var req struct {
		UserID string `json:"userId" binding:"required"`
		Title  string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or missing userId"})
		return
	}

	session, err := h.chatServ.StartSession(c.Request.Context(), req.UserID, req.Title)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or missing userId"})
			return
		}
		h.logger.Error("start session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.JSON(http.StatusOK, session)
}

// SaveMessage maneja POST /api/chat/save.
func (h *ChatHandler) SaveMessage(c *gin.Context) {
	var req struct {
		UserID    string `json:"userId" binding:"required"`
		SessionID string `json:"sessionId" binding:"required"`
		Message   string `json:"message" binding:"required"`
		Sender    string `json:"sender" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message and sender are required"})
		return
	}

	if _, err := h.chatServ.SaveMessage(c.Request.Context(), req.UserID, req.SessionID, req.Message, req.Sender); err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("save message failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save chat"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Saved"})
}

// RenameSession maneja PUT /api/chat/session/:sessionId.
func (h *ChatHandler) RenameSession(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.chatServ.RenameSession(c.Request.Context(), c.Param("sessionId"), req.Title)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		default:
			h.logger.Error("rename session failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rename session"})
		}
		return
	}

	c.JSON(http.StatusOK, session)
}

// ListSessions maneja GET /api/chat/sessions/user/:userId.
func (h *ChatHandler) ListSessions(c *gin.Context) {
	sessions, err := h.chatServ.ListSessions(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user sessions."})
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

// ListMessages maneja GET /api/chat/messages/:sessionId.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	messages, err := h.chatServ.ListMessages(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.logger.Error("list messages failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	c.JSON(http.StatusOK, messages)
}

// DeleteSession maneja DELETE /api/chat/session/:sessionId.
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	if err := h.chatServ.DeleteSession(c.Request.Context(), c.Param("sessionId")); err != nil {
		h.logger.Error("delete session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deleted session"})
}

// History maneja GET /api/chat/history/:userId.
func (h *ChatHandler) History(c *gin.Context) {
	history, err := h.chatServ.History(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.logger.Error("fetch history failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}
	if history == nil {
		history = []domain.Message{}
	}
	c.JSON(http.StatusOK, history)
}
