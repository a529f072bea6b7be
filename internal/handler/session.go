package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opendeepwiki/ragchat/internal/service"
	"k8s.io/klog/v2"
)

type SessionHandler struct {
	sessions *service.SessionManager
}

func NewSessionHandler(sessions *service.SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Create(c *gin.Context) {
	session, err := h.sessions.Create()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	snapshot, err := h.sessions.Snapshot(session.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, snapshot)
}

func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.sessions.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *SessionHandler) Get(c *gin.Context) {
	snapshot, err := h.sessions.Snapshot(c.Param("id"))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *SessionHandler) Messages(c *gin.Context) {
	messages, err := h.sessions.Messages(c.Param("id"))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// Reset 清空会话，需要重新上传文档
func (h *SessionHandler) Reset(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.sessions.Reset(c.Request.Context(), id); err != nil {
		klog.Errorf("[SessionHandler] 重置会话失败: sessionID=%s, err=%v", id, err)
		writeSessionError(c, err)
		return
	}

	snapshot, err := h.sessions.Snapshot(id)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// Delete 删除会话及其消息和向量集合
func (h *SessionHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Delete(c.Request.Context(), id); err != nil {
		klog.Errorf("[SessionHandler] 删除会话失败: sessionID=%s, err=%v", id, err)
		writeSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeSessionError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
