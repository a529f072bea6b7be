package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opendeepwiki/ragchat/internal/service"
	"github.com/opendeepwiki/ragchat/internal/service/ragflow"
	"k8s.io/klog/v2"
)

type ChatHandler struct {
	chat     *service.ChatService
	sessions *service.SessionManager
}

func NewChatHandler(chat *service.ChatService, sessions *service.SessionManager) *ChatHandler {
	return &ChatHandler{chat: chat, sessions: sessions}
}

type ChatRequest struct {
	Query string `json:"query" binding:"required"`
}

// Chat 执行一轮问答，返回完整结果
// 流程失败属于已记录的一轮对话，返回 200 并在 error 字段说明
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.chat.Ask(c.Request.Context(), c.Param("id"), req.Query, nil)
	if result != nil {
		c.JSON(http.StatusOK, result)
		return
	}
	writeChatError(c, err)
}

// SSE 事件名
const (
	eventStage     = "stage"
	eventDocuments = "documents"
	eventThinking  = "thinking"
	eventAnswer    = "answer"
	eventDone      = "done"
	eventError     = "error"
)

type sseEvent struct {
	name string
	data any
}

// Stream 以 SSE 推送问答进度：stage, documents, thinking, answer, done, error
func (h *ChatHandler) Stream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeChatError(c, service.ErrEmptyQuery)
		return
	}
	id := c.Param("id")

	// 开始推流前先检查会话，保证未配置时仍返回 409
	snapshot, err := h.sessions.Snapshot(id)
	if err != nil {
		writeChatError(c, err)
		return
	}
	if !snapshot.HasPipeline {
		writeChatError(c, ragflow.ErrRetrieverUnconfigured)
		return
	}

	ctx := c.Request.Context()
	events := make(chan sseEvent, 64)
	send := func(name string, data any) {
		select {
		case events <- sseEvent{name: name, data: data}:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(events)
		result, err := h.chat.Ask(ctx, id, req.Query, streamObserver(send))
		switch {
		case result != nil:
			send(eventDone, result)
		case err != nil:
			send(eventError, gin.H{"error": chatErrorText(err)})
		}
	}()

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(ev.name, ev.data)
		return true
	})
	klog.V(6).Infof("[ChatHandler] SSE 推送结束: sessionID=%s", id)
}

func streamObserver(send func(name string, data any)) ragflow.Observer {
	return ragflow.ObserverFuncs{
		NodeStart: func(node ragflow.Node) {
			send(eventStage, gin.H{"node": node, "status": "start"})
		},
		NodeEnd: func(node ragflow.Node, state *ragflow.ConversationState) {
			send(eventStage, gin.H{"node": node, "status": "end", "stage": state.Stage, "mode": state.Mode})
			if node == ragflow.NodeRetrieve {
				send(eventDocuments, state.Documents)
			}
		},
		Chunk: func(node ragflow.Node, chunk string) {
			if node == ragflow.NodeReason {
				send(eventThinking, chunk)
				return
			}
			send(eventAnswer, chunk)
		},
	}
}

func chatErrorText(err error) string {
	if errors.Is(err, ragflow.ErrRetrieverUnconfigured) {
		return ragflow.RetrieverUnconfiguredWarning
	}
	return err.Error()
}

func writeChatError(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "empty result"})
	case errors.Is(err, ragflow.ErrRetrieverUnconfigured):
		c.JSON(http.StatusConflict, gin.H{"error": ragflow.RetrieverUnconfiguredWarning})
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, service.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
