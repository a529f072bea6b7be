package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opendeepwiki/ragchat/internal/service"
	"github.com/opendeepwiki/ragchat/internal/service/retrieval"
	"k8s.io/klog/v2"
)

type DocumentHandler struct {
	documents *service.DocumentService
}

func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Upload 上传文档并为会话配置检索器
// multipart 字段: file 文件, loader 可选（pdf / text）
func (h *DocumentHandler) Upload(c *gin.Context) {
	id := c.Param("id")
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	result, err := h.documents.Upload(c.Request.Context(), id, header.Filename, c.PostForm("loader"), file)
	if err != nil {
		klog.Errorf("[DocumentHandler] 文档上传失败: sessionID=%s, file=%s, err=%v", id, header.Filename, err)
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		case errors.Is(err, service.ErrInvalidFilename), errors.Is(err, retrieval.ErrUnsupportedDocument):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, retrieval.ErrEmptyDocument):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
