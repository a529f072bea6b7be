package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/opendeepwiki/ragchat/config"
	"github.com/opendeepwiki/ragchat/internal/service/retrieval"
	"k8s.io/klog/v2"
)

// ErrInvalidFilename 文件名不合法
var ErrInvalidFilename = errors.New("invalid filename")

// UploadResult 文档上传并建立索引后的结果
type UploadResult struct {
	SessionID    string `json:"session_id"`
	ThreadID     string `json:"thread_id"`
	DocumentName string `json:"document_name"`
	Loader       string `json:"loader"`
	Pages        int    `json:"pages"`
	Chunks       int    `json:"chunks"`
}

// DocumentService 保存上传文件、建立向量索引并为会话配置检索器
type DocumentService struct {
	cfg      *config.Config
	store    *retrieval.Store
	sessions *SessionManager
}

func NewDocumentService(cfg *config.Config, store *retrieval.Store, sessions *SessionManager) *DocumentService {
	return &DocumentService{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
	}
}

// Upload 处理一次文档上传
// loaderName 为空时按扩展名选择加载器
func (s *DocumentService) Upload(ctx context.Context, sessionID, filename, loaderName string, content io.Reader) (*UploadResult, error) {
	if _, err := s.sessions.Get(sessionID); err != nil {
		return nil, err
	}

	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, ErrInvalidFilename
	}
	loader, err := retrieval.LoaderFor(loaderName, name)
	if err != nil {
		return nil, err
	}

	path, err := s.save(sessionID, name, content)
	if err != nil {
		return nil, err
	}
	klog.V(6).Infof("[DocumentService] 文件已保存: sessionID=%s, path=%s", sessionID, path)

	pages, err := loader.Load(ctx, path)
	if err != nil {
		klog.Errorf("[DocumentService] 文档加载失败: sessionID=%s, file=%s, err=%v", sessionID, name, err)
		return nil, fmt.Errorf("load document: %w", err)
	}

	chunks, err := s.store.Index(ctx, sessionID, name, loader.Name(), pages)
	if err != nil {
		klog.Errorf("[DocumentService] 建立索引失败: sessionID=%s, file=%s, err=%v", sessionID, name, err)
		return nil, fmt.Errorf("index document: %w", err)
	}

	r := s.store.Retriever(sessionID)
	if r == nil {
		return nil, fmt.Errorf("collection for session %s not found after indexing", sessionID)
	}
	session, err := s.sessions.Configure(ctx, sessionID, r, DocumentInfo{
		Name:   name,
		Loader: loader.Name(),
		Chunks: chunks,
	})
	if err != nil {
		return nil, err
	}

	klog.V(6).Infof("[DocumentService] 会话配置完成: sessionID=%s, file=%s, pages=%d, chunks=%d", sessionID, name, len(pages), chunks)
	return &UploadResult{
		SessionID:    sessionID,
		ThreadID:     session.ThreadID,
		DocumentName: name,
		Loader:       loader.Name(),
		Pages:        len(pages),
		Chunks:       chunks,
	}, nil
}

func (s *DocumentService) save(sessionID, name string, content io.Reader) (string, error) {
	dir := filepath.Join(s.cfg.Data.UploadDir, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return path, nil
}
