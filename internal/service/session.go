package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/google/uuid"
	"github.com/opendeepwiki/ragchat/internal/eventbus"
	"github.com/opendeepwiki/ragchat/internal/model"
	"github.com/opendeepwiki/ragchat/internal/repository"
	"github.com/opendeepwiki/ragchat/internal/service/ragflow"
	"github.com/opendeepwiki/ragchat/internal/service/retrieval"
	"k8s.io/klog/v2"
)

// ErrSessionNotFound 会话不存在
var ErrSessionNotFound = errors.New("session not found")

// Session 一个用户会话：消息历史、线程 ID、检索器和问答流程
// 同一会话同时只处理一轮问答
type Session struct {
	ID        string
	ThreadID  string
	Messages  []model.ChatMessage
	Retriever retriever.Retriever
	Pipeline  *ragflow.Pipeline

	record *model.ChatSession
	mu     sync.Mutex
}

// DocumentInfo 配置检索器时记录的文档信息
type DocumentInfo struct {
	Name   string
	Loader string
	Chunks int
}

// SessionSnapshot 会话状态，用于调试展示
type SessionSnapshot struct {
	ID           string    `json:"id"`
	ThreadID     string    `json:"thread_id"`
	Status       string    `json:"status"`
	DocumentName string    `json:"document_name"`
	Loader       string    `json:"loader"`
	ChunkCount   int       `json:"chunk_count"`
	TurnCount    int       `json:"turn_count"`
	FailedTurns  int       `json:"failed_turns"`
	MessageCount int       `json:"message_count"`
	HasRetriever bool      `json:"has_retriever"`
	HasPipeline  bool      `json:"has_pipeline"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	sessionRepo repository.SessionRepository
	messageRepo repository.MessageRepository
	store       *retrieval.Store
	reasoning   ragflow.Generator
	answer      ragflow.Generator
	bus         *eventbus.ChatEventBus
}

func NewSessionManager(
	sessionRepo repository.SessionRepository,
	messageRepo repository.MessageRepository,
	store *retrieval.Store,
	reasoning, answer ragflow.Generator,
	bus *eventbus.ChatEventBus,
) *SessionManager {
	return &SessionManager{
		sessions:    make(map[string]*Session),
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		store:       store,
		reasoning:   reasoning,
		answer:      answer,
		bus:         bus,
	}
}

// Create 创建新会话
func (m *SessionManager) Create() (*Session, error) {
	return m.create(uuid.NewString())
}

// GetOrCreate 获取会话，不存在时以该 ID 初始化一个空会话
func (m *SessionManager) GetOrCreate(id string) (*Session, error) {
	if id == "" {
		return m.Create()
	}
	session, err := m.Get(id)
	if errors.Is(err, ErrSessionNotFound) {
		return m.create(id)
	}
	return session, err
}

// Get 获取会话，内存中没有时从数据库恢复
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[id]; ok {
		return session, nil
	}

	record, err := m.sessionRepo.Get(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	messages, err := m.messageRepo.ListBySession(id)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	if messages == nil {
		messages = []model.ChatMessage{}
	}

	session := &Session{
		ID:       record.ID,
		ThreadID: record.ThreadID,
		Messages: messages,
		record:   record,
	}
	// 已配置的会话从持久化向量库重建检索器，集合缺失时回到未配置状态
	if record.Status == model.SessionStatusReady && m.store != nil {
		if r := m.store.Retriever(id); r != nil {
			m.install(session, r)
		} else {
			klog.Warningf("[SessionManager] 会话向量集合缺失，需要重新上传文档: sessionID=%s", id)
			clearDocument(record)
			if err := m.sessionRepo.Save(record); err != nil {
				klog.Errorf("[SessionManager] 保存会话状态失败: sessionID=%s, err=%v", id, err)
			}
		}
	}
	m.sessions[id] = session
	klog.V(6).Infof("[SessionManager] 会话已恢复: sessionID=%s, messages=%d, ready=%t", id, len(messages), session.Pipeline != nil)
	return session, nil
}

func (m *SessionManager) create(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[id]; ok {
		return session, nil
	}
	record := &model.ChatSession{
		ID:       id,
		ThreadID: uuid.NewString(),
		Status:   model.SessionStatusEmpty,
	}
	if err := m.sessionRepo.Create(record); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	session := &Session{
		ID:       record.ID,
		ThreadID: record.ThreadID,
		Messages: []model.ChatMessage{},
		record:   record,
	}
	m.sessions[id] = session
	klog.V(6).Infof("[SessionManager] 会话已创建: sessionID=%s, threadID=%s", id, session.ThreadID)
	return session, nil
}

func (m *SessionManager) install(session *Session, r retriever.Retriever) {
	session.Retriever = r
	session.Pipeline = ragflow.NewPipeline(m.reasoning, m.answer, r)
}

// Configure 安装检索器并重建问答流程，同时生成新的线程 ID
func (m *SessionManager) Configure(ctx context.Context, id string, r retriever.Retriever, doc DocumentInfo) (*Session, error) {
	if r == nil {
		return nil, ragflow.ErrRetrieverUnconfigured
	}
	session, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	m.install(session, r)
	session.ThreadID = uuid.NewString()

	record := m.refresh(session)
	record.ThreadID = session.ThreadID
	record.Status = model.SessionStatusReady
	record.DocumentName = doc.Name
	record.Loader = doc.Loader
	record.ChunkCount = doc.Chunks
	if err := m.sessionRepo.Save(record); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	m.publish(ctx, eventbus.ChatEvent{
		Type:      eventbus.ChatEventSessionConfigured,
		SessionID: id,
		ThreadID:  session.ThreadID,
		Source:    doc.Name,
		Chunks:    doc.Chunks,
	})
	return session, nil
}

// Reset 清空会话：消息、检索器、问答流程和向量集合，并生成新的线程 ID
func (m *SessionManager) Reset(ctx context.Context, id string) (*Session, error) {
	session, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	// 先删向量集合再删消息，任一步失败时内存中的消息与数据库一致
	if m.store != nil {
		if err := m.store.Delete(id); err != nil {
			return nil, err
		}
	}
	session.Retriever = nil
	session.Pipeline = nil
	if err := m.messageRepo.DeleteBySession(id); err != nil {
		return nil, fmt.Errorf("delete messages: %w", err)
	}
	session.Messages = []model.ChatMessage{}
	session.ThreadID = uuid.NewString()

	record := m.refresh(session)
	record.ThreadID = session.ThreadID
	clearDocument(record)
	if err := m.sessionRepo.Save(record); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	klog.V(6).Infof("[SessionManager] 会话已重置: sessionID=%s, threadID=%s", id, session.ThreadID)
	m.publish(ctx, eventbus.ChatEvent{
		Type:      eventbus.ChatEventSessionReset,
		SessionID: id,
		ThreadID:  session.ThreadID,
	})
	return session, nil
}

// Delete 删除会话：向量集合、消息和会话记录
func (m *SessionManager) Delete(ctx context.Context, id string) error {
	session, err := m.Get(id)
	if err != nil {
		return err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if m.store != nil {
		if err := m.store.Delete(id); err != nil {
			return err
		}
	}
	session.Retriever = nil
	session.Pipeline = nil
	if err := m.messageRepo.DeleteBySession(id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	session.Messages = []model.ChatMessage{}
	if err := m.sessionRepo.Delete(id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	klog.V(6).Infof("[SessionManager] 会话已删除: sessionID=%s", id)
	return nil
}

// Snapshot 返回会话当前状态
func (m *SessionManager) Snapshot(id string) (*SessionSnapshot, error) {
	session, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	record := m.refresh(session)
	return &SessionSnapshot{
		ID:           session.ID,
		ThreadID:     session.ThreadID,
		Status:       record.Status,
		DocumentName: record.DocumentName,
		Loader:       record.Loader,
		ChunkCount:   record.ChunkCount,
		TurnCount:    record.TurnCount,
		FailedTurns:  record.FailedTurns,
		MessageCount: len(session.Messages),
		HasRetriever: session.Retriever != nil,
		HasPipeline:  session.Pipeline != nil,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}, nil
}

// Messages 返回会话消息历史的副本
func (m *SessionManager) Messages(id string) ([]model.ChatMessage, error) {
	session, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return append([]model.ChatMessage(nil), session.Messages...), nil
}

// List 列出所有会话记录
func (m *SessionManager) List() ([]model.ChatSession, error) {
	return m.sessionRepo.List()
}

// refresh 重新读取会话记录
// 轮次计数由事件订阅者直接写库，保存前以数据库为准，避免覆盖
func (m *SessionManager) refresh(session *Session) *model.ChatSession {
	if stored, err := m.sessionRepo.Get(session.ID); err == nil {
		session.record = stored
	}
	return session.record
}

// appendMessages 持久化并追加消息，调用方需持有 session.mu
func (m *SessionManager) appendMessages(session *Session, msgs []model.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	for i := range msgs {
		msgs[i].SessionID = session.ID
		msgs[i].ThreadID = session.ThreadID
	}
	if err := m.messageRepo.CreateBatch(msgs); err != nil {
		return fmt.Errorf("save messages: %w", err)
	}
	session.Messages = append(session.Messages, msgs...)
	return nil
}

func clearDocument(record *model.ChatSession) {
	record.Status = model.SessionStatusEmpty
	record.DocumentName = ""
	record.Loader = ""
	record.ChunkCount = 0
}

func (m *SessionManager) publish(ctx context.Context, event eventbus.ChatEvent) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(ctx, event.Type, event); err != nil {
		klog.Warningf("[SessionManager] 事件处理失败: type=%s, sessionID=%s, err=%v", event.Type, event.SessionID, err)
	}
}
