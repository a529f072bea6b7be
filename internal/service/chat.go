package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/opendeepwiki/ragchat/internal/eventbus"
	"github.com/opendeepwiki/ragchat/internal/model"
	"github.com/opendeepwiki/ragchat/internal/service/ragflow"
	"github.com/opendeepwiki/ragchat/internal/utils"
	"k8s.io/klog/v2"
)

// 消息标题
const (
	MessageNameRetrieval = "문서 검색 결과"
	MessageNameReasoning = "추론 과정"
)

// ErrEmptyQuery 问题为空
var ErrEmptyQuery = errors.New("query is empty")

// TurnResult 一轮问答的结果
// 失败时 Error 不为空，Documents 和 Rationale 保留失败前已经得到的内容
type TurnResult struct {
	SessionID string              `json:"session_id"`
	ThreadID  string              `json:"thread_id"`
	Query     string              `json:"query"`
	Mode      ragflow.Mode        `json:"mode"`
	Stage     ragflow.Stage       `json:"stage"`
	Documents []model.Fragment    `json:"documents"`
	Rationale string              `json:"rationale,omitempty"`
	Answer    string              `json:"answer,omitempty"`
	Error     string              `json:"error,omitempty"`
	Messages  []model.ChatMessage `json:"messages"` // 本轮追加的消息
}

type ChatService struct {
	sessions *SessionManager
	bus      *eventbus.ChatEventBus
}

func NewChatService(sessions *SessionManager, bus *eventbus.ChatEventBus) *ChatService {
	return &ChatService{sessions: sessions, bus: bus}
}

// Ask 在会话中执行一轮问答并记录消息
// 会话未配置检索器时返回 ragflow.ErrRetrieverUnconfigured，不记录任何消息
// 流程失败时返回结果和错误，此时已记录用户消息和错误提示
func (s *ChatService) Ask(ctx context.Context, sessionID, query string, obs ragflow.Observer) (*TurnResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.Pipeline == nil || !session.Pipeline.HasRetriever() {
		klog.Warningf("[ChatService] 会话未配置检索器: sessionID=%s", sessionID)
		return nil, ragflow.ErrRetrieverUnconfigured
	}

	state, runErr := session.Pipeline.Run(ctx, query, obs)
	if errors.Is(runErr, ragflow.ErrRetrieverUnconfigured) {
		return nil, runErr
	}

	result := &TurnResult{
		SessionID: session.ID,
		ThreadID:  session.ThreadID,
		Query:     query,
		Mode:      state.Mode,
		Stage:     state.Stage,
		Documents: toFragments(state.Documents),
		Rationale: state.Rationale,
		Answer:    state.Answer,
	}

	msgs := []model.ChatMessage{{Role: model.RoleUser, Type: model.MessageTypeText, Content: query}}
	if runErr != nil {
		result.Error = runErr.Error()
		msgs = append(msgs, model.ChatMessage{
			Role:    model.RoleAssistant,
			Type:    model.MessageTypeText,
			Content: fmt.Sprintf("오류 발생: %v", runErr),
		})
	} else {
		msgs = append(msgs, turnMessages(result)...)
	}

	if err := s.sessions.appendMessages(session, msgs); err != nil {
		klog.Errorf("[ChatService] 消息保存失败: sessionID=%s, err=%v", sessionID, err)
		return nil, err
	}
	result.Messages = msgs

	event := eventbus.ChatEvent{
		Type:      eventbus.ChatEventTurnCompleted,
		SessionID: session.ID,
		ThreadID:  session.ThreadID,
		Mode:      string(state.Mode),
		Documents: len(state.Documents),
	}
	if runErr != nil {
		event.Type = eventbus.ChatEventTurnFailed
		event.Err = runErr
	}
	s.sessions.publish(ctx, event)

	klog.V(6).Infof("[ChatService] 问答结束: sessionID=%s, query=%s, mode=%s, stage=%s, messages=%d", sessionID, utils.Truncate(query, 50), state.Mode, state.Stage, len(msgs))
	if klog.V(8).Enabled() {
		klog.V(8).Infof("[ChatService] 问答结果: %s", utils.ToJSON(result))
	}
	return result, runErr
}

// turnMessages 成功一轮的助手消息：检索结果、推理过程、回答
func turnMessages(result *TurnResult) []model.ChatMessage {
	var msgs []model.ChatMessage
	if len(result.Documents) > 0 {
		msgs = append(msgs, model.ChatMessage{
			Role:      model.RoleAssistant,
			Type:      model.MessageTypeToolResult,
			Name:      MessageNameRetrieval,
			Content:   ragflow.BuildContext(fromFragments(result.Documents)),
			Fragments: result.Documents,
		})
	}
	if result.Rationale != "" {
		msgs = append(msgs, model.ChatMessage{
			Role:    model.RoleAssistant,
			Type:    model.MessageTypeText,
			Name:    MessageNameReasoning,
			Content: "**🧠 추론 과정:**\n" + result.Rationale,
		})
	}
	if result.Answer != "" {
		msgs = append(msgs, model.ChatMessage{
			Role:    model.RoleAssistant,
			Type:    model.MessageTypeText,
			Content: result.Answer,
		})
	}
	return msgs
}

func toFragments(docs []*schema.Document) []model.Fragment {
	fragments := make([]model.Fragment, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		fragments = append(fragments, model.Fragment{
			ID:       doc.ID,
			Content:  doc.Content,
			MetaData: doc.MetaData,
		})
	}
	return fragments
}

func fromFragments(fragments []model.Fragment) []*schema.Document {
	docs := make([]*schema.Document, 0, len(fragments))
	for _, f := range fragments {
		docs = append(docs, &schema.Document{ID: f.ID, Content: f.Content, MetaData: f.MetaData})
	}
	return docs
}
