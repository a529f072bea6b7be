package subscriber

import (
	"context"

	"github.com/opendeepwiki/ragchat/internal/eventbus"
	"github.com/opendeepwiki/ragchat/internal/repository"
	"k8s.io/klog/v2"
)

// ChatEventSubscriber 维护会话统计并记录对话事件
type ChatEventSubscriber struct {
	sessionRepo repository.SessionRepository
}

func NewChatEventSubscriber(sessionRepo repository.SessionRepository) *ChatEventSubscriber {
	return &ChatEventSubscriber{sessionRepo: sessionRepo}
}

func (s *ChatEventSubscriber) Register(bus *eventbus.ChatEventBus) {
	if bus == nil {
		return
	}
	bus.Subscribe(eventbus.ChatEventTurnCompleted, s.handleTurnCompleted)
	bus.Subscribe(eventbus.ChatEventTurnFailed, s.handleTurnFailed)
	bus.Subscribe(eventbus.ChatEventSessionConfigured, s.handleSessionConfigured)
	bus.Subscribe(eventbus.ChatEventSessionReset, s.handleSessionReset)
}

func (s *ChatEventSubscriber) handleTurnCompleted(ctx context.Context, event eventbus.ChatEvent) error {
	if err := s.sessionRepo.IncrementTurns(event.SessionID, false); err != nil {
		klog.Errorf("[ChatEvent] 更新会话轮次失败: sessionID=%s, err=%v", event.SessionID, err)
		return err
	}
	klog.V(6).Infof("[ChatEvent] 对话完成: sessionID=%s, threadID=%s, mode=%s, documents=%d", event.SessionID, event.ThreadID, event.Mode, event.Documents)
	return nil
}

func (s *ChatEventSubscriber) handleTurnFailed(ctx context.Context, event eventbus.ChatEvent) error {
	if err := s.sessionRepo.IncrementTurns(event.SessionID, true); err != nil {
		klog.Errorf("[ChatEvent] 更新会话轮次失败: sessionID=%s, err=%v", event.SessionID, err)
		return err
	}
	klog.Warningf("[ChatEvent] 对话失败: sessionID=%s, threadID=%s, err=%v", event.SessionID, event.ThreadID, event.Err)
	return nil
}

func (s *ChatEventSubscriber) handleSessionConfigured(ctx context.Context, event eventbus.ChatEvent) error {
	klog.V(6).Infof("[ChatEvent] 会话已配置: sessionID=%s, source=%s, chunks=%d", event.SessionID, event.Source, event.Chunks)
	return nil
}

func (s *ChatEventSubscriber) handleSessionReset(ctx context.Context, event eventbus.ChatEvent) error {
	klog.V(6).Infof("[ChatEvent] 会话已重置: sessionID=%s, threadID=%s", event.SessionID, event.ThreadID)
	return nil
}
