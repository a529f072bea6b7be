package repository

import (
	"errors"

	"github.com/opendeepwiki/ragchat/internal/model"
)

// ErrNotFound 记录不存在错误
var ErrNotFound = errors.New("record not found")

type SessionRepository interface {
	Create(session *model.ChatSession) error
	Get(id string) (*model.ChatSession, error)
	List() ([]model.ChatSession, error)
	Save(session *model.ChatSession) error
	IncrementTurns(id string, failed bool) error
	Delete(id string) error
}

type MessageRepository interface {
	CreateBatch(msgs []model.ChatMessage) error
	ListBySession(sessionID string) ([]model.ChatMessage, error)
	DeleteBySession(sessionID string) error
}
