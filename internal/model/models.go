package model

import (
	"time"

	"gorm.io/gorm"
)

// Session status
const (
	SessionStatusEmpty = "empty" // 未上传文档
	SessionStatusReady = "ready" // 检索器已配置
)

// Message role
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message type
const (
	MessageTypeText       = "text"
	MessageTypeToolResult = "tool_result"
)

type ChatSession struct {
	ID           string    `json:"id" gorm:"primaryKey;size:64"`
	ThreadID     string    `json:"thread_id" gorm:"size:64;index"`
	Status       string    `json:"status" gorm:"size:20;default:empty"` // empty, ready
	DocumentName string    `json:"document_name" gorm:"size:255"`
	Loader       string    `json:"loader" gorm:"size:50"`
	ChunkCount   int       `json:"chunk_count" gorm:"default:0"`
	TurnCount    int       `json:"turn_count" gorm:"default:0"`
	FailedTurns  int       `json:"failed_turns" gorm:"default:0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChatMessage 会话中的一条消息，只追加不修改
type ChatMessage struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	SessionID string     `json:"session_id" gorm:"size:64;index;not null"`
	ThreadID  string     `json:"thread_id" gorm:"size:64;index"`
	Role      string     `json:"role" gorm:"size:20;not null"`     // user, assistant
	Type      string     `json:"type" gorm:"size:20;default:text"` // text, tool_result
	Name      string     `json:"name,omitempty" gorm:"size:100"`   // 展示用标题，如 "문서 검색 결과"
	Content   string     `json:"content" gorm:"type:text"`
	Fragments []Fragment `json:"fragments,omitempty" gorm:"serializer:json"` // tool_result 消息携带的检索片段
	CreatedAt time.Time  `json:"created_at"`
}

// Fragment 检索到的文档片段
type Fragment struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	MetaData map[string]any `json:"metadata,omitempty"`
}

// BeforeCreate GORM 钩子：默认消息类型为 text
func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.Type == "" {
		m.Type = MessageTypeText
	}
	return nil
}
