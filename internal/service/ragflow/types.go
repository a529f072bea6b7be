// Package ragflow 问答主流程：分类 → 检索/跳过 → 推理 → 回答
package ragflow

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/opendeepwiki/ragchat/internal/pkg/llm"
)

// Mode 分类器给出的处理模式
type Mode string

const (
	ModeUnset    Mode = "unset"    // 尚未分类
	ModeRetrieve Mode = "retrieve" // 需要检索外部文档
	ModeGenerate Mode = "generate" // 可直接生成
)

// Step 路由给出的下一步
type Step string

const (
	StepRetrieve Step = "retrieve"
	StepGenerate Step = "generate"
)

// Node 流程中的执行节点
type Node string

const (
	NodeClassify Node = "classify"
	NodeRetrieve Node = "retrieve"
	NodeReason   Node = "reason"
	NodeAnswer   Node = "answer"
)

// Generator 文本生成模型，llm.Adapter 实现了该接口
type Generator interface {
	InvokeWithSink(ctx context.Context, input []*schema.Message, sink llm.ChunkSink, opts ...model.Option) (string, error)
}

// ConversationState 单轮问答在流程中传递的状态
type ConversationState struct {
	Query     string             `json:"query"`
	Documents []*schema.Document `json:"documents"`
	Rationale string             `json:"rationale"`
	Answer    string             `json:"answer"`
	Mode      Mode               `json:"mode"`
	Stage     Stage              `json:"stage"`
	Err       error              `json:"-"`
}

// NewConversationState 创建初始状态
func NewConversationState(query string) *ConversationState {
	return &ConversationState{
		Query:     query,
		Documents: []*schema.Document{},
		Mode:      ModeUnset,
		Stage:     StageStart,
	}
}

// SetMode 设置处理模式，每轮只能设置一次
func (s *ConversationState) SetMode(mode Mode) error {
	if s.Mode != ModeUnset && s.Mode != "" {
		return &InvalidModeError{Mode: mode, Reason: "mode already set to " + string(s.Mode)}
	}
	if mode != ModeRetrieve && mode != ModeGenerate {
		return &InvalidModeError{Mode: mode, Reason: "unrecognized mode"}
	}
	s.Mode = mode
	return nil
}

// ErrorMessage 返回错误文本，无错误时为空
func (s *ConversationState) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Observer 接收流程进度，用于流式展示
type Observer interface {
	OnNodeStart(node Node)
	OnNodeEnd(node Node, state *ConversationState)
	OnChunk(node Node, chunk string)
}

// ObserverFuncs 以函数形式实现 Observer，未设置的回调会被忽略
type ObserverFuncs struct {
	NodeStart func(node Node)
	NodeEnd   func(node Node, state *ConversationState)
	Chunk     func(node Node, chunk string)
}

func (o ObserverFuncs) OnNodeStart(node Node) {
	if o.NodeStart != nil {
		o.NodeStart(node)
	}
}

func (o ObserverFuncs) OnNodeEnd(node Node, state *ConversationState) {
	if o.NodeEnd != nil {
		o.NodeEnd(node, state)
	}
}

func (o ObserverFuncs) OnChunk(node Node, chunk string) {
	if o.Chunk != nil {
		o.Chunk(node, chunk)
	}
}
