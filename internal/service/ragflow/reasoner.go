package ragflow

import (
	"context"

	"github.com/cloudwego/eino/schema"
	"github.com/opendeepwiki/ragchat/internal/pkg/llm"
	"k8s.io/klog/v2"
)

// Reasoner 基于问题和检索片段生成中间推理
type Reasoner struct {
	model     Generator
	templates *Templates
}

func NewReasoner(model Generator, templates *Templates) *Reasoner {
	return &Reasoner{model: model, templates: templates}
}

// Reason 生成推理过程；没有文档时由提示词要求模型使用常识
func (r *Reasoner) Reason(ctx context.Context, query string, docs []*schema.Document, sink llm.ChunkSink) (string, error) {
	klog.V(6).Infof("[Reasoner] 推理开始: documents=%d", len(docs))

	messages, err := formatReasoning(ctx, r.templates, query, BuildContext(docs))
	if err != nil {
		return "", &GenerationError{Node: NodeReason, Err: err}
	}

	rationale, err := r.model.InvokeWithSink(ctx, messages, sink)
	if err != nil {
		return "", &GenerationError{Node: NodeReason, Err: err}
	}

	klog.V(6).Infof("[Reasoner] 推理完成: length=%d", len(rationale))
	return rationale, nil
}
