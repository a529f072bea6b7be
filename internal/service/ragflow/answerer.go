package ragflow

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/opendeepwiki/ragchat/internal/pkg/llm"
	"k8s.io/klog/v2"
)

// Answerer 生成最终回答
type Answerer struct {
	model     Generator
	templates *Templates
}

func NewAnswerer(model Generator, templates *Templates) *Answerer {
	return &Answerer{model: model, templates: templates}
}

// Answer 结合推理过程和文档生成回答，温度固定为 0
func (a *Answerer) Answer(ctx context.Context, query, rationale string, docs []*schema.Document, sink llm.ChunkSink) (string, error) {
	klog.V(6).Infof("[Answerer] 回答生成开始: documents=%d, rationaleLength=%d", len(docs), len(rationale))

	messages, err := formatAnswer(ctx, a.templates, query, rationale, BuildContext(docs))
	if err != nil {
		return "", &GenerationError{Node: NodeAnswer, Err: err}
	}

	answer, err := a.model.InvokeWithSink(ctx, messages, sink, model.WithTemperature(0))
	if err != nil {
		return "", &GenerationError{Node: NodeAnswer, Err: err}
	}

	klog.V(6).Infof("[Answerer] 回答生成完成: length=%d", len(answer))
	return answer, nil
}
