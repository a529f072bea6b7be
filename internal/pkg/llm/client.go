package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/opendeepwiki/ragchat/config"
	"k8s.io/klog/v2"
)

const requestTimeout = 5 * time.Minute

// NewChatModel 创建 OpenAI 兼容的 ChatModel
// 本地模型运行器（如 Ollama）通过 /v1 暴露 OpenAI 兼容接口
func NewChatModel(ctx context.Context, llmCfg config.LLMConfig, modelCfg config.ModelConfig) (*openai.ChatModel, error) {
	klog.V(6).Infof("[LLMChatModel] 创建 ChatModel: model=%s, baseURL=%s", modelCfg.Model, llmCfg.APIURL)

	chatCfg := &openai.ChatModelConfig{
		BaseURL: llmCfg.APIURL,
		APIKey:  llmCfg.APIKey,
		Model:   modelCfg.Model,
		Timeout: requestTimeout,
	}
	if modelCfg.Temperature != nil {
		temperature := *modelCfg.Temperature
		chatCfg.Temperature = &temperature
	}
	if len(modelCfg.Stop) > 0 {
		chatCfg.Stop = modelCfg.Stop
	}
	if modelCfg.MaxTokens > 0 {
		maxTokens := modelCfg.MaxTokens
		chatCfg.MaxTokens = &maxTokens
	}

	chatModel, err := openai.NewChatModel(ctx, chatCfg)
	if err != nil {
		klog.Errorf("[LLMChatModel] 创建 ChatModel 失败: model=%s, err=%v", modelCfg.Model, err)
		return nil, err
	}

	klog.V(6).Infof("[LLMChatModel] ChatModel 创建成功: model=%s", modelCfg.Model)
	return chatModel, nil
}

// Adapters 推理模型与回答模型
type Adapters struct {
	Reasoning *Adapter
	Answer    *Adapter
}

// NewAdapters 按配置创建两个模型适配器
func NewAdapters(ctx context.Context, cfg *config.Config) (*Adapters, error) {
	reasoningModel, err := NewChatModel(ctx, cfg.LLM, cfg.LLM.Reasoning)
	if err != nil {
		return nil, fmt.Errorf("create reasoning model: %w", err)
	}
	answerModel, err := NewChatModel(ctx, cfg.LLM, cfg.LLM.Answer)
	if err != nil {
		return nil, fmt.Errorf("create answer model: %w", err)
	}
	return &Adapters{
		Reasoning: NewAdapter("reasoning", reasoningModel, cfg.LLM.Reasoning),
		Answer:    NewAdapter("answer", answerModel, cfg.LLM.Answer),
	}, nil
}
