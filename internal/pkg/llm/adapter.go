package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/opendeepwiki/ragchat/config"
	"github.com/opendeepwiki/ragchat/internal/utils"
	"k8s.io/klog/v2"
)

// ChunkSink 接收流式输出的文本片段
type ChunkSink func(chunk string)

// Adapter 文本生成模型适配器
// 同一个 Adapter 既可以一次性调用，也可以消费流式输出并拼接成完整文本
type Adapter struct {
	name       string
	chatModel  model.BaseChatModel
	cfg        config.ModelConfig
	stripThink bool
}

// NewAdapter 创建模型适配器
// name: 适配器名称，仅用于日志（reasoning / answer）
// chatModel: Eino ChatModel 实例
// cfg: 生成参数
func NewAdapter(name string, chatModel model.BaseChatModel, cfg config.ModelConfig) *Adapter {
	stripThink := false
	for _, stop := range cfg.Stop {
		if strings.Contains(stop, "think>") {
			stripThink = true
			break
		}
	}
	return &Adapter{
		name:       name,
		chatModel:  chatModel,
		cfg:        cfg,
		stripThink: stripThink,
	}
}

// Name 返回适配器名称
func (a *Adapter) Name() string {
	return a.name
}

// Streaming 是否以流式方式调用模型
func (a *Adapter) Streaming() bool {
	return a.cfg.Stream
}

// Invoke 同步调用模型并返回完整文本
func (a *Adapter) Invoke(ctx context.Context, input []*schema.Message, opts ...model.Option) (string, error) {
	return a.InvokeWithSink(ctx, input, nil, opts...)
}

// InvokeWithSink 调用模型，流式模式下每个片段同时转发给 sink
// 无论是否流式，返回值都是拼接后的完整文本
func (a *Adapter) InvokeWithSink(ctx context.Context, input []*schema.Message, sink ChunkSink, opts ...model.Option) (string, error) {
	callOpts := append(a.baseOptions(), opts...)
	klog.V(6).Infof("[LLM:%s] 调用开始: model=%s, stream=%v, messageCount=%d", a.name, a.cfg.Model, a.cfg.Stream, len(input))
	for i, msg := range input {
		klog.V(8).Infof("[LLM:%s]   Message[%d]: role=%s, content=%s", a.name, i, msg.Role, msg.Content)
	}

	var (
		content string
		err     error
	)
	if a.cfg.Stream {
		content, err = a.stream(ctx, input, sink, callOpts)
	} else {
		content, err = a.generate(ctx, input, sink, callOpts)
	}
	if err != nil {
		klog.Errorf("[LLM:%s] 调用失败: %v", a.name, err)
		return "", err
	}

	if a.stripThink {
		content = utils.StripThinkTags(content)
	}
	klog.V(6).Infof("[LLM:%s] 调用完成: responseLength=%d", a.name, len(content))
	return content, nil
}

func (a *Adapter) generate(ctx context.Context, input []*schema.Message, sink ChunkSink, opts []model.Option) (string, error) {
	resp, err := a.chatModel.Generate(ctx, input, opts...)
	if err != nil {
		return "", fmt.Errorf("%s model generate failed: %w", a.name, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%s model returned no message", a.name)
	}
	content := messageText(resp)
	if sink != nil && content != "" {
		if a.stripThink {
			content = utils.StripThinkTags(content)
		}
		sink(content)
	}
	return content, nil
}

func (a *Adapter) stream(ctx context.Context, input []*schema.Message, sink ChunkSink, opts []model.Option) (string, error) {
	reader, err := a.chatModel.Stream(ctx, input, opts...)
	if err != nil {
		return "", fmt.Errorf("%s model stream failed: %w", a.name, err)
	}
	defer reader.Close()

	var content strings.Builder
	var reasoning strings.Builder
	var filter thinkFilter
	for {
		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%s model stream recv failed: %w", a.name, err)
		}
		if chunk == nil {
			continue
		}
		reasoning.WriteString(chunk.ReasoningContent)
		if chunk.Content == "" {
			continue
		}
		content.WriteString(chunk.Content)
		if sink == nil {
			continue
		}
		if !a.stripThink {
			sink(chunk.Content)
		} else if text := filter.push(chunk.Content); text != "" {
			sink(text)
		}
	}
	if sink != nil && a.stripThink {
		if text := filter.flush(); text != "" {
			sink(text)
		}
	}

	// 部分运行器把推理内容放在 reasoning_content 中，正文为空时使用它
	if content.Len() == 0 && reasoning.Len() > 0 {
		if sink != nil {
			sink(reasoning.String())
		}
		return reasoning.String(), nil
	}
	return content.String(), nil
}

func (a *Adapter) baseOptions() []model.Option {
	var opts []model.Option
	if a.cfg.Temperature != nil {
		opts = append(opts, model.WithTemperature(*a.cfg.Temperature))
	}
	if len(a.cfg.Stop) > 0 {
		opts = append(opts, model.WithStop(a.cfg.Stop))
	}
	if a.cfg.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(a.cfg.MaxTokens))
	}
	return opts
}

var thinkTags = []string{"<think>", "</think>"}

// thinkFilter 在累计文本上去除 think 标签，标签可能被拆到多个片段中
// 末尾可能是半个标签或空白的部分先不输出，拼接结果与 StripThinkTags 一致
type thinkFilter struct {
	raw  strings.Builder
	sent int
}

func (f *thinkFilter) push(chunk string) string {
	f.raw.WriteString(chunk)
	return f.next(false)
}

func (f *thinkFilter) flush() string {
	return f.next(true)
}

func (f *thinkFilter) next(final bool) string {
	cleaned := f.raw.String()
	for _, tag := range thinkTags {
		cleaned = strings.ReplaceAll(cleaned, tag, "")
	}
	cleaned = strings.TrimLeftFunc(cleaned, unicode.IsSpace)

	end := len(cleaned)
	if !final {
		end -= partialTagSuffix(cleaned)
	}
	end = len(strings.TrimRightFunc(cleaned[:end], unicode.IsSpace))
	if end <= f.sent {
		return ""
	}
	text := cleaned[f.sent:end]
	f.sent = end
	return text
}

// partialTagSuffix 返回 s 末尾可能是标签前缀的最长长度
func partialTagSuffix(s string) int {
	longest := 0
	for _, tag := range thinkTags {
		for n := len(tag) - 1; n > longest; n-- {
			if strings.HasSuffix(s, tag[:n]) {
				longest = n
				break
			}
		}
	}
	return longest
}

func messageText(msg *schema.Message) string {
	if msg.Content == "" && msg.ReasoningContent != "" {
		return msg.ReasoningContent
	}
	return msg.Content
}
