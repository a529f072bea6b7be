// Package llmtest 提供测试用的 ChatModel 替身
package llmtest

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// RespondFunc 根据输入消息决定模型输出
type RespondFunc func(input []*schema.Message) (string, error)

// FakeChatModel 可编排输出的 ChatModel，记录每次调用的消息和选项
type FakeChatModel struct {
	mu sync.Mutex

	respond   RespondFunc
	chunkSize int

	calls   [][]*schema.Message
	options []*model.Options
}

// NewFakeChatModel 创建返回固定文本的 ChatModel
func NewFakeChatModel(content string) *FakeChatModel {
	return NewFakeChatModelFunc(func([]*schema.Message) (string, error) {
		return content, nil
	})
}

// NewFakeChatModelFunc 创建由 fn 决定输出的 ChatModel
func NewFakeChatModelFunc(fn RespondFunc) *FakeChatModel {
	return &FakeChatModel{respond: fn, chunkSize: 4}
}

// NewFailingChatModel 创建总是返回错误的 ChatModel
func NewFailingChatModel(err error) *FakeChatModel {
	return NewFakeChatModelFunc(func([]*schema.Message) (string, error) {
		return "", err
	})
}

func (f *FakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	content, err := f.record(input, opts)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(content, nil), nil
}

func (f *FakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	content, err := f.record(input, opts)
	if err != nil {
		return nil, err
	}

	runes := []rune(content)
	chunks := make([]*schema.Message, 0, len(runes)/f.chunkSize+1)
	for start := 0; start < len(runes); start += f.chunkSize {
		end := start + f.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, schema.AssistantMessage(string(runes[start:end]), nil))
	}
	return schema.StreamReaderFromArray(chunks), nil
}

func (f *FakeChatModel) record(input []*schema.Message, opts []model.Option) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, input)
	f.options = append(f.options, model.GetCommonOptions(&model.Options{}, opts...))
	respond := f.respond
	f.mu.Unlock()
	return respond(input)
}

// CallCount 返回调用次数
func (f *FakeChatModel) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// LastInput 返回最后一次调用的消息
func (f *FakeChatModel) LastInput() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

// LastOptions 返回最后一次调用解析后的通用选项
func (f *FakeChatModel) LastOptions() *model.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.options) == 0 {
		return nil
	}
	return f.options[len(f.options)-1]
}

// Prompt 拼接消息内容，便于断言
func Prompt(input []*schema.Message) string {
	var s string
	for _, msg := range input {
		s += msg.Content + "\n"
	}
	return s
}
