package ragflow

import (
	"context"
	"strings"

	"k8s.io/klog/v2"
)

// Classifier 判断问题是否需要检索外部文档
type Classifier struct {
	model     Generator
	templates *Templates
}

// NewClassifier 创建分类器，使用推理模型
func NewClassifier(model Generator, templates *Templates) *Classifier {
	return &Classifier{model: model, templates: templates}
}

// Classify 调用模型并解析模式
// 输出中包含 retrieve（忽略大小写）即为检索模式，其余任何输出（包括空输出）都按直接生成处理
func (c *Classifier) Classify(ctx context.Context, query string) (Mode, error) {
	klog.V(6).Infof("[Classifier] 问题分类开始: query=%s", query)

	messages, err := formatClassify(ctx, c.templates, query)
	if err != nil {
		return ModeUnset, &ClassificationError{Err: err}
	}

	output, err := c.model.InvokeWithSink(ctx, messages, nil)
	if err != nil {
		return ModeUnset, &ClassificationError{Err: err}
	}

	mode := ParseMode(output)
	klog.V(6).Infof("[Classifier] 问题分类完成: output=%q, mode=%s", output, mode)
	return mode, nil
}

// ParseMode 将分类模型输出映射为模式
func ParseMode(output string) Mode {
	if strings.Contains(strings.ToLower(output), string(ModeRetrieve)) {
		return ModeRetrieve
	}
	return ModeGenerate
}
