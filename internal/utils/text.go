package utils

import (
	"encoding/json"
	"strings"

	"k8s.io/klog/v2"
)

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"
)

// StripThinkTags 去掉推理模型输出中的 <think> 标记
// 推理模型配置了 </think> 作为停止词，输出通常只残留开头的 <think>
func StripThinkTags(content string) string {
	content = strings.ReplaceAll(content, thinkOpenTag, "")
	content = strings.ReplaceAll(content, thinkCloseTag, "")
	return strings.TrimSpace(content)
}

// Truncate 按字符截断文本，用于日志和调试输出
func Truncate(content string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(content)
	if len(runes) <= maxRunes {
		return content
	}
	return string(runes[:maxRunes]) + "..."
}

func ToJSON(v any) string {
	jsonData, err := json.Marshal(v)
	if err != nil {
		klog.Errorf("JSON序列化失败: %v", err)
		return ""
	}
	return string(jsonData)
}
