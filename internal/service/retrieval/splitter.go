package retrieval

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

const (
	defaultChunkSize    = 500
	defaultChunkOverlap = 50
)

// 按段落、换行、句末标点、空格的顺序递归切分
var chunkSeparators = []string{"\n\n", "\n", "。", ". ", "? ", "! ", ".", "?", "!", " "}

// Splitter 把分页文本切分为片段，基于 eino 递归切分器
type Splitter struct {
	Size        int // 单块最大字符数（按 rune 计）
	Overlap     int // 相邻块重叠的字符数
	transformer document.Transformer
}

// NewSplitter 创建切分器，非法参数使用默认值
func NewSplitter(ctx context.Context, size, overlap int) (*Splitter, error) {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	transformer, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   size,
		OverlapSize: overlap,
		Separators:  chunkSeparators,
		LenFunc:     utf8.RuneCountInString,
		KeepType:    recursive.KeepTypeEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("create splitter: %w", err)
	}
	return &Splitter{Size: size, Overlap: overlap, transformer: transformer}, nil
}

// Split 切分所有页面，返回的片段保持页面顺序，MetaData 带有页码
func (s *Splitter) Split(ctx context.Context, source string, pages []Page) ([]*schema.Document, error) {
	var chunks []*schema.Document
	for _, page := range pages {
		content := strings.TrimSpace(page.Content)
		if content == "" {
			continue
		}
		doc := &schema.Document{
			ID:       fmt.Sprintf("%s_p%d", source, page.Number),
			Content:  content,
			MetaData: map[string]any{MetaPage: page.Number},
		}

		// 整页不超过块大小时不再切分
		if utf8.RuneCountInString(content) <= s.Size {
			chunks = append(chunks, doc)
			continue
		}
		parts, err := s.transformer.Transform(ctx, []*schema.Document{doc})
		if err != nil {
			return nil, fmt.Errorf("split page %d: %w", page.Number, err)
		}
		for _, part := range parts {
			if part == nil || strings.TrimSpace(part.Content) == "" {
				continue
			}
			chunks = append(chunks, &schema.Document{
				ID:       part.ID,
				Content:  strings.TrimSpace(part.Content),
				MetaData: map[string]any{MetaPage: page.Number},
			})
		}
	}
	return chunks, nil
}
