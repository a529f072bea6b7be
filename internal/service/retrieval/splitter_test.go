package retrieval

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reportSentences = []string{
	"첫 번째 문장입니다.",
	"두 번째 문장입니다.",
	"세 번째 문장입니다.",
	"네 번째 문장입니다.",
	"다섯 번째 문장입니다.",
	"여섯 번째 문장입니다.",
}

func contents(t *testing.T, s *Splitter, pages []Page) []string {
	t.Helper()
	docs, err := s.Split(context.Background(), "report.txt", pages)
	require.NoError(t, err)
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Content)
	}
	return out
}

func TestSplitterShortPageSingleChunk(t *testing.T) {
	s, err := NewSplitter(context.Background(), 100, 10)
	require.NoError(t, err)

	docs, err := s.Split(context.Background(), "a.txt", []Page{
		{Number: 1, Content: "  짧은 문장.  "},
		{Number: 2, Content: "   "},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "짧은 문장.", docs[0].Content)
	assert.Equal(t, 1, docs[0].MetaData[MetaPage])
}

func TestSplitterRespectsSizeAndKeepsOrder(t *testing.T) {
	s, err := NewSplitter(context.Background(), 30, 0)
	require.NoError(t, err)

	chunks := contents(t, s, []Page{{Number: 1, Content: strings.Join(reportSentences, " ")}})
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 30, "chunk=%q", chunk)
	}

	// 每个句子都出现，且出现顺序与原文一致
	joined := strings.Join(chunks, "\n")
	last := -1
	for _, sentence := range reportSentences {
		idx := strings.Index(joined, sentence)
		require.GreaterOrEqual(t, idx, 0, "missing %q", sentence)
		assert.Greater(t, idx, last)
		last = idx
	}
	assert.True(t, strings.HasPrefix(chunks[0], reportSentences[0]))
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], reportSentences[len(reportSentences)-1]))
}

func TestSplitterOverlapRepeatsTail(t *testing.T) {
	s, err := NewSplitter(context.Background(), 30, 15)
	require.NoError(t, err)

	chunks := contents(t, s, []Page{{Number: 1, Content: strings.Join(reportSentences, " ")}})
	require.Greater(t, len(chunks), 1)

	shared := false
	for i := 1; i < len(chunks); i++ {
		for _, sentence := range reportSentences {
			if strings.Contains(chunks[i-1], sentence) && strings.Contains(chunks[i], sentence) {
				shared = true
			}
		}
	}
	assert.True(t, shared, "相邻片段应有重叠: %q", chunks)
}

func TestSplitterKeepsPageNumbers(t *testing.T) {
	s, err := NewSplitter(context.Background(), 30, 0)
	require.NoError(t, err)

	docs, err := s.Split(context.Background(), "report.pdf", []Page{
		{Number: 2, Content: strings.Join(reportSentences[:3], " ")},
		{Number: 5, Content: "마지막 페이지."},
	})
	require.NoError(t, err)
	require.Greater(t, len(docs), 2)
	assert.Equal(t, 2, docs[0].MetaData[MetaPage])
	assert.Equal(t, 5, docs[len(docs)-1].MetaData[MetaPage])
	assert.Equal(t, "마지막 페이지.", docs[len(docs)-1].Content)
}

func TestNewSplitterDefaults(t *testing.T) {
	s, err := NewSplitter(context.Background(), 0, -1)
	require.NoError(t, err)
	assert.Equal(t, defaultChunkSize, s.Size)
	assert.Equal(t, 0, s.Overlap)

	s, err = NewSplitter(context.Background(), 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Overlap)
}
