package ragflow

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// 模板变量名
const (
	varQuery    = "query"
	varContext  = "context"
	varThinking = "thinking"
)

const classifyPrompt = `다음 사용자 질문이 외부 문서의 정보가 필요한지 판단하세요.

- 특정 문서, 보고서, 사용자 업로드 파일, 수치, 통계, 날짜 등 **문서 기반 정보가 필요한 경우**: 'retrieve'
- 일반 상식, 대화, 감정, 일상적인 질문처럼 **문서 없이도 대답 가능한 경우**: 'generate'

오직 아래 두 단어 중 하나만 출력하세요: retrieve 또는 generate
그 외 문장은 절대 출력하지 마세요.

사용자 질문: {query}

판단:`

const reasoningPrompt = `주어진 문서를 활용하여 사용자의 질문에 가장 적절한 답변을 작성해주세요.
문서가 없다면 일반적인 지식으로 답변을 시도하세요.

질문: {query}

문서 내용:
{context}


상세 추론:`

const answerPrompt = `사용자 질문에 한글로 답변하세요. 제공된 문서와 추론 과정이 있다면, 최대한 활용하세요.
문서나 추론 과정이 부족하더라도 사용자 질문에 자연스럽게 답변하세요.

질문: {query}

추론 과정:
{thinking}

문서 내용:
{context}

답변:`

// Templates 流程使用的三个提示词模板
type Templates struct {
	Classify  prompt.ChatTemplate
	Reasoning prompt.ChatTemplate
	Answer    prompt.ChatTemplate
}

// DefaultTemplates 返回内置模板
func DefaultTemplates() *Templates {
	return &Templates{
		Classify:  prompt.FromMessages(schema.FString, schema.UserMessage(classifyPrompt)),
		Reasoning: prompt.FromMessages(schema.FString, schema.UserMessage(reasoningPrompt)),
		Answer:    prompt.FromMessages(schema.FString, schema.UserMessage(answerPrompt)),
	}
}

// BuildContext 按顺序拼接片段内容，片段之间空一行
func BuildContext(docs []*schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		parts = append(parts, doc.Content)
	}
	return strings.Join(parts, "\n\n")
}

func formatClassify(ctx context.Context, t *Templates, query string) ([]*schema.Message, error) {
	return t.Classify.Format(ctx, map[string]any{
		varQuery: query,
	})
}

func formatReasoning(ctx context.Context, t *Templates, query, docContext string) ([]*schema.Message, error) {
	return t.Reasoning.Format(ctx, map[string]any{
		varQuery:   query,
		varContext: docContext,
	})
}

func formatAnswer(ctx context.Context, t *Templates, query, thinking, docContext string) ([]*schema.Message, error) {
	return t.Answer.Format(ctx, map[string]any{
		varQuery:    query,
		varThinking: thinking,
		varContext:  docContext,
	})
}
