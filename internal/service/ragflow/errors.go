package ragflow

import (
	"errors"
	"fmt"
)

// RetrieverUnconfiguredWarning 未配置检索器时展示给用户的提示
const RetrieverUnconfiguredWarning = "PDF 파일을 업로드하고 설정을 완료해주세요."

var (
	// ErrRetrieverUnconfigured 未配置检索器
	ErrRetrieverUnconfigured = errors.New("retriever is not configured")
	// ErrInvalidState 流程状态不合法，属于内部不变量被破坏
	ErrInvalidState = errors.New("invalid pipeline state")
)

// ClassificationError 分类模型调用失败
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// GenerationError 推理或回答模型调用失败
type GenerationError struct {
	Node Node
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Node, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// InvalidModeError 处理模式不在 retrieve / generate 之内
type InvalidModeError struct {
	Mode   Mode
	Reason string
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid mode %q: %s", e.Mode, e.Reason)
}

func (e *InvalidModeError) Is(target error) bool {
	return target == ErrInvalidState
}

// InvalidStateTransitionError 无效的状态迁移错误
type InvalidStateTransitionError struct {
	From Stage
	To   Stage
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid pipeline state transition: %s -> %s", e.From, e.To)
}

func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidState
}
