package ragflow

import (
	"k8s.io/klog/v2"
)

// Stage 单轮问答所处的阶段
type Stage string

const (
	StageStart      Stage = "start"
	StageClassified Stage = "classified"
	StageRetrieved  Stage = "retrieved"
	StageSkipped    Stage = "skipped"
	StageReasoned   Stage = "reasoned"
	StageAnswered   Stage = "answered"
	StageDone       Stage = "done"
	StageError      Stage = "error"
)

// StageTransition 定义阶段迁移
type StageTransition struct {
	From Stage
	To   Stage
}

// StateMachine 流程状态机
// 只有一个分支点（分类之后），没有回环
type StateMachine struct {
	allowedTransitions map[StageTransition]bool
}

// NewStateMachine 创建流程状态机
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		allowedTransitions: make(map[StageTransition]bool),
	}

	// start -> classified -> retrieved|skipped -> reasoned -> answered -> done
	transitions := []StageTransition{
		{StageStart, StageClassified},
		{StageClassified, StageRetrieved},
		{StageClassified, StageSkipped},
		{StageRetrieved, StageReasoned},
		{StageSkipped, StageReasoned},
		{StageReasoned, StageAnswered},
		{StageAnswered, StageDone},
	}
	for _, t := range transitions {
		sm.allowedTransitions[t] = true
	}

	return sm
}

// CanTransition 检查阶段迁移是否合法
// 任何非终止阶段都可以进入 error
func (sm *StateMachine) CanTransition(from, to Stage) bool {
	if from == to {
		return false
	}
	if to == StageError {
		return !IsTerminal(from)
	}
	return sm.allowedTransitions[StageTransition{From: from, To: to}]
}

// ValidateTransition 验证阶段迁移并返回错误
func (sm *StateMachine) ValidateTransition(from, to Stage) error {
	if !sm.CanTransition(from, to) {
		return &InvalidStateTransitionError{From: from, To: to}
	}
	return nil
}

// Advance 迁移状态到下一阶段
func (sm *StateMachine) Advance(state *ConversationState, to Stage) error {
	if err := sm.ValidateTransition(state.Stage, to); err != nil {
		klog.Warningf("[Pipeline] 阶段迁移被拒绝: %s -> %s, error=%v", state.Stage, to, err)
		return err
	}
	klog.V(6).Infof("[Pipeline] 阶段迁移: %s -> %s", state.Stage, to)
	state.Stage = to
	return nil
}

// IsTerminal 判断阶段是否为终止态
func IsTerminal(stage Stage) bool {
	return stage == StageDone || stage == StageError
}
