package ragflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachineHappyPaths(t *testing.T) {
	sm := NewStateMachine()

	for _, branch := range []Stage{StageRetrieved, StageSkipped} {
		state := NewConversationState("q")
		for _, to := range []Stage{StageClassified, branch, StageReasoned, StageAnswered, StageDone} {
			require.NoError(t, sm.Advance(state, to))
		}
		assert.Equal(t, StageDone, state.Stage)
	}
}

func TestStateMachineRejectsSkipsAndCycles(t *testing.T) {
	sm := NewStateMachine()

	assert.False(t, sm.CanTransition(StageStart, StageReasoned), "不能跳过分类")
	assert.False(t, sm.CanTransition(StageClassified, StageReasoned), "分类后必须先检索或跳过")
	assert.False(t, sm.CanTransition(StageReasoned, StageClassified), "不允许回环")
	assert.False(t, sm.CanTransition(StageRetrieved, StageSkipped))
	assert.False(t, sm.CanTransition(StageDone, StageDone))

	err := sm.ValidateTransition(StageAnswered, StageRetrieved)
	var transitionErr *InvalidStateTransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, StageAnswered, transitionErr.From)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStateMachineErrorIsAbsorbing(t *testing.T) {
	sm := NewStateMachine()

	for _, from := range []Stage{StageStart, StageClassified, StageRetrieved, StageSkipped, StageReasoned, StageAnswered} {
		assert.True(t, sm.CanTransition(from, StageError), "from=%s", from)
	}
	assert.False(t, sm.CanTransition(StageDone, StageError))
	assert.False(t, sm.CanTransition(StageError, StageStart))
	assert.True(t, IsTerminal(StageError))
	assert.True(t, IsTerminal(StageDone))
	assert.False(t, IsTerminal(StageReasoned))
}
