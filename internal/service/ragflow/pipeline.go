package ragflow

import (
	"context"

	"github.com/cloudwego/eino/components/retriever"
	"k8s.io/klog/v2"
)

// Pipeline 单轮问答流程控制器
// 依次执行 分类 → 检索（仅 retrieve 模式）→ 推理 → 回答，每一步都以前一步的结果为输入
type Pipeline struct {
	classifier *Classifier
	reasoner   *Reasoner
	answerer   *Answerer
	retriever  retriever.Retriever
	sm         *StateMachine
}

// NewPipeline 创建流程
// reasoning: 推理模型，用于分类和推理
// answer: 回答模型
// r: 检索器，可以为空，为空时每轮问答都会以 ErrRetrieverUnconfigured 结束
func NewPipeline(reasoning, answer Generator, r retriever.Retriever) *Pipeline {
	return NewPipelineWithTemplates(reasoning, answer, r, DefaultTemplates())
}

// NewPipelineWithTemplates 使用自定义模板创建流程
func NewPipelineWithTemplates(reasoning, answer Generator, r retriever.Retriever, templates *Templates) *Pipeline {
	return &Pipeline{
		classifier: NewClassifier(reasoning, templates),
		reasoner:   NewReasoner(reasoning, templates),
		answerer:   NewAnswerer(answer, templates),
		retriever:  r,
		sm:         NewStateMachine(),
	}
}

// HasRetriever 是否已配置检索器
func (p *Pipeline) HasRetriever() bool {
	return p.retriever != nil
}

// Run 执行一轮问答
// 出错时返回的状态保留已经计算出的文档和推理过程，Stage 为 error
func (p *Pipeline) Run(ctx context.Context, query string, obs Observer) (*ConversationState, error) {
	if obs == nil {
		obs = ObserverFuncs{}
	}
	state := NewConversationState(query)
	klog.V(6).Infof("[Pipeline] 问答开始: query=%s", query)

	// 必须先配置检索器，未配置时在调用任何模型之前结束
	if p.retriever == nil {
		return p.fail(state, ErrRetrieverUnconfigured)
	}

	// ========== Step 1: 分类 ==========
	obs.OnNodeStart(NodeClassify)
	mode, err := p.classifier.Classify(ctx, query)
	if err != nil {
		return p.fail(state, err)
	}
	if err := state.SetMode(mode); err != nil {
		return p.fail(state, err)
	}
	if err := p.sm.Advance(state, StageClassified); err != nil {
		return p.fail(state, err)
	}
	obs.OnNodeEnd(NodeClassify, state)

	// ========== Step 2: 路由，检索或跳过 ==========
	step, err := Route(state.Mode)
	if err != nil {
		return p.fail(state, err)
	}
	switch step {
	case StepRetrieve:
		obs.OnNodeStart(NodeRetrieve)
		docs, err := Retrieve(ctx, p.retriever, query)
		if err != nil {
			return p.fail(state, err)
		}
		state.Documents = docs
		if err := p.sm.Advance(state, StageRetrieved); err != nil {
			return p.fail(state, err)
		}
		obs.OnNodeEnd(NodeRetrieve, state)
	case StepGenerate:
		if err := p.sm.Advance(state, StageSkipped); err != nil {
			return p.fail(state, err)
		}
	}

	// ========== Step 3: 推理 ==========
	obs.OnNodeStart(NodeReason)
	rationale, err := p.reasoner.Reason(ctx, query, state.Documents, func(chunk string) {
		obs.OnChunk(NodeReason, chunk)
	})
	if err != nil {
		return p.fail(state, err)
	}
	state.Rationale = rationale
	if err := p.sm.Advance(state, StageReasoned); err != nil {
		return p.fail(state, err)
	}
	obs.OnNodeEnd(NodeReason, state)

	// ========== Step 4: 回答 ==========
	obs.OnNodeStart(NodeAnswer)
	answer, err := p.answerer.Answer(ctx, query, state.Rationale, state.Documents, func(chunk string) {
		obs.OnChunk(NodeAnswer, chunk)
	})
	if err != nil {
		return p.fail(state, err)
	}
	state.Answer = answer
	if err := p.sm.Advance(state, StageAnswered); err != nil {
		return p.fail(state, err)
	}
	obs.OnNodeEnd(NodeAnswer, state)

	if err := p.sm.Advance(state, StageDone); err != nil {
		return p.fail(state, err)
	}
	klog.V(6).Infof("[Pipeline] 问答完成: mode=%s, documents=%d", state.Mode, len(state.Documents))
	return state, nil
}

func (p *Pipeline) fail(state *ConversationState, err error) (*ConversationState, error) {
	klog.Errorf("[Pipeline] 问答中止: stage=%s, error=%v", state.Stage, err)
	state.Err = err
	if p.sm.CanTransition(state.Stage, StageError) {
		state.Stage = StageError
	}
	return state, err
}
