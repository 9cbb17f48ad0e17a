package decision

import (
	"context"
	stdErrors "errors"
	"time"

	xerrors "FundAgent/internal/errors"
	"FundAgent/internal/llm"
)

// Evaluator 把 (角色设定, 任务上下文) 变成一个结构化决策。
// 推理失败会原样上抛，评估器绝不用默认操作去顶替一次失败的推理，
// 如何处置失败由调用方（委员会）决定。
type Evaluator struct {
	client  llm.Client
	timeout time.Duration
}

// Option 定义可选的 Evaluator 配置。
type Option func(*Evaluator)

// WithTimeout 设置单次推理调用的超时时间。
func WithTimeout(timeout time.Duration) Option {
	return func(e *Evaluator) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// NewEvaluator 创建决策评估器。
func NewEvaluator(client llm.Client, opts ...Option) (*Evaluator, error) {
	if client == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}
	e := &Evaluator{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Evaluate 调用推理服务并解析回复。严格解析失败时走关键词回退，
// 回退同样会产出一个带保守置信度的合法决策。
func (e *Evaluator) Evaluate(ctx context.Context, systemPrompt, prompt string, kind Kind) (Decision, error) {
	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	reply, err := e.client.Complete(callCtx, llm.Request{
		System: systemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return Decision{}, xerrors.Wrap(xerrors.CodeTimeout, err, "推理超时")
		}
		return Decision{}, xerrors.Wrap(xerrors.CodeInferenceFailure, err, "推理调用失败")
	}

	return Parse(reply, kind), nil
}
