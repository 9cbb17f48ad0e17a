package llm

import "context"

// Request 描述一次推理调用。System 为角色设定，Prompt 为本次任务上下文。
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Client 定义了调用大模型的统一接口。实现方可能很慢（秒级），
// 调用方应通过 ctx 控制超时。
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
