package committee

import (
	"context"
	"sync"
	"time"

	"FundAgent/internal/decision"
	xerrors "FundAgent/internal/errors"
	"FundAgent/internal/strategy"
)

// Vote 记录一名成员在一轮评估中的表态。评估失败的成员会留下一张
// 权重为 0 的弃权票：计入记录、不影响计票，但绝不会被静默丢弃。
type Vote struct {
	Member     string          `json:"member"`
	Persona    string          `json:"persona"`
	Action     decision.Action `json:"action"`
	Confidence float64         `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
	Weight     float64         `json:"weight"`
}

// Result 汇总一轮委员会评估的结论。
type Result struct {
	ID            string                      `json:"id"`
	Token         string                      `json:"token"`
	Symbol        string                      `json:"symbol"`
	Kind          decision.Kind               `json:"kind"`
	FinalDecision decision.Action             `json:"final_decision"`
	Confidence    float64                     `json:"confidence"`
	Votes         []Vote                      `json:"votes"`
	VoteTally     map[decision.Action]float64 `json:"vote_tally"`
	Deliberation  string                      `json:"deliberation"`
	Time          time.Time                   `json:"time"`
}

// Committee 让多名带权重的成员并行评估同一个标的，再做加权多数表决。
type Committee struct {
	members   []strategy.Member
	threshold float64
	evaluator *decision.Evaluator
	prompts   strategy.Prompts
}

// New 创建投资委员会。没有任何权重大于零的成员时直接报错，
// 委员会模式的配置问题必须在启动阶段暴露。
func New(members []strategy.Member, votingThreshold float64, evaluator *decision.Evaluator, prompts strategy.Prompts) (*Committee, error) {
	if evaluator == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置决策评估器")
	}
	if len(members) == 0 {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "委员会没有配置成员")
	}
	total := 0.0
	for _, m := range members {
		total += m.VotingWeight
	}
	if total <= 0 {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "委员会总投票权重必须大于零")
	}
	if votingThreshold <= 0 || votingThreshold > 100 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "投票阈值必须在 (0,100] 区间内")
	}
	roster := make([]strategy.Member, len(members))
	copy(roster, members)
	return &Committee{
		members:   roster,
		threshold: votingThreshold,
		evaluator: evaluator,
		prompts:   prompts,
	}, nil
}

// Members 返回成员名单的副本。
func (c *Committee) Members() []strategy.Member {
	roster := make([]strategy.Member, len(c.members))
	copy(roster, c.members)
	return roster
}

// EvaluateBuy 对一个候选代币做买入评估。
func (c *Committee) EvaluateBuy(ctx context.Context, bc BuyContext) *Result {
	votes := c.collectVotes(ctx, decision.KindBuy, func(m strategy.Member) string {
		return c.buildBuyPrompt(m, bc)
	})
	return c.tally(votes, bc.Address, bc.Symbol, decision.KindBuy)
}

// EvaluateSell 对一个已有持仓做复盘评估。
func (c *Committee) EvaluateSell(ctx context.Context, sc SellContext) *Result {
	votes := c.collectVotes(ctx, decision.KindSell, func(m strategy.Member) string {
		return c.buildSellPrompt(m, sc)
	})
	return c.tally(votes, sc.Token, sc.Symbol, decision.KindSell)
}

// collectVotes 并发地向每名成员征询意见，并按成员配置顺序收齐。
// 成员评估之间相互独立且无副作用，因此可以安全并行。
func (c *Committee) collectVotes(ctx context.Context, kind decision.Kind, prompt func(strategy.Member) string) []Vote {
	votes := make([]Vote, len(c.members))
	var wg sync.WaitGroup
	for i, member := range c.members {
		wg.Add(1)
		go func(i int, member strategy.Member) {
			defer wg.Done()
			votes[i] = c.memberVote(ctx, member, kind, prompt(member))
		}(i, member)
	}
	wg.Wait()
	return votes
}

func (c *Committee) memberVote(ctx context.Context, member strategy.Member, kind decision.Kind, prompt string) Vote {
	dec, err := c.evaluator.Evaluate(ctx, member.SystemPrompt, prompt, kind)
	if err != nil {
		// 弃权票：保守结论、零权重，既不拉偏计票也不污染分母。
		return Vote{
			Member:     member.Name,
			Persona:    member.Persona,
			Action:     kind.SafeDefault(),
			Confidence: 0,
			Reasoning:  "Failed to evaluate, abstaining: " + err.Error(),
			Weight:     0,
		}
	}
	return Vote{
		Member:     member.Name,
		Persona:    member.Persona,
		Action:     dec.Action,
		Confidence: dec.Confidence,
		Reasoning:  dec.Reasoning,
		Weight:     member.VotingWeight,
	}
}
