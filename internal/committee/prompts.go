package committee

import (
	"fmt"
	"strings"

	"FundAgent/internal/strategy"
)

// BuyContext 是买入评估所需的代币与资金上下文。
type BuyContext struct {
	Address   string
	Name      string
	Symbol    string
	Amount    string
	Balance   string
	Portfolio string
}

// SellContext 是持仓复盘所需的仓位上下文。
type SellContext struct {
	Token       string
	Symbol      string
	NetInvested string
}

const defaultBuyPrompt = `INVESTMENT COMMITTEE VOTE, BUY EVALUATION

Token: {name} (${symbol})
Address: {address}
Fund Balance: {balance}
Current Portfolio: {portfolio}

As {member}, should the fund BUY this token for {amount}?

Respond ONLY with JSON:
{"decision":"BUY","confidence":0.8,"reasoning":"Your 1-2 sentence reasoning."}
or
{"decision":"SKIP","confidence":0.3,"reasoning":"Your 1-2 sentence reasoning."}`

const defaultSellPrompt = `INVESTMENT COMMITTEE VOTE, SELL EVALUATION

Position: ${symbol}
Invested: {invested}
Token: {token}

As {member}, should the fund SELL this position?

Respond ONLY with JSON:
{"decision":"SELL","confidence":0.8,"reasoning":"Your 1-2 sentence reasoning."}
or
{"decision":"HOLD","confidence":0.6,"reasoning":"Your 1-2 sentence reasoning."}`

func (c *Committee) buildBuyPrompt(member strategy.Member, bc BuyContext) string {
	template := c.prompts.BuyEvaluation
	if template == "" {
		template = defaultBuyPrompt
	}
	portfolio := bc.Portfolio
	if portfolio == "" {
		portfolio = "empty"
	}
	return strings.NewReplacer(
		"{member}", member.Name,
		"{name}", bc.Name,
		"{symbol}", bc.Symbol,
		"{address}", bc.Address,
		"{amount}", bc.Amount,
		"{balance}", bc.Balance,
		"{portfolio}", portfolio,
	).Replace(template)
}

func (c *Committee) buildSellPrompt(member strategy.Member, sc SellContext) string {
	template := c.prompts.SellEvaluation
	if template == "" {
		template = defaultSellPrompt
	}
	return strings.NewReplacer(
		"{member}", member.Name,
		"{symbol}", sc.Symbol,
		"{token}", sc.Token,
		"{invested}", sc.NetInvested,
	).Replace(template)
}

// Describe 以一行文本概括一轮结果，便于日志与叙事。
func (r *Result) Describe() string {
	parts := make([]string, 0, len(r.VoteTally))
	for _, action := range sortedActions(r.VoteTally) {
		parts = append(parts, fmt.Sprintf("%s:%.1f", action, r.VoteTally[action]))
	}
	return fmt.Sprintf("%s (%s)", r.FinalDecision, strings.Join(parts, " "))
}
