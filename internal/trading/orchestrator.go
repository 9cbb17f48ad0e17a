package trading

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"FundAgent/internal/chain"
	"FundAgent/internal/committee"
	"FundAgent/internal/decision"
	"FundAgent/internal/discovery"
	"FundAgent/internal/errors"
	"FundAgent/internal/ledger"
	"FundAgent/internal/narration"
	"FundAgent/internal/state"
	"FundAgent/internal/strategy"
	"FundAgent/pkg/logger"
)

// Discoverer 提供候选代币。
type Discoverer interface {
	Discover(ctx context.Context) ([]discovery.Candidate, error)
}

// Decider 对标的给出最终结论，单人模式与委员会模式共用此契约。
type Decider interface {
	EvaluateBuy(ctx context.Context, bc committee.BuyContext) *committee.Result
	EvaluateSell(ctx context.Context, sc committee.SellContext) *committee.Result
}

// Router 执行最终的买卖指令。
type Router interface {
	Buy(ctx context.Context, token common.Address, amountIn *big.Int) (*Execution, error)
	Sell(ctx context.Context, token common.Address, amountIn *big.Int) (*Execution, error)
}

// Bank 提供钱包余额查询。
type Bank interface {
	Address() common.Address
	NativeBalance(ctx context.Context) (*big.Int, error)
	TokenBalance(ctx context.Context, token common.Address) (*big.Int, error)
}

// Deps 汇集编排器的全部依赖。
type Deps struct {
	Strategy   strategy.Config
	FundToken  string
	Committee  Decider
	Router     Router
	Ledger     *ledger.Ledger
	Discoverer Discoverer
	Bank       Bank
	Narrator   narration.Dispatcher
	State      *state.Manager
}

// Orchestrator 驱动 发现、评估、执行、记账 的完整回路。同一时间
// 只允许一轮交易决策在跑，预算检查因此无竞态。
type Orchestrator struct {
	mu    sync.Mutex
	deps  Deps
	log   *slog.Logger
	audit *slog.Logger
}

// NewOrchestrator 创建编排器并校验依赖完整。
func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	if deps.Committee == nil || deps.Router == nil || deps.Ledger == nil ||
		deps.Discoverer == nil || deps.Bank == nil || deps.Narrator == nil {
		return nil, errors.New(errors.CodeInitializationFailure, "编排器依赖不完整")
	}
	return &Orchestrator{
		deps:  deps,
		log:   logger.Named("orchestrator"),
		audit: logger.Audit(),
	}, nil
}

// RunBuyCycle 执行一轮买入决策：发现候选、委员会评估、通道执行、
// 记账与叙事。预算耗尽时退化为纯评论，不做任何执行。
func (o *Orchestrator) RunBuyCycle(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	candidates, err := o.deps.Discoverer.Discover(ctx)
	if err != nil {
		o.log.Warn("候选代币发现失败", slog.String("error", err.Error()))
		return
	}
	candidate, ok := o.pickCandidate(candidates)
	if !ok {
		o.log.Info("本轮没有可评估的候选代币")
		return
	}

	balance := o.balanceText(ctx)
	result := o.deps.Committee.EvaluateBuy(ctx, committee.BuyContext{
		Address:   candidate.Address,
		Name:      candidate.Name,
		Symbol:    candidate.Symbol,
		Amount:    o.deps.Strategy.Trading.BuyAmount,
		Balance:   balance,
		Portfolio: o.portfolioText(),
	})
	o.audit.Info("买入评估完成",
		slog.String("round_id", result.ID),
		slog.String("token", candidate.Address),
		slog.String("outcome", result.Describe()))

	if exhausted, reason := o.budgetExhausted(); exhausted {
		o.emit(ctx, commentaryEvent(candidate.Address, candidate.Symbol, reason, result))
		return
	}

	if result.FinalDecision != decision.ActionBuy {
		o.emit(ctx, skipEvent(candidate, result))
		return
	}
	if result.Confidence < o.deps.Strategy.Trading.ConfidenceThreshold {
		o.emit(ctx, skipEvent(candidate, result))
		o.log.Info("信心低于执行阈值，放弃买入",
			slog.Float64("confidence", result.Confidence),
			slog.Float64("threshold", o.deps.Strategy.Trading.ConfidenceThreshold))
		return
	}

	amount, err := decimal.NewFromString(o.deps.Strategy.Trading.BuyAmount)
	if err != nil {
		o.log.Error("买入金额配置非法", slog.String("amount", o.deps.Strategy.Trading.BuyAmount))
		return
	}

	execution, err := o.deps.Router.Buy(ctx, common.HexToAddress(candidate.Address), chain.ToWei(amount))
	if err != nil {
		// 两个通道都失败：记叙事、不记账、不消耗预算。
		o.emit(ctx, failureEvent(candidate.Address, candidate.Symbol, "buy", err))
		o.log.Warn("买入执行失败", slog.String("token", candidate.Address), slog.String("error", err.Error()))
		return
	}

	trade := ledger.Trade{
		ID:     result.ID,
		Type:   ledger.TypeBuy,
		Token:  candidate.Address,
		Name:   candidate.Name,
		Symbol: candidate.Symbol,
		Amount: amount,
		Venue:  string(execution.Venue),
		TxHash: execution.TxHash,
		Thesis: result.Deliberation,
		Time:   result.Time,
	}
	if err := o.deps.Ledger.Append(ctx, trade); err != nil {
		o.log.Error("交易已确认但记账失败", slog.String("tx", execution.TxHash), slog.String("error", err.Error()))
		return
	}
	o.audit.Info("买入成交",
		slog.String("token", candidate.Address),
		slog.String("venue", string(execution.Venue)),
		slog.String("tx", execution.TxHash))
	o.emit(ctx, tradeEvent(trade))
	o.publishSnapshot(ctx)
}

// RunSellCycle 复盘全部持仓。基金自己的代币永远不卖。
func (o *Orchestrator) RunSellCycle(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, holding := range o.deps.Ledger.Holdings() {
		if strings.EqualFold(holding.Token, o.deps.FundToken) {
			continue
		}
		o.reviewHolding(ctx, holding)
	}
}

func (o *Orchestrator) reviewHolding(ctx context.Context, holding ledger.Holding) {
	result := o.deps.Committee.EvaluateSell(ctx, committee.SellContext{
		Token:       holding.Token,
		Symbol:      holding.Symbol,
		NetInvested: holding.NetInvested.String(),
	})
	o.audit.Info("持仓复盘完成",
		slog.String("round_id", result.ID),
		slog.String("token", holding.Token),
		slog.String("outcome", result.Describe()))

	if exhausted, reason := o.budgetExhausted(); exhausted {
		o.emit(ctx, commentaryEvent(holding.Token, holding.Symbol, reason, result))
		return
	}
	if result.FinalDecision != decision.ActionSell {
		o.emit(ctx, holdEvent(holding, result))
		return
	}

	tokenBalance, err := o.deps.Bank.TokenBalance(ctx, common.HexToAddress(holding.Token))
	if err != nil {
		o.log.Warn("读取代币余额失败，跳过卖出", slog.String("token", holding.Token), slog.String("error", err.Error()))
		return
	}
	if tokenBalance.Sign() <= 0 {
		o.log.Warn("账本认为持仓但链上余额为零", slog.String("token", holding.Token))
		return
	}

	execution, err := o.deps.Router.Sell(ctx, common.HexToAddress(holding.Token), tokenBalance)
	if err != nil {
		o.emit(ctx, failureEvent(holding.Token, holding.Symbol, "sell", err))
		o.log.Warn("卖出执行失败", slog.String("token", holding.Token), slog.String("error", err.Error()))
		return
	}

	trade := ledger.Trade{
		ID:     result.ID,
		Type:   ledger.TypeSell,
		Token:  holding.Token,
		Name:   holding.Name,
		Symbol: holding.Symbol,
		Amount: holding.NetInvested,
		Venue:  string(execution.Venue),
		TxHash: execution.TxHash,
		Thesis: result.Deliberation,
		Time:   result.Time,
	}
	if err := o.deps.Ledger.Append(ctx, trade); err != nil {
		o.log.Error("交易已确认但记账失败", slog.String("tx", execution.TxHash), slog.String("error", err.Error()))
		return
	}
	o.audit.Info("卖出成交",
		slog.String("token", holding.Token),
		slog.String("venue", string(execution.Venue)),
		slog.String("tx", execution.TxHash))
	o.emit(ctx, tradeEvent(trade))
	o.publishSnapshot(ctx)
}

// RunSyncCycle 刷新状态快照：本地先落盘，远端尽力而为，失败留给
// 下个周期重试。
func (o *Orchestrator) RunSyncCycle(ctx context.Context) {
	o.publishSnapshot(ctx)
	if o.deps.State == nil {
		return
	}
	if err := o.deps.State.Sync(ctx); err != nil {
		o.log.Warn("远端状态同步失败，下个周期重试", slog.String("error", err.Error()))
	}
}

// Snapshot 构建当前状态快照，供同步周期与状态接口使用。
func (o *Orchestrator) Snapshot(ctx context.Context) state.Snapshot {
	holdings := o.deps.Ledger.Holdings()
	summaries := make([]state.HoldingSummary, 0, len(holdings))
	for _, h := range holdings {
		summaries = append(summaries, state.HoldingSummary{
			Token:       h.Token,
			Name:        h.Name,
			Symbol:      h.Symbol,
			NetInvested: h.NetInvested.String(),
		})
	}
	exhausted, _ := o.budgetExhausted()
	return state.Snapshot{
		Wallet:         o.deps.Bank.Address().Hex(),
		Balance:        o.balanceText(ctx),
		Mode:           ModeFor(o.deps.Ledger.NetInvested(), o.deps.Strategy.Personality),
		TradeCount:     o.deps.Ledger.TradeCount(),
		MaxTotalTrades: o.deps.Strategy.Trading.MaxTotalTrades,
		TotalSpent:     o.deps.Ledger.TotalSpent().String(),
		NetInvested:    o.deps.Ledger.NetInvested().String(),
		Holdings:       summaries,
		CommentaryOnly: exhausted,
	}
}

func (o *Orchestrator) publishSnapshot(ctx context.Context) {
	if o.deps.State == nil {
		return
	}
	if err := o.deps.State.Publish(o.Snapshot(ctx)); err != nil {
		o.log.Warn("状态快照落盘失败", slog.String("error", err.Error()))
	}
}

// budgetExhausted 检查两个预算上限：终身交易笔数与累计买入花费。
func (o *Orchestrator) budgetExhausted() (bool, string) {
	trading := o.deps.Strategy.Trading
	if trading.MaxTotalTrades > 0 && o.deps.Ledger.TradeCount() >= trading.MaxTotalTrades {
		return true, fmt.Sprintf("lifetime trade cap reached (%d)", trading.MaxTotalTrades)
	}
	if trading.MaxTotalSpend != "" {
		maxSpend, err := decimal.NewFromString(trading.MaxTotalSpend)
		if err == nil && maxSpend.IsPositive() {
			buyAmount, _ := decimal.NewFromString(trading.BuyAmount)
			if o.deps.Ledger.TotalSpent().Add(buyAmount).GreaterThan(maxSpend) {
				return true, fmt.Sprintf("spend cap reached (%s)", trading.MaxTotalSpend)
			}
		}
	}
	return false, ""
}

// pickCandidate 优先选择尚未持有的代币以分散仓位，全部持有时
// 允许复评第一个候选。
func (o *Orchestrator) pickCandidate(candidates []discovery.Candidate) (discovery.Candidate, bool) {
	if len(candidates) == 0 {
		return discovery.Candidate{}, false
	}
	for _, candidate := range candidates {
		if !o.deps.Ledger.Held(candidate.Address) {
			return candidate, true
		}
	}
	return candidates[0], true
}

func (o *Orchestrator) balanceText(ctx context.Context) string {
	balance, err := o.deps.Bank.NativeBalance(ctx)
	if err != nil {
		o.log.Warn("读取钱包余额失败", slog.String("error", err.Error()))
		return "unknown"
	}
	return chain.FromWei(balance).String()
}

func (o *Orchestrator) portfolioText() string {
	holdings := o.deps.Ledger.Holdings()
	if len(holdings) == 0 {
		return "empty"
	}
	parts := make([]string, 0, len(holdings))
	for _, h := range holdings {
		parts = append(parts, fmt.Sprintf("%s (net %s)", h.Symbol, h.NetInvested))
	}
	return strings.Join(parts, ", ")
}

func (o *Orchestrator) emit(ctx context.Context, event narration.Event) {
	if err := o.deps.Narrator.Publish(ctx, event); err != nil {
		o.log.Warn("叙事事件投递失败", slog.String("event", event.ID), slog.String("error", err.Error()))
	}
}

func tradeEvent(trade ledger.Trade) narration.Event {
	event := narration.NewEvent(narration.KindTrade,
		fmt.Sprintf("%s %s", strings.ToUpper(string(trade.Type)), trade.Symbol),
		fmt.Sprintf("Executed %s of %s (%s) for %s on %s. Thesis: %s",
			trade.Type, trade.Name, trade.Symbol, trade.Amount, trade.Venue, trade.Thesis))
	event.Token = trade.Token
	event.Symbol = trade.Symbol
	event.Metadata = map[string]string{"tx": trade.TxHash, "venue": trade.Venue}
	return event
}

func skipEvent(candidate discovery.Candidate, result *committee.Result) narration.Event {
	event := narration.NewEvent(narration.KindSkip,
		fmt.Sprintf("Passing on %s", candidate.Symbol),
		fmt.Sprintf("Evaluated %s and decided not to buy. %s", candidate.Name, result.Describe()))
	event.Token = candidate.Address
	event.Symbol = candidate.Symbol
	return event
}

func holdEvent(holding ledger.Holding, result *committee.Result) narration.Event {
	event := narration.NewEvent(narration.KindHold,
		fmt.Sprintf("Holding %s", holding.Symbol),
		fmt.Sprintf("Reviewed %s (net invested %s) and decided to keep the position. %s",
			holding.Name, holding.NetInvested, result.Describe()))
	event.Token = holding.Token
	event.Symbol = holding.Symbol
	return event
}

func failureEvent(token, symbol, side string, err error) narration.Event {
	event := narration.NewEvent(narration.KindFailure,
		fmt.Sprintf("Could not %s %s", side, symbol),
		fmt.Sprintf("Both venues rejected the %s attempt: %v. No trade was recorded.", side, err))
	event.Token = token
	event.Symbol = symbol
	return event
}

func commentaryEvent(token, symbol, reason string, result *committee.Result) narration.Event {
	event := narration.NewEvent(narration.KindCommentary,
		fmt.Sprintf("Analysis only: %s", symbol),
		fmt.Sprintf("Trading budget is closed (%s), so this is commentary, not an order. %s", reason, result.Describe()))
	event.Token = token
	event.Symbol = symbol
	return event
}
