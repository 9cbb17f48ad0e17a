// Package ledger 维护基金的只追加交易账本，并从中推导当前持仓。
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"FundAgent/internal/errors"
)

// Type 标记一笔交易的方向。
type Type string

const (
	TypeBuy  Type = "buy"
	TypeSell Type = "sell"
)

// Trade 是账本中的一条交易记录。Amount 以原生币计价：买入是花费
// 的金额，卖出记的是被了结仓位的净投入额。记录只在链上确认之后
// 写入。
type Trade struct {
	ID     string          `json:"id"`
	Type   Type            `json:"type"`
	Token  string          `json:"token"`
	Name   string          `json:"name"`
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
	Venue  string          `json:"venue"`
	TxHash string          `json:"tx_hash"`
	Thesis string          `json:"thesis"`
	Time   time.Time       `json:"time"`
}

// Holding 是从交易历史推导出的一个持仓。NetInvested 为买入总额
// 减去卖出总额，可能为负（已落袋的利润超过投入）。
type Holding struct {
	Token       string
	Name        string
	Symbol      string
	NetInvested decimal.Decimal
	Buys        int
	Sells       int
}

// Store 抽象账本的持久化后端。
type Store interface {
	Append(ctx context.Context, trade Trade) error
	All(ctx context.Context) ([]Trade, error)
	Count(ctx context.Context) (int, error)
	UpdateNames(ctx context.Context, token, name, symbol string) error
	Close() error
}

// Ledger 在持久化后端之上维护内存副本，推导持仓与预算用量。
type Ledger struct {
	mu     sync.RWMutex
	store  Store
	trades []Trade
	count  int
}

// Open 从后端恢复全部历史并构建账本。交易计数取后端计数与记录条
// 数中的较大者，记录文件丢失时预算计数依然有效。
func Open(ctx context.Context, store Store) (*Ledger, error) {
	trades, err := store.All(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorageFailure, err, "恢复交易账本失败")
	}
	count, err := store.Count(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorageFailure, err, "恢复交易计数失败")
	}
	if len(trades) > count {
		count = len(trades)
	}
	return &Ledger{store: store, trades: trades, count: count}, nil
}

// Append 把一笔已确认的交易写入账本。先落盘再更新内存，落盘失败
// 时内存状态不变。
func (l *Ledger) Append(ctx context.Context, trade Trade) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Append(ctx, trade); err != nil {
		return errors.Wrap(errors.CodeStorageFailure, err, "写入交易记录失败")
	}
	l.trades = append(l.trades, trade)
	l.count++
	return nil
}

// Trades 返回全部交易记录的副本，按写入顺序排列。
func (l *Ledger) Trades() []Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	results := make([]Trade, len(l.trades))
	copy(results, l.trades)
	return results
}

// TradeCount 返回生命周期内的累计交易笔数。
func (l *Ledger) TradeCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// TotalSpent 返回历史买入花费的原生币总额。
func (l *Ledger) TotalSpent() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := decimal.Zero
	for _, trade := range l.trades {
		if trade.Type == TypeBuy {
			total = total.Add(trade.Amount)
		}
	}
	return total
}

// NetInvested 返回全仓位的净投入，买入总额减去卖出总额。
func (l *Ledger) NetInvested() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := decimal.Zero
	for _, trade := range l.trades {
		switch trade.Type {
		case TypeBuy:
			total = total.Add(trade.Amount)
		case TypeSell:
			total = total.Sub(trade.Amount)
		}
	}
	return total
}

// Holdings 推导当前持仓。一次卖出视为对该代币仓位的整体了结，
// 买入次数多于卖出次数的代币才算在持仓内。结果按代币地址排序，
// 与交易记录的写入顺序无关。
func (l *Ledger) Holdings() []Holding {
	l.mu.RLock()
	defer l.mu.RUnlock()

	byToken := make(map[string]*Holding)
	for _, trade := range l.trades {
		h, ok := byToken[trade.Token]
		if !ok {
			h = &Holding{Token: trade.Token}
			byToken[trade.Token] = h
		}
		if trade.Name != "" {
			h.Name = trade.Name
		}
		if trade.Symbol != "" {
			h.Symbol = trade.Symbol
		}
		switch trade.Type {
		case TypeBuy:
			h.Buys++
			h.NetInvested = h.NetInvested.Add(trade.Amount)
		case TypeSell:
			h.Sells++
			h.NetInvested = h.NetInvested.Sub(trade.Amount)
		}
	}

	holdings := make([]Holding, 0, len(byToken))
	for _, h := range byToken {
		if h.Buys > h.Sells {
			holdings = append(holdings, *h)
		}
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Token < holdings[j].Token })
	return holdings
}

// Held 判断某个代币当前是否在持仓内。
func (l *Ledger) Held(token string) bool {
	for _, h := range l.Holdings() {
		if h.Token == token {
			return true
		}
	}
	return false
}

// Close 关闭底层存储。
func (l *Ledger) Close() error {
	return l.store.Close()
}
