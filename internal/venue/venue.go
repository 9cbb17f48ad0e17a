package venue

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

// Kind 标识一个交易通道。
type Kind string

const (
	KindBondingCurve Kind = "bonding_curve"
	KindDEX          Kind = "dex"
)

// Reason 是通道提交失败的封闭原因集合。回退路由只对 Reason 做
// 类型匹配，绝不做错误文案的子串匹配。
type Reason string

const (
	// ReasonNotTradeable 表示该代币不在此通道交易（已毕业离开联合
	// 曲线，或 DEX 上没有流动性池）。这是唯一允许换通道重试的原因。
	ReasonNotTradeable Reason = "NOT_TRADEABLE"
	// ReasonInsufficientFunds 表示钱包余额不足，换通道也无济于事。
	ReasonInsufficientFunds Reason = "INSUFFICIENT_FUNDS"
	// ReasonBadToken 表示代币地址或元数据不合法。
	ReasonBadToken Reason = "BAD_TOKEN"
	// ReasonSubmitFailed 表示交易签名或广播失败。
	ReasonSubmitFailed Reason = "SUBMIT_FAILED"
	// ReasonConfirmFailed 表示交易已广播但未能确认或链上回滚。
	ReasonConfirmFailed Reason = "CONFIRM_FAILED"
	// ReasonApprovalFailed 表示卖出前置的授权交易失败。
	ReasonApprovalFailed Reason = "APPROVAL_FAILED"
)

// RetryableOnOtherVenue 判断该失败是否允许在另一个通道重试。
func (r Reason) RetryableOnOtherVenue() bool {
	return r == ReasonNotTradeable
}

// Error 是通道操作的统一失败类型。
type Error struct {
	Venue  Kind
	Reason Reason
	Err    error
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("venue %s: %s: %v", e.Venue, e.Reason, e.Err)
	}
	return fmt.Sprintf("venue %s: %s", e.Venue, e.Reason)
}

// Unwrap 实现 errors.Unwrap。
func (e *Error) Unwrap() error {
	return e.Err
}

func fail(kind Kind, reason Reason, err error) *Error {
	return &Error{Venue: kind, Reason: reason, Err: err}
}

// Venue 是单个交易通道的统一契约。amountIn 对买入是原生币数量，
// 对卖出是代币数量；两者都以最小单位计。返回值是已确认的交易哈希。
type Venue interface {
	Kind() Kind
	Buy(ctx context.Context, token common.Address, amountIn *big.Int) (common.Hash, error)
	Sell(ctx context.Context, token common.Address, amountIn *big.Int) (common.Hash, error)
}

// Wallet 是通道客户端需要的链上能力子集，由 chain.Client 提供。
type Wallet interface {
	Address() common.Address
	NativeBalance(ctx context.Context) (*big.Int, error)
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	Submit(ctx context.Context, to common.Address, value *big.Int, data []byte) (*coretypes.Transaction, error)
	Await(ctx context.Context, tx *coretypes.Transaction) (common.Hash, error)
	Allowance(ctx context.Context, token, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, token, spender common.Address) (common.Hash, error)
}

// applySlippage 按容忍百分比折算可接受的最小成交量。
func applySlippage(quoted *big.Int, slippagePercent int) *big.Int {
	if quoted == nil {
		return big.NewInt(0)
	}
	if slippagePercent < 0 {
		slippagePercent = 0
	}
	if slippagePercent > 100 {
		slippagePercent = 100
	}
	keep := big.NewInt(int64(100 - slippagePercent))
	minOut := new(big.Int).Mul(quoted, keep)
	return minOut.Div(minOut, big.NewInt(100))
}
