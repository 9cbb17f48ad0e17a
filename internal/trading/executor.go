// Package trading 实现交易执行与顶层编排。
package trading

import (
	"context"
	stderrors "errors"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"FundAgent/internal/errors"
	"FundAgent/internal/venue"
	"FundAgent/pkg/logger"
)

// Execution 是一次成功交易的结果：确认后的交易哈希与成交通道。
type Execution struct {
	TxHash string
	Venue  venue.Kind
}

// Executor 按 主通道尝试、受限回退 的状态机执行买卖。
type Executor struct {
	curve venue.Venue
	dex   venue.Venue
	log   *slog.Logger
}

// NewExecutor 构造双通道执行器。
func NewExecutor(curve, dex venue.Venue) (*Executor, error) {
	if curve == nil || dex == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "执行器需要两个交易通道")
	}
	return &Executor{curve: curve, dex: dex, log: logger.Named("executor")}, nil
}

// Buy 先走联合曲线，只有 不可在此通道交易 类失败才回退 DEX。
// 余额不足、地址非法这类失败换通道也无法挽救，直接终止。
func (e *Executor) Buy(ctx context.Context, token common.Address, amountIn *big.Int) (*Execution, error) {
	hash, err := e.curve.Buy(ctx, token, amountIn)
	if err == nil {
		return &Execution{TxHash: hash.Hex(), Venue: e.curve.Kind()}, nil
	}

	verr := asVenueError(err)
	if verr == nil || !verr.Reason.RetryableOnOtherVenue() {
		return nil, errors.Wrap(errors.CodeExecutionFailure, err, "曲线买入失败")
	}

	e.log.Info("代币已离开联合曲线，改走 DEX 买入",
		slog.String("token", token.Hex()), slog.String("reason", string(verr.Reason)))

	hash, err = e.dex.Buy(ctx, token, amountIn)
	if err != nil {
		return nil, errors.Wrap(errors.CodeExecutionFailure, err, "两个通道的买入均失败")
	}
	return &Execution{TxHash: hash.Hex(), Venue: e.dex.Kind()}, nil
}

// Sell 先走 DEX，失败后一律回退联合曲线再试一次。已毕业代币
// 大多在 DEX 有流动性，未毕业代币只能回到曲线成交。
func (e *Executor) Sell(ctx context.Context, token common.Address, amountIn *big.Int) (*Execution, error) {
	hash, err := e.dex.Sell(ctx, token, amountIn)
	if err == nil {
		return &Execution{TxHash: hash.Hex(), Venue: e.dex.Kind()}, nil
	}

	e.log.Info("DEX 卖出失败，回退联合曲线",
		slog.String("token", token.Hex()), slog.String("error", err.Error()))

	hash, err = e.curve.Sell(ctx, token, amountIn)
	if err != nil {
		return nil, errors.Wrap(errors.CodeExecutionFailure, err, "两个通道的卖出均失败")
	}
	return &Execution{TxHash: hash.Hex(), Venue: e.curve.Kind()}, nil
}

func asVenueError(err error) *venue.Error {
	var verr *venue.Error
	if stderrors.As(err, &verr) {
		return verr
	}
	return nil
}
