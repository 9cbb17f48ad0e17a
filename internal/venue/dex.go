package venue

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// V2 风格 DEX 路由的最小 ABI，毕业后的代币在这里交易。
const dexRouterABIJSON = `[
	{"type":"function","name":"WETH","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]},
	{"type":"function","name":"getAmountsOut","stateMutability":"view","inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"outputs":[{"type":"uint256[]"}]},
	{"type":"function","name":"swapExactETHForTokens","stateMutability":"payable","inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"type":"uint256[]"}]},
	{"type":"function","name":"swapExactTokensForETH","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"type":"uint256[]"}]}
]`

var dexRouterABI = mustParseVenueABI(dexRouterABIJSON)

// DEX 通过 V2 路由买卖已毕业的代币，报价路径固定经过包装原生币。
type DEX struct {
	wallet          Wallet
	router          common.Address
	wrappedNative   common.Address
	slippagePercent int
}

// NewDEX 构造 DEX 通道客户端。
func NewDEX(wallet Wallet, router, wrappedNative common.Address, slippagePercent int) (*DEX, error) {
	if wallet == nil {
		return nil, errors.New("dex venue requires a wallet")
	}
	if router == (common.Address{}) {
		return nil, errors.New("dex venue requires a router address")
	}
	if wrappedNative == (common.Address{}) {
		return nil, errors.New("dex venue requires the wrapped native address")
	}
	return &DEX{
		wallet:          wallet,
		router:          router,
		wrappedNative:   wrappedNative,
		slippagePercent: slippagePercent,
	}, nil
}

// Kind 实现 Venue 接口。
func (d *DEX) Kind() Kind {
	return KindDEX
}

// VerifyWrappedNative 向路由核对包装原生币地址。启动时调用一次，
// 配置错误的路由必须在第一笔交易前暴露出来。
func (d *DEX) VerifyWrappedNative(ctx context.Context) error {
	data, err := dexRouterABI.Pack("WETH")
	if err != nil {
		return err
	}
	raw, err := d.wallet.Call(ctx, d.router, data)
	if err != nil {
		return fmt.Errorf("query router wrapped native: %w", err)
	}
	values, err := dexRouterABI.Unpack("WETH", raw)
	if err != nil || len(values) == 0 {
		return fmt.Errorf("unpack router wrapped native: %w", err)
	}
	onChain, ok := values[0].(common.Address)
	if !ok {
		return errors.New("unexpected router wrapped native return type")
	}
	if onChain != d.wrappedNative {
		return fmt.Errorf("router wrapped native %s does not match configured %s", onChain, d.wrappedNative)
	}
	return nil
}

// Buy 用原生币沿 [wrapped, token] 路径换入代币。
func (d *DEX) Buy(ctx context.Context, token common.Address, amountIn *big.Int) (common.Hash, error) {
	balance, err := d.wallet.NativeBalance(ctx)
	if err != nil {
		return common.Hash{}, fail(KindDEX, ReasonSubmitFailed, err)
	}
	if balance.Cmp(amountIn) < 0 {
		return common.Hash{}, fail(KindDEX, ReasonInsufficientFunds,
			fmt.Errorf("balance %s below buy amount %s", balance, amountIn))
	}

	path := []common.Address{d.wrappedNative, token}
	quoted, err := d.quote(ctx, amountIn, path)
	if err != nil {
		// 没有流动性池时 getAmountsOut 会回滚，按不可交易处理。
		return common.Hash{}, fail(KindDEX, ReasonNotTradeable, err)
	}
	minOut := applySlippage(quoted, d.slippagePercent)

	data, err := dexRouterABI.Pack("swapExactETHForTokens", minOut, path, d.wallet.Address(), deadline())
	if err != nil {
		return common.Hash{}, fail(KindDEX, ReasonSubmitFailed, err)
	}
	tx, err := d.wallet.Submit(ctx, d.router, amountIn, data)
	if err != nil {
		return common.Hash{}, fail(KindDEX, ReasonSubmitFailed, err)
	}
	hash, err := d.wallet.Await(ctx, tx)
	if err != nil {
		return common.Hash{}, fail(KindDEX, ReasonConfirmFailed, err)
	}
	return hash, nil
}

// Sell 沿 [token, wrapped] 路径把代币换回原生币。授权先行且阻塞，
// 未确认的授权不允许提交换币交易。
func (d *DEX) Sell(ctx context.Context, token common.Address, amountIn *big.Int) (common.Hash, error) {
	if err := ensureAllowance(ctx, d.wallet, token, d.router, amountIn, KindDEX); err != nil {
		return common.Hash{}, err
	}

	path := []common.Address{token, d.wrappedNative}
	quoted, err := d.quote(ctx, amountIn, path)
	if err != nil {
		return common.Hash{}, fail(KindDEX, ReasonNotTradeable, err)
	}
	minOut := applySlippage(quoted, d.slippagePercent)

	data, err := dexRouterABI.Pack("swapExactTokensForETH", amountIn, minOut, path, d.wallet.Address(), deadline())
	if err != nil {
		return common.Hash{}, fail(KindDEX, ReasonSubmitFailed, err)
	}
	tx, err := d.wallet.Submit(ctx, d.router, nil, data)
	if err != nil {
		return common.Hash{}, fail(KindDEX, ReasonSubmitFailed, err)
	}
	hash, err := d.wallet.Await(ctx, tx)
	if err != nil {
		return common.Hash{}, fail(KindDEX, ReasonConfirmFailed, err)
	}
	return hash, nil
}

func (d *DEX) quote(ctx context.Context, amountIn *big.Int, path []common.Address) (*big.Int, error) {
	data, err := dexRouterABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, err
	}
	raw, err := d.wallet.Call(ctx, d.router, data)
	if err != nil {
		return nil, fmt.Errorf("dex quote: %w", err)
	}
	values, err := dexRouterABI.Unpack("getAmountsOut", raw)
	if err != nil || len(values) == 0 {
		return nil, fmt.Errorf("unpack dex quote: %w", err)
	}
	amounts, ok := values[0].([]*big.Int)
	if !ok || len(amounts) == 0 {
		return nil, errors.New("unexpected dex quote return type")
	}
	return amounts[len(amounts)-1], nil
}
