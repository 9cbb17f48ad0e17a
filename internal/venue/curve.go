package venue

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// 联合曲线路由合约的最小 ABI。isListed 为假表示代币已经毕业迁移到
// DEX（或根本不在曲线上），这是路由层换通道的唯一信号。
const curveRouterABIJSON = `[
	{"type":"function","name":"isListed","stateMutability":"view","inputs":[{"name":"token","type":"address"}],"outputs":[{"type":"bool"}]},
	{"type":"function","name":"getAmountOut","stateMutability":"view","inputs":[{"name":"token","type":"address"},{"name":"amountIn","type":"uint256"},{"name":"isBuy","type":"bool"}],"outputs":[{"type":"uint256"}]},
	{"type":"function","name":"buy","stateMutability":"payable","inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"token","type":"address"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"sell","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"token","type":"address"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[]}
]`

var curveRouterABI = mustParseVenueABI(curveRouterABIJSON)

const txDeadline = 5 * time.Minute

func mustParseVenueABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded ABI: %v", err))
	}
	return parsed
}

// Curve 通过联合曲线路由买卖未毕业的代币。
type Curve struct {
	wallet          Wallet
	router          common.Address
	slippagePercent int
}

// NewCurve 构造联合曲线通道客户端。
func NewCurve(wallet Wallet, router common.Address, slippagePercent int) (*Curve, error) {
	if wallet == nil {
		return nil, errors.New("curve venue requires a wallet")
	}
	if router == (common.Address{}) {
		return nil, errors.New("curve venue requires a router address")
	}
	return &Curve{wallet: wallet, router: router, slippagePercent: slippagePercent}, nil
}

// Kind 实现 Venue 接口。
func (c *Curve) Kind() Kind {
	return KindBondingCurve
}

// Buy 用原生币在曲线上买入代币。先确认代币仍在曲线上、余额充足，
// 再按报价扣除滑点容忍度作为最小成交量提交交易。
func (c *Curve) Buy(ctx context.Context, token common.Address, amountIn *big.Int) (common.Hash, error) {
	if err := c.ensureListed(ctx, token); err != nil {
		return common.Hash{}, err
	}
	balance, err := c.wallet.NativeBalance(ctx)
	if err != nil {
		return common.Hash{}, fail(KindBondingCurve, ReasonSubmitFailed, err)
	}
	if balance.Cmp(amountIn) < 0 {
		return common.Hash{}, fail(KindBondingCurve, ReasonInsufficientFunds,
			fmt.Errorf("balance %s below buy amount %s", balance, amountIn))
	}

	quoted, err := c.quote(ctx, token, amountIn, true)
	if err != nil {
		// 曲线对已迁移代币的报价调用会回滚，按不可交易处理。
		return common.Hash{}, fail(KindBondingCurve, ReasonNotTradeable, err)
	}
	minOut := applySlippage(quoted, c.slippagePercent)

	data, err := curveRouterABI.Pack("buy", minOut, token, c.wallet.Address(), deadline())
	if err != nil {
		return common.Hash{}, fail(KindBondingCurve, ReasonSubmitFailed, err)
	}
	tx, err := c.wallet.Submit(ctx, c.router, amountIn, data)
	if err != nil {
		return common.Hash{}, fail(KindBondingCurve, ReasonSubmitFailed, err)
	}
	hash, err := c.wallet.Await(ctx, tx)
	if err != nil {
		return common.Hash{}, fail(KindBondingCurve, ReasonConfirmFailed, err)
	}
	return hash, nil
}

// Sell 在曲线上卖出代币换回原生币。卖出前先保证路由拿到授权，
// 授权交易必须确认后才能提交卖单。
func (c *Curve) Sell(ctx context.Context, token common.Address, amountIn *big.Int) (common.Hash, error) {
	if err := c.ensureListed(ctx, token); err != nil {
		return common.Hash{}, err
	}
	if err := ensureAllowance(ctx, c.wallet, token, c.router, amountIn, KindBondingCurve); err != nil {
		return common.Hash{}, err
	}

	quoted, err := c.quote(ctx, token, amountIn, false)
	if err != nil {
		return common.Hash{}, fail(KindBondingCurve, ReasonNotTradeable, err)
	}
	minOut := applySlippage(quoted, c.slippagePercent)

	data, err := curveRouterABI.Pack("sell", amountIn, minOut, token, c.wallet.Address(), deadline())
	if err != nil {
		return common.Hash{}, fail(KindBondingCurve, ReasonSubmitFailed, err)
	}
	tx, err := c.wallet.Submit(ctx, c.router, nil, data)
	if err != nil {
		return common.Hash{}, fail(KindBondingCurve, ReasonSubmitFailed, err)
	}
	hash, err := c.wallet.Await(ctx, tx)
	if err != nil {
		return common.Hash{}, fail(KindBondingCurve, ReasonConfirmFailed, err)
	}
	return hash, nil
}

func (c *Curve) ensureListed(ctx context.Context, token common.Address) error {
	data, err := curveRouterABI.Pack("isListed", token)
	if err != nil {
		return fail(KindBondingCurve, ReasonSubmitFailed, err)
	}
	raw, err := c.wallet.Call(ctx, c.router, data)
	if err != nil {
		return fail(KindBondingCurve, ReasonNotTradeable, fmt.Errorf("listing check: %w", err))
	}
	values, err := curveRouterABI.Unpack("isListed", raw)
	if err != nil || len(values) == 0 {
		return fail(KindBondingCurve, ReasonNotTradeable, fmt.Errorf("unpack listing check: %w", err))
	}
	listed, ok := values[0].(bool)
	if !ok || !listed {
		return fail(KindBondingCurve, ReasonNotTradeable,
			fmt.Errorf("token %s is not on the bonding curve", token))
	}
	return nil
}

func (c *Curve) quote(ctx context.Context, token common.Address, amountIn *big.Int, isBuy bool) (*big.Int, error) {
	data, err := curveRouterABI.Pack("getAmountOut", token, amountIn, isBuy)
	if err != nil {
		return nil, err
	}
	raw, err := c.wallet.Call(ctx, c.router, data)
	if err != nil {
		return nil, fmt.Errorf("curve quote: %w", err)
	}
	values, err := curveRouterABI.Unpack("getAmountOut", raw)
	if err != nil || len(values) == 0 {
		return nil, fmt.Errorf("unpack curve quote: %w", err)
	}
	quoted, ok := values[0].(*big.Int)
	if !ok {
		return nil, errors.New("unexpected curve quote return type")
	}
	return quoted, nil
}

// ensureAllowance 检查并在必要时补齐路由授权，两个通道共用。
func ensureAllowance(ctx context.Context, wallet Wallet, token, spender common.Address, amountIn *big.Int, kind Kind) error {
	allowance, err := wallet.Allowance(ctx, token, spender)
	if err != nil {
		return fail(kind, ReasonApprovalFailed, err)
	}
	if allowance.Cmp(amountIn) >= 0 {
		return nil
	}
	if _, err := wallet.Approve(ctx, token, spender); err != nil {
		return fail(kind, ReasonApprovalFailed, err)
	}
	return nil
}

func deadline() *big.Int {
	return big.NewInt(time.Now().Add(txDeadline).Unix())
}
