package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"type":"bool"}]}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

// MaxUint256 is used for unlimited router approvals.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded ABI: %v", err))
	}
	return parsed
}

// TokenMetadata reads a token's on-chain name and symbol.
func (c *Client) TokenMetadata(ctx context.Context, token common.Address) (string, string, error) {
	name, err := c.callString(ctx, token, "name")
	if err != nil {
		return "", "", fmt.Errorf("read token name: %w", err)
	}
	symbol, err := c.callString(ctx, token, "symbol")
	if err != nil {
		return "", "", fmt.Errorf("read token symbol: %w", err)
	}
	return name, symbol, nil
}

// TokenBalance reads the wallet's balance of the given token.
func (c *Client) TokenBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", c.address)
	if err != nil {
		return nil, err
	}
	raw, err := c.Call(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("read token balance: %w", err)
	}
	return unpackBig(erc20ABI, "balanceOf", raw)
}

// Allowance reads the wallet's standing approval towards a spender.
func (c *Client) Allowance(ctx context.Context, token, spender common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("allowance", c.address, spender)
	if err != nil {
		return nil, err
	}
	raw, err := c.Call(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("read allowance: %w", err)
	}
	return unpackBig(erc20ABI, "allowance", raw)
}

// Approve grants the spender an unlimited allowance and blocks until the
// approval transaction is confirmed. Sells depend on this completing
// before the swap is submitted.
func (c *Client) Approve(ctx context.Context, token, spender common.Address) (common.Hash, error) {
	data, err := erc20ABI.Pack("approve", spender, MaxUint256)
	if err != nil {
		return common.Hash{}, err
	}
	tx, err := c.Submit(ctx, token, nil, data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("submit approval: %w", err)
	}
	return c.Await(ctx, tx)
}

func (c *Client) callString(ctx context.Context, to common.Address, method string) (string, error) {
	data, err := erc20ABI.Pack(method)
	if err != nil {
		return "", err
	}
	raw, err := c.Call(ctx, to, data)
	if err != nil {
		return "", err
	}
	values, err := erc20ABI.Unpack(method, raw)
	if err != nil || len(values) == 0 {
		return "", fmt.Errorf("unpack %s: %w", method, err)
	}
	value, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected %s return type", method)
	}
	return value, nil
}

func unpackBig(parsed abi.ABI, method string, raw []byte) (*big.Int, error) {
	values, err := parsed.Unpack(method, raw)
	if err != nil || len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s return type", method)
	}
	return value, nil
}
