package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// Config describes how to construct the wallet-backed chain client.
type Config struct {
	RPCURL         string
	PrivateKeyHex  string
	ConfirmTimeout time.Duration
	GasLimit       uint64
}

const defaultGasLimit = 500_000

// Client wraps an EVM RPC endpoint together with the fund's signing key.
// All state-changing calls are signed locally and submitted through the
// same endpoint; confirmation waits are bounded by ConfirmTimeout.
type Client struct {
	eth            *ethclient.Client
	key            *ecdsa.PrivateKey
	address        common.Address
	chainID        *big.Int
	confirmTimeout time.Duration
	gasLimit       uint64
}

// Dial connects to the RPC endpoint and prepares the signer.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("chain rpc url is required")
	}
	keyHex := strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKeyHex), "0x")
	if keyHex == "" {
		return nil, errors.New("wallet private key is required")
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse wallet private key: %w", err)
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	confirmTimeout := cfg.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 2 * time.Minute
	}
	gasLimit := cfg.GasLimit
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
	}

	return &Client{
		eth:            eth,
		key:            key,
		address:        crypto.PubkeyToAddress(key.PublicKey),
		chainID:        chainID,
		confirmTimeout: confirmTimeout,
		gasLimit:       gasLimit,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	if c != nil && c.eth != nil {
		c.eth.Close()
	}
}

// Address returns the fund wallet address.
func (c *Client) Address() common.Address {
	return c.address
}

// ChainID returns the connected chain's identifier.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// NativeBalance reads the wallet's native token balance.
func (c *Client) NativeBalance(ctx context.Context) (*big.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, c.address, nil)
	if err != nil {
		return nil, fmt.Errorf("read native balance: %w", err)
	}
	return balance, nil
}

// Call executes a read-only contract call.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return c.eth.CallContract(ctx, gethcore.CallMsg{From: c.address, To: &to, Data: data}, nil)
}

// Submit signs and broadcasts a state-changing call. The returned
// transaction is pending; callers must Await it before treating the
// operation as executed.
func (c *Client) Submit(ctx context.Context, to common.Address, value *big.Int, data []byte) (*coretypes.Transaction, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit := c.gasLimit
	estimated, err := c.eth.EstimateGas(ctx, gethcore.CallMsg{
		From:  c.address,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err == nil && estimated > 0 {
		gasLimit = estimated + estimated/5
	}

	tx := coretypes.NewTx(&coretypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("broadcast transaction: %w", err)
	}
	return signed, nil
}

// Await blocks until the transaction is mined or the confirm timeout
// elapses, and rejects transactions that mined with a failed status.
func (c *Client) Await(ctx context.Context, tx *coretypes.Transaction) (common.Hash, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.eth, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("await confirmation: %w", err)
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		return common.Hash{}, fmt.Errorf("transaction %s reverted on-chain", tx.Hash())
	}
	return receipt.TxHash, nil
}

var weiPerNative = decimal.New(1, 18)

// ToWei converts a native-denominated decimal amount to wei.
func ToWei(amount decimal.Decimal) *big.Int {
	return amount.Mul(weiPerNative).BigInt()
}

// FromWei converts a wei amount to a native-denominated decimal.
func FromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, 0).Div(weiPerNative)
}
