package venue

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

type stubWallet struct {
	address       common.Address
	balance       *big.Int
	allowance     *big.Int
	callResponses map[string][]byte
	callErr       error
	submitErr     error
	awaitErr      error
	awaitHash     common.Hash

	approvals   int
	submissions []submission
}

type submission struct {
	to    common.Address
	value *big.Int
}

func (s *stubWallet) Address() common.Address { return s.address }

func (s *stubWallet) NativeBalance(context.Context) (*big.Int, error) {
	return s.balance, nil
}

func (s *stubWallet) Call(_ context.Context, _ common.Address, data []byte) ([]byte, error) {
	if s.callErr != nil {
		return nil, s.callErr
	}
	// 以方法选择器区分调用，响应由测试用例预置。
	if raw, ok := s.callResponses[string(data[:4])]; ok {
		return raw, nil
	}
	return nil, errors.New("unexpected call")
}

func (s *stubWallet) Submit(_ context.Context, to common.Address, value *big.Int, _ []byte) (*coretypes.Transaction, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	s.submissions = append(s.submissions, submission{to: to, value: value})
	return coretypes.NewTx(&coretypes.LegacyTx{To: &to}), nil
}

func (s *stubWallet) Await(context.Context, *coretypes.Transaction) (common.Hash, error) {
	if s.awaitErr != nil {
		return common.Hash{}, s.awaitErr
	}
	return s.awaitHash, nil
}

func (s *stubWallet) Allowance(context.Context, common.Address, common.Address) (*big.Int, error) {
	if s.allowance == nil {
		return big.NewInt(0), nil
	}
	return s.allowance, nil
}

func (s *stubWallet) Approve(context.Context, common.Address, common.Address) (common.Hash, error) {
	s.approvals++
	return common.HexToHash("0xaa"), nil
}

func packOutput(t *testing.T, methodName string, values ...interface{}) (string, []byte) {
	t.Helper()
	var raw []byte
	var err error
	switch methodName {
	case "isListed", "getAmountOut":
		method := curveRouterABI.Methods[methodName]
		raw, err = method.Outputs.Pack(values...)
		if err != nil {
			t.Fatalf("pack %s output: %v", methodName, err)
		}
		return string(method.ID), raw
	default:
		method := dexRouterABI.Methods[methodName]
		raw, err = method.Outputs.Pack(values...)
		if err != nil {
			t.Fatalf("pack %s output: %v", methodName, err)
		}
		return string(method.ID), raw
	}
}

func newCurveWallet(t *testing.T, listed bool, quote *big.Int) *stubWallet {
	t.Helper()
	wallet := &stubWallet{
		address:       common.HexToAddress("0x1111111111111111111111111111111111111111"),
		balance:       big.NewInt(1_000_000),
		awaitHash:     common.HexToHash("0xbeef"),
		callResponses: make(map[string][]byte),
	}
	key, raw := packOutput(t, "isListed", listed)
	wallet.callResponses[key] = raw
	if quote != nil {
		key, raw = packOutput(t, "getAmountOut", quote)
		wallet.callResponses[key] = raw
	}
	return wallet
}

var (
	testToken  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testRouter = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testWMON   = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func TestCurveBuyConfirmed(t *testing.T) {
	wallet := newCurveWallet(t, true, big.NewInt(5000))
	curve, err := NewCurve(wallet, testRouter, 15)
	if err != nil {
		t.Fatalf("NewCurve: %v", err)
	}

	hash, err := curve.Buy(context.Background(), testToken, big.NewInt(100))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if hash != wallet.awaitHash {
		t.Fatalf("hash = %s, want %s", hash, wallet.awaitHash)
	}
	if len(wallet.submissions) != 1 {
		t.Fatalf("submissions = %d, want 1", len(wallet.submissions))
	}
	if wallet.submissions[0].value.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("buy value = %s, want 100", wallet.submissions[0].value)
	}
}

func TestCurveBuyGraduatedToken(t *testing.T) {
	wallet := newCurveWallet(t, false, nil)
	curve, _ := NewCurve(wallet, testRouter, 15)

	_, err := curve.Buy(context.Background(), testToken, big.NewInt(100))
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if verr.Reason != ReasonNotTradeable {
		t.Fatalf("reason = %s, want %s", verr.Reason, ReasonNotTradeable)
	}
	if !verr.Reason.RetryableOnOtherVenue() {
		t.Fatal("graduated token should be retryable on the other venue")
	}
	if len(wallet.submissions) != 0 {
		t.Fatal("no transaction should be submitted for a graduated token")
	}
}

func TestCurveBuyInsufficientFunds(t *testing.T) {
	wallet := newCurveWallet(t, true, big.NewInt(5000))
	wallet.balance = big.NewInt(10)
	curve, _ := NewCurve(wallet, testRouter, 15)

	_, err := curve.Buy(context.Background(), testToken, big.NewInt(100))
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if verr.Reason != ReasonInsufficientFunds {
		t.Fatalf("reason = %s, want %s", verr.Reason, ReasonInsufficientFunds)
	}
	if verr.Reason.RetryableOnOtherVenue() {
		t.Fatal("insufficient funds must not trigger a venue fallback")
	}
}

func TestCurveSellApprovesWhenAllowanceLow(t *testing.T) {
	wallet := newCurveWallet(t, true, big.NewInt(70))
	wallet.allowance = big.NewInt(1)
	curve, _ := NewCurve(wallet, testRouter, 15)

	if _, err := curve.Sell(context.Background(), testToken, big.NewInt(500)); err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if wallet.approvals != 1 {
		t.Fatalf("approvals = %d, want 1", wallet.approvals)
	}
}

func TestCurveSellSkipsApprovalWhenAllowanceHigh(t *testing.T) {
	wallet := newCurveWallet(t, true, big.NewInt(70))
	wallet.allowance = big.NewInt(1_000_000)
	curve, _ := NewCurve(wallet, testRouter, 15)

	if _, err := curve.Sell(context.Background(), testToken, big.NewInt(500)); err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if wallet.approvals != 0 {
		t.Fatalf("approvals = %d, want 0", wallet.approvals)
	}
}

func TestCurveConfirmFailure(t *testing.T) {
	wallet := newCurveWallet(t, true, big.NewInt(5000))
	wallet.awaitErr = errors.New("reverted on-chain")
	curve, _ := NewCurve(wallet, testRouter, 15)

	_, err := curve.Buy(context.Background(), testToken, big.NewInt(100))
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if verr.Reason != ReasonConfirmFailed {
		t.Fatalf("reason = %s, want %s", verr.Reason, ReasonConfirmFailed)
	}
}

func newDexWallet(t *testing.T, quote *big.Int) *stubWallet {
	t.Helper()
	wallet := &stubWallet{
		address:       common.HexToAddress("0x1111111111111111111111111111111111111111"),
		balance:       big.NewInt(1_000_000),
		awaitHash:     common.HexToHash("0xdead"),
		callResponses: make(map[string][]byte),
	}
	if quote != nil {
		key, raw := packOutput(t, "getAmountsOut", []*big.Int{big.NewInt(1), quote})
		wallet.callResponses[key] = raw
	}
	key, raw := packOutput(t, "WETH", testWMON)
	wallet.callResponses[key] = raw
	return wallet
}

func TestDexBuyConfirmed(t *testing.T) {
	wallet := newDexWallet(t, big.NewInt(9000))
	dex, err := NewDEX(wallet, testRouter, testWMON, 20)
	if err != nil {
		t.Fatalf("NewDEX: %v", err)
	}

	hash, err := dex.Buy(context.Background(), testToken, big.NewInt(100))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if hash != wallet.awaitHash {
		t.Fatalf("hash = %s, want %s", hash, wallet.awaitHash)
	}
}

func TestDexBuyWithoutPool(t *testing.T) {
	wallet := newDexWallet(t, nil)
	wallet.callErr = errors.New("execution reverted")
	dex, _ := NewDEX(wallet, testRouter, testWMON, 20)

	_, err := dex.Buy(context.Background(), testToken, big.NewInt(100))
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if verr.Reason != ReasonNotTradeable {
		t.Fatalf("reason = %s, want %s", verr.Reason, ReasonNotTradeable)
	}
}

func TestDexSellApprovalPrecedesSwap(t *testing.T) {
	wallet := newDexWallet(t, big.NewInt(9000))
	wallet.allowance = big.NewInt(0)
	dex, _ := NewDEX(wallet, testRouter, testWMON, 20)

	if _, err := dex.Sell(context.Background(), testToken, big.NewInt(400)); err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if wallet.approvals != 1 {
		t.Fatalf("approvals = %d, want 1", wallet.approvals)
	}
	if len(wallet.submissions) != 1 {
		t.Fatalf("submissions = %d, want 1", len(wallet.submissions))
	}
}

func TestVerifyWrappedNativeMismatch(t *testing.T) {
	wallet := newDexWallet(t, nil)
	key, raw := packOutput(t, "WETH", testToken)
	wallet.callResponses[key] = raw
	dex, _ := NewDEX(wallet, testRouter, testWMON, 20)

	if err := dex.VerifyWrappedNative(context.Background()); err == nil {
		t.Fatal("mismatched wrapped native must fail verification")
	}
}

func TestApplySlippage(t *testing.T) {
	cases := []struct {
		quoted   int64
		percent  int
		expected int64
	}{
		{1000, 15, 850},
		{1000, 20, 800},
		{1000, 0, 1000},
		{1000, 150, 0},
	}
	for _, tc := range cases {
		got := applySlippage(big.NewInt(tc.quoted), tc.percent)
		if got.Cmp(big.NewInt(tc.expected)) != 0 {
			t.Errorf("applySlippage(%d, %d) = %s, want %d", tc.quoted, tc.percent, got, tc.expected)
		}
	}
}
