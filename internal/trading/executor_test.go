package trading

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	xerrors "FundAgent/internal/errors"
	"FundAgent/internal/venue"
)

// stubVenue 按预设结果响应买卖请求，并记录调用次数。
type stubVenue struct {
	kind     venue.Kind
	hash     common.Hash
	buyErr   error
	sellErr  error
	buyCalls int
	sellCall int
}

func (s *stubVenue) Kind() venue.Kind { return s.kind }

func (s *stubVenue) Buy(context.Context, common.Address, *big.Int) (common.Hash, error) {
	s.buyCalls++
	if s.buyErr != nil {
		return common.Hash{}, s.buyErr
	}
	return s.hash, nil
}

func (s *stubVenue) Sell(context.Context, common.Address, *big.Int) (common.Hash, error) {
	s.sellCall++
	if s.sellErr != nil {
		return common.Hash{}, s.sellErr
	}
	return s.hash, nil
}

var someToken = common.HexToAddress("0x9999999999999999999999999999999999999999")

func TestBuyStaysOnCurve(t *testing.T) {
	curve := &stubVenue{kind: venue.KindBondingCurve, hash: common.HexToHash("0x01")}
	dex := &stubVenue{kind: venue.KindDEX, hash: common.HexToHash("0x02")}
	exec, err := NewExecutor(curve, dex)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}

	execution, err := exec.Buy(context.Background(), someToken, big.NewInt(1))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if execution.Venue != venue.KindBondingCurve {
		t.Fatalf("venue = %s, want %s", execution.Venue, venue.KindBondingCurve)
	}
	if dex.buyCalls != 0 {
		t.Fatal("dex must not be attempted when the curve succeeds")
	}
}

func TestBuyFallsBackOnGraduation(t *testing.T) {
	curve := &stubVenue{
		kind:   venue.KindBondingCurve,
		buyErr: &venue.Error{Venue: venue.KindBondingCurve, Reason: venue.ReasonNotTradeable},
	}
	dex := &stubVenue{kind: venue.KindDEX, hash: common.HexToHash("0x02")}
	exec, _ := NewExecutor(curve, dex)

	execution, err := exec.Buy(context.Background(), someToken, big.NewInt(1))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if execution.Venue != venue.KindDEX {
		t.Fatalf("venue = %s, want %s", execution.Venue, venue.KindDEX)
	}
	if execution.TxHash != common.HexToHash("0x02").Hex() {
		t.Fatalf("tx hash = %s", execution.TxHash)
	}
}

func TestBuyFatalFailureSkipsFallback(t *testing.T) {
	curve := &stubVenue{
		kind:   venue.KindBondingCurve,
		buyErr: &venue.Error{Venue: venue.KindBondingCurve, Reason: venue.ReasonInsufficientFunds},
	}
	dex := &stubVenue{kind: venue.KindDEX, hash: common.HexToHash("0x02")}
	exec, _ := NewExecutor(curve, dex)

	if _, err := exec.Buy(context.Background(), someToken, big.NewInt(1)); err == nil {
		t.Fatal("fatal curve failure must end the attempt")
	}
	if dex.buyCalls != 0 {
		t.Fatal("insufficient funds must not trigger the dex fallback")
	}
}

func TestBuyDualFailure(t *testing.T) {
	curve := &stubVenue{
		kind:   venue.KindBondingCurve,
		buyErr: &venue.Error{Venue: venue.KindBondingCurve, Reason: venue.ReasonNotTradeable},
	}
	dex := &stubVenue{
		kind:   venue.KindDEX,
		buyErr: &venue.Error{Venue: venue.KindDEX, Reason: venue.ReasonConfirmFailed},
	}
	exec, _ := NewExecutor(curve, dex)

	_, err := exec.Buy(context.Background(), someToken, big.NewInt(1))
	if err == nil {
		t.Fatal("dual failure must surface an error")
	}
	if xerrors.CodeOf(err) != xerrors.CodeExecutionFailure {
		t.Fatalf("code = %s, want %s", xerrors.CodeOf(err), xerrors.CodeExecutionFailure)
	}
}

func TestSellPrefersDex(t *testing.T) {
	curve := &stubVenue{kind: venue.KindBondingCurve, hash: common.HexToHash("0x01")}
	dex := &stubVenue{kind: venue.KindDEX, hash: common.HexToHash("0x02")}
	exec, _ := NewExecutor(curve, dex)

	execution, err := exec.Sell(context.Background(), someToken, big.NewInt(5))
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if execution.Venue != venue.KindDEX {
		t.Fatalf("venue = %s, want %s", execution.Venue, venue.KindDEX)
	}
	if curve.sellCall != 0 {
		t.Fatal("curve must not be attempted when the dex sale succeeds")
	}
}

func TestSellFallsBackToCurveOnAnyFailure(t *testing.T) {
	curve := &stubVenue{kind: venue.KindBondingCurve, hash: common.HexToHash("0x01")}
	dex := &stubVenue{kind: venue.KindDEX, sellErr: errors.New("no route")}
	exec, _ := NewExecutor(curve, dex)

	execution, err := exec.Sell(context.Background(), someToken, big.NewInt(5))
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if execution.Venue != venue.KindBondingCurve {
		t.Fatalf("venue = %s, want %s", execution.Venue, venue.KindBondingCurve)
	}
}
