package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestLedger(t *testing.T, dir string) *Ledger {
	t.Helper()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	book, err := Open(context.Background(), store)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return book
}

func trade(kind Type, token, amount string) Trade {
	return Trade{
		ID:     token + "-" + string(kind) + "-" + amount,
		Type:   kind,
		Token:  token,
		Name:   "Token " + token,
		Symbol: "TK" + token,
		Amount: decimal.RequireFromString(amount),
		Venue:  "bonding_curve",
		TxHash: "0xabc",
		Time:   time.Now().UTC(),
	}
}

func TestHoldingsDerivation(t *testing.T) {
	book := newTestLedger(t, t.TempDir())
	ctx := context.Background()

	for _, tr := range []Trade{
		trade(TypeBuy, "A", "1"),
		trade(TypeBuy, "B", "2"),
		trade(TypeBuy, "A", "0.5"),
		trade(TypeSell, "B", "3"),
	} {
		if err := book.Append(ctx, tr); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	holdings := book.Holdings()
	if len(holdings) != 1 {
		t.Fatalf("holdings = %d, want 1", len(holdings))
	}
	if holdings[0].Token != "A" {
		t.Fatalf("held token = %s, want A", holdings[0].Token)
	}
	if !holdings[0].NetInvested.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("net invested = %s, want 1.5", holdings[0].NetInvested)
	}
	if book.Held("B") {
		t.Fatal("B was fully sold and must not be held")
	}
	if !book.NetInvested().Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("fund net invested = %s, want 0.5", book.NetInvested())
	}
	if !book.TotalSpent().Equal(decimal.RequireFromString("3.5")) {
		t.Fatalf("total spent = %s, want 3.5", book.TotalSpent())
	}
}

func TestHoldingsOrderIndependent(t *testing.T) {
	forward := newTestLedger(t, t.TempDir())
	reverse := newTestLedger(t, t.TempDir())
	ctx := context.Background()

	trades := []Trade{
		trade(TypeBuy, "A", "1"),
		trade(TypeBuy, "C", "2"),
		trade(TypeBuy, "B", "4"),
	}
	for _, tr := range trades {
		if err := forward.Append(ctx, tr); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	for i := len(trades) - 1; i >= 0; i-- {
		if err := reverse.Append(ctx, trades[i]); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	a, b := forward.Holdings(), reverse.Holdings()
	if len(a) != len(b) {
		t.Fatalf("holding counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Token != b[i].Token || !a[i].NetInvested.Equal(b[i].NetInvested) {
			t.Fatalf("holdings differ at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestTradeCountSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	book := newTestLedger(t, dir)
	for i := 0; i < 3; i++ {
		if err := book.Append(ctx, trade(TypeBuy, "A", "1")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if book.TradeCount() != 3 {
		t.Fatalf("count = %d, want 3", book.TradeCount())
	}

	reloaded := newTestLedger(t, dir)
	if reloaded.TradeCount() != 3 {
		t.Fatalf("reloaded count = %d, want 3", reloaded.TradeCount())
	}
}

func TestTradeCountSurvivesLostLedgerFile(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	book := newTestLedger(t, dir)
	for i := 0; i < 5; i++ {
		if err := book.Append(ctx, trade(TypeBuy, "A", "1")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	// 记录文件丢失后，计数文件仍要守住终身交易上限。
	if err := os.Remove(filepath.Join(dir, "trades.jsonl")); err != nil {
		t.Fatalf("remove ledger file: %v", err)
	}

	reloaded := newTestLedger(t, dir)
	if reloaded.TradeCount() != 5 {
		t.Fatalf("reloaded count = %d, want 5", reloaded.TradeCount())
	}
	if len(reloaded.Trades()) != 0 {
		t.Fatal("trades should be empty after the ledger file is lost")
	}
}

func TestRepairNames(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	book := newTestLedger(t, dir)
	dirty := trade(TypeBuy, "0xfeed", "1")
	dirty.Name = `self.__next_f.push([1,"bad"])`
	if err := book.Append(ctx, dirty); err != nil {
		t.Fatalf("Append: %v", err)
	}
	clean := trade(TypeBuy, "0xgood", "1")
	if err := book.Append(ctx, clean); err != nil {
		t.Fatalf("Append: %v", err)
	}

	lookups := 0
	lookup := func(_ context.Context, token string) (string, string, error) {
		lookups++
		return "Chain Name", "CHN", nil
	}

	if repaired := book.RepairNames(ctx, lookup); repaired != 1 {
		t.Fatalf("repaired = %d, want 1", repaired)
	}
	if lookups != 1 {
		t.Fatalf("lookups = %d, want 1 (clean names must not be touched)", lookups)
	}

	for _, tr := range book.Trades() {
		if tr.Token == "0xfeed" && tr.Name != "Chain Name" {
			t.Fatalf("dirty name not repaired: %q", tr.Name)
		}
		if tr.Token == "0xgood" && tr.Name != clean.Name {
			t.Fatalf("clean name was rewritten: %q", tr.Name)
		}
	}

	// 再跑一遍应当无事可做。
	if repaired := book.RepairNames(ctx, lookup); repaired != 0 {
		t.Fatal("second repair pass must be a no-op")
	}

	reloaded := newTestLedger(t, dir)
	for _, tr := range reloaded.Trades() {
		if tr.Token == "0xfeed" && tr.Name != "Chain Name" {
			t.Fatalf("repair not persisted: %q", tr.Name)
		}
	}
}
