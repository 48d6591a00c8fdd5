package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"custodex/internal/domain"
	"custodex/internal/infra/transfer"
	"custodex/internal/ledger"
	"custodex/internal/orderbook"
)

// setup funds accounts through the simulator so the custody boundary stays
// consistent, then returns the wired components.
func setup(t *testing.T) (*ledger.Ledger, *orderbook.Registry, *Engine) {
	t.Helper()

	sim := transfer.NewSimulator()
	l := ledger.New(sim)
	book := orderbook.New()
	engine := New(l, book, decimal.Zero, "")

	ctx := context.Background()
	sim.Mint("GOLD", "u1", 1000)
	sim.Mint("SILVER", "u2", 1000)
	if _, err := l.Deposit(ctx, "GOLD", "u1", 100); err != nil {
		t.Fatalf("deposit GOLD/u1: %v", err)
	}
	if _, err := l.Deposit(ctx, "SILVER", "u2", 80); err != nil {
		t.Fatalf("deposit SILVER/u2: %v", err)
	}
	return l, book, engine
}

func TestFill(t *testing.T) {
	l, book, engine := setup(t)

	// u1 offers 20 GOLD for 50 SILVER; u2 fills.
	order, _ := book.Create("u1", "SILVER", 50, "GOLD", 20, time.Now())

	trade, err := engine.Fill(order.ID, "u2", time.Now())
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}

	if got := l.BalanceOf("GOLD", "u1"); got != 80 {
		t.Errorf("GOLD/u1 = %d, want 80", got)
	}
	if got := l.BalanceOf("SILVER", "u1"); got != 50 {
		t.Errorf("SILVER/u1 = %d, want 50", got)
	}
	if got := l.BalanceOf("GOLD", "u2"); got != 20 {
		t.Errorf("GOLD/u2 = %d, want 20", got)
	}
	if got := l.BalanceOf("SILVER", "u2"); got != 30 {
		t.Errorf("SILVER/u2 = %d, want 30", got)
	}

	if trade.FeeAmount != 0 {
		t.Errorf("fee = %d, want 0 (fees disabled)", trade.FeeAmount)
	}
	if !book.IsFilled(order.ID) {
		t.Error("order not marked filled")
	}
}

func TestFill_UnknownOrder(t *testing.T) {
	_, _, engine := setup(t)

	_, err := engine.Fill(999999, "u2", time.Now())
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestFill_CancelledOrder(t *testing.T) {
	_, book, engine := setup(t)

	order, _ := book.Create("u1", "SILVER", 50, "GOLD", 20, time.Now())
	if _, err := book.Cancel(order.ID, "u1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := engine.Fill(order.ID, "u2", time.Now())
	if !errors.Is(err, domain.ErrOrderCancelled) {
		t.Fatalf("expected ErrOrderCancelled, got %v", err)
	}
}

func TestFill_SecondFillRejected(t *testing.T) {
	l, book, engine := setup(t)

	order, _ := book.Create("u1", "SILVER", 20, "GOLD", 10, time.Now())

	if _, err := engine.Fill(order.ID, "u2", time.Now()); err != nil {
		t.Fatalf("first fill failed: %v", err)
	}

	// Both parties still have balance, but an order settles exactly once.
	_, err := engine.Fill(order.ID, "u2", time.Now())
	if !errors.Is(err, domain.ErrOrderFilled) {
		t.Fatalf("expected ErrOrderFilled on second fill, got %v", err)
	}
	if got := l.BalanceOf("SILVER", "u1"); got != 20 {
		t.Errorf("SILVER/u1 = %d after rejected refill, want 20", got)
	}
}

func TestFill_Atomicity(t *testing.T) {
	cases := []struct {
		name          string
		wantedAmount  int64 // u2 holds 80 SILVER
		offeredAmount int64 // u1 holds 100 GOLD
	}{
		{"filler side short", 81, 20},
		{"owner side short", 50, 101},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, book, engine := setup(t)
			order, _ := book.Create("u1", "SILVER", tc.wantedAmount, "GOLD", tc.offeredAmount, time.Now())

			_, err := engine.Fill(order.ID, "u2", time.Now())
			if !errors.Is(err, domain.ErrInsufficientBalance) {
				t.Fatalf("expected ErrInsufficientBalance, got %v", err)
			}

			// Neither leg may have moved.
			if got := l.BalanceOf("GOLD", "u1"); got != 100 {
				t.Errorf("GOLD/u1 = %d, want 100", got)
			}
			if got := l.BalanceOf("SILVER", "u2"); got != 80 {
				t.Errorf("SILVER/u2 = %d, want 80", got)
			}
			if got := l.BalanceOf("SILVER", "u1"); got != 0 {
				t.Errorf("SILVER/u1 = %d, want 0", got)
			}
			if got := l.BalanceOf("GOLD", "u2"); got != 0 {
				t.Errorf("GOLD/u2 = %d, want 0", got)
			}
			if book.IsFilled(order.ID) {
				t.Error("failed fill marked the order filled")
			}
		})
	}
}

func TestFill_FeeLeg(t *testing.T) {
	sim := transfer.NewSimulator()
	l := ledger.New(sim)
	book := orderbook.New()
	// 2% of the wanted leg goes to the fee account.
	engine := New(l, book, decimal.NewFromInt(2), "fees")

	ctx := context.Background()
	sim.Mint("GOLD", "u1", 100)
	sim.Mint("SILVER", "u2", 100)
	l.Deposit(ctx, "GOLD", "u1", 100)
	l.Deposit(ctx, "SILVER", "u2", 100)

	order, _ := book.Create("u1", "SILVER", 50, "GOLD", 20, time.Now())

	trade, err := engine.Fill(order.ID, "u2", time.Now())
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}

	// fee = 2% of 50 = 1, deducted from the owner's proceeds.
	if trade.FeeAmount != 1 {
		t.Fatalf("fee = %d, want 1", trade.FeeAmount)
	}
	if got := l.BalanceOf("SILVER", "u1"); got != 49 {
		t.Errorf("SILVER/u1 = %d, want 49", got)
	}
	if got := l.BalanceOf("SILVER", "fees"); got != 1 {
		t.Errorf("SILVER/fees = %d, want 1", got)
	}
	if got := l.BalanceOf("SILVER", "u2"); got != 50 {
		t.Errorf("SILVER/u2 = %d, want 50", got)
	}

	// Conservation holds with the third leg.
	if got := l.TotalInCustody("SILVER"); got != 100 {
		t.Errorf("TotalInCustody(SILVER) = %d, want 100", got)
	}
}

func TestFill_FeePercentCapped(t *testing.T) {
	sim := transfer.NewSimulator()
	l := ledger.New(sim)
	book := orderbook.New()
	// A rate above 100 is capped at the whole wanted leg; the fill must
	// still settle instead of driving the owner's proceeds negative.
	engine := New(l, book, decimal.NewFromInt(150), "fees")

	ctx := context.Background()
	sim.Mint("GOLD", "u1", 100)
	sim.Mint("SILVER", "u2", 100)
	l.Deposit(ctx, "GOLD", "u1", 100)
	l.Deposit(ctx, "SILVER", "u2", 100)

	order, _ := book.Create("u1", "SILVER", 50, "GOLD", 20, time.Now())

	trade, err := engine.Fill(order.ID, "u2", time.Now())
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}

	if trade.FeeAmount != 50 {
		t.Fatalf("fee = %d, want 50 (capped at the wanted leg)", trade.FeeAmount)
	}
	if got := l.BalanceOf("SILVER", "u1"); got != 0 {
		t.Errorf("SILVER/u1 = %d, want 0", got)
	}
	if got := l.BalanceOf("SILVER", "fees"); got != 50 {
		t.Errorf("SILVER/fees = %d, want 50", got)
	}
	if got := l.BalanceOf("GOLD", "u2"); got != 20 {
		t.Errorf("GOLD/u2 = %d, want 20", got)
	}
	if got := l.TotalInCustody("SILVER"); got != 100 {
		t.Errorf("TotalInCustody(SILVER) = %d, want 100", got)
	}
}

func TestFill_FeeRoundsDown(t *testing.T) {
	engine := New(nil, nil, decimal.NewFromFloat(2.5), "fees")

	// 2.5% of 10 = 0.25 -> 0
	if got := engine.fee(10); got != 0 {
		t.Errorf("fee(10) = %d, want 0", got)
	}
	// 2.5% of 1000 = 25
	if got := engine.fee(1000); got != 25 {
		t.Errorf("fee(1000) = %d, want 25", got)
	}
}
