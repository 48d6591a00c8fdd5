package ledger

import (
	"context"
	"errors"
	"testing"

	"custodex/internal/domain"
)

// fakeTransfer is a scriptable transfer service that records calls.
type fakeTransfer struct {
	pullErr error
	pushErr error
	calls   []string
	onPush  func() // invoked when Push is called, before returning
}

func (f *fakeTransfer) Pull(ctx context.Context, token domain.Token, from domain.Account, amount int64) error {
	f.calls = append(f.calls, "pull")
	return f.pullErr
}

func (f *fakeTransfer) Push(ctx context.Context, token domain.Token, to domain.Account, amount int64) error {
	f.calls = append(f.calls, "push")
	if f.onPush != nil {
		f.onPush()
	}
	return f.pushErr
}

func TestDeposit(t *testing.T) {
	svc := &fakeTransfer{}
	l := New(svc)
	ctx := context.Background()

	newBal, err := l.Deposit(ctx, "GOLD", "alice", 100)
	if err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	if newBal != 100 {
		t.Errorf("expected new balance 100, got %d", newBal)
	}
	if got := l.BalanceOf("GOLD", "alice"); got != 100 {
		t.Errorf("BalanceOf = %d, want 100", got)
	}

	// No other balance changed
	if got := l.BalanceOf("GOLD", "bob"); got != 0 {
		t.Errorf("unrelated balance = %d, want 0", got)
	}
}

func TestDeposit_PullRejected(t *testing.T) {
	svc := &fakeTransfer{pullErr: domain.NewTransferError("pull", "GOLD", "alice", errors.New("no allowance"))}
	l := New(svc)

	_, err := l.Deposit(context.Background(), "GOLD", "alice", 100)
	if !errors.Is(err, domain.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if got := l.BalanceOf("GOLD", "alice"); got != 0 {
		t.Errorf("balance changed on failed deposit: %d", got)
	}
}

func TestDeposit_InvalidAmount(t *testing.T) {
	svc := &fakeTransfer{}
	l := New(svc)

	for _, amount := range []int64{0, -5} {
		if _, err := l.Deposit(context.Background(), "GOLD", "alice", amount); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("Deposit(%d): expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if len(svc.calls) != 0 {
		t.Error("transfer service should not be called for invalid amounts")
	}
}

func TestWithdraw(t *testing.T) {
	svc := &fakeTransfer{}
	l := New(svc)
	ctx := context.Background()

	l.Deposit(ctx, "GOLD", "alice", 100)

	newBal, err := l.Withdraw(ctx, "GOLD", "alice", 40)
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if newBal != 60 {
		t.Errorf("expected new balance 60, got %d", newBal)
	}
}

func TestWithdraw_Insufficient(t *testing.T) {
	svc := &fakeTransfer{}
	l := New(svc)
	ctx := context.Background()

	l.Deposit(ctx, "GOLD", "alice", 50)

	_, err := l.Withdraw(ctx, "GOLD", "alice", 51)
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := l.BalanceOf("GOLD", "alice"); got != 50 {
		t.Errorf("balance changed on rejected withdraw: %d", got)
	}
	// The external service must not see a push for a rejected withdraw.
	for _, call := range svc.calls {
		if call == "push" {
			t.Error("push was requested despite insufficient balance")
		}
	}
}

func TestWithdraw_DebitBeforePush(t *testing.T) {
	svc := &fakeTransfer{}
	l := New(svc)
	ctx := context.Background()

	l.Deposit(ctx, "GOLD", "alice", 100)

	// Observe the internal balance at the moment the push happens: the
	// debit must already be applied, or a reentrant withdraw could
	// double-spend.
	var balanceAtPush int64 = -1
	svc.onPush = func() {
		balanceAtPush = l.BalanceOf("GOLD", "alice")
	}

	if _, err := l.Withdraw(ctx, "GOLD", "alice", 100); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if balanceAtPush != 0 {
		t.Errorf("balance at push time = %d, want 0 (debit must precede push)", balanceAtPush)
	}
}

func TestWithdraw_PushRejectedRollsBack(t *testing.T) {
	svc := &fakeTransfer{pushErr: domain.NewTransferError("push", "GOLD", "alice", errors.New("service down"))}
	l := New(svc)
	ctx := context.Background()

	l.Deposit(ctx, "GOLD", "alice", 100)

	_, err := l.Withdraw(ctx, "GOLD", "alice", 60)
	if !errors.Is(err, domain.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if got := l.BalanceOf("GOLD", "alice"); got != 100 {
		t.Errorf("debit not rolled back after push rejection: %d", got)
	}
}

func TestTransferInternal(t *testing.T) {
	svc := &fakeTransfer{}
	l := New(svc)
	ctx := context.Background()

	l.Deposit(ctx, "GOLD", "alice", 100)
	callsBefore := len(svc.calls)

	if err := l.TransferInternal("GOLD", "alice", "bob", 30); err != nil {
		t.Fatalf("TransferInternal failed: %v", err)
	}
	if got := l.BalanceOf("GOLD", "alice"); got != 70 {
		t.Errorf("alice = %d, want 70", got)
	}
	if got := l.BalanceOf("GOLD", "bob"); got != 30 {
		t.Errorf("bob = %d, want 30", got)
	}

	// Internal moves never touch the external service.
	if len(svc.calls) != callsBefore {
		t.Error("TransferInternal called the external service")
	}

	// Conservation: the sum only gets reassigned.
	if got := l.TotalInCustody("GOLD"); got != 100 {
		t.Errorf("TotalInCustody = %d, want 100", got)
	}
}

func TestTransferInternal_Insufficient(t *testing.T) {
	l := New(&fakeTransfer{})
	ctx := context.Background()

	l.Deposit(ctx, "GOLD", "alice", 10)

	err := l.TransferInternal("GOLD", "alice", "bob", 11)
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if l.BalanceOf("GOLD", "alice") != 10 || l.BalanceOf("GOLD", "bob") != 0 {
		t.Error("balances changed on rejected internal transfer")
	}
}

func TestConservation(t *testing.T) {
	l := New(&fakeTransfer{})
	ctx := context.Background()

	// Sum equals net deposits minus net withdrawals at every step.
	l.Deposit(ctx, "GOLD", "alice", 100)
	l.Deposit(ctx, "GOLD", "bob", 50)
	if got := l.TotalInCustody("GOLD"); got != 150 {
		t.Fatalf("after deposits: total = %d, want 150", got)
	}

	l.TransferInternal("GOLD", "alice", "bob", 25)
	if got := l.TotalInCustody("GOLD"); got != 150 {
		t.Fatalf("after internal transfer: total = %d, want 150", got)
	}

	l.Withdraw(ctx, "GOLD", "bob", 70)
	if got := l.TotalInCustody("GOLD"); got != 80 {
		t.Fatalf("after withdraw: total = %d, want 80", got)
	}
}

func TestBalanceOf_UnknownPairIsZero(t *testing.T) {
	l := New(&fakeTransfer{})
	if got := l.BalanceOf("NEVER", "nobody"); got != 0 {
		t.Errorf("BalanceOf unknown pair = %d, want 0", got)
	}
}
