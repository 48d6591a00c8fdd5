// Package ledger implements the custody ledger: per-(token, account)
// balances for funds the system holds on behalf of users, distinct from
// their external token holdings.
package ledger

import (
	"context"

	"custodex/internal/domain"
	"custodex/pkg/safe"
)

type balanceKey struct {
	token   domain.Token
	account domain.Account
}

// Ledger tracks custodied balances and moves tokens across the custody
// boundary through the external transfer service.
//
// The ledger is NOT internally synchronized. It is exclusively owned by the
// exchange engine, which serializes every operation behind one lock.
type Ledger struct {
	transfer domain.TransferService
	balances map[balanceKey]int64
}

// New creates an empty ledger backed by the given transfer service.
func New(transfer domain.TransferService) *Ledger {
	return &Ledger{
		transfer: transfer,
		balances: make(map[balanceKey]int64),
	}
}

// BalanceOf returns the custodied balance for (token, account).
// Unknown pairs are zero; this never fails.
func (l *Ledger) BalanceOf(token domain.Token, account domain.Account) int64 {
	return l.balances[balanceKey{token, account}]
}

// Deposit pulls amount of token from the account's external holdings into
// custody, then credits the custody balance. The pull happens first: if the
// external service rejects it, nothing changes and ErrTransferFailed is
// returned. Returns the new balance.
func (l *Ledger) Deposit(ctx context.Context, token domain.Token, account domain.Account, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}

	if err := l.transfer.Pull(ctx, token, account, amount); err != nil {
		return 0, err
	}

	key := balanceKey{token, account}
	l.balances[key] = safe.SafeAdd(l.balances[key], amount)
	return l.balances[key], nil
}

// Withdraw debits the custody balance, then pushes amount of token to the
// account's external holdings.
//
// Ordering invariant: the internal debit MUST happen strictly before the
// external push. A push that could observe the pre-debit balance would allow
// a reentrant withdraw to double-spend. If the push is rejected the debit is
// rolled back and ErrTransferFailed is returned, leaving no state change.
// Returns the new balance.
func (l *Ledger) Withdraw(ctx context.Context, token domain.Token, account domain.Account, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}

	key := balanceKey{token, account}
	if l.balances[key] < amount {
		return 0, domain.ErrInsufficientBalance
	}

	// Debit before push.
	l.balances[key] = safe.SafeSub(l.balances[key], amount)

	if err := l.transfer.Push(ctx, token, account, amount); err != nil {
		l.balances[key] = safe.SafeAdd(l.balances[key], amount)
		return 0, err
	}

	return l.balances[key], nil
}

// TransferInternal moves amount of token between two custodied accounts
// without touching the external service. This is the settlement primitive;
// it is not exposed as a caller-facing operation.
func (l *Ledger) TransferInternal(token domain.Token, from, to domain.Account, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}

	fromKey := balanceKey{token, from}
	if l.balances[fromKey] < amount {
		return domain.ErrInsufficientBalance
	}

	toKey := balanceKey{token, to}
	l.balances[fromKey] = safe.SafeSub(l.balances[fromKey], amount)
	l.balances[toKey] = safe.SafeAdd(l.balances[toKey], amount)
	return nil
}

// Restore sets a balance directly. Used only when rebuilding state from
// storage at boot; it bypasses the transfer service.
func (l *Ledger) Restore(token domain.Token, account domain.Account, amount int64) {
	l.balances[balanceKey{token, account}] = amount
}

// TotalInCustody returns the sum of all custodied balances for a token.
// This must never exceed what the external service holds for the system.
func (l *Ledger) TotalInCustody(token domain.Token) int64 {
	var total int64
	for key, amount := range l.balances {
		if key.token == token {
			total = safe.SafeAdd(total, amount)
		}
	}
	return total
}

// Entry is one custody balance row, used for snapshots and persistence.
type Entry struct {
	Token   domain.Token
	Account domain.Account
	Amount  int64
}

// Snapshot returns a copy of all non-zero balances (for state dump and
// write-through persistence).
func (l *Ledger) Snapshot() []Entry {
	entries := make([]Entry, 0, len(l.balances))
	for key, amount := range l.balances {
		if amount == 0 {
			continue
		}
		entries = append(entries, Entry{Token: key.token, Account: key.account, Amount: amount})
	}
	return entries
}
