// Package settlement executes fills: the atomic two-leg swap that settles an
// order between its owner and a counterparty, entirely inside the custody
// ledger.
package settlement

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"custodex/internal/domain"
	"custodex/internal/ledger"
	"custodex/internal/orderbook"
)

// Trade is the outcome of a successful fill.
type Trade struct {
	Order      *domain.Order
	Filler     domain.Account
	FeeAmount  int64 // portion of the wanted leg credited to the fee account
	ExecutedAt time.Time
}

// Engine validates and executes fills against the order registry and the
// custody ledger. Serialized by the exchange engine, like everything else.
//
// Fees are an extension point, off by default: with a positive fee percent
// and a configured fee account, a third leg deducts feePercent of the wanted
// leg from the owner's proceeds and credits it to the fee account. With a
// zero percent or no fee account the swap is exactly two legs.
type Engine struct {
	ledger     *ledger.Ledger
	book       *orderbook.Registry
	feePercent decimal.Decimal
	feeAccount domain.Account
}

var oneHundred = decimal.NewFromInt(100)

// New creates a settlement engine over the given ledger and registry.
// The fee percent is capped at 100: the fee leg may consume the whole wanted
// leg but can never exceed it, so the owner's proceeds cannot go negative.
func New(l *ledger.Ledger, book *orderbook.Registry, feePercent decimal.Decimal, feeAccount domain.Account) *Engine {
	if feePercent.GreaterThan(oneHundred) {
		feePercent = oneHundred
	}
	return &Engine{
		ledger:     l,
		book:       book,
		feePercent: feePercent,
		feeAccount: feeAccount,
	}
}

// Fill settles order id with filler as the counterparty:
//
//	wantedAmount of wantedToken   moves filler -> owner (minus fee, if any)
//	offeredAmount of offeredToken moves owner  -> filler
//
// Both legs are validated before either balance is touched, so a failed fill
// mutates nothing. An order settles at most once; a second fill is rejected
// with ErrOrderFilled. Balances are not escrowed at creation time, so a fill
// can fail with ErrInsufficientBalance on either side even for an order that
// was fully funded when created.
func (e *Engine) Fill(id uint64, filler domain.Account, now time.Time) (*Trade, error) {
	order, err := e.book.Get(id)
	if err != nil {
		return nil, err
	}
	if e.book.IsCancelled(id) {
		return nil, domain.ErrOrderCancelled
	}
	if e.book.IsFilled(id) {
		return nil, domain.ErrOrderFilled
	}

	fee := e.fee(order.WantedAmount)

	// Validate both legs up front; nothing below may fail.
	if e.ledger.BalanceOf(order.WantedToken, filler) < order.WantedAmount {
		return nil, domain.ErrInsufficientBalance
	}
	if e.ledger.BalanceOf(order.OfferedToken, order.Owner) < order.OfferedAmount {
		return nil, domain.ErrInsufficientBalance
	}

	e.mustTransfer(order.WantedToken, filler, order.Owner, order.WantedAmount-fee)
	if fee > 0 {
		e.mustTransfer(order.WantedToken, filler, e.feeAccount, fee)
	}
	e.mustTransfer(order.OfferedToken, order.Owner, filler, order.OfferedAmount)

	e.book.MarkFilled(id)

	return &Trade{
		Order:      order,
		Filler:     filler,
		FeeAmount:  fee,
		ExecutedAt: now,
	}, nil
}

// FeeAccount returns the configured fee account, empty when fees are off.
func (e *Engine) FeeAccount() domain.Account {
	return e.feeAccount
}

// fee computes the fee leg, rounded down. Zero unless both a positive fee
// percent and a fee account are configured.
func (e *Engine) fee(wantedAmount int64) int64 {
	if e.feeAccount == "" || !e.feePercent.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(wantedAmount).
		Mul(e.feePercent).
		Div(oneHundred).
		IntPart()
}

// mustTransfer executes a pre-validated leg. A failure here means the
// up-front validation was wrong, which is a ledger corruption; halt.
func (e *Engine) mustTransfer(token domain.Token, from, to domain.Account, amount int64) {
	if amount == 0 {
		return
	}
	if err := e.ledger.TransferInternal(token, from, to, amount); err != nil {
		panic(fmt.Sprintf("SETTLEMENT_LEG_FAILED_AFTER_VALIDATION: %s %d %s->%s: %v",
			token, amount, from, to, err))
	}
}
