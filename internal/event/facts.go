// Package event defines facts: immutable records of completed state changes,
// emitted for external observers (audit log, UI feeds). The core never waits
// for acknowledgement.
package event

import (
	"time"

	"custodex/internal/domain"
)

// Kind discriminates the five fact types.
type Kind string

const (
	KindDeposit      Kind = "DEPOSIT"
	KindWithdraw     Kind = "WITHDRAW"
	KindOrderCreated Kind = "ORDER_CREATED"
	KindCancelled    Kind = "CANCELLED"
	KindTrade        Kind = "TRADE"
)

// Fact is an immutable record of one applied operation. Seq is a global
// sequence assigned by the exchange engine in apply order.
type Fact interface {
	GetKind() Kind
	GetSeq() uint64
	GetTime() time.Time
}

// Header carries the fields common to every fact.
type Header struct {
	Kind Kind      `json:"kind"`
	Seq  uint64    `json:"seq"`
	Ts   time.Time `json:"ts"`
}

func (h Header) GetKind() Kind { return h.Kind }

func (h Header) GetSeq() uint64 { return h.Seq }

func (h Header) GetTime() time.Time { return h.Ts }

// DepositFact records tokens entering custody.
type DepositFact struct {
	Header
	Token      domain.Token   `json:"token"`
	Account    domain.Account `json:"account"`
	Amount     int64          `json:"amount"`
	NewBalance int64          `json:"new_balance"`
}

// WithdrawFact records tokens leaving custody.
type WithdrawFact struct {
	Header
	Token      domain.Token   `json:"token"`
	Account    domain.Account `json:"account"`
	Amount     int64          `json:"amount"`
	NewBalance int64          `json:"new_balance"`
}

// OrderCreatedFact carries the full order tuple.
type OrderCreatedFact struct {
	Header
	Order domain.Order `json:"order"`
}

// CancelledFact carries the full order tuple plus the cancellation time (the
// header timestamp).
type CancelledFact struct {
	Header
	Order domain.Order `json:"order"`
}

// TradeFact records a settlement.
type TradeFact struct {
	Header
	OrderID       uint64         `json:"order_id"`
	Owner         domain.Account `json:"owner"`
	Filler        domain.Account `json:"filler"`
	WantedToken   domain.Token   `json:"wanted_token"`
	WantedAmount  int64          `json:"wanted_amount"`
	OfferedToken  domain.Token   `json:"offered_token"`
	OfferedAmount int64          `json:"offered_amount"`
	FeeAmount     int64          `json:"fee_amount,omitempty"`
}
