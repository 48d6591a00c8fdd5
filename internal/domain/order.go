package domain

import "time"

// Account is an opaque, externally authenticated identity. The core never
// authenticates an account, it only authorizes operations against one.
type Account string

// Token identifies a fungible token tracked by the custody ledger.
type Token string

// Order is a standing offer by Owner to exchange OfferedAmount of
// OfferedToken for WantedAmount of WantedToken.
// All monetary values are strictly int64.
// Immutable once created; lifecycle flags (cancelled, filled) live in the
// order registry, not on the record itself.
type Order struct {
	ID            uint64    `json:"id"`
	Owner         Account   `json:"owner"`
	WantedToken   Token     `json:"wanted_token"`
	WantedAmount  int64     `json:"wanted_amount"`
	OfferedToken  Token     `json:"offered_token"`
	OfferedAmount int64     `json:"offered_amount"`
	CreatedAt     time.Time `json:"created_at"`
}
