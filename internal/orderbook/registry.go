// Package orderbook implements the order registry: a flat, append-only
// record of limit orders keyed by a dense monotonic id. There is no matching
// book and no priority queue; each order is filled in full by exactly one
// counter-order.
package orderbook

import (
	"time"

	"custodex/internal/domain"
)

// Registry owns every order ever created plus its lifecycle flags.
// Orders are never deleted; history is retained for audit.
//
// Like the ledger, the registry is not internally synchronized; the exchange
// engine serializes access.
type Registry struct {
	nextID    uint64
	orders    map[uint64]*domain.Order
	cancelled map[uint64]bool
	filled    map[uint64]bool
}

// New creates an empty registry. The first issued id is 1.
func New() *Registry {
	return &Registry{
		nextID:    1,
		orders:    make(map[uint64]*domain.Order),
		cancelled: make(map[uint64]bool),
		filled:    make(map[uint64]bool),
	}
}

// Create issues the next id and records the order. The caller (engine) is
// responsible for the non-binding balance check on the offered amount; no
// funds are locked here.
func (r *Registry) Create(owner domain.Account, wantedToken domain.Token, wantedAmount int64, offeredToken domain.Token, offeredAmount int64, now time.Time) (*domain.Order, error) {
	if wantedAmount <= 0 || offeredAmount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	order := &domain.Order{
		ID:            r.nextID,
		Owner:         owner,
		WantedToken:   wantedToken,
		WantedAmount:  wantedAmount,
		OfferedToken:  offeredToken,
		OfferedAmount: offeredAmount,
		CreatedAt:     now,
	}
	r.orders[order.ID] = order
	r.nextID++
	return order, nil
}

// Get returns the order for id, or ErrOrderNotFound.
func (r *Registry) Get(id uint64) (*domain.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// Cancel marks the order cancelled. Only the owner may cancel; a second
// cancel fails with ErrAlreadyCancelled (cancel is not idempotent), and a
// settled order can no longer be cancelled.
func (r *Registry) Cancel(id uint64, caller domain.Account) (*domain.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if caller != order.Owner {
		return nil, domain.ErrUnauthorized
	}
	if r.filled[id] {
		return nil, domain.ErrOrderFilled
	}
	if r.cancelled[id] {
		return nil, domain.ErrAlreadyCancelled
	}

	r.cancelled[id] = true
	return order, nil
}

// IsCancelled reports the cancellation flag for an issued id.
func (r *Registry) IsCancelled(id uint64) bool {
	return r.cancelled[id]
}

// IsFilled reports whether the order has settled.
func (r *Registry) IsFilled(id uint64) bool {
	return r.filled[id]
}

// MarkFilled records a settlement. Called only by the settlement engine
// after both trade legs have executed.
func (r *Registry) MarkFilled(id uint64) {
	r.filled[id] = true
}

// NextID returns the id the next Create call will issue.
func (r *Registry) NextID() uint64 {
	return r.nextID
}

// Restore re-inserts an order with its lifecycle flags when rebuilding from
// storage at boot. The next id is bumped past every restored order, so ids
// stay dense and are never reused.
func (r *Registry) Restore(order *domain.Order, cancelled, filled bool) {
	r.orders[order.ID] = order
	if cancelled {
		r.cancelled[order.ID] = true
	}
	if filled {
		r.filled[order.ID] = true
	}
	if order.ID >= r.nextID {
		r.nextID = order.ID + 1
	}
}
