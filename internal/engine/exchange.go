// Package engine composes the custody ledger, the order registry, and the
// settlement engine into one serialized state machine. Every operation runs
// as a single atomic, globally ordered step: one writer at a time across the
// whole state, no background work, no internal retries.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"custodex/internal/domain"
	"custodex/internal/event"
	"custodex/internal/infra"
	"custodex/internal/infra/storage"
	"custodex/internal/ledger"
	"custodex/internal/orderbook"
	"custodex/internal/settlement"
)

// Order status strings reported to callers.
const (
	OrderStatusOpen      = "OPEN"
	OrderStatusCancelled = "CANCELLED"
	OrderStatusFilled    = "FILLED"
)

// OrderView is an order together with its lifecycle status.
type OrderView struct {
	Order  domain.Order `json:"order"`
	Status string       `json:"status"`
}

// Exchange is the single global mutual-exclusion boundary around the core
// state. It owns the fact sequence, write-through persistence, fact emission,
// and metrics.
//
// Storage failure after an applied operation is unrecoverable and halts the
// process: a ledger that silently diverges from its journal is worse than a
// dead one.
type Exchange struct {
	mu sync.Mutex

	ledger *ledger.Ledger
	book   *orderbook.Registry
	settle *settlement.Engine

	store   *storage.Storage // nil = ephemeral (tests)
	sink    event.Sink       // nil = no observers
	metrics *infra.Metrics

	nextSeq uint64
	now     func() time.Time
}

// New wires an exchange over its three components. store and sink may be nil.
func New(l *ledger.Ledger, book *orderbook.Registry, settle *settlement.Engine, store *storage.Storage, sink event.Sink) *Exchange {
	return &Exchange{
		ledger:  l,
		book:    book,
		settle:  settle,
		store:   store,
		sink:    sink,
		metrics: infra.GlobalMetrics,
		nextSeq: 1,
		now:     time.Now,
	}
}

// Restore rebuilds in-memory state from storage. Must be called before the
// exchange serves traffic.
func (x *Exchange) Restore() error {
	if x.store == nil {
		return nil
	}

	balances, err := x.store.LoadBalances()
	if err != nil {
		return fmt.Errorf("restore balances: %w", err)
	}
	for _, row := range balances {
		x.ledger.Restore(domain.Token(row.Token), domain.Account(row.Account), row.Amount)
	}

	orders, err := x.store.LoadOrders()
	if err != nil {
		return fmt.Errorf("restore orders: %w", err)
	}
	for _, row := range orders {
		x.book.Restore(&domain.Order{
			ID:            row.ID,
			Owner:         domain.Account(row.Owner),
			WantedToken:   domain.Token(row.WantedToken),
			WantedAmount:  row.WantedAmount,
			OfferedToken:  domain.Token(row.OfferedToken),
			OfferedAmount: row.OfferedAmount,
			CreatedAt:     row.CreatedAt,
		}, row.Cancelled, row.Filled)
	}

	counter, err := x.store.NextOrderID()
	if err != nil {
		return fmt.Errorf("restore order counter: %w", err)
	}
	if derived := x.book.NextID(); counter != derived {
		return fmt.Errorf("order id counter mismatch: stored %d, derived from orders %d", counter, derived)
	}

	lastSeq, err := x.store.LastFactSeq()
	if err != nil {
		return fmt.Errorf("restore fact seq: %w", err)
	}
	x.nextSeq = lastSeq + 1

	slog.Info("State restored",
		slog.Int("balances", len(balances)),
		slog.Int("orders", len(orders)),
		slog.Uint64("next_seq", x.nextSeq))
	return nil
}

// Deposit pulls amount of token from account's external holdings into
// custody and credits the custody balance. Returns the new balance.
func (x *Exchange) Deposit(ctx context.Context, token domain.Token, account domain.Account, amount int64) (int64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	newBalance, err := x.ledger.Deposit(ctx, token, account, amount)
	if err != nil {
		x.metrics.RecordRejection()
		return 0, err
	}

	fact := &event.DepositFact{
		Header:     x.header(event.KindDeposit),
		Token:      token,
		Account:    account,
		Amount:     amount,
		NewBalance: newBalance,
	}
	x.persist(fact, func(row storage.FactRow) error {
		return x.store.SaveDeposit(x.balanceRow(token, account), row)
	})

	x.metrics.RecordDeposit()
	x.emit(fact)
	return newBalance, nil
}

// Withdraw debits the custody balance and pushes amount of token back to the
// account's external holdings. Returns the new balance.
func (x *Exchange) Withdraw(ctx context.Context, token domain.Token, account domain.Account, amount int64) (int64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	newBalance, err := x.ledger.Withdraw(ctx, token, account, amount)
	if err != nil {
		x.metrics.RecordRejection()
		return 0, err
	}

	fact := &event.WithdrawFact{
		Header:     x.header(event.KindWithdraw),
		Token:      token,
		Account:    account,
		Amount:     amount,
		NewBalance: newBalance,
	}
	x.persist(fact, func(row storage.FactRow) error {
		return x.store.SaveWithdraw(x.balanceRow(token, account), row)
	})

	x.metrics.RecordWithdrawal()
	x.emit(fact)
	return newBalance, nil
}

// BalanceOf returns the custodied balance for (token, account); zero for
// unknown pairs.
func (x *Exchange) BalanceOf(token domain.Token, account domain.Account) int64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.ledger.BalanceOf(token, account)
}

// CreateOrder registers a new order for owner. The offered amount must be
// covered by the owner's custody balance at creation time; this check is
// non-binding and no funds are locked, so the order can become unfulfillable
// if the owner withdraws before a fill.
func (x *Exchange) CreateOrder(owner domain.Account, wantedToken domain.Token, wantedAmount int64, offeredToken domain.Token, offeredAmount int64) (*domain.Order, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if wantedAmount <= 0 || offeredAmount <= 0 {
		x.metrics.RecordRejection()
		return nil, domain.ErrInvalidAmount
	}
	if x.ledger.BalanceOf(offeredToken, owner) < offeredAmount {
		x.metrics.RecordRejection()
		return nil, domain.ErrInsufficientBalance
	}

	order, err := x.book.Create(owner, wantedToken, wantedAmount, offeredToken, offeredAmount, x.now())
	if err != nil {
		x.metrics.RecordRejection()
		return nil, err
	}

	fact := &event.OrderCreatedFact{
		Header: x.header(event.KindOrderCreated),
		Order:  *order,
	}
	x.persist(fact, func(row storage.FactRow) error {
		return x.store.SaveOrder(orderRow(order), row)
	})

	x.metrics.RecordOrder()
	x.emit(fact)
	return order, nil
}

// CancelOrder marks the order cancelled. Only the owner may cancel, and only
// once; balances are untouched.
func (x *Exchange) CancelOrder(id uint64, caller domain.Account) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	order, err := x.book.Cancel(id, caller)
	if err != nil {
		x.metrics.RecordRejection()
		return err
	}

	fact := &event.CancelledFact{
		Header: x.header(event.KindCancelled),
		Order:  *order,
	}
	x.persist(fact, func(row storage.FactRow) error {
		return x.store.SaveCancel(id, row)
	})

	x.metrics.RecordCancel()
	x.emit(fact)
	return nil
}

// FillOrder settles order id with filler as the counterparty. Both legs are
// validated before either balance moves; a rejected fill mutates nothing.
func (x *Exchange) FillOrder(id uint64, filler domain.Account) (*settlement.Trade, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	trade, err := x.settle.Fill(id, filler, x.now())
	if err != nil {
		x.metrics.RecordRejection()
		return nil, err
	}

	order := trade.Order
	fact := &event.TradeFact{
		Header:        x.header(event.KindTrade),
		OrderID:       order.ID,
		Owner:         order.Owner,
		Filler:        trade.Filler,
		WantedToken:   order.WantedToken,
		WantedAmount:  order.WantedAmount,
		OfferedToken:  order.OfferedToken,
		OfferedAmount: order.OfferedAmount,
		FeeAmount:     trade.FeeAmount,
	}
	x.persist(fact, func(row storage.FactRow) error {
		return x.store.SaveTrade(order.ID, x.tradeBalances(trade), row)
	})

	x.metrics.RecordTrade()
	x.emit(fact)
	return trade, nil
}

// GetOrder returns the order and its lifecycle status.
func (x *Exchange) GetOrder(id uint64) (*OrderView, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	order, err := x.book.Get(id)
	if err != nil {
		return nil, err
	}

	status := OrderStatusOpen
	switch {
	case x.book.IsFilled(id):
		status = OrderStatusFilled
	case x.book.IsCancelled(id):
		status = OrderStatusCancelled
	}
	return &OrderView{Order: *order, Status: status}, nil
}

// Balances returns every non-zero custody balance for an account.
func (x *Exchange) Balances(account domain.Account) map[domain.Token]int64 {
	x.mu.Lock()
	defer x.mu.Unlock()

	result := make(map[domain.Token]int64)
	for _, entry := range x.ledger.Snapshot() {
		if entry.Account == account {
			result[entry.Token] = entry.Amount
		}
	}
	return result
}

// ======================================================================================
// Internals
// ======================================================================================

func (x *Exchange) header(kind event.Kind) event.Header {
	h := event.Header{Kind: kind, Seq: x.nextSeq, Ts: x.now()}
	x.nextSeq++
	return h
}

// persist journals the fact and its state change in one transaction.
// The in-memory state is already mutated at this point; a failed journal
// write means memory and disk have diverged, so the process halts.
func (x *Exchange) persist(fact event.Fact, save func(storage.FactRow) error) {
	if x.store == nil {
		return
	}

	payload, err := json.Marshal(fact)
	if err != nil {
		panic(fmt.Sprintf("FACT_MARSHAL_FAILURE: %v", err))
	}
	row := storage.FactRow{
		Seq:     fact.GetSeq(),
		Kind:    string(fact.GetKind()),
		Ts:      fact.GetTime(),
		Payload: payload,
	}
	if err := save(row); err != nil {
		panic(fmt.Sprintf("PERSISTENCE_FAILURE: seq=%d kind=%s: %v", fact.GetSeq(), fact.GetKind(), err))
	}
}

func (x *Exchange) emit(fact event.Fact) {
	if x.sink != nil {
		x.sink.Publish(fact)
	}
}

func (x *Exchange) balanceRow(token domain.Token, account domain.Account) storage.BalanceRow {
	return storage.BalanceRow{
		Token:     string(token),
		Account:   string(account),
		Amount:    x.ledger.BalanceOf(token, account),
		UpdatedAt: x.now(),
	}
}

// tradeBalances collects the rows a settlement touched: both sides of both
// legs, plus the fee account when a fee was charged.
func (x *Exchange) tradeBalances(trade *settlement.Trade) []storage.BalanceRow {
	order := trade.Order
	type key struct {
		token   domain.Token
		account domain.Account
	}
	seen := make(map[key]bool)
	var rows []storage.BalanceRow

	add := func(token domain.Token, account domain.Account) {
		k := key{token, account}
		if seen[k] {
			return
		}
		seen[k] = true
		rows = append(rows, x.balanceRow(token, account))
	}

	add(order.WantedToken, trade.Filler)
	add(order.WantedToken, order.Owner)
	add(order.OfferedToken, order.Owner)
	add(order.OfferedToken, trade.Filler)
	if trade.FeeAmount > 0 {
		add(order.WantedToken, x.settle.FeeAccount())
	}
	return rows
}

func orderRow(order *domain.Order) storage.OrderRow {
	return storage.OrderRow{
		ID:            order.ID,
		Owner:         string(order.Owner),
		WantedToken:   string(order.WantedToken),
		WantedAmount:  order.WantedAmount,
		OfferedToken:  string(order.OfferedToken),
		OfferedAmount: order.OfferedAmount,
		CreatedAt:     order.CreatedAt,
	}
}
