package infra

import "sync/atomic"

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	depositsTotal    atomic.Uint64
	withdrawalsTotal atomic.Uint64
	ordersCreated    atomic.Uint64
	ordersCancelled  atomic.Uint64
	tradesSettled    atomic.Uint64
	rejectionsTotal  atomic.Uint64
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

func (m *Metrics) RecordDeposit() { m.depositsTotal.Add(1) }

func (m *Metrics) RecordWithdrawal() { m.withdrawalsTotal.Add(1) }

func (m *Metrics) RecordOrder() { m.ordersCreated.Add(1) }

func (m *Metrics) RecordCancel() { m.ordersCancelled.Add(1) }

func (m *Metrics) RecordTrade() { m.tradesSettled.Add(1) }

func (m *Metrics) RecordRejection() { m.rejectionsTotal.Add(1) }

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	DepositsTotal    uint64 `json:"deposits_total"`
	WithdrawalsTotal uint64 `json:"withdrawals_total"`
	OrdersCreated    uint64 `json:"orders_created"`
	OrdersCancelled  uint64 `json:"orders_cancelled"`
	TradesSettled    uint64 `json:"trades_settled"`
	RejectionsTotal  uint64 `json:"rejections_total"`
}

// Snapshot returns current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		DepositsTotal:    m.depositsTotal.Load(),
		WithdrawalsTotal: m.withdrawalsTotal.Load(),
		OrdersCreated:    m.ordersCreated.Load(),
		OrdersCancelled:  m.ordersCancelled.Load(),
		TradesSettled:    m.tradesSettled.Load(),
		RejectionsTotal:  m.rejectionsTotal.Load(),
	}
}
