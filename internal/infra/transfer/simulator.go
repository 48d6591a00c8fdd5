package transfer

import (
	"context"
	"errors"
	"sync"

	"custodex/internal/domain"
	"custodex/pkg/safe"
)

// Simulator is an in-process external token ledger for development and
// tests. Each account has external holdings per token; Pull moves holdings
// into a custody bucket, Push moves them back out. It enforces the same
// outcome contract as a real service: a pull against insufficient external
// holdings is rejected.
type Simulator struct {
	mu       sync.Mutex
	external map[domain.Token]map[domain.Account]int64
	custody  map[domain.Token]int64 // what the simulator holds for the system
}

// NewSimulator creates an empty simulated token ledger.
func NewSimulator() *Simulator {
	return &Simulator{
		external: make(map[domain.Token]map[domain.Account]int64),
		custody:  make(map[domain.Token]int64),
	}
}

// Mint credits external holdings out of thin air (test/dev setup only).
func (s *Simulator) Mint(token domain.Token, account domain.Account, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.external[token] == nil {
		s.external[token] = make(map[domain.Account]int64)
	}
	s.external[token][account] = safe.SafeAdd(s.external[token][account], amount)
}

// Pull implements domain.TransferService.
func (s *Simulator) Pull(ctx context.Context, token domain.Token, from domain.Account, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := int64(0)
	if s.external[token] != nil {
		held = s.external[token][from]
	}
	if held < amount {
		return domain.NewTransferError("pull", token, from, errors.New("insufficient external balance"))
	}

	s.external[token][from] = safe.SafeSub(held, amount)
	s.custody[token] = safe.SafeAdd(s.custody[token], amount)
	return nil
}

// Push implements domain.TransferService.
func (s *Simulator) Push(ctx context.Context, token domain.Token, to domain.Account, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.custody[token] < amount {
		return domain.NewTransferError("push", token, to, errors.New("insufficient custody holdings"))
	}

	if s.external[token] == nil {
		s.external[token] = make(map[domain.Account]int64)
	}
	s.custody[token] = safe.SafeSub(s.custody[token], amount)
	s.external[token][to] = safe.SafeAdd(s.external[token][to], amount)
	return nil
}

// ExternalBalanceOf returns an account's simulated external holdings.
func (s *Simulator) ExternalBalanceOf(token domain.Token, account domain.Account) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.external[token] == nil {
		return 0
	}
	return s.external[token][account]
}

// CustodyHeld returns what the simulated service holds in custody for the
// system — the external side of the conservation invariant.
func (s *Simulator) CustodyHeld(token domain.Token) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.custody[token]
}
