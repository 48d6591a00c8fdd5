package domain

import "context"

// TransferService is the external ownership-transfer collaborator. It moves
// tokens between external accounts and this system's custody; the core only
// observes its success or failure, never its mechanics.
//
// A call must not be able to re-enter the ledger before the surrounding
// operation completes; implementations are plain clients, not callbacks.
type TransferService interface {
	// Pull moves amount of token from the account's external holdings into
	// system custody. Returns a TransferError on rejection.
	Pull(ctx context.Context, token Token, from Account, amount int64) error

	// Push moves amount of token from system custody to the account's
	// external holdings. Returns a TransferError on rejection.
	Push(ctx context.Context, token Token, to Account, amount int64) error
}
