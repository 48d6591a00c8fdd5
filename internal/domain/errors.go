package domain

import "errors"

// Every mutating operation either fully applies or fails with one of these.
// None of them is fatal to the system and none leaves partial state behind.
var (
	// ErrInsufficientBalance is returned when a custody balance cannot cover
	// a withdraw, an order-creation check, or a settlement leg.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrTransferFailed is returned when the external ownership-transfer
	// service rejects a pull or push.
	ErrTransferFailed = errors.New("external transfer failed")

	// ErrOrderNotFound is returned for ids that were never issued.
	ErrOrderNotFound = errors.New("order not found")

	// ErrUnauthorized is returned when the caller is not the order owner.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrOrderCancelled is returned when filling a cancelled order.
	ErrOrderCancelled = errors.New("order cancelled")

	// ErrAlreadyCancelled is returned on a second cancel of the same order.
	// Cancel is deliberately not idempotent.
	ErrAlreadyCancelled = errors.New("order already cancelled")

	// ErrOrderFilled is returned when filling or cancelling an order that
	// has already settled.
	ErrOrderFilled = errors.New("order already filled")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// RetriableError defines an interface for errors that can be retried.
// The core never retries internally; this is advice for the caller.
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable.
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// TransferError wraps a rejection from the external transfer service with
// the operation that failed. It unwraps to ErrTransferFailed so callers can
// match on the sentinel.
type TransferError struct {
	Op        string // "pull" or "push"
	Token     Token
	Account   Account
	Err       error // underlying cause from the service, may be nil
	Retriable bool  // network-level failures may be retried by the caller
}

func (e *TransferError) Error() string {
	msg := "transfer " + e.Op + " rejected: " + string(e.Token) + "/" + string(e.Account)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransferError) IsRetriable() bool {
	return e.Retriable
}

func (e *TransferError) Unwrap() error {
	return ErrTransferFailed
}

// NewTransferError creates a non-retriable transfer rejection (the service
// answered and said no).
func NewTransferError(op string, token Token, account Account, err error) *TransferError {
	return &TransferError{Op: op, Token: token, Account: account, Err: err, Retriable: false}
}

// NewRetriableTransferError creates a retriable transfer failure (the
// service could not be reached).
func NewRetriableTransferError(op string, token Token, account Account, err error) *TransferError {
	return &TransferError{Op: op, Token: token, Account: account, Err: err, Retriable: true}
}
