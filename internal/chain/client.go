// Package chain abstracts the token transfer collaborator. The core treats
// the chain as an unreliable, potentially slow external system; every error
// it can produce is a typed variant so the settlement retry policy is a
// table lookup, never a string match.
package chain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Terminal failure classes. A payout that hits one of these must not be
// retried without operator action.
var (
	ErrInvalidRecipient    = errors.New("invalid recipient address")
	ErrTransactionRejected = errors.New("transaction rejected")
	ErrTransactionReverted = errors.New("transaction reverted on chain")
	ErrInsufficientFunds   = errors.New("insufficient funds in payout wallet")
)

// Retryable failure classes.
var (
	ErrTransientNetwork    = errors.New("transient network error")
	ErrConfirmationTimeout = errors.New("confirmation wait timed out")
)

// Status is the confirmation state of a submitted transfer.
type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusPending   Status = "PENDING"
	StatusReverted  Status = "REVERTED"
)

// Client is the token transfer interface. Amounts are token minor units.
//
// Transfer takes a caller-supplied idempotent reference: submitting the
// same reference twice must return the original transaction and move no
// additional funds. This is how settlement survives a crash between
// broadcast and commit.
//
//go:generate mockgen -package=mocks -destination=mocks/mock_client.go github.com/chukwukap/waffles/internal/chain Client
type Client interface {
	Transfer(ctx context.Context, to string, amount decimal.Decimal, ref string) (txRef string, err error)
	WaitForConfirmation(ctx context.Context, txRef string, timeout time.Duration) (Status, error)
	BalanceOf(ctx context.Context, address string) (decimal.Decimal, error)
}

// IsRetryable reports whether a transfer error is worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientNetwork) || errors.Is(err, ErrConfirmationTimeout)
}
