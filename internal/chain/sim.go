package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SimClient is an in-memory chain for local development. It honors the
// idempotent reference contract: a repeated reference returns the original
// transaction and moves no funds.
type SimClient struct {
	mu        sync.Mutex
	balances  map[string]decimal.Decimal
	byRef     map[string]string // transfer ref -> tx ref
	confirmed map[string]Status
}

// NewSimClient creates a simulated chain with the given wallet balances.
func NewSimClient(balances map[string]decimal.Decimal) *SimClient {
	b := make(map[string]decimal.Decimal, len(balances))
	for addr, amt := range balances {
		b[addr] = amt
	}
	return &SimClient{
		balances:  b,
		byRef:     make(map[string]string),
		confirmed: make(map[string]Status),
	}
}

func (c *SimClient) Transfer(ctx context.Context, to string, amount decimal.Decimal, ref string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", fmt.Errorf("transfer to %q: %w", to, ErrInvalidRecipient)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if tx, ok := c.byRef[ref]; ok {
		return tx, nil
	}
	tx := "0x" + uuid.New().String()
	c.byRef[ref] = tx
	c.confirmed[tx] = StatusConfirmed
	c.balances[to] = c.balances[to].Add(amount)
	return tx, nil
}

func (c *SimClient) WaitForConfirmation(ctx context.Context, txRef string, timeout time.Duration) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if status, ok := c.confirmed[txRef]; ok {
		return status, nil
	}
	return StatusPending, ErrConfirmationTimeout
}

func (c *SimClient) BalanceOf(ctx context.Context, address string) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[address], nil
}
