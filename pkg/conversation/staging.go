package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// TransactionStaging holds per-user send requests while they are assembled.
type TransactionStaging interface {
	// SetRecipient replaces any staged transaction with a new one addressed to recipient.
	SetRecipient(ctx context.Context, userID UserID, recipient string) error
	// SetAmount fails with ErrNoRecipientStaged unless a recipient is staged.
	SetAmount(ctx context.Context, userID UserID, amount decimal.Decimal) error
	// Snapshot returns the staged values and ErrIncompleteTransaction if either is missing.
	Snapshot(ctx context.Context, userID UserID) (PendingTransaction, error)
	// Clear drops anything staged for userID. Clearing an empty slot is not an error.
	Clear(ctx context.Context, userID UserID) error
}

// MemoryStaging is a process-local TransactionStaging.
type MemoryStaging struct {
	mu      sync.Mutex
	pending map[UserID]PendingTransaction
}

// NewMemoryStaging returns empty staging.
func NewMemoryStaging() *MemoryStaging {
	return &MemoryStaging{pending: make(map[UserID]PendingTransaction)}
}

// SetRecipient stages recipient and discards a previously staged amount.
func (staging *MemoryStaging) SetRecipient(_ context.Context, userID UserID, recipient string) error {
	trimmed := strings.TrimSpace(recipient)
	if trimmed == "" {
		return fmt.Errorf("%w: empty recipient", ErrInvalidInput)
	}
	staging.mu.Lock()
	defer staging.mu.Unlock()
	staging.pending[userID] = PendingTransaction{Recipient: trimmed}
	return nil
}

// SetAmount stages amount after the recipient.
func (staging *MemoryStaging) SetAmount(_ context.Context, userID UserID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidInput)
	}
	staging.mu.Lock()
	defer staging.mu.Unlock()
	pending, found := staging.pending[userID]
	if !found || !pending.HasRecipient() {
		return ErrNoRecipientStaged
	}
	pending.Amount = decimal.NewNullDecimal(amount)
	staging.pending[userID] = pending
	return nil
}

// Snapshot returns a copy of the staged transaction.
func (staging *MemoryStaging) Snapshot(_ context.Context, userID UserID) (PendingTransaction, error) {
	staging.mu.Lock()
	defer staging.mu.Unlock()
	pending := staging.pending[userID]
	if !pending.Complete() {
		return pending, ErrIncompleteTransaction
	}
	return pending, nil
}

// Clear removes the staged transaction.
func (staging *MemoryStaging) Clear(_ context.Context, userID UserID) error {
	staging.mu.Lock()
	defer staging.mu.Unlock()
	delete(staging.pending, userID)
	return nil
}
