package conversation

import (
	"context"
	"sync"
)

// WalletRegistry maps a user to at most one wallet.
type WalletRegistry interface {
	// Get returns the wallet for userID; found is false when none exists.
	Get(ctx context.Context, userID UserID) (record WalletRecord, found bool, err error)
	// Create inserts a wallet or fails with ErrAlreadyExists.
	Create(ctx context.Context, userID UserID, address string, secret string, displayName string) (WalletRecord, error)
}

// MemoryRegistry is a process-local WalletRegistry.
type MemoryRegistry struct {
	mu      sync.RWMutex
	wallets map[UserID]WalletRecord
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{wallets: make(map[UserID]WalletRecord)}
}

// Get looks up the wallet owned by userID.
func (registry *MemoryRegistry) Get(_ context.Context, userID UserID) (WalletRecord, bool, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	record, found := registry.wallets[userID]
	return record, found, nil
}

// Create is a compare-and-insert keyed by userID.
func (registry *MemoryRegistry) Create(_ context.Context, userID UserID, address string, secret string, displayName string) (WalletRecord, error) {
	record, err := NewWalletRecord(userID, address, secret, displayName)
	if err != nil {
		return WalletRecord{}, err
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.wallets[userID]; exists {
		return WalletRecord{}, ErrAlreadyExists
	}
	registry.wallets[userID] = record
	return record, nil
}

// Len returns the number of stored wallets.
func (registry *MemoryRegistry) Len() int {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return len(registry.wallets)
}
