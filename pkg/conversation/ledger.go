package conversation

import (
	"context"

	"github.com/shopspring/decimal"
)

// LedgerClient is the ledger capability the controller depends on.
// Every call is attempted once; failures are reported, never retried.
type LedgerClient interface {
	// CreateWallet generates and funds a new account.
	CreateWallet(ctx context.Context) (Credentials, error)
	// GetBalance returns the balance of address in whole ledger units.
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)
	// SendPayment signs with source.Secret and submits a payment of amount to destination.
	SendPayment(ctx context.Context, source Credentials, amount decimal.Decimal, destination string) (Receipt, error)
	// RenderAddressImage returns a PNG encoding of address.
	RenderAddressImage(address string) ([]byte, error)
}

// AddressValidator is optionally implemented by ledger clients that can check address syntax.
type AddressValidator interface {
	ValidateAddress(address string) error
}
