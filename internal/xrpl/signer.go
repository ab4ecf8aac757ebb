package xrpl

import (
	"errors"
	"fmt"

	"github.com/Peersyst/xrpl-go/xrpl/wallet"
)

// ErrSeedMismatch reports a seed that does not control the sending account.
var ErrSeedMismatch = errors.New("seed does not control the sending account")

// Signer signs a flattened transaction with the wallet seed and returns the hex blob.
// The seed never leaves the process.
type Signer interface {
	Sign(seed string, transaction map[string]interface{}) (string, error)
}

// SeedSigner signs locally with keys derived from a family seed.
type SeedSigner struct{}

func (SeedSigner) Sign(seed string, transaction map[string]interface{}) (string, error) {
	signingWallet, err := wallet.FromSeed(seed, "")
	if err != nil {
		return "", errors.New("derive keypair from seed")
	}
	if account, ok := transaction[fieldAccount].(string); ok && account != string(signingWallet.ClassicAddress) {
		return "", fmt.Errorf("%w: %s", ErrSeedMismatch, account)
	}
	txBlob, _, err := signingWallet.Sign(transaction)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	return txBlob, nil
}
