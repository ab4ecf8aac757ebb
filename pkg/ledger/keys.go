package ledger

import (
	"crypto/ed25519"
	"fmt"
	"io"
	"strings"

	"github.com/mr-tron/base58/base58"
	"golang.org/x/crypto/blake2b"
)

// GenerateWallet derives a new wallet from random seed material.
func GenerateWallet(random io.Reader) (Wallet, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(random, seed); err != nil {
		return Wallet{}, fmt.Errorf("read seed: %w", err)
	}
	address := deriveAddress(seed)
	return Wallet{
		Address: address,
		Secret:  secretPrefix + base58.Encode(seed),
	}, nil
}

// AddressFromSecret recovers the address controlled by secret.
func AddressFromSecret(secret string) (Address, error) {
	trimmed := strings.TrimSpace(secret)
	if !strings.HasPrefix(trimmed, secretPrefix) {
		return Address{}, fmt.Errorf("%w: missing prefix", ErrInvalidSecret)
	}
	seed, err := base58.Decode(strings.TrimPrefix(trimmed, secretPrefix))
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	if len(seed) != ed25519.SeedSize {
		return Address{}, fmt.Errorf("%w: unexpected seed length %d", ErrInvalidSecret, len(seed))
	}
	return deriveAddress(seed), nil
}

// ValidateAddress reports whether raw is a well-formed wallet address.
func ValidateAddress(raw string) error {
	return validateAddress(strings.TrimSpace(raw))
}

func deriveAddress(seed []byte) Address {
	publicKey := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	digest := blake2b.Sum256(publicKey)
	return Address{value: addressPrefix + base58.Encode(digest[:addressHashBytes])}
}

func validateAddress(value string) error {
	if !strings.HasPrefix(value, addressPrefix) {
		return fmt.Errorf("%w: missing prefix", ErrInvalidAddress)
	}
	decoded, err := base58.Decode(strings.TrimPrefix(value, addressPrefix))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(decoded) != addressHashBytes {
		return fmt.Errorf("%w: unexpected length %d", ErrInvalidAddress, len(decoded))
	}
	return nil
}
