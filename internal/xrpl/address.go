package xrpl

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/walletbot/pkg/conversation"
	"github.com/mr-tron/base58/base58"
)

const (
	rippleAlphabet        = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"
	accountVersionByte    = 0x00
	accountIDBytes        = 20
	checksumBytes         = 4
	minClassicAddressSize = 25
	maxClassicAddressSize = 35
)

var rippleEncoding = base58.NewAlphabet(rippleAlphabet)

// ValidateAddress checks the syntax and checksum of a classic XRPL address.
func ValidateAddress(address string) error {
	trimmed := strings.TrimSpace(address)
	if len(trimmed) < minClassicAddressSize || len(trimmed) > maxClassicAddressSize || !strings.HasPrefix(trimmed, "r") {
		return fmt.Errorf("%w: %q is not a classic address", conversation.ErrInvalidInput, trimmed)
	}
	decoded, err := base58.DecodeAlphabet(trimmed, rippleEncoding)
	if err != nil {
		return fmt.Errorf("%w: %v", conversation.ErrInvalidInput, err)
	}
	if len(decoded) != 1+accountIDBytes+checksumBytes || decoded[0] != accountVersionByte {
		return fmt.Errorf("%w: %q has an unexpected payload", conversation.ErrInvalidInput, trimmed)
	}
	payload, checksum := decoded[:1+accountIDBytes], decoded[1+accountIDBytes:]
	if !bytes.Equal(addressChecksum(payload), checksum) {
		return fmt.Errorf("%w: %q has a bad checksum", conversation.ErrInvalidInput, trimmed)
	}
	return nil
}

func addressChecksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:checksumBytes]
}
