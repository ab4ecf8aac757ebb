// Package custody adapts the custodial local ledger to the conversation ledger contract.
package custody

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/walletbot/internal/xrpamount"
	"github.com/MarkoPoloResearchLab/walletbot/pkg/conversation"
	"github.com/MarkoPoloResearchLab/walletbot/pkg/ledger"
	"github.com/shopspring/decimal"
)

const (
	statusSettled       = "settled"
	metadataWalletOpen  = `{"source":"walletbot","action":"create_wallet"}`
	metadataChatPayment = `{"source":"walletbot","action":"send"}`
)

// Ledger is the subset of ledger.Service used by Client.
type Ledger interface {
	OpenWallet(ctx context.Context, grant ledger.PositiveDrops, metadata ledger.MetadataJSON) (ledger.Wallet, error)
	Balance(ctx context.Context, address ledger.Address) (ledger.Drops, error)
	Transfer(ctx context.Context, secret string, destination ledger.Address, amount ledger.PositiveDrops, metadata ledger.MetadataJSON) (string, error)
}

// ImageRenderer encodes an address as an image.
type ImageRenderer interface {
	Render(address string) ([]byte, error)
}

// Client settles payments in the local ledger. New wallets receive a fixed faucet grant.
type Client struct {
	ledger   Ledger
	grant    ledger.PositiveDrops
	renderer ImageRenderer
}

// NewClient returns a Client granting grantDrops to each new wallet.
func NewClient(service Ledger, grantDrops int64, renderer ImageRenderer) (*Client, error) {
	if service == nil {
		return nil, fmt.Errorf("custody: ledger is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("custody: image renderer is required")
	}
	grant, err := ledger.NewPositiveDrops(grantDrops)
	if err != nil {
		return nil, fmt.Errorf("custody: faucet grant: %w", err)
	}
	return &Client{ledger: service, grant: grant, renderer: renderer}, nil
}

func (client *Client) CreateWallet(ctx context.Context) (conversation.Credentials, error) {
	metadata, err := ledger.NewMetadataJSON(metadataWalletOpen)
	if err != nil {
		return conversation.Credentials{}, err
	}
	wallet, err := client.ledger.OpenWallet(ctx, client.grant, metadata)
	if err != nil {
		return conversation.Credentials{}, fmt.Errorf("%w: %w", conversation.ErrFaucetFailure, err)
	}
	return conversation.Credentials{Address: wallet.Address.String(), Secret: wallet.Secret}, nil
}

func (client *Client) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	parsed, err := ledger.NewAddress(address)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %w", conversation.ErrInvalidInput, err)
	}
	balance, err := client.ledger.Balance(ctx, parsed)
	if errors.Is(err, ledger.ErrUnknownAccount) {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", conversation.ErrAccountNotFound, address)
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %w", conversation.ErrLedgerUnavailable, err)
	}
	return xrpamount.FromDrops(balance.Int64()), nil
}

func (client *Client) SendPayment(ctx context.Context, source conversation.Credentials, amount decimal.Decimal, destination string) (conversation.Receipt, error) {
	drops, err := xrpamount.ToDrops(amount)
	if err != nil {
		return conversation.Receipt{}, fmt.Errorf("%w: %w", conversation.ErrInvalidInput, err)
	}
	positive, err := ledger.NewPositiveDrops(drops)
	if err != nil {
		return conversation.Receipt{}, fmt.Errorf("%w: %w", conversation.ErrInvalidInput, err)
	}
	destinationAddress, err := ledger.NewAddress(destination)
	if err != nil {
		return conversation.Receipt{}, fmt.Errorf("%w: %w", conversation.ErrInvalidInput, err)
	}
	metadata, err := ledger.NewMetadataJSON(metadataChatPayment)
	if err != nil {
		return conversation.Receipt{}, err
	}
	transferID, err := client.ledger.Transfer(ctx, source.Secret, destinationAddress, positive, metadata)
	switch {
	case err == nil:
		return conversation.Receipt{TransactionID: transferID, Status: statusSettled}, nil
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrUnknownAccount):
		return conversation.Receipt{}, fmt.Errorf("%w: %w", conversation.ErrInsufficientFunds, err)
	default:
		return conversation.Receipt{}, fmt.Errorf("%w: %w", conversation.ErrSubmissionFailure, err)
	}
}

func (client *Client) RenderAddressImage(address string) ([]byte, error) {
	return client.renderer.Render(address)
}

// ValidateAddress accepts only addresses the local ledger can hold.
func (client *Client) ValidateAddress(address string) error {
	if err := ledger.ValidateAddress(address); err != nil {
		return fmt.Errorf("%w: %w", conversation.ErrInvalidInput, err)
	}
	return nil
}
