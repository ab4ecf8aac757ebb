package ledger

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Service contains the custodial ledger logic over a Store.
type Service struct {
	store  Store
	nowFn  func() int64
	logger OperationLogger
	random io.Reader
	newID  func() string
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, random: rand.Reader, newID: uuid.NewString}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// WithRandomSource overrides the entropy used for wallet seeds.
func WithRandomSource(random io.Reader) ServiceOption {
	return func(service *Service) {
		if random != nil {
			service.random = random
		}
	}
}

// OpenWallet generates a wallet, records its account and credits the faucet grant.
func (service *Service) OpenWallet(ctx context.Context, grant PositiveDrops, metadata MetadataJSON) (Wallet, error) {
	wallet, err := GenerateWallet(service.random)
	if err != nil {
		return Wallet{}, err
	}
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		accountID, err := transactionStore.CreateAccount(ctx, wallet.Address)
		if err != nil {
			return err
		}
		idempotencyKey, err := NewIdempotencyKey(idempotencyPrefixFaucet + idempotencyKeyDelimiter + wallet.Address.String())
		if err != nil {
			return err
		}
		entryInput, err := NewEntryInput(accountID, EntryFaucet, grant, "", idempotencyKey, metadata, service.nowFn())
		if err != nil {
			return err
		}
		return transactionStore.InsertEntry(ctx, entryInput)
	})
	service.logOperation(ctx, OperationLog{
		Operation:   operationOpenWallet,
		Destination: wallet.Address,
		Amount:      grant.ToDrops(),
		Error:       operationError,
	})
	if operationError != nil {
		return Wallet{}, operationError
	}
	return wallet, nil
}

// Balance returns the settled balance of address.
func (service *Service) Balance(ctx context.Context, address Address) (Drops, error) {
	accountID, err := service.store.FindAccountID(ctx, address)
	if err != nil {
		return 0, err
	}
	return service.store.SumBalance(ctx, accountID)
}

// Transfer debits the wallet controlled by secret and credits destination atomically.
func (service *Service) Transfer(ctx context.Context, secret string, destination Address, amount PositiveDrops, metadata MetadataJSON) (string, error) {
	source, err := AddressFromSecret(secret)
	if err != nil {
		return "", err
	}
	transferID := service.newID()
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if source == destination {
			return ErrSelfTransfer
		}
		sourceAccountID, err := transactionStore.FindAccountID(ctx, source)
		if err != nil {
			return err
		}
		available, err := transactionStore.SumBalance(ctx, sourceAccountID)
		if err != nil {
			return err
		}
		if available < amount.ToDrops() {
			return ErrInsufficientFunds
		}
		destinationAccountID, err := transactionStore.GetOrCreateAccountID(ctx, destination)
		if err != nil {
			return err
		}
		nowUnixUTC := service.nowFn()
		debitKey, err := deriveIdempotencyKey(transferID, idempotencySuffixDebit)
		if err != nil {
			return err
		}
		debitEntry, err := NewEntryInput(sourceAccountID, EntryDebit, amount, transferID, debitKey, metadata, nowUnixUTC)
		if err != nil {
			return err
		}
		if err := transactionStore.InsertEntry(ctx, debitEntry); err != nil {
			return err
		}
		creditKey, err := deriveIdempotencyKey(transferID, idempotencySuffixCredit)
		if err != nil {
			return err
		}
		creditEntry, err := NewEntryInput(destinationAccountID, EntryCredit, amount, transferID, creditKey, metadata, nowUnixUTC)
		if err != nil {
			return err
		}
		return transactionStore.InsertEntry(ctx, creditEntry)
	})
	service.logOperation(ctx, OperationLog{
		Operation:   operationTransfer,
		Source:      source,
		Destination: destination,
		Amount:      amount.ToDrops(),
		TransferID:  transferID,
		Error:       operationError,
	})
	if operationError != nil {
		return "", operationError
	}
	return transferID, nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func deriveIdempotencyKey(base string, suffix string) (IdempotencyKey, error) {
	return NewIdempotencyKey(base + idempotencyKeyDelimiter + suffix)
}
