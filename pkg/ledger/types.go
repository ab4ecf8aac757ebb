package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// AccountID identifies a stored account row.
type AccountID struct {
	value string
}

// Address is the public identifier of a custodial wallet.
type Address struct {
	value string
}

// IdempotencyKey scopes duplicate detection per account.
type IdempotencyKey struct {
	value string
}

// MetadataJSON stores arbitrary entry metadata.
type MetadataJSON struct {
	value string
}

// Drops is a non-negative amount in the ledger's smallest unit.
type Drops int64

// PositiveDrops is a strictly positive amount in drops.
type PositiveDrops struct {
	value int64
}

// EntryType enumerates ledger entry kinds.
type EntryType string

const (
	EntryFaucet EntryType = "faucet"
	EntryDebit  EntryType = "debit"
	EntryCredit EntryType = "credit"
)

// NewAccountID validates and normalizes an account id.
func NewAccountID(raw string) (AccountID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AccountID{}, fmt.Errorf("%w: empty value", ErrInvalidAccountID)
	}
	return AccountID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id AccountID) String() string {
	return id.value
}

// NewAddress validates a wallet address.
func NewAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if err := validateAddress(trimmed); err != nil {
		return Address{}, err
	}
	return Address{value: trimmed}, nil
}

// String returns the address text.
func (address Address) String() string {
	return address.value
}

// NewIdempotencyKey validates and normalizes an idempotency key.
func NewIdempotencyKey(raw string) (IdempotencyKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return IdempotencyKey{}, fmt.Errorf("%w: empty value", ErrInvalidIdempotencyKey)
	}
	return IdempotencyKey{value: trimmed}, nil
}

// String returns the normalized key.
func (key IdempotencyKey) String() string {
	return key.value
}

// NewMetadataJSON validates metadata string (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	return metadata.value
}

// NewDrops validates a non-negative drops amount.
func NewDrops(raw int64) (Drops, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidDrops)
	}
	return Drops(raw), nil
}

// Int64 returns the raw amount.
func (drops Drops) Int64() int64 {
	return int64(drops)
}

// NewPositiveDrops validates a strictly positive drops amount.
func NewPositiveDrops(raw int64) (PositiveDrops, error) {
	if raw <= 0 {
		return PositiveDrops{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidDrops)
	}
	return PositiveDrops{value: raw}, nil
}

// Int64 returns the raw amount.
func (drops PositiveDrops) Int64() int64 {
	return drops.value
}

// ToDrops converts to the non-negative amount type.
func (drops PositiveDrops) ToDrops() Drops {
	return Drops(drops.value)
}

// ParseEntryType validates an entry type string.
func ParseEntryType(raw string) (EntryType, error) {
	entryType := EntryType(strings.TrimSpace(raw))
	switch entryType {
	case EntryFaucet, EntryDebit, EntryCredit:
		return entryType, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryType, raw)
	}
}

// String returns the entry type name.
func (entryType EntryType) String() string {
	return string(entryType)
}

// EntryInput is a validated entry ready to be appended.
type EntryInput struct {
	accountID      AccountID
	entryType      EntryType
	amountDrops    int64
	transferID     string
	idempotencyKey IdempotencyKey
	metadata       MetadataJSON
	createdUnixUTC int64
}

// NewEntryInput validates an entry. Debits carry a negative amount; faucet and credit entries a positive one.
func NewEntryInput(accountID AccountID, entryType EntryType, amount PositiveDrops, transferID string, idempotencyKey IdempotencyKey, metadata MetadataJSON, createdUnixUTC int64) (EntryInput, error) {
	if accountID.String() == "" {
		return EntryInput{}, fmt.Errorf("%w: empty value", ErrInvalidAccountID)
	}
	if _, err := ParseEntryType(entryType.String()); err != nil {
		return EntryInput{}, err
	}
	if amount.Int64() <= 0 {
		return EntryInput{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidDrops)
	}
	if idempotencyKey.String() == "" {
		return EntryInput{}, fmt.Errorf("%w: empty value", ErrInvalidIdempotencyKey)
	}
	if metadata.String() == "" {
		metadata = MetadataJSON{value: "{}"}
	}
	signed := amount.Int64()
	if entryType == EntryDebit {
		signed = -signed
	}
	return EntryInput{
		accountID:      accountID,
		entryType:      entryType,
		amountDrops:    signed,
		transferID:     strings.TrimSpace(transferID),
		idempotencyKey: idempotencyKey,
		metadata:       metadata,
		createdUnixUTC: createdUnixUTC,
	}, nil
}

// AccountID returns the owning account.
func (entry EntryInput) AccountID() AccountID {
	return entry.accountID
}

// Type returns the entry type.
func (entry EntryInput) Type() EntryType {
	return entry.entryType
}

// AmountDrops returns the signed amount.
func (entry EntryInput) AmountDrops() int64 {
	return entry.amountDrops
}

// TransferID returns the transfer correlation id, if any.
func (entry EntryInput) TransferID() (string, bool) {
	return entry.transferID, entry.transferID != ""
}

// IdempotencyKey returns the per-account idempotency key.
func (entry EntryInput) IdempotencyKey() IdempotencyKey {
	return entry.idempotencyKey
}

// MetadataJSON returns the metadata blob.
func (entry EntryInput) MetadataJSON() MetadataJSON {
	return entry.metadata
}

// CreatedUnixUTC returns the creation timestamp.
func (entry EntryInput) CreatedUnixUTC() int64 {
	return entry.createdUnixUTC
}

// Wallet is a freshly opened custodial wallet.
type Wallet struct {
	Address Address
	Secret  string
}

// Store is the persistence contract used by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	CreateAccount(ctx context.Context, address Address) (AccountID, error)
	FindAccountID(ctx context.Context, address Address) (AccountID, error)
	GetOrCreateAccountID(ctx context.Context, address Address) (AccountID, error)
	InsertEntry(ctx context.Context, entry EntryInput) error
	SumBalance(ctx context.Context, accountID AccountID) (Drops, error)
}
