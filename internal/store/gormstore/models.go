package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account represents the accounts table.
type Account struct {
	AccountID string    `gorm:"type:uuid;primaryKey"`
	Address   string    `gorm:"not null;uniqueIndex:uniq_accounts_address"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }

func (account *Account) BeforeCreate(tx *gorm.DB) error {
	if account.AccountID == "" {
		account.AccountID = uuid.NewString()
	}
	return nil
}

// LedgerEntry mirrors the ledger_entries table.
type LedgerEntry struct {
	EntryID        string         `gorm:"type:uuid;primaryKey"`
	AccountID      string         `gorm:"type:uuid;not null;index:idx_ledger_account_created,priority:1;uniqueIndex:uniq_entry_idem,priority:1"`
	Type           string         `gorm:"type:text;not null"`
	AmountDrops    int64          `gorm:"not null"`
	TransferID     *string        `gorm:"index:idx_ledger_transfer"`
	IdempotencyKey string         `gorm:"not null;uniqueIndex:uniq_entry_idem,priority:2"`
	Metadata       datatypes.JSON `gorm:"not null"`
	CreatedAt      time.Time      `gorm:"not null;index:idx_ledger_account_created,priority:2"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

func (entry *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	return nil
}

// Wallet mirrors the wallets table holding one chat wallet per user.
type Wallet struct {
	UserID      string    `gorm:"primaryKey"`
	Address     string    `gorm:"not null"`
	Secret      string    `gorm:"not null"`
	DisplayName string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (Wallet) TableName() string { return "wallets" }
