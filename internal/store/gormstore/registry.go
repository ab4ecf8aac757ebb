package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/walletbot/pkg/conversation"
	"gorm.io/gorm"
)

// Registry persists chat wallets so they survive restarts.
// It implements conversation.WalletRegistry; the primary key on user_id makes Create a compare-and-insert.
type Registry struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// NewRegistry returns a Registry backed by db.
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db, nowFn: time.Now}
}

func (registry *Registry) Get(ctx context.Context, userID conversation.UserID) (conversation.WalletRecord, bool, error) {
	var wallet Wallet
	err := registry.db.WithContext(ctx).Where("user_id = ?", userID.String()).Take(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return conversation.WalletRecord{}, false, nil
	}
	if err != nil {
		return conversation.WalletRecord{}, false, fmt.Errorf("wallet lookup: %w", err)
	}
	record, err := conversation.NewWalletRecord(userID, wallet.Address, wallet.Secret, wallet.DisplayName)
	if err != nil {
		return conversation.WalletRecord{}, false, fmt.Errorf("wallet decode: %w", err)
	}
	return record, true, nil
}

func (registry *Registry) Create(ctx context.Context, userID conversation.UserID, address string, secret string, displayName string) (conversation.WalletRecord, error) {
	record, err := conversation.NewWalletRecord(userID, address, secret, displayName)
	if err != nil {
		return conversation.WalletRecord{}, err
	}
	wallet := Wallet{
		UserID:      userID.String(),
		Address:     record.Address(),
		Secret:      record.Credentials().Secret,
		DisplayName: record.DisplayName(),
		CreatedAt:   registry.nowFn().UTC(),
	}
	err = registry.db.WithContext(ctx).Create(&wallet).Error
	if isUniqueConflict(err) {
		return conversation.WalletRecord{}, conversation.ErrAlreadyExists
	}
	if err != nil {
		return conversation.WalletRecord{}, fmt.Errorf("wallet insert: %w", err)
	}
	return record, nil
}
