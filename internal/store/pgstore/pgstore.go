package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/walletbot/pkg/ledger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	constraintAccountAddress = "uniq_accounts_address"
	constraintEntryIdem      = "uniq_entry_idem"
	pgUniqueViolationCode    = "23505"
	errorOperationStore      = "store"
	errorSubjectAccount      = "account"
	errorSubjectBalance      = "balance"
	errorSubjectEntry        = "entry"
	errorSubjectTransaction  = "transaction"
	errorCodeBegin           = "begin"
	errorCodeCommit          = "commit"
	errorCodeCreate          = "create"
	errorCodeDuplicate       = "duplicate"
	errorCodeInsert          = "insert"
	errorCodeInvalid         = "invalid"
	errorCodeLookup          = "lookup"
	errorCodeSumTotal        = "sum_total"

	sqlInsertAccount = `
		insert into accounts(account_id, address, created_at) values($1, $2, $3)
		returning account_id::text
	`

	sqlSelectAccountForUpdate = `
		select account_id::text from accounts
		where address = $1
		for update
	`

	sqlInsertOrGetAccount = `
		insert into accounts(account_id, address, created_at) values($1, $2, $3)
		on conflict (address) do update set address = excluded.address
		returning account_id::text
	`

	sqlInsertEntry = `
		insert into ledger_entries(
			entry_id, account_id, type, amount_drops, transfer_id, idempotency_key, metadata, created_at
		)
		values(
			$1, $2, $3, $4,
			nullif($5,''), $6,
			coalesce(nullif($7,''),'{}')::jsonb,
			$8
		)
	`

	sqlSumBalance = `
		select coalesce(sum(amount_drops),0)::bigint from ledger_entries
		where account_id = $1
	`
)

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements ledger.Store using a pgx connection pool (autocommit).
// The schema is the one gormstore.Migrate creates.
type Store struct {
	pool *pgxpool.Pool
	db   queryer
}

// TxStore implements ledger.Store for an active transaction.
type TxStore struct {
	tx pgx.Tx
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	transactionStore := &TxStore{tx: tx}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *Store) CreateAccount(ctx context.Context, address ledger.Address) (ledger.AccountID, error) {
	return createAccount(ctx, store.db, address)
}

func (store *Store) FindAccountID(ctx context.Context, address ledger.Address) (ledger.AccountID, error) {
	return findAccountID(ctx, store.db, address)
}

func (store *Store) GetOrCreateAccountID(ctx context.Context, address ledger.Address) (ledger.AccountID, error) {
	return getOrCreateAccountID(ctx, store.db, address)
}

func (store *Store) InsertEntry(ctx context.Context, entryInput ledger.EntryInput) error {
	return insertEntry(ctx, store.db, entryInput)
}

func (store *Store) SumBalance(ctx context.Context, accountID ledger.AccountID) (ledger.Drops, error) {
	return sumBalance(ctx, store.db, accountID)
}

// WithTx on a TxStore runs fn inside the already open transaction.
func (store *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return fn(ctx, store)
}

func (store *TxStore) CreateAccount(ctx context.Context, address ledger.Address) (ledger.AccountID, error) {
	return createAccount(ctx, store.tx, address)
}

func (store *TxStore) FindAccountID(ctx context.Context, address ledger.Address) (ledger.AccountID, error) {
	return findAccountID(ctx, store.tx, address)
}

func (store *TxStore) GetOrCreateAccountID(ctx context.Context, address ledger.Address) (ledger.AccountID, error) {
	return getOrCreateAccountID(ctx, store.tx, address)
}

func (store *TxStore) InsertEntry(ctx context.Context, entryInput ledger.EntryInput) error {
	return insertEntry(ctx, store.tx, entryInput)
}

func (store *TxStore) SumBalance(ctx context.Context, accountID ledger.AccountID) (ledger.Drops, error) {
	return sumBalance(ctx, store.tx, accountID)
}

func createAccount(ctx context.Context, db queryer, address ledger.Address) (ledger.AccountID, error) {
	var accountIDValue string
	err := db.QueryRow(ctx, sqlInsertAccount, uuid.NewString(), address.String(), time.Now().UTC()).Scan(&accountIDValue)
	if isConstraintConflict(err, constraintAccountAddress) {
		return ledger.AccountID{}, wrapStoreError(errorSubjectAccount, errorCodeDuplicate, ledger.ErrAccountExists)
	}
	if err != nil {
		return ledger.AccountID{}, wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
	return parseAccountID(accountIDValue)
}

func findAccountID(ctx context.Context, db queryer, address ledger.Address) (ledger.AccountID, error) {
	var accountIDValue string
	err := db.QueryRow(ctx, sqlSelectAccountForUpdate, address.String()).Scan(&accountIDValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.AccountID{}, wrapStoreError(errorSubjectAccount, errorCodeLookup, ledger.ErrUnknownAccount)
		}
		return ledger.AccountID{}, wrapStoreError(errorSubjectAccount, errorCodeLookup, err)
	}
	return parseAccountID(accountIDValue)
}

func getOrCreateAccountID(ctx context.Context, db queryer, address ledger.Address) (ledger.AccountID, error) {
	var accountIDValue string
	err := db.QueryRow(ctx, sqlInsertOrGetAccount, uuid.NewString(), address.String(), time.Now().UTC()).Scan(&accountIDValue)
	if err != nil {
		return ledger.AccountID{}, wrapStoreError(errorSubjectAccount, errorCodeLookup, err)
	}
	return parseAccountID(accountIDValue)
}

func insertEntry(ctx context.Context, db queryer, entryInput ledger.EntryInput) error {
	transferID, _ := entryInput.TransferID()
	createdAt := time.Now().UTC()
	if entryInput.CreatedUnixUTC() != 0 {
		createdAt = time.Unix(entryInput.CreatedUnixUTC(), 0).UTC()
	}
	_, err := db.Exec(ctx, sqlInsertEntry,
		uuid.NewString(),
		entryInput.AccountID().String(),
		entryInput.Type().String(),
		entryInput.AmountDrops(),
		transferID,
		entryInput.IdempotencyKey().String(),
		entryInput.MetadataJSON().String(),
		createdAt,
	)
	if isConstraintConflict(err, constraintEntryIdem) {
		return wrapStoreError(errorSubjectEntry, errorCodeDuplicate, ledger.ErrDuplicateIdempotencyKey)
	}
	if err != nil {
		return wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
	}
	return nil
}

func sumBalance(ctx context.Context, db queryer, accountID ledger.AccountID) (ledger.Drops, error) {
	var sum int64
	err := db.QueryRow(ctx, sqlSumBalance, accountID.String()).Scan(&sum)
	if err != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeSumTotal, err)
	}
	total, err := ledger.NewDrops(sum)
	if err != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeInvalid, err)
	}
	return total, nil
}

func parseAccountID(raw string) (ledger.AccountID, error) {
	accountID, err := ledger.NewAccountID(raw)
	if err != nil {
		return ledger.AccountID{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return accountID, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func isConstraintConflict(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraint
	}
	return false
}
