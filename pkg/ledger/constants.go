package ledger

const (
	operationOpenWallet = "open_wallet"
	operationTransfer   = "transfer"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	idempotencyKeyDelimiter = ":"
	idempotencyPrefixFaucet = "faucet"
	idempotencySuffixDebit  = "debit"
	idempotencySuffixCredit = "credit"

	addressPrefix    = "r"
	secretPrefix     = "s"
	addressHashBytes = 20

	// DropsPerUnit is the number of drops in one whole ledger unit.
	DropsPerUnit int64 = 1_000_000
)
