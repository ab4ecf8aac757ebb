package conversation

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the conversation core.
var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrPreconditionViolation   = errors.New("precondition violation")
	ErrLedgerUnavailable       = errors.New("ledger unavailable")
	ErrSubmissionFailure       = errors.New("submission failure")
	ErrUnreachable             = errors.New("unreachable transition")
	ErrInvalidControllerConfig = errors.New("invalid controller config")
)

// Precondition failures.
var (
	ErrAlreadyExists         = fmt.Errorf("%w: wallet already exists", ErrPreconditionViolation)
	ErrNoRecipientStaged     = fmt.Errorf("%w: no recipient staged", ErrPreconditionViolation)
	ErrIncompleteTransaction = fmt.Errorf("%w: transaction incomplete", ErrPreconditionViolation)
	ErrWalletNotFound        = fmt.Errorf("%w: wallet not found", ErrPreconditionViolation)
)

// Ledger collaborator failures.
var (
	ErrNetworkFailure    = fmt.Errorf("%w: network failure", ErrLedgerUnavailable)
	ErrFaucetFailure     = fmt.Errorf("%w: faucet failure", ErrLedgerUnavailable)
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = fmt.Errorf("%w: insufficient funds", ErrSubmissionFailure)
)
