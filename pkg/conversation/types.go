package conversation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// UserID identifies a chat participant.
type UserID struct {
	value string
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// State is the position of a user inside the conversation flow.
type State string

const (
	StateMenu              State = "menu"
	StateAwaitRecipient    State = "await_recipient"
	StateAwaitAmount       State = "await_amount"
	StateAwaitConfirmation State = "await_confirmation"
	StateAwaitWalletName   State = "await_wallet_name"
)

// String returns the state name.
func (state State) String() string {
	return string(state)
}

// MenuOption is a main-menu selection.
type MenuOption string

const (
	OptionStart        MenuOption = "start"
	OptionSend         MenuOption = "send"
	OptionReceive      MenuOption = "receive"
	OptionCheckBalance MenuOption = "check_balance"
	OptionCreateWallet MenuOption = "create_wallet"
	OptionHelp         MenuOption = "help"
)

// ParseMenuOption maps transport data onto a known option.
func ParseMenuOption(raw string) (MenuOption, bool) {
	option := MenuOption(strings.ToLower(strings.TrimSpace(raw)))
	switch option {
	case OptionStart, OptionSend, OptionReceive, OptionCheckBalance, OptionCreateWallet, OptionHelp:
		return option, true
	default:
		return option, false
	}
}

// EventKind enumerates normalized session events.
type EventKind string

const (
	EventMenuSelect EventKind = "menu_select"
	EventTextInput  EventKind = "text"
	EventConfirm    EventKind = "confirm"
	EventCancel     EventKind = "cancel"
)

// Event is a transport-independent user action.
type Event struct {
	Kind   EventKind
	Option MenuOption
	Text   string
}

// MenuSelect builds a menu selection event.
func MenuSelect(option MenuOption) Event {
	return Event{Kind: EventMenuSelect, Option: option}
}

// TextInput builds a free-text event.
func TextInput(text string) Event {
	return Event{Kind: EventTextInput, Text: text}
}

// Confirm builds a confirmation event.
func Confirm() Event {
	return Event{Kind: EventConfirm}
}

// Cancel builds a cancellation event.
func Cancel() Event {
	return Event{Kind: EventCancel}
}

// Button is an inline choice offered to the user. Data is echoed back by the transport.
type Button struct {
	Label string
	Data  string
}

// Directive tells the transport what to render after an event.
type Directive struct {
	State   State
	Text    string
	Buttons [][]Button
	Image   []byte
	// Sensitive marks text that contains the wallet secret; transports must not log or forward it.
	Sensitive bool
}

// Credentials are the address and signing secret of a wallet.
type Credentials struct {
	Address string
	Secret  string
}

// WalletRecord is the single wallet owned by a user.
type WalletRecord struct {
	userID      UserID
	address     string
	secret      string
	displayName string
}

// NewWalletRecord validates a wallet record.
func NewWalletRecord(userID UserID, address string, secret string, displayName string) (WalletRecord, error) {
	if userID.String() == "" {
		return WalletRecord{}, fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}
	trimmedAddress := strings.TrimSpace(address)
	if trimmedAddress == "" {
		return WalletRecord{}, fmt.Errorf("%w: empty wallet address", ErrInvalidInput)
	}
	if secret == "" {
		return WalletRecord{}, fmt.Errorf("%w: empty wallet secret", ErrInvalidInput)
	}
	return WalletRecord{
		userID:      userID,
		address:     trimmedAddress,
		secret:      secret,
		displayName: strings.TrimSpace(displayName),
	}, nil
}

// UserID returns the owner.
func (record WalletRecord) UserID() UserID {
	return record.userID
}

// Address returns the public ledger address.
func (record WalletRecord) Address() string {
	return record.address
}

// DisplayName returns the optional user-chosen name.
func (record WalletRecord) DisplayName() string {
	return record.displayName
}

// Credentials exposes the signing material for ledger calls only.
func (record WalletRecord) Credentials() Credentials {
	return Credentials{Address: record.address, Secret: record.secret}
}

// String never includes the secret.
func (record WalletRecord) String() string {
	return fmt.Sprintf("wallet(user=%s address=%s)", record.userID.String(), record.address)
}

// PendingTransaction is a send request being assembled.
type PendingTransaction struct {
	Recipient string
	Amount    decimal.NullDecimal
}

// HasRecipient reports whether the recipient is staged.
func (pending PendingTransaction) HasRecipient() bool {
	return pending.Recipient != ""
}

// HasAmount reports whether the amount is staged.
func (pending PendingTransaction) HasAmount() bool {
	return pending.Amount.Valid
}

// Complete reports whether both fields are staged.
func (pending PendingTransaction) Complete() bool {
	return pending.HasRecipient() && pending.HasAmount()
}

// Receipt describes an accepted payment.
type Receipt struct {
	TransactionID string
	Status        string
}
