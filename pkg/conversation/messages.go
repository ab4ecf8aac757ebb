package conversation

const (
	operationStart         = "start"
	operationHelp          = "help"
	operationSend          = "send"
	operationReceive       = "receive"
	operationCheckBalance  = "check_balance"
	operationCreateWallet  = "create_wallet"
	operationNameWallet    = "name_wallet"
	operationStageTarget   = "stage_recipient"
	operationStageAmount   = "stage_amount"
	operationConfirm       = "confirm"
	operationCancel        = "cancel"
	operationUnhandled     = "unhandled"
	operationIdleReset     = "idle_reset"
	operationStatusOK      = "ok"
	operationStatusError   = "error"
	defaultAmountPlaces    = 6
	buttonDataConfirm      = "confirm"
	buttonDataCancel       = "cancel"
	buttonLabelSend        = "Send"
	buttonLabelReceive     = "Receive"
	buttonLabelBalance     = "Check Balance"
	buttonLabelCreate      = "Create Wallet"
	buttonLabelHelp        = "Help"
	buttonLabelConfirm     = "Confirm"
	buttonLabelCancel      = "Cancel"
	messageWelcome         = "Welcome to Ripple USD bot!! Choose an option:"
	messageChooseOption    = "Choose an option:"
	messageNoWallet        = "No wallet created. Please create one first."
	messageAlreadyCreated  = "Wallet has been already created."
	messageEnterRecipient  = "Enter the address to send to:"
	messageEmptyRecipient  = "Recipient address cannot be empty. Enter the address to send to:"
	messageInvalidAddress  = "Invalid address. Enter the address to send to:"
	messageEnterAmount     = "Enter the amount to send:"
	messageInvalidAmount   = "Invalid amount. Enter a positive number with at most %d decimal places:"
	messageConfirmSummary  = "Confirm the transaction:\nAddress: %s\nAmount: %s"
	messageConfirmOrCancel = "Confirm or cancel the transaction."
	messageNothingToSend   = "There is no transaction to confirm. Please start again."
	messageSent            = "Transaction confirmed! Sent %s to %s.\nTransaction: %s"
	messageSendFailed      = "Transaction failed. Please start again."
	messageInsufficient    = "Transaction failed: insufficient funds."
	messageCanceled        = "Transaction canceled."
	messageReceiveCaption  = "WALLET ADDRESS: %s"
	messageBalance         = "Your balance is %s."
	messageAccountMissing  = "Your account was not found on the ledger yet."
	messageLedgerDown      = "The ledger is unavailable right now. Please try again later."
	messageEnterWalletName = "Enter your wallet name:"
	messageEmptyWalletName = "Wallet name cannot be empty. Enter your wallet name:"
	messageFaucetFailed    = "The test faucet could not fund a new wallet. Please try again later."
	messageWalletCreated   = "Wallet '%s' has been created.\nAddress: %s\nSecret: %s\nStore the secret safely; it will not be shown again."
	messageInternalError   = "Something went wrong. Please try again."
	messageHelp            = "Available commands:\n" +
		"- Send: Send funds to another address\n" +
		"- Receive: View your wallet address and QR code\n" +
		"- Check Balance: View your wallet balance\n" +
		"- Create Wallet: Create a new wallet\n" +
		"- Help: Show this help message"
)

func mainMenuButtons() [][]Button {
	return [][]Button{
		{{Label: buttonLabelSend, Data: string(OptionSend)}},
		{{Label: buttonLabelReceive, Data: string(OptionReceive)}},
		{{Label: buttonLabelBalance, Data: string(OptionCheckBalance)}},
		{{Label: buttonLabelCreate, Data: string(OptionCreateWallet)}},
		{{Label: buttonLabelHelp, Data: string(OptionHelp)}},
	}
}

func confirmationButtons() [][]Button {
	return [][]Button{
		{
			{Label: buttonLabelConfirm, Data: buttonDataConfirm},
			{Label: buttonLabelCancel, Data: buttonDataCancel},
		},
	}
}

// IsConfirmData reports whether button data is the confirmation choice.
func IsConfirmData(data string) bool {
	return data == buttonDataConfirm
}

// IsCancelData reports whether button data is the cancellation choice.
func IsCancelData(data string) bool {
	return data == buttonDataCancel
}

// EventFromButtonData maps echoed button data back to an event. Unknown data returns false.
func EventFromButtonData(data string) (Event, bool) {
	switch {
	case IsConfirmData(data):
		return Confirm(), true
	case IsCancelData(data):
		return Cancel(), true
	}
	option, ok := ParseMenuOption(data)
	if !ok {
		return Event{}, false
	}
	return MenuSelect(option), true
}
