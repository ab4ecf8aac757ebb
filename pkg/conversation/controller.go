package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Controller is the per-user conversation state machine.
type Controller struct {
	registry      WalletRegistry
	staging       TransactionStaging
	ledger        LedgerClient
	sessions      *sessionTable
	nowFn         func() time.Time
	logger        TransitionLogger
	amountPlaces  int32
	ledgerTimeout time.Duration
}

// step is the outcome of one transition before it is applied to the session.
type step struct {
	directive Directive
	operation string
	err       error
}

// NewController wires a Controller.
func NewController(registry WalletRegistry, staging TransactionStaging, ledger LedgerClient, options ...ControllerOption) (*Controller, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: wallet registry dependency is nil", ErrInvalidControllerConfig)
	}
	if staging == nil {
		return nil, fmt.Errorf("%w: transaction staging dependency is nil", ErrInvalidControllerConfig)
	}
	if ledger == nil {
		return nil, fmt.Errorf("%w: ledger client dependency is nil", ErrInvalidControllerConfig)
	}
	controller := &Controller{
		registry:     registry,
		staging:      staging,
		ledger:       ledger,
		sessions:     newSessionTable(),
		nowFn:        time.Now,
		amountPlaces: defaultAmountPlaces,
	}
	for _, option := range options {
		if option != nil {
			option(controller)
		}
	}
	if controller.amountPlaces < 0 {
		return nil, fmt.Errorf("%w: amount precision must not be negative", ErrInvalidControllerConfig)
	}
	return controller, nil
}

// Handle applies event to the session of userID and returns what to render.
// Events for the same user are processed one at a time, in arrival order of lock acquisition;
// the returned error is non-nil only when ctx ends before the session could be entered.
func (controller *Controller) Handle(ctx context.Context, userID UserID, event Event) (Directive, error) {
	if userID.String() == "" {
		return Directive{}, fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}
	startedAt := controller.nowFn()
	current, err := controller.sessions.acquire(ctx, userID, startedAt)
	if err != nil {
		return Directive{}, err
	}
	defer current.release()

	from := current.state
	outcome := controller.transition(ctx, userID, from, event)
	if outcome.directive.State == "" {
		outcome.directive.State = from
	}
	current.state = outcome.directive.State
	current.lastActivity = controller.nowFn()

	controller.logTransition(ctx, TransitionLog{
		Operation: outcome.operation,
		UserID:    userID,
		From:      from,
		To:        current.state,
		Event:     event.Kind,
		Option:    event.Option,
		Error:     outcome.err,
		Duration:  current.lastActivity.Sub(startedAt),
	})
	return outcome.directive, nil
}

// State returns the current state of userID, waiting for any in-flight event to finish.
func (controller *Controller) State(ctx context.Context, userID UserID) (State, error) {
	current, err := controller.sessions.acquire(ctx, userID, controller.nowFn())
	if err != nil {
		return "", err
	}
	defer current.release()
	return current.state, nil
}

func (controller *Controller) transition(ctx context.Context, userID UserID, state State, event Event) step {
	if event.Kind == EventMenuSelect {
		switch event.Option {
		case OptionHelp:
			return controller.returnToMenu(ctx, userID, operationHelp, messageHelp)
		case OptionStart:
			return controller.returnToMenu(ctx, userID, operationStart, messageWelcome)
		}
	}
	switch state {
	case StateMenu:
		if event.Kind == EventMenuSelect {
			switch event.Option {
			case OptionSend:
				return controller.beginSend(ctx, userID)
			case OptionReceive:
				return controller.receive(ctx, userID)
			case OptionCheckBalance:
				return controller.checkBalance(ctx, userID)
			case OptionCreateWallet:
				return controller.beginCreateWallet(ctx, userID)
			}
		}
	case StateAwaitRecipient:
		if event.Kind == EventTextInput {
			return controller.stageRecipient(ctx, userID, event.Text)
		}
	case StateAwaitAmount:
		if event.Kind == EventTextInput {
			return controller.stageAmount(ctx, userID, event.Text)
		}
	case StateAwaitConfirmation:
		switch event.Kind {
		case EventConfirm:
			return controller.confirmSend(ctx, userID)
		case EventCancel:
			return controller.cancelSend(ctx, userID)
		}
	case StateAwaitWalletName:
		if event.Kind == EventTextInput {
			return controller.createWallet(ctx, userID, event.Text)
		}
	}
	return controller.unhandled(ctx, userID, state, event)
}

func (controller *Controller) returnToMenu(ctx context.Context, userID UserID, operation string, text string) step {
	err := controller.staging.Clear(ctx, userID)
	return step{directive: menuDirective(text), operation: operation, err: err}
}

func (controller *Controller) beginSend(ctx context.Context, userID UserID) step {
	_, found, err := controller.registry.Get(ctx, userID)
	if err != nil {
		return step{directive: menuDirective(messageInternalError), operation: operationSend, err: err}
	}
	if !found {
		return step{directive: menuDirective(messageNoWallet), operation: operationSend, err: ErrWalletNotFound}
	}
	return step{
		directive: Directive{State: StateAwaitRecipient, Text: messageEnterRecipient},
		operation: operationSend,
	}
}

func (controller *Controller) stageRecipient(ctx context.Context, userID UserID, text string) step {
	recipient := strings.TrimSpace(text)
	if recipient == "" {
		return step{
			directive: Directive{State: StateAwaitRecipient, Text: messageEmptyRecipient},
			operation: operationStageTarget,
			err:       fmt.Errorf("%w: empty recipient", ErrInvalidInput),
		}
	}
	if validator, ok := controller.ledger.(AddressValidator); ok {
		if err := validator.ValidateAddress(recipient); err != nil {
			return step{
				directive: Directive{State: StateAwaitRecipient, Text: messageInvalidAddress},
				operation: operationStageTarget,
				err:       fmt.Errorf("%w: %v", ErrInvalidInput, err),
			}
		}
	}
	if err := controller.staging.SetRecipient(ctx, userID, recipient); err != nil {
		return controller.abortSend(ctx, userID, operationStageTarget, messageInternalError, err)
	}
	return step{
		directive: Directive{State: StateAwaitAmount, Text: messageEnterAmount},
		operation: operationStageTarget,
	}
}

func (controller *Controller) stageAmount(ctx context.Context, userID UserID, text string) step {
	amount, err := controller.parseAmount(text)
	if err != nil {
		return step{
			directive: Directive{State: StateAwaitAmount, Text: fmt.Sprintf(messageInvalidAmount, controller.amountPlaces)},
			operation: operationStageAmount,
			err:       err,
		}
	}
	if err := controller.staging.SetAmount(ctx, userID, amount); err != nil {
		if errors.Is(err, ErrNoRecipientStaged) {
			return controller.abortSend(ctx, userID, operationStageAmount, messageNothingToSend, err)
		}
		return controller.abortSend(ctx, userID, operationStageAmount, messageInternalError, err)
	}
	pending, err := controller.staging.Snapshot(ctx, userID)
	if err != nil {
		return controller.abortSend(ctx, userID, operationStageAmount, messageNothingToSend, err)
	}
	return step{directive: confirmationDirective(pending), operation: operationStageAmount}
}

func (controller *Controller) parseAmount(text string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: amount is not numeric", ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidInput)
	}
	if !amount.Equal(amount.Truncate(controller.amountPlaces)) {
		return decimal.Decimal{}, fmt.Errorf("%w: amount has more than %d decimal places", ErrInvalidInput, controller.amountPlaces)
	}
	return amount, nil
}

func (controller *Controller) confirmSend(ctx context.Context, userID UserID) step {
	pending, err := controller.staging.Snapshot(ctx, userID)
	if err != nil {
		return controller.abortSend(ctx, userID, operationConfirm, messageNothingToSend, err)
	}
	wallet, found, err := controller.registry.Get(ctx, userID)
	if err != nil {
		return controller.abortSend(ctx, userID, operationConfirm, messageInternalError, err)
	}
	if !found {
		return controller.abortSend(ctx, userID, operationConfirm, messageNoWallet, ErrWalletNotFound)
	}

	ledgerCtx, cancel := controller.ledgerContext(ctx)
	receipt, sendErr := controller.ledger.SendPayment(ledgerCtx, wallet.Credentials(), pending.Amount.Decimal, pending.Recipient)
	cancel()
	clearErr := controller.staging.Clear(ctx, userID)

	if sendErr != nil {
		text := messageSendFailed
		switch {
		case errors.Is(sendErr, ErrInsufficientFunds):
			text = messageInsufficient
		case errors.Is(sendErr, ErrLedgerUnavailable):
			text = messageLedgerDown
		}
		return step{directive: menuDirective(text), operation: operationConfirm, err: errors.Join(sendErr, clearErr)}
	}
	text := fmt.Sprintf(messageSent, pending.Amount.Decimal.String(), pending.Recipient, receipt.TransactionID)
	return step{directive: menuDirective(text), operation: operationConfirm, err: clearErr}
}

func (controller *Controller) cancelSend(ctx context.Context, userID UserID) step {
	err := controller.staging.Clear(ctx, userID)
	return step{directive: menuDirective(messageCanceled), operation: operationCancel, err: err}
}

// abortSend clears staging and returns to the menu after a failed send step.
func (controller *Controller) abortSend(ctx context.Context, userID UserID, operation string, text string, cause error) step {
	clearErr := controller.staging.Clear(ctx, userID)
	return step{directive: menuDirective(text), operation: operation, err: errors.Join(cause, clearErr)}
}

func (controller *Controller) receive(ctx context.Context, userID UserID) step {
	wallet, found, err := controller.registry.Get(ctx, userID)
	if err != nil {
		return step{directive: menuDirective(messageInternalError), operation: operationReceive, err: err}
	}
	if !found {
		return step{directive: menuDirective(messageNoWallet), operation: operationReceive, err: ErrWalletNotFound}
	}
	directive := menuDirective(fmt.Sprintf(messageReceiveCaption, wallet.Address()))
	image, err := controller.ledger.RenderAddressImage(wallet.Address())
	if err != nil {
		return step{directive: directive, operation: operationReceive, err: err}
	}
	directive.Image = image
	return step{directive: directive, operation: operationReceive}
}

func (controller *Controller) checkBalance(ctx context.Context, userID UserID) step {
	wallet, found, err := controller.registry.Get(ctx, userID)
	if err != nil {
		return step{directive: menuDirective(messageInternalError), operation: operationCheckBalance, err: err}
	}
	if !found {
		return step{directive: menuDirective(messageNoWallet), operation: operationCheckBalance, err: ErrWalletNotFound}
	}
	ledgerCtx, cancel := controller.ledgerContext(ctx)
	defer cancel()
	balance, err := controller.ledger.GetBalance(ledgerCtx, wallet.Address())
	if err != nil {
		text := messageLedgerDown
		if errors.Is(err, ErrAccountNotFound) {
			text = messageAccountMissing
		}
		return step{directive: menuDirective(text), operation: operationCheckBalance, err: err}
	}
	return step{directive: menuDirective(fmt.Sprintf(messageBalance, balance.String())), operation: operationCheckBalance}
}

func (controller *Controller) beginCreateWallet(ctx context.Context, userID UserID) step {
	_, found, err := controller.registry.Get(ctx, userID)
	if err != nil {
		return step{directive: menuDirective(messageInternalError), operation: operationCreateWallet, err: err}
	}
	if found {
		return step{directive: menuDirective(messageAlreadyCreated), operation: operationCreateWallet, err: ErrAlreadyExists}
	}
	return step{
		directive: Directive{State: StateAwaitWalletName, Text: messageEnterWalletName},
		operation: operationCreateWallet,
	}
}

func (controller *Controller) createWallet(ctx context.Context, userID UserID, text string) step {
	name := strings.TrimSpace(text)
	if name == "" {
		return step{
			directive: Directive{State: StateAwaitWalletName, Text: messageEmptyWalletName},
			operation: operationNameWallet,
			err:       fmt.Errorf("%w: empty wallet name", ErrInvalidInput),
		}
	}
	_, found, err := controller.registry.Get(ctx, userID)
	if err != nil {
		return step{directive: menuDirective(messageInternalError), operation: operationNameWallet, err: err}
	}
	if found {
		return step{directive: menuDirective(messageAlreadyCreated), operation: operationNameWallet, err: ErrAlreadyExists}
	}

	ledgerCtx, cancel := controller.ledgerContext(ctx)
	credentials, err := controller.ledger.CreateWallet(ledgerCtx)
	cancel()
	if err != nil {
		text := messageLedgerDown
		if errors.Is(err, ErrFaucetFailure) {
			text = messageFaucetFailed
		}
		return step{directive: menuDirective(text), operation: operationNameWallet, err: err}
	}

	record, err := controller.registry.Create(ctx, userID, credentials.Address, credentials.Secret, name)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return step{directive: menuDirective(messageAlreadyCreated), operation: operationNameWallet, err: err}
		}
		return step{directive: menuDirective(messageInternalError), operation: operationNameWallet, err: err}
	}
	directive := menuDirective(fmt.Sprintf(messageWalletCreated, record.DisplayName(), record.Address(), record.Credentials().Secret))
	directive.Sensitive = true
	return step{directive: directive, operation: operationNameWallet}
}

// unhandled keeps the state and re-renders its prompt so the user always gets feedback.
func (controller *Controller) unhandled(ctx context.Context, userID UserID, state State, event Event) step {
	err := fmt.Errorf("%w: %s in %s", ErrUnreachable, describeEvent(event), state)
	switch state {
	case StateMenu:
		return step{directive: menuDirective(messageChooseOption), operation: operationUnhandled, err: err}
	case StateAwaitRecipient:
		return step{directive: Directive{State: state, Text: messageEnterRecipient}, operation: operationUnhandled, err: err}
	case StateAwaitAmount:
		return step{directive: Directive{State: state, Text: messageEnterAmount}, operation: operationUnhandled, err: err}
	case StateAwaitConfirmation:
		pending, snapshotErr := controller.staging.Snapshot(ctx, userID)
		if snapshotErr != nil {
			return step{
				directive: Directive{State: state, Text: messageConfirmOrCancel, Buttons: confirmationButtons()},
				operation: operationUnhandled,
				err:       errors.Join(err, snapshotErr),
			}
		}
		return step{directive: confirmationDirective(pending), operation: operationUnhandled, err: err}
	case StateAwaitWalletName:
		return step{directive: Directive{State: state, Text: messageEnterWalletName}, operation: operationUnhandled, err: err}
	default:
		return controller.returnToMenu(ctx, userID, operationUnhandled, messageChooseOption)
	}
}

func (controller *Controller) ledgerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if controller.ledgerTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, controller.ledgerTimeout)
}

func (controller *Controller) logTransition(ctx context.Context, entry TransitionLog) {
	if controller.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	controller.logger.LogTransition(ctx, entry)
}

func menuDirective(text string) Directive {
	return Directive{State: StateMenu, Text: text, Buttons: mainMenuButtons()}
}

func confirmationDirective(pending PendingTransaction) Directive {
	return Directive{
		State:   StateAwaitConfirmation,
		Text:    fmt.Sprintf(messageConfirmSummary, pending.Recipient, pending.Amount.Decimal.String()),
		Buttons: confirmationButtons(),
	}
}

func describeEvent(event Event) string {
	if event.Kind == EventMenuSelect {
		return string(event.Kind) + ":" + string(event.Option)
	}
	return string(event.Kind)
}
