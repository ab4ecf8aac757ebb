package conversation

import (
	"context"
	"time"
)

// ControllerOption configures a Controller instance.
type ControllerOption func(*Controller)

// TransitionLogger records every event the controller handles.
type TransitionLogger interface {
	LogTransition(ctx context.Context, entry TransitionLog)
}

// TransitionLog describes one handled event. It never carries wallet secrets.
type TransitionLog struct {
	Operation string
	UserID    UserID
	From      State
	To        State
	Event     EventKind
	Option    MenuOption
	Status    string
	Error     error
	Duration  time.Duration
}

// WithTransitionLogger wires a logger that receives callbacks for every handled event.
func WithTransitionLogger(logger TransitionLogger) ControllerOption {
	return func(controller *Controller) {
		controller.logger = logger
	}
}

// WithClock overrides the wall clock used for activity tracking.
func WithClock(now func() time.Time) ControllerOption {
	return func(controller *Controller) {
		if now != nil {
			controller.nowFn = now
		}
	}
}

// WithAmountPrecision sets the number of decimal places the ledger can settle.
func WithAmountPrecision(places int32) ControllerOption {
	return func(controller *Controller) {
		controller.amountPlaces = places
	}
}

// WithLedgerTimeout bounds each ledger call. Zero leaves calls bounded only by the caller's context.
func WithLedgerTimeout(timeout time.Duration) ControllerOption {
	return func(controller *Controller) {
		controller.ledgerTimeout = timeout
	}
}
