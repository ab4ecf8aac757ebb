package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const (
	userIDValue       = "user-1"
	walletAddress     = "rABC"
	walletSecret      = "sXYZ"
	recipientAddress  = "rDEST"
	walletDisplayName = "Main"
	qrImageBytes      = "png-bytes"
)

type sentPayment struct {
	source      Credentials
	amount      decimal.Decimal
	destination string
}

type fakeLedger struct {
	mu          sync.Mutex
	credentials Credentials
	balance     decimal.Decimal
	createErr   error
	balanceErr  error
	sendErr     error
	renderErr   error
	createGate  chan struct{}
	createCalls int
	payments    []sentPayment
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		credentials: Credentials{Address: walletAddress, Secret: walletSecret},
		balance:     decimal.NewFromInt(1000),
	}
}

func (ledger *fakeLedger) CreateWallet(ctx context.Context) (Credentials, error) {
	if ledger.createGate != nil {
		select {
		case <-ledger.createGate:
		case <-ctx.Done():
			return Credentials{}, ctx.Err()
		}
	}
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	ledger.createCalls++
	if ledger.createErr != nil {
		return Credentials{}, ledger.createErr
	}
	return ledger.credentials, nil
}

func (ledger *fakeLedger) GetBalance(_ context.Context, _ string) (decimal.Decimal, error) {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	if ledger.balanceErr != nil {
		return decimal.Decimal{}, ledger.balanceErr
	}
	return ledger.balance, nil
}

func (ledger *fakeLedger) SendPayment(_ context.Context, source Credentials, amount decimal.Decimal, destination string) (Receipt, error) {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	ledger.payments = append(ledger.payments, sentPayment{source: source, amount: amount, destination: destination})
	if ledger.sendErr != nil {
		return Receipt{}, ledger.sendErr
	}
	return Receipt{TransactionID: "tx-1", Status: "tesSUCCESS"}, nil
}

func (ledger *fakeLedger) RenderAddressImage(_ string) ([]byte, error) {
	if ledger.renderErr != nil {
		return nil, ledger.renderErr
	}
	return []byte(qrImageBytes), nil
}

func (ledger *fakeLedger) createCount() int {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	return ledger.createCalls
}

type validatingLedger struct {
	*fakeLedger
	err error
}

func (ledger *validatingLedger) ValidateAddress(_ string) error {
	return ledger.err
}

type recorderLogger struct {
	mu      sync.Mutex
	entries []TransitionLog
}

func (logger *recorderLogger) LogTransition(_ context.Context, entry TransitionLog) {
	logger.mu.Lock()
	defer logger.mu.Unlock()
	logger.entries = append(logger.entries, entry)
}

func (logger *recorderLogger) snapshot() []TransitionLog {
	logger.mu.Lock()
	defer logger.mu.Unlock()
	return append([]TransitionLog(nil), logger.entries...)
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (clock *manualClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

func (clock *manualClock) Advance(duration time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = clock.now.Add(duration)
}

type controllerFixture struct {
	controller *Controller
	registry   *MemoryRegistry
	staging    *MemoryStaging
	ledger     *fakeLedger
	logger     *recorderLogger
	clock      *manualClock
}

func newControllerFixture(test *testing.T) *controllerFixture {
	test.Helper()
	return newControllerFixtureWithLedger(test, newFakeLedger(), nil)
}

func newControllerFixtureWithLedger(test *testing.T, ledger *fakeLedger, client LedgerClient) *controllerFixture {
	test.Helper()
	if client == nil {
		client = ledger
	}
	fixture := &controllerFixture{
		registry: NewMemoryRegistry(),
		staging:  NewMemoryStaging(),
		ledger:   ledger,
		logger:   &recorderLogger{},
		clock:    &manualClock{now: time.Unix(1_700_000_000, 0).UTC()},
	}
	controller, err := NewController(fixture.registry, fixture.staging, client,
		WithTransitionLogger(fixture.logger),
		WithClock(fixture.clock.Now),
	)
	if err != nil {
		test.Fatalf("controller init failed: %v", err)
	}
	fixture.controller = controller
	return fixture
}

func (fixture *controllerFixture) handle(test *testing.T, userID UserID, event Event) Directive {
	test.Helper()
	directive, err := fixture.controller.Handle(context.Background(), userID, event)
	if err != nil {
		test.Fatalf("handle %s: %v", event.Kind, err)
	}
	return directive
}

func (fixture *controllerFixture) seedWallet(test *testing.T, userID UserID) {
	test.Helper()
	if _, err := fixture.registry.Create(context.Background(), userID, walletAddress, walletSecret, walletDisplayName); err != nil {
		test.Fatalf("seed wallet: %v", err)
	}
}

func (fixture *controllerFixture) state(test *testing.T, userID UserID) State {
	test.Helper()
	state, err := fixture.controller.State(context.Background(), userID)
	if err != nil {
		test.Fatalf("state: %v", err)
	}
	return state
}

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	value, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return value
}

func mustDecimal(test *testing.T, raw string) decimal.Decimal {
	test.Helper()
	value, err := decimal.NewFromString(raw)
	if err != nil {
		test.Fatalf("decimal: %v", err)
	}
	return value
}
