package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/walletbot/pkg/conversation"
	"github.com/MarkoPoloResearchLab/walletbot/pkg/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func mustUserID(test *testing.T, raw string) conversation.UserID {
	test.Helper()
	userID, err := conversation.NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return userID
}

func TestTransitionLoggerLevels(test *testing.T) {
	test.Parallel()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewTransitionLogger(zap.New(core))
	userID := mustUserID(test, "7")

	logger.LogTransition(context.Background(), conversation.TransitionLog{
		Operation: "send",
		UserID:    userID,
		From:      conversation.StateMenu,
		To:        conversation.StateAwaitRecipient,
		Event:     conversation.EventMenuSelect,
		Option:    conversation.OptionSend,
		Status:    "ok",
		Duration:  time.Millisecond,
	})
	logger.LogTransition(context.Background(), conversation.TransitionLog{
		Operation: "confirm",
		UserID:    userID,
		From:      conversation.StateAwaitConfirmation,
		To:        conversation.StateMenu,
		Event:     conversation.EventConfirm,
		Status:    "error",
		Error:     conversation.ErrSubmissionFailure,
	})

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		test.Fatalf("expected two entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[1].Level != zapcore.WarnLevel {
		test.Fatalf("unexpected levels %s %s", entries[0].Level, entries[1].Level)
	}
	fields := entries[0].ContextMap()
	if fields["user_id"] != "7" || fields["to"] != "await_recipient" || fields["option"] != "send" {
		test.Fatalf("unexpected fields %v", fields)
	}
	if _, hasOption := entries[1].ContextMap()["option"]; hasOption {
		test.Fatalf("option must be omitted when empty")
	}
}

func TestOperationLoggerOmitsSecrets(test *testing.T) {
	test.Parallel()
	wallet, err := ledger.GenerateWallet(bytes.NewReader(bytes.Repeat([]byte{9}, 32)))
	if err != nil {
		test.Fatalf("generate wallet: %v", err)
	}
	core, logs := observer.New(zapcore.DebugLevel)
	NewOperationLogger(zap.New(core)).LogOperation(context.Background(), ledger.OperationLog{
		Operation:   "transfer",
		Source:      wallet.Address,
		Destination: wallet.Address,
		Amount:      10,
		TransferID:  "t-1",
		Status:      "ok",
	})
	entries := logs.AllUntimed()
	if len(entries) != 1 {
		test.Fatalf("expected one entry, got %d", len(entries))
	}
	for key, value := range entries[0].ContextMap() {
		if text, ok := value.(string); ok && text == wallet.Secret {
			test.Fatalf("field %s leaked the wallet secret", key)
		}
	}
	if entries[0].ContextMap()["transfer_id"] != "t-1" {
		test.Fatalf("expected transfer id field")
	}
}

func TestNilLoggersDiscard(test *testing.T) {
	test.Parallel()
	NewTransitionLogger(nil).LogTransition(context.Background(), conversation.TransitionLog{})
	NewOperationLogger(nil).LogOperation(context.Background(), ledger.OperationLog{Error: errors.New("boom")})
}

type countingTransitionLogger struct {
	count int
}

func (logger *countingTransitionLogger) LogTransition(context.Context, conversation.TransitionLog) {
	logger.count++
}

type countingOperationLogger struct {
	count int
}

func (logger *countingOperationLogger) LogOperation(context.Context, ledger.OperationLog) {
	logger.count++
}

func TestFanOutLoggers(test *testing.T) {
	test.Parallel()
	first, second := &countingTransitionLogger{}, &countingTransitionLogger{}
	TransitionLoggers{first, nil, second}.LogTransition(context.Background(), conversation.TransitionLog{})
	if first.count != 1 || second.count != 1 {
		test.Fatalf("expected both loggers to receive the entry")
	}
	operations := &countingOperationLogger{}
	OperationLoggers{nil, operations}.LogOperation(context.Background(), ledger.OperationLog{})
	if operations.count != 1 {
		test.Fatalf("expected operation logger to receive the entry")
	}
}

func TestMetricsCountTransitionsAndOperations(test *testing.T) {
	test.Parallel()
	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(registry)
	if err != nil {
		test.Fatalf("new metrics: %v", err)
	}
	entry := conversation.TransitionLog{Operation: "send", To: conversation.StateAwaitRecipient, Status: "ok", Duration: 2 * time.Millisecond}
	metrics.LogTransition(context.Background(), entry)
	metrics.LogTransition(context.Background(), entry)
	metrics.LogOperation(context.Background(), ledger.OperationLog{Operation: "transfer", Status: "error"})

	if got := testutil.ToFloat64(metrics.transitions.WithLabelValues("send", "await_recipient", "ok")); got != 2 {
		test.Fatalf("expected 2 transitions, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.ledgerOperations.WithLabelValues("transfer", "error")); got != 1 {
		test.Fatalf("expected 1 ledger operation, got %v", got)
	}
	if got := testutil.CollectAndCount(metrics.transitionTiming); got != 1 {
		test.Fatalf("expected one histogram series, got %d", got)
	}

	if _, err := NewMetrics(registry); err == nil {
		test.Fatalf("expected duplicate registration to fail")
	}
	if _, err := NewMetrics(nil); err == nil {
		test.Fatalf("expected error for nil registerer")
	}
}
