// Package telemetry implements the controller and ledger logging hooks with zap and Prometheus.
package telemetry

import (
	"context"

	"github.com/MarkoPoloResearchLab/walletbot/pkg/conversation"
	"github.com/MarkoPoloResearchLab/walletbot/pkg/ledger"
	"go.uber.org/zap"
)

// TransitionLogger writes controller transitions to zap.
type TransitionLogger struct {
	logger *zap.Logger
}

// NewTransitionLogger returns a TransitionLogger. A nil logger discards entries.
func NewTransitionLogger(logger *zap.Logger) *TransitionLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransitionLogger{logger: logger}
}

func (transitionLogger *TransitionLogger) LogTransition(_ context.Context, entry conversation.TransitionLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("user_id", entry.UserID.String()),
		zap.String("from", entry.From.String()),
		zap.String("to", entry.To.String()),
		zap.String("event", string(entry.Event)),
		zap.String("status", entry.Status),
		zap.Duration("duration", entry.Duration),
	}
	if entry.Option != "" {
		fields = append(fields, zap.String("option", string(entry.Option)))
	}
	if entry.Error != nil {
		transitionLogger.logger.Warn("conversation transition failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	transitionLogger.logger.Info("conversation transition", fields...)
}

// OperationLogger writes custodial ledger operations to zap.
type OperationLogger struct {
	logger *zap.Logger
}

// NewOperationLogger returns an OperationLogger. A nil logger discards entries.
func NewOperationLogger(logger *zap.Logger) *OperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperationLogger{logger: logger}
}

func (operationLogger *OperationLogger) LogOperation(_ context.Context, entry ledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("source", entry.Source.String()),
		zap.String("destination", entry.Destination.String()),
		zap.Int64("amount_drops", entry.Amount.Int64()),
		zap.String("status", entry.Status),
	}
	if entry.TransferID != "" {
		fields = append(fields, zap.String("transfer_id", entry.TransferID))
	}
	if entry.Error != nil {
		operationLogger.logger.Warn("ledger operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	operationLogger.logger.Info("ledger operation", fields...)
}

// TransitionLoggers fans an entry out to several loggers.
type TransitionLoggers []conversation.TransitionLogger

func (loggers TransitionLoggers) LogTransition(ctx context.Context, entry conversation.TransitionLog) {
	for _, logger := range loggers {
		if logger != nil {
			logger.LogTransition(ctx, entry)
		}
	}
}

// OperationLoggers fans an entry out to several loggers.
type OperationLoggers []ledger.OperationLogger

func (loggers OperationLoggers) LogOperation(ctx context.Context, entry ledger.OperationLog) {
	for _, logger := range loggers {
		if logger != nil {
			logger.LogOperation(ctx, entry)
		}
	}
}
