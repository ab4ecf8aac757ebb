package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/walletbot/pkg/conversation"
	"github.com/MarkoPoloResearchLab/walletbot/pkg/ledger"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "walletbot"

// Metrics exports transition and ledger counters.
type Metrics struct {
	transitions      *prometheus.CounterVec
	transitionTiming *prometheus.HistogramVec
	ledgerOperations *prometheus.CounterVec
}

// NewMetrics registers the collectors with registerer.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		return nil, errors.New("telemetry: registerer is required")
	}
	metrics := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transitions_total",
			Help:      "Conversation events handled, by operation, resulting state and status.",
		}, []string{"operation", "to", "status"}),
		transitionTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "transition_duration_seconds",
			Help:      "Time spent handling a conversation event, ledger calls included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		ledgerOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ledger_operations_total",
			Help:      "Custodial ledger operations, by operation and status.",
		}, []string{"operation", "status"}),
	}
	for _, collector := range []prometheus.Collector{metrics.transitions, metrics.transitionTiming, metrics.ledgerOperations} {
		if err := registerer.Register(collector); err != nil {
			return nil, fmt.Errorf("telemetry: register collector: %w", err)
		}
	}
	return metrics, nil
}

func (metrics *Metrics) LogTransition(_ context.Context, entry conversation.TransitionLog) {
	metrics.transitions.WithLabelValues(entry.Operation, entry.To.String(), entry.Status).Inc()
	metrics.transitionTiming.WithLabelValues(entry.Operation).Observe(entry.Duration.Seconds())
}

func (metrics *Metrics) LogOperation(_ context.Context, entry ledger.OperationLog) {
	metrics.ledgerOperations.WithLabelValues(entry.Operation, entry.Status).Inc()
}
