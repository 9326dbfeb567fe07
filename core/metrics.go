package core

// metrics.go exposes the engine's Prometheus instrumentation, modeled on
// HealthLogger (system_health_logging.go): a registry plus a handful of
// named gauges/counters created once and updated from the hot path.
// Narrowed here to the execution-engine counters this package can actually
// produce; ledger/network/coin metrics are outside this engine's scope.

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics is the set of Prometheus collectors the core engine
// updates. Construct one per process with NewEngineMetrics and register it
// with a promhttp handler at the caller's boundary.
type EngineMetrics struct {
	Registry *prometheus.Registry

	TransactionsApplied  prometheus.Counter
	TransactionsRejected *prometheus.CounterVec
	ApplyDuration        prometheus.Histogram
	ScheduledExecuted    prometheus.Counter
	ScheduledDeferred    prometheus.Counter
	ScheduledExpired     prometheus.Counter
	EnergyFrozenTotal    prometheus.Counter
	EnergyUnfrozenTotal  prometheus.Counter
	GasFeeAccumulated    prometheus.Counter
	BurnedSupply         prometheus.Counter
}

// NewEngineMetrics constructs and registers every collector against a fresh
// registry.
func NewEngineMetrics() *EngineMetrics {
	reg := prometheus.NewRegistry()

	m := &EngineMetrics{
		Registry: reg,
		TransactionsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tos_core_transactions_applied_total",
			Help: "Total number of transactions successfully applied.",
		}),
		TransactionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tos_core_transactions_rejected_total",
			Help: "Total number of transactions rejected, labeled by failure reason.",
		}, []string{"reason"}),
		ApplyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tos_core_apply_duration_seconds",
			Help:    "Time spent in Apply per transaction.",
			Buckets: prometheus.DefBuckets,
		}),
		ScheduledExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tos_core_scheduled_executed_total",
			Help: "Total number of scheduled executions that ran to completion.",
		}),
		ScheduledDeferred: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tos_core_scheduled_deferred_total",
			Help: "Total number of scheduled executions deferred for retry.",
		}),
		ScheduledExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tos_core_scheduled_expired_total",
			Help: "Total number of scheduled executions that exhausted their defer budget.",
		}),
		EnergyFrozenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tos_core_energy_frozen_tos_total",
			Help: "Total TOS (smallest unit) locked via freeze_tos_for_energy.",
		}),
		EnergyUnfrozenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tos_core_energy_unfrozen_tos_total",
			Help: "Total TOS (smallest unit) released via unfreeze_tos.",
		}),
		GasFeeAccumulated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tos_core_gas_fee_total",
			Help: "Total TOS fee accumulated across applied transactions.",
		}),
		BurnedSupply: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tos_core_burned_supply_total",
			Help: "Total supply burned across applied Burn transactions.",
		}),
	}

	reg.MustRegister(
		m.TransactionsApplied,
		m.TransactionsRejected,
		m.ApplyDuration,
		m.ScheduledExecuted,
		m.ScheduledDeferred,
		m.ScheduledExpired,
		m.EnergyFrozenTotal,
		m.EnergyUnfrozenTotal,
		m.GasFeeAccumulated,
		m.BurnedSupply,
	)

	return m
}

// ObserveResult updates the transaction counters from one TransactionResult.
func (m *EngineMetrics) ObserveResult(result TransactionResult) {
	if result.Success {
		m.TransactionsApplied.Inc()
		return
	}
	m.TransactionsRejected.WithLabelValues(rejectReason(result.Error)).Inc()
}

func rejectReason(err error) string {
	switch err {
	case ErrFormatRejected:
		return "format_rejected"
	case ErrNonceMismatch, ErrNonceConflict:
		return "nonce"
	case ErrInsufficientFunds:
		return "insufficient_funds"
	case ErrBadSignature:
		return "bad_signature"
	case ErrFeeTooLow:
		return "fee_too_low"
	case ErrUnderflow:
		return "underflow"
	case ErrOverflow:
		return "overflow"
	case ErrInsufficientEnergy:
		return "insufficient_energy"
	case ErrContractNotFound:
		return "contract_not_found"
	case ErrPolicyViolation:
		return "policy_violation"
	default:
		return "other"
	}
}

// ObserveScheduledResults updates the scheduled-execution counters from one
// block's BlockScheduledExecutionResults.
func (m *EngineMetrics) ObserveScheduledResults(results BlockScheduledExecutionResults) {
	m.ScheduledExecuted.Add(float64(results.SuccessCount))
	m.ScheduledDeferred.Add(float64(results.DeferredCount))
	for _, r := range results.Results {
		if !r.Success && r.ErrorCategory == ScheduledErrorExpired {
			m.ScheduledExpired.Inc()
		}
	}
}
