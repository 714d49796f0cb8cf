// Package observability provides a metrics hook for Escrow that records
// lifecycle event counts through an injected MetricFactory.
package observability

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/event"
	"github.com/xraph/escrow/hook"
	"github.com/xraph/escrow/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ hook.Hook                = (*MetricsExtension)(nil)
	_ hook.OnInit              = (*MetricsExtension)(nil)
	_ hook.OnPaymentInitiated  = (*MetricsExtension)(nil)
	_ hook.OnPaymentCompleted  = (*MetricsExtension)(nil)
	_ hook.OnPaymentRefunded   = (*MetricsExtension)(nil)
	_ hook.OnLimitSet          = (*MetricsExtension)(nil)
	_ hook.OnSpendingRecorded  = (*MetricsExtension)(nil)
	_ hook.OnLimitExceeded     = (*MetricsExtension)(nil)
	_ hook.OnServiceRegistered = (*MetricsExtension)(nil)
	_ hook.OnServiceRequest    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an Escrow hook to automatically track payment metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Payment metrics
	PaymentInitiated Counter
	PaymentCompleted Counter
	PaymentRefunded  Counter
	PaymentAmount    Histogram

	// Spending-limit metrics
	LimitSet         Counter
	SpendingRecorded Counter
	LimitExceeded    Counter
	SpendingAmount   Histogram

	// Directory metrics
	ServiceRegistered Counter
	ServiceRequests   Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Payment metrics
		PaymentInitiated: factory.Counter("escrow.payment.initiated"),
		PaymentCompleted: factory.Counter("escrow.payment.completed"),
		PaymentRefunded:  factory.Counter("escrow.payment.refunded"),
		PaymentAmount:    factory.Histogram("escrow.payment.amount_wei"),

		// Spending-limit metrics
		LimitSet:         factory.Counter("escrow.limit.set"),
		SpendingRecorded: factory.Counter("escrow.spending.recorded"),
		LimitExceeded:    factory.Counter("escrow.limit.exceeded"),
		SpendingAmount:   factory.Histogram("escrow.spending.amount_wei"),

		// Directory metrics
		ServiceRegistered: factory.Counter("escrow.service.registered"),
		ServiceRequests:   factory.Counter("escrow.service.requests"),
	}
}

// Name implements hook.Hook.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements hook.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentInitiated implements hook.OnPaymentInitiated.
func (m *MetricsExtension) OnPaymentInitiated(_ context.Context, e event.PaymentInitiated) error {
	m.PaymentInitiated.Inc()
	m.PaymentAmount.Observe(amountSample(e.Amount))
	return nil
}

// OnPaymentCompleted implements hook.OnPaymentCompleted.
func (m *MetricsExtension) OnPaymentCompleted(_ context.Context, _ event.PaymentCompleted) error {
	m.PaymentCompleted.Inc()
	return nil
}

// OnPaymentRefunded implements hook.OnPaymentRefunded.
func (m *MetricsExtension) OnPaymentRefunded(_ context.Context, _ event.PaymentRefunded) error {
	m.PaymentRefunded.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Spending-limit hooks
// ──────────────────────────────────────────────────

// OnLimitSet implements hook.OnLimitSet.
func (m *MetricsExtension) OnLimitSet(_ context.Context, _ event.LimitSet) error {
	m.LimitSet.Inc()
	return nil
}

// OnSpendingRecorded implements hook.OnSpendingRecorded.
func (m *MetricsExtension) OnSpendingRecorded(_ context.Context, e event.SpendingRecorded) error {
	m.SpendingRecorded.Inc()
	m.SpendingAmount.Observe(amountSample(e.Amount))
	return nil
}

// OnLimitExceeded implements hook.OnLimitExceeded.
func (m *MetricsExtension) OnLimitExceeded(_ context.Context, _ common.Address, _ string, _, _ types.Amount) error {
	m.LimitExceeded.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Directory hooks
// ──────────────────────────────────────────────────

// OnServiceRegistered implements hook.OnServiceRegistered.
func (m *MetricsExtension) OnServiceRegistered(_ context.Context, _ event.ServiceRegistered) error {
	m.ServiceRegistered.Inc()
	return nil
}

// OnServiceRequest implements hook.OnServiceRequest.
func (m *MetricsExtension) OnServiceRequest(_ context.Context, _ event.ServiceRequestRecorded) error {
	m.ServiceRequests.Inc()
	return nil
}

// amountSample converts a wei amount to a float64 histogram sample.
// Precision loss past 2^53 wei is acceptable for metrics.
func amountSample(a types.Amount) float64 {
	f, _ := new(big.Float).SetInt(a.Big()).Float64()
	return f
}
