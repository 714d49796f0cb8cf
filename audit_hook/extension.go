// Package audithook bridges Escrow lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on a
// concrete audit store. Callers inject a RecorderFunc adapter that bridges
// to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/event"
	"github.com/xraph/escrow/hook"
	"github.com/xraph/escrow/types"
)

// Compile-time interface checks.
var (
	_ hook.Hook                = (*Extension)(nil)
	_ hook.OnPaymentInitiated  = (*Extension)(nil)
	_ hook.OnPaymentCompleted  = (*Extension)(nil)
	_ hook.OnPaymentRefunded   = (*Extension)(nil)
	_ hook.OnLimitSet          = (*Extension)(nil)
	_ hook.OnSpendingRecorded  = (*Extension)(nil)
	_ hook.OnLimitExceeded     = (*Extension)(nil)
	_ hook.OnServiceRegistered = (*Extension)(nil)
	_ hook.OnServiceRequest    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that this package does not import any
// particular audit store — callers inject the concrete backend at
// wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Escrow lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements hook.Hook.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentInitiated implements hook.OnPaymentInitiated.
func (e *Extension) OnPaymentInitiated(ctx context.Context, evt event.PaymentInitiated) error {
	return e.record(ctx, ActionPaymentInitiated, SeverityInfo, OutcomeSuccess,
		ResourcePayment, evt.PaymentID.String(), CategoryPayment, nil,
		"payer", evt.Payer.Hex(),
		"payee", evt.Payee.Hex(),
		"token", evt.Token.Hex(),
		"amount", evt.Amount.String(),
	)
}

// OnPaymentCompleted implements hook.OnPaymentCompleted.
func (e *Extension) OnPaymentCompleted(ctx context.Context, evt event.PaymentCompleted) error {
	return e.record(ctx, ActionPaymentCompleted, SeverityInfo, OutcomeSuccess,
		ResourcePayment, evt.PaymentID.String(), CategoryPayment, nil,
		"payer", evt.Payer.Hex(),
		"payee", evt.Payee.Hex(),
		"amount", evt.Amount.String(),
	)
}

// OnPaymentRefunded implements hook.OnPaymentRefunded.
func (e *Extension) OnPaymentRefunded(ctx context.Context, evt event.PaymentRefunded) error {
	return e.record(ctx, ActionPaymentRefunded, SeverityWarning, OutcomeSuccess,
		ResourcePayment, evt.PaymentID.String(), CategoryPayment, nil,
		"payer", evt.Payer.Hex(),
		"amount", evt.Amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Spending-limit hooks
// ──────────────────────────────────────────────────

// OnLimitSet implements hook.OnLimitSet.
func (e *Extension) OnLimitSet(ctx context.Context, evt event.LimitSet) error {
	return e.record(ctx, ActionLimitSet, SeverityInfo, OutcomeSuccess,
		ResourceLimits, evt.Account.Hex(), CategorySpending, nil,
		"daily", evt.Daily.String(),
		"weekly", evt.Weekly.String(),
		"monthly", evt.Monthly.String(),
	)
}

// OnSpendingRecorded implements hook.OnSpendingRecorded.
func (e *Extension) OnSpendingRecorded(ctx context.Context, evt event.SpendingRecorded) error {
	return e.record(ctx, ActionSpendingRecorded, SeverityInfo, OutcomeSuccess,
		ResourceLimits, evt.Account.Hex(), CategorySpending, nil,
		"amount", evt.Amount.String(),
		"daily_spent", evt.DailySpent.String(),
		"weekly_spent", evt.WeeklySpent.String(),
		"monthly_spent", evt.MonthlySpent.String(),
	)
}

// OnLimitExceeded implements hook.OnLimitExceeded.
func (e *Extension) OnLimitExceeded(ctx context.Context, account common.Address, tier string, attempted, limit types.Amount) error {
	return e.record(ctx, ActionLimitExceeded, SeverityWarning, OutcomeFailure,
		ResourceLimits, account.Hex(), CategorySpending, nil,
		"tier", tier,
		"attempted", attempted.String(),
		"limit", limit.String(),
	)
}

// ──────────────────────────────────────────────────
// Directory hooks
// ──────────────────────────────────────────────────

// OnServiceRegistered implements hook.OnServiceRegistered.
func (e *Extension) OnServiceRegistered(ctx context.Context, evt event.ServiceRegistered) error {
	return e.record(ctx, ActionServiceRegistered, SeverityInfo, OutcomeSuccess,
		ResourceService, evt.ServiceID.String(), CategoryDirectory, nil,
		"provider", evt.Provider.Hex(),
		"name", evt.Name,
	)
}

// OnServiceRequest implements hook.OnServiceRequest.
func (e *Extension) OnServiceRequest(ctx context.Context, evt event.ServiceRequestRecorded) error {
	return e.record(ctx, ActionServiceRequest, SeverityInfo, OutcomeSuccess,
		ResourceService, evt.ServiceID.String(), CategoryDirectory, nil,
		"amount", evt.Amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
