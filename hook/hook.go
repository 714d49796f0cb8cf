// Package hook provides an extensible hook system for Escrow.
// Hooks subscribe to state transitions to extend functionality: audit
// trails, indexers, alerting on limit rejections.
package hook

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/event"
	"github.com/xraph/escrow/types"
)

// Hook is the base interface that all hooks must implement.
type Hook interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the hook is initialized.
type OnInit interface {
	Hook
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine is shutting down.
type OnShutdown interface {
	Hook
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentInitiated is called when a payment enters escrow.
type OnPaymentInitiated interface {
	Hook
	OnPaymentInitiated(ctx context.Context, e event.PaymentInitiated) error
}

// OnPaymentCompleted is called when escrowed funds are released to the payee.
type OnPaymentCompleted interface {
	Hook
	OnPaymentCompleted(ctx context.Context, e event.PaymentCompleted) error
}

// OnPaymentRefunded is called when escrowed funds are returned to the payer.
type OnPaymentRefunded interface {
	Hook
	OnPaymentRefunded(ctx context.Context, e event.PaymentRefunded) error
}

// ──────────────────────────────────────────────────
// Spending-limit hooks
// ──────────────────────────────────────────────────

// OnLimitSet is called when an account writes its spending policy.
type OnLimitSet interface {
	Hook
	OnLimitSet(ctx context.Context, e event.LimitSet) error
}

// OnSpendingRecorded is called after spending is admitted against a policy.
type OnSpendingRecorded interface {
	Hook
	OnSpendingRecorded(ctx context.Context, e event.SpendingRecorded) error
}

// OnLimitExceeded is called when a spending attempt is rejected by a tier.
// Rejections mutate no state, so this is the only signal they leave.
type OnLimitExceeded interface {
	Hook
	OnLimitExceeded(ctx context.Context, account common.Address, tier string, attempted, limit types.Amount) error
}

// ──────────────────────────────────────────────────
// Directory hooks
// ──────────────────────────────────────────────────

// OnServiceRegistered is called when a provider registers a service.
type OnServiceRegistered interface {
	Hook
	OnServiceRegistered(ctx context.Context, e event.ServiceRegistered) error
}

// OnServiceRequest is called when a completed request is recorded against
// a service.
type OnServiceRequest interface {
	Hook
	OnServiceRequest(ctx context.Context, e event.ServiceRequestRecorded) error
}

// ──────────────────────────────────────────────────
// Journal hooks
// ──────────────────────────────────────────────────

// OnEvent receives every journal entry the engine emits, regardless of
// variant. Audit trails and indexers implement this instead of the typed
// hooks above.
type OnEvent interface {
	Hook
	OnEvent(ctx context.Context, e event.Event) error
}
