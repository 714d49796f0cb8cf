package hook

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/event"
	"github.com/xraph/escrow/types"
)

// Registry manages all registered hooks and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu     sync.RWMutex
	hooks  []Hook
	logger *slog.Logger

	// Type-cached hook lists for efficient dispatch
	onInit              []OnInit
	onShutdown          []OnShutdown
	onPaymentInitiated  []OnPaymentInitiated
	onPaymentCompleted  []OnPaymentCompleted
	onPaymentRefunded   []OnPaymentRefunded
	onLimitSet          []OnLimitSet
	onSpendingRecorded  []OnSpendingRecorded
	onLimitExceeded     []OnLimitExceeded
	onServiceRegistered []OnServiceRegistered
	onServiceRequest    []OnServiceRequest
	onEvent             []OnEvent
}

// NewRegistry creates a new hook registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a hook to the registry and caches its interfaces.
func (r *Registry) Register(h Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.hooks {
		if existing.Name() == h.Name() {
			return fmt.Errorf("hook: duplicate registration: %s", h.Name())
		}
	}

	r.hooks = append(r.hooks, h)

	// Type-switch to cache interfaces
	if v, ok := h.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := h.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := h.(OnPaymentInitiated); ok {
		r.onPaymentInitiated = append(r.onPaymentInitiated, v)
	}
	if v, ok := h.(OnPaymentCompleted); ok {
		r.onPaymentCompleted = append(r.onPaymentCompleted, v)
	}
	if v, ok := h.(OnPaymentRefunded); ok {
		r.onPaymentRefunded = append(r.onPaymentRefunded, v)
	}
	if v, ok := h.(OnLimitSet); ok {
		r.onLimitSet = append(r.onLimitSet, v)
	}
	if v, ok := h.(OnSpendingRecorded); ok {
		r.onSpendingRecorded = append(r.onSpendingRecorded, v)
	}
	if v, ok := h.(OnLimitExceeded); ok {
		r.onLimitExceeded = append(r.onLimitExceeded, v)
	}
	if v, ok := h.(OnServiceRegistered); ok {
		r.onServiceRegistered = append(r.onServiceRegistered, v)
	}
	if v, ok := h.(OnServiceRequest); ok {
		r.onServiceRequest = append(r.onServiceRequest, v)
	}
	if v, ok := h.(OnEvent); ok {
		r.onEvent = append(r.onEvent, v)
	}

	r.logger.Info("hook registered",
		"name", h.Name(),
		"interfaces", r.getImplementedInterfaces(h),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the hook.
func (r *Registry) getImplementedInterfaces(h Hook) []string {
	var interfaces []string
	v := reflect.TypeOf(h)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnPaymentInitiated)(nil)).Elem(), "OnPaymentInitiated")
	checkInterface(reflect.TypeOf((*OnPaymentCompleted)(nil)).Elem(), "OnPaymentCompleted")
	checkInterface(reflect.TypeOf((*OnPaymentRefunded)(nil)).Elem(), "OnPaymentRefunded")
	checkInterface(reflect.TypeOf((*OnLimitSet)(nil)).Elem(), "OnLimitSet")
	checkInterface(reflect.TypeOf((*OnSpendingRecorded)(nil)).Elem(), "OnSpendingRecorded")
	checkInterface(reflect.TypeOf((*OnLimitExceeded)(nil)).Elem(), "OnLimitExceeded")
	checkInterface(reflect.TypeOf((*OnServiceRegistered)(nil)).Elem(), "OnServiceRegistered")
	checkInterface(reflect.TypeOf((*OnServiceRequest)(nil)).Elem(), "OnServiceRequest")
	checkInterface(reflect.TypeOf((*OnEvent)(nil)).Elem(), "OnEvent")

	return interfaces
}

// Get returns a hook by name.
func (r *Registry) Get(name string) Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.hooks {
		if h.Name() == name {
			return h
		}
	}
	return nil
}

// List returns all registered hooks.
func (r *Registry) List() []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Hook, len(r.hooks))
	copy(result, r.hooks)
	return result
}

// Count returns the number of registered hooks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all hooks that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	hooks := r.onInit
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("hook OnInit failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all hooks that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	hooks := r.onShutdown
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("hook OnShutdown failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitLimitExceeded emits a limit rejection signal.
func (r *Registry) EmitLimitExceeded(ctx context.Context, account common.Address, tier string, attempted, limit types.Amount) {
	r.mu.RLock()
	hooks := r.onLimitExceeded
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnLimitExceeded(ctx, account, tier, attempted, limit)
		}); err != nil {
			r.logger.Warn("hook OnLimitExceeded failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// Emit dispatches a journal entry to every typed hook matching its variant
// and to every OnEvent hook.
func (r *Registry) Emit(ctx context.Context, e event.Event) {
	r.mu.RLock()
	onEvent := r.onEvent
	r.mu.RUnlock()

	switch p := e.Payload.(type) {
	case event.PaymentInitiated:
		r.emitPaymentInitiated(ctx, p)
	case event.PaymentCompleted:
		r.emitPaymentCompleted(ctx, p)
	case event.PaymentRefunded:
		r.emitPaymentRefunded(ctx, p)
	case event.LimitSet:
		r.emitLimitSet(ctx, p)
	case event.SpendingRecorded:
		r.emitSpendingRecorded(ctx, p)
	case event.ServiceRegistered:
		r.emitServiceRegistered(ctx, p)
	case event.ServiceRequestRecorded:
		r.emitServiceRequest(ctx, p)
	}

	for _, h := range onEvent {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnEvent(ctx, e)
		}); err != nil {
			r.logger.Warn("hook OnEvent failed",
				"hook", h.Name(),
				"kind", string(e.Kind()),
				"error", err,
			)
		}
	}
}

func (r *Registry) emitPaymentInitiated(ctx context.Context, e event.PaymentInitiated) {
	r.mu.RLock()
	hooks := r.onPaymentInitiated
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnPaymentInitiated(ctx, e)
		}); err != nil {
			r.logger.Warn("hook OnPaymentInitiated failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

func (r *Registry) emitPaymentCompleted(ctx context.Context, e event.PaymentCompleted) {
	r.mu.RLock()
	hooks := r.onPaymentCompleted
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnPaymentCompleted(ctx, e)
		}); err != nil {
			r.logger.Warn("hook OnPaymentCompleted failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

func (r *Registry) emitPaymentRefunded(ctx context.Context, e event.PaymentRefunded) {
	r.mu.RLock()
	hooks := r.onPaymentRefunded
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnPaymentRefunded(ctx, e)
		}); err != nil {
			r.logger.Warn("hook OnPaymentRefunded failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

func (r *Registry) emitLimitSet(ctx context.Context, e event.LimitSet) {
	r.mu.RLock()
	hooks := r.onLimitSet
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnLimitSet(ctx, e)
		}); err != nil {
			r.logger.Warn("hook OnLimitSet failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

func (r *Registry) emitSpendingRecorded(ctx context.Context, e event.SpendingRecorded) {
	r.mu.RLock()
	hooks := r.onSpendingRecorded
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnSpendingRecorded(ctx, e)
		}); err != nil {
			r.logger.Warn("hook OnSpendingRecorded failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

func (r *Registry) emitServiceRegistered(ctx context.Context, e event.ServiceRegistered) {
	r.mu.RLock()
	hooks := r.onServiceRegistered
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnServiceRegistered(ctx, e)
		}); err != nil {
			r.logger.Warn("hook OnServiceRegistered failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

func (r *Registry) emitServiceRequest(ctx context.Context, e event.ServiceRequestRecorded) {
	r.mu.RLock()
	hooks := r.onServiceRequest
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnServiceRequest(ctx, e)
		}); err != nil {
			r.logger.Warn("hook OnServiceRequest failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a hook function with a timeout.
// Hooks should never block the transaction pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, hookName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("hook timeout: %s", hookName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
