package escrow

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/directory"
	"github.com/xraph/escrow/event"
	"github.com/xraph/escrow/hook"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/limits"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/types"
)

// Engine is the transactional escrow ledger: it escrows value transfers
// until an off-chain condition is confirmed, enforces rolling spending
// limits per account, and keeps the service directory's revenue counters.
//
// All mutating operations are serialized through a single mutex, so every
// call observes a total order: two racing attempts to complete the same
// payment resolve to whichever is sequenced first, and the second observes
// the terminal state. Reads do not take the mutex.
type Engine struct {
	store     store.Store
	custodian Custodian
	hooks     *hook.Registry
	journal   *event.Log
	logger    *slog.Logger

	admin       common.Address
	now         func() time.Time
	skipMigrate bool

	// Serializes mutating operations.
	mu sync.Mutex

	// Async hook dispatch
	started   atomic.Bool
	hookQueue chan event.Event
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:     s,
		custodian: NewMemoryCustodian(),
		hooks:     hook.NewRegistry(),
		journal:   event.NewLog(),
		logger:    slog.Default(),
		now:       time.Now,
		hookQueue: make(chan event.Event, 1024),
		stopChan:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.hooks.WithLogger(logger)
	}
}

// WithHook registers a hook.
func WithHook(h hook.Hook) Option {
	return func(e *Engine) {
		_ = e.hooks.Register(h) //nolint:errcheck // best-effort hook registration during init
	}
}

// WithCustodian sets the value custodian. Defaults to an in-memory
// balance book.
func WithCustodian(c Custodian) Option {
	return func(e *Engine) {
		e.custodian = c
	}
}

// WithAdmin sets the administrator address, the only caller allowed to
// refund payments and verify directory services.
func WithAdmin(admin common.Address) Option {
	return func(e *Engine) {
		e.admin = admin
	}
}

// WithNow sets the clock. Tests use this to advance spending windows.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithHookBuffer sets the async hook dispatch queue size.
func WithHookBuffer(n int) Option {
	return func(e *Engine) {
		e.hookQueue = make(chan event.Event, n)
	}
}

// WithoutMigrate makes Start skip the store migration, for deployments
// that run migrations out of band.
func WithoutMigrate() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// Start migrates the store, initializes hooks, and begins the async hook
// dispatch worker. The engine is usable without Start; in that case hook
// dispatch runs inline.
func (e *Engine) Start(ctx context.Context) error {
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	e.hooks.EmitInit(ctx, e)

	e.wg.Add(1)
	go e.hookDispatchWorker(ctx)

	e.started.Store(true)
	e.logger.Info("escrow engine started",
		"hooks", e.hooks.Count(),
		"queue_size", cap(e.hookQueue),
	)

	return nil
}

// Stop drains the hook queue and shuts down the Engine.
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()
	e.started.Store(false)

	ctx := context.Background()
	e.hooks.EmitShutdown(ctx)

	return e.store.Close()
}

// Journal returns the in-memory journal of emitted events.
func (e *Engine) Journal() *event.Log {
	return e.journal
}

// Hooks returns the hook registry.
func (e *Engine) Hooks() *hook.Registry {
	return e.hooks
}

// hookDispatchWorker delivers journal entries to hooks off the calling
// goroutine so slow hooks never stall a transition.
func (e *Engine) hookDispatchWorker(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopChan:
			// Drain remaining entries before shutdown.
			for {
				select {
				case ev := <-e.hookQueue:
					e.hooks.Emit(ctx, ev)
				default:
					return
				}
			}
		case ev := <-e.hookQueue:
			e.hooks.Emit(ctx, ev)
		}
	}
}

// emit journals a payload and queues it for hook dispatch. When the queue
// is full or the worker is not running, dispatch happens inline.
func (e *Engine) emit(ctx context.Context, p event.Payload) {
	ev := event.New(e.now(), p)
	e.journal.Append(ev)

	if !e.started.Load() {
		e.hooks.Emit(ctx, ev)
		return
	}
	select {
	case e.hookQueue <- ev:
	default:
		e.hooks.Emit(ctx, ev)
	}
}

// ──────────────────────────────────────────────────
// Payments
// ──────────────────────────────────────────────────

// PayNative escrows amount of the native currency from payer to payee.
// requestHash binds the payment to the off-chain request it pays for.
// Returns the created payment with its deterministic id.
func (e *Engine) PayNative(ctx context.Context, payer, payee common.Address, requestHash common.Hash, amount types.Amount) (*payment.Payment, error) {
	return e.pay(ctx, payer, payee, payment.NativeToken, requestHash, amount)
}

// PayToken escrows amount of an ERC-20 style token from payer to payee.
// The payer must have granted the custodian an allowance beforehand.
func (e *Engine) PayToken(ctx context.Context, payer, payee, token common.Address, requestHash common.Hash, amount types.Amount) (*payment.Payment, error) {
	if token == payment.NativeToken {
		return nil, ValidationError{Field: "token", Message: "zero address; use PayNative for native payments"}
	}
	return e.pay(ctx, payer, payee, token, requestHash, amount)
}

func (e *Engine) pay(ctx context.Context, payer, payee, token common.Address, requestHash common.Hash, amount types.Amount) (*payment.Payment, error) {
	if amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if payee == (common.Address{}) {
		return nil, ErrZeroAddress
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.custodian.Pull(ctx, token, payer, amount); err != nil {
		return nil, err
	}

	seq, err := e.store.NextPaymentSequence(ctx, payer)
	if err != nil {
		return nil, err
	}

	p := &payment.Payment{
		Entity:      types.NewEntity(),
		ID:          id.ComputePaymentID(payer, payee, token, amount, requestHash, seq),
		Payer:       payer,
		Payee:       payee,
		Token:       token,
		Amount:      amount,
		RequestHash: requestHash,
		Sequence:    seq,
		Status:      payment.StatusOpen,
	}

	if err := e.store.CreatePayment(ctx, p); err != nil {
		// Return the funds; the payment never existed.
		if rerr := e.custodian.Release(ctx, token, payer, amount); rerr != nil {
			e.logger.Error("custody release after failed create",
				"payment_id", p.ID.String(),
				"error", rerr,
			)
		}
		return nil, err
	}

	e.logger.Debug("payment initiated",
		"payment_id", p.ID.String(),
		"payer", payer.Hex(),
		"payee", payee.Hex(),
		"amount", amount.String(),
	)

	e.emit(ctx, event.PaymentInitiated{
		PaymentID: p.ID,
		Payer:     payer,
		Payee:     payee,
		Amount:    amount,
		Token:     token,
	})
	return p, nil
}

// CompletePayment releases an open payment's escrowed funds to the payee.
// Only the payee may complete; completion is terminal and happens at most
// once.
func (e *Engine) CompletePayment(ctx context.Context, caller common.Address, pid id.PaymentID) (*payment.Payment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.store.GetPayment(ctx, pid)
	if err != nil {
		return nil, err
	}
	if caller != p.Payee {
		return nil, ErrNotPayee
	}
	switch p.Status {
	case payment.StatusCompleted:
		return nil, ErrAlreadyCompleted
	case payment.StatusRefunded:
		return nil, ErrAlreadyRefunded
	}

	if err := e.custodian.Release(ctx, p.Token, p.Payee, p.Amount); err != nil {
		return nil, err
	}

	done, err := e.store.CompletePayment(ctx, pid, e.now())
	if err != nil {
		// Reclaim the released funds; the payment is still open and a
		// retry would release them again.
		if perr := e.custodian.Pull(ctx, p.Token, p.Payee, p.Amount); perr != nil {
			e.logger.Error("custody reclaim after failed completion",
				"payment_id", pid.String(),
				"error", perr,
			)
		}
		return nil, err
	}
	p = done

	e.emit(ctx, event.PaymentCompleted{
		PaymentID: p.ID,
		Payer:     p.Payer,
		Payee:     p.Payee,
		Amount:    p.Amount,
	})
	return p, nil
}

// RefundPayment returns an open payment's escrowed funds to the payer.
// Administrator only; refund is terminal and mutually exclusive with
// completion.
func (e *Engine) RefundPayment(ctx context.Context, caller common.Address, pid id.PaymentID) (*payment.Payment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isAdmin(caller) {
		return nil, ErrNotAdmin
	}

	p, err := e.store.GetPayment(ctx, pid)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case payment.StatusCompleted:
		return nil, ErrAlreadyCompleted
	case payment.StatusRefunded:
		return nil, ErrAlreadyRefunded
	}

	if err := e.custodian.Release(ctx, p.Token, p.Payer, p.Amount); err != nil {
		return nil, err
	}

	done, err := e.store.RefundPayment(ctx, pid, e.now())
	if err != nil {
		// Reclaim the released funds; the payment is still open and a
		// retry would release them again.
		if perr := e.custodian.Pull(ctx, p.Token, p.Payer, p.Amount); perr != nil {
			e.logger.Error("custody reclaim after failed refund",
				"payment_id", pid.String(),
				"error", perr,
			)
		}
		return nil, err
	}
	p = done

	e.emit(ctx, event.PaymentRefunded{
		PaymentID: p.ID,
		Payer:     p.Payer,
		Amount:    p.Amount,
	})
	return p, nil
}

// GetPayment retrieves a payment by id.
func (e *Engine) GetPayment(ctx context.Context, pid id.PaymentID) (*payment.Payment, error) {
	return e.store.GetPayment(ctx, pid)
}

// IsPaymentCompleted reports whether a payment has been completed. Unknown
// ids report false; this is a read-only convenience, not an existence check.
func (e *Engine) IsPaymentCompleted(ctx context.Context, pid id.PaymentID) (bool, error) {
	p, err := e.store.GetPayment(ctx, pid)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return p.Status == payment.StatusCompleted, nil
}

// ListPayments lists payments matching the filter.
func (e *Engine) ListPayments(ctx context.Context, opts payment.ListOpts) ([]*payment.Payment, error) {
	return e.store.ListPayments(ctx, opts)
}

// TotalPaid returns the lifetime amount an address has paid into escrow.
// Refunds do not rewind it.
func (e *Engine) TotalPaid(ctx context.Context, addr common.Address) (types.Amount, error) {
	st, err := e.store.GetAccountStats(ctx, addr)
	if err != nil {
		return types.ZeroAmount(), err
	}
	return st.TotalPaid, nil
}

// TotalReceived returns the lifetime amount released to an address through
// completed payments.
func (e *Engine) TotalReceived(ctx context.Context, addr common.Address) (types.Amount, error) {
	st, err := e.store.GetAccountStats(ctx, addr)
	if err != nil {
		return types.ZeroAmount(), err
	}
	return st.TotalReceived, nil
}

// ──────────────────────────────────────────────────
// Spending Limits
// ──────────────────────────────────────────────────

// SetLimits writes the caller's own spending policy. Thresholds must
// satisfy daily <= weekly <= monthly. An existing policy keeps its current
// accumulators and window-start timestamps; a new one starts all windows
// at now. Either way the policy ends up active.
func (e *Engine) SetLimits(ctx context.Context, caller common.Address, daily, weekly, monthly types.Amount) error {
	if !limits.ValidHierarchy(daily, weekly, monthly) {
		return ErrHierarchyViolation
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.store.GetPolicy(ctx, caller)
	switch {
	case err == nil:
		p = p.Clone()
		p.SetThresholds(daily, weekly, monthly)
		p.Touch()
	case IsNotFound(err):
		p = limits.NewPolicy(caller, daily, weekly, monthly, e.now())
	default:
		return err
	}

	if err := e.store.UpsertPolicy(ctx, p); err != nil {
		return err
	}

	e.emit(ctx, event.LimitSet{
		Account: caller,
		Daily:   daily,
		Weekly:  weekly,
		Monthly: monthly,
	})
	return nil
}

// ApproveSpender adds a spender to the caller's approved-spender set.
func (e *Engine) ApproveSpender(ctx context.Context, caller, spender common.Address) error {
	if spender == (common.Address{}) {
		return ErrInvalidSpender
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.ApproveSpender(ctx, caller, spender); err != nil {
		return err
	}

	e.emit(ctx, event.SpenderApproved{Account: caller, Spender: spender})
	return nil
}

// RevokeSpender removes a spender from the caller's approved-spender set.
func (e *Engine) RevokeSpender(ctx context.Context, caller, spender common.Address) error {
	if spender == (common.Address{}) {
		return ErrInvalidSpender
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.RevokeSpender(ctx, caller, spender); err != nil {
		return err
	}

	e.emit(ctx, event.SpenderRevoked{Account: caller, Spender: spender})
	return nil
}

// ActivateLimits re-enables the caller's spending policy.
func (e *Engine) ActivateLimits(ctx context.Context, caller common.Address) error {
	return e.setLimitsActive(ctx, caller, true)
}

// DeactivateLimits suspends the caller's spending policy. Spending attempts
// fail until it is re-activated.
func (e *Engine) DeactivateLimits(ctx context.Context, caller common.Address) error {
	return e.setLimitsActive(ctx, caller, false)
}

func (e *Engine) setLimitsActive(ctx context.Context, caller common.Address, active bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.SetPolicyActive(ctx, caller, active); err != nil {
		return err
	}

	if active {
		e.emit(ctx, event.LimitActivated{Account: caller})
	} else {
		e.emit(ctx, event.LimitDeactivated{Account: caller})
	}
	return nil
}

// RecordSpending reports spending against an account's policy on behalf of
// that account. The caller must be in the account's approved-spender set.
//
// Expired windows are rolled over first, then the amount is checked against
// each tier in daily, weekly, monthly order; the first tier that would be
// exceeded rejects the call and no stored state changes, not even the
// window rollovers. On success the amount lands in all three accumulators
// atomically.
func (e *Engine) RecordSpending(ctx context.Context, caller, account common.Address, amount types.Amount) error {
	if amount.IsZero() {
		return ErrZeroAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	approved, err := e.store.IsApprovedSpender(ctx, account, caller)
	if err != nil {
		return err
	}
	if !approved {
		return ErrNotApprovedSpender
	}

	stored, err := e.store.GetPolicy(ctx, account)
	if err != nil {
		return err
	}
	if !stored.Active {
		return ErrLimitsNotActive
	}

	// Work on a clone so a rejection leaves stored state untouched.
	p := stored.Clone()
	p.ApplyResets(e.now())

	if tier, exceeded := p.Check(amount); exceeded {
		e.hooks.EmitLimitExceeded(ctx, account, tier.String(), amount, p.Windows[tier].Limit)
		switch tier {
		case limits.TierDaily:
			return ErrDailyLimitExceeded
		case limits.TierWeekly:
			return ErrWeeklyLimitExceeded
		default:
			return ErrMonthlyLimitExceeded
		}
	}

	p.Record(amount)
	p.Touch()
	if err := e.store.UpsertPolicy(ctx, p); err != nil {
		return err
	}

	e.emit(ctx, event.SpendingRecorded{
		Account:      account,
		Amount:       amount,
		DailySpent:   p.Windows[limits.TierDaily].Spent,
		WeeklySpent:  p.Windows[limits.TierWeekly].Spent,
		MonthlySpent: p.Windows[limits.TierMonthly].Spent,
	})
	return nil
}

// RemainingAllowance returns the per-tier headroom for an account as of
// now. Accounts with no policy, or an inactive one, report zero across all
// tiers. The read never mutates stored accumulators: elapsed window resets
// are computed on the fly.
func (e *Engine) RemainingAllowance(ctx context.Context, account common.Address) (limits.Allowance, error) {
	p, err := e.store.GetPolicy(ctx, account)
	if err != nil {
		if IsNotFound(err) {
			return limits.ZeroAllowance(), nil
		}
		return limits.ZeroAllowance(), err
	}
	if !p.Active {
		return limits.ZeroAllowance(), nil
	}
	return p.Remaining(e.now()), nil
}

// IsApprovedSpender reports whether spender is in account's approved set.
func (e *Engine) IsApprovedSpender(ctx context.Context, account, spender common.Address) (bool, error) {
	return e.store.IsApprovedSpender(ctx, account, spender)
}

// ApprovedSpenders lists account's approved spenders.
func (e *Engine) ApprovedSpenders(ctx context.Context, account common.Address) ([]common.Address, error) {
	return e.store.ListSpenders(ctx, account)
}

// ──────────────────────────────────────────────────
// Service Directory
// ──────────────────────────────────────────────────

// RegisterServiceInput carries the fields for a new directory service.
type RegisterServiceInput struct {
	Name           string
	Description    string
	Endpoint       string
	PaymentAddress common.Address
	BasePrice      types.Amount
	Token          common.Address
}

// RegisterService adds a provider's service to the directory.
func (e *Engine) RegisterService(ctx context.Context, provider common.Address, in RegisterServiceInput) (*directory.Service, error) {
	if in.Name == "" {
		return nil, ValidationError{Field: "name", Message: "required"}
	}
	if in.Endpoint == "" {
		return nil, ValidationError{Field: "endpoint", Message: "required"}
	}
	if in.PaymentAddress == (common.Address{}) {
		return nil, ValidationError{Field: "payment_address", Message: "zero address"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	svc := &directory.Service{
		Entity:         types.NewEntity(),
		ID:             id.NewServiceID(),
		Provider:       provider,
		Name:           in.Name,
		Description:    in.Description,
		Endpoint:       in.Endpoint,
		PaymentAddress: in.PaymentAddress,
		BasePrice:      in.BasePrice,
		Token:          in.Token,
		Active:         true,
		TotalRevenue:   types.ZeroAmount(),
	}

	if err := e.store.CreateService(ctx, svc); err != nil {
		return nil, err
	}

	e.emit(ctx, event.ServiceRegistered{
		ServiceID: svc.ID,
		Provider:  provider,
		Name:      svc.Name,
	})
	return svc, nil
}

// UpdateService lets the provider change a service's description, base
// price, and payment address.
func (e *Engine) UpdateService(ctx context.Context, caller common.Address, sid id.ServiceID, description string, basePrice types.Amount, paymentAddress common.Address) (*directory.Service, error) {
	if paymentAddress == (common.Address{}) {
		return nil, ValidationError{Field: "payment_address", Message: "zero address"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	svc, err := e.store.GetService(ctx, sid)
	if err != nil {
		return nil, err
	}
	if caller != svc.Provider {
		return nil, ErrNotProvider
	}

	svc.Description = description
	svc.BasePrice = basePrice
	svc.PaymentAddress = paymentAddress
	if err := e.store.UpdateService(ctx, svc); err != nil {
		return nil, err
	}

	e.emit(ctx, event.ServiceUpdated{ServiceID: sid})
	return svc, nil
}

// ActivateService re-lists a service. Provider only; an administrator can
// delist a service but not force it back on the market.
func (e *Engine) ActivateService(ctx context.Context, caller common.Address, sid id.ServiceID) error {
	return e.setServiceActive(ctx, caller, sid, true, false)
}

// DeactivateService delists a service. Provider or administrator.
func (e *Engine) DeactivateService(ctx context.Context, caller common.Address, sid id.ServiceID) error {
	return e.setServiceActive(ctx, caller, sid, false, true)
}

func (e *Engine) setServiceActive(ctx context.Context, caller common.Address, sid id.ServiceID, active, adminOK bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	svc, err := e.store.GetService(ctx, sid)
	if err != nil {
		return err
	}
	if caller != svc.Provider && !(adminOK && e.isAdmin(caller)) {
		return ErrNotProvider
	}

	svc.Active = active
	if err := e.store.UpdateService(ctx, svc); err != nil {
		return err
	}

	if active {
		e.emit(ctx, event.ServiceActivated{ServiceID: sid})
	} else {
		e.emit(ctx, event.ServiceDeactivated{ServiceID: sid})
	}
	return nil
}

// VerifyService marks a service as verified. Administrator only.
func (e *Engine) VerifyService(ctx context.Context, caller common.Address, sid id.ServiceID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isAdmin(caller) {
		return ErrNotAdmin
	}

	svc, err := e.store.GetService(ctx, sid)
	if err != nil {
		return err
	}

	svc.Verified = true
	if err := e.store.UpdateService(ctx, svc); err != nil {
		return err
	}

	e.emit(ctx, event.ServiceVerified{ServiceID: sid})
	return nil
}

// IsVerified reports whether a service carries the verified flag.
func (e *Engine) IsVerified(ctx context.Context, sid id.ServiceID) (bool, error) {
	svc, err := e.store.GetService(ctx, sid)
	if err != nil {
		return false, err
	}
	return svc.Verified, nil
}

// AddPricingTier adds a volume pricing option to an active service.
// Provider only.
func (e *Engine) AddPricingTier(ctx context.Context, caller common.Address, sid id.ServiceID, tier directory.PricingTier) error {
	if tier.Name == "" {
		return ValidationError{Field: "tier_name", Message: "required"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	svc, err := e.store.GetService(ctx, sid)
	if err != nil {
		return err
	}
	if caller != svc.Provider {
		return ErrNotProvider
	}
	if !svc.Active {
		return ErrServiceNotActive
	}

	svc.Tiers = append(svc.Tiers, tier)
	if err := e.store.UpdateService(ctx, svc); err != nil {
		return err
	}

	e.emit(ctx, event.PricingTierAdded{
		ServiceID: sid,
		TierName:  tier.Name,
		Price:     tier.Price,
	})
	return nil
}

// GetService retrieves a service by id.
func (e *Engine) GetService(ctx context.Context, sid id.ServiceID) (*directory.Service, error) {
	return e.store.GetService(ctx, sid)
}

// ServicePrice returns a service's base price. The escrow core uses this
// as its pricing lookup when paying for a service.
func (e *Engine) ServicePrice(ctx context.Context, sid id.ServiceID) (types.Amount, error) {
	svc, err := e.store.GetService(ctx, sid)
	if err != nil {
		return types.ZeroAmount(), err
	}
	return svc.BasePrice, nil
}

// ListServices lists directory services matching the filter.
func (e *Engine) ListServices(ctx context.Context, opts directory.ListOpts) ([]*directory.Service, error) {
	return e.store.ListServices(ctx, opts)
}

// ServicesByProvider lists every service registered by a provider.
func (e *Engine) ServicesByProvider(ctx context.Context, provider common.Address) ([]*directory.Service, error) {
	return e.store.ListServicesByProvider(ctx, provider)
}

// TotalServices returns the number of registered services, active or not.
func (e *Engine) TotalServices(ctx context.Context) (int, error) {
	svcs, err := e.store.ListServices(ctx, directory.ListOpts{})
	if err != nil {
		return 0, err
	}
	return len(svcs), nil
}

// RecordServiceRequest records a completed request against a service,
// incrementing its request counter and crediting its revenue. Fails for
// inactive services.
func (e *Engine) RecordServiceRequest(ctx context.Context, sid id.ServiceID, amount types.Amount) (*directory.Service, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	svc, err := e.store.RecordServiceRequest(ctx, sid, amount)
	if err != nil {
		return nil, err
	}

	e.emit(ctx, event.ServiceRequestRecorded{ServiceID: sid, Amount: amount})
	return svc, nil
}

// PayForService escrows a service's base price from the payer to the
// service's payment address and records the request against the service.
// The payment still requires the usual completion by the payee.
func (e *Engine) PayForService(ctx context.Context, payer common.Address, sid id.ServiceID, requestHash common.Hash) (*payment.Payment, error) {
	svc, err := e.store.GetService(ctx, sid)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, ErrServiceNotActive
	}

	p, err := e.pay(ctx, payer, svc.PaymentAddress, svc.Token, requestHash, svc.BasePrice)
	if err != nil {
		return nil, err
	}

	if _, err := e.RecordServiceRequest(ctx, sid, svc.BasePrice); err != nil {
		// The payment stands; the counter update is bookkeeping.
		e.logger.Warn("record service request failed",
			"service_id", sid.String(),
			"payment_id", p.ID.String(),
			"error", err,
		)
	}
	return p, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (e *Engine) isAdmin(addr common.Address) bool {
	return e.admin != (common.Address{}) && addr == e.admin
}
