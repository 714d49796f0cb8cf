package escrow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/event"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/store/memory"
	"github.com/xraph/escrow/types"
)

var (
	admin = common.HexToAddress("0xAd01000000000000000000000000000000000001")
	payer = common.HexToAddress("0x1111111111111111111111111111111111111111")
	payee = common.HexToAddress("0x2222222222222222222222222222222222222222")
	other = common.HexToAddress("0x3333333333333333333333333333333333333333")
	token = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func requestHash(s string) common.Hash {
	return crypto.Keccak256Hash([]byte(s))
}

// newEngine builds an engine over the memory store with a funded payer.
func newEngine(t *testing.T, opts ...escrow.Option) (*escrow.Engine, *escrow.MemoryCustodian) {
	t.Helper()

	custodian := escrow.NewMemoryCustodian()
	custodian.Mint(payment.NativeToken, payer, types.Ether(100))
	custodian.Mint(token, payer, types.Ether(100))

	all := append([]escrow.Option{
		escrow.WithAdmin(admin),
		escrow.WithCustodian(custodian),
	}, opts...)
	return escrow.New(memory.New(), all...), custodian
}

func TestPayNative(t *testing.T) {
	e, custodian := newEngine(t)
	ctx := context.Background()

	amount := types.Ether(1)
	p, err := e.PayNative(ctx, payer, payee, requestHash("test-request"), amount)
	if err != nil {
		t.Fatalf("PayNative failed: %v", err)
	}

	if p.Status != payment.StatusOpen {
		t.Errorf("expected open status, got %s", p.Status)
	}
	if p.ID.IsNil() {
		t.Error("expected a non-nil payment id")
	}
	if !p.IsNative() {
		t.Error("expected a native payment")
	}

	// Funds moved into custody.
	if got := custodian.Escrowed(payment.NativeToken); !got.Equal(amount) {
		t.Errorf("escrowed = %s, want %s", got, amount)
	}
	if got := custodian.BalanceOf(payment.NativeToken, payer); !got.Equal(types.Ether(99)) {
		t.Errorf("payer balance = %s, want 99 ether", got)
	}

	// Lifetime totals: paid credits at pay time, received only on completion.
	paid, err := e.TotalPaid(ctx, payer)
	if err != nil {
		t.Fatalf("TotalPaid failed: %v", err)
	}
	if !paid.Equal(amount) {
		t.Errorf("TotalPaid = %s, want %s", paid, amount)
	}
	received, err := e.TotalReceived(ctx, payee)
	if err != nil {
		t.Fatalf("TotalReceived failed: %v", err)
	}
	if !received.IsZero() {
		t.Errorf("TotalReceived = %s, want 0", received)
	}
}

func TestPayNativeValidation(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		payee   common.Address
		amount  types.Amount
		wantErr error
	}{
		{"zero amount", payee, types.ZeroAmount(), escrow.ErrZeroAmount},
		{"zero payee", common.Address{}, types.Ether(1), escrow.ErrZeroAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.PayNative(ctx, payer, tt.payee, requestHash("r"), tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPayNativeDeterministicID(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	// Identical tuples on consecutive calls still get distinct ids through
	// the payer's sequence counter.
	p1, err := e.PayNative(ctx, payer, payee, requestHash("same"), types.Ether(1))
	if err != nil {
		t.Fatalf("first PayNative failed: %v", err)
	}
	p2, err := e.PayNative(ctx, payer, payee, requestHash("same"), types.Ether(1))
	if err != nil {
		t.Fatalf("second PayNative failed: %v", err)
	}
	if p1.ID == p2.ID {
		t.Error("two payments with identical tuples must not share an id")
	}
	if p1.Sequence+1 != p2.Sequence {
		t.Errorf("sequence did not advance: %d then %d", p1.Sequence, p2.Sequence)
	}
}

func TestPayToken(t *testing.T) {
	e, custodian := newEngine(t)
	ctx := context.Background()

	amount := types.Ether(5)

	// Without an allowance the pull fails.
	_, err := e.PayToken(ctx, payer, payee, token, requestHash("r"), amount)
	if !errors.Is(err, escrow.ErrCustodyFailed) {
		t.Fatalf("expected custody failure without allowance, got %v", err)
	}

	custodian.Approve(token, payer, amount)
	p, err := e.PayToken(ctx, payer, payee, token, requestHash("r"), amount)
	if err != nil {
		t.Fatalf("PayToken failed: %v", err)
	}
	if p.IsNative() {
		t.Error("expected a token payment")
	}
	if got := custodian.Escrowed(token); !got.Equal(amount) {
		t.Errorf("escrowed = %s, want %s", got, amount)
	}
}

func TestPayTokenRejectsZeroToken(t *testing.T) {
	e, _ := newEngine(t)

	_, err := e.PayToken(context.Background(), payer, payee, common.Address{}, requestHash("r"), types.Ether(1))
	if !errors.Is(err, escrow.ErrInvalidInput) {
		t.Errorf("expected invalid input for zero token, got %v", err)
	}
}

func TestCompletePayment(t *testing.T) {
	e, custodian := newEngine(t)
	ctx := context.Background()

	amount := types.Ether(2)
	p, err := e.PayNative(ctx, payer, payee, requestHash("r"), amount)
	if err != nil {
		t.Fatalf("PayNative failed: %v", err)
	}

	done, err := e.CompletePayment(ctx, payee, p.ID)
	if err != nil {
		t.Fatalf("CompletePayment failed: %v", err)
	}
	if done.Status != payment.StatusCompleted {
		t.Errorf("expected completed status, got %s", done.Status)
	}
	if done.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}

	// Funds released to the payee.
	if got := custodian.BalanceOf(payment.NativeToken, payee); !got.Equal(amount) {
		t.Errorf("payee balance = %s, want %s", got, amount)
	}
	if got := custodian.Escrowed(payment.NativeToken); !got.IsZero() {
		t.Errorf("escrow should be empty, holds %s", got)
	}

	received, err := e.TotalReceived(ctx, payee)
	if err != nil {
		t.Fatalf("TotalReceived failed: %v", err)
	}
	if !received.Equal(amount) {
		t.Errorf("TotalReceived = %s, want %s", received, amount)
	}

	ok, err := e.IsPaymentCompleted(ctx, p.ID)
	if err != nil {
		t.Fatalf("IsPaymentCompleted failed: %v", err)
	}
	if !ok {
		t.Error("IsPaymentCompleted should report true")
	}
}

func TestCompletePaymentAuthorization(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	p, err := e.PayNative(ctx, payer, payee, requestHash("r"), types.Ether(1))
	if err != nil {
		t.Fatalf("PayNative failed: %v", err)
	}

	// Neither the payer nor a stranger nor the admin may complete.
	for _, caller := range []common.Address{payer, other, admin} {
		if _, err := e.CompletePayment(ctx, caller, p.ID); !errors.Is(err, escrow.ErrNotPayee) {
			t.Errorf("caller %s: expected ErrNotPayee, got %v", caller.Hex(), err)
		}
	}
}

func TestCompletePaymentTwice(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	p, err := e.PayNative(ctx, payer, payee, requestHash("r"), types.Ether(1))
	if err != nil {
		t.Fatalf("PayNative failed: %v", err)
	}
	if _, err := e.CompletePayment(ctx, payee, p.ID); err != nil {
		t.Fatalf("first completion failed: %v", err)
	}

	_, err = e.CompletePayment(ctx, payee, p.ID)
	if !errors.Is(err, escrow.ErrAlreadyCompleted) {
		t.Errorf("expected ErrAlreadyCompleted, got %v", err)
	}
	if !escrow.IsStateConflict(err) {
		t.Error("double completion should classify as a state conflict")
	}
}

func TestRefundPayment(t *testing.T) {
	e, custodian := newEngine(t)
	ctx := context.Background()

	amount := types.Ether(1)
	p, err := e.PayNative(ctx, payer, payee, requestHash("r"), amount)
	if err != nil {
		t.Fatalf("PayNative failed: %v", err)
	}

	refunded, err := e.RefundPayment(ctx, admin, p.ID)
	if err != nil {
		t.Fatalf("RefundPayment failed: %v", err)
	}
	if refunded.Status != payment.StatusRefunded {
		t.Errorf("expected refunded status, got %s", refunded.Status)
	}
	if refunded.RefundedAt == nil {
		t.Error("expected RefundedAt to be set")
	}

	// Payer made whole.
	if got := custodian.BalanceOf(payment.NativeToken, payer); !got.Equal(types.Ether(100)) {
		t.Errorf("payer balance = %s, want 100 ether", got)
	}
}

func TestRefundPaymentAuthorization(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	p, err := e.PayNative(ctx, payer, payee, requestHash("r"), types.Ether(1))
	if err != nil {
		t.Fatalf("PayNative failed: %v", err)
	}

	for _, caller := range []common.Address{payer, payee, other} {
		if _, err := e.RefundPayment(ctx, caller, p.ID); !errors.Is(err, escrow.ErrNotAdmin) {
			t.Errorf("caller %s: expected ErrNotAdmin, got %v", caller.Hex(), err)
		}
	}
}

func TestRefundAfterCompletionRejected(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	p, err := e.PayNative(ctx, payer, payee, requestHash("r"), types.Ether(1))
	if err != nil {
		t.Fatalf("PayNative failed: %v", err)
	}
	if _, err := e.CompletePayment(ctx, payee, p.ID); err != nil {
		t.Fatalf("completion failed: %v", err)
	}

	_, err = e.RefundPayment(ctx, admin, p.ID)
	if !errors.Is(err, escrow.ErrAlreadyCompleted) {
		t.Errorf("expected ErrAlreadyCompleted, got %v", err)
	}
}

func TestCompletionAfterRefundRejected(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	p, err := e.PayNative(ctx, payer, payee, requestHash("r"), types.Ether(1))
	if err != nil {
		t.Fatalf("PayNative failed: %v", err)
	}
	if _, err := e.RefundPayment(ctx, admin, p.ID); err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	_, err = e.CompletePayment(ctx, payee, p.ID)
	if !errors.Is(err, escrow.ErrAlreadyRefunded) {
		t.Errorf("expected ErrAlreadyRefunded, got %v", err)
	}
}

var errStoreDown = errors.New("store unavailable")

// faultyStore fails terminal transitions on demand so tests can exercise
// the custody compensation paths.
type faultyStore struct {
	store.Store
	failTransitions bool
	failMigrate     bool
}

func (s *faultyStore) Migrate(ctx context.Context) error {
	if s.failMigrate {
		return errStoreDown
	}
	return s.Store.Migrate(ctx)
}

func (s *faultyStore) CompletePayment(ctx context.Context, pid escrow.PaymentID, at time.Time) (*payment.Payment, error) {
	if s.failTransitions {
		return nil, errStoreDown
	}
	return s.Store.CompletePayment(ctx, pid, at)
}

func (s *faultyStore) RefundPayment(ctx context.Context, pid escrow.PaymentID, at time.Time) (*payment.Payment, error) {
	if s.failTransitions {
		return nil, errStoreDown
	}
	return s.Store.RefundPayment(ctx, pid, at)
}

// newFaultyEngine builds an engine whose store can be told to fail
// completion and refund transitions.
func newFaultyEngine(t *testing.T) (*escrow.Engine, *faultyStore, *escrow.MemoryCustodian) {
	t.Helper()

	fs := &faultyStore{Store: memory.New()}
	custodian := escrow.NewMemoryCustodian()
	custodian.Mint(payment.NativeToken, payer, types.Ether(10))

	e := escrow.New(fs,
		escrow.WithAdmin(admin),
		escrow.WithCustodian(custodian),
	)
	return e, fs, custodian
}

func TestCompletePaymentStoreFailureKeepsCustody(t *testing.T) {
	e, fs, custodian := newFaultyEngine(t)
	ctx := context.Background()

	amount := types.Ether(1)
	p, err := e.PayNative(ctx, payer, payee, requestHash("r"), amount)
	if err != nil {
		t.Fatalf("PayNative failed: %v", err)
	}

	fs.failTransitions = true
	if _, err := e.CompletePayment(ctx, payee, p.ID); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected the store error, got %v", err)
	}

	// The failed completion must leave everything as it was: funds in
	// custody, payee uncredited, payment still open.
	if got := custodian.Escrowed(payment.NativeToken); !got.Equal(amount) {
		t.Errorf("escrowed after failed completion = %s, want %s", got, amount)
	}
	if got := custodian.BalanceOf(payment.NativeToken, payee); !got.IsZero() {
		t.Errorf("payee credited %s despite failed completion", got)
	}
	got, err := e.GetPayment(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPayment failed: %v", err)
	}
	if got.Status != payment.StatusOpen {
		t.Errorf("status after failed completion = %s, want open", got.Status)
	}

	// A retry once the store recovers releases exactly once.
	fs.failTransitions = false
	if _, err := e.CompletePayment(ctx, payee, p.ID); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if got := custodian.BalanceOf(payment.NativeToken, payee); !got.Equal(amount) {
		t.Errorf("payee balance after retry = %s, want %s", got, amount)
	}
	if got := custodian.Escrowed(payment.NativeToken); !got.IsZero() {
		t.Errorf("escrowed after retry = %s, want 0", got)
	}
}

func TestRefundPaymentStoreFailureKeepsCustody(t *testing.T) {
	e, fs, custodian := newFaultyEngine(t)
	ctx := context.Background()

	amount := types.Ether(1)
	p, err := e.PayNative(ctx, payer, payee, requestHash("r"), amount)
	if err != nil {
		t.Fatalf("PayNative failed: %v", err)
	}

	fs.failTransitions = true
	if _, err := e.RefundPayment(ctx, admin, p.ID); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected the store error, got %v", err)
	}

	if got := custodian.Escrowed(payment.NativeToken); !got.Equal(amount) {
		t.Errorf("escrowed after failed refund = %s, want %s", got, amount)
	}
	if got := custodian.BalanceOf(payment.NativeToken, payer); !got.Equal(types.Ether(9)) {
		t.Errorf("payer balance after failed refund = %s, want 9 ether", got)
	}

	fs.failTransitions = false
	if _, err := e.RefundPayment(ctx, admin, p.ID); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if got := custodian.BalanceOf(payment.NativeToken, payer); !got.Equal(types.Ether(10)) {
		t.Errorf("payer balance after retry = %s, want 10 ether", got)
	}
	if got := custodian.Escrowed(payment.NativeToken); !got.IsZero() {
		t.Errorf("escrowed after retry = %s, want 0", got)
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	e, _ := newEngine(t)

	_, err := e.GetPayment(context.Background(), escrow.PaymentID{})
	if !errors.Is(err, escrow.ErrPaymentNotFound) {
		t.Errorf("expected ErrPaymentNotFound, got %v", err)
	}
	if !escrow.IsNotFound(err) {
		t.Error("payment not found should classify as not-found")
	}

	// The completion check is a convenience read, not an existence check:
	// unknown ids report plain false.
	ok, err := e.IsPaymentCompleted(context.Background(), escrow.PaymentID{})
	if err != nil {
		t.Fatalf("IsPaymentCompleted(unknown) = %v, want nil error", err)
	}
	if ok {
		t.Error("IsPaymentCompleted(unknown) = true, want false")
	}
}

func TestTotalsStartAtZero(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	paid, err := e.TotalPaid(ctx, other)
	if err != nil {
		t.Fatalf("TotalPaid failed: %v", err)
	}
	if !paid.IsZero() {
		t.Errorf("fresh account TotalPaid = %s, want 0", paid)
	}
	received, err := e.TotalReceived(ctx, other)
	if err != nil {
		t.Fatalf("TotalReceived failed: %v", err)
	}
	if !received.IsZero() {
		t.Errorf("fresh account TotalReceived = %s, want 0", received)
	}
}

func TestListPaymentsByPayer(t *testing.T) {
	e, custodian := newEngine(t)
	ctx := context.Background()
	custodian.Mint(payment.NativeToken, other, types.Ether(10))

	if _, err := e.PayNative(ctx, payer, payee, requestHash("a"), types.Ether(1)); err != nil {
		t.Fatalf("PayNative failed: %v", err)
	}
	if _, err := e.PayNative(ctx, other, payee, requestHash("b"), types.Ether(1)); err != nil {
		t.Fatalf("PayNative failed: %v", err)
	}

	got, err := e.ListPayments(ctx, payment.ListOpts{Payer: &payer})
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 payment for payer, got %d", len(got))
	}
	if got[0].Payer != payer {
		t.Errorf("wrong payer: %s", got[0].Payer.Hex())
	}
}

func TestPaymentJournal(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	p, err := e.PayNative(ctx, payer, payee, requestHash("r"), types.Ether(1))
	if err != nil {
		t.Fatalf("PayNative failed: %v", err)
	}
	if _, err := e.CompletePayment(ctx, payee, p.ID); err != nil {
		t.Fatalf("CompletePayment failed: %v", err)
	}

	initiated := e.Journal().OfKind(event.KindPaymentInitiated)
	if len(initiated) != 1 {
		t.Fatalf("expected 1 initiated event, got %d", len(initiated))
	}
	pi, ok := initiated[0].Payload.(event.PaymentInitiated)
	if !ok {
		t.Fatalf("unexpected payload type %T", initiated[0].Payload)
	}
	if pi.PaymentID != p.ID || pi.Payer != payer || pi.Payee != payee {
		t.Error("initiated event carries wrong fields")
	}

	completed := e.Journal().OfKind(event.KindPaymentCompleted)
	if len(completed) != 1 {
		t.Fatalf("expected 1 completed event, got %d", len(completed))
	}
}

// captureHook records payment events for assertions.
type captureHook struct {
	initiated []event.PaymentInitiated
	completed []event.PaymentCompleted
}

func (c *captureHook) Name() string { return "capture" }

func (c *captureHook) OnPaymentInitiated(_ context.Context, e event.PaymentInitiated) error {
	c.initiated = append(c.initiated, e)
	return nil
}

func (c *captureHook) OnPaymentCompleted(_ context.Context, e event.PaymentCompleted) error {
	c.completed = append(c.completed, e)
	return nil
}

func TestHooksReceivePaymentEvents(t *testing.T) {
	capture := &captureHook{}
	e, _ := newEngine(t, escrow.WithHook(capture))
	ctx := context.Background()

	// Without Start the engine dispatches hooks inline, so no
	// synchronization is needed here.
	p, err := e.PayNative(ctx, payer, payee, requestHash("r"), types.Ether(1))
	if err != nil {
		t.Fatalf("PayNative failed: %v", err)
	}
	if _, err := e.CompletePayment(ctx, payee, p.ID); err != nil {
		t.Fatalf("CompletePayment failed: %v", err)
	}

	if len(capture.initiated) != 1 {
		t.Errorf("expected 1 initiated dispatch, got %d", len(capture.initiated))
	}
	if len(capture.completed) != 1 {
		t.Errorf("expected 1 completed dispatch, got %d", len(capture.completed))
	}
}

func TestStartStop(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := e.PayNative(ctx, payer, payee, requestHash("r"), types.Ether(1)); err != nil {
		t.Fatalf("PayNative failed: %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if e.Journal().Len() != 1 {
		t.Errorf("expected 1 journal entry, got %d", e.Journal().Len())
	}
}

func TestStartWithoutMigrate(t *testing.T) {
	fs := &faultyStore{Store: memory.New(), failMigrate: true}
	ctx := context.Background()

	e := escrow.New(fs, escrow.WithAdmin(admin))
	if err := e.Start(ctx); !errors.Is(err, errStoreDown) {
		t.Fatalf("Start should surface the migration error, got %v", err)
	}

	// With migration skipped, Start still brings up the hook worker.
	e = escrow.New(fs, escrow.WithAdmin(admin), escrow.WithoutMigrate())
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start with WithoutMigrate failed: %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
