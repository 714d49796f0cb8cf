package escrow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/directory"
	"github.com/xraph/escrow/event"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/types"
)

var provider = common.HexToAddress("0x8888888888888888888888888888888888888888")

func registerTestService(t *testing.T, e *escrow.Engine) *directory.Service {
	t.Helper()
	svc, err := e.RegisterService(context.Background(), provider, escrow.RegisterServiceInput{
		Name:           "weather-api",
		Description:    "hourly forecasts",
		Endpoint:       "https://api.example.com/weather",
		PaymentAddress: payee,
		BasePrice:      types.Ether(1),
		Token:          payment.NativeToken,
	})
	if err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}
	return svc
}

func TestRegisterService(t *testing.T) {
	e, _ := newEngine(t)
	svc := registerTestService(t, e)

	if !svc.Active {
		t.Error("new services should start active")
	}
	if svc.Verified {
		t.Error("new services must not start verified")
	}
	if svc.Provider != provider {
		t.Errorf("provider = %s, want %s", svc.Provider, provider)
	}
	if svc.TotalRequests != 0 || !svc.TotalRevenue.IsZero() {
		t.Error("new services must start with zero usage")
	}

	got, err := e.GetService(context.Background(), svc.ID)
	if err != nil {
		t.Fatalf("GetService failed: %v", err)
	}
	if got.Name != "weather-api" {
		t.Errorf("name = %q, want weather-api", got.Name)
	}
}

func TestRegisterServiceValidation(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   escrow.RegisterServiceInput
	}{
		{"missing name", escrow.RegisterServiceInput{Endpoint: "https://x", PaymentAddress: payee}},
		{"missing endpoint", escrow.RegisterServiceInput{Name: "x", PaymentAddress: payee}},
		{"zero payment address", escrow.RegisterServiceInput{Name: "x", Endpoint: "https://x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.RegisterService(ctx, provider, tt.in)
			if !errors.Is(err, escrow.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestUpdateService(t *testing.T) {
	e, _ := newEngine(t)
	svc := registerTestService(t, e)
	ctx := context.Background()

	updated, err := e.UpdateService(ctx, provider, svc.ID, "daily forecasts", types.Ether(2), other)
	if err != nil {
		t.Fatalf("UpdateService failed: %v", err)
	}
	if updated.Description != "daily forecasts" {
		t.Errorf("description = %q", updated.Description)
	}
	if !updated.BasePrice.Equal(types.Ether(2)) {
		t.Errorf("base price = %s, want 2 ether", updated.BasePrice)
	}
	if updated.PaymentAddress != other {
		t.Errorf("payment address = %s, want %s", updated.PaymentAddress, other)
	}
}

func TestUpdateServiceAuthorization(t *testing.T) {
	e, _ := newEngine(t)
	svc := registerTestService(t, e)
	ctx := context.Background()

	// Only the provider may update, the administrator included.
	for _, caller := range []common.Address{other, admin} {
		_, err := e.UpdateService(ctx, caller, svc.ID, "hijacked", types.Ether(99), other)
		if !errors.Is(err, escrow.ErrNotProvider) {
			t.Errorf("caller %s: expected ErrNotProvider, got %v", caller, err)
		}
	}
}

func TestServiceActivation(t *testing.T) {
	e, _ := newEngine(t)
	svc := registerTestService(t, e)
	ctx := context.Background()

	// The administrator may delist any service.
	if err := e.DeactivateService(ctx, admin, svc.ID); err != nil {
		t.Fatalf("DeactivateService failed: %v", err)
	}
	got, err := e.GetService(ctx, svc.ID)
	if err != nil {
		t.Fatalf("GetService failed: %v", err)
	}
	if got.Active {
		t.Error("service should be inactive")
	}

	// Only the provider may re-list it; neither a stranger nor the
	// administrator can force a service back on the market.
	if err := e.ActivateService(ctx, other, svc.ID); !errors.Is(err, escrow.ErrNotProvider) {
		t.Errorf("expected ErrNotProvider for stranger, got %v", err)
	}
	if err := e.ActivateService(ctx, admin, svc.ID); !errors.Is(err, escrow.ErrNotProvider) {
		t.Errorf("expected ErrNotProvider for administrator, got %v", err)
	}
	if err := e.ActivateService(ctx, provider, svc.ID); err != nil {
		t.Fatalf("provider activation failed: %v", err)
	}
	got, err = e.GetService(ctx, svc.ID)
	if err != nil {
		t.Fatalf("GetService failed: %v", err)
	}
	if !got.Active {
		t.Error("service should be active again")
	}

	// Provider delist still works.
	if err := e.DeactivateService(ctx, provider, svc.ID); err != nil {
		t.Fatalf("provider DeactivateService failed: %v", err)
	}
}

func TestVerifyService(t *testing.T) {
	e, _ := newEngine(t)
	svc := registerTestService(t, e)
	ctx := context.Background()

	// Not even the provider may self-verify.
	for _, caller := range []common.Address{provider, other} {
		if err := e.VerifyService(ctx, caller, svc.ID); !errors.Is(err, escrow.ErrNotAdmin) {
			t.Errorf("caller %s: expected ErrNotAdmin, got %v", caller, err)
		}
	}

	if err := e.VerifyService(ctx, admin, svc.ID); err != nil {
		t.Fatalf("VerifyService failed: %v", err)
	}
	verified, err := e.IsVerified(ctx, svc.ID)
	if err != nil {
		t.Fatalf("IsVerified failed: %v", err)
	}
	if !verified {
		t.Error("service should be verified")
	}
}

func TestVerifyServiceNotFound(t *testing.T) {
	e, _ := newEngine(t)

	err := e.VerifyService(context.Background(), admin, id.NewServiceID())
	if !errors.Is(err, escrow.ErrServiceNotFound) {
		t.Errorf("expected ErrServiceNotFound, got %v", err)
	}
	if !escrow.IsNotFound(err) {
		t.Error("missing service should classify as not found")
	}
}

func TestAddPricingTier(t *testing.T) {
	e, _ := newEngine(t)
	svc := registerTestService(t, e)
	ctx := context.Background()

	tiers := []directory.PricingTier{
		{Name: "starter", Price: types.Ether(5), RequestLimit: 10, Validity: 24 * 3600},
		{Name: "bulk", Price: types.Ether(40), RequestLimit: 100, Validity: 30 * 24 * 3600},
	}
	for _, tier := range tiers {
		if err := e.AddPricingTier(ctx, provider, svc.ID, tier); err != nil {
			t.Fatalf("AddPricingTier(%s) failed: %v", tier.Name, err)
		}
	}

	got, err := e.GetService(ctx, svc.ID)
	if err != nil {
		t.Fatalf("GetService failed: %v", err)
	}
	if len(got.Tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d", len(got.Tiers))
	}
	// Tiers keep insertion order.
	if got.Tiers[0].Name != "starter" || got.Tiers[1].Name != "bulk" {
		t.Errorf("tier order = [%s %s]", got.Tiers[0].Name, got.Tiers[1].Name)
	}
}

func TestAddPricingTierAuthorization(t *testing.T) {
	e, _ := newEngine(t)
	svc := registerTestService(t, e)
	ctx := context.Background()

	tier := directory.PricingTier{Name: "starter", Price: types.Ether(5), RequestLimit: 10, Validity: 3600}
	if err := e.AddPricingTier(ctx, other, svc.ID, tier); !errors.Is(err, escrow.ErrNotProvider) {
		t.Errorf("expected ErrNotProvider, got %v", err)
	}

	if err := e.DeactivateService(ctx, provider, svc.ID); err != nil {
		t.Fatalf("DeactivateService failed: %v", err)
	}
	if err := e.AddPricingTier(ctx, provider, svc.ID, tier); !errors.Is(err, escrow.ErrServiceNotActive) {
		t.Errorf("expected ErrServiceNotActive, got %v", err)
	}
}

func TestRecordServiceRequest(t *testing.T) {
	e, _ := newEngine(t)
	svc := registerTestService(t, e)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := e.RecordServiceRequest(ctx, svc.ID, types.Ether(1)); err != nil {
			t.Fatalf("RecordServiceRequest failed: %v", err)
		}
	}

	got, err := e.GetService(ctx, svc.ID)
	if err != nil {
		t.Fatalf("GetService failed: %v", err)
	}
	if got.TotalRequests != 3 {
		t.Errorf("total requests = %d, want 3", got.TotalRequests)
	}
	if !got.TotalRevenue.Equal(types.Ether(3)) {
		t.Errorf("total revenue = %s, want 3 ether", got.TotalRevenue)
	}
}

func TestRecordServiceRequestInactive(t *testing.T) {
	e, _ := newEngine(t)
	svc := registerTestService(t, e)
	ctx := context.Background()

	if err := e.DeactivateService(ctx, provider, svc.ID); err != nil {
		t.Fatalf("DeactivateService failed: %v", err)
	}
	_, err := e.RecordServiceRequest(ctx, svc.ID, types.Ether(1))
	if !errors.Is(err, escrow.ErrServiceNotActive) {
		t.Errorf("expected ErrServiceNotActive, got %v", err)
	}
}

func TestListServices(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	first := registerTestService(t, e)
	second, err := e.RegisterService(ctx, other, escrow.RegisterServiceInput{
		Name:           "translate-api",
		Endpoint:       "https://api.example.com/translate",
		PaymentAddress: other,
		BasePrice:      types.Ether(2),
	})
	if err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}

	if err := e.VerifyService(ctx, admin, second.ID); err != nil {
		t.Fatalf("VerifyService failed: %v", err)
	}
	if err := e.DeactivateService(ctx, provider, first.ID); err != nil {
		t.Fatalf("DeactivateService failed: %v", err)
	}

	all, err := e.ListServices(ctx, directory.ListOpts{})
	if err != nil {
		t.Fatalf("ListServices failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("unfiltered list = %d services, want 2", len(all))
	}

	active, err := e.ListServices(ctx, directory.ListOpts{ActiveOnly: true})
	if err != nil {
		t.Fatalf("ListServices failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != second.ID {
		t.Error("active filter should return only the second service")
	}

	verified, err := e.ListServices(ctx, directory.ListOpts{VerifiedOnly: true})
	if err != nil {
		t.Fatalf("ListServices failed: %v", err)
	}
	if len(verified) != 1 || verified[0].ID != second.ID {
		t.Error("verified filter should return only the second service")
	}

	mine, err := e.ServicesByProvider(ctx, provider)
	if err != nil {
		t.Fatalf("ServicesByProvider failed: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != first.ID {
		t.Error("provider listing should return only the provider's service")
	}

	total, err := e.TotalServices(ctx)
	if err != nil {
		t.Fatalf("TotalServices failed: %v", err)
	}
	if total != 2 {
		t.Errorf("TotalServices = %d, want 2 (deactivated services still count)", total)
	}
}

func TestServicePrice(t *testing.T) {
	e, _ := newEngine(t)
	svc := registerTestService(t, e)

	price, err := e.ServicePrice(context.Background(), svc.ID)
	if err != nil {
		t.Fatalf("ServicePrice failed: %v", err)
	}
	if !price.Equal(types.Ether(1)) {
		t.Errorf("price = %s, want 1 ether", price)
	}
}

func TestPayForService(t *testing.T) {
	e, cust := newEngine(t)
	svc := registerTestService(t, e)
	ctx := context.Background()

	p, err := e.PayForService(ctx, payer, svc.ID, requestHash("req-weather-1"))
	if err != nil {
		t.Fatalf("PayForService failed: %v", err)
	}
	if p.Payee != svc.PaymentAddress {
		t.Errorf("payee = %s, want the service payment address %s", p.Payee, svc.PaymentAddress)
	}
	if !p.Amount.Equal(svc.BasePrice) {
		t.Errorf("amount = %s, want base price %s", p.Amount, svc.BasePrice)
	}
	if !cust.Escrowed(payment.NativeToken).Equal(svc.BasePrice) {
		t.Error("base price should be held in escrow")
	}

	got, err := e.GetService(ctx, svc.ID)
	if err != nil {
		t.Fatalf("GetService failed: %v", err)
	}
	if got.TotalRequests != 1 {
		t.Errorf("total requests = %d, want 1", got.TotalRequests)
	}
	if !got.TotalRevenue.Equal(svc.BasePrice) {
		t.Errorf("total revenue = %s, want %s", got.TotalRevenue, svc.BasePrice)
	}
}

func TestPayForServiceInactive(t *testing.T) {
	e, _ := newEngine(t)
	svc := registerTestService(t, e)
	ctx := context.Background()

	if err := e.DeactivateService(ctx, provider, svc.ID); err != nil {
		t.Fatalf("DeactivateService failed: %v", err)
	}
	_, err := e.PayForService(ctx, payer, svc.ID, requestHash("req-weather-2"))
	if !errors.Is(err, escrow.ErrServiceNotActive) {
		t.Errorf("expected ErrServiceNotActive, got %v", err)
	}
}

func TestServiceJournal(t *testing.T) {
	e, _ := newEngine(t)
	svc := registerTestService(t, e)
	ctx := context.Background()

	if err := e.VerifyService(ctx, admin, svc.ID); err != nil {
		t.Fatalf("VerifyService failed: %v", err)
	}

	registered := e.Journal().OfKind(event.KindServiceRegistered)
	if len(registered) != 1 {
		t.Fatalf("expected 1 registration event, got %d", len(registered))
	}
	reg, ok := registered[0].Payload.(event.ServiceRegistered)
	if !ok {
		t.Fatalf("unexpected payload type %T", registered[0].Payload)
	}
	if reg.ServiceID != svc.ID || reg.Provider != provider {
		t.Error("registration event carries wrong fields")
	}

	if n := len(e.Journal().OfKind(event.KindServiceVerified)); n != 1 {
		t.Errorf("expected 1 verification event, got %d", n)
	}
}
