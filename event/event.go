// Package event defines the typed journal entries emitted by the engine
// after every successful state transition, for consumption by indexers,
// UIs, and audit hooks. Payload field order is part of the compatibility
// surface and must stay stable.
package event

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

// Kind identifies the event variant.
type Kind string

const (
	KindPaymentInitiated Kind = "payment.initiated"
	KindPaymentCompleted Kind = "payment.completed"
	KindPaymentRefunded  Kind = "payment.refunded"

	KindLimitSet         Kind = "limit.set"
	KindLimitActivated   Kind = "limit.activated"
	KindLimitDeactivated Kind = "limit.deactivated"
	KindSpenderApproved  Kind = "spender.approved"
	KindSpenderRevoked   Kind = "spender.revoked"
	KindSpendingRecorded Kind = "spending.recorded"

	KindServiceRegistered   Kind = "service.registered"
	KindServiceUpdated      Kind = "service.updated"
	KindServiceActivated    Kind = "service.activated"
	KindServiceDeactivated  Kind = "service.deactivated"
	KindServiceVerified     Kind = "service.verified"
	KindPricingTierAdded    Kind = "service.tier_added"
	KindServiceRequestNoted Kind = "service.request_recorded"
)

// Payload is implemented by every event body.
type Payload interface {
	Kind() Kind
}

// Event is one journal entry: a unique id, the emission time, and a typed
// payload.
type Event struct {
	ID      id.EventID `json:"id"`
	At      time.Time  `json:"at"`
	Payload Payload    `json:"payload"`
}

// Kind returns the payload's variant tag.
func (e Event) Kind() Kind { return e.Payload.Kind() }

// New wraps a payload in a journal entry stamped at the given time.
func New(at time.Time, p Payload) Event {
	return Event{ID: id.NewEventID(), At: at, Payload: p}
}

// ── payment events ──

type PaymentInitiated struct {
	PaymentID id.PaymentID   `json:"payment_id"`
	Payer     common.Address `json:"payer"`
	Payee     common.Address `json:"payee"`
	Amount    types.Amount   `json:"amount"`
	Token     common.Address `json:"token"`
}

func (PaymentInitiated) Kind() Kind { return KindPaymentInitiated }

type PaymentCompleted struct {
	PaymentID id.PaymentID   `json:"payment_id"`
	Payer     common.Address `json:"payer"`
	Payee     common.Address `json:"payee"`
	Amount    types.Amount   `json:"amount"`
}

func (PaymentCompleted) Kind() Kind { return KindPaymentCompleted }

type PaymentRefunded struct {
	PaymentID id.PaymentID   `json:"payment_id"`
	Payer     common.Address `json:"payer"`
	Amount    types.Amount   `json:"amount"`
}

func (PaymentRefunded) Kind() Kind { return KindPaymentRefunded }

// ── spending-limit events ──

type LimitSet struct {
	Account common.Address `json:"account"`
	Daily   types.Amount   `json:"daily"`
	Weekly  types.Amount   `json:"weekly"`
	Monthly types.Amount   `json:"monthly"`
}

func (LimitSet) Kind() Kind { return KindLimitSet }

type LimitActivated struct {
	Account common.Address `json:"account"`
}

func (LimitActivated) Kind() Kind { return KindLimitActivated }

type LimitDeactivated struct {
	Account common.Address `json:"account"`
}

func (LimitDeactivated) Kind() Kind { return KindLimitDeactivated }

type SpenderApproved struct {
	Account common.Address `json:"account"`
	Spender common.Address `json:"spender"`
}

func (SpenderApproved) Kind() Kind { return KindSpenderApproved }

type SpenderRevoked struct {
	Account common.Address `json:"account"`
	Spender common.Address `json:"spender"`
}

func (SpenderRevoked) Kind() Kind { return KindSpenderRevoked }

type SpendingRecorded struct {
	Account      common.Address `json:"account"`
	Amount       types.Amount   `json:"amount"`
	DailySpent   types.Amount   `json:"daily_spent"`
	WeeklySpent  types.Amount   `json:"weekly_spent"`
	MonthlySpent types.Amount   `json:"monthly_spent"`
}

func (SpendingRecorded) Kind() Kind { return KindSpendingRecorded }

// ── directory events ──

type ServiceRegistered struct {
	ServiceID id.ServiceID   `json:"service_id"`
	Provider  common.Address `json:"provider"`
	Name      string         `json:"name"`
}

func (ServiceRegistered) Kind() Kind { return KindServiceRegistered }

type ServiceUpdated struct {
	ServiceID id.ServiceID `json:"service_id"`
}

func (ServiceUpdated) Kind() Kind { return KindServiceUpdated }

type ServiceActivated struct {
	ServiceID id.ServiceID `json:"service_id"`
}

func (ServiceActivated) Kind() Kind { return KindServiceActivated }

type ServiceDeactivated struct {
	ServiceID id.ServiceID `json:"service_id"`
}

func (ServiceDeactivated) Kind() Kind { return KindServiceDeactivated }

type ServiceVerified struct {
	ServiceID id.ServiceID `json:"service_id"`
}

func (ServiceVerified) Kind() Kind { return KindServiceVerified }

type PricingTierAdded struct {
	ServiceID id.ServiceID `json:"service_id"`
	TierName  string       `json:"tier_name"`
	Price     types.Amount `json:"price"`
}

func (PricingTierAdded) Kind() Kind { return KindPricingTierAdded }

type ServiceRequestRecorded struct {
	ServiceID id.ServiceID `json:"service_id"`
	Amount    types.Amount `json:"amount"`
}

func (ServiceRequestRecorded) Kind() Kind { return KindServiceRequestNoted }
