package payment

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

// Store persists payments and per-address aggregates.
//
// Complete and Refund are atomic state transitions: each must load the
// payment, verify it is still open, and apply the transition plus the
// corresponding aggregate update in a single step. Backends return the
// package-level sentinels for the not-found and terminal-state cases.
type Store interface {
	// Create persists a new open payment and credits the payer's TotalPaid.
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, pid id.PaymentID) (*Payment, error)
	List(ctx context.Context, opts ListOpts) ([]*Payment, error)

	// Complete transitions an open payment to completed and credits the
	// payee's TotalReceived. Fails if the payment is already terminal.
	Complete(ctx context.Context, pid id.PaymentID, at time.Time) (*Payment, error)

	// Refund transitions an open payment to refunded. Lifetime totals are
	// not rewound. Fails if the payment is already terminal.
	Refund(ctx context.Context, pid id.PaymentID, at time.Time) (*Payment, error)

	// NextSequence atomically increments and returns the payer's payment
	// sequence counter. The first call for an address returns 0.
	NextSequence(ctx context.Context, payer common.Address) (uint64, error)

	GetStats(ctx context.Context, addr common.Address) (*AccountStats, error)
}

// ListOpts filters payment listings. Zero values mean "no filter".
type ListOpts struct {
	Payer  *common.Address
	Payee  *common.Address
	Token  *common.Address
	Status Status
	Since  time.Time
	Until  time.Time
	Limit  int
	Offset int
}

// ZeroStats returns the empty aggregate for an address that has never
// transacted.
func ZeroStats(addr common.Address) *AccountStats {
	return &AccountStats{
		Address:       addr,
		TotalPaid:     types.ZeroAmount(),
		TotalReceived: types.ZeroAmount(),
	}
}
