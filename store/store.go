package store

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/directory"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/limits"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/types"
)

// Store is the unified storage interface for all Escrow entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Payment methods
	CreatePayment(ctx context.Context, p *payment.Payment) error
	GetPayment(ctx context.Context, pid id.PaymentID) (*payment.Payment, error)
	ListPayments(ctx context.Context, opts payment.ListOpts) ([]*payment.Payment, error)
	CompletePayment(ctx context.Context, pid id.PaymentID, at time.Time) (*payment.Payment, error)
	RefundPayment(ctx context.Context, pid id.PaymentID, at time.Time) (*payment.Payment, error)
	NextPaymentSequence(ctx context.Context, payer common.Address) (uint64, error)
	GetAccountStats(ctx context.Context, addr common.Address) (*payment.AccountStats, error)

	// Spending-limit methods
	UpsertPolicy(ctx context.Context, p *limits.Policy) error
	GetPolicy(ctx context.Context, account common.Address) (*limits.Policy, error)
	SetPolicyActive(ctx context.Context, account common.Address, active bool) error
	ApproveSpender(ctx context.Context, account, spender common.Address) error
	RevokeSpender(ctx context.Context, account, spender common.Address) error
	IsApprovedSpender(ctx context.Context, account, spender common.Address) (bool, error)
	ListSpenders(ctx context.Context, account common.Address) ([]common.Address, error)

	// Directory methods
	CreateService(ctx context.Context, svc *directory.Service) error
	GetService(ctx context.Context, sid id.ServiceID) (*directory.Service, error)
	UpdateService(ctx context.Context, svc *directory.Service) error
	ListServices(ctx context.Context, opts directory.ListOpts) ([]*directory.Service, error)
	ListServicesByProvider(ctx context.Context, provider common.Address) ([]*directory.Service, error)
	RecordServiceRequest(ctx context.Context, sid id.ServiceID, amount types.Amount) (*directory.Service, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
