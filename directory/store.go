package directory

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

// Store persists the service catalog.
//
// RecordRequest is an atomic read-modify-write on the service's counters:
// backends must apply the increment and the revenue credit together.
// Backends return the package-level sentinels for not-found and
// inactive-service cases.
type Store interface {
	Create(ctx context.Context, svc *Service) error
	Get(ctx context.Context, sid id.ServiceID) (*Service, error)
	Update(ctx context.Context, svc *Service) error
	List(ctx context.Context, opts ListOpts) ([]*Service, error)
	ListByProvider(ctx context.Context, provider common.Address) ([]*Service, error)

	// RecordRequest increments the service's request counter and adds
	// amount to its lifetime revenue. Fails if the service is inactive.
	RecordRequest(ctx context.Context, sid id.ServiceID, amount types.Amount) (*Service, error)
}

// ListOpts filters catalog listings. Zero values mean "no filter".
type ListOpts struct {
	ActiveOnly   bool
	VerifiedOnly bool
	Limit        int
	Offset       int
}
