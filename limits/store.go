package limits

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Store persists spending policies and approved-spender sets.
//
// A policy is only ever mutated by operations naming its account, so
// backends need no cross-account coordination. Backends return the
// package-level sentinels for the not-found cases.
type Store interface {
	// Upsert creates or fully replaces the policy for its account.
	Upsert(ctx context.Context, p *Policy) error
	Get(ctx context.Context, account common.Address) (*Policy, error)

	// SetActive toggles the active flag. Fails if the account has no policy.
	SetActive(ctx context.Context, account common.Address, active bool) error

	ApproveSpender(ctx context.Context, account, spender common.Address) error
	RevokeSpender(ctx context.Context, account, spender common.Address) error
	IsApprovedSpender(ctx context.Context, account, spender common.Address) (bool, error)
	ListSpenders(ctx context.Context, account common.Address) ([]common.Address, error)
}
