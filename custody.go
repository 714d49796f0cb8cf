package escrow

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/types"
)

// Custodian moves value in and out of escrow custody. The engine calls Pull
// when a payment is initiated and Release when it completes (to the payee)
// or is refunded (to the payer).
//
// Implementations settle against whatever holds the actual funds: an
// on-chain token contract, an internal balance book, or a payment provider.
// The native currency is addressed by the zero token address.
type Custodian interface {
	// Pull moves amount of token from the payer into custody. For token
	// payments this requires a prior allowance grant by the payer.
	Pull(ctx context.Context, token, from common.Address, amount types.Amount) error

	// Release moves amount of token from custody to the recipient.
	Release(ctx context.Context, token, to common.Address, amount types.Amount) error
}

// MemoryCustodian is an in-memory balance book implementing Custodian,
// suitable for tests and single-process deployments. Token transfers
// require a prior Approve by the holder; native transfers do not, matching
// value-bearing calls where the funds accompany the request.
type MemoryCustodian struct {
	mu         sync.Mutex
	balances   map[common.Address]map[common.Address]*types.Amount
	allowances map[common.Address]map[common.Address]*types.Amount
	escrowed   map[common.Address]*types.Amount
}

// NewMemoryCustodian returns an empty balance book.
func NewMemoryCustodian() *MemoryCustodian {
	return &MemoryCustodian{
		balances:   make(map[common.Address]map[common.Address]*types.Amount),
		allowances: make(map[common.Address]map[common.Address]*types.Amount),
		escrowed:   make(map[common.Address]*types.Amount),
	}
}

// Mint credits a holder's balance. Test hook.
func (m *MemoryCustodian) Mint(token, holder common.Address, amount types.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.balanceLocked(token, holder)
	m.setBalanceLocked(token, holder, cur.Add(amount))
}

// Approve grants the custodian permission to pull up to amount of token
// from the holder. Overwrites any prior allowance.
func (m *MemoryCustodian) Approve(token, holder common.Address, amount types.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allowances[token] == nil {
		m.allowances[token] = make(map[common.Address]*types.Amount)
	}
	m.allowances[token][holder] = &amount
}

// BalanceOf returns the holder's current balance of token.
func (m *MemoryCustodian) BalanceOf(token, holder common.Address) types.Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceLocked(token, holder)
}

// Escrowed returns the total amount of token currently held in custody.
func (m *MemoryCustodian) Escrowed(token common.Address) types.Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.escrowed[token]; a != nil {
		return *a
	}
	return types.ZeroAmount()
}

// Pull implements Custodian.
func (m *MemoryCustodian) Pull(_ context.Context, token, from common.Address, amount types.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.balanceLocked(token, from)
	if bal.LessThan(amount) {
		return fmt.Errorf("%w: insufficient balance for %s", ErrCustodyFailed, from.Hex())
	}
	if token != payment.NativeToken {
		allowance := m.allowanceLocked(token, from)
		if allowance.LessThan(amount) {
			return fmt.Errorf("%w: insufficient allowance for %s", ErrCustodyFailed, from.Hex())
		}
		m.allowances[token][from] = amountPtr(allowance.Sub(amount))
	}
	m.setBalanceLocked(token, from, bal.Sub(amount))
	m.escrowed[token] = amountPtr(m.escrowedLocked(token).Add(amount))
	return nil
}

// Release implements Custodian.
func (m *MemoryCustodian) Release(_ context.Context, token, to common.Address, amount types.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	held := m.escrowedLocked(token)
	if held.LessThan(amount) {
		return fmt.Errorf("%w: custody holds less than release amount", ErrCustodyFailed)
	}
	m.escrowed[token] = amountPtr(held.Sub(amount))
	m.setBalanceLocked(token, to, m.balanceLocked(token, to).Add(amount))
	return nil
}

func (m *MemoryCustodian) balanceLocked(token, holder common.Address) types.Amount {
	if byHolder := m.balances[token]; byHolder != nil {
		if a := byHolder[holder]; a != nil {
			return *a
		}
	}
	return types.ZeroAmount()
}

func (m *MemoryCustodian) setBalanceLocked(token, holder common.Address, a types.Amount) {
	if m.balances[token] == nil {
		m.balances[token] = make(map[common.Address]*types.Amount)
	}
	m.balances[token][holder] = &a
}

func (m *MemoryCustodian) allowanceLocked(token, holder common.Address) types.Amount {
	if byHolder := m.allowances[token]; byHolder != nil {
		if a := byHolder[holder]; a != nil {
			return *a
		}
	}
	return types.ZeroAmount()
}

func (m *MemoryCustodian) escrowedLocked(token common.Address) types.Amount {
	if a := m.escrowed[token]; a != nil {
		return *a
	}
	return types.ZeroAmount()
}

func amountPtr(a types.Amount) *types.Amount { return &a }
