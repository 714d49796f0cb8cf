// Package memory provides an in-memory Store implementation for tests and
// single-process deployments. All state is lost on Close.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/directory"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/limits"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/types"
)

type Store struct {
	mu sync.RWMutex

	// Payment storage
	payments map[id.PaymentID]*payment.Payment
	stats    map[common.Address]*payment.AccountStats

	// Spending-limit storage
	policies map[common.Address]*limits.Policy
	spenders map[common.Address]map[common.Address]bool

	// Directory storage
	services map[string]*directory.Service
}

func New() *Store {
	return &Store{
		payments: make(map[id.PaymentID]*payment.Payment),
		stats:    make(map[common.Address]*payment.AccountStats),
		policies: make(map[common.Address]*limits.Policy),
		spenders: make(map[common.Address]map[common.Address]bool),
		services: make(map[string]*directory.Service),
	}
}

// Payment Store implementation

func (s *Store) CreatePayment(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[p.ID]; exists {
		return escrow.ErrAlreadyExists
	}
	s.payments[p.ID] = p

	st := s.statsLocked(p.Payer)
	st.TotalPaid = st.TotalPaid.Add(p.Amount)
	return nil
}

func (s *Store) GetPayment(_ context.Context, pid id.PaymentID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.payments[pid]; ok {
		return p, nil
	}
	return nil, escrow.ErrPaymentNotFound
}

func (s *Store) ListPayments(_ context.Context, opts payment.ListOpts) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payment.Payment, 0)
	for _, p := range s.payments {
		if opts.Payer != nil && p.Payer != *opts.Payer {
			continue
		}
		if opts.Payee != nil && p.Payee != *opts.Payee {
			continue
		}
		if opts.Token != nil && p.Token != *opts.Token {
			continue
		}
		if opts.Status != "" && p.Status != opts.Status {
			continue
		}
		if !opts.Since.IsZero() && p.CreatedAt.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && p.CreatedAt.After(opts.Until) {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}

func (s *Store) CompletePayment(_ context.Context, pid id.PaymentID, at time.Time) (*payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[pid]
	if !ok {
		return nil, escrow.ErrPaymentNotFound
	}
	switch p.Status {
	case payment.StatusCompleted:
		return nil, escrow.ErrAlreadyCompleted
	case payment.StatusRefunded:
		return nil, escrow.ErrAlreadyRefunded
	}

	p.Status = payment.StatusCompleted
	p.CompletedAt = &at
	p.Touch()

	st := s.statsLocked(p.Payee)
	st.TotalReceived = st.TotalReceived.Add(p.Amount)
	return p, nil
}

func (s *Store) RefundPayment(_ context.Context, pid id.PaymentID, at time.Time) (*payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[pid]
	if !ok {
		return nil, escrow.ErrPaymentNotFound
	}
	switch p.Status {
	case payment.StatusCompleted:
		return nil, escrow.ErrAlreadyCompleted
	case payment.StatusRefunded:
		return nil, escrow.ErrAlreadyRefunded
	}

	p.Status = payment.StatusRefunded
	p.RefundedAt = &at
	p.Touch()
	return p, nil
}

func (s *Store) NextPaymentSequence(_ context.Context, payer common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.statsLocked(payer)
	seq := st.Sequence
	st.Sequence++
	return seq, nil
}

func (s *Store) GetAccountStats(_ context.Context, addr common.Address) (*payment.AccountStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.stats[addr]; ok {
		cp := *st
		return &cp, nil
	}
	return payment.ZeroStats(addr), nil
}

func (s *Store) statsLocked(addr common.Address) *payment.AccountStats {
	st, ok := s.stats[addr]
	if !ok {
		st = payment.ZeroStats(addr)
		s.stats[addr] = st
	}
	return st
}

// Spending-limit Store implementation

func (s *Store) UpsertPolicy(_ context.Context, p *limits.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.policies[p.Account] = p
	return nil
}

func (s *Store) GetPolicy(_ context.Context, account common.Address) (*limits.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.policies[account]; ok {
		return p, nil
	}
	return nil, escrow.ErrLimitsNotFound
}

func (s *Store) SetPolicyActive(_ context.Context, account common.Address, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[account]
	if !ok {
		return escrow.ErrLimitsNotFound
	}
	p.Active = active
	p.Touch()
	return nil
}

func (s *Store) ApproveSpender(_ context.Context, account, spender common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spenders[account] == nil {
		s.spenders[account] = make(map[common.Address]bool)
	}
	s.spenders[account][spender] = true
	return nil
}

func (s *Store) RevokeSpender(_ context.Context, account, spender common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if set := s.spenders[account]; set != nil {
		delete(set, spender)
	}
	return nil
}

func (s *Store) IsApprovedSpender(_ context.Context, account, spender common.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.spenders[account][spender], nil
}

func (s *Store) ListSpenders(_ context.Context, account common.Address) ([]common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]common.Address, 0, len(s.spenders[account]))
	for spender := range s.spenders[account] {
		result = append(result, spender)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Hex() < result[j].Hex()
	})
	return result, nil
}

// Directory Store implementation

func (s *Store) CreateService(_ context.Context, svc *directory.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.services[svc.ID.String()]; exists {
		return escrow.ErrAlreadyExists
	}
	s.services[svc.ID.String()] = svc
	return nil
}

func (s *Store) GetService(_ context.Context, sid id.ServiceID) (*directory.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if svc, ok := s.services[sid.String()]; ok {
		return svc, nil
	}
	return nil, escrow.ErrServiceNotFound
}

func (s *Store) UpdateService(_ context.Context, svc *directory.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.services[svc.ID.String()]; !exists {
		return escrow.ErrServiceNotFound
	}
	svc.Touch()
	s.services[svc.ID.String()] = svc
	return nil
}

func (s *Store) ListServices(_ context.Context, opts directory.ListOpts) ([]*directory.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*directory.Service, 0)
	for _, svc := range s.services {
		if opts.ActiveOnly && !svc.Active {
			continue
		}
		if opts.VerifiedOnly && !svc.Verified {
			continue
		}
		result = append(result, svc)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}

func (s *Store) ListServicesByProvider(_ context.Context, provider common.Address) ([]*directory.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*directory.Service, 0)
	for _, svc := range s.services {
		if svc.Provider == provider {
			result = append(result, svc)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (s *Store) RecordServiceRequest(_ context.Context, sid id.ServiceID, amount types.Amount) (*directory.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc, ok := s.services[sid.String()]
	if !ok {
		return nil, escrow.ErrServiceNotFound
	}
	if !svc.Active {
		return nil, escrow.ErrServiceNotActive
	}
	svc.TotalRequests++
	svc.TotalRevenue = svc.TotalRevenue.Add(amount)
	svc.Touch()
	return svc, nil
}

// Store management

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}
