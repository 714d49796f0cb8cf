// Package postgres implements the escrow store on PostgreSQL via Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/directory"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/limits"
	"github.com/xraph/escrow/payment"
	escrowstore "github.com/xraph/escrow/store"
	"github.com/xraph/escrow/types"
)

// compile-time interface check
var _ escrowstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("escrow/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("escrow/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	m := toPaymentModel(p)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return err
	}

	// Lifetime totals credit the payer at pay time.
	st := &accountStatsModel{
		Address:       p.Payer.Hex(),
		TotalPaid:     p.Amount.String(),
		TotalReceived: "0",
	}
	_, err := s.pg.NewInsert(st).
		OnConflict("(address) DO UPDATE").
		Set("total_paid = escrow_account_stats.total_paid + EXCLUDED.total_paid").
		Exec(ctx)
	return err
}

func (s *Store) GetPayment(ctx context.Context, pid id.PaymentID) (*payment.Payment, error) {
	m := new(paymentModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", pid.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, escrow.ErrPaymentNotFound
		}
		return nil, err
	}
	return fromPaymentModel(m)
}

func (s *Store) ListPayments(ctx context.Context, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Payer != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("payer = $%d", argIdx), opts.Payer.Hex())
	}
	if opts.Payee != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("payee = $%d", argIdx), opts.Payee.Hex())
	}
	if opts.Token != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("token = $%d", argIdx), opts.Token.Hex())
	}
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if !opts.Since.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("created_at >= $%d", argIdx), opts.Since)
	}
	if !opts.Until.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("created_at <= $%d", argIdx), opts.Until)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*payment.Payment, len(models))
	for i := range models {
		p, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) CompletePayment(ctx context.Context, pid id.PaymentID, at time.Time) (*payment.Payment, error) {
	p, err := s.GetPayment(ctx, pid)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case payment.StatusCompleted:
		return nil, escrow.ErrAlreadyCompleted
	case payment.StatusRefunded:
		return nil, escrow.ErrAlreadyRefunded
	}

	t := now()
	res, err := s.pg.NewUpdate((*paymentModel)(nil)).
		Set("status = $1", string(payment.StatusCompleted)).
		Set("completed_at = $2", at).
		Set("updated_at = $3", t).
		Where("id = $4", pid.String()).
		Where("status = $5", string(payment.StatusOpen)).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, escrow.ErrTransactionFailed
	}

	// Completion credits the payee's lifetime received total.
	st := &accountStatsModel{
		Address:       p.Payee.Hex(),
		TotalPaid:     "0",
		TotalReceived: p.Amount.String(),
	}
	if _, err := s.pg.NewInsert(st).
		OnConflict("(address) DO UPDATE").
		Set("total_received = escrow_account_stats.total_received + EXCLUDED.total_received").
		Exec(ctx); err != nil {
		return nil, err
	}

	p.Status = payment.StatusCompleted
	p.CompletedAt = &at
	p.UpdatedAt = t
	return p, nil
}

func (s *Store) RefundPayment(ctx context.Context, pid id.PaymentID, at time.Time) (*payment.Payment, error) {
	p, err := s.GetPayment(ctx, pid)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case payment.StatusCompleted:
		return nil, escrow.ErrAlreadyCompleted
	case payment.StatusRefunded:
		return nil, escrow.ErrAlreadyRefunded
	}

	t := now()
	res, err := s.pg.NewUpdate((*paymentModel)(nil)).
		Set("status = $1", string(payment.StatusRefunded)).
		Set("refunded_at = $2", at).
		Set("updated_at = $3", t).
		Where("id = $4", pid.String()).
		Where("status = $5", string(payment.StatusOpen)).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, escrow.ErrTransactionFailed
	}

	p.Status = payment.StatusRefunded
	p.RefundedAt = &at
	p.UpdatedAt = t
	return p, nil
}

func (s *Store) NextPaymentSequence(ctx context.Context, payer common.Address) (uint64, error) {
	var seq int64
	err := s.pg.NewRaw(`
		INSERT INTO escrow_account_stats (address, total_paid, total_received, sequence)
		VALUES ($1, 0, 0, 1)
		ON CONFLICT (address) DO UPDATE SET sequence = escrow_account_stats.sequence + 1
		RETURNING sequence - 1
	`, payer.Hex()).Scan(ctx, &seq)
	if err != nil {
		return 0, err
	}
	return uint64(seq), nil
}

func (s *Store) GetAccountStats(ctx context.Context, addr common.Address) (*payment.AccountStats, error) {
	m := new(accountStatsModel)
	err := s.pg.NewSelect(m).
		Where("address = $1", addr.Hex()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return payment.ZeroStats(addr), nil
		}
		return nil, err
	}
	return fromAccountStatsModel(m)
}

// ==================== Spending-limit Store ====================

func (s *Store) UpsertPolicy(ctx context.Context, p *limits.Policy) error {
	m := toPolicyModel(p)
	_, err := s.pg.NewInsert(m).
		OnConflict("(account) DO UPDATE").
		Set("windows = EXCLUDED.windows").
		Set("active = EXCLUDED.active").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetPolicy(ctx context.Context, account common.Address) (*limits.Policy, error) {
	m := new(policyModel)
	err := s.pg.NewSelect(m).
		Where("account = $1", account.Hex()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, escrow.ErrLimitsNotFound
		}
		return nil, err
	}
	return fromPolicyModel(m)
}

func (s *Store) SetPolicyActive(ctx context.Context, account common.Address, active bool) error {
	res, err := s.pg.NewUpdate((*policyModel)(nil)).
		Set("active = $1", active).
		Set("updated_at = $2", now()).
		Where("account = $3", account.Hex()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return escrow.ErrLimitsNotFound
	}
	return nil
}

func (s *Store) ApproveSpender(ctx context.Context, account, spender common.Address) error {
	m := &spenderModel{
		Account:   account.Hex(),
		Spender:   spender.Hex(),
		CreatedAt: now(),
	}
	_, err := s.pg.NewInsert(m).
		OnConflict("(account, spender) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) RevokeSpender(ctx context.Context, account, spender common.Address) error {
	_, err := s.pg.NewDelete((*spenderModel)(nil)).
		Where("account = $1", account.Hex()).
		Where("spender = $2", spender.Hex()).
		Exec(ctx)
	return err
}

func (s *Store) IsApprovedSpender(ctx context.Context, account, spender common.Address) (bool, error) {
	m := new(spenderModel)
	err := s.pg.NewSelect(m).
		Where("account = $1", account.Hex()).
		Where("spender = $2", spender.Hex()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) ListSpenders(ctx context.Context, account common.Address) ([]common.Address, error) {
	var models []spenderModel
	err := s.pg.NewSelect(&models).
		Where("account = $1", account.Hex()).
		OrderExpr("spender ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]common.Address, len(models))
	for i := range models {
		result[i] = common.HexToAddress(models[i].Spender)
	}
	return result, nil
}

// ==================== Directory Store ====================

func (s *Store) CreateService(ctx context.Context, svc *directory.Service) error {
	m := toServiceModel(svc)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetService(ctx context.Context, sid id.ServiceID) (*directory.Service, error) {
	m := new(serviceModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", sid.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, escrow.ErrServiceNotFound
		}
		return nil, err
	}
	return fromServiceModel(m)
}

func (s *Store) UpdateService(ctx context.Context, svc *directory.Service) error {
	m := toServiceModel(svc)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return escrow.ErrServiceNotFound
	}
	return nil
}

func (s *Store) ListServices(ctx context.Context, opts directory.ListOpts) ([]*directory.Service, error) {
	var models []serviceModel
	q := s.pg.NewSelect(&models)

	if opts.ActiveOnly {
		q = q.Where("active = TRUE")
	}
	if opts.VerifiedOnly {
		q = q.Where("verified = TRUE")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*directory.Service, len(models))
	for i := range models {
		svc, err := fromServiceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = svc
	}
	return result, nil
}

func (s *Store) ListServicesByProvider(ctx context.Context, provider common.Address) ([]*directory.Service, error) {
	var models []serviceModel
	err := s.pg.NewSelect(&models).
		Where("provider = $1", provider.Hex()).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*directory.Service, len(models))
	for i := range models {
		svc, err := fromServiceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = svc
	}
	return result, nil
}

func (s *Store) RecordServiceRequest(ctx context.Context, sid id.ServiceID, amount types.Amount) (*directory.Service, error) {
	svc, err := s.GetService(ctx, sid)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, escrow.ErrServiceNotActive
	}

	t := now()
	res, err := s.pg.NewUpdate((*serviceModel)(nil)).
		Set("total_requests = total_requests + 1").
		Set("total_revenue = total_revenue + $1", amount.String()).
		Set("updated_at = $2", t).
		Where("id = $3", sid.String()).
		Where("active = TRUE").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, escrow.ErrServiceNotActive
	}

	svc.TotalRequests++
	svc.TotalRevenue = svc.TotalRevenue.Add(amount)
	svc.UpdatedAt = t
	return svc, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
