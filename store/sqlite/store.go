// Package sqlite implements the escrow store on SQLite via Grove ORM.
// Amount aggregates are updated read-modify-write in Go: SQLite cannot do
// exact arithmetic on 256-bit decimals.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
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

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("escrow/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("escrow/sqlite: migration failed: %w", err)
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
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return err
	}

	st, err := s.GetAccountStats(ctx, p.Payer)
	if err != nil {
		return err
	}
	st.TotalPaid = st.TotalPaid.Add(p.Amount)
	return s.putAccountStats(ctx, st)
}

func (s *Store) GetPayment(ctx context.Context, pid id.PaymentID) (*payment.Payment, error) {
	m := new(paymentModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", pid.String()).
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
	q := s.sdb.NewSelect(&models)

	if opts.Payer != nil {
		q = q.Where("payer = ?", opts.Payer.Hex())
	}
	if opts.Payee != nil {
		q = q.Where("payee = ?", opts.Payee.Hex())
	}
	if opts.Token != nil {
		q = q.Where("token = ?", opts.Token.Hex())
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if !opts.Since.IsZero() {
		q = q.Where("created_at >= ?", opts.Since)
	}
	if !opts.Until.IsZero() {
		q = q.Where("created_at <= ?", opts.Until)
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
	res, err := s.sdb.NewUpdate((*paymentModel)(nil)).
		Set("status = ?", string(payment.StatusCompleted)).
		Set("completed_at = ?", at).
		Set("updated_at = ?", t).
		Where("id = ?", pid.String()).
		Where("status = ?", string(payment.StatusOpen)).
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

	st, err := s.GetAccountStats(ctx, p.Payee)
	if err != nil {
		return nil, err
	}
	st.TotalReceived = st.TotalReceived.Add(p.Amount)
	if err := s.putAccountStats(ctx, st); err != nil {
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
	res, err := s.sdb.NewUpdate((*paymentModel)(nil)).
		Set("status = ?", string(payment.StatusRefunded)).
		Set("refunded_at = ?", at).
		Set("updated_at = ?", t).
		Where("id = ?", pid.String()).
		Where("status = ?", string(payment.StatusOpen)).
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
	err := s.sdb.NewRaw(`
		INSERT INTO escrow_account_stats (address, total_paid, total_received, sequence)
		VALUES (?, '0', '0', 1)
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
	err := s.sdb.NewSelect(m).
		Where("address = ?", addr.Hex()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return payment.ZeroStats(addr), nil
		}
		return nil, err
	}
	return fromAccountStatsModel(m)
}

func (s *Store) putAccountStats(ctx context.Context, st *payment.AccountStats) error {
	m := toAccountStatsModel(st)
	_, err := s.sdb.NewInsert(m).
		OnConflict("(address) DO UPDATE").
		Set("total_paid = excluded.total_paid").
		Set("total_received = excluded.total_received").
		Exec(ctx)
	return err
}

// ==================== Spending-limit Store ====================

func (s *Store) UpsertPolicy(ctx context.Context, p *limits.Policy) error {
	m := toPolicyModel(p)
	_, err := s.sdb.NewInsert(m).
		OnConflict("(account) DO UPDATE").
		Set("windows = excluded.windows").
		Set("active = excluded.active").
		Set("updated_at = excluded.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetPolicy(ctx context.Context, account common.Address) (*limits.Policy, error) {
	m := new(policyModel)
	err := s.sdb.NewSelect(m).
		Where("account = ?", account.Hex()).
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
	res, err := s.sdb.NewUpdate((*policyModel)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", now()).
		Where("account = ?", account.Hex()).
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
	_, err := s.sdb.NewInsert(m).
		OnConflict("(account, spender) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) RevokeSpender(ctx context.Context, account, spender common.Address) error {
	_, err := s.sdb.NewDelete((*spenderModel)(nil)).
		Where("account = ?", account.Hex()).
		Where("spender = ?", spender.Hex()).
		Exec(ctx)
	return err
}

func (s *Store) IsApprovedSpender(ctx context.Context, account, spender common.Address) (bool, error) {
	m := new(spenderModel)
	err := s.sdb.NewSelect(m).
		Where("account = ?", account.Hex()).
		Where("spender = ?", spender.Hex()).
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
	err := s.sdb.NewSelect(&models).
		Where("account = ?", account.Hex()).
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetService(ctx context.Context, sid id.ServiceID) (*directory.Service, error) {
	m := new(serviceModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", sid.String()).
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
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
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
	q := s.sdb.NewSelect(&models)

	if opts.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	if opts.VerifiedOnly {
		q = q.Where("verified = ?", true)
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
	err := s.sdb.NewSelect(&models).
		Where("provider = ?", provider.Hex()).
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

	svc.TotalRequests++
	svc.TotalRevenue = svc.TotalRevenue.Add(amount)

	t := now()
	res, err := s.sdb.NewUpdate((*serviceModel)(nil)).
		Set("total_requests = ?", int64(svc.TotalRequests)).
		Set("total_revenue = ?", svc.TotalRevenue.String()).
		Set("updated_at = ?", t).
		Where("id = ?", sid.String()).
		Where("active = ?", true).
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
