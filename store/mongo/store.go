// Package mongo implements the escrow store on MongoDB via Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/directory"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/limits"
	"github.com/xraph/escrow/payment"
	escrowstore "github.com/xraph/escrow/store"
	"github.com/xraph/escrow/types"
)

// Collection name constants.
const (
	colPayments = "escrow_payments"
	colStats    = "escrow_account_stats"
	colPolicies = "escrow_policies"
	colSpenders = "escrow_approved_spenders"
	colServices = "escrow_services"
)

// compile-time interface check
var _ escrowstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all escrow collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("escrow/mongo: migrate %s indexes: %w", col, err)
		}
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
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("escrow/mongo: create payment: %w", err)
	}

	st, err := s.GetAccountStats(ctx, p.Payer)
	if err != nil {
		return err
	}
	st.TotalPaid = st.TotalPaid.Add(p.Amount)
	return s.putAccountStats(ctx, st)
}

func (s *Store) GetPayment(ctx context.Context, pid id.PaymentID) (*payment.Payment, error) {
	var m paymentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": pid.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, escrow.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("escrow/mongo: get payment: %w", err)
	}
	return fromPaymentModel(&m)
}

func (s *Store) ListPayments(ctx context.Context, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel

	filter := bson.M{}
	if opts.Payer != nil {
		filter["payer"] = opts.Payer.Hex()
	}
	if opts.Payee != nil {
		filter["payee"] = opts.Payee.Hex()
	}
	if opts.Token != nil {
		filter["token"] = opts.Token.Hex()
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	created := bson.M{}
	if !opts.Since.IsZero() {
		created["$gte"] = opts.Since
	}
	if !opts.Until.IsZero() {
		created["$lte"] = opts.Until
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("escrow/mongo: list payments: %w", err)
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
	res, err := s.mdb.NewUpdate((*paymentModel)(nil)).
		Filter(bson.M{"_id": pid.String(), "status": string(payment.StatusOpen)}).
		Set("status", string(payment.StatusCompleted)).
		Set("completed_at", at).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("escrow/mongo: complete payment: %w", err)
	}
	if res.MatchedCount() == 0 {
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
	res, err := s.mdb.NewUpdate((*paymentModel)(nil)).
		Filter(bson.M{"_id": pid.String(), "status": string(payment.StatusOpen)}).
		Set("status", string(payment.StatusRefunded)).
		Set("refunded_at", at).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("escrow/mongo: refund payment: %w", err)
	}
	if res.MatchedCount() == 0 {
		return nil, escrow.ErrTransactionFailed
	}

	p.Status = payment.StatusRefunded
	p.RefundedAt = &at
	p.UpdatedAt = t
	return p, nil
}

func (s *Store) NextPaymentSequence(ctx context.Context, payer common.Address) (uint64, error) {
	var doc struct {
		Sequence int64 `bson:"sequence"`
	}
	err := s.mdb.Collection(colStats).FindOneAndUpdate(ctx,
		bson.M{"_id": payer.Hex()},
		bson.M{
			"$inc":         bson.M{"sequence": 1},
			"$setOnInsert": bson.M{"total_paid": "0", "total_received": "0"},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("escrow/mongo: next payment sequence: %w", err)
	}
	return uint64(doc.Sequence - 1), nil
}

func (s *Store) GetAccountStats(ctx context.Context, addr common.Address) (*payment.AccountStats, error) {
	var m accountStatsModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": addr.Hex()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return payment.ZeroStats(addr), nil
		}
		return nil, fmt.Errorf("escrow/mongo: get account stats: %w", err)
	}
	return fromAccountStatsModel(&m)
}

func (s *Store) putAccountStats(ctx context.Context, st *payment.AccountStats) error {
	addr := st.Address.Hex()
	_, err := s.mdb.NewUpdate((*accountStatsModel)(nil)).
		Filter(bson.M{"_id": addr}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"_id":            addr,
				"total_paid":     st.TotalPaid.String(),
				"total_received": st.TotalReceived.String(),
			},
			"$setOnInsert": bson.M{"sequence": int64(st.Sequence)},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("escrow/mongo: put account stats: %w", err)
	}
	return nil
}

// ==================== Spending-limit Store ====================

func (s *Store) UpsertPolicy(ctx context.Context, p *limits.Policy) error {
	m := toPolicyModel(p)
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.Account}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":        m.Account,
			"windows":    m.Windows,
			"active":     m.Active,
			"created_at": m.CreatedAt,
			"updated_at": m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("escrow/mongo: upsert policy: %w", err)
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, account common.Address) (*limits.Policy, error) {
	var m policyModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": account.Hex()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, escrow.ErrLimitsNotFound
		}
		return nil, fmt.Errorf("escrow/mongo: get policy: %w", err)
	}
	return fromPolicyModel(&m)
}

func (s *Store) SetPolicyActive(ctx context.Context, account common.Address, active bool) error {
	res, err := s.mdb.NewUpdate((*policyModel)(nil)).
		Filter(bson.M{"_id": account.Hex()}).
		Set("active", active).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("escrow/mongo: set policy active: %w", err)
	}
	if res.MatchedCount() == 0 {
		return escrow.ErrLimitsNotFound
	}
	return nil
}

func (s *Store) ApproveSpender(ctx context.Context, account, spender common.Address) error {
	key := spenderKey(account, spender)
	_, err := s.mdb.NewUpdate((*spenderModel)(nil)).
		Filter(bson.M{"_id": key}).
		SetUpdate(bson.M{"$setOnInsert": bson.M{
			"_id":        key,
			"account":    account.Hex(),
			"spender":    spender.Hex(),
			"created_at": now(),
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("escrow/mongo: approve spender: %w", err)
	}
	return nil
}

func (s *Store) RevokeSpender(ctx context.Context, account, spender common.Address) error {
	_, err := s.mdb.NewDelete((*spenderModel)(nil)).
		Filter(bson.M{"_id": spenderKey(account, spender)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("escrow/mongo: revoke spender: %w", err)
	}
	return nil
}

func (s *Store) IsApprovedSpender(ctx context.Context, account, spender common.Address) (bool, error) {
	var m spenderModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": spenderKey(account, spender)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return false, nil
		}
		return false, fmt.Errorf("escrow/mongo: is approved spender: %w", err)
	}
	return true, nil
}

func (s *Store) ListSpenders(ctx context.Context, account common.Address) ([]common.Address, error) {
	var models []spenderModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"account": account.Hex()}).
		Sort(bson.D{{Key: "spender", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("escrow/mongo: list spenders: %w", err)
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("escrow/mongo: create service: %w", err)
	}
	return nil
}

func (s *Store) GetService(ctx context.Context, sid id.ServiceID) (*directory.Service, error) {
	var m serviceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": sid.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, escrow.ErrServiceNotFound
		}
		return nil, fmt.Errorf("escrow/mongo: get service: %w", err)
	}
	return fromServiceModel(&m)
}

func (s *Store) UpdateService(ctx context.Context, svc *directory.Service) error {
	m := toServiceModel(svc)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("escrow/mongo: update service: %w", err)
	}
	if res.MatchedCount() == 0 {
		return escrow.ErrServiceNotFound
	}
	return nil
}

func (s *Store) ListServices(ctx context.Context, opts directory.ListOpts) ([]*directory.Service, error) {
	var models []serviceModel

	filter := bson.M{}
	if opts.ActiveOnly {
		filter["active"] = true
	}
	if opts.VerifiedOnly {
		filter["verified"] = true
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("escrow/mongo: list services: %w", err)
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
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"provider": provider.Hex()}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("escrow/mongo: list services by provider: %w", err)
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
	res, err := s.mdb.NewUpdate((*serviceModel)(nil)).
		Filter(bson.M{"_id": sid.String(), "active": true}).
		Set("total_requests", int64(svc.TotalRequests)).
		Set("total_revenue", svc.TotalRevenue.String()).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("escrow/mongo: record service request: %w", err)
	}
	if res.MatchedCount() == 0 {
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all escrow collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colPayments: {
			{Keys: bson.D{{Key: "payer", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "payee", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		colStats: {},
		colPolicies: {
			{Keys: bson.D{{Key: "active", Value: 1}}},
		},
		colSpenders: {
			{Keys: bson.D{{Key: "account", Value: 1}, {Key: "spender", Value: 1}}},
		},
		colServices: {
			{Keys: bson.D{{Key: "provider", Value: 1}}},
			{Keys: bson.D{{Key: "active", Value: 1}}},
			{Keys: bson.D{{Key: "verified", Value: 1}}},
		},
	}
}
