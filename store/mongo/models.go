package mongo

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"

	"github.com/xraph/escrow/directory"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/limits"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/types"
)

// Amounts are stored as decimal strings: BSON has no lossless 256-bit
// integer representation.

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:escrow_payments"`

	ID          string            `grove:"id,pk"        bson:"_id"`
	Payer       string            `grove:"payer"        bson:"payer"`
	Payee       string            `grove:"payee"        bson:"payee"`
	Token       string            `grove:"token"        bson:"token"`
	Amount      string            `grove:"amount"       bson:"amount"`
	RequestHash string            `grove:"request_hash" bson:"request_hash"`
	Sequence    int64             `grove:"sequence"     bson:"sequence"`
	Status      string            `grove:"status"       bson:"status"`
	CompletedAt *time.Time        `grove:"completed_at" bson:"completed_at,omitempty"`
	RefundedAt  *time.Time        `grove:"refunded_at"  bson:"refunded_at,omitempty"`
	Metadata    map[string]string `grove:"metadata"     bson:"metadata,omitempty"`
	CreatedAt   time.Time         `grove:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time         `grove:"updated_at"   bson:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:          p.ID.String(),
		Payer:       p.Payer.Hex(),
		Payee:       p.Payee.Hex(),
		Token:       p.Token.Hex(),
		Amount:      p.Amount.String(),
		RequestHash: p.RequestHash.Hex(),
		Sequence:    int64(p.Sequence),
		Status:      string(p.Status),
		CompletedAt: p.CompletedAt,
		RefundedAt:  p.RefundedAt,
		Metadata:    p.Metadata,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	pid, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	amount, err := types.ParseAmount(m.Amount)
	if err != nil {
		return nil, err
	}

	return &payment.Payment{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          pid,
		Payer:       common.HexToAddress(m.Payer),
		Payee:       common.HexToAddress(m.Payee),
		Token:       common.HexToAddress(m.Token),
		Amount:      amount,
		RequestHash: common.HexToHash(m.RequestHash),
		Sequence:    uint64(m.Sequence),
		Status:      payment.Status(m.Status),
		CompletedAt: m.CompletedAt,
		RefundedAt:  m.RefundedAt,
		Metadata:    m.Metadata,
	}, nil
}

// ==================== Account stats models ====================

type accountStatsModel struct {
	grove.BaseModel `grove:"table:escrow_account_stats"`

	Address       string `grove:"address,pk"     bson:"_id"`
	TotalPaid     string `grove:"total_paid"     bson:"total_paid"`
	TotalReceived string `grove:"total_received" bson:"total_received"`
	Sequence      int64  `grove:"sequence"       bson:"sequence"`
}

func fromAccountStatsModel(m *accountStatsModel) (*payment.AccountStats, error) {
	totalPaid, err := types.ParseAmount(m.TotalPaid)
	if err != nil {
		return nil, err
	}
	totalReceived, err := types.ParseAmount(m.TotalReceived)
	if err != nil {
		return nil, err
	}

	return &payment.AccountStats{
		Address:       common.HexToAddress(m.Address),
		TotalPaid:     totalPaid,
		TotalReceived: totalReceived,
		Sequence:      uint64(m.Sequence),
	}, nil
}

// ==================== Policy models ====================

type windowModel struct {
	Limit   string    `bson:"limit"`
	Spent   string    `bson:"spent"`
	ResetAt time.Time `bson:"reset_at"`
}

type policyModel struct {
	grove.BaseModel `grove:"table:escrow_policies"`

	Account   string        `grove:"account,pk" bson:"_id"`
	Windows   []windowModel `grove:"windows"    bson:"windows"`
	Active    bool          `grove:"active"     bson:"active"`
	CreatedAt time.Time     `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time     `grove:"updated_at" bson:"updated_at"`
}

func toPolicyModel(p *limits.Policy) *policyModel {
	windows := make([]windowModel, limits.NumTiers)
	for i, w := range p.Windows {
		windows[i] = windowModel{
			Limit:   w.Limit.String(),
			Spent:   w.Spent.String(),
			ResetAt: w.ResetAt,
		}
	}

	return &policyModel{
		Account:   p.Account.Hex(),
		Windows:   windows,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func fromPolicyModel(m *policyModel) (*limits.Policy, error) {
	p := &limits.Policy{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Account: common.HexToAddress(m.Account),
		Active:  m.Active,
	}

	for i := 0; i < limits.NumTiers && i < len(m.Windows); i++ {
		limit, err := types.ParseAmount(m.Windows[i].Limit)
		if err != nil {
			return nil, err
		}
		spent, err := types.ParseAmount(m.Windows[i].Spent)
		if err != nil {
			return nil, err
		}
		p.Windows[i] = limits.Window{
			Limit:   limit,
			Spent:   spent,
			ResetAt: m.Windows[i].ResetAt,
		}
	}
	return p, nil
}

// ==================== Spender models ====================

type spenderModel struct {
	grove.BaseModel `grove:"table:escrow_approved_spenders"`

	ID        string    `grove:"id,pk"      bson:"_id"`
	Account   string    `grove:"account"    bson:"account"`
	Spender   string    `grove:"spender"    bson:"spender"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
}

// spenderKey builds the composite document id for an approval pair.
func spenderKey(account, spender common.Address) string {
	return account.Hex() + ":" + spender.Hex()
}

// ==================== Service models ====================

type pricingTierModel struct {
	Name         string        `bson:"name"`
	Price        string        `bson:"price"`
	RequestLimit int64         `bson:"request_limit"`
	Validity     time.Duration `bson:"validity"`
}

type serviceModel struct {
	grove.BaseModel `grove:"table:escrow_services"`

	ID             string             `grove:"id,pk"           bson:"_id"`
	Provider       string             `grove:"provider"        bson:"provider"`
	Name           string             `grove:"name"            bson:"name"`
	Description    string             `grove:"description"     bson:"description"`
	Endpoint       string             `grove:"endpoint"        bson:"endpoint"`
	PaymentAddress string             `grove:"payment_address" bson:"payment_address"`
	BasePrice      string             `grove:"base_price"      bson:"base_price"`
	Token          string             `grove:"token"           bson:"token"`
	Active         bool               `grove:"active"          bson:"active"`
	Verified       bool               `grove:"verified"        bson:"verified"`
	TotalRequests  int64              `grove:"total_requests"  bson:"total_requests"`
	TotalRevenue   string             `grove:"total_revenue"   bson:"total_revenue"`
	Tiers          []pricingTierModel `grove:"tiers"           bson:"tiers,omitempty"`
	Metadata       map[string]string  `grove:"metadata"        bson:"metadata,omitempty"`
	CreatedAt      time.Time          `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time          `grove:"updated_at"      bson:"updated_at"`
}

func toServiceModel(svc *directory.Service) *serviceModel {
	tiers := make([]pricingTierModel, len(svc.Tiers))
	for i, t := range svc.Tiers {
		tiers[i] = pricingTierModel{
			Name:         t.Name,
			Price:        t.Price.String(),
			RequestLimit: int64(t.RequestLimit),
			Validity:     t.Validity,
		}
	}

	return &serviceModel{
		ID:             svc.ID.String(),
		Provider:       svc.Provider.Hex(),
		Name:           svc.Name,
		Description:    svc.Description,
		Endpoint:       svc.Endpoint,
		PaymentAddress: svc.PaymentAddress.Hex(),
		BasePrice:      svc.BasePrice.String(),
		Token:          svc.Token.Hex(),
		Active:         svc.Active,
		Verified:       svc.Verified,
		TotalRequests:  int64(svc.TotalRequests),
		TotalRevenue:   svc.TotalRevenue.String(),
		Tiers:          tiers,
		Metadata:       svc.Metadata,
		CreatedAt:      svc.CreatedAt,
		UpdatedAt:      svc.UpdatedAt,
	}
}

func fromServiceModel(m *serviceModel) (*directory.Service, error) {
	sid, err := id.ParseServiceID(m.ID)
	if err != nil {
		return nil, err
	}
	basePrice, err := types.ParseAmount(m.BasePrice)
	if err != nil {
		return nil, err
	}
	totalRevenue, err := types.ParseAmount(m.TotalRevenue)
	if err != nil {
		return nil, err
	}

	var tiers []directory.PricingTier
	for _, t := range m.Tiers {
		price, err := types.ParseAmount(t.Price)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, directory.PricingTier{
			Name:         t.Name,
			Price:        price,
			RequestLimit: uint64(t.RequestLimit),
			Validity:     t.Validity,
		})
	}

	return &directory.Service{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             sid,
		Provider:       common.HexToAddress(m.Provider),
		Name:           m.Name,
		Description:    m.Description,
		Endpoint:       m.Endpoint,
		PaymentAddress: common.HexToAddress(m.PaymentAddress),
		BasePrice:      basePrice,
		Token:          common.HexToAddress(m.Token),
		Active:         m.Active,
		Verified:       m.Verified,
		TotalRequests:  uint64(m.TotalRequests),
		TotalRevenue:   totalRevenue,
		Tiers:          tiers,
		Metadata:       m.Metadata,
	}, nil
}
