package sqlite

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"

	"github.com/xraph/escrow/directory"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/limits"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/types"
)

// Amounts are stored as decimal TEXT columns: SQLite's numeric affinity
// would round 256-bit values through float64.

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:escrow_payments"`

	ID          string            `grove:"id,pk"`
	Payer       string            `grove:"payer"`
	Payee       string            `grove:"payee"`
	Token       string            `grove:"token"`
	Amount      string            `grove:"amount"`
	RequestHash string            `grove:"request_hash"`
	Sequence    int64             `grove:"sequence"`
	Status      string            `grove:"status"`
	CompletedAt *time.Time        `grove:"completed_at"`
	RefundedAt  *time.Time        `grove:"refunded_at"`
	Metadata    map[string]string `grove:"metadata,type:json"`
	CreatedAt   time.Time         `grove:"created_at"`
	UpdatedAt   time.Time         `grove:"updated_at"`
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

	Address       string `grove:"address,pk"`
	TotalPaid     string `grove:"total_paid"`
	TotalReceived string `grove:"total_received"`
	Sequence      int64  `grove:"sequence"`
}

func toAccountStatsModel(st *payment.AccountStats) *accountStatsModel {
	return &accountStatsModel{
		Address:       st.Address.Hex(),
		TotalPaid:     st.TotalPaid.String(),
		TotalReceived: st.TotalReceived.String(),
		Sequence:      int64(st.Sequence),
	}
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

type policyModel struct {
	grove.BaseModel `grove:"table:escrow_policies"`

	Account   string          `grove:"account,pk"`
	Windows   json.RawMessage `grove:"windows,type:json"`
	Active    bool            `grove:"active"`
	CreatedAt time.Time       `grove:"created_at"`
	UpdatedAt time.Time       `grove:"updated_at"`
}

func toPolicyModel(p *limits.Policy) *policyModel {
	windows, _ := json.Marshal(p.Windows) //nolint:errcheck // best-effort

	return &policyModel{
		Account:   p.Account.Hex(),
		Windows:   windows,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func fromPolicyModel(m *policyModel) (*limits.Policy, error) {
	var windows [limits.NumTiers]limits.Window
	if len(m.Windows) > 0 {
		if err := json.Unmarshal(m.Windows, &windows); err != nil {
			return nil, err
		}
	}

	return &limits.Policy{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Account: common.HexToAddress(m.Account),
		Windows: windows,
		Active:  m.Active,
	}, nil
}

// ==================== Spender models ====================

type spenderModel struct {
	grove.BaseModel `grove:"table:escrow_approved_spenders"`

	Account   string    `grove:"account,pk"`
	Spender   string    `grove:"spender,pk"`
	CreatedAt time.Time `grove:"created_at"`
}

// ==================== Service models ====================

type serviceModel struct {
	grove.BaseModel `grove:"table:escrow_services"`

	ID             string            `grove:"id,pk"`
	Provider       string            `grove:"provider"`
	Name           string            `grove:"name"`
	Description    string            `grove:"description"`
	Endpoint       string            `grove:"endpoint"`
	PaymentAddress string            `grove:"payment_address"`
	BasePrice      string            `grove:"base_price"`
	Token          string            `grove:"token"`
	Active         bool              `grove:"active"`
	Verified       bool              `grove:"verified"`
	TotalRequests  int64             `grove:"total_requests"`
	TotalRevenue   string            `grove:"total_revenue"`
	Tiers          json.RawMessage   `grove:"tiers,type:json"`
	Metadata       map[string]string `grove:"metadata,type:json"`
	CreatedAt      time.Time         `grove:"created_at"`
	UpdatedAt      time.Time         `grove:"updated_at"`
}

func toServiceModel(svc *directory.Service) *serviceModel {
	tiers, _ := json.Marshal(svc.Tiers) //nolint:errcheck // best-effort

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
	if len(m.Tiers) > 0 {
		_ = json.Unmarshal(m.Tiers, &tiers) //nolint:errcheck // best-effort
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
