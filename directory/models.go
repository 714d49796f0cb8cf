// Package directory is the service catalog: providers register priced
// endpoints, operators verify them, and completed requests accumulate
// revenue counters per service.
package directory

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

// Service is one registered provider endpoint with its base price and
// lifetime request/revenue counters.
type Service struct {
	types.Entity
	ID             id.ServiceID      `json:"id"`
	Provider       common.Address    `json:"provider"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Endpoint       string            `json:"endpoint"`
	PaymentAddress common.Address    `json:"payment_address"`
	BasePrice      types.Amount      `json:"base_price"`
	Token          common.Address    `json:"token"`
	Active         bool              `json:"active"`
	Verified       bool              `json:"verified"`
	TotalRequests  uint64            `json:"total_requests"`
	TotalRevenue   types.Amount      `json:"total_revenue"`
	Tiers          []PricingTier     `json:"tiers,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// PricingTier is a volume pricing option on a service: a named bundle of
// requests valid for a fixed duration at a flat price.
type PricingTier struct {
	Name         string        `json:"name"`
	Price        types.Amount  `json:"price"`
	RequestLimit uint64        `json:"request_limit"`
	Validity     time.Duration `json:"validity"`
}
