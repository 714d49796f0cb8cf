package payment

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

// Status is the lifecycle state of an escrow payment.
//
// Open is the only non-terminal state. Completed and refunded are terminal
// and mutually exclusive: once a payment reaches either, no further
// transition is possible.
type Status string

const (
	StatusOpen      Status = "open"
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
)

// NativeToken is the token address sentinel for payments in the native
// currency. A payment whose Token equals NativeToken carries no ERC-20
// custody obligations.
var NativeToken = common.Address{}

// Payment is a single escrowed transfer from a payer to a payee.
// Funds are held in escrow while Status is open; CompletePayment releases
// them to the payee, RefundPayment returns them to the payer.
type Payment struct {
	types.Entity
	ID          id.PaymentID      `json:"id"`
	Payer       common.Address    `json:"payer"`
	Payee       common.Address    `json:"payee"`
	Token       common.Address    `json:"token"`
	Amount      types.Amount      `json:"amount"`
	RequestHash common.Hash       `json:"request_hash"`
	Sequence    uint64            `json:"sequence"`
	Status      Status            `json:"status"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	RefundedAt  *time.Time        `json:"refunded_at,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// IsNative reports whether the payment is denominated in the native currency.
func (p *Payment) IsNative() bool {
	return p.Token == NativeToken
}

// IsTerminal reports whether the payment has reached a final state.
func (p *Payment) IsTerminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusRefunded
}

// AccountStats is the running aggregate kept per address: the lifetime
// totals exposed by TotalPaid/TotalReceived and the payer's payment
// sequence counter used for id derivation.
type AccountStats struct {
	Address       common.Address `json:"address"`
	TotalPaid     types.Amount   `json:"total_paid"`
	TotalReceived types.Amount   `json:"total_received"`
	Sequence      uint64         `json:"sequence"`
}
