package escrow

import (
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/types"
)

// Re-export common types for convenience so users don't have to import types package.

// Amount is re-exported from types package.
type Amount = types.Amount

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Amount constructors
var (
	NewAmount   = types.NewAmount
	ParseAmount = types.ParseAmount
	Ether       = types.Ether
	ZeroAmount  = types.ZeroAmount
	SumAmounts  = types.SumAmounts
)

// Re-export Entity constructor
var NewEntity = types.NewEntity

// NativeToken is re-exported from the payment package.
var NativeToken = payment.NativeToken
