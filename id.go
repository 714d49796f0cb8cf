package escrow

import "github.com/xraph/escrow/id"

// PaymentID is the deterministic identifier of an escrow payment.
type PaymentID = id.PaymentID

// ID is the identifier type for TypeID-based Escrow entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
