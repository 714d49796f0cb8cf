// Package id defines identity types for all Escrow entities.
//
// Payments use deterministic, content-derived identifiers: a PaymentID is the
// keccak-256 hash of the canonical packed encoding of the payment's fields
// plus a per-payer sequence number, so an id is collision-resistant and
// unpredictable before the payment exists, yet externally verifiable after.
//
// Directory services and journal entries use TypeID (UUIDv7-based) ids with a
// prefix identifying the entity type, K-sortable and URL-safe in the format
// "prefix_suffix".
package id

import (
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.jetify.com/typeid/v2"

	"github.com/xraph/escrow/types"
)

// ──────────────────────────────────────────────────
// PaymentID (content-derived)
// ──────────────────────────────────────────────────

// PaymentID is the deterministic identifier of an escrow payment.
// It is a 32-byte keccak-256 digest, rendered as 0x-prefixed hex.
type PaymentID struct {
	hash common.Hash
}

// NilPaymentID is the zero-value PaymentID. No created payment carries it;
// it signals "no id" in error returns.
var NilPaymentID PaymentID

// ComputePaymentID derives the id for a payment from its creation tuple.
// seq is the payer's payment sequence number at creation time; it
// disambiguates otherwise-identical (payer, payee, amount, token,
// requestHash) tuples.
//
// The encoding is packed and order-stable: payer ‖ payee ‖ token ‖
// amount-as-32-bytes ‖ requestHash ‖ seq-as-8-bytes. Changing it breaks
// external verifiability of existing ids.
func ComputePaymentID(payer, payee, token common.Address, amount types.Amount, requestHash common.Hash, seq uint64) PaymentID {
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)

	var amountBytes [32]byte
	amount.Big().FillBytes(amountBytes[:])

	digest := crypto.Keccak256Hash(
		payer.Bytes(),
		payee.Bytes(),
		token.Bytes(),
		amountBytes[:],
		requestHash.Bytes(),
		seqBytes[:],
	)
	return PaymentID{hash: digest}
}

// PaymentIDFromHash wraps an existing 32-byte digest as a PaymentID.
func PaymentIDFromHash(h common.Hash) PaymentID { return PaymentID{hash: h} }

// ParsePaymentID parses a 0x-prefixed 32-byte hex string into a PaymentID.
func ParsePaymentID(s string) (PaymentID, error) {
	if s == "" {
		return NilPaymentID, fmt.Errorf("id: parse payment id: empty string")
	}
	if len(s) != 2+2*common.HashLength || !strings.HasPrefix(s, "0x") {
		return NilPaymentID, fmt.Errorf("id: parse payment id %q: want 0x-prefixed 32-byte hex", s)
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return NilPaymentID, fmt.Errorf("id: parse payment id %q: %w", s, err)
	}
	return PaymentID{hash: common.BytesToHash(b)}, nil
}

// MustParsePaymentID is like ParsePaymentID but panics on error.
// Use for hardcoded id values.
func MustParsePaymentID(s string) PaymentID {
	parsed, err := ParsePaymentID(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse payment id %q: %v", s, err))
	}
	return parsed
}

// String returns the 0x-prefixed hex representation.
func (p PaymentID) String() string { return p.hash.Hex() }

// Hash returns the underlying 32-byte digest.
func (p PaymentID) Hash() common.Hash { return p.hash }

// IsNil reports whether this id is the zero value.
func (p PaymentID) IsNil() bool { return p.hash == (common.Hash{}) }

// MarshalText implements encoding.TextMarshaler.
func (p PaymentID) MarshalText() ([]byte, error) {
	if p.IsNil() {
		return []byte{}, nil
	}
	return []byte(p.hash.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PaymentID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*p = NilPaymentID
		return nil
	}
	parsed, err := ParsePaymentID(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Value implements driver.Valuer for database storage.
func (p PaymentID) Value() (driver.Value, error) {
	if p.IsNil() {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}
	return p.hash.Hex(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (p *PaymentID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = NilPaymentID
		return nil
	case string:
		if v == "" {
			*p = NilPaymentID
			return nil
		}
		return p.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*p = NilPaymentID
			return nil
		}
		return p.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into PaymentID", src)
	}
}

// ──────────────────────────────────────────────────
// TypeID-based ids (directory, journal)
// ──────────────────────────────────────────────────

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for TypeID-based entity types.
const (
	PrefixService Prefix = "svc" // Directory service
	PrefixEvent   Prefix = "evt" // Journal entry
)

// ID is the identifier type for TypeID-based Escrow entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "svc_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// ServiceID is a type-safe alias for directory service identifiers (prefix: "svc").
type ServiceID = ID

// EventID is a type-safe alias for journal entry identifiers (prefix: "evt").
type EventID = ID

// NewServiceID generates a new unique service ID.
func NewServiceID() ID { return New(PrefixService) }

// NewEventID generates a new unique journal entry ID.
func NewEventID() ID { return New(PrefixEvent) }

// ParseServiceID parses a string and validates the "svc" prefix.
func ParseServiceID(s string) (ID, error) { return ParseWithPrefix(s, PrefixService) }

// ParseEventID parses a string and validates the "evt" prefix.
func ParseEventID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEvent) }

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}
	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil
		return nil
	}
	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil
			return nil
		}
		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil
			return nil
		}
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
