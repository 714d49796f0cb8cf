// Package types provides common types used across Escrow.
package types

import (
	"database/sql/driver"
	"fmt"
	"math/big"
)

// Amount represents an unsigned asset quantity in the asset's smallest unit
// (wei for the native asset, the token's base unit otherwise). Amounts are
// arbitrary precision — wei-scale values overflow int64 — and are immutable:
// every operation returns a new Amount and never mutates its receiver.
//
// The zero value is a valid zero Amount.
type Amount struct {
	v *big.Int
}

// NewAmount creates an Amount from a non-negative int64.
// It panics if n is negative (programming error).
func NewAmount(n int64) Amount {
	if n < 0 {
		panic(fmt.Sprintf("types: negative amount %d", n))
	}
	return Amount{v: big.NewInt(n)}
}

// NewAmountFromBig creates an Amount from a non-negative big.Int.
// The value is copied; the caller keeps ownership of b.
func NewAmountFromBig(b *big.Int) (Amount, error) {
	if b == nil {
		return Amount{}, fmt.Errorf("types: nil amount")
	}
	if b.Sign() < 0 {
		return Amount{}, fmt.Errorf("types: negative amount %s", b.String())
	}
	return Amount{v: new(big.Int).Set(b)}, nil
}

// ParseAmount parses a base-10 decimal string into an Amount.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, fmt.Errorf("types: parse amount: empty string")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("types: parse amount %q", s)
	}
	return NewAmountFromBig(v)
}

// MustParseAmount is like ParseAmount but panics on error.
// Use for hardcoded values in tests and examples.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Ether creates an Amount of n whole units of the native asset (n * 10^18 wei).
func Ether(n int64) Amount {
	if n < 0 {
		panic(fmt.Sprintf("types: negative amount %d", n))
	}
	wei := new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
	return Amount{v: wei}
}

// ZeroAmount returns the zero Amount.
func ZeroAmount() Amount { return Amount{} }

// Arithmetic operations

// Add returns a + other.
func (a Amount) Add(other Amount) Amount {
	return Amount{v: new(big.Int).Add(a.bigValue(), other.bigValue())}
}

// Sub returns a - other. It panics if other > a: amounts are unsigned and a
// negative result always indicates an accounting bug, never a valid state.
func (a Amount) Sub(other Amount) Amount {
	r := new(big.Int).Sub(a.bigValue(), other.bigValue())
	if r.Sign() < 0 {
		panic(fmt.Sprintf("types: amount underflow: %s - %s", a, other))
	}
	return Amount{v: r}
}

// SaturatingSub returns max(0, a - other).
func (a Amount) SaturatingSub(other Amount) Amount {
	r := new(big.Int).Sub(a.bigValue(), other.bigValue())
	if r.Sign() < 0 {
		return Amount{}
	}
	return Amount{v: r}
}

// Comparison methods

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.v == nil || a.v.Sign() == 0 }

// Equal reports whether both amounts are equal.
func (a Amount) Equal(other Amount) bool { return a.Cmp(other) == 0 }

// LessThan reports whether a < other.
func (a Amount) LessThan(other Amount) bool { return a.Cmp(other) < 0 }

// GreaterThan reports whether a > other.
func (a Amount) GreaterThan(other Amount) bool { return a.Cmp(other) > 0 }

// Cmp compares two amounts, returning -1, 0 or +1.
func (a Amount) Cmp(other Amount) int {
	return a.bigValue().Cmp(other.bigValue())
}

// Big returns a copy of the underlying big.Int value.
func (a Amount) Big() *big.Int { return new(big.Int).Set(a.bigValue()) }

// String returns the base-10 decimal representation.
func (a Amount) String() string { return a.bigValue().String() }

// MarshalText implements encoding.TextMarshaler. Amounts serialize as decimal
// strings: JSON numbers cannot represent 256-bit values losslessly.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = Amount{}
		return nil
	}
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer for database storage.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("types: cannot scan negative amount %d", v)
		}
		*a = NewAmount(v)
		return nil
	default:
		return fmt.Errorf("types: cannot scan %T into Amount", src)
	}
}

// bigValue returns the internal value, treating the zero Amount as 0.
func (a Amount) bigValue() *big.Int {
	if a.v == nil {
		return big.NewInt(0)
	}
	return a.v
}

// SumAmounts returns the sum of the given amounts.
func SumAmounts(values ...Amount) Amount {
	total := Amount{}
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
