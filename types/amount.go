package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// ErrOverflow is returned when amount arithmetic would exceed 2^256-1.
// Amounts never wrap around.
var ErrOverflow = errors.New("allowance: arithmetic overflow")

// Amount is a native-value quantity in the smallest unit of the chain
// (wei, planck, ...). It is a 256-bit unsigned integer held by value, so
// copies never alias.
//
// Examples:
//   - NewAmount(300)                       = 300 base units
//   - MustParseAmount("200000000000000000") = 0.2 of an 18-decimal coin
//
//nolint:recvcheck // Value receivers for arithmetic, pointer receivers for decoding.
type Amount struct {
	v uint256.Int
}

// NewAmount creates an Amount from a uint64.
func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// Zero returns the zero Amount.
func Zero() Amount { return Amount{} }

// MaxAmount returns 2^256-1.
func MaxAmount() Amount {
	var a Amount
	a.v.SetAllOne()
	return a
}

// ParseAmount parses a base-10 string. Leading/trailing spaces are trimmed.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("amount: parse %q: empty string", s)
	}

	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("amount: parse %q: %w", s, err)
	}

	return Amount{v: *v}, nil
}

// MustParseAmount is like ParseAmount but panics on error. Use for constants.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err.Error())
	}
	return a
}

// AmountFromBig converts a big.Int. Negative or oversized values are rejected.
func AmountFromBig(b *big.Int) (Amount, error) {
	if b == nil {
		return Amount{}, nil
	}
	if b.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount: negative value %s", b)
	}

	v, overflow := uint256.FromBig(b)
	if overflow {
		return Amount{}, ErrOverflow
	}

	return Amount{v: *v}, nil
}

// Arithmetic

// Add returns a+b, or ErrOverflow if the sum does not fit in 256 bits.
func (a Amount) Add(b Amount) (Amount, error) {
	var r Amount
	if _, overflow := r.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrOverflow
	}
	return r, nil
}

// SaturatingSub returns a-b, or zero when b > a.
func (a Amount) SaturatingSub(b Amount) Amount {
	if a.v.Lt(&b.v) {
		return Amount{}
	}
	var r Amount
	r.v.Sub(&a.v, &b.v)
	return r
}

// Comparison

// Cmp returns -1, 0 or +1 depending on whether a is less than, equal to
// or greater than b.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// GreaterThan reports a > b.
func (a Amount) GreaterThan(b Amount) bool { return a.v.Gt(&b.v) }

// LessThan reports a < b.
func (a Amount) LessThan(b Amount) bool { return a.v.Lt(&b.v) }

// Equal reports a == b.
func (a Amount) Equal(b Amount) bool { return a.v.Eq(&b.v) }

// IsZero reports a == 0.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Conversion

// Uint256 returns a fresh copy of the underlying integer.
func (a Amount) Uint256() *uint256.Int { return a.v.Clone() }

// Big returns the value as a new big.Int.
func (a Amount) Big() *big.Int { return a.v.ToBig() }

// Uint64 returns the low 64 bits and whether the value fits in them.
func (a Amount) Uint64() (uint64, bool) { return a.v.Uint64(), a.v.IsUint64() }

// String returns the base-10 representation.
func (a Amount) String() string { return a.v.Dec() }

// FormatUnits renders the amount in whole coins for a coin with the given
// number of decimals: FormatUnits(18) of 200000000000000000 is "0.2".
// Trailing fractional zeros are dropped.
func (a Amount) FormatUnits(decimals uint8) string {
	if decimals == 0 {
		return a.String()
	}

	var divisor, major, minor uint256.Int
	divisor.Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	major.DivMod(&a.v, &divisor, &minor)

	if minor.IsZero() {
		return major.Dec()
	}

	frac := minor.Dec()
	if pad := int(decimals) - len(frac); pad > 0 {
		frac = strings.Repeat("0", pad) + frac
	}
	frac = strings.TrimRight(frac, "0")

	return major.Dec() + "." + frac
}

// Encoding

// MarshalText implements encoding.TextMarshaler (base-10).
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes the amount as a quoted base-10 string, since
// 256-bit values do not survive a round trip through JSON numbers.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.v.Dec())
}

// UnmarshalJSON accepts either a quoted base-10 string or a bare number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*a = Amount{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	return a.UnmarshalText([]byte(s))
}

// Value implements driver.Valuer. Amounts are stored as decimal text so
// every backend can hold the full 256-bit range.
func (a Amount) Value() (driver.Value, error) {
	return a.v.Dec(), nil
}

// Scan implements sql.Scanner.
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
			return fmt.Errorf("amount: cannot scan negative value %d", v)
		}
		*a = NewAmount(uint64(v))
		return nil
	default:
		return fmt.Errorf("amount: cannot scan %T into Amount", src)
	}
}
