package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a fixed-point decimal with at most 6 fractional digits,
// matching the NUMERIC(20,6) columns in the store. All balance and
// amount arithmetic goes through this type; binary floating point is
// never used for money.
type Amount struct {
	d decimal.Decimal
}

// MaxScale is the number of fractional digits the store preserves.
// MaxIntegerDigits is what remains of NUMERIC(20,6) before the point.
const (
	MaxScale         = 6
	MaxIntegerDigits = 14
)

var (
	ErrTooPrecise = errors.New("amount has more than 6 fractional digits")
	ErrTooLarge   = errors.New("amount has more than 14 integer digits")

	// 10^14, the first magnitude the store cannot hold.
	maxMagnitude = decimal.New(1, MaxIntegerDigits)
)

func Zero() Amount { return Amount{} }

// FromDecimal wraps d without scale checks. Intended for values read
// back from the store, which are already NUMERIC(20,6).
func FromDecimal(d decimal.Decimal) Amount { return Amount{d: d} }

// Parse accepts a decimal string ("12.5", "100").
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	if d.Exponent() < -MaxScale {
		return Amount{}, ErrTooPrecise
	}
	if d.Abs().Cmp(maxMagnitude) >= 0 {
		return Amount{}, ErrTooLarge
	}
	return Amount{d: d}, nil
}

// MustParse is for tests and seed data only.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Decimal() decimal.Decimal { return a.d }
func (a Amount) String() string           { return a.d.String() }

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

func (a Amount) Cmp(b Amount) int    { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }
func (a Amount) Positive() bool      { return a.d.IsPositive() }
func (a Amount) Negative() bool      { return a.d.IsNegative() }
func (a Amount) IsZero() bool        { return a.d.IsZero() }

// UnmarshalJSON accepts a JSON number or a numeric string; both arrive
// with exact decimal digits, never through float64.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return errors.New("amount must not be null")
	}
	if len(s) >= 2 && s[0] == '"' {
		var inner string
		if err := json.Unmarshal(b, &inner); err != nil {
			return err
		}
		s = inner
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON emits a quoted decimal string so clients never round the
// value through a float.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.d.String())
}

// Scan implements sql.Scanner for NUMERIC columns.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return err
		}
		*a = Amount{d: d}
		return nil
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return err
		}
		*a = Amount{d: d}
		return nil
	case int64:
		*a = Amount{d: decimal.NewFromInt(v)}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into money.Amount", src)
	}
}

// Value implements driver.Valuer; amounts travel to the store as exact
// decimal strings.
func (a Amount) Value() (driver.Value, error) {
	return a.d.String(), nil
}
