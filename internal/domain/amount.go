package domain

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	MinAmount = decimal.RequireFromString("0.01")
	MaxAmount = decimal.RequireFromString("99999.99")
)

// Amount is a monetary value with two fractional digits. It is rendered as a
// JSON number with exactly two decimals.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

func MustAmount(s string) Amount {
	return Amount{Decimal: decimal.RequireFromString(s)}
}

// ParseAmount accepts "10.50", "10,50" and "10".
func ParseAmount(s string) (Amount, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if clean == "" {
		return Amount{}, InvalidInput("valor must be numeric")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return Amount{}, WrapError(KindInvalidInput, err, "invalid valor format")
	}
	return Amount{Decimal: d}, nil
}

// Validate enforces the ledger bounds and the two-digit precision.
func (a Amount) Validate() error {
	if !a.IsPositive() {
		return InvalidInput("valor must be positive")
	}
	if a.LessThan(MinAmount) {
		return InvalidInput("valor must be at least %s", MinAmount.StringFixed(2))
	}
	if a.GreaterThan(MaxAmount) {
		return InvalidInput("valor must be at most %s", MaxAmount.StringFixed(2))
	}
	if !a.Equal(a.Round(2)) {
		return InvalidInput("valor must have at most 2 decimal places")
	}
	return nil
}

func (a Amount) String() string {
	return a.StringFixed(2)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.StringFixed(2)), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return InvalidInput("valor is required")
	}
	parsed, err := ParseAmount(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Amount) Value() (driver.Value, error) {
	return a.StringFixed(2), nil
}

func (a *Amount) Scan(value interface{}) error {
	if err := a.Decimal.Scan(value); err != nil {
		return fmt.Errorf("scan amount: %w", err)
	}
	return nil
}
