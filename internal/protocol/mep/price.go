package mep

import (
	"math"

	"github.com/shopspring/decimal"
)

const PriceExponent = -8

// NoPrice is the wire sentinel for an absent or malformed price.
const NoPrice Price = math.MinInt64

// Price is a fixed-point value scaled by 10^8.
type Price int64

func PriceFromDecimal(d decimal.Decimal) Price {
	return Price(d.Shift(-PriceExponent).IntPart())
}

// ParsePrice converts a decimal string; malformed input yields NoPrice.
func ParsePrice(s string) Price {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return NoPrice
	}
	return PriceFromDecimal(d)
}

func (p Price) Valid() bool {
	return p != NoPrice
}

func (p Price) Decimal() decimal.Decimal {
	if !p.Valid() {
		return decimal.Zero
	}
	return decimal.New(int64(p), PriceExponent)
}

func (p Price) String() string {
	if !p.Valid() {
		return "invalid"
	}
	return p.Decimal().String()
}

func (p Price) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
