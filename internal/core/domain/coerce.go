package domain

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// CoercePrice converts loosely typed price data to a non-negative amount.
//
// Anything that is not a finite non-negative number becomes zero.
func CoercePrice(v any) decimal.Decimal {
	var d decimal.Decimal

	switch t := v.(type) {
	case decimal.Decimal:
		d = t
	case bool, nil:
		return decimal.Zero
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	case json.Number:
		parsed, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero
		}
		d = decimal.NewFromFloat(f)
	}

	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParseQuantity reports the integer value of v and whether v was numeric.
//
// Fractional values are truncated.
func ParseQuantity(v any) (int, bool) {
	switch v.(type) {
	case bool, nil:
		return 0, false
	}

	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f > math.MaxInt32 {
		return math.MaxInt32, true
	}
	if f < math.MinInt32 {
		return math.MinInt32, true
	}
	return int(f), true
}

// CoerceQuantity converts loosely typed quantity data to a value >= 1.
func CoerceQuantity(v any) int {
	q, ok := ParseQuantity(v)
	if !ok || q < 1 {
		return 1
	}
	return q
}

// CoerceID normalises catalog ids, which may arrive as numbers or strings.
func CoerceID(v any) string {
	if v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
