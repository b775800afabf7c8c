package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// YesNo maps y/true to "yes", n/false to "no" and n/a or na to "n/a".
// Anything else reports false.
func YesNo(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "true":
		return "yes", true
	case "n", "false":
		return "no", true
	case "n/a", "na":
		return "n/a", true
	}
	return "", false
}

// StrToBool maps y/true and n/false, case-insensitively.
func StrToBool(s string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "true":
		return true, true
	case "n", "false":
		return false, true
	}
	return false, false
}

// FlagToBool converts the exact strings "true" and "false" to booleans and
// returns every other value unchanged.
func FlagToBool(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return v
}

// IntOrNil parses integers, accepting integral float text such as "3.0".
func IntOrNil(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q: %w", s, err)
	}
	n := int64(f)
	return &n, nil
}

// FloatOrNil parses a float; values that are not finite yield nil.
func FloatOrNil(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid float %q: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, nil
	}
	return &f, nil
}

// ValidateDecimal drops every named field from record whose value is not a
// decimal with at most maxDigits digits and places decimal places.
func ValidateDecimal(record map[string]any, fields []string, maxDigits, places int) {
	for _, field := range fields {
		v, ok := record[field]
		if !ok || v == nil {
			continue
		}
		if !validDecimal(v, maxDigits, places) {
			delete(record, field)
		}
	}
}

// ValidateInt drops every named field whose value is not an integer.
func ValidateInt(record map[string]any, fields []string) {
	for _, field := range fields {
		v, ok := record[field]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString {
			if _, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				continue
			}
			delete(record, field)
			continue
		}
		if d, ok := toDecimal(v); ok && d.IsInteger() {
			continue
		}
		delete(record, field)
	}
}

// toDecimal reads the numeric shapes legacy rows arrive in: text, Go
// numbers and pgx numerics. NaN and infinities are not decimals.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case pgtype.Numeric:
		if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromBigInt(n.Int, n.Exp), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	case float32:
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat32(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(n), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		d, err := decimal.NewFromString(fmt.Sprint(n))
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

// validDecimal counts digits the way a numeric(maxDigits, places) column
// does: trailing zeros after the point count as places.
func validDecimal(v any, maxDigits, places int) bool {
	d, ok := toDecimal(v)
	if !ok {
		return false
	}

	coefficient := d.Coefficient()
	digits := len(coefficient.Abs(coefficient).String())
	exp := int(d.Exponent())

	decimals := 0
	switch {
	case exp >= 0:
		digits += exp
	case -exp > digits:
		digits, decimals = -exp, -exp
	default:
		decimals = -exp
	}

	if digits > maxDigits || decimals > places {
		return false
	}
	return digits-decimals <= maxDigits-places
}

// SplitAddress splits a multi-line address into prefix1..prefixN keys,
// keeping at most maxLines non-blank lines by their original position.
func SplitAddress(address, prefix string, maxLines int) map[string]string {
	out := map[string]string{}
	for i, line := range strings.Split(address, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || i+1 > maxLines {
			continue
		}
		out[fmt.Sprintf("%s%d", prefix, i+1)] = line
	}
	return out
}

// SplitList splits s on delimiter dropping empty items; nil when nothing remains.
func SplitList(s, delimiter string) []string {
	var out []string
	for _, item := range strings.Split(s, delimiter) {
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
