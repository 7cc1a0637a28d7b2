package indexer

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// TokenTransfer is a loosely-typed transfer record. Field names and value
// types vary across provider versions, so amounts are kept untyped and
// destination fields carry every alias the API has been seen to use.
type TokenTransfer struct {
	TokenAmount    any    `json:"tokenAmount,omitempty"`
	Amount         any    `json:"amount,omitempty"`
	Decimals       any    `json:"decimals,omitempty"`
	Mint           string `json:"mint,omitempty"`
	ToTokenAccount string `json:"toTokenAccount,omitempty"`
	ToUserAccount  string `json:"toUserAccount,omitempty"`
	To             string `json:"to,omitempty"`
}

// MatchesDestination reports whether any destination alias equals addr.
// The upstream API has used the token-account and owner-account forms for
// the same logical destination, so both are accepted.
func (t TokenTransfer) MatchesDestination(addr string) bool {
	if addr == "" {
		return false
	}
	for _, field := range []string{t.ToTokenAccount, t.ToUserAccount, t.To} {
		if strings.TrimSpace(field) == addr {
			return true
		}
	}
	return false
}

// Qualifies reports whether the transfer is a deposit of interest: its
// destination resolves to the watch address, and, when both sides carry a
// mint, the mints agree. Payload shapes that omit the mint still qualify.
func (t TokenTransfer) Qualifies(watchAddr, mint string) bool {
	if !t.MatchesDestination(watchAddr) {
		return false
	}
	if mint != "" && t.Mint != "" && t.Mint != mint {
		return false
	}
	return true
}

// ExtractAmount returns the transfer amount in human token units, or zero
// when the record cannot be parsed. Malformed input is not an error; it
// just is not a transfer of interest. Three shapes are handled: an
// already-decimal tokenAmount, an integer raw amount plus decimal places,
// and a UI-formatted string amount.
func ExtractAmount(t TokenTransfer) decimal.Decimal {
	if amount, ok := parseDecimal(t.TokenAmount); ok && amount.Sign() > 0 {
		return amount
	}

	raw, rawOK := parseInt(t.Amount)
	places, placesOK := parseInt(t.Decimals)
	if rawOK && placesOK && places > 0 && places <= 38 {
		return decimal.New(raw, int32(-places))
	}

	// A string amount is UI-formatted, not a base-unit count; numeric
	// amounts without a usable decimals field are unconvertible.
	if s, isString := t.Amount.(string); isString {
		if amount, ok := parseDecimal(s); ok && amount.Sign() > 0 {
			return amount
		}
	}
	return decimal.Zero
}

func parseDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, false
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if cleaned == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(cleaned)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	default:
		return decimal.Zero, false
	}
}

func parseInt(value any) (int64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		d, ok := parseDecimal(v)
		if !ok || !d.IsInteger() {
			return 0, false
		}
		return d.IntPart(), true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}
