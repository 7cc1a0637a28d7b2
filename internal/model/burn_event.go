package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BurnEvent is one deposit into the watched burn address, keyed by the
// transaction signature. Immutable once recorded.
type BurnEvent struct {
	Signature string           `json:"signature"`
	Timestamp int64            `json:"timestamp"`
	Amount    decimal.Decimal  `json:"amount"`
	PriceUSD  *decimal.Decimal `json:"price_usd,omitempty"`
}

// Time returns the event timestamp as UTC time.
func (e BurnEvent) Time() time.Time {
	return time.Unix(e.Timestamp, 0).UTC()
}

// USDValue returns amount * price, or zero when no price was resolved.
func (e BurnEvent) USDValue() decimal.Decimal {
	if e.PriceUSD == nil {
		return decimal.Zero
	}
	return e.Amount.Mul(*e.PriceUSD)
}
