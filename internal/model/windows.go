package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultWindows are the trailing windows reported with every alert,
// shortest first.
var DefaultWindows = []time.Duration{
	24 * time.Hour,
	7 * 24 * time.Hour,
	30 * 24 * time.Hour,
}

// WindowTotals holds rolling sums over one trailing window.
type WindowTotals struct {
	Amount decimal.Decimal `json:"amount"`
	USD    decimal.Decimal `json:"usd"`
}
