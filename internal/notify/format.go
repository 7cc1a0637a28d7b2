package notify

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"burnscope/internal/model"
)

var windowLabels = map[time.Duration]string{
	24 * time.Hour:      "24 hours",
	7 * 24 * time.Hour:  "7 days",
	30 * 24 * time.Hour: "30 days",
}

// FormatAlert renders one burn alert as plain text: the burned amount with
// its USD value when a price was resolved, the rolling totals, and an
// explorer link for the transaction.
func FormatAlert(ev model.BurnEvent, totals map[time.Duration]model.WindowTotals, symbol, explorerURL string) string {
	var b strings.Builder

	b.WriteString("🔥 ")
	b.WriteString(formatAmount(ev.Amount))
	b.WriteString(" ")
	b.WriteString(symbol)
	if ev.PriceUSD != nil {
		b.WriteString(" ($")
		b.WriteString(formatAmount(ev.USDValue()))
		b.WriteString(")")
	}

	for _, window := range model.DefaultWindows {
		sums, ok := totals[window]
		if !ok {
			continue
		}
		b.WriteString("\n📊 ")
		b.WriteString(FormatWindowLine(window, sums, symbol))
	}

	b.WriteString("\n🔗 View on Solscan: ")
	b.WriteString(strings.TrimRight(explorerURL, "/"))
	b.WriteString("/tx/")
	b.WriteString(ev.Signature)

	return b.String()
}

// FormatWindowLine renders one rolling-window line, e.g.
// "24 hours: 1,234.50 RNDR ($987.00)".
func FormatWindowLine(window time.Duration, sums model.WindowTotals, symbol string) string {
	return windowLabel(window) + ": " + formatAmount(sums.Amount) + " " + symbol +
		" ($" + formatAmount(sums.USD) + ")"
}

func windowLabel(window time.Duration) string {
	if label, ok := windowLabels[window]; ok {
		return label
	}
	return window.String()
}

// formatAmount renders a decimal with two fraction digits and thousands
// separators, e.g. 1234567.8 -> "1,234,567.80".
func formatAmount(d decimal.Decimal) string {
	text := d.StringFixed(2)

	negative := strings.HasPrefix(text, "-")
	if negative {
		text = text[1:]
	}

	intPart := text
	fracPart := ""
	if dot := strings.IndexByte(text, '.'); dot >= 0 {
		intPart = text[:dot]
		fracPart = text[dot:]
	}

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	b.WriteString(fracPart)
	return b.String()
}
