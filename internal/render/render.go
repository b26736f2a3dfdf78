package render

import (
	"fmt"
	"math"
	"strings"

	"indexticker/internal/sources"
)

// MaxLabelLen is the destination-side limit on a visible label (Discord caps
// nicknames at 32 characters).
const MaxLabelLen = 32

const (
	markerUp      = "🟢"
	markerDown    = "🔴"
	markerUnknown = "⚪"
)

// StatusUnavailable is the fixed status shown for a failed cycle, so
// operators can tell the loop is alive even when data is missing.
const StatusUnavailable = "quotes: error"

// Label renders a quote into the destination label: currency-formatted price
// plus a marker for the sign of the 1-day change. Zero counts as up; a quote
// without a change gets the neutral marker. The result never exceeds
// MaxLabelLen.
func Label(q sources.Quote) string {
	marker := markerUnknown
	if q.ChangePct != nil {
		if *q.ChangePct >= 0 {
			marker = markerUp
		} else {
			marker = markerDown
		}
	}
	label := "$" + formatWithCommas(q.Price, 2) + " " + marker
	return truncate(label, MaxLabelLen)
}

// Status renders the global status line, e.g. "NASDAQ 1D +1.15%".
func Status(name string, q sources.Quote) string {
	if q.ChangePct == nil {
		return name + " 1D n/a"
	}
	return fmt.Sprintf("%s 1D %+.2f%%", name, *q.ChangePct)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// formatWithCommas renders f with grouped thousands and a fixed number of
// decimals, e.g. 17003.1 -> "17,003.10".
func formatWithCommas(f float64, decimals int) string {
	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}
	pow := math.Pow10(decimals)
	f = math.Round(f*pow) / pow
	s := fmt.Sprintf("%.*f", decimals, f)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	b.Grow(len(s) + len(s)/3 + 1)
	b.WriteString(sign)
	if len(intPart) <= 3 {
		b.WriteString(intPart)
	} else {
		rem := len(intPart) % 3
		if rem == 0 {
			rem = 3
		}
		b.WriteString(intPart[:rem])
		for i := rem; i < len(intPart); i += 3 {
			b.WriteByte(',')
			b.WriteString(intPart[i : i+3])
		}
	}
	if decimals > 0 {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
