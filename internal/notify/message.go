// Package notify renders notification decisions and operator alerts into
// structured messages and delivers them over a Discord webhook.
package notify

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aristath/divmon/internal/domain"
	"github.com/aristath/divmon/internal/fx"
)

// Embed colors per notification class.
const (
	ColorGreen  = 0x00FF00 // crossed above
	ColorRed    = 0xFF0000 // crossed below
	ColorYellow = 0xFFFF00 // weekly reminder
	ColorBlue   = 0x3498DB // initial observation
	ColorOrange = 0xE67E22 // operator error-class alerts
)

// Field is one labeled value in a structured message.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Message is the structured notification contract: a title, a color
// classification and an ordered sequence of labeled fields.
type Message struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color"`
	Fields      []Field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
	Footer      *Footer `json:"footer,omitempty"`
}

// Footer is the trailing attribution line of a message.
type Footer struct {
	Text string `json:"text"`
}

var titles = map[domain.NotificationKind]string{
	domain.KindInitial:      "👀 Monitoring started",
	domain.KindInitialAbove: "🚀 Monitoring started above threshold",
	domain.KindCrossedAbove: "🚀 Yield crossed above threshold!",
	domain.KindCrossedBelow: "📉 Yield dropped below threshold",
	domain.KindReminder:     "📌 Weekly reminder",
}

var colors = map[domain.NotificationKind]int{
	domain.KindInitial:      ColorBlue,
	domain.KindInitialAbove: ColorGreen,
	domain.KindCrossedAbove: ColorGreen,
	domain.KindCrossedBelow: ColorRed,
	domain.KindReminder:     ColorYellow,
}

// DecisionMessage renders a notification decision into a structured message.
// All numeric formatting (two-decimal percentages, whole-yen amounts) happens
// here, at the presentation boundary.
func DecisionMessage(d domain.Decision, displayName string, rate fx.Rate, base, quote string) Message {
	baseSym, quoteSym := currencySymbol(base), currencySymbol(quote)
	fields := []Field{
		{Name: "📊 Dividend yield", Value: fmt.Sprintf("**%.2f%%**", d.Yield), Inline: true},
		{Name: "🎯 Threshold", Value: fmt.Sprintf("%.2f%%", d.Threshold), Inline: true},
		{Name: fmt.Sprintf("💵 Price (%s)", base), Value: fmt.Sprintf("%s%.2f", baseSym, d.ReferencePrice), Inline: true},
		{Name: fmt.Sprintf("💴 Price (%s)", quote), Value: quoteSym + groupThousands(rate.Convert(d.ReferencePrice)), Inline: true},
		{Name: fmt.Sprintf("💰 Annual dividend (%s)", base), Value: fmt.Sprintf("%s%.2f", baseSym, d.Distribution), Inline: true},
		{Name: fmt.Sprintf("💰 Annual dividend (%s)", quote), Value: quoteSym + groupThousands(rate.Convert(d.Distribution)), Inline: true},
		{Name: "🌐 FX rate", Value: fxValue(rate, base, quote), Inline: false},
		{Name: "📝 Detail", Value: d.Reason, Inline: false},
	}

	return Message{
		Title:       fmt.Sprintf("%s - %s", titles[d.Kind], d.Ticker),
		Description: fmt.Sprintf("**%s**", displayName),
		Color:       colors[d.Kind],
		Fields:      fields,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Footer:      &Footer{Text: "divmon yield monitor"},
	}
}

// OperatorMessage renders an error-class alert for the operator: skipped
// backfill years, full-gap failures, degraded FX precision, fetch failures.
func OperatorMessage(title string, lines []Field) Message {
	return Message{
		Title:     "⚠️ " + title,
		Color:     ColorOrange,
		Fields:    lines,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Footer:    &Footer{Text: "divmon yield monitor"},
	}
}

func fxValue(rate fx.Rate, base, quote string) string {
	v := fmt.Sprintf("1 %s = %.2f %s", base, rate.Value, quote)
	if rate.Degraded {
		v += " (fixed fallback rate, approximate)"
	}
	return v
}

// currencySymbol maps common currency codes to their display symbol.
func currencySymbol(code string) string {
	switch code {
	case "USD":
		return "$"
	case "JPY":
		return "¥"
	case "EUR":
		return "€"
	case "GBP":
		return "£"
	default:
		return code + " "
	}
}

// groupThousands formats a quote-currency amount with comma separators and
// no decimals.
func groupThousands(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)

	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}

	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
