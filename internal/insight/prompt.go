package insight

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

const promptHeader = "You are a financial analyst. Based on the latest %s market data below, " +
	"give a short, plain-language insight on the current trend."

// PromptOptions adjusts the prompt template.
type PromptOptions struct {
	AssetName string // defaults to the snapshot asset
	Question  string
}

// FormatPrompt renders the snapshot into the analyst prompt. The output
// depends only on its inputs.
func FormatPrompt(snap *Snapshot, opts PromptOptions) string {
	name := clean(opts.AssetName)
	if name == "" {
		name = displayName(clean(snap.Asset))
	}

	var b strings.Builder
	fmt.Fprintf(&b, promptHeader, name)
	b.WriteString("\n\n")
	b.WriteString("Latest price: " + FormatCurrency(snap.Price) + "\n")
	b.WriteString("Indicators:\n")
	lines := make([]string, 0, len(snap.Values))
	for _, v := range snap.Values {
		lines = append(lines, string(v.KPI)+": "+FormatValue(v))
	}
	b.WriteString(strings.Join(lines, "\n"))

	if q := clean(opts.Question); q != "" {
		b.WriteString("\n\nQuestion: " + q)
	}
	return b.String()
}

// FormatValue renders an indicator value with two decimals, or N/A.
func FormatValue(v IndicatorValue) string {
	if !v.Valid || !finite(v.Value) {
		return "N/A"
	}
	return decimal.NewFromFloat(v.Value).StringFixed(2)
}

// FormatCurrency renders a USD amount as $1,234.56, or N/A when the
// amount is not finite.
func FormatCurrency(amount float64) string {
	if !finite(amount) {
		return "N/A"
	}
	s := decimal.NewFromFloat(amount).StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var g strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			g.WriteByte(',')
		}
		g.WriteRune(r)
	}
	return sign + "$" + g.String() + "." + frac
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// clean drops control characters and collapses whitespace runs.
func clean(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func displayName(asset string) string {
	if asset == "" {
		return "Bitcoin"
	}
	r := []rune(asset)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
