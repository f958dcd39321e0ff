package notifier

import (
	"fmt"
	"html"
	"strings"

	"BtcInsight/internal/insight"
	"BtcInsight/internal/model"
	"BtcInsight/internal/pipeline"
	"BtcInsight/internal/recorder"
)

// style switches between Telegram HTML and plain console text.
type style struct {
	html bool
}

func (s style) bold(text string) string {
	if s.html {
		return "<b>" + html.EscapeString(text) + "</b>"
	}
	return text
}

func (s style) text(text string) string {
	if s.html {
		return html.EscapeString(text)
	}
	return text
}

// FormatReport renders an outcome as plain text.
func FormatReport(out *pipeline.Outcome) string { return formatReport(out, style{}) }

// FormatReportHTML renders an outcome for Telegram's HTML parse mode.
func FormatReportHTML(out *pipeline.Outcome) string { return formatReport(out, style{html: true}) }

func formatReport(out *pipeline.Outcome, st style) string {
	var b strings.Builder

	if snap := out.Snapshot; snap != nil {
		fmt.Fprintf(&b, "📊 %s | %s\n\n", st.bold("BtcInsight"), snap.Time.UTC().Format("2006-01-02 15:04 UTC"))
		fmt.Fprintf(&b, "Price: %s\n", insight.FormatCurrency(snap.Price))
		if snap.Range.High > snap.Range.Low {
			fmt.Fprintf(&b, "Range: %s - %s (position %.0f%%)\n",
				insight.FormatCurrency(snap.Range.Low), insight.FormatCurrency(snap.Range.High), snap.Range.Position*100)
		}

		b.WriteString("\n📈 " + st.bold("Indicators:") + "\n")
		for _, v := range snap.Values {
			fmt.Fprintf(&b, "  %s: %s%s\n", v.KPI, insight.FormatValue(v), commentary(v, snap.Price))
		}
	}

	if out.Insight != "" {
		b.WriteString("\n💡 " + st.bold("Insight:") + "\n")
		b.WriteString(st.text(out.Insight) + "\n")
	}

	if len(out.Diagnostics) > 0 {
		b.WriteString("\n")
		for _, d := range out.Diagnostics {
			b.WriteString("⚠️ " + st.text(d.Message) + "\n")
		}
	}
	return b.String()
}

// commentary annotates an indicator value relative to the price.
func commentary(v insight.IndicatorValue, price float64) string {
	if !v.Valid {
		return ""
	}
	switch {
	case v.KPI == model.KPIRSI && v.Value >= 70:
		return " (overbought)"
	case v.KPI == model.KPIRSI && v.Value <= 30:
		return " (oversold)"
	case v.KPI == model.KPIRSI:
		return " (neutral)"
	case v.Value > 0:
		return fmt.Sprintf(" (price %+.1f%%)", (price-v.Value)/v.Value*100)
	}
	return ""
}

// FormatHistory lists recorded runs, newest first, as plain text.
func FormatHistory(runs []recorder.Run) string { return formatHistory(runs, style{}) }

// FormatHistoryHTML lists recorded runs for Telegram.
func FormatHistoryHTML(runs []recorder.Run) string { return formatHistory(runs, style{html: true}) }

func formatHistory(runs []recorder.Run, st style) string {
	if len(runs) == 0 {
		return "No runs recorded yet."
	}
	var b strings.Builder
	b.WriteString("🕘 " + st.bold("Recent runs") + "\n\n")
	for _, r := range runs {
		fmt.Fprintf(&b, "%s ", r.Timestamp.UTC().Format("2006-01-02 15:04"))
		if r.HasSnapshot() {
			b.WriteString(insight.FormatCurrency(r.Price))
			if rsi, ok := r.Indicators[model.KPIRSI]; ok {
				fmt.Fprintf(&b, " RSI %.2f", rsi)
			}
		} else {
			b.WriteString("no data")
		}
		if len(r.Diagnostics) > 0 {
			b.WriteString(" ⚠️ " + st.text(strings.Join(r.Diagnostics, " ")))
		}
		b.WriteString("\n")
	}
	return b.String()
}
