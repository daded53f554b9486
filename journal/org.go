package journal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatTradeOrg renders a closed trade as an Org heading with its facts
// in a PROPERTIES drawer and an empty Review section for notes.
func FormatTradeOrg(t TradeRecord) string {
	props := [][2]string{
		{"TRADE_ID", strconv.FormatInt(t.TradeID, 10)},
		{"INSTRUMENT", t.Instrument},
		{"SIDE", t.Side},
		{"SIZE", fmt.Sprintf("%g", t.Size)},
		{"ENTRY_PRICE", fmt.Sprintf("%.4f", t.EntryPrice)},
		{"EXIT_PRICE", fmt.Sprintf("%.4f", t.ExitPrice)},
		{"OPEN_TIME", t.OpenTime.UTC().Format(time.RFC3339)},
		{"CLOSE_TIME", t.CloseTime.UTC().Format(time.RFC3339)},
		{"BARS", strconv.Itoa(t.CloseBar - t.OpenBar)},
		{"GROSS_PL", fmt.Sprintf("%.2f", t.GrossPL)},
		{"COMMISSION", fmt.Sprintf("%.2f", t.Commission)},
		{"NET_PL", fmt.Sprintf("%.2f", t.NetPL)},
	}
	if t.RunID != "" {
		props = append([][2]string{{"RUN_ID", t.RunID}}, props...)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*** Trade %d: %s %s\n:PROPERTIES:\n", t.TradeID, t.Instrument, t.Side)
	for _, p := range props {
		fmt.Fprintf(&b, ":%s: %s\n", p[0], p[1])
	}
	b.WriteString(":END:\n\n**** Review\n- \n")
	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}
