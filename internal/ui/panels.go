package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/rewired-gh/tokenpulse/internal/analytics"
	"github.com/rewired-gh/tokenpulse/internal/format"
	"github.com/rewired-gh/tokenpulse/internal/models"
)

var timeNow = time.Now

// AnalyticsView shows the summary panel.
type AnalyticsView struct {
	text *tview.TextView
}

func NewAnalyticsView() *AnalyticsView {
	text := tview.NewTextView().SetDynamicColors(true)
	text.SetTitle(" Analytics ").SetBorder(true)
	return &AnalyticsView{text: text}
}

func (v *AnalyticsView) Widget() tview.Primitive {
	return v.text
}

func (v *AnalyticsView) Update(s analytics.Summary) {
	v.text.SetText(renderSummary(s))
}

func renderSummary(s analytics.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total volume: %s\n", format.Money(s.TotalVolume))
	fmt.Fprintf(&b, "Avg change:   %s\n", format.Percent(s.AvgChange))

	section := func(title string, list []models.Token, value func(models.Token) string) {
		fmt.Fprintf(&b, "\n[::b]%s[::-]\n", title)
		if len(list) == 0 {
			b.WriteString("  -\n")
			return
		}
		for _, t := range list {
			fmt.Fprintf(&b, "  %-10s %s\n", tview.Escape(t.Symbol), value(t))
		}
	}
	change := func(t models.Token) string { return format.Percent(t.PriceChange24h) }
	section("Top gainers", s.TopGainers, change)
	section("Top losers", s.TopLosers, change)
	section("Most active", s.MostActive, func(t models.Token) string { return format.Money(t.Volume24h) })
	return b.String()
}

// TriggerLogView lists recent alert triggers, newest first.
type TriggerLogView struct {
	text *tview.TextView
}

func NewTriggerLogView() *TriggerLogView {
	text := tview.NewTextView().SetDynamicColors(true)
	text.SetTitle(" Alerts ").SetBorder(true)
	return &TriggerLogView{text: text}
}

func (v *TriggerLogView) Widget() tview.Primitive {
	return v.text
}

func (v *TriggerLogView) Update(triggers []models.Trigger) {
	v.text.SetText(renderTriggers(triggers, timeNow()))
}

func renderTriggers(triggers []models.Trigger, now time.Time) string {
	if len(triggers) == 0 {
		return "No alerts triggered"
	}
	var b strings.Builder
	for _, t := range triggers {
		fmt.Fprintf(&b, "[yellow]%s[white] %s\n", format.TimeAgo(t.TriggeredAt, now), tview.Escape(t.Message()))
	}
	return b.String()
}
