package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/rewired-gh/tokenpulse/internal/format"
	"github.com/rewired-gh/tokenpulse/internal/models"
	"github.com/rewired-gh/tokenpulse/internal/view"
)

var tokenHeaders = []string{"Token", "Price", "24h", "Volume", "MCap", "Liquidity", "Holders", "Age"}

// TokenTableView lists one tab of the filtered and sorted tokens.
type TokenTableView struct {
	table *tview.Table
}

func NewTokenTableView() *TokenTableView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0).
		SetSelectable(true, false)
	table.SetBorder(true)
	return &TokenTableView{table: table}
}

func (v *TokenTableView) Widget() tview.Primitive {
	return v.table
}

func (v *TokenTableView) Update(rows []models.Token, s view.Settings, counts map[models.Category]int) {
	v.table.Clear()
	for col, header := range tokenHeaders {
		v.table.SetCell(0, col, tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetSelectable(false).
			SetExpansion(1))
	}

	for i := range rows {
		t := &rows[i]
		cells := []*tview.TableCell{
			tview.NewTableCell(t.Symbol),
			tview.NewTableCell(format.Price(t.Price)).SetTextColor(directionColor(t.PriceDirection)),
			tview.NewTableCell(format.Percent(t.PriceChange24h)).SetTextColor(changeColor(t.PriceChange24h)),
			tview.NewTableCell(format.Money(t.Volume24h)),
			tview.NewTableCell(format.Money(t.MarketCap)),
			tview.NewTableCell(format.Money(t.Liquidity)),
			tview.NewTableCell(format.Count(t.Holders)),
			tview.NewTableCell(format.TimeAgo(t.CreatedAt, timeNow())),
		}
		for col, cell := range cells {
			v.table.SetCell(i+1, col, cell.SetExpansion(1))
		}
	}

	v.table.SetTitle(tabTitle(s.Tab, counts))
}

func tabTitle(active models.Category, counts map[models.Category]int) string {
	title := " "
	for i, c := range models.Categories {
		label := fmt.Sprintf("%d:%s (%d)", i+1, c, counts[c])
		if c == active {
			label = "[::r]" + label + "[::-]"
		}
		title += label + " "
	}
	return title
}

func directionColor(d models.Direction) tcell.Color {
	switch d {
	case models.DirectionUp:
		return tcell.ColorGreen
	case models.DirectionDown:
		return tcell.ColorRed
	default:
		return tview.Styles.PrimaryTextColor
	}
}

func changeColor(v float64) tcell.Color {
	if v < 0 {
		return tcell.ColorRed
	}
	return tcell.ColorGreen
}
