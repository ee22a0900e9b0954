// Package ui provides the terminal dashboard.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/rewired-gh/tokenpulse/internal/analytics"
	"github.com/rewired-gh/tokenpulse/internal/logger"
	"github.com/rewired-gh/tokenpulse/internal/models"
	"github.com/rewired-gh/tokenpulse/internal/tokens"
	"github.com/rewired-gh/tokenpulse/internal/view"
)

// Source is what the dashboard renders and drives.
type Source interface {
	Store() *tokens.Store
	RecentTriggers() []models.Trigger
	Refresh(ctx context.Context) error
}

// App is the main TUI application.
type App struct {
	app    *tview.Application
	layout *tview.Flex
	search *tview.InputField
	status *tview.TextView

	table    *TokenTableView
	summary  *AnalyticsView
	triggers *TriggerLogView

	src         Source
	pipeline    *view.Pipeline
	refreshRate time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the dashboard. refreshRate bounds how often the screen is
// redrawn from the store.
func NewApp(src Source, refreshRate time.Duration) *App {
	if refreshRate <= 0 {
		refreshRate = 500 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		app:         tview.NewApplication(),
		src:         src,
		pipeline:    view.NewPipeline(view.DefaultSettings()),
		refreshRate: refreshRate,
		table:       NewTokenTableView(),
		summary:     NewAnalyticsView(),
		triggers:    NewTriggerLogView(),
		ctx:         ctx,
		cancel:      cancel,
	}
	a.setupLayout()
	a.setupKeyboard()
	return a
}

func (a *App) setupLayout() {
	a.search = tview.NewInputField().
		SetLabel(" Search: ").
		SetChangedFunc(func(text string) {
			a.pipeline.SetSearchQuery(text)
			a.render()
		})
	a.search.SetDoneFunc(func(tcell.Key) { a.app.SetFocus(a.table.Widget()) })

	a.status = tview.NewTextView().SetDynamicColors(true)

	side := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.summary.Widget(), 0, 2, false).
		AddItem(a.triggers.Widget(), 0, 1, false)

	main := tview.NewFlex().
		AddItem(a.table.Widget(), 0, 3, true).
		AddItem(side, 0, 2, false)

	a.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.search, 1, 0, false).
		AddItem(main, 0, 1, true).
		AddItem(a.status, 1, 0, false)

	a.app.SetRoot(a.layout, true).SetFocus(a.table.Widget())
}

func (a *App) setupKeyboard() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if a.search.HasFocus() {
			return event
		}
		if event.Key() == tcell.KeyCtrlC {
			a.Stop()
			return nil
		}
		if event.Key() != tcell.KeyRune {
			return event
		}
		switch event.Rune() {
		case 'q', 'Q':
			a.Stop()
		case '/':
			a.app.SetFocus(a.search)
		case 'r', 'R':
			go a.refresh()
		default:
			if !handleViewKey(a.pipeline, event.Rune()) {
				return event
			}
			if event.Rune() == 'c' {
				a.search.SetText("")
			}
			a.render()
		}
		return nil
	})
}

// handleViewKey applies a view shortcut and reports whether the key was
// consumed.
func handleViewKey(p *view.Pipeline, key rune) bool {
	switch key {
	case '1', '2', '3':
		p.SetTab(models.Categories[key-'1'])
	case 's':
		p.SetSort(nextSortField(p.Settings().Sort))
	case 'd':
		cur := p.Settings().Sort
		p.ToggleSort(cur.Field)
	case 'c':
		p.ClearFilters()
	default:
		return false
	}
	return true
}

// nextSortField cycles through the sortable columns, keeping the direction.
func nextSortField(cur models.SortSpec) models.SortSpec {
	for i, f := range models.SortFields {
		if f == cur.Field {
			cur.Field = models.SortFields[(i+1)%len(models.SortFields)]
			return cur
		}
	}
	cur.Field = models.SortFields[0]
	return cur
}

// Run starts the TUI (blocking).
func (a *App) Run() error {
	go a.updateLoop()
	if err := a.app.Run(); err != nil {
		return fmt.Errorf("app run failed: %w", err)
	}
	return nil
}

// Done is closed when the user quits.
func (a *App) Done() <-chan struct{} {
	return a.ctx.Done()
}

func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

func (a *App) updateLoop() {
	ticker := time.NewTicker(a.refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.app.QueueUpdateDraw(a.render)
		}
	}
}

func (a *App) refresh() {
	a.app.QueueUpdateDraw(func() { a.status.SetText(" [yellow]refreshing...") })
	if err := a.src.Refresh(a.ctx); err != nil {
		logger.Warn("Manual refresh failed: %v", err)
	}
	a.app.QueueUpdateDraw(a.render)
}

// render redraws every panel from the current snapshot. It must run on the
// UI goroutine.
func (a *App) render() {
	snap := a.src.Store().Snapshot()
	settings := a.pipeline.Settings()
	rows := a.pipeline.Rows(snap)
	counts := view.CountByCategory(view.Filter(snap.Tokens, settings.Criteria))

	a.table.Update(rows, settings, counts)
	a.summary.Update(analytics.Summarize(snap.Tokens))
	a.triggers.Update(a.src.RecentTriggers())
	a.status.SetText(statusLine(snap, settings))
}

func statusLine(snap tokens.Snapshot, s view.Settings) string {
	state := "[green]live"
	switch {
	case snap.Loading:
		state = "[yellow]loading"
	case snap.Error != "":
		state = "[red]" + tview.Escape(snap.Error)
	}
	return fmt.Sprintf(" %s[white] | sort: %s %s | 1/2/3 tab  s sort  d dir  / search  c clear  r refresh  q quit",
		state, s.Sort.Field, s.Sort.Direction)
}
