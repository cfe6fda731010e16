// Package tui wires a reducer.Model into a github.com/charmbracelet/bubbletea
// program: bubbletea owns the terminal and the event loop timing, this
// package owns translating its messages into reducer.Msg and rendering the
// model back out.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/myr-db/myr/internal/actions"
	"github.com/myr-db/myr/internal/keymap"
	"github.com/myr-db/myr/internal/reducer"
)

var (
	paneStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	flashPaneStyle   = paneStyle.Copy().Background(lipgloss.Color("3")).Foreground(lipgloss.Color("0"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	statusStyle      = lipgloss.NewStyle().Faint(true)
	safeModeOnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	safeModeOffStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// tickMsg drives the reducer's fixed-rate Tick message.
type tickMsg time.Time

// App adapts a *reducer.Model into a tea.Model.
type App struct {
	model    *reducer.Model
	tickRate time.Duration
}

// New builds an App around model, ticking it at tickRate (normally
// reducer.TickRate).
func New(model *reducer.Model, tickRate time.Duration) App {
	return App{model: model, tickRate: tickRate}
}

func tickCmd(rate time.Duration) tea.Cmd {
	return tea.Tick(rate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tickCmd(a.tickRate)
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tickMsg:
		a.model.Update(reducer.Msg{Kind: reducer.Tick})
		if a.model.ShouldQuit() {
			return a, tea.Quit
		}
		return a, tickCmd(a.tickRate)
	case tea.KeyMsg:
		if ev, ok := toKeyEvent(m); ok {
			if rmsg, ok := keymap.Translate(ev); ok {
				a.model.Update(rmsg)
			}
		}
		if a.model.ShouldQuit() {
			return a, tea.Quit
		}
		return a, nil
	}
	return a, nil
}

// View implements tea.Model.
func (a App) View() string {
	var b strings.Builder

	paneLabel := paneName(a.model.Pane())
	style := paneStyle
	if a.model.PaneFlashActive() {
		style = flashPaneStyle
	}
	b.WriteString(style.Render(paneLabel))
	b.WriteString("\n\n")

	if panel := a.model.ErrorPanel(); panel.Visible {
		b.WriteString(errorStyle.Render("! " + panel.Message))
		b.WriteString("\n\n")
	}

	if a.model.Pane() == actions.QueryEditor {
		b.WriteString(a.model.QueryText())
		b.WriteString("\n\n")
	}

	rows := a.model.Rows()
	fmt.Fprintf(&b, "%d rows buffered (%d total seen)\n\n", rows.Len(), rows.TotalRowsSeen())

	safeModeLabel := "safe-mode: off"
	safeStyle := safeModeOffStyle
	if a.model.IsSafeModeEnabled() {
		safeModeLabel = "safe-mode: on"
		safeStyle = safeModeOnStyle
	}
	b.WriteString(safeStyle.Render(safeModeLabel))
	b.WriteString("  ")
	b.WriteString(statusStyle.Render(a.model.StatusLine()))

	return b.String()
}

func paneName(p actions.AppView) string {
	switch p {
	case actions.ConnectionWizard:
		return "Connection Wizard"
	case actions.SchemaExplorer:
		return "Schema Explorer"
	case actions.Results:
		return "Results"
	case actions.QueryEditor:
		return "Query Editor"
	case actions.CommandPalette:
		return "Command Palette"
	default:
		return "myr"
	}
}

// toKeyEvent converts a bubbletea key message into the keymap package's
// input representation.
func toKeyEvent(msg tea.KeyMsg) (keymap.KeyEvent, bool) {
	switch msg.Type {
	case tea.KeyCtrlP:
		return keymap.KeyEvent{Rune: 'p', HasRune: true, Ctrl: true}, true
	case tea.KeyCtrlU:
		return keymap.KeyEvent{Rune: 'u', HasRune: true, Ctrl: true}, true
	case tea.KeyCtrlC:
		return keymap.KeyEvent{Rune: 'c', HasRune: true, Ctrl: true}, true
	case tea.KeyEnter:
		return keymap.KeyEvent{Key: keymap.KeyEnter}, true
	case tea.KeyEsc:
		return keymap.KeyEvent{Key: keymap.KeyEsc}, true
	case tea.KeyTab:
		return keymap.KeyEvent{Key: keymap.KeyTab}, true
	case tea.KeyBackspace:
		return keymap.KeyEvent{Key: keymap.KeyBackspace}, true
	case tea.KeyUp:
		return keymap.KeyEvent{Key: keymap.KeyUp}, true
	case tea.KeyDown:
		return keymap.KeyEvent{Key: keymap.KeyDown}, true
	case tea.KeyLeft:
		return keymap.KeyEvent{Key: keymap.KeyLeft}, true
	case tea.KeyRight:
		return keymap.KeyEvent{Key: keymap.KeyRight}, true
	case tea.KeyF2:
		return keymap.KeyEvent{Key: keymap.KeyF2}, true
	case tea.KeyF3:
		return keymap.KeyEvent{Key: keymap.KeyF3}, true
	case tea.KeyF5:
		return keymap.KeyEvent{Key: keymap.KeyF5}, true
	case tea.KeyF6:
		return keymap.KeyEvent{Key: keymap.KeyF6}, true
	case tea.KeyF10:
		return keymap.KeyEvent{Key: keymap.KeyF10}, true
	case tea.KeyRunes:
		if len(msg.Runes) != 1 {
			return keymap.KeyEvent{}, false
		}
		return keymap.KeyEvent{Rune: msg.Runes[0], HasRune: true, Alt: msg.Alt}, true
	}
	return keymap.KeyEvent{}, false
}
