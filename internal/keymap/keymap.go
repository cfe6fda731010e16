// Package keymap translates raw key events into reducer messages per the
// session's fixed keybinding table. It holds no state of its own; Translate
// is a pure function from KeyEvent to reducer.Msg.
package keymap

import "github.com/myr-db/myr/internal/reducer"

// SpecialKey names a non-printable key Translate recognizes.
type SpecialKey int

const (
	None SpecialKey = iota
	KeyEnter
	KeyEsc
	KeyTab
	KeyBackspace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyF2
	KeyF3
	KeyF5
	KeyF6
	KeyF10
)

// KeyEvent is one raw key press as delivered by the terminal input layer.
type KeyEvent struct {
	Rune    rune
	HasRune bool
	Key     SpecialKey
	Ctrl    bool
	Alt     bool
}

// Translate maps ev to the reducer.Msg it produces, per the fixed keymap
// table. ok is false for events the keymap does not bind to anything
// (consumed elsewhere, e.g. by a text field with IME composition).
func Translate(ev KeyEvent) (reducer.Msg, bool) {
	if ev.Ctrl && ev.HasRune {
		switch ev.Rune {
		case 'p', 'P':
			return reducer.Msg{Kind: reducer.TogglePalette}, true
		case 'u', 'U':
			return reducer.Msg{Kind: reducer.ClearInput}, true
		case 'c', 'C':
			return reducer.Msg{Kind: reducer.CancelQuery}, true
		}
	}

	if ev.Alt && ev.HasRune {
		switch ev.Rune {
		case 'h':
			return reducer.Msg{Kind: reducer.Navigate, Direction: reducer.Left}, true
		case 'j':
			return reducer.Msg{Kind: reducer.Navigate, Direction: reducer.Down}, true
		case 'k':
			return reducer.Msg{Kind: reducer.Navigate, Direction: reducer.Up}, true
		case 'l':
			return reducer.Msg{Kind: reducer.Navigate, Direction: reducer.Right}, true
		}
	}

	switch ev.Key {
	case KeyF2:
		return reducer.Msg{Kind: reducer.TogglePerfOverlay}, true
	case KeyF3:
		return reducer.Msg{Kind: reducer.ToggleSafeMode}, true
	case KeyF5:
		return reducer.Msg{Kind: reducer.Connect}, true
	case KeyF6:
		return reducer.Msg{Kind: reducer.GoConnectionWizard}, true
	case KeyF10:
		return reducer.Msg{Kind: reducer.Quit}, true
	case KeyTab:
		return reducer.Msg{Kind: reducer.NextPane}, true
	case KeyEnter:
		return reducer.Msg{Kind: reducer.Submit}, true
	case KeyEsc:
		return reducer.Msg{Kind: reducer.TogglePalette}, true
	case KeyBackspace:
		return reducer.Msg{Kind: reducer.Backspace}, true
	case KeyUp:
		return reducer.Msg{Kind: reducer.Navigate, Direction: reducer.Up}, true
	case KeyDown:
		return reducer.Msg{Kind: reducer.Navigate, Direction: reducer.Down}, true
	case KeyLeft:
		return reducer.Msg{Kind: reducer.Navigate, Direction: reducer.Left}, true
	case KeyRight:
		return reducer.Msg{Kind: reducer.Navigate, Direction: reducer.Right}, true
	}

	if !ev.HasRune {
		return reducer.Msg{}, false
	}

	if ev.Rune == '?' {
		return reducer.Msg{Kind: reducer.ToggleHelp}, true
	}

	if slot, ok := actionSlotDigit(ev.Rune); ok {
		return reducer.Msg{Kind: reducer.InvokeActionSlot, Slot: slot}, true
	}

	return reducer.Msg{Kind: reducer.InputChar, Char: ev.Rune}, true
}

// actionSlotDigit maps '1'..'7' to the zero-based footer action slots.
func actionSlotDigit(r rune) (int, bool) {
	if r < '1' || r > '7' {
		return 0, false
	}
	return int(r - '1'), true
}
