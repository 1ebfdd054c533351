package dashboard

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/saviobatista/testvehicle/internal/control"
)

// Legend is the controls panel content, one {key, action} pair per row.
var Legend = [][]string{
	{"UpArrow", "Move Up"},
	{"DownArrow", "Move Down"},
	{"LeftArrow", "Move Left"},
	{"RightArrow", "Move Right"},
	{"T", "Take Off"},
	{"Space", "Do Land"},
	{"Q", "Quit"},
}

// KeyFromMsg maps a terminal key press to a controller key.
func KeyFromMsg(msg tea.KeyMsg) control.Key {
	switch msg.Type {
	case tea.KeyUp:
		return control.KeyUp
	case tea.KeyDown:
		return control.KeyDown
	case tea.KeyLeft:
		return control.KeyLeft
	case tea.KeyRight:
		return control.KeyRight
	case tea.KeySpace:
		return control.KeyLand
	case tea.KeyCtrlC:
		return control.KeyQuit
	case tea.KeyRunes:
		switch string(msg.Runes) {
		case "t", "T":
			return control.KeyTakeOff
		case "q", "Q":
			return control.KeyQuit
		case " ":
			return control.KeyLand
		}
	}
	return control.KeyUnknown
}
