package term

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the key bindings of the terminal host.
type KeyMap struct {
	Dismiss    key.Binding
	DismissAll key.Binding
	Quit       key.Binding
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Dismiss, k.DismissAll, k.Quit}
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Dismiss: key.NewBinding(
			key.WithKeys("d", "x"),
			key.WithHelp("d", "dismiss newest"),
		),
		DismissAll: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "dismiss all"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
