package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// keyMap defines the keys for the application.
type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Download  key.Binding
	Overwrite key.Binding
	Quit      key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Download, k.Overwrite, k.Quit}
}

// FullHelp returns keybindings for the expanded help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Download, k.Overwrite, k.Quit},
	}
}

func newKeyMap() keyMap {
	return keyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Download:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "download")),
		Overwrite: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "overwrite")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}
