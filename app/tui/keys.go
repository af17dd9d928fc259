package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for both pages.
type KeyMap struct {
	// Connect page.
	Connect    key.Binding
	Open       key.Binding
	Disconnect key.Binding

	// Main page. Letters are typed into the focused input, so main page
	// actions use control keys.
	NextField   key.Binding
	Mint        key.Binding
	Refresh     key.Binding
	SignOut     key.Binding
	ForceQuit   key.Binding
	QuitConnect key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Connect: key.NewBinding(
		key.WithKeys("c", "enter"),
		key.WithHelp("c/enter", "connect"),
	),
	Open: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "go to app"),
	),
	Disconnect: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "disconnect"),
	),
	NextField: key.NewBinding(
		key.WithKeys("tab", "shift+tab"),
		key.WithHelp("tab", "next field"),
	),
	Mint: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "mint ticket"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("C-r", "refresh totals"),
	),
	SignOut: key.NewBinding(
		key.WithKeys("ctrl+d"),
		key.WithHelp("C-d", "disconnect"),
	),
	ForceQuit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	),
	QuitConnect: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
}
