package viewer

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every binding the viewer reacts to.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Tab     key.Binding
	Edit    key.Binding
	Filter  key.Binding
	Toggle  key.Binding
	Reload  key.Binding
	Help    key.Binding
	Quit    key.Binding
	Next    key.Binding
	Prev    key.Binding
	Commit  key.Binding
	Discard key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "details"),
		),
		Edit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "edit"),
		),
		Filter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "filter"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "s"),
			key.WithHelp("space/s", "toggle status"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Next: key.NewBinding(
			key.WithKeys("down", "tab"),
			key.WithHelp("↓/tab", "next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("up", "shift+tab"),
			key.WithHelp("↑/shift+tab", "prev field"),
		),
		Commit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "save"),
		),
		Discard: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "discard"),
		),
	}
}

// browseHelp and editHelp adapt keyMap to help.KeyMap for each mode.
type browseHelp struct{ k keyMap }

func (h browseHelp) ShortHelp() []key.Binding {
	return []key.Binding{h.k.Up, h.k.Down, h.k.Edit, h.k.Toggle, h.k.Filter, h.k.Help, h.k.Quit}
}

func (h browseHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{h.k.Up, h.k.Down, h.k.Tab},
		{h.k.Edit, h.k.Toggle, h.k.Filter},
		{h.k.Reload, h.k.Help, h.k.Quit},
	}
}

type editHelp struct{ k keyMap }

func (h editHelp) ShortHelp() []key.Binding {
	return []key.Binding{h.k.Next, h.k.Prev, h.k.Commit, h.k.Discard}
}

func (h editHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{h.ShortHelp()}
}
