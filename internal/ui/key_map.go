package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	prev   key.Binding
	next   key.Binding
	up     key.Binding
	down   key.Binding
	toggle key.Binding
	stop   key.Binding
	open   key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		prev:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "previous slide")),
		next:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next slide")),
		up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		toggle: key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter/space", "play/pause")),
		stop:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		open:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open player")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.prev, k.next, k.toggle, k.stop, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.prev, k.next, k.up, k.down},
		{k.toggle, k.stop, k.open},
		{k.quit},
	}
}
