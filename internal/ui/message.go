package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/composers/internal/playback"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlayback MsgKind = iota
	MsgSlideMounted
	MsgToggled
	MsgOpened
)

// playbackMsg is the constructor for [MsgPlayback]
func playbackMsg(e playback.Event) Msg {
	return Msg{kind: MsgPlayback, data: e}
}

// slideMountedMsg is the constructor for [MsgSlideMounted]
func slideMountedMsg(slideID string, err error) Msg {
	return Msg{
		kind: MsgSlideMounted,
		data: struct {
			slideID string
			err     error
		}{slideID, err},
	}
}

// toggledMsg is the constructor for [MsgToggled]
func toggledMsg(err error) Msg {
	return Msg{kind: MsgToggled, data: err}
}

// openedMsg is the constructor for [MsgOpened]
func openedMsg(url string, err error) Msg {
	return Msg{
		kind: MsgOpened,
		data: struct {
			url string
			err error
		}{url, err},
	}
}
