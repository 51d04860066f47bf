package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/transportal/internal/tasks"
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
	MsgPushEvent MsgKind = iota
	MsgStreamClosed
	MsgActionDone
)

// pushEventMsg is the constructor for [MsgPushEvent]
func pushEventMsg(ev tasks.Event) Msg {
	return Msg{kind: MsgPushEvent, data: ev}
}

// streamClosedMsg is the constructor for [MsgStreamClosed]
func streamClosedMsg(err error) Msg {
	return Msg{kind: MsgStreamClosed, data: err}
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(action, name string, err error) Msg {
	return Msg{
		kind: MsgActionDone,
		data: actionResult{action: action, name: name, err: err},
	}
}

type actionResult struct {
	action string
	name   string
	err    error
}
