// Package ui implements the terminal timeline player using bubbletea's Elm architecture.
//
// The left pane lists the slides of a timeline. The right pane shows the current slide and its
// playlist widgets, one row per track with the button label (play, pause, loading, unavailable).
// Widgets degraded by upstream rate limiting show their embedded player URL instead, which o opens
// in the browser.
//
// Moving between slides goes through [timeline.Navigator]; its ready and change events mount the
// slide's widgets on the [playback.Controller]. Controller events arrive through a channel drained
// by a tea.Cmd, like any other message.
package ui
