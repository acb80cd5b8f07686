package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/composers/internal/playback"
	"github.com/desertthunder/composers/internal/shared"
	"github.com/desertthunder/composers/internal/timeline"
)

const (
	listWidth    = 32
	excerptWidth = 280
	eventBuffer  = 64
)

// Controller is the part of [playback.Controller] the TUI drives.
type Controller interface {
	SlideChanged(ctx context.Context, slideID string, refs []string) error
	Toggle(ctx context.Context, id playback.WidgetID, index int) error
	StopAll()
	Widgets(slideID string) []playback.WidgetView
	Session() (playback.SessionView, bool)
	Subscribe(fn func(playback.Event)) func()
}

// row is one selectable line of the slide pane. index is -1 for widgets without buttons.
type row struct {
	widget playback.WidgetID
	index  int
}

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	nav    *timeline.Navigator
	ctl    Controller
	open   func(url string) error
	width  int
	height int

	slides  list.Model
	cursor  int
	pending []timeline.NavEvent
	events  chan playback.Event
	cancel  func()
	status  string
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model over a timeline navigator and a playback controller.
func NewModel(ctx context.Context, nav *timeline.Navigator, ctl Controller) *Model {
	m := &Model{
		ctx:    ctx,
		nav:    nav,
		ctl:    ctl,
		open:   shared.OpenBrowser,
		events: make(chan playback.Event, eventBuffer),
		help:   help.New(),
		keys:   newKeyMap(),
	}

	m.slides = list.New(slideItems(nav.Slides()), list.NewDefaultDelegate(), listWidth, 0)
	m.slides.Title = "Timeline"
	m.slides.SetShowHelp(false)
	m.slides.SetFilteringEnabled(false)

	// navigator events are published synchronously from Update
	nav.Subscribe(func(e timeline.NavEvent) { m.pending = append(m.pending, e) })
	return m
}

// Init subscribes to controller events and mounts the initial slide.
func (m *Model) Init() tea.Cmd {
	m.cancel = m.ctl.Subscribe(func(e playback.Event) {
		select {
		case m.events <- e:
		default:
			// views are rebuilt from snapshots, so a dropped event only delays a redraw
		}
	})
	m.nav.Start()
	return tea.Batch(m.waitForEvent(), m.drainNavigation())
}

// Close stops the controller subscription.
func (m *Model) Close() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.slides.SetSize(listWidth, max(msg.Height-4, 1))
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlayback:
		m.clampCursor()
		return m, m.waitForEvent()

	case MsgSlideMounted:
		data := msg.data.(struct {
			slideID string
			err     error
		})
		if data.err != nil && !errors.Is(data.err, context.Canceled) {
			m.status = fmt.Sprintf("Failed to load %s: %v", data.slideID, data.err)
		}
		m.clampCursor()
		return m, nil

	case MsgToggled:
		if err, _ := msg.data.(error); err != nil {
			m.status = toggleStatus(err)
		}
		return m, nil

	case MsgOpened:
		data := msg.data.(struct {
			url string
			err error
		})
		if data.err != nil {
			m.status = fmt.Sprintf("Failed to open %s: %v", data.url, data.err)
		} else {
			m.status = "Opened " + data.url
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.ctl.StopAll()
		return m, tea.Quit

	case key.Matches(msg, m.keys.prev):
		m.nav.Prev()
		return m, m.drainNavigation()

	case key.Matches(msg, m.keys.next):
		m.nav.Next()
		return m, m.drainNavigation()

	case key.Matches(msg, m.keys.up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.down):
		if m.cursor < len(m.rows())-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.toggle):
		r, ok := m.selected()
		if !ok || r.index < 0 {
			return m, nil
		}
		m.status = ""
		return m, m.toggle(r)

	case key.Matches(msg, m.keys.stop):
		m.ctl.StopAll()
		return m, nil

	case key.Matches(msg, m.keys.open):
		r, ok := m.selected()
		if !ok {
			return m, nil
		}
		if v, found := m.widget(r.widget); found && v.EmbedURL != "" {
			return m, m.openURL(v.EmbedURL)
		}
		return m, nil
	}
	return m, nil
}

// drainNavigation turns queued navigator events into slide mounts.
func (m *Model) drainNavigation() tea.Cmd {
	if len(m.pending) == 0 {
		return nil
	}
	events := m.pending
	m.pending = nil

	last := events[len(events)-1]
	m.slides.Select(last.Index)
	m.cursor = 0
	m.status = ""

	slides := m.nav.Slides()
	cmds := make([]tea.Cmd, 0, len(events))
	for _, e := range events {
		refs := timeline.PlaylistRefs(slides[e.Index])
		cmds = append(cmds, m.mount(e.UniqueID, refs))
	}
	if len(cmds) == 1 {
		return cmds[0]
	}
	return tea.Sequence(cmds...)
}

func (m *Model) mount(slideID string, refs []string) tea.Cmd {
	return func() tea.Msg {
		return slideMountedMsg(slideID, m.ctl.SlideChanged(m.ctx, slideID, refs))
	}
}

func (m *Model) toggle(r row) tea.Cmd {
	return func() tea.Msg {
		return toggledMsg(m.ctl.Toggle(m.ctx, r.widget, r.index))
	}
}

func (m *Model) openURL(url string) tea.Cmd {
	return func() tea.Msg {
		return openedMsg(url, m.open(url))
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case e := <-m.events:
			return playbackMsg(e)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) currentSlide() (timeline.Event, bool) {
	s, i := m.nav.Current()
	return s, i >= 0
}

func (m *Model) widgets() []playback.WidgetView {
	s, ok := m.currentSlide()
	if !ok {
		return nil
	}
	return m.ctl.Widgets(s.UniqueID)
}

func (m *Model) widget(id playback.WidgetID) (playback.WidgetView, bool) {
	for _, v := range m.widgets() {
		if v.ID == id {
			return v, true
		}
	}
	return playback.WidgetView{}, false
}

// rows flattens the current slide's widgets into selectable lines.
func (m *Model) rows() []row {
	var rows []row
	for _, v := range m.widgets() {
		if len(v.Buttons) == 0 {
			rows = append(rows, row{widget: v.ID, index: -1})
			continue
		}
		for _, b := range v.Buttons {
			rows = append(rows, row{widget: v.ID, index: b.Index})
		}
	}
	return rows
}

func (m *Model) selected() (row, bool) {
	rows := m.rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return row{}, false
	}
	return rows[m.cursor], true
}

func (m *Model) clampCursor() {
	if n := len(m.rows()); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
}

func toggleStatus(err error) string {
	switch {
	case errors.Is(err, shared.ErrRateLimited):
		return "SoundCloud is rate limited, press o to open the embedded player"
	case errors.Is(err, shared.ErrNoPlayableStream):
		return "No playable stream for this track"
	default:
		return fmt.Sprintf("Playback failed: %v", err)
	}
}

// View renders the slide list next to the current slide.
func (m *Model) View() string {
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.slides.View(), styles.pane.Render(m.renderSlide()))
	helpView := m.help.ShortHelpView(m.keys.ShortHelp())

	footer := helpView
	if m.status != "" {
		footer = styles.warn.Render(m.status) + "\n" + helpView
	}
	return fmt.Sprintf("%s\n%s", body, footer)
}

func (m *Model) renderSlide() string {
	s, ok := m.currentSlide()
	if !ok {
		return styles.help.Render("This timeline has no slides")
	}

	var b strings.Builder
	heading := s.Text.Headline
	if s.StartDate != nil && s.StartDate.Year != "" {
		heading = fmt.Sprintf("%s (%s)", heading, s.StartDate.Year)
	}
	b.WriteString(styles.title.Render(heading))
	b.WriteString("\n")

	if text := excerpt(timeline.PlainText(s.Text.Text), excerptWidth); text != "" {
		b.WriteString(lipgloss.NewStyle().Width(m.paneWidth()).Render(text))
		b.WriteString("\n\n")
	}

	session, active := m.ctl.Session()
	line := 0
	for _, v := range m.ctl.Widgets(s.UniqueID) {
		b.WriteString(renderWidgetHeader(v))
		b.WriteString("\n")

		if len(v.Buttons) == 0 {
			b.WriteString(m.marker(line))
			b.WriteString(renderWidgetBody(v))
			b.WriteString("\n\n")
			line++
			continue
		}

		for _, btn := range v.Buttons {
			playing := active && session.Widget == v.ID && session.Index == btn.Index && session.Playing
			b.WriteString(m.marker(line))
			b.WriteString(renderButton(btn, playing))
			b.WriteString("\n")
			line++
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) marker(line int) string {
	if line == m.cursor {
		return styles.cursor.Render("> ")
	}
	return "  "
}

func (m *Model) paneWidth() int {
	if m.width == 0 {
		return 60
	}
	return max(m.width-listWidth-4, 20)
}

func renderWidgetHeader(v playback.WidgetView) string {
	title := v.Title
	if title == "" {
		title = v.ID.Ref
	}
	return styles.ok.Render(title)
}

func renderWidgetBody(v playback.WidgetView) string {
	switch v.State {
	case playback.WidgetLoading, playback.WidgetUnloaded:
		return styles.help.Render("Loading tracks...")
	case playback.WidgetError:
		return styles.err.Render(v.Message)
	case playback.WidgetDegraded:
		return styles.warn.Render(v.Message) + "\n    " + styles.help.Render(v.EmbedURL+" (o to open)")
	}
	return ""
}

func renderButton(b playback.ButtonView, playing bool) string {
	label := fmt.Sprintf("%-14s", b.State.Label())
	switch {
	case playing:
		label = styles.ok.Render(label)
	case b.State == playback.ButtonUnavailable:
		label = styles.err.Render(label)
	case b.State == playback.ButtonResolving:
		label = styles.help.Render(label)
	}

	info := b.Title
	if b.Artist != "" {
		info += " - " + b.Artist
	}
	return fmt.Sprintf("%s %s %s", label, info, styles.help.Render(b.Duration))
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
