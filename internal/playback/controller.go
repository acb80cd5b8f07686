package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/composers/internal/models"
	"github.com/desertthunder/composers/internal/services"
	"github.com/desertthunder/composers/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	msgNoTracks   = "No tracks found"
	msgLoadFailed = "Failed to load playlist"
	msgDegraded   = "SoundCloud is rate limited, showing the embedded player"

	// mountConcurrency bounds parallel playlist loads for one slide.
	mountConcurrency = 4
)

var ErrUnknownWidget = errors.New("unknown widget")

// Loader resolves a playlist reference.
type Loader interface {
	ResolvePlaylist(ctx context.Context, ref string) (*models.Playlist, error)
}

// Resolver resolves a track into a playable URL.
type Resolver interface {
	Resolve(ctx context.Context, track models.TrackDescriptor) (string, error)
}

// Audio is a playback element bound to one URL.
type Audio interface {
	// Play starts or resumes playback.
	Play() error
	// Pause suspends playback, keeping the position.
	Pause() error
	// Ended is closed once playback stops for good, naturally or through Close.
	Ended() <-chan struct{}
	Close() error
}

// AudioFactory creates an element for url. It must not start playback.
type AudioFactory func(url string) (Audio, error)

// Options configures a [Controller].
type Options struct {
	Loader   Loader
	Resolver Resolver
	NewAudio AudioFactory
	Logger   *log.Logger
}

type button struct {
	index int
	track models.TrackDescriptor
	state ButtonState
	url   string
	audio Audio
	// gen changes whenever a pending resolution must be discarded.
	gen uint64
}

type widget struct {
	id       WidgetID
	state    WidgetState
	title    string
	message  string
	embedURL string
	buttons  []*button
}

type session struct {
	id     string
	widget *widget
	button *button
}

// Controller owns the widgets of a page and enforces at most one active playback session.
//
// All state transitions happen under one mutex. Network calls and event delivery happen outside it.
type Controller struct {
	loader   Loader
	resolver Resolver
	newAudio AudioFactory
	logger   *log.Logger

	mu      sync.Mutex
	widgets map[WidgetID]*widget
	order   []WidgetID
	session *session
	// starts counts play requests; a resolution finishing after a newer request does not start playback.
	starts  uint64
	current string
	closed  bool
	pending []Event
	subs    map[int]func(Event)
	nextSub int
}

// NewController creates a Controller.
func NewController(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Controller{
		loader:   opts.Loader,
		resolver: opts.Resolver,
		newAudio: opts.NewAudio,
		logger:   shared.WithLogger(opts.Logger, "component", "playback"),
		widgets:  make(map[WidgetID]*widget),
		subs:     make(map[int]func(Event)),
	}
}

// Subscribe registers fn for every event and returns a function removing it.
//
// fn is called outside the controller lock and may call back into the controller.
func (c *Controller) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) emit(kind EventKind, w WidgetID, index int) {
	c.pending = append(c.pending, Event{Kind: kind, Widget: w, Index: index})
}

// unlock releases the mutex and then delivers events queued while it was held.
func (c *Controller) unlock() {
	events := c.pending
	c.pending = nil
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, e := range events {
		for _, fn := range subs {
			fn(e)
		}
	}
}

// Mount creates the widget for ref on slideID (once) and loads its playlist.
//
// Mounting a widget that is loading or already settled is a no-op.
func (c *Controller) Mount(ctx context.Context, slideID, ref string) error {
	id := WidgetID{SlideID: slideID, Ref: ref}

	c.mu.Lock()
	if c.closed {
		c.unlock()
		return nil
	}
	w, ok := c.widgets[id]
	if !ok {
		w = &widget{id: id}
		c.widgets[id] = w
		c.order = append(c.order, id)
	}
	if w.state != WidgetUnloaded {
		c.unlock()
		return nil
	}
	w.state = WidgetLoading
	c.emit(WidgetChanged, id, -1)
	c.unlock()

	playlist, err := c.loader.ResolvePlaylist(ctx, ref)

	c.mu.Lock()
	defer c.unlock()

	switch {
	case err == nil:
		c.populate(w, playlist)
	case errors.Is(err, shared.ErrRateLimited):
		c.degrade(w)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// left for the next mount
		w.state = WidgetUnloaded
		c.emit(WidgetChanged, id, -1)
	default:
		c.logger.Error("failed to load playlist", "ref", ref, "err", err)
		w.state = WidgetError
		w.message = msgLoadFailed
		c.emit(WidgetChanged, id, -1)
	}
	return err
}

func (c *Controller) populate(w *widget, playlist *models.Playlist) {
	w.title = playlist.Title
	if len(playlist.Tracks) == 0 {
		w.state = WidgetError
		w.message = msgNoTracks
		c.emit(WidgetChanged, w.id, -1)
		return
	}

	w.buttons = make([]*button, len(playlist.Tracks))
	for i, t := range playlist.Tracks {
		w.buttons[i] = &button{index: i, track: t}
	}
	w.state = WidgetReady
	c.emit(WidgetChanged, w.id, -1)
}

// degrade replaces the track list with the embedded player. No further resolution happens for w.
func (c *Controller) degrade(w *widget) {
	if c.session != nil && c.session.widget == w {
		c.session = nil
		c.emit(SessionChanged, w.id, -1)
	}
	for _, b := range w.buttons {
		c.release(b)
	}

	c.logger.Warn("widget degraded", "slide", w.id.SlideID, "ref", w.id.Ref)
	w.buttons = nil
	w.state = WidgetDegraded
	w.message = msgDegraded
	w.embedURL = services.EmbedURL(w.id.Ref)
	c.emit(WidgetChanged, w.id, -1)
}

// release closes b's element and discards any pending resolution.
func (c *Controller) release(b *button) {
	b.gen++
	if b.audio != nil {
		if err := b.audio.Close(); err != nil {
			c.logger.Warn("failed to close audio", "err", err)
		}
		b.audio = nil
	}
}

// Toggle handles a click on the button at index of widget id.
//
// Idle buttons resolve then play, playing buttons pause, paused buttons resume. Clicks on resolving
// or unavailable buttons and on widgets that are not ready are ignored.
func (c *Controller) Toggle(ctx context.Context, id WidgetID, index int) error {
	c.mu.Lock()

	w, ok := c.widgets[id]
	if !ok {
		c.unlock()
		return fmt.Errorf("%w: %s", ErrUnknownWidget, id.Ref)
	}
	if w.state != WidgetReady || c.closed {
		c.unlock()
		return nil
	}
	if index < 0 || index >= len(w.buttons) {
		c.unlock()
		return fmt.Errorf("%w: track index %d", shared.ErrInvalidArgument, index)
	}

	b := w.buttons[index]
	switch b.state {
	case ButtonResolving, ButtonUnavailable:
		c.unlock()
		return nil
	case ButtonPlaying:
		c.pauseSession()
		c.unlock()
		return nil
	case ButtonReadyPaused:
		c.starts++
		err := c.start(w, b)
		c.unlock()
		return err
	}

	// idle
	c.starts++
	if b.url != "" {
		err := c.start(w, b)
		c.unlock()
		return err
	}

	if c.session != nil && c.session.button != b {
		c.pauseSession()
	}

	b.gen++
	gen, seq := b.gen, c.starts
	b.state = ButtonResolving
	c.emit(ButtonChanged, id, index)
	c.unlock()

	url, err := c.resolver.Resolve(ctx, b.track)

	c.mu.Lock()
	defer c.unlock()

	if b.gen != gen || w.state != WidgetReady || c.closed {
		c.logger.Debug("discarding stale resolution", "track", b.track.ID)
		return nil
	}

	switch {
	case err == nil:
	case errors.Is(err, shared.ErrRateLimited):
		c.degrade(w)
		return err
	case errors.Is(err, shared.ErrNoPlayableStream):
		b.state = ButtonUnavailable
		c.emit(ButtonChanged, id, index)
		c.checkExhausted(w)
		return err
	default:
		c.logger.Warn("resolution failed", "track", b.track.ID, "err", err)
		b.state = ButtonIdle
		c.emit(ButtonChanged, id, index)
		return err
	}

	b.url = url
	if c.starts != seq {
		// a newer play request superseded this one
		b.state = ButtonReadyPaused
		c.emit(ButtonChanged, id, index)
		return nil
	}
	return c.start(w, b)
}

// checkExhausted moves w to Error once no button can ever play.
func (c *Controller) checkExhausted(w *widget) {
	for _, b := range w.buttons {
		if b.state != ButtonUnavailable {
			return
		}
	}
	w.state = WidgetError
	w.message = msgNoTracks
	c.emit(WidgetChanged, w.id, -1)
}

// start pauses the active session and plays b, creating its element on first play.
func (c *Controller) start(w *widget, b *button) error {
	if c.session != nil && c.session.button != b {
		c.pauseSession()
	}

	if err := c.play(w, b); err != nil {
		c.logger.Error("failed to start playback", "track", b.track.ID, "err", err)
		c.release(b)
		b.state = ButtonIdle
		c.emit(ButtonChanged, w.id, b.index)
		return err
	}

	b.state = ButtonPlaying
	c.emit(ButtonChanged, w.id, b.index)

	if c.session == nil || c.session.button != b {
		c.session = &session{id: shared.GenerateID(), widget: w, button: b}
	}
	c.emit(SessionChanged, w.id, b.index)
	return nil
}

// play resumes b's element, recreating it once if the old one is gone.
//
// Each element gets exactly one watcher, started when the element is created.
func (c *Controller) play(w *widget, b *button) error {
	if b.audio != nil {
		if err := b.audio.Play(); err == nil {
			return nil
		}
		c.release(b)
	}

	a, err := c.newAudio(b.url)
	if err != nil {
		return err
	}
	b.audio = a
	go c.watch(w, b, a)
	return a.Play()
}

func (c *Controller) pauseSession() {
	s := c.session
	if s == nil {
		return
	}
	if s.button.state == ButtonPlaying {
		if err := s.button.audio.Pause(); err != nil {
			c.logger.Warn("failed to pause audio", "err", err)
		}
		s.button.state = ButtonReadyPaused
		c.emit(ButtonChanged, s.widget.id, s.button.index)
	}
	c.emit(SessionChanged, s.widget.id, s.button.index)
}

// watch waits for a to end. Elements released by the controller are ignored; a natural end
// returns b to idle and clears the session if b owns it.
func (c *Controller) watch(w *widget, b *button, a Audio) {
	<-a.Ended()

	c.mu.Lock()
	defer c.unlock()

	if b.audio != a {
		return
	}

	c.logger.Debug("track ended", "track", b.track.ID)
	c.release(b)
	b.state = ButtonIdle
	c.emit(ButtonChanged, w.id, b.index)

	if c.session != nil && c.session.button == b {
		c.session = nil
		c.emit(SessionChanged, w.id, -1)
	}
}

// StopAll pauses the active session and keeps pending resolutions from starting playback.
func (c *Controller) StopAll() {
	c.mu.Lock()
	defer c.unlock()

	c.starts++
	if c.session == nil {
		return
	}
	c.pauseSession()
	id := c.session.widget.id
	c.session = nil
	c.emit(SessionChanged, id, -1)
}

// SlideChanged stops playback and mounts the playlist widgets of slideID.
//
// It also serves the timeline's ready event for the initial slide.
func (c *Controller) SlideChanged(ctx context.Context, slideID string, refs []string) error {
	c.StopAll()

	c.mu.Lock()
	c.current = slideID
	c.unlock()

	var g errgroup.Group
	g.SetLimit(mountConcurrency)
	for _, ref := range refs {
		g.Go(func() error {
			if err := c.Mount(ctx, slideID, ref); err != nil && !errors.Is(err, shared.ErrRateLimited) {
				return fmt.Errorf("mount %s: %w", ref, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close stops playback and closes every element. The controller ignores further clicks.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.unlock()

	c.closed = true
	c.session = nil
	var errs []error
	for _, id := range c.order {
		for _, b := range c.widgets[id].buttons {
			if b.audio != nil {
				if err := b.audio.Close(); err != nil {
					errs = append(errs, err)
				}
				b.audio = nil
			}
			b.gen++
		}
	}
	return errors.Join(errs...)
}

// CurrentSlide is the slide passed to the latest SlideChanged.
func (c *Controller) CurrentSlide() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Widget returns a copy of widget id.
func (c *Controller) Widget(id WidgetID) (WidgetView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.widgets[id]
	if !ok {
		return WidgetView{}, false
	}
	return w.view(), true
}

// Widgets returns copies of the widgets mounted on slideID, in mount order.
func (c *Controller) Widgets(slideID string) []WidgetView {
	c.mu.Lock()
	defer c.mu.Unlock()

	var views []WidgetView
	for _, id := range c.order {
		if id.SlideID == slideID {
			views = append(views, c.widgets[id].view())
		}
	}
	return views
}

// Session returns the active session, if any.
func (c *Controller) Session() (SessionView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return SessionView{}, false
	}
	return SessionView{
		ID:      s.id,
		Widget:  s.widget.id,
		Index:   s.button.index,
		Title:   s.button.track.Title,
		Playing: s.button.state == ButtonPlaying,
	}, true
}

func (w *widget) view() WidgetView {
	v := WidgetView{
		ID:       w.id,
		State:    w.state,
		Title:    w.title,
		Message:  w.message,
		EmbedURL: w.embedURL,
	}
	for _, b := range w.buttons {
		v.Buttons = append(v.Buttons, ButtonView{
			Index:    b.index,
			Title:    b.track.Title,
			Artist:   strings.TrimSpace(b.track.User.Username),
			Duration: b.track.DurationString(),
			State:    b.state,
		})
	}
	return v
}
