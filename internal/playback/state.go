package playback

// WidgetState is the readiness of a playlist widget. Ready, Error and Degraded are terminal.
type WidgetState int

const (
	WidgetUnloaded WidgetState = iota
	WidgetLoading
	WidgetReady
	WidgetError
	WidgetDegraded
)

func (s WidgetState) String() string {
	switch s {
	case WidgetLoading:
		return "loading"
	case WidgetReady:
		return "ready"
	case WidgetError:
		return "error"
	case WidgetDegraded:
		return "degraded"
	default:
		return "unloaded"
	}
}

// ButtonState is the play control of one track.
type ButtonState int

const (
	ButtonIdle ButtonState = iota
	ButtonResolving
	ButtonReadyPaused
	ButtonPlaying
	ButtonUnavailable
)

func (s ButtonState) String() string {
	switch s {
	case ButtonResolving:
		return "resolving"
	case ButtonReadyPaused:
		return "ready-paused"
	case ButtonPlaying:
		return "playing"
	case ButtonUnavailable:
		return "unavailable"
	default:
		return "idle"
	}
}

// Label is the button text shown to the user.
func (s ButtonState) Label() string {
	switch s {
	case ButtonResolving:
		return "… loading"
	case ButtonPlaying:
		return "⏸ pause"
	case ButtonUnavailable:
		return "✕ unavailable"
	default:
		return "▶ play"
	}
}

// WidgetID identifies a playlist container on a slide.
type WidgetID struct {
	SlideID string
	Ref     string
}

// ButtonView is a read-only copy of a track button.
type ButtonView struct {
	Index    int
	Title    string
	Artist   string
	Duration string
	State    ButtonState
}

// WidgetView is a read-only copy of a widget.
type WidgetView struct {
	ID    WidgetID
	State WidgetState
	Title string
	// Message explains Error and Degraded states.
	Message string
	// EmbedURL is set once Degraded.
	EmbedURL string
	Buttons  []ButtonView
}

// SessionView is a read-only copy of the active session.
type SessionView struct {
	ID      string
	Widget  WidgetID
	Index   int
	Title   string
	Playing bool
}

// EventKind tags an [Event].
type EventKind int

const (
	WidgetChanged EventKind = iota
	ButtonChanged
	SessionChanged
)

func (k EventKind) String() string {
	switch k {
	case ButtonChanged:
		return "button"
	case SessionChanged:
		return "session"
	default:
		return "widget"
	}
}

// Event announces a state change. Subscribers read the new state through the controller's views.
type Event struct {
	Kind   EventKind
	Widget WidgetID
	// Index is the button index for ButtonChanged, otherwise -1.
	Index int
}
