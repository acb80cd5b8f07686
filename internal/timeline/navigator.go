package timeline

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrUnknownSlide = errors.New("unknown slide")

// EventKind distinguishes navigator events.
type EventKind int

const (
	// Ready is emitted once, for the initial slide.
	Ready EventKind = iota
	// Change is emitted whenever the current slide changes afterwards.
	Change
)

func (k EventKind) String() string {
	if k == Ready {
		return "ready"
	}
	return "change"
}

// NavEvent reports the slide that became current.
type NavEvent struct {
	Kind     EventKind
	UniqueID string
	Index    int
}

// Navigator keeps the current slide of a document and notifies subscribers on movement.
type Navigator struct {
	slides []Event

	mu      sync.Mutex
	index   int
	started bool
	subs    []func(NavEvent)
}

// NewNavigator positions a navigator on the first slide.
func NewNavigator(doc *Document) *Navigator {
	return &Navigator{slides: doc.Slides()}
}

// Subscribe registers fn. Events are delivered synchronously on the navigating goroutine.
func (n *Navigator) Subscribe(fn func(NavEvent)) {
	n.mu.Lock()
	n.subs = append(n.subs, fn)
	n.mu.Unlock()
}

// Start emits Ready for the current slide. Moves before Start are silent; later calls do nothing.
func (n *Navigator) Start() {
	n.mu.Lock()
	if n.started || len(n.slides) == 0 {
		n.mu.Unlock()
		return
	}
	n.started = true
	ev := NavEvent{Kind: Ready, UniqueID: n.slides[n.index].UniqueID, Index: n.index}
	subs := n.subs
	n.mu.Unlock()

	publish(subs, ev)
}

// Slides returns the slides in navigation order.
func (n *Navigator) Slides() []Event { return n.slides }

// Current returns the current slide and its index.
func (n *Navigator) Current() (Event, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.slides) == 0 {
		return Event{}, -1
	}
	return n.slides[n.index], n.index
}

// Next moves forward one slide, reporting whether it moved.
func (n *Navigator) Next() bool { return n.move(func(i int) int { return i + 1 }) }

// Prev moves back one slide, reporting whether it moved.
func (n *Navigator) Prev() bool { return n.move(func(i int) int { return i - 1 }) }

// GoTo moves to the slide with uniqueID. A leading "#" is ignored so URL fragments work.
func (n *Navigator) GoTo(uniqueID string) error {
	id := strings.TrimPrefix(uniqueID, "#")
	for i, s := range n.slides {
		if s.UniqueID == id {
			n.move(func(int) int { return i })
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownSlide, id)
}

func (n *Navigator) move(to func(int) int) bool {
	n.mu.Lock()
	next := to(n.index)
	if next < 0 || next >= len(n.slides) || next == n.index {
		n.mu.Unlock()
		return false
	}
	n.index = next
	if !n.started {
		// Start reports the position
		n.mu.Unlock()
		return true
	}
	ev := NavEvent{Kind: Change, UniqueID: n.slides[next].UniqueID, Index: next}
	subs := n.subs
	n.mu.Unlock()

	publish(subs, ev)
	return true
}

func publish(subs []func(NavEvent), ev NavEvent) {
	for _, fn := range subs {
		fn(ev)
	}
}
