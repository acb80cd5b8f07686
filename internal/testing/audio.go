package testing

import (
	"errors"
	"sync"
)

// FakeAudio records play state transitions and ends on demand
type FakeAudio struct {
	URL string

	mu      sync.Mutex
	playing bool
	closed  bool
	plays   int
	pauses  int
	ended   chan struct{}
	once    sync.Once
	PlayErr error
}

func NewFakeAudio(url string) *FakeAudio {
	return &FakeAudio{URL: url, ended: make(chan struct{})}
}

func (a *FakeAudio) Play() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errors.New("audio closed")
	}
	if a.PlayErr != nil {
		return a.PlayErr
	}
	a.playing = true
	a.plays++
	return nil
}

func (a *FakeAudio) Pause() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.playing = false
	a.pauses++
	return nil
}

func (a *FakeAudio) Ended() <-chan struct{} { return a.ended }

func (a *FakeAudio) Close() error {
	a.mu.Lock()
	a.closed = true
	a.playing = false
	a.mu.Unlock()
	a.once.Do(func() { close(a.ended) })
	return nil
}

// Finish simulates the track playing to its end
func (a *FakeAudio) Finish() {
	a.mu.Lock()
	a.playing = false
	a.mu.Unlock()
	a.once.Do(func() { close(a.ended) })
}

func (a *FakeAudio) Playing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}

func (a *FakeAudio) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *FakeAudio) Plays() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.plays
}

// AudioRecorder creates [FakeAudio] elements and keeps them in creation order
type AudioRecorder struct {
	mu       sync.Mutex
	elements []*FakeAudio
	Err      error
}

func (r *AudioRecorder) New(url string) (*FakeAudio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	a := NewFakeAudio(url)
	r.elements = append(r.elements, a)
	return a, nil
}

func (r *AudioRecorder) Elements() []*FakeAudio {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*FakeAudio(nil), r.elements...)
}

// PlayingCount counts elements currently playing
func (r *AudioRecorder) PlayingCount() int {
	n := 0
	for _, a := range r.Elements() {
		if a.Playing() {
			n++
		}
	}
	return n
}
