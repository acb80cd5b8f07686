// Package mpv plays audio URLs through an mpv child process.
package mpv

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/composers/internal/shared"
)

// DefaultBinary is looked up on PATH when no binary is configured.
const DefaultBinary = "mpv"

var (
	ErrEnded  = errors.New("mpv: playback ended")
	ErrClosed = errors.New("mpv: element closed")
)

// Opts configures an [Element].
type Opts struct {
	Binary string
	Device string
	Logger *log.Logger
}

// Args builds the mpv command line for url.
func Args(url, device string) []string {
	// --really-quiet and --no-terminal keep mpv off the TUI's terminal
	args := []string{
		"--no-video",
		"--no-terminal",
		"--really-quiet",
	}
	if device != "" {
		args = append(args, "--audio-device="+device)
	}
	return append(args, url)
}

// Element is one track's mpv process. The process starts on the first Play.
type Element struct {
	url    string
	opts   Opts
	logger *log.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	closed bool
	ended  chan struct{}
	once   sync.Once
}

// New returns an element for url without starting playback.
func New(url string, opts Opts) *Element {
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Element{
		url:    url,
		opts:   opts,
		logger: shared.WithLogger(opts.Logger, "component", "mpv"),
		ended:  make(chan struct{}),
	}
}

// Play starts mpv, or resumes a paused process.
func (e *Element) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.done() {
		return ErrEnded
	}
	if e.cmd != nil {
		return e.signal(syscall.SIGCONT)
	}

	cmd := exec.Command(e.opts.Binary, Args(e.url, e.opts.Device)...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil
	// own process group so Close reaches every child
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start mpv: %w", err)
	}
	e.cmd = cmd
	e.logger.Debug("started", "pid", cmd.Process.Pid)

	go e.wait(cmd)
	return nil
}

// Pause stops the process in place, keeping its position.
func (e *Element) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd == nil || e.closed || e.done() {
		return nil
	}
	return e.signal(syscall.SIGSTOP)
}

// Ended is closed when mpv exits, on its own or through Close.
func (e *Element) Ended() <-chan struct{} { return e.ended }

// Close kills the process group. It is safe to call more than once.
func (e *Element) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	cmd := e.cmd
	e.mu.Unlock()

	if cmd == nil {
		e.finish()
		return nil
	}

	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("failed to kill mpv: %w", err)
	}
	<-e.ended
	return nil
}

func (e *Element) wait(cmd *exec.Cmd) {
	err := cmd.Wait()
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if err != nil && !closed {
		e.logger.Warn("mpv exited", "err", err)
	}
	e.finish()
}

func (e *Element) finish() { e.once.Do(func() { close(e.ended) }) }

func (e *Element) done() bool {
	select {
	case <-e.ended:
		return true
	default:
		return false
	}
}

// signal sends sig to the process group. Callers hold mu.
func (e *Element) signal(sig syscall.Signal) error {
	if err := syscall.Kill(-e.cmd.Process.Pid, sig); err != nil {
		return fmt.Errorf("failed to signal mpv: %w", err)
	}
	return nil
}
