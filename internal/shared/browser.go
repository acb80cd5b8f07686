package shared

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

var (
	getRuntime = func() string { return runtime.GOOS }
	startCmd   = func(cmd *exec.Cmd) error { return cmd.Start() }
)

// OpenBrowser opens an http(s) URL, such as a degraded widget's embed player, in the default browser.
//
// Supports macOS, Linux, and Windows platforms.
func OpenBrowser(rawURL string) error {
	cmd, err := browserCommand(getRuntime(), rawURL)
	if err != nil {
		return err
	}

	if err := startCmd(cmd); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}

// browserCommand builds the platform opener for rawURL without running it.
func browserCommand(goos, rawURL string) (*exec.Cmd, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("%w: not a web URL: %q", ErrInvalidArgument, rawURL)
	}

	switch goos {
	case "darwin":
		return exec.Command("open", rawURL), nil
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", rawURL), nil
	case "windows":
		// start treats the first quoted argument as a window title
		return exec.Command("cmd", "/c", "start", "", rawURL), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}
