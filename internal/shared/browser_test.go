package shared

import (
	"errors"
	"os/exec"
	"reflect"
	"testing"
)

const embedURL = "https://w.soundcloud.com/player/?url=https%3A%2F%2Fsoundcloud.com%2Fcomposers%2Fsets%2Fbach&auto_play=false&visual=false"

func TestBrowserCommand(t *testing.T) {
	tt := []struct {
		name string
		goos string
		want []string
	}{
		{name: "macOS", goos: "darwin", want: []string{"open", embedURL}},
		{name: "Linux", goos: "linux", want: []string{"xdg-open", embedURL}},
		{name: "Windows", goos: "windows", want: []string{"cmd", "/c", "start", "", embedURL}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := browserCommand(tc.goos, embedURL)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(cmd.Args, tc.want) {
				t.Errorf("expected args %v, got %v", tc.want, cmd.Args)
			}
		})
	}

	t.Run("Unsupported Platform", func(t *testing.T) {
		if _, err := browserCommand("plan9", embedURL); err == nil {
			t.Error("expected error for unsupported platform")
		}
	})

	t.Run("Rejects Non-Web URLs", func(t *testing.T) {
		for _, raw := range []string{"", "file:///etc/passwd", "javascript:alert(1)", "https://"} {
			if _, err := browserCommand("linux", raw); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("%q: expected ErrInvalidArgument, got %v", raw, err)
			}
		}
	})
}

func TestOpenBrowser(t *testing.T) {
	origRuntime, origStart := getRuntime, startCmd
	t.Cleanup(func() { getRuntime, startCmd = origRuntime, origStart })

	t.Run("Starts The Opener", func(t *testing.T) {
		var started []string
		getRuntime = func() string { return "linux" }
		startCmd = func(cmd *exec.Cmd) error {
			started = cmd.Args
			return nil
		}

		if err := OpenBrowser(embedURL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(started) != 2 || started[1] != embedURL {
			t.Errorf("expected xdg-open with the embed URL, got %v", started)
		}
	})

	t.Run("Start Failure", func(t *testing.T) {
		getRuntime = func() string { return "darwin" }
		startCmd = func(*exec.Cmd) error { return errors.New("exec: not found") }

		if err := OpenBrowser(embedURL); err == nil {
			t.Error("expected error when the opener cannot start")
		}
	})
}
