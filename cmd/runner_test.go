package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/composers/internal/services"
	"github.com/desertthunder/composers/internal/shared"
	tu "github.com/desertthunder/composers/internal/testing"
	"github.com/urfave/cli/v3"
)

const playlistRef = "https://soundcloud.com/composers/sets/bach"

// newStubProxy serves the client-facing proxy routes with canned answers.
func newStubProxy(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/soundcloud/playlist", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("url") != playlistRef {
			tu.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "SoundCloud resolve error: 404"})
			return
		}
		tu.WriteJSON(w, http.StatusOK, map[string]any{
			"kind":  "playlist",
			"title": "Bach Essentials",
			"tracks": []map[string]any{
				{"id": 1, "title": "Prelude", "duration": 125000, "user": map[string]string{"username": "js"},
					"media": map[string]any{"transcodings": []map[string]any{
						{"url": "https://api-v2.soundcloud.com/media/1/progressive", "format": map[string]string{"protocol": "progressive"}},
					}}},
				{"id": 2, "title": "Fugue", "duration": 190000},
			},
		})
	})
	mux.HandleFunc("GET /api/soundcloud/transcoding", func(w http.ResponseWriter, r *http.Request) {
		tu.WriteJSON(w, http.StatusOK, map[string]string{"url": "https://cdn/1.mp3"})
	})
	mux.HandleFunc("GET /api/soundcloud/streams/{trackId}", func(w http.ResponseWriter, r *http.Request) {
		tu.WriteJSON(w, http.StatusOK, map[string]string{"http_mp3_128_url": "https://cdn/" + r.PathValue("trackId") + "-streams.mp3"})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		tu.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "token": map[string]any{"cached": false, "cooldown_until": "2030-01-01T10:00:00Z"}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// runApp runs the CLI with a config path that does not exist, so defaults apply.
func runApp(t *testing.T, proxyURL string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SOUND_CLOUD_CLIENT_ID", "")
	t.Setenv("SOUND_CLOUD_CLIENT_SECRET", "")
	t.Setenv("COMPOSERS_PROXY_URL", "")

	out := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{}), Output: out})

	argv := []string{"composers", "--config", filepath.Join(t.TempDir(), "config.toml"), "--env-file", ""}
	if proxyURL != "" {
		argv = append(argv, "--proxy", proxyURL)
	}
	err := newApp(runner).Run(context.Background(), append(argv, args...))
	return out.String(), err
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			api := &services.APIService{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				API:        api,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.api != api {
				t.Error("expected api to be set")
			}
		})

		t.Run("with nil dependencies uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected stdout output")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected default http client")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "{\n  \"key\": \"value\"\n}\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "{\"key\":\"value\"}\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(map[string]any{"ch": make(chan int)}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			w := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &w})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("%d tracks", 2); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "2 tracks" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writePlainln("text"); err == nil {
				t.Error("expected error")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		var names []string
		for _, c := range runner.register() {
			names = append(names, c.Name)
		}
		want := "serve setup resolve token api play"
		if strings.Join(names, " ") != want {
			t.Errorf("expected commands %q, got %q", want, strings.Join(names, " "))
		}
	})
}

func TestBefore(t *testing.T) {
	t.Run("loads config and environment", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("[server]\nport = 4000\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Setenv("SOUND_CLOUD_CLIENT_ID", "from-env")
		t.Setenv("COMPOSERS_PROXY_URL", "")

		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{}), Output: &bytes.Buffer{}})
		app := newApp(runner)
		app.Commands = nil
		app.Action = func(context.Context, *cli.Command) error { return nil }

		if err := app.Run(context.Background(), []string{"composers", "--config", path, "--env-file", "", "--proxy", "http://proxy:1"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if runner.config.Server.Port != 4000 {
			t.Errorf("expected port from file, got %d", runner.config.Server.Port)
		}
		if runner.config.Server.Host != "127.0.0.1" {
			t.Errorf("expected default host, got %q", runner.config.Server.Host)
		}
		if runner.config.Credentials.SoundCloud.ClientID != "from-env" {
			t.Errorf("expected client id from env, got %q", runner.config.Credentials.SoundCloud.ClientID)
		}
		if runner.config.Player.ProxyURL != "http://proxy:1" {
			t.Errorf("expected proxy override, got %q", runner.config.Player.ProxyURL)
		}
		if runner.api == nil {
			t.Error("expected proxy client to be built")
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("[server\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{})})
		err := newApp(runner).Run(context.Background(), []string{"composers", "--config", path, "token", "status"})
		if err == nil || !strings.Contains(err.Error(), "failed to parse config") {
			t.Errorf("expected parse error, got %v", err)
		}
	})
}

func TestServe(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		_, err := runApp(t, "", "serve")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("invalid port", func(t *testing.T) {
		_, err := runApp(t, "", "serve", "--port", "70000")
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestResolve(t *testing.T) {
	proxy := newStubProxy(t)

	t.Run("playlist", func(t *testing.T) {
		out, err := runApp(t, proxy.URL, "resolve", "playlist", playlistRef)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"Bach Essentials", " 0. Prelude - js (2:05)", " 1. Fugue (3:10)", "2 tracks"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("playlist json", func(t *testing.T) {
		out, err := runApp(t, proxy.URL, "resolve", "playlist", "--json", playlistRef)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, `"title": "Bach Essentials"`) {
			t.Errorf("expected JSON output, got:\n%s", out)
		}
	})

	t.Run("playlist csv", func(t *testing.T) {
		out, err := runApp(t, proxy.URL, "resolve", "playlist", "--format", "csv", playlistRef)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(out, "Index,ID,Title") || !strings.Contains(out, "Prelude,js,2:05") {
			t.Errorf("expected CSV output, got:\n%s", out)
		}
	})

	t.Run("playlist export to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bach.md")
		if _, err := runApp(t, proxy.URL, "resolve", "playlist", "-f", "markdown", "-o", path, playlistRef); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("expected export file: %v", err)
		}
		if !strings.Contains(string(data), "**Tracks**: 2") {
			t.Errorf("unexpected export:\n%s", data)
		}
	})

	t.Run("playlist unknown format", func(t *testing.T) {
		_, err := runApp(t, proxy.URL, "resolve", "playlist", "--format", "xml", playlistRef)
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("playlist not found", func(t *testing.T) {
		_, err := runApp(t, proxy.URL, "resolve", "playlist", "https://soundcloud.com/missing")
		if !errors.Is(err, shared.ErrUpstream) {
			t.Errorf("expected ErrUpstream, got %v", err)
		}
	})

	t.Run("missing url", func(t *testing.T) {
		_, err := runApp(t, proxy.URL, "resolve", "playlist")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("track through transcoding", func(t *testing.T) {
		out, err := runApp(t, proxy.URL, "resolve", "track", playlistRef)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "https://cdn/1.mp3") || !strings.Contains(out, "via transcoding") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("track through streams", func(t *testing.T) {
		out, err := runApp(t, proxy.URL, "resolve", "track", "--index", "1", playlistRef)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "https://cdn/2-streams.mp3") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("track index out of range", func(t *testing.T) {
		_, err := runApp(t, proxy.URL, "resolve", "track", "--index", "5", playlistRef)
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestTokenStatus(t *testing.T) {
	proxy := newStubProxy(t)

	out, err := runApp(t, proxy.URL, "token", "status")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "proxy: ok") || !strings.Contains(out, "rate limited until") {
		t.Errorf("unexpected output:\n%s", out)
	}

	t.Run("proxy down", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		_, err := runApp(t, srv.URL, "token", "status")
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestAPIGet(t *testing.T) {
	proxy := newStubProxy(t)

	out, err := runApp(t, proxy.URL, "api", "get", "--json", "/healthz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, `{"status":"ok"`) {
		t.Errorf("unexpected output %q", out)
	}

	_, err = runApp(t, proxy.URL, "api", "get", "/api/soundcloud/playlist?url=x")
	if !errors.Is(err, shared.ErrUpstream) || !strings.Contains(err.Error(), "SoundCloud resolve error: 404") {
		t.Errorf("expected upstream error with message, got %v", err)
	}
}
