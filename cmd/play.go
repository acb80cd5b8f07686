package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/composers/internal/mpv"
	"github.com/desertthunder/composers/internal/playback"
	"github.com/desertthunder/composers/internal/resolver"
	"github.com/desertthunder/composers/internal/shared"
	"github.com/desertthunder/composers/internal/timeline"
	"github.com/desertthunder/composers/internal/ui"
	"github.com/urfave/cli/v3"
)

// Play launches the timeline player TUI.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("timeline")
	if path == "" {
		path = r.config.Player.Timeline
	}

	doc, err := timeline.Load(path)
	if err != nil {
		return err
	}
	nav := timeline.NewNavigator(doc)
	if slide := cmd.String("slide"); slide != "" {
		if err := nav.GoTo(slide); err != nil {
			return err
		}
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Player.LogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	ctl := r.newController()
	defer func() {
		if err := ctl.Close(); err != nil {
			r.logger.Warn("failed to close audio", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewModel(ctx, nav, ctl)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

func (r *Runner) newController() *playback.Controller {
	audio := mpv.Opts{
		Binary: r.config.Player.MPVPath,
		Device: r.config.Player.AudioDevice,
		Logger: r.logger,
	}

	return playback.NewController(playback.Options{
		Loader: r.api,
		Resolver: resolver.New(r.api,
			resolver.WithStreamFields(r.config.Player.StreamFields),
			resolver.WithLogger(r.logger),
		),
		NewAudio: func(url string) (playback.Audio, error) {
			return mpv.New(url, audio), nil
		},
		Logger: r.logger,
	})
}
