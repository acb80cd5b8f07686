package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/composers/internal/formatter"
	"github.com/desertthunder/composers/internal/resolver"
	"github.com/desertthunder/composers/internal/shared"
	"github.com/urfave/cli/v3"
)

// ResolvePlaylist prints the tracks of a playlist reference.
func (r *Runner) ResolvePlaylist(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("url")
	if ref == "" {
		return fmt.Errorf("%w: playlist url", shared.ErrMissingArgument)
	}

	r.logger.Debug("resolving playlist", "url", ref)

	playlist, err := r.api.ResolvePlaylist(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to resolve playlist: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}

	format, output := cmd.String("format"), cmd.String("output")
	if output != "" {
		if err := formatter.WriteExport(playlist, format, output); err != nil {
			return err
		}
		r.logger.Info("exported playlist", "tracks", len(playlist.Tracks), "path", output)
		return nil
	}
	if format != "" {
		data, err := formatter.Render(playlist, format)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	}

	r.writePlainHeader(playlist.Title)
	for i, t := range playlist.Tracks {
		r.writePlain("%2d. %s", i, t.Title)
		if t.User.Username != "" {
			r.writePlain(" - %s", t.User.Username)
		}
		r.writePlain(" (%s)\n", t.DurationString())
	}
	return r.writePlainln("%d tracks", len(playlist.Tracks))
}

// ResolveTrack runs the stream fallback chain for one track of a reference.
func (r *Runner) ResolveTrack(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("url")
	if ref == "" {
		return fmt.Errorf("%w: track url", shared.ErrMissingArgument)
	}
	index := int(cmd.Int("index"))

	playlist, err := r.api.ResolvePlaylist(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to resolve reference: %w", err)
	}
	if index < 0 || index >= len(playlist.Tracks) {
		return fmt.Errorf("%w: index %d out of range (%d tracks)", shared.ErrInvalidArgument, index, len(playlist.Tracks))
	}

	track := playlist.Tracks[index]
	res := resolver.New(r.api,
		resolver.WithStreamFields(r.config.Player.StreamFields),
		resolver.WithLogger(r.logger),
	)

	resolution, err := res.ResolveWithSource(ctx, track)
	if err != nil {
		return fmt.Errorf("failed to resolve %q: %w", track.Title, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"track":    track,
			"url":      resolution.URL,
			"strategy": resolution.Strategy,
			"detail":   resolution.Detail,
		}, true)
	}

	r.writePlain("%s\n", track.Title)
	r.writePlain("  via %s (%s)\n", resolution.Strategy, resolution.Detail)
	return r.writePlain("  %s\n", resolution.URL)
}
