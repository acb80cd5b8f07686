// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand runs the SoundCloud proxy
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the SoundCloud proxy server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (overrides server.port and PORT)",
			},
			&cli.StringFlag{
				Name:  "static",
				Usage: "Directory served at /timeline/",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing, initialize the database and run migrations",
		Action: r.SetupDatabase,
	}
}

// resolveCommand resolves playlists and tracks through the proxy
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve SoundCloud references through the proxy",
		Commands: []*cli.Command{
			{
				Name:  "playlist",
				Usage: "List the tracks of a playlist URL",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: text, csv, or markdown",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the export to a file instead of stdout",
					},
				},
				Action: r.ResolvePlaylist,
			},
			{
				Name:  "track",
				Usage: "Resolve a playable stream URL for one track of a playlist or track URL",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "index",
						Aliases: []string{"i"},
						Usage:   "Zero-based track index within the playlist",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ResolveTrack,
			},
		},
	}
}

// tokenCommand inspects the proxy's token cache
func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Inspect the access token cache",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show the proxy's token cache state (calls /healthz)",
				Action: r.TokenStatus,
			},
			{
				Name:  "events",
				Usage: "List recorded token exchanges from the local database",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of events",
						Value: 20,
					},
				},
				Action: r.TokenEvents,
			},
		},
	}
}

// apiCommand handles direct (proxy) API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct API calls to the proxy",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET to the proxy, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
		},
	}
}

// playCommand returns the top-level TUI command for the timeline player.
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "play",
		Aliases: []string{"tui", "ui"},
		Usage:   "Browse the composer timeline and play its playlists",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "timeline",
				Aliases: []string{"t"},
				Usage:   "Path to timeline.json (overrides player.timeline)",
			},
			&cli.StringFlag{
				Name:  "slide",
				Usage: "Unique id of the slide to start on",
			},
		},
		Action: r.Play,
	}
}
