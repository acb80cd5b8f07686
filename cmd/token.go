package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/composers/internal/repositories"
	"github.com/desertthunder/composers/internal/shared"
	"github.com/urfave/cli/v3"
)

// TokenStatus prints the proxy's token cache state.
func (r *Runner) TokenStatus(ctx context.Context, cmd *cli.Command) error {
	status, err := r.api.Health(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err)
	}

	r.writePlain("proxy: %s\n", status.Status)
	switch {
	case !status.Token.CooldownUntil.IsZero():
		r.writePlain("token: rate limited until %s\n", status.Token.CooldownUntil.Local().Format(time.TimeOnly))
	case status.Token.Cached:
		r.writePlain("token: cached, expires %s\n", status.Token.ExpiresAt.Local().Format(time.DateTime))
	default:
		r.writePlain("token: none cached\n")
	}
	return nil
}

// TokenEvents lists recent token exchanges recorded by the server.
func (r *Runner) TokenEvents(ctx context.Context, cmd *cli.Command) error {
	clientID := r.config.Credentials.SoundCloud.ClientID
	if clientID == "" {
		return fmt.Errorf("%w: SOUND_CLOUD_CLIENT_ID", shared.ErrMissingCredentials)
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	events, err := repositories.NewTokenRepository(db).ListEvents(ctx, clientID, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return r.writePlain("no token exchanges recorded\n")
	}
	for _, ev := range events {
		r.writePlain("%s  %-12s %d\n", ev.CreatedAt.Local().Format(time.DateTime), ev.Outcome, ev.StatusCode)
	}
	return nil
}
