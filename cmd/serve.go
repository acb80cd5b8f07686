package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/composers/internal/auth"
	"github.com/desertthunder/composers/internal/repositories"
	"github.com/desertthunder/composers/internal/server"
	"github.com/desertthunder/composers/internal/services"
	"github.com/desertthunder/composers/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the proxy until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if port := int(cmd.Int("port")); port != 0 {
		r.config.Server.Port = port
	}
	if static := cmd.String("static"); static != "" {
		r.config.Server.StaticDir = static
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	handler, closeFn, err := r.proxyHandler(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(r.config.Server.Address(), handler, r.logger)
	return srv.Run(ctx)
}

// proxyHandler wires the token cache, its store and the upstream client behind the router.
func (r *Runner) proxyHandler(ctx context.Context) (http.Handler, func(), error) {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	closeFn := func() {
		if err := db.Close(); err != nil {
			r.logger.Warn("failed to close database", "err", err)
		}
	}

	creds := r.config.Credentials.SoundCloud
	sc := r.config.SoundCloud
	client := &http.Client{Timeout: sc.Timeout()}

	tokens := auth.NewTokenCache(ctx, auth.TokenCacheOpts{
		Exchanger:    auth.NewClientCredentials(creds.ClientID, creds.ClientSecret, sc.TokenURL, client),
		Store:        repositories.NewTokenStoreAdapter(repositories.NewTokenRepository(db), creds.ClientID),
		Logger:       r.logger,
		ExpiryMargin: sc.ExpiryMargin(),
		Cooldown:     sc.Cooldown(),
	})

	svc, err := services.NewSoundCloudService(services.SoundCloudOpts{
		APIURL:            sc.APIURL,
		AllowedHosts:      sc.AllowedHosts,
		Tokens:            tokens,
		Client:            client,
		RequestsPerSecond: sc.RequestsPerSecond,
		Cooldown:          sc.Cooldown(),
		Logger:            r.logger,
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	router := server.NewRouter(server.RouterOpts{
		Upstream:      svc,
		Tokens:        tokens,
		Logger:        r.logger,
		AllowedOrigin: r.config.Server.AllowedOrigin,
		StaticDir:     r.config.Server.StaticDir,
	})
	return router, closeFn, nil
}
