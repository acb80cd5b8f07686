// package services implements HTTP clients for the media API and for the composers proxy
package services

import (
	"context"

	"github.com/desertthunder/composers/internal/models"
)

// TokenSource supplies the bearer token for upstream calls.
type TokenSource interface {
	// Token returns a valid access token or a typed error (see [shared.RateLimitedError]).
	Token(ctx context.Context) (models.AccessToken, error)

	// Invalidate drops value if it is still the cached token.
	Invalidate(value string)
}

// Upstream is the server-side view of the media API consumed by the proxy handlers.
//
// Every method answers with the upstream JSON body on success. Non-success answers are typed errors.
type Upstream interface {
	// Resolve resolves a public playlist or track reference.
	Resolve(ctx context.Context, ref string) (*APIResponse, error)

	// TrackStreams fetches the stream URL set of a track.
	TrackStreams(ctx context.Context, trackID string) (*APIResponse, error)

	// Transcoding resolves a transcoding URL into a playable URL.
	Transcoding(ctx context.Context, rawURL string) (*APIResponse, error)
}

// Client is the player-side view of the proxy.
type Client interface {
	// ResolvePlaylist resolves a playlist reference into its track descriptors.
	ResolvePlaylist(ctx context.Context, ref string) (*models.Playlist, error)

	// TrackStreams returns the non-empty stream URLs of a track.
	TrackStreams(ctx context.Context, trackID models.TrackID) (models.StreamSet, error)

	// ResolveTranscoding returns the playable URL behind a transcoding.
	ResolveTranscoding(ctx context.Context, rawURL string) (string, error)
}
