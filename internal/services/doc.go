// Package services implements the HTTP clients on both sides of the composers proxy.
//
// # Upstream
//
// [SoundCloudService] implements [Upstream] for the proxy server. Each call obtains a bearer token
// from a [TokenSource], waits on a [rate.Limiter] and sends "Authorization: OAuth <token>".
//
// Transcoding URLs come from track metadata and are only fetched when their host is the API host
// or one of the configured allowed hosts.
//
// # Proxy Client
//
// [APIService] implements [Client] for the player. It talks to the proxy routes:
//   - GET /api/soundcloud/playlist?url=
//   - GET /api/soundcloud/streams/{trackId}
//   - GET /api/soundcloud/transcoding?url=
//
// # Error Handling
//
// Both sides map answers onto typed errors from the shared package:
//   - [shared.RateLimitedError] : 429, with Retry-After
//   - [shared.BadRequestError] : missing or rejected input
//   - [shared.UpstreamError] : any other non-success status
//   - [shared.MalformedResponseError] : success without a usable JSON body
//   - [shared.ErrAuthentication] : the token could not be obtained (server side only)
package services
