// Package auth acquires and caches the application's OAuth client-credentials token.
//
// # Token Cache
//
// [TokenCache] serves a cached token while it is valid (with an expiry margin), coalesces
// concurrent misses into one exchange through a [singleflight.Group], and enforces a cooldown
// after the token endpoint rate limits. State may be persisted through a [Store] so restarts
// neither re-exchange a valid token nor ignore an active cooldown.
//
// # Exchanger
//
// [ClientCredentials] wraps [clientcredentials.Config] and maps token endpoint failures onto
// the shared error taxonomy:
//   - 429 : [shared.RateLimitedError]
//   - other error statuses : [shared.UpstreamError]
//   - success without a usable body : [shared.MalformedResponseError]
//
// The token value never leaves the server process.
package auth
