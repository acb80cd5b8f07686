// Package repositories implements SQLite persistence for the proxy server.
//
// Key Implementations:
//   - [TokenRepository] : the token_cache row per OAuth client and the token_events log
//   - [TokenStoreAdapter] : binds TokenRepository to one client for the token cache
//
// Tokens are persisted so a restarted server reuses a still-valid token and keeps honoring an
// active cooldown instead of hitting a rate-limited token endpoint again.
package repositories
