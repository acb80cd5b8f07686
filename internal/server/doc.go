// Package server provides HTTP routing, middleware and the media API proxy handlers.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
//
// # Proxy Routes
//
// [ProxyHandler] serves the read-only routes through which the player reaches the media API:
//   - GET /api/soundcloud/playlist?url=
//   - GET /api/soundcloud/streams/{trackId}
//   - GET /api/soundcloud/transcoding?url=
//
// Answers are the upstream JSON body on success. Failures are a JSON object with a single "error" field:
//   - 400 : missing or rejected input
//   - 429 : token endpoint or upstream rate limited, with Retry-After in seconds
//   - 502 : token unavailable, or a success without a JSON body
//   - other upstream statuses are passed through with a generic message
//
// # Middleware
//
//   - [RequestID] : X-Request-ID on every response
//   - [AccessLog] : one structured log line per request
//   - [Recover] : panics become a JSON 500
//   - [CORS] : cross-origin GETs for the configured origin
//
// [Server] runs the router and shuts down gracefully when its context ends.
package server
