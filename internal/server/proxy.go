package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/composers/internal/auth"
	"github.com/desertthunder/composers/internal/services"
	"github.com/desertthunder/composers/internal/shared"
)

const msgRateLimited = "SoundCloud token rate-limited, try again shortly"

// ProxyHandler serves the three read-only media API routes. It implements [Handler].
type ProxyHandler struct {
	upstream services.Upstream
	logger   *log.Logger
	mux      *http.ServeMux
}

// NewProxyHandler creates a ProxyHandler relaying to upstream.
func NewProxyHandler(upstream services.Upstream, logger *log.Logger) *ProxyHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	h := &ProxyHandler{upstream: upstream, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /api/soundcloud/playlist", h.playlist)
	h.mux.HandleFunc("GET /api/soundcloud/streams/{trackId}", h.streams)
	h.mux.HandleFunc("GET /api/soundcloud/streams/{$}", h.streams)
	h.mux.HandleFunc("GET /api/soundcloud/transcoding", h.transcoding)
	return h
}

// Routes returns the HTTP routes this handler serves.
//
// Patterns carry no method so that preflight requests reach the middleware.
func (h *ProxyHandler) Routes() []string {
	return []string{
		"/api/soundcloud/playlist",
		"/api/soundcloud/streams/{trackId}",
		"/api/soundcloud/streams/{$}",
		"/api/soundcloud/transcoding",
	}
}

// ServeHTTP dispatches GET and HEAD requests to the route handlers.
func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	h.mux.ServeHTTP(w, r)
}

func (h *ProxyHandler) playlist(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("url")
	if ref == "" {
		writeError(w, http.StatusBadRequest, "Missing url parameter")
		return
	}

	resp, err := h.upstream.Resolve(r.Context(), ref)
	h.relay(w, r, "resolve", resp, err)
}

func (h *ProxyHandler) streams(w http.ResponseWriter, r *http.Request) {
	trackID := r.PathValue("trackId")
	if trackID == "" {
		writeError(w, http.StatusBadRequest, "Missing trackId")
		return
	}

	resp, err := h.upstream.TrackStreams(r.Context(), trackID)
	h.relay(w, r, "streams", resp, err)
}

func (h *ProxyHandler) transcoding(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Missing url parameter")
		return
	}

	resp, err := h.upstream.Transcoding(r.Context(), raw)
	h.relay(w, r, "transcoding", resp, err)
}

// relay writes the upstream JSON body verbatim, or maps err onto a generic JSON error.
//
// Upstream bodies of failed calls never reach the client.
func (h *ProxyHandler) relay(w http.ResponseWriter, r *http.Request, op string, resp *services.APIResponse, err error) {
	if err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(resp.Body)
		return
	}

	logger := h.logger.With("op", op, "request_id", RequestIDFrom(r.Context()))

	var (
		br *shared.BadRequestError
		ue *shared.UpstreamError
	)
	rl, limited := shared.AsRateLimited(err)

	switch {
	case limited:
		logger.Warn("rate limited", "retry_after", rl.RetryAfterSeconds())
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfterSeconds()))
		writeError(w, http.StatusTooManyRequests, msgRateLimited)
	case errors.As(err, &br):
		if br.Reason == "" {
			writeError(w, http.StatusBadRequest, "Missing "+br.Param)
		} else {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s parameter: %s", br.Param, br.Reason))
		}
	case errors.Is(err, shared.ErrAuthentication):
		logger.Error("token unavailable", "err", err)
		writeError(w, http.StatusBadGateway, shared.ErrAuthentication.Error())
	case errors.As(err, &ue):
		logger.Warn("upstream error", "status", ue.StatusCode)
		writeError(w, ue.StatusCode, fmt.Sprintf("SoundCloud %s error: %d", op, ue.StatusCode))
	case errors.Is(err, shared.ErrMalformedResponse):
		logger.Error("malformed upstream response", "err", err)
		writeError(w, http.StatusBadGateway, fmt.Sprintf("SoundCloud %s error: malformed response", op))
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("upstream timeout", "err", err)
		writeError(w, http.StatusGatewayTimeout, "Upstream timeout")
	case errors.Is(err, context.Canceled):
		logger.Debug("client went away")
	default:
		logger.Error("proxy error", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// TokenStatus reports token cache state without the token value.
type TokenStatus interface {
	Snapshot() auth.Snapshot
}

// HealthHandler serves GET /healthz.
type HealthHandler struct {
	tokens TokenStatus
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(tokens TokenStatus) *HealthHandler {
	return &HealthHandler{tokens: tokens}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"token":  h.tokens.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// RouterOpts configures [NewRouter].
type RouterOpts struct {
	Upstream      services.Upstream
	Tokens        TokenStatus
	Logger        *log.Logger
	AllowedOrigin string
	// StaticDir, when set, is served at /timeline/.
	StaticDir string
}

// NewRouter assembles the proxy: middleware, the media routes, /healthz and optional static files.
func NewRouter(opts RouterOpts) *BasicRouter {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	r := NewBasicRouter()
	r.Use(RequestID(), AccessLog(opts.Logger), Recover(opts.Logger), CORS(opts.AllowedOrigin))

	r.Handler(NewProxyHandler(opts.Upstream, opts.Logger))
	r.Handle(http.MethodGet, "/healthz", NewHealthHandler(opts.Tokens))
	if opts.StaticDir != "" {
		r.Handle(http.MethodGet, "/timeline/", http.StripPrefix("/timeline/", http.FileServer(http.Dir(opts.StaticDir))))
	}
	r.NotFound()
	return r
}
