// SoundCloud API implementation of [Upstream]
//
// Endpoints based on https://developers.soundcloud.com/docs/api/explorer/open-api
package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/composers/internal/shared"
	"golang.org/x/time/rate"
)

const (
	SoundCloudAPIURL   = "https://api.soundcloud.com"
	SoundCloudTokenURL = "https://api.soundcloud.com/oauth2/token"
	SoundCloudV2Host   = "api-v2.soundcloud.com"
	EmbedPlayerURL     = "https://w.soundcloud.com/player/"
)

// SoundCloudOpts configures a [SoundCloudService].
type SoundCloudOpts struct {
	APIURL string
	// AllowedHosts may receive the bearer token through the transcoding route, in addition to the API host.
	AllowedHosts      []string
	Tokens            TokenSource
	Client            *http.Client
	RequestsPerSecond float64
	// Cooldown is reported as Retry-After when the upstream rate limits without one.
	Cooldown time.Duration
	Logger   *log.Logger
}

// SoundCloudService performs authenticated reads against the SoundCloud API.
type SoundCloudService struct {
	baseURL    string
	allowed    map[string]bool
	tokens     TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
	cooldown   time.Duration
	logger     *log.Logger
}

// NewSoundCloudService creates a new SoundCloudService
func NewSoundCloudService(opts SoundCloudOpts) (*SoundCloudService, error) {
	if opts.Tokens == nil {
		return nil, fmt.Errorf("%w: token source", shared.ErrMissingArgument)
	}
	if opts.APIURL == "" {
		opts.APIURL = SoundCloudAPIURL
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	base, err := url.Parse(opts.APIURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("%w: api url %q", shared.ErrInvalidConfig, opts.APIURL)
	}

	allowed := map[string]bool{strings.ToLower(base.Hostname()): true}
	hosts := opts.AllowedHosts
	if len(hosts) == 0 {
		hosts = []string{SoundCloudV2Host}
	}
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allowed[h] = true
		}
	}

	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = max(1, int(opts.RequestsPerSecond))
	}

	return &SoundCloudService{
		baseURL:    strings.TrimRight(opts.APIURL, "/"),
		allowed:    allowed,
		tokens:     opts.Tokens,
		httpClient: opts.Client,
		limiter:    rate.NewLimiter(limit, burst),
		cooldown:   opts.Cooldown,
		logger:     shared.WithLogger(opts.Logger, "component", "soundcloud"),
	}, nil
}

// Resolve calls GET /resolve?url=ref
func (s *SoundCloudService) Resolve(ctx context.Context, ref string) (*APIResponse, error) {
	if ref == "" {
		return nil, &shared.BadRequestError{Param: "url"}
	}
	return s.get(ctx, "resolve", s.baseURL+"/resolve?url="+url.QueryEscape(ref))
}

// TrackStreams calls GET /tracks/{id}/streams
func (s *SoundCloudService) TrackStreams(ctx context.Context, trackID string) (*APIResponse, error) {
	if trackID == "" {
		return nil, &shared.BadRequestError{Param: "trackId"}
	}
	return s.get(ctx, "streams", s.baseURL+"/tracks/"+url.PathEscape(trackID)+"/streams")
}

// Transcoding calls GET on a transcoding URL taken from a track's media block.
//
// The URL must point at an allowed host, otherwise the bearer token would leak to it.
func (s *SoundCloudService) Transcoding(ctx context.Context, rawURL string) (*APIResponse, error) {
	if rawURL == "" {
		return nil, &shared.BadRequestError{Param: "url"}
	}
	if err := s.checkTranscodingURL(rawURL); err != nil {
		return nil, err
	}
	return s.get(ctx, "transcoding", rawURL)
}

func (s *SoundCloudService) checkTranscodingURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return &shared.BadRequestError{Param: "url", Reason: "must be an absolute URL"}
	}

	host := strings.ToLower(u.Hostname())
	switch u.Scheme {
	case "https":
	case "http":
		if !isLoopback(host) {
			return &shared.BadRequestError{Param: "url", Reason: "must use https"}
		}
	default:
		return &shared.BadRequestError{Param: "url", Reason: "must use https"}
	}

	if !s.allowed[host] {
		return &shared.BadRequestError{Param: "url", Reason: "host is not allowed"}
	}
	return nil
}

// get performs an authenticated GET, mapping non-success answers onto typed errors.
func (s *SoundCloudService) get(ctx context.Context, op, target string) (*APIResponse, error) {
	tok, err := s.tokens.Token(ctx)
	if err != nil {
		if _, ok := shared.AsRateLimited(err); ok || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthentication, err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+tok.Value)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	apiResp, err := newAPIResponse(resp)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("upstream call", "op", op, "status", resp.StatusCode, "duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := shared.ParseRetryAfter(resp.Header.Get("Retry-After"))
		if wait == 0 {
			wait = s.cooldown
		}
		s.logger.Warn("upstream rate limited", "op", op, "retry_after", wait)
		return nil, &shared.RateLimitedError{RetryAfter: wait}
	case resp.StatusCode == http.StatusUnauthorized:
		s.logger.Warn("upstream rejected token", "op", op)
		s.tokens.Invalidate(tok.Value)
		return nil, &shared.UpstreamError{Op: op, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &shared.UpstreamError{Op: op, StatusCode: resp.StatusCode}
	case !apiResp.IsJSON:
		return nil, &shared.MalformedResponseError{Op: op, Err: errors.New("response is not JSON")}
	}

	return apiResp, nil
}

// EmbedURL returns the embeddable player URL for a playlist reference.
func EmbedURL(ref string) string {
	return EmbedPlayerURL + "?url=" + url.QueryEscape(ref) + "&auto_play=false&visual=false"
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
