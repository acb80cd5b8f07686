// API service for the composers proxy
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/composers/internal/models"
	"github.com/desertthunder/composers/internal/shared"
)

const (
	DefaultProxyURL = "http://127.0.0.1:3001"

	// maxBodySize caps how much of any response body is read.
	maxBodySize = 8 << 20
)

// APIService talks to the composers proxy and implements [Client].
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API service instance for the proxy at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = DefaultProxyURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    baseURL,
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

func newAPIResponse(resp *http.Response) (*APIResponse, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// ErrorMessage returns the "error" field of a JSON body, if any.
func (r *APIResponse) ErrorMessage() string {
	if m, ok := r.JSONData.(map[string]any); ok {
		if msg, ok := m["error"].(string); ok {
			return msg
		}
	}
	return ""
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	fullURL := a.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return newAPIResponse(resp)
}

// ResolvePlaylist calls GET /api/soundcloud/playlist.
func (a *APIService) ResolvePlaylist(ctx context.Context, ref string) (*models.Playlist, error) {
	if ref == "" {
		return nil, &shared.BadRequestError{Param: "url"}
	}

	resp, err := a.call(ctx, "resolve", "/api/soundcloud/playlist?url="+url.QueryEscape(ref))
	if err != nil {
		return nil, err
	}

	playlist, err := models.DecodePlaylist(resp.Body)
	if err != nil {
		return nil, &shared.MalformedResponseError{Op: "resolve", Err: err}
	}
	return playlist, nil
}

// TrackStreams calls GET /api/soundcloud/streams/{trackId}.
func (a *APIService) TrackStreams(ctx context.Context, trackID models.TrackID) (models.StreamSet, error) {
	if trackID == "" {
		return nil, &shared.BadRequestError{Param: "trackId"}
	}

	resp, err := a.call(ctx, "streams", "/api/soundcloud/streams/"+url.PathEscape(trackID.String()))
	if err != nil {
		return nil, err
	}

	streams, err := models.DecodeStreamSet(resp.Body)
	if err != nil {
		return nil, &shared.MalformedResponseError{Op: "streams", Err: err}
	}
	return streams, nil
}

// ResolveTranscoding calls GET /api/soundcloud/transcoding and returns the "url" field of the answer.
func (a *APIService) ResolveTranscoding(ctx context.Context, rawURL string) (string, error) {
	if rawURL == "" {
		return "", &shared.BadRequestError{Param: "url"}
	}

	resp, err := a.call(ctx, "transcoding", "/api/soundcloud/transcoding?url="+url.QueryEscape(rawURL))
	if err != nil {
		return "", err
	}

	var payload struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return "", &shared.MalformedResponseError{Op: "transcoding", Err: err}
	}
	if payload.URL == "" {
		return "", &shared.MalformedResponseError{Op: "transcoding", Err: errors.New("missing url")}
	}
	return payload.URL, nil
}

// HealthStatus is the proxy's /healthz answer.
type HealthStatus struct {
	Status string `json:"status"`
	Token  struct {
		Cached        bool      `json:"cached"`
		ExpiresAt     time.Time `json:"expires_at"`
		CooldownUntil time.Time `json:"cooldown_until"`
	} `json:"token"`
}

// Health calls GET /healthz.
func (a *APIService) Health(ctx context.Context) (*HealthStatus, error) {
	resp, err := a.call(ctx, "health", "/healthz")
	if err != nil {
		return nil, err
	}

	var status HealthStatus
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return nil, &shared.MalformedResponseError{Op: "health", Err: err}
	}
	return &status, nil
}

// call performs a GET and maps proxy answers onto typed errors.
func (a *APIService) call(ctx context.Context, op, path string) (*APIResponse, error) {
	resp, err := a.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &shared.RateLimitedError{RetryAfter: shared.ParseRetryAfter(resp.Headers.Get("Retry-After"))}
	case resp.StatusCode == http.StatusBadRequest:
		param := "url"
		if op == "streams" {
			param = "trackId"
		}
		return nil, &shared.BadRequestError{Param: param, Reason: resp.ErrorMessage()}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &shared.UpstreamError{Op: op, StatusCode: resp.StatusCode}
	case !resp.IsJSON:
		return nil, &shared.MalformedResponseError{Op: op, Err: errors.New("response is not JSON")}
	}

	return resp, nil
}
