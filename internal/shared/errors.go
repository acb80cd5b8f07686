package shared

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// Configuration errors
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing credentials")

	// Upstream and resolution errors
	ErrRateLimited        = errors.New("rate limited")
	ErrUpstream           = errors.New("upstream request failed")
	ErrMalformedResponse  = errors.New("malformed upstream response")
	ErrNoPlayableStream   = errors.New("no playable stream")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrAuthentication     = errors.New("upstream authentication failed")

	// Input validation errors
	ErrBadRequest      = errors.New("bad request")
	ErrMissingArgument = errors.New("missing required argument")
	ErrInvalidArgument = errors.New("invalid argument")
)

// RateLimitedError reports upstream throttling. RetryAfter is how long callers should wait.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%v, retry in %ds", ErrRateLimited, e.RetryAfterSeconds())
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below one.
func (e *RateLimitedError) RetryAfterSeconds() int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// UpstreamError is a non-success status from the media API or its token endpoint.
type UpstreamError struct {
	Op         string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%v: status %d", ErrUpstream, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v: status %d", e.Op, ErrUpstream, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// MalformedResponseError is a success status carrying an unexpected body.
// It matches both [ErrMalformedResponse] and [ErrUpstream].
type MalformedResponseError struct {
	Op  string
	Err error
}

func (e *MalformedResponseError) Error() string {
	msg := ErrMalformedResponse.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() []error {
	errs := []error{ErrMalformedResponse, ErrUpstream}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// BadRequestError is a missing or invalid required parameter, detected before any upstream call.
type BadRequestError struct {
	Param  string
	Reason string
}

func (e *BadRequestError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%v: missing %s", ErrBadRequest, e.Param)
	}
	return fmt.Sprintf("%v: %s %s", ErrBadRequest, e.Param, e.Reason)
}

func (e *BadRequestError) Unwrap() error { return ErrBadRequest }

// NoPlayableStreamError is returned once every resolution strategy for a track has been exhausted.
type NoPlayableStreamError struct {
	TrackID string
	Causes  []error
}

func (e *NoPlayableStreamError) Error() string {
	msg := fmt.Sprintf("%v for track %q", ErrNoPlayableStream, e.TrackID)
	if len(e.Causes) == 0 {
		return msg
	}
	causes := make([]string, len(e.Causes))
	for i, c := range e.Causes {
		causes[i] = c.Error()
	}
	return msg + " (" + strings.Join(causes, "; ") + ")"
}

func (e *NoPlayableStreamError) Unwrap() error { return ErrNoPlayableStream }

// AsRateLimited reports whether err carries a [RateLimitedError].
func AsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// ParseRetryAfter reads a delay-seconds Retry-After header value, returning 0 when absent or not numeric.
func ParseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
