package shared

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrors(t *testing.T) {
	t.Run("RateLimitedError", func(t *testing.T) {
		tt := []struct {
			name  string
			after time.Duration
			want  int
		}{
			{name: "whole seconds", after: 60 * time.Second, want: 60},
			{name: "rounds up", after: 1500 * time.Millisecond, want: 2},
			{name: "never below one", after: 10 * time.Millisecond, want: 1},
			{name: "zero", after: 0, want: 1},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				err := &RateLimitedError{RetryAfter: tc.after}
				if got := err.RetryAfterSeconds(); got != tc.want {
					t.Errorf("RetryAfterSeconds() = %d, want %d", got, tc.want)
				}
			})
		}

		wrapped := fmt.Errorf("token: %w", &RateLimitedError{RetryAfter: 5 * time.Second})
		if !errors.Is(wrapped, ErrRateLimited) {
			t.Error("expected wrapped error to match ErrRateLimited")
		}
		rl, ok := AsRateLimited(wrapped)
		if !ok || rl.RetryAfterSeconds() != 5 {
			t.Errorf("AsRateLimited() = %v, %v", rl, ok)
		}
		if _, ok := AsRateLimited(ErrUpstream); ok {
			t.Error("plain upstream error should not be rate limited")
		}
	})

	t.Run("MalformedResponseError", func(t *testing.T) {
		cause := errors.New("unexpected EOF")
		err := &MalformedResponseError{Op: "token", Err: cause}

		if !errors.Is(err, ErrMalformedResponse) {
			t.Error("expected ErrMalformedResponse")
		}
		if !errors.Is(err, ErrUpstream) {
			t.Error("malformed responses should be treated as upstream errors")
		}
		if !errors.Is(err, cause) {
			t.Error("expected cause to be reachable")
		}
		if !strings.HasPrefix(err.Error(), "token: ") {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("UpstreamError", func(t *testing.T) {
		err := &UpstreamError{Op: "streams", StatusCode: 404}
		if !errors.Is(err, ErrUpstream) {
			t.Error("expected ErrUpstream")
		}
		if !strings.Contains(err.Error(), "404") {
			t.Errorf("expected status in message, got %q", err.Error())
		}
	})

	t.Run("BadRequestError", func(t *testing.T) {
		err := &BadRequestError{Param: "url"}
		if !errors.Is(err, ErrBadRequest) {
			t.Error("expected ErrBadRequest")
		}
		if err.Error() != "bad request: missing url" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("NoPlayableStreamError", func(t *testing.T) {
		err := &NoPlayableStreamError{TrackID: "42", Causes: []error{errors.New("no variants")}}
		if !errors.Is(err, ErrNoPlayableStream) {
			t.Error("expected ErrNoPlayableStream")
		}
		if !strings.Contains(err.Error(), "no variants") {
			t.Errorf("expected causes in message, got %q", err.Error())
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30", 30 * time.Second},
		{" 5 ", 5 * time.Second},
		{"0", 0},
		{"", 0},
		{"soon", 0},
		{"-3", 0},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0},
	}

	for _, tt := range tests {
		if got := ParseRetryAfter(tt.in); got != tt.want {
			t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
