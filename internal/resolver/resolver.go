// Package resolver turns a track descriptor into a playable URL through an ordered fallback chain.
//
// The default chain is:
//  1. transcoding : the progressive variant (else the first), resolved through the proxy
//  2. streams : the first present field of the track's stream set, in configured order
//  3. legacy : the descriptor's stream_url as-is, without any network call
//
// A rate limit from any step stops the chain immediately. When every step skips, the
// result is a [shared.NoPlayableStreamError] carrying each skip cause.
package resolver

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/composers/internal/models"
	"github.com/desertthunder/composers/internal/shared"
)

// DefaultStreamFields is the stream set field priority.
var DefaultStreamFields = []string{
	"http_mp3_128_url",
	"url",
	"preview_mp3_128_url",
	"hls_aac_160_url",
	"hls_mp3_128_url",
	"hls_opus_64_url",
}

// API is the subset of the proxy client the strategies call.
type API interface {
	TrackStreams(ctx context.Context, trackID models.TrackID) (models.StreamSet, error)
	ResolveTranscoding(ctx context.Context, rawURL string) (string, error)
}

// Outcome tags a strategy [Result].
type Outcome int

const (
	// Skip lets the next strategy try.
	Skip Outcome = iota
	// Resolved ends the chain with a URL.
	Resolved
	// Fatal ends the chain with an error.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case Fatal:
		return "fatal"
	default:
		return "skip"
	}
}

// Result is one strategy attempt.
type Result struct {
	Outcome Outcome
	URL     string
	// Detail names what produced URL, e.g. the transcoding preset or stream field.
	Detail string
	Err    error
}

func resolved(url, detail string) Result { return Result{Outcome: Resolved, URL: url, Detail: detail} }
func skip(err error) Result              { return Result{Outcome: Skip, Err: err} }
func fatal(err error) Result             { return Result{Outcome: Fatal, Err: err} }

// classify turns a call failure into fatal (rate limit or cancellation) or skip.
func classify(err error) Result {
	if errors.Is(err, shared.ErrRateLimited) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fatal(err)
	}
	return skip(err)
}

// Strategy is one step of the fallback chain.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, track models.TrackDescriptor) Result
}

// Resolution is a successful resolve.
type Resolution struct {
	URL      string
	Strategy string
	Detail   string
}

// Resolver runs strategies in order. It holds no per-call state and is safe for concurrent use.
type Resolver struct {
	strategies []Strategy
	logger     *log.Logger
}

// Option configures a [Resolver].
type Option func(*options)

type options struct {
	fields     []string
	logger     *log.Logger
	strategies []Strategy
}

// WithStreamFields overrides [DefaultStreamFields].
func WithStreamFields(fields []string) Option {
	return func(o *options) {
		if len(fields) > 0 {
			o.fields = fields
		}
	}
}

// WithLogger sets the logger used for skip causes.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStrategies replaces the default chain.
func WithStrategies(s ...Strategy) Option {
	return func(o *options) { o.strategies = s }
}

// New creates a Resolver with the default chain over api.
func New(api API, opts ...Option) *Resolver {
	o := &options{fields: DefaultStreamFields}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = shared.NewLogger(nil)
	}
	if o.strategies == nil {
		o.strategies = []Strategy{
			&TranscodingStrategy{API: api},
			&StreamsStrategy{API: api, Fields: o.fields},
			LegacyStrategy{},
		}
	}

	return &Resolver{strategies: o.strategies, logger: shared.WithLogger(o.logger, "component", "resolver")}
}

// Resolve returns a playable URL for track.
func (r *Resolver) Resolve(ctx context.Context, track models.TrackDescriptor) (string, error) {
	res, err := r.ResolveWithSource(ctx, track)
	return res.URL, err
}

// ResolveWithSource is [Resolver.Resolve] reporting which strategy produced the URL.
func (r *Resolver) ResolveWithSource(ctx context.Context, track models.TrackDescriptor) (Resolution, error) {
	var causes []error

	for _, s := range r.strategies {
		res := s.Attempt(ctx, track)

		switch res.Outcome {
		case Resolved:
			r.logger.Debug("track resolved", "track", track.ID, "strategy", s.Name(), "detail", res.Detail)
			return Resolution{URL: res.URL, Strategy: s.Name(), Detail: res.Detail}, nil
		case Fatal:
			return Resolution{}, res.Err
		default:
			if res.Err != nil {
				r.logger.Debug("strategy skipped", "track", track.ID, "strategy", s.Name(), "cause", res.Err)
				causes = append(causes, &stepError{step: s.Name(), err: res.Err})
			}
		}
	}

	err := &shared.NoPlayableStreamError{TrackID: track.ID.String(), Causes: causes}
	r.logger.Warn("no playable stream", "track", track.ID, "title", track.Title, "err", err)
	return Resolution{}, err
}

// stepError prefixes a skip cause with its strategy.
type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return e.step + ": " + e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }
