package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/composers/internal/models"
	"github.com/desertthunder/composers/internal/shared"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultExpiryMargin = time.Minute
	DefaultCooldown     = time.Minute

	flightKey = "client-credentials"
)

// Store persists token state across restarts.
type Store interface {
	Load(ctx context.Context) (models.TokenState, error)
	Save(ctx context.Context, state models.TokenState) error
	Record(ctx context.Context, outcome string, statusCode int) error
}

// TokenCacheOpts configures a [TokenCache].
type TokenCacheOpts struct {
	Exchanger    Exchanger
	Store        Store // optional
	Logger       *log.Logger
	ExpiryMargin time.Duration
	Cooldown     time.Duration
	Now          func() time.Time
}

// Snapshot describes the cache without exposing the token value.
type Snapshot struct {
	Cached        bool      `json:"cached"`
	ExpiresAt     time.Time `json:"expires_at,omitzero"`
	CooldownUntil time.Time `json:"cooldown_until,omitzero"`
}

// TokenCache acquires and caches one client-credentials token.
//
// Concurrent callers that miss the cache share a single in-flight exchange, so at most one
// token request is outstanding at any time. After the token endpoint answers 429 every
// caller fails fast with [shared.RateLimitedError] until the cooldown elapses.
type TokenCache struct {
	exchanger Exchanger
	store     Store
	logger    *log.Logger
	margin    time.Duration
	cooldown  time.Duration
	now       func() time.Time

	mu            sync.Mutex
	token         *models.AccessToken
	cooldownUntil time.Time

	flight singleflight.Group
}

// NewTokenCache creates a TokenCache, restoring any state persisted in opts.Store.
func NewTokenCache(ctx context.Context, opts TokenCacheOpts) *TokenCache {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.ExpiryMargin <= 0 {
		opts.ExpiryMargin = DefaultExpiryMargin
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &TokenCache{
		exchanger: opts.Exchanger,
		store:     opts.Store,
		logger:    shared.WithLogger(opts.Logger, "component", "token-cache"),
		margin:    opts.ExpiryMargin,
		cooldown:  opts.Cooldown,
		now:       opts.Now,
	}

	c.restore(ctx)
	return c
}

// Token returns a valid access token, exchanging credentials only when needed.
//
// The shared exchange is detached from ctx; ctx only bounds how long this caller waits for it.
func (c *TokenCache) Token(ctx context.Context) (models.AccessToken, error) {
	if tok, ok, err := c.lookup(); ok {
		return tok, err
	}

	ch := c.flight.DoChan(flightKey, func() (any, error) {
		return c.acquire(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return models.AccessToken{}, res.Err
		}
		return res.Val.(models.AccessToken), nil
	case <-ctx.Done():
		return models.AccessToken{}, ctx.Err()
	}
}

// Invalidate drops the cached token if it is still value, e.g. after the upstream rejected it.
func (c *TokenCache) Invalidate(value string) {
	c.mu.Lock()
	if c.token == nil || c.token.Value != value {
		c.mu.Unlock()
		return
	}
	c.token = nil
	state := c.stateLocked()
	c.mu.Unlock()

	c.logger.Warn("cached token rejected upstream, dropping it")
	c.save(context.Background(), state)
}

// Snapshot reports the current cache state.
func (c *TokenCache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{}
	if c.token != nil && c.token.ValidAt(c.now(), c.margin) {
		s.Cached = true
		s.ExpiresAt = c.token.ExpiresAt
	}
	if c.now().Before(c.cooldownUntil) {
		s.CooldownUntil = c.cooldownUntil
	}
	return s
}

// lookup answers from cached state without the network: a valid token, or the active cooldown.
func (c *TokenCache) lookup() (models.AccessToken, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != nil && c.token.ValidAt(now, c.margin) {
		return *c.token, true, nil
	}
	if now.Before(c.cooldownUntil) {
		return models.AccessToken{}, true, &shared.RateLimitedError{RetryAfter: c.cooldownUntil.Sub(now)}
	}
	return models.AccessToken{}, false, nil
}

// acquire runs inside the single flight.
func (c *TokenCache) acquire(ctx context.Context) (any, error) {
	// a flight that finished just before this one was started may have settled the state already
	if tok, ok, err := c.lookup(); ok {
		if err != nil {
			return nil, err
		}
		return tok, nil
	}

	c.logger.Debug("exchanging client credentials")
	tok, err := c.exchanger.Exchange(ctx)
	now := c.now()

	if err != nil {
		if rl, ok := shared.AsRateLimited(err); ok {
			wait := max(c.cooldown, rl.RetryAfter)

			c.mu.Lock()
			c.token = nil
			c.cooldownUntil = now.Add(wait)
			state := c.stateLocked()
			c.mu.Unlock()

			c.logger.Warn("token endpoint rate limited", "cooldown", wait)
			c.save(ctx, state)
			c.record(ctx, models.OutcomeRateLimited, http.StatusTooManyRequests)
			return nil, &shared.RateLimitedError{RetryAfter: wait}
		}

		c.mu.Lock()
		c.token = nil
		c.mu.Unlock()

		c.logger.Error("token exchange failed", "err", err)
		c.record(ctx, models.OutcomeFailed, statusOf(err))
		return nil, err
	}

	c.mu.Lock()
	c.token = &tok
	c.cooldownUntil = time.Time{}
	state := c.stateLocked()
	c.mu.Unlock()

	c.logger.Info("token issued", "expires_at", tok.ExpiresAt.Format(time.RFC3339))
	c.save(ctx, state)
	c.record(ctx, models.OutcomeIssued, http.StatusOK)
	return tok, nil
}

func (c *TokenCache) stateLocked() models.TokenState {
	state := models.TokenState{CooldownUntil: c.cooldownUntil}
	if c.token != nil {
		state.Token = *c.token
	}
	return state
}

func (c *TokenCache) restore(ctx context.Context) {
	if c.store == nil {
		return
	}

	state, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("failed to load persisted token", "err", err)
		return
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if state.Token.ValidAt(now, c.margin) {
		tok := state.Token
		c.token = &tok
		c.logger.Info("restored persisted token", "expires_at", tok.ExpiresAt.Format(time.RFC3339))
	}
	if now.Before(state.CooldownUntil) {
		c.cooldownUntil = state.CooldownUntil
		c.logger.Warn("restored active cooldown", "until", state.CooldownUntil.Format(time.RFC3339))
	}
}

func (c *TokenCache) save(ctx context.Context, state models.TokenState) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, state); err != nil {
		c.logger.Warn("failed to persist token state", "err", err)
	}
}

func (c *TokenCache) record(ctx context.Context, outcome string, status int) {
	if c.store == nil {
		return
	}
	if err := c.store.Record(ctx, outcome, status); err != nil {
		c.logger.Warn("failed to record token event", "err", err)
	}
}

func statusOf(err error) int {
	var ue *shared.UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}
