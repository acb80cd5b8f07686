package auth

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/composers/internal/models"
	"github.com/desertthunder/composers/internal/shared"
	tu "github.com/desertthunder/composers/internal/testing"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeExchanger hands out tokens until told to fail, optionally holding every call on gate.
type fakeExchanger struct {
	clock   *tu.Clock
	calls   atomic.Int32
	started chan struct{}
	gate    chan struct{}

	mu       sync.Mutex
	err      error
	lifetime time.Duration
}

func newFakeExchanger(clock *tu.Clock) *fakeExchanger {
	return &fakeExchanger{clock: clock, lifetime: time.Hour, started: make(chan struct{}, 16)}
}

func (f *fakeExchanger) Exchange(ctx context.Context) (models.AccessToken, error) {
	n := f.calls.Add(1)
	f.started <- struct{}{}
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.AccessToken{}, f.err
	}
	return models.AccessToken{Value: "token-" + string(rune('0'+n)), ExpiresAt: f.clock.Now().Add(f.lifetime)}, nil
}

func (f *fakeExchanger) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// memStore is an in-memory [Store]
type memStore struct {
	mu       sync.Mutex
	state    models.TokenState
	outcomes []string
	loadErr  error
}

func (m *memStore) Load(context.Context) (models.TokenState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.loadErr
}

func (m *memStore) Save(_ context.Context, s models.TokenState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	return nil
}

func (m *memStore) Record(_ context.Context, outcome string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
	return nil
}

func newTestCache(ex Exchanger, clock *tu.Clock, store Store) *TokenCache {
	return NewTokenCache(context.Background(), TokenCacheOpts{
		Exchanger: ex,
		Store:     store,
		Logger:    log.New(io.Discard),
		Now:       clock.Now,
	})
}

func TestTokenCache(t *testing.T) {
	ctx := context.Background()

	t.Run("Caches Valid Token", func(t *testing.T) {
		clock := tu.NewClock(epoch)
		ex := newFakeExchanger(clock)
		cache := newTestCache(ex, clock, nil)

		first, err := cache.Token(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		clock.Advance(30 * time.Minute)
		second, err := cache.Token(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if first.Value != second.Value {
			t.Errorf("expected cached token %s, got %s", first.Value, second.Value)
		}
		if got := ex.calls.Load(); got != 1 {
			t.Errorf("expected 1 exchange, got %d", got)
		}
	})

	t.Run("Refreshes Inside Expiry Margin", func(t *testing.T) {
		clock := tu.NewClock(epoch)
		ex := newFakeExchanger(clock)
		cache := newTestCache(ex, clock, nil)

		if _, err := cache.Token(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// 59m30s in: the token has 30s left, inside the 60s margin
		clock.Advance(59*time.Minute + 30*time.Second)
		tok, err := cache.Token(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok.Value != "token-2" {
			t.Errorf("expected a fresh token, got %s", tok.Value)
		}
		if got := ex.calls.Load(); got != 2 {
			t.Errorf("expected 2 exchanges, got %d", got)
		}
	})

	t.Run("Coalesces Concurrent Misses", func(t *testing.T) {
		clock := tu.NewClock(epoch)
		ex := newFakeExchanger(clock)
		ex.gate = make(chan struct{})
		cache := newTestCache(ex, clock, nil)

		const callers = 8
		var wg sync.WaitGroup
		results := make([]string, callers)
		errs := make([]error, callers)

		for i := range callers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tok, err := cache.Token(ctx)
				results[i], errs[i] = tok.Value, err
			}(i)
		}

		<-ex.started
		time.Sleep(20 * time.Millisecond)
		close(ex.gate)
		wg.Wait()

		if got := ex.calls.Load(); got != 1 {
			t.Fatalf("expected exactly 1 exchange, got %d", got)
		}
		for i := range callers {
			if errs[i] != nil {
				t.Errorf("caller %d: unexpected error: %v", i, errs[i])
			}
			if results[i] != "token-1" {
				t.Errorf("caller %d: expected token-1, got %s", i, results[i])
			}
		}
	})

	t.Run("Shares Failure With Waiters", func(t *testing.T) {
		clock := tu.NewClock(epoch)
		ex := newFakeExchanger(clock)
		ex.gate = make(chan struct{})
		ex.fail(&shared.UpstreamError{Op: "token", StatusCode: 500})
		cache := newTestCache(ex, clock, nil)

		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = cache.Token(ctx)
			}(i)
		}

		<-ex.started
		time.Sleep(20 * time.Millisecond)
		close(ex.gate)
		wg.Wait()

		for i, err := range errs {
			if !errors.Is(err, shared.ErrUpstream) {
				t.Errorf("caller %d: expected upstream error, got %v", i, err)
			}
		}
		if cache.Snapshot().Cached {
			t.Error("expected nothing cached after a failure")
		}
	})

	t.Run("Failure Does Not Start Cooldown", func(t *testing.T) {
		clock := tu.NewClock(epoch)
		ex := newFakeExchanger(clock)
		ex.fail(&shared.UpstreamError{Op: "token", StatusCode: 503})
		cache := newTestCache(ex, clock, nil)

		if _, err := cache.Token(ctx); err == nil {
			t.Fatal("expected error")
		}
		ex.fail(nil)

		tok, err := cache.Token(ctx)
		if err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if tok.Value != "token-2" {
			t.Errorf("expected token-2, got %s", tok.Value)
		}
	})

	t.Run("Rate Limit Starts Cooldown", func(t *testing.T) {
		clock := tu.NewClock(epoch)
		ex := newFakeExchanger(clock)
		ex.fail(&shared.RateLimitedError{})
		cache := newTestCache(ex, clock, nil)

		_, err := cache.Token(ctx)
		rl, ok := shared.AsRateLimited(err)
		if !ok {
			t.Fatalf("expected rate limited error, got %v", err)
		}
		if rl.RetryAfter != DefaultCooldown {
			t.Errorf("expected retry after %v, got %v", DefaultCooldown, rl.RetryAfter)
		}

		ex.fail(nil)
		clock.Advance(20 * time.Second)

		_, err = cache.Token(ctx)
		rl, ok = shared.AsRateLimited(err)
		if !ok {
			t.Fatalf("expected fail-fast rate limited error, got %v", err)
		}
		if rl.RetryAfter != 40*time.Second {
			t.Errorf("expected remaining cooldown 40s, got %v", rl.RetryAfter)
		}
		if got := ex.calls.Load(); got != 1 {
			t.Errorf("expected no exchange during cooldown, got %d calls", got)
		}

		clock.Advance(41 * time.Second)
		if _, err := cache.Token(ctx); err != nil {
			t.Fatalf("expected exchange after cooldown, got %v", err)
		}
		if got := ex.calls.Load(); got != 2 {
			t.Errorf("expected exactly one exchange after cooldown, got %d calls", got)
		}
	})

	t.Run("Cooldown Honors Longer Retry-After", func(t *testing.T) {
		clock := tu.NewClock(epoch)
		ex := newFakeExchanger(clock)
		ex.fail(&shared.RateLimitedError{RetryAfter: 5 * time.Minute})
		cache := newTestCache(ex, clock, nil)

		_, err := cache.Token(ctx)
		rl, ok := shared.AsRateLimited(err)
		if !ok {
			t.Fatalf("expected rate limited error, got %v", err)
		}
		if rl.RetryAfter != 5*time.Minute {
			t.Errorf("expected 5m cooldown, got %v", rl.RetryAfter)
		}
		if got := cache.Snapshot().CooldownUntil; !got.Equal(epoch.Add(5 * time.Minute)) {
			t.Errorf("expected cooldown until %v, got %v", epoch.Add(5*time.Minute), got)
		}
	})

	t.Run("Caller Cancellation Does Not Abort Exchange", func(t *testing.T) {
		clock := tu.NewClock(epoch)
		ex := newFakeExchanger(clock)
		ex.gate = make(chan struct{})
		cache := newTestCache(ex, clock, nil)

		cctx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			_, err := cache.Token(cctx)
			done <- err
		}()

		<-ex.started
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}

		close(ex.gate)
		tok, err := cache.Token(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok.Value != "token-1" {
			t.Errorf("expected the detached exchange's token, got %s", tok.Value)
		}
		if got := ex.calls.Load(); got != 1 {
			t.Errorf("expected 1 exchange, got %d", got)
		}
	})

	t.Run("Invalidate", func(t *testing.T) {
		clock := tu.NewClock(epoch)
		ex := newFakeExchanger(clock)
		cache := newTestCache(ex, clock, nil)

		tok, _ := cache.Token(ctx)

		cache.Invalidate("some-other-token")
		if !cache.Snapshot().Cached {
			t.Fatal("expected a stale value not to drop the current token")
		}

		cache.Invalidate(tok.Value)
		if cache.Snapshot().Cached {
			t.Fatal("expected token to be dropped")
		}

		next, err := cache.Token(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if next.Value == tok.Value {
			t.Error("expected a new token after invalidation")
		}
	})

	t.Run("Persists State", func(t *testing.T) {
		clock := tu.NewClock(epoch)
		ex := newFakeExchanger(clock)
		store := &memStore{}
		cache := newTestCache(ex, clock, store)

		tok, err := cache.Token(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store.state.Token.Value != tok.Value {
			t.Errorf("expected persisted token %s, got %s", tok.Value, store.state.Token.Value)
		}

		restarted := newTestCache(ex, clock, store)
		again, err := restarted.Token(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again.Value != tok.Value {
			t.Errorf("expected restored token %s, got %s", tok.Value, again.Value)
		}
		if got := ex.calls.Load(); got != 1 {
			t.Errorf("expected restore to skip the exchange, got %d calls", got)
		}
		if len(store.outcomes) != 1 || store.outcomes[0] != models.OutcomeIssued {
			t.Errorf("expected one issued event, got %v", store.outcomes)
		}
	})

	t.Run("Restores Cooldown", func(t *testing.T) {
		clock := tu.NewClock(epoch)
		ex := newFakeExchanger(clock)
		store := &memStore{state: models.TokenState{CooldownUntil: epoch.Add(30 * time.Second)}}
		cache := newTestCache(ex, clock, store)

		if _, err := cache.Token(ctx); !errors.Is(err, shared.ErrRateLimited) {
			t.Fatalf("expected restored cooldown to fail fast, got %v", err)
		}
		if got := ex.calls.Load(); got != 0 {
			t.Errorf("expected no exchange, got %d", got)
		}
	})

	t.Run("Ignores Store Load Errors", func(t *testing.T) {
		clock := tu.NewClock(epoch)
		ex := newFakeExchanger(clock)
		store := &memStore{loadErr: errors.New("disk on fire")}
		cache := newTestCache(ex, clock, store)

		if _, err := cache.Token(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
