package testing

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// DefaultToken is the access token issued by [Upstream] unless the token handler is replaced
const DefaultToken = "test-token"

// Upstream is a fake SoundCloud API with an OAuth token endpoint at /oauth2/token.
//
// Resource routes are registered with [Upstream.Handle]. Every request's Authorization header is recorded.
type Upstream struct {
	Server *httptest.Server

	mux        *http.ServeMux
	tokenCalls atomic.Int32

	mu           sync.Mutex
	tokenHandler http.HandlerFunc
	authHeaders  []string
}

// NewUpstream starts a fake upstream closed when the test ends
func NewUpstream(t *testing.T) *Upstream {
	t.Helper()

	u := &Upstream{mux: http.NewServeMux(), tokenHandler: IssueToken(DefaultToken, 3600)}
	u.mux.HandleFunc("POST /oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		u.tokenCalls.Add(1)
		u.mu.Lock()
		h := u.tokenHandler
		u.mu.Unlock()
		h(w, r)
	})

	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.authHeaders = append(u.authHeaders, r.Header.Get("Authorization"))
		u.mu.Unlock()
		u.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(u.Server.Close)
	return u
}

// URL is the API base URL
func (u *Upstream) URL() string { return u.Server.URL }

// TokenURL is the OAuth token endpoint
func (u *Upstream) TokenURL() string { return u.Server.URL + "/oauth2/token" }

// Handle registers a resource route
func (u *Upstream) Handle(pattern string, h http.HandlerFunc) { u.mux.HandleFunc(pattern, h) }

// SetTokenHandler replaces the token endpoint's behavior
func (u *Upstream) SetTokenHandler(h http.HandlerFunc) {
	u.mu.Lock()
	u.tokenHandler = h
	u.mu.Unlock()
}

// TokenCalls counts requests to the token endpoint
func (u *Upstream) TokenCalls() int { return int(u.tokenCalls.Load()) }

// AuthHeaders returns the Authorization headers seen, in order
func (u *Upstream) AuthHeaders() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.authHeaders...)
}

// IssueToken answers a client-credentials grant with the given token
func IssueToken(token string, expiresIn int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"access_token": token,
			"token_type":   "bearer",
			"expires_in":   expiresIn,
		})
	}
}

// RejectToken answers every token request with status, setting Retry-After when non-empty
func RejectToken(status int, retryAfter string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
		}
		WriteJSON(w, status, map[string]string{"error": http.StatusText(status)})
	}
}
