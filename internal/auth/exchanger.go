package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/composers/internal/models"
	"github.com/desertthunder/composers/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// defaultTokenLifetime applies when the token response omits expires_in.
const defaultTokenLifetime = time.Hour

// Exchanger performs one client-credentials exchange.
type Exchanger interface {
	Exchange(ctx context.Context) (models.AccessToken, error)
}

// ClientCredentials exchanges an OAuth client id and secret for an application token.
type ClientCredentials struct {
	config     *clientcredentials.Config
	httpClient *http.Client
	now        func() time.Time
}

// NewClientCredentials creates an [Exchanger] posting credentials in the form body to tokenURL.
func NewClientCredentials(clientID, clientSecret, tokenURL string, client *http.Client) *ClientCredentials {
	if client == nil {
		client = http.DefaultClient
	}

	return &ClientCredentials{
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: client,
		now:        time.Now,
	}
}

// Exchange requests a new token.
//
// A 429 answer maps to [shared.RateLimitedError] (without a duration, the cache decides the cooldown),
// other error statuses to [shared.UpstreamError], and a success without access_token to [shared.MalformedResponseError].
func (c *ClientCredentials) Exchange(ctx context.Context) (models.AccessToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := c.config.Token(ctx)
	if err != nil {
		return models.AccessToken{}, classifyTokenError(err)
	}

	if tok.AccessToken == "" {
		return models.AccessToken{}, &shared.MalformedResponseError{Op: "token", Err: errors.New("missing access_token")}
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = c.now().Add(defaultTokenLifetime)
	}

	return models.AccessToken{Value: tok.AccessToken, ExpiresAt: expiresAt}, nil
}

func classifyTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		if re.Response.StatusCode == http.StatusTooManyRequests {
			return &shared.RateLimitedError{RetryAfter: shared.ParseRetryAfter(re.Response.Header.Get("Retry-After"))}
		}
		return &shared.UpstreamError{Op: "token", StatusCode: re.Response.StatusCode}
	}

	// oauth2 reports undecodable bodies and missing tokens on a 2xx as plain, unwrapped errors.
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || isMalformedMessage(err.Error()) {
		return &shared.MalformedResponseError{Op: "token", Err: err}
	}

	return fmt.Errorf("token request failed: %w", err)
}

func isMalformedMessage(msg string) bool {
	return strings.Contains(msg, "cannot parse") || strings.Contains(msg, "missing access_token")
}
