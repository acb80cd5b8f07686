package repositories

import (
	"context"
	"errors"

	"github.com/desertthunder/composers/internal/models"
)

// TokenStoreAdapter binds a [TokenRepository] to one OAuth client, implementing auth.Store.
type TokenStoreAdapter struct {
	repo     *TokenRepository
	clientID string
}

// NewTokenStoreAdapter creates a new TokenStoreAdapter for clientID
func NewTokenStoreAdapter(repo *TokenRepository, clientID string) *TokenStoreAdapter {
	return &TokenStoreAdapter{repo: repo, clientID: clientID}
}

// Load returns the persisted state, or a zero state when nothing was saved yet.
func (a *TokenStoreAdapter) Load(ctx context.Context) (models.TokenState, error) {
	rec, err := a.repo.Get(ctx, a.clientID)
	if errors.Is(err, ErrNotFound) {
		return models.TokenState{}, nil
	}
	if err != nil {
		return models.TokenState{}, err
	}

	return models.TokenState{Token: rec.Token, CooldownUntil: rec.CooldownUntil}, nil
}

// Save persists state.
func (a *TokenStoreAdapter) Save(ctx context.Context, state models.TokenState) error {
	return a.repo.Save(ctx, &TokenRecord{
		ClientID:      a.clientID,
		Token:         state.Token,
		CooldownUntil: state.CooldownUntil,
	})
}

// Record appends an exchange outcome.
func (a *TokenStoreAdapter) Record(ctx context.Context, outcome string, statusCode int) error {
	return a.repo.RecordEvent(ctx, &models.TokenEvent{
		ClientID:   a.clientID,
		Outcome:    outcome,
		StatusCode: statusCode,
	})
}
