package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/composers/internal/models"
	"github.com/desertthunder/composers/internal/shared"
)

// ErrNotFound is returned when no row exists for the requested key.
var ErrNotFound = errors.New("record not found")

// TokenRecord is one row of the token_cache table.
type TokenRecord struct {
	ClientID      string
	Token         models.AccessToken
	CooldownUntil time.Time
	UpdatedAt     time.Time
}

// TokenRepository persists client-credentials tokens and the exchange event log.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new TokenRepository with the given database connection
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Get retrieves the record for clientID, or [ErrNotFound].
func (r *TokenRepository) Get(ctx context.Context, clientID string) (*TokenRecord, error) {
	query := `
		SELECT client_id, access_token, expires_at, cooldown_until, updated_at
		FROM token_cache
		WHERE client_id = ?
	`

	var (
		rec       TokenRecord
		expiresAt sql.NullTime
		cooldown  sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, clientID).Scan(&rec.ClientID, &rec.Token.Value, &expiresAt, &cooldown, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("token for %s: %w", clientID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan token: %w", err)
	}

	if expiresAt.Valid {
		rec.Token.ExpiresAt = expiresAt.Time
	}
	if cooldown.Valid {
		rec.CooldownUntil = cooldown.Time
	}

	return &rec, nil
}

// Save inserts or replaces the record for rec.ClientID.
func (r *TokenRepository) Save(ctx context.Context, rec *TokenRecord) error {
	if rec.ClientID == "" {
		return fmt.Errorf("%w: client id", shared.ErrMissingArgument)
	}

	rec.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO token_cache (client_id, access_token, expires_at, cooldown_until, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			access_token = excluded.access_token,
			expires_at = excluded.expires_at,
			cooldown_until = excluded.cooldown_until,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ClientID,
		rec.Token.Value,
		nullTime(rec.Token.ExpiresAt),
		nullTime(rec.CooldownUntil),
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}

// Delete removes the record for clientID.
func (r *TokenRepository) Delete(ctx context.Context, clientID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM token_cache WHERE client_id = ?", clientID)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("token for %s: %w", clientID, ErrNotFound)
	}

	return nil
}

// RecordEvent appends an exchange outcome to the event log.
func (r *TokenRepository) RecordEvent(ctx context.Context, ev *models.TokenEvent) error {
	if ev.ID == "" {
		ev.ID = shared.GenerateID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO token_events (id, client_id, outcome, status_code, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := r.db.ExecContext(ctx, query, ev.ID, ev.ClientID, ev.Outcome, ev.StatusCode, ev.CreatedAt); err != nil {
		return fmt.Errorf("failed to record token event: %w", err)
	}

	return nil
}

// ListEvents returns the most recent events for clientID, newest first.
func (r *TokenRepository) ListEvents(ctx context.Context, clientID string, limit int) ([]models.TokenEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, client_id, outcome, status_code, created_at
		FROM token_events
		WHERE client_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query token events: %w", err)
	}
	defer rows.Close()

	var events []models.TokenEvent
	for rows.Next() {
		var ev models.TokenEvent
		if err := rows.Scan(&ev.ID, &ev.ClientID, &ev.Outcome, &ev.StatusCode, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan token event: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
