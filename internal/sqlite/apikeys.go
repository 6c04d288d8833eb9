package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownToken is returned when a bearer token has no api_keys entry.
var ErrUnknownToken = errors.New("unauthorized: invalid token")

// APIKeyResolver maps bearer tokens to owner identifiers
type APIKeyResolver struct {
	db *DB
}

// NewAPIKeyResolver creates a new APIKeyResolver
func NewAPIKeyResolver(db *DB) *APIKeyResolver {
	return &APIKeyResolver{db: db}
}

// ResolveOwner returns the owner that a token was issued to
func (r *APIKeyResolver) ResolveOwner(ctx context.Context, token string) (string, error) {
	var ownerID string
	err := r.db.QueryRowContext(ctx, `SELECT owner_id FROM api_keys WHERE key_hash = ?`, hashToken(token)).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) || ownerID == "" {
		return "", ErrUnknownToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve token: %w", err)
	}
	return ownerID, nil
}

// AddAPIKey registers a token for an owner. Only the hash is stored.
func (r *APIKeyResolver) AddAPIKey(ctx context.Context, token, ownerID, description string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, owner_id, created_at, description) VALUES (?, ?, ?, ?)`,
		hashToken(token), ownerID, time.Now().UTC().Format(timeFormat), description,
	)
	if err != nil {
		return mapWriteError("add api key", err)
	}
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
