package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// jwtSecretKey is the settings row holding the token signing secret. Keeping
// it next to the data means a restored backup keeps its sessions working.
const jwtSecretKey = "jwt_secret"

// GetJWTSecret returns the JWT signing secret, minting and persisting one on
// first use. Insert-or-ignore followed by a read-back keeps concurrent
// first-time starts from racing each other.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	candidate, err := randomHex(32)
	if err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		jwtSecretKey, candidate,
	); err != nil {
		return "", fmt.Errorf("storing jwt secret: %w", err)
	}

	var secret string
	if err := db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, jwtSecretKey,
	).Scan(&secret); err != nil {
		return "", fmt.Errorf("reading jwt secret: %w", err)
	}
	return secret, nil
}

// randomHex returns n random bytes hex-encoded.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
