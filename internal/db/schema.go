package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'manager' CHECK (role IN ('admin', 'manager')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS shirt_stock (
    size           TEXT NOT NULL CHECK (size IN ('XS', 'S', 'M', 'L', 'XL')),
    sleeve         TEXT NOT NULL CHECK (sleeve IN ('short', 'long')),
    total_units    INTEGER NOT NULL DEFAULT 0 CHECK (total_units >= 0),
    reserved_units INTEGER NOT NULL DEFAULT 0 CHECK (reserved_units >= 0),
    PRIMARY KEY (size, sleeve)
);

CREATE TABLE IF NOT EXISTS registrations (
    id             INTEGER PRIMARY KEY,
    number         INTEGER NOT NULL UNIQUE,
    name           TEXT NOT NULL,
    email          TEXT NOT NULL,
    cpf            TEXT NOT NULL,
    phone          TEXT,
    city           TEXT,
    state          TEXT,
    motorcycle     TEXT,
    shirt_size     TEXT NOT NULL,
    shirt_sleeve   TEXT NOT NULL,
    payment_status TEXT NOT NULL DEFAULT 'pending' CHECK (payment_status IN ('pending', 'confirmed', 'cancelled')),
    amount_cents   INTEGER NOT NULL,
    pix_txid       TEXT,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    expires_at     DATETIME NOT NULL,
    confirmed_at   DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_registrations_email_live
    ON registrations(email) WHERE payment_status != 'cancelled';
CREATE UNIQUE INDEX IF NOT EXISTS idx_registrations_cpf_live
    ON registrations(cpf) WHERE payment_status != 'cancelled';
CREATE INDEX IF NOT EXISTS idx_registrations_txid ON registrations(pix_txid);

CREATE TABLE IF NOT EXISTS extra_shirts (
    id              INTEGER PRIMARY KEY,
    registration_id INTEGER NOT NULL REFERENCES registrations(id) ON DELETE CASCADE,
    size            TEXT NOT NULL CHECK (size IN ('XS', 'S', 'M', 'L', 'XL')),
    sleeve          TEXT NOT NULL CHECK (sleeve IN ('short', 'long')),
    price_cents     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_extra_shirts_registration
    ON extra_shirts(registration_id);

CREATE TABLE IF NOT EXISTS champions (
    id         INTEGER PRIMARY KEY,
    year       INTEGER NOT NULL UNIQUE,
    rider      TEXT NOT NULL,
    hometown   TEXT,
    motorcycle TEXT,
    note       TEXT,
    photo      BLOB,
    photo_mime TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS photos (
    id         INTEGER PRIMARY KEY,
    title      TEXT NOT NULL,
    caption    TEXT,
    data       BLOB NOT NULL,
    mime       TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS routes (
    id               INTEGER PRIMARY KEY,
    name             TEXT NOT NULL,
    description      TEXT,
    gpx              BLOB NOT NULL,
    distance_km      REAL NOT NULL DEFAULT 0,
    elevation_gain_m REAL NOT NULL DEFAULT 0,
    point_count      INTEGER NOT NULL DEFAULT 0,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: Partial unique indexes on email and cpf that skip cancelled
	// registrations, so a participant whose registration was cancelled can sign
	// up again before the sweeper removes the old row. No-ops on databases
	// created from the schema above.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_registrations_email_live
	     ON registrations(email) WHERE payment_status != 'cancelled'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_registrations_cpf_live
	     ON registrations(cpf) WHERE payment_status != 'cancelled'`,
}

// Migrate creates the schema if needed and applies migrations.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
