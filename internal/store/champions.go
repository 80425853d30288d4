package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rotadovale/motofest/internal/model"
)

// CreateChampion adds a hall-of-fame entry. Years are unique.
func CreateChampion(ctx context.Context, db *sql.DB, year int, rider, hometown, motorcycle, note string) (*model.Champion, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO champions (year, rider, hometown, motorcycle, note)
		 VALUES (?, ?, ?, ?, ?)`,
		year, rider, hometown, motorcycle, note,
	)
	if err != nil {
		return nil, fmt.Errorf("creating champion: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting champion id: %w", err)
	}

	return GetChampion(ctx, db, id)
}

// GetChampion returns a champion by ID.
func GetChampion(ctx context.Context, db *sql.DB, id int64) (*model.Champion, error) {
	c := &model.Champion{}
	var hometown, motorcycle, note, photoMime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, year, rider, hometown, motorcycle, note, photo_mime, created_at
		 FROM champions WHERE id = ?`, id,
	).Scan(&c.ID, &c.Year, &c.Rider, &hometown, &motorcycle, &note, &photoMime, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting champion: %w", err)
	}
	c.Hometown = hometown.String
	c.Motorcycle = motorcycle.String
	c.Note = note.String
	c.PhotoMime = photoMime.String
	return c, nil
}

// ListChampions returns all champions, most recent edition first.
func ListChampions(ctx context.Context, db *sql.DB) ([]model.Champion, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, year, rider, hometown, motorcycle, note, photo_mime, created_at
		 FROM champions ORDER BY year DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing champions: %w", err)
	}
	defer rows.Close()

	var champions []model.Champion
	for rows.Next() {
		var c model.Champion
		var hometown, motorcycle, note, photoMime sql.NullString
		if err := rows.Scan(&c.ID, &c.Year, &c.Rider, &hometown, &motorcycle, &note, &photoMime, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning champion: %w", err)
		}
		c.Hometown = hometown.String
		c.Motorcycle = motorcycle.String
		c.Note = note.String
		c.PhotoMime = photoMime.String
		champions = append(champions, c)
	}
	return champions, rows.Err()
}

// UpdateChampion updates a champion's fields.
func UpdateChampion(ctx context.Context, db *sql.DB, id int64, year int, rider, hometown, motorcycle, note string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE champions SET year = ?, rider = ?, hometown = ?, motorcycle = ?, note = ?
		 WHERE id = ?`,
		year, rider, hometown, motorcycle, note, id,
	)
	if err != nil {
		return fmt.Errorf("updating champion: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteChampion removes a champion entry.
func DeleteChampion(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM champions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting champion: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetChampionPhoto sets a champion's photo data.
func SetChampionPhoto(ctx context.Context, db *sql.DB, id int64, photo []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE champions SET photo = ?, photo_mime = ? WHERE id = ?`,
		photo, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting champion photo: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetChampionPhoto returns a champion's photo data and MIME type.
func GetChampionPhoto(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var photo []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT photo, photo_mime FROM champions WHERE id = ?`, id,
	).Scan(&photo, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting champion photo: %w", err)
	}
	return photo, mime.String, nil
}
