package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rotadovale/motofest/internal/model"
)

// CreatePhoto stores a gallery photo. Callers process the image first.
func CreatePhoto(ctx context.Context, db *sql.DB, title, caption string, data []byte, mime string) (*model.Photo, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO photos (title, caption, data, mime) VALUES (?, ?, ?, ?)`,
		title, caption, data, mime,
	)
	if err != nil {
		return nil, fmt.Errorf("creating photo: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting photo id: %w", err)
	}

	return GetPhoto(ctx, db, id)
}

// GetPhoto returns photo metadata by ID (not the blob).
func GetPhoto(ctx context.Context, db *sql.DB, id int64) (*model.Photo, error) {
	p := &model.Photo{}
	var caption sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, title, caption, mime, created_at FROM photos WHERE id = ?`, id,
	).Scan(&p.ID, &p.Title, &caption, &p.Mime, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting photo: %w", err)
	}
	p.Caption = caption.String
	return p, nil
}

// ListPhotos returns gallery photo metadata, newest first.
func ListPhotos(ctx context.Context, db *sql.DB) ([]model.Photo, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, title, caption, mime, created_at FROM photos ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing photos: %w", err)
	}
	defer rows.Close()

	var photos []model.Photo
	for rows.Next() {
		var p model.Photo
		var caption sql.NullString
		if err := rows.Scan(&p.ID, &p.Title, &caption, &p.Mime, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning photo: %w", err)
		}
		p.Caption = caption.String
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// GetPhotoData returns a photo's image bytes and MIME type.
func GetPhotoData(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var data []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT data, mime FROM photos WHERE id = ?`, id,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting photo data: %w", err)
	}
	return data, mime, nil
}

// DeletePhoto removes a gallery photo.
func DeletePhoto(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting photo: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
