package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rotadovale/motofest/internal/model"
)

// CreateRoute stores an imported GPX trajectory with its derived stats.
func CreateRoute(ctx context.Context, db *sql.DB, name, description string, gpxData []byte, distanceKm, elevationGain float64, pointCount int) (*model.Route, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO routes (name, description, gpx, distance_km, elevation_gain_m, point_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		name, description, gpxData, distanceKm, elevationGain, pointCount,
	)
	if err != nil {
		return nil, fmt.Errorf("creating route: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting route id: %w", err)
	}

	return GetRoute(ctx, db, id)
}

// GetRoute returns route metadata by ID (not the GPX blob).
func GetRoute(ctx context.Context, db *sql.DB, id int64) (*model.Route, error) {
	r := &model.Route{}
	var description sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, name, description, distance_km, elevation_gain_m, point_count, created_at
		 FROM routes WHERE id = ?`, id,
	).Scan(&r.ID, &r.Name, &description, &r.DistanceKm, &r.ElevationGain, &r.PointCount, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting route: %w", err)
	}
	r.Description = description.String
	return r, nil
}

// ListRoutes returns all route metadata.
func ListRoutes(ctx context.Context, db *sql.DB) ([]model.Route, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, description, distance_km, elevation_gain_m, point_count, created_at
		 FROM routes ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing routes: %w", err)
	}
	defer rows.Close()

	var routes []model.Route
	for rows.Next() {
		var r model.Route
		var description sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &description, &r.DistanceKm, &r.ElevationGain, &r.PointCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		r.Description = description.String
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

// GetRouteGPX returns a route's raw GPX document.
func GetRouteGPX(ctx context.Context, db *sql.DB, id int64) ([]byte, error) {
	var data []byte
	err := db.QueryRowContext(ctx,
		`SELECT gpx FROM routes WHERE id = ?`, id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting route gpx: %w", err)
	}
	return data, nil
}

// DeleteRoute removes a route.
func DeleteRoute(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM routes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting route: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
