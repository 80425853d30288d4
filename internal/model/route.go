package model

import "time"

// Route is an imported GPX trajectory with derived stats.
type Route struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	DistanceKm    float64   `json:"distance_km"`
	ElevationGain float64   `json:"elevation_gain_m"`
	PointCount    int       `json:"point_count"`
	CreatedAt     time.Time `json:"created_at"`
}
