package model

import "time"

// Photo is a gallery image. The blob itself is fetched separately.
type Photo struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Caption   string    `json:"caption,omitempty"`
	Mime      string    `json:"mime"`
	CreatedAt time.Time `json:"created_at"`
}
