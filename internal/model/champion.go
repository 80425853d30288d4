package model

import "time"

// Champion is a hall-of-fame entry for a past rally edition.
type Champion struct {
	ID         int64     `json:"id"`
	Year       int       `json:"year"`
	Rider      string    `json:"rider"`
	Hometown   string    `json:"hometown,omitempty"`
	Motorcycle string    `json:"motorcycle,omitempty"`
	Note       string    `json:"note,omitempty"`
	PhotoMime  string    `json:"photo_mime,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
