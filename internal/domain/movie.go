package domain

import "time"

// Movie represents the canonical movie entity in the database/service.
type Movie struct {
	ID         int64
	Title      string
	ReleasedAt time.Time
	ImdbURL    *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
