package domain

import "time"

// Rating represents a single user's score for a movie. Scores sit on a
// fixed integer scale (1-5). RatedAt records when the score was given,
// which for seeded MovieLens data predates CreatedAt.
type Rating struct {
	UserID    int64
	MovieID   int64
	Score     int
	RatedAt   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RatingAggregate provides average and count for a movie's ratings.
type RatingAggregate struct {
	Average float64
	Count   int64
}
