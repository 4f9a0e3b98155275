package recommend

import (
	"context"
	"errors"
	"fmt"

	"github.com/reelmatch/reelmatch/internal/domain"
)

// ErrNoRaters is returned when a prediction is requested for a movie
// nobody has rated.
var ErrNoRaters = errors.New("recommend: movie has no raters")

// ErrNoCohort guards against an empty top-similarity cohort. It cannot
// occur while the rater set is non-empty.
var ErrNoCohort = errors.New("recommend: empty similarity cohort")

// ErrMalformedRating is returned when the rating source hands back data
// that is inconsistent with the request mid-computation.
var ErrMalformedRating = errors.New("recommend: malformed rating data")

// Source is the read-only view of ratings the engine computes over.
// Both listings must preserve the order ratings were recorded in and be
// safe for concurrent reads.
type Source interface {
	ListByUser(ctx context.Context, userID int64) ([]domain.Rating, error)
	ListByMovie(ctx context.Context, movieID int64) ([]domain.Rating, error)
}

// Recommender is the contract the serving layer consumes.
type Recommender interface {
	// Similarity scores how alike two users' tastes are, in [-1, 1].
	// Users with no co-rated movies score 0.
	Similarity(ctx context.Context, userA, userB int64) (float64, error)

	// Predict estimates the score a user would give a movie. The value
	// is the top-similarity cohort's average dampened by the cohort's
	// similarity, so it may fall outside the rating scale; clamping is
	// the caller's policy. Returns ErrNoRaters when no evidence exists.
	Predict(ctx context.Context, userID, movieID int64) (float64, error)

	// InvalidateUser drops any memoized values involving the user.
	// Stateless implementations treat this as a no-op.
	InvalidateUser(userID int64)
}

// Engine computes user-user similarity and rating predictions from a
// rating source. It is stateless between calls: every result is a pure
// function of the source data at call time, so an Engine is safe for
// concurrent use whenever its source is.
type Engine struct {
	source Source
}

// NewEngine constructs an Engine over the given rating source.
func NewEngine(source Source) *Engine {
	return &Engine{source: source}
}

// Similarity returns the Pearson correlation between two users' scores
// over their co-rated movies. No overlap is a meaningful domain value,
// not an error: it yields 0.
func (e *Engine) Similarity(ctx context.Context, userA, userB int64) (float64, error) {
	mine, err := e.source.ListByUser(ctx, userA)
	if err != nil {
		return 0, fmt.Errorf("list ratings for user %d: %w", userA, err)
	}
	theirs, err := e.source.ListByUser(ctx, userB)
	if err != nil {
		return 0, fmt.Errorf("list ratings for user %d: %w", userB, err)
	}

	myScores := make(map[int64]int, len(mine))
	for _, r := range mine {
		myScores[r.MovieID] = r.Score
	}

	// Pairs are collected in the second user's rating order. Pearson is
	// symmetric under the coordinated swap, and with integer scores the
	// sums are exact in float64, so Similarity(a,b) == Similarity(b,a)
	// bit for bit.
	pairs := make([]scorePair, 0, len(theirs))
	for _, other := range theirs {
		if score, ok := myScores[other.MovieID]; ok {
			pairs = append(pairs, scorePair{x: float64(score), y: float64(other.Score)})
		}
	}

	return pearson(pairs), nil
}

// Predict estimates userID's score for movieID from the raters most
// similar to them. All raters tied at the maximum similarity form the
// cohort; the prediction is the cohort's mean score for the movie
// multiplied by that similarity.
func (e *Engine) Predict(ctx context.Context, userID, movieID int64) (float64, error) {
	ratings, err := e.source.ListByMovie(ctx, movieID)
	if err != nil {
		return 0, fmt.Errorf("list ratings for movie %d: %w", movieID, err)
	}
	if len(ratings) == 0 {
		return 0, ErrNoRaters
	}

	// One similarity per distinct rater; duplicate rating rows for the
	// same rater still contribute independently to the cohort average.
	simByRater := make(map[int64]float64, len(ratings))
	highest := 0.0
	first := true
	for _, r := range ratings {
		if r.MovieID != movieID {
			return 0, fmt.Errorf("%w: rating by user %d references movie %d, want %d",
				ErrMalformedRating, r.UserID, r.MovieID, movieID)
		}
		if _, seen := simByRater[r.UserID]; seen {
			continue
		}
		sim, err := e.Similarity(ctx, userID, r.UserID)
		if err != nil {
			return 0, err
		}
		simByRater[r.UserID] = sim
		if first || sim > highest {
			highest = sim
			first = false
		}
	}

	cohort := make(map[int64]struct{}, len(simByRater))
	for raterID, sim := range simByRater {
		if sim == highest {
			cohort[raterID] = struct{}{}
		}
	}

	var sum float64
	var count int
	for _, r := range ratings {
		if _, ok := cohort[r.UserID]; ok {
			sum += float64(r.Score)
			count++
		}
	}
	if count == 0 {
		return 0, ErrNoCohort
	}

	return (sum / float64(count)) * highest, nil
}

// InvalidateUser is a no-op: the engine holds no state.
func (e *Engine) InvalidateUser(int64) {}

var _ Recommender = (*Engine)(nil)
