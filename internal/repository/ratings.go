package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reelmatch/reelmatch/internal/domain"
)

// RatingsRepository provides helpers for movie ratings. Its ListByUser
// and ListByMovie methods satisfy the recommendation engine's Source
// contract: both preserve the order ratings were recorded in.
type RatingsRepository struct {
	pool *pgxpool.Pool
}

const ratingColumns = `
    user_id,
    movie_id,
    score,
    rated_at,
    created_at,
    updated_at
`

// RatingUpsertParams captures the payload required to upsert a rating.
type RatingUpsertParams struct {
	UserID  int64
	MovieID int64
	Score   int
}

// Upsert inserts or updates a rating and indicates whether it was newly created.
func (r *RatingsRepository) Upsert(ctx context.Context, params RatingUpsertParams) (domain.Rating, bool, error) {
	query := fmt.Sprintf(`
        INSERT INTO ratings (user_id, movie_id, score)
        VALUES ($1,$2,$3)
        ON CONFLICT (user_id, movie_id)
        DO UPDATE SET score = EXCLUDED.score, rated_at = now(), updated_at = now()
        RETURNING %s, (xmax = 0) AS inserted
    `, ratingColumns)

	var rating domain.Rating
	var inserted bool
	err := r.pool.QueryRow(ctx, query, params.UserID, params.MovieID, params.Score).Scan(
		&rating.UserID,
		&rating.MovieID,
		&rating.Score,
		&rating.RatedAt,
		&rating.CreatedAt,
		&rating.UpdatedAt,
		&inserted,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Rating{}, false, ErrNotFound
		}
		return domain.Rating{}, false, err
	}

	return rating, inserted, nil
}

// Get retrieves a rating for a specific user/movie combination.
func (r *RatingsRepository) Get(ctx context.Context, userID, movieID int64) (domain.Rating, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM ratings
        WHERE user_id = $1 AND movie_id = $2
    `, ratingColumns)

	rating, err := scanRating(r.pool.QueryRow(ctx, query, userID, movieID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Rating{}, ErrNotFound
		}
		return domain.Rating{}, err
	}
	return rating, nil
}

// Aggregate returns the rating average and count for a movie.
func (r *RatingsRepository) Aggregate(ctx context.Context, movieID int64) (domain.RatingAggregate, error) {
	const query = `
        SELECT COALESCE(AVG(score), 0)::float8 AS average,
               COUNT(*)::int8 AS count
        FROM ratings
        WHERE movie_id = $1
    `

	var agg domain.RatingAggregate
	err := r.pool.QueryRow(ctx, query, movieID).Scan(&agg.Average, &agg.Count)
	if err != nil {
		return domain.RatingAggregate{}, fmt.Errorf("aggregate ratings: %w", err)
	}
	return agg, nil
}

// ListByUser returns all ratings by a user in recording order.
func (r *RatingsRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Rating, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM ratings
        WHERE user_id = $1
        ORDER BY id
    `, ratingColumns)
	return r.list(ctx, query, userID)
}

// ListByMovie returns all ratings of a movie in recording order.
func (r *RatingsRepository) ListByMovie(ctx context.Context, movieID int64) ([]domain.Rating, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM ratings
        WHERE movie_id = $1
        ORDER BY id
    `, ratingColumns)
	return r.list(ctx, query, movieID)
}

func (r *RatingsRepository) list(ctx context.Context, query string, arg int64) ([]domain.Rating, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ratings := make([]domain.Rating, 0)
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ratings, nil
}

// CopyIn bulk-inserts ratings, as produced by the seed loader. RatedAt
// zero values are replaced with the insertion time.
func (r *RatingsRepository) CopyIn(ctx context.Context, ratings []domain.Rating) (int64, error) {
	now := time.Now().UTC()
	return r.pool.CopyFrom(ctx,
		pgx.Identifier{"ratings"},
		[]string{"user_id", "movie_id", "score", "rated_at"},
		pgx.CopyFromSlice(len(ratings), func(i int) ([]any, error) {
			rt := ratings[i]
			ratedAt := rt.RatedAt
			if ratedAt.IsZero() {
				ratedAt = now
			}
			return []any{rt.UserID, rt.MovieID, rt.Score, ratedAt}, nil
		}),
	)
}

func scanRating(row pgx.Row) (domain.Rating, error) {
	var rating domain.Rating
	err := row.Scan(
		&rating.UserID,
		&rating.MovieID,
		&rating.Score,
		&rating.RatedAt,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	if err != nil {
		return domain.Rating{}, err
	}
	return rating, nil
}
