package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reelmatch/reelmatch/internal/domain"
)

// UsersRepository provides persistence helpers for user accounts.
type UsersRepository struct {
	pool *pgxpool.Pool
}

const userColumns = `
    id,
    email,
    age,
    zipcode,
    created_at,
    updated_at
`

// UserCreateParams bundles the fields accepted at account provisioning.
type UserCreateParams struct {
	Email   *string
	Age     *int
	Zipcode *string
}

// Create inserts a new user row and returns the stored entity.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	query := fmt.Sprintf(`
        INSERT INTO users (email, age, zipcode)
        VALUES ($1,$2,$3)
        RETURNING %s
    `, userColumns)

	row := r.pool.QueryRow(ctx, query, params.Email, params.Age, params.Zipcode)
	return scanUser(row)
}

// GetByID fetches a user by identifier.
func (r *UsersRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// List returns users ordered by identifier.
func (r *UsersRepository) List(ctx context.Context, limit int) ([]domain.User, error) {
	if limit <= 0 {
		limit = 50
	} else if limit > 500 {
		limit = 500
	}

	query := fmt.Sprintf(`SELECT %s FROM users ORDER BY id LIMIT $1`, userColumns)
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// CopyIn bulk-inserts users with explicit identifiers, as produced by the
// seed loader.
func (r *UsersRepository) CopyIn(ctx context.Context, users []domain.User) (int64, error) {
	return r.pool.CopyFrom(ctx,
		pgx.Identifier{"users"},
		[]string{"id", "email", "age", "zipcode"},
		pgx.CopyFromSlice(len(users), func(i int) ([]any, error) {
			u := users[i]
			return []any{u.ID, u.Email, u.Age, u.Zipcode}, nil
		}),
	)
}

// ResetIDSequence realigns the identity sequence after rows were inserted
// with explicit identifiers.
func (r *UsersRepository) ResetIDSequence(ctx context.Context) error {
	const query = `
        SELECT setval(pg_get_serial_sequence('users', 'id'),
                      COALESCE((SELECT MAX(id) FROM users), 0) + 1, false)
    `
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("reset users id sequence: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Age,
		&user.Zipcode,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}
