package seed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"

	"github.com/reelmatch/reelmatch/internal/domain"
	"github.com/reelmatch/reelmatch/internal/repository"
)

// Loader bulk-imports MovieLens data files. Malformed lines are logged
// and skipped rather than aborting the import.
type Loader struct {
	repo   *repository.Repository
	logger *log.Logger
}

func NewLoader(repo *repository.Repository, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{repo: repo, logger: logger}
}

// LoadUsers reads u.user lines and copies them into the users table,
// then realigns the identity sequence past the seeded ids.
func (l *Loader) LoadUsers(ctx context.Context, r io.Reader) (int64, error) {
	var users []domain.User
	if err := l.scanLines(r, "user", func(line string) error {
		user, err := ParseUserLine(line)
		if err != nil {
			return err
		}
		users = append(users, user)
		return nil
	}); err != nil {
		return 0, err
	}

	count, err := l.repo.Users.CopyIn(ctx, users)
	if err != nil {
		return 0, fmt.Errorf("copy users: %w", err)
	}
	if err := l.repo.Users.ResetIDSequence(ctx); err != nil {
		return count, fmt.Errorf("reset users sequence: %w", err)
	}
	return count, nil
}

// LoadMovies reads u.item lines and copies them into the movies table,
// then realigns the identity sequence past the seeded ids.
func (l *Loader) LoadMovies(ctx context.Context, r io.Reader) (int64, error) {
	var movies []domain.Movie
	if err := l.scanLines(r, "movie", func(line string) error {
		movie, err := ParseMovieLine(line)
		if err != nil {
			return err
		}
		movies = append(movies, movie)
		return nil
	}); err != nil {
		return 0, err
	}

	count, err := l.repo.Movies.CopyIn(ctx, movies)
	if err != nil {
		return 0, fmt.Errorf("copy movies: %w", err)
	}
	if err := l.repo.Movies.ResetIDSequence(ctx); err != nil {
		return count, fmt.Errorf("reset movies sequence: %w", err)
	}
	return count, nil
}

// LoadRatings reads u.data lines and copies them into the ratings table.
// Users and movies must be loaded first so the foreign keys resolve.
func (l *Loader) LoadRatings(ctx context.Context, r io.Reader) (int64, error) {
	var ratings []domain.Rating
	if err := l.scanLines(r, "rating", func(line string) error {
		rating, err := ParseRatingLine(line)
		if err != nil {
			return err
		}
		ratings = append(ratings, rating)
		return nil
	}); err != nil {
		return 0, err
	}

	count, err := l.repo.Ratings.CopyIn(ctx, ratings)
	if err != nil {
		return 0, fmt.Errorf("copy ratings: %w", err)
	}
	return count, nil
}

func (l *Loader) scanLines(r io.Reader, kind string, parse func(string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := parse(line); err != nil {
			l.logger.Printf("skipping %s line %d: %v", kind, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s data: %w", kind, err)
	}
	return nil
}
