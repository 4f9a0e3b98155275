package seed

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/reelmatch/reelmatch/internal/domain"
)

// The MovieLens 100k data files are line-oriented: u.user and u.item are
// pipe-delimited, u.data is tab-delimited.

const movieReleaseLayout = "02-Jan-2006"

// ParseUserLine parses one u.user line of the form
// "id|age|gender|occupation|zipcode". Gender and occupation are ignored.
func ParseUserLine(line string) (domain.User, error) {
	fields := strings.Split(line, "|")
	if len(fields) < 5 {
		return domain.User{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}

	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return domain.User{}, fmt.Errorf("invalid user id %q", fields[0])
	}

	user := domain.User{ID: id}
	if raw := strings.TrimSpace(fields[1]); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil {
			return domain.User{}, fmt.Errorf("invalid age %q", raw)
		}
		user.Age = &age
	}
	if zip := strings.TrimSpace(fields[4]); zip != "" {
		user.Zipcode = &zip
	}
	return user, nil
}

// ParseMovieLine parses one u.item line. The layout is
// "id|title (year)|release date|video release date|imdb url|...genre flags".
// The trailing "(year)" is stripped from the title; a movie without a
// release date is rejected.
func ParseMovieLine(line string) (domain.Movie, error) {
	fields := strings.Split(line, "|")
	if len(fields) < 5 {
		return domain.Movie{}, fmt.Errorf("expected at least 5 fields, got %d", len(fields))
	}

	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return domain.Movie{}, fmt.Errorf("invalid movie id %q", fields[0])
	}

	title := strings.TrimSpace(strings.TrimRight(fields[1], "()1234567890"))
	if title == "" {
		return domain.Movie{}, fmt.Errorf("empty title")
	}

	releasedAt, err := time.Parse(movieReleaseLayout, strings.TrimSpace(fields[2]))
	if err != nil {
		return domain.Movie{}, fmt.Errorf("invalid release date %q", fields[2])
	}

	movie := domain.Movie{
		ID:         id,
		Title:      title,
		ReleasedAt: releasedAt,
	}
	if raw := strings.TrimSpace(fields[4]); raw != "" {
		movie.ImdbURL = &raw
	}
	return movie, nil
}

// ParseRatingLine parses one u.data line of the form
// "user\tmovie\tscore\tunix-timestamp".
func ParseRatingLine(line string) (domain.Rating, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 4 {
		return domain.Rating{}, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}

	userID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || userID <= 0 {
		return domain.Rating{}, fmt.Errorf("invalid user id %q", fields[0])
	}
	movieID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || movieID <= 0 {
		return domain.Rating{}, fmt.Errorf("invalid movie id %q", fields[1])
	}
	score, err := strconv.Atoi(fields[2])
	if err != nil || score < 1 || score > 5 {
		return domain.Rating{}, fmt.Errorf("invalid score %q", fields[2])
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64)
	if err != nil {
		return domain.Rating{}, fmt.Errorf("invalid timestamp %q", fields[3])
	}

	return domain.Rating{
		UserID:  userID,
		MovieID: movieID,
		Score:   score,
		RatedAt: time.Unix(ts, 0).UTC(),
	}, nil
}
