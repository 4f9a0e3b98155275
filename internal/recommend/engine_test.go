package recommend

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/reelmatch/reelmatch/internal/domain"
)

// memorySource is an in-memory Source preserving insertion order, with
// call counters so caching tests can observe recomputation.
type memorySource struct {
	byUser  map[int64][]domain.Rating
	byMovie map[int64][]domain.Rating

	userCalls  int
	movieCalls int

	failUsers map[int64]error
}

func newMemorySource(ratings ...domain.Rating) *memorySource {
	s := &memorySource{
		byUser:  make(map[int64][]domain.Rating),
		byMovie: make(map[int64][]domain.Rating),
	}
	for _, r := range ratings {
		s.byUser[r.UserID] = append(s.byUser[r.UserID], r)
		s.byMovie[r.MovieID] = append(s.byMovie[r.MovieID], r)
	}
	return s
}

func (s *memorySource) ListByUser(ctx context.Context, userID int64) ([]domain.Rating, error) {
	s.userCalls++
	if err, ok := s.failUsers[userID]; ok {
		return nil, err
	}
	return s.byUser[userID], nil
}

func (s *memorySource) ListByMovie(ctx context.Context, movieID int64) ([]domain.Rating, error) {
	s.movieCalls++
	return s.byMovie[movieID], nil
}

func rating(userID, movieID int64, score int) domain.Rating {
	return domain.Rating{UserID: userID, MovieID: movieID, Score: score}
}

func TestEngineSimilarity_SelfIsOne(t *testing.T) {
	src := newMemorySource(
		rating(1, 10, 5),
		rating(1, 11, 3),
		rating(1, 12, 4),
	)
	engine := NewEngine(src)

	sim, err := engine.Similarity(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if sim != 1.0 {
		t.Fatalf("self similarity = %v, want 1.0", sim)
	}
}

func TestEngineSimilarity_NoOverlapIsZero(t *testing.T) {
	src := newMemorySource(
		rating(1, 10, 5),
		rating(1, 11, 1),
		rating(2, 20, 5),
		rating(2, 21, 1),
	)
	engine := NewEngine(src)

	sim, err := engine.Similarity(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if sim != 0.0 {
		t.Fatalf("similarity without overlap = %v, want 0.0", sim)
	}
}

func TestEngineSimilarity_PerfectOverlap(t *testing.T) {
	// A rated {1:5, 2:3}; B rated {1:5, 2:3, 3:4}. Perfect match on the
	// overlap gives similarity 1.0.
	src := newMemorySource(
		rating(1, 1, 5),
		rating(1, 2, 3),
		rating(2, 1, 5),
		rating(2, 2, 3),
		rating(2, 3, 4),
	)
	engine := NewEngine(src)

	sim, err := engine.Similarity(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if sim != 1.0 {
		t.Fatalf("similarity = %v, want 1.0", sim)
	}
}

func TestEngineSimilarity_Symmetric(t *testing.T) {
	src := newMemorySource(
		rating(1, 10, 5),
		rating(1, 11, 2),
		rating(1, 12, 4),
		rating(2, 12, 1),
		rating(2, 10, 3),
		rating(2, 11, 5),
		rating(2, 13, 2),
	)
	engine := NewEngine(src)
	ctx := context.Background()

	ab, err := engine.Similarity(ctx, 1, 2)
	if err != nil {
		t.Fatalf("Similarity(1,2): %v", err)
	}
	ba, err := engine.Similarity(ctx, 2, 1)
	if err != nil {
		t.Fatalf("Similarity(2,1): %v", err)
	}
	if ab != ba {
		t.Fatalf("Similarity(1,2) = %v, Similarity(2,1) = %v; want identical", ab, ba)
	}
}

func TestEngineSimilarity_SingleCoRatedMovie(t *testing.T) {
	// One co-rated movie has zero variance by definition.
	src := newMemorySource(
		rating(1, 10, 5),
		rating(2, 10, 5),
		rating(2, 11, 1),
	)
	engine := NewEngine(src)

	sim, err := engine.Similarity(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if sim != 0.0 {
		t.Fatalf("similarity over one co-rated movie = %v, want 0.0", sim)
	}
}

func TestEnginePredict_PerfectMatch(t *testing.T) {
	// A rated {1:5, 2:3}; B rated {1:5, 2:3, 3:4}. Predicting movie 3 for
	// A: cohort {B} with similarity 1.0, so the prediction is 4.0.
	src := newMemorySource(
		rating(1, 1, 5),
		rating(1, 2, 3),
		rating(2, 1, 5),
		rating(2, 2, 3),
		rating(2, 3, 4),
	)
	engine := NewEngine(src)

	got, err := engine.Predict(context.Background(), 1, 3)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got != 4.0 {
		t.Fatalf("Predict = %v, want 4.0", got)
	}
}

func TestEnginePredict_TiedCohortAverages(t *testing.T) {
	// Raters 2 and 3 are both perfectly correlated with user 1 (two
	// co-rated movies each, positive slope), so both join the cohort and
	// the prediction is the mean of their scores (5 and 3) times 1.0.
	// Rater 4 is perfectly anti-correlated and must be excluded.
	src := newMemorySource(
		rating(1, 1, 5),
		rating(1, 2, 3),
		rating(2, 1, 5),
		rating(2, 2, 3),
		rating(2, 9, 5),
		rating(3, 1, 4),
		rating(3, 2, 2),
		rating(3, 9, 3),
		rating(4, 1, 3),
		rating(4, 2, 5),
		rating(4, 9, 1),
	)
	engine := NewEngine(src)

	got, err := engine.Predict(context.Background(), 1, 9)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got != 4.0 {
		t.Fatalf("Predict = %v, want 4.0 (cohort mean 4.0 x similarity 1.0)", got)
	}
}

func TestEnginePredict_NoRaters(t *testing.T) {
	src := newMemorySource(rating(1, 1, 5))
	engine := NewEngine(src)

	_, err := engine.Predict(context.Background(), 1, 99)
	if !errors.Is(err, ErrNoRaters) {
		t.Fatalf("Predict error = %v, want ErrNoRaters", err)
	}
}

func TestEnginePredict_NegativeSimilarityDampens(t *testing.T) {
	// The only rater is perfectly anti-correlated with the target, so the
	// raw prediction goes negative. The engine reports the raw value;
	// clamping is the caller's policy.
	src := newMemorySource(
		rating(1, 1, 5),
		rating(1, 2, 1),
		rating(2, 1, 1),
		rating(2, 2, 5),
		rating(2, 9, 4),
	)
	engine := NewEngine(src)

	got, err := engine.Predict(context.Background(), 1, 9)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got != -4.0 {
		t.Fatalf("Predict = %v, want -4.0", got)
	}
}

func TestEnginePredict_DuplicateRatingRows(t *testing.T) {
	// A duplicated rating row from an upstream anomaly contributes
	// independently; the cohort average absorbs it without special cases.
	src := newMemorySource(
		rating(1, 1, 5),
		rating(1, 2, 3),
		rating(2, 1, 5),
		rating(2, 2, 3),
		rating(2, 9, 4),
		rating(2, 9, 2),
	)
	engine := NewEngine(src)

	got, err := engine.Predict(context.Background(), 1, 9)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got != 3.0 {
		t.Fatalf("Predict = %v, want 3.0 (mean of duplicate rows 4 and 2)", got)
	}
}

func TestEnginePredict_MalformedRating(t *testing.T) {
	src := newMemorySource(
		rating(1, 1, 5),
		rating(2, 9, 4),
	)
	// Corrupt the movie listing so a row references the wrong movie.
	src.byMovie[9] = append(src.byMovie[9], rating(3, 8, 2))
	engine := NewEngine(src)

	_, err := engine.Predict(context.Background(), 1, 9)
	if !errors.Is(err, ErrMalformedRating) {
		t.Fatalf("Predict error = %v, want ErrMalformedRating", err)
	}
}

func TestEnginePredict_SourceFailurePropagates(t *testing.T) {
	src := newMemorySource(
		rating(1, 1, 5),
		rating(2, 9, 4),
	)
	failure := errors.New("connection reset")
	src.failUsers = map[int64]error{2: failure}
	engine := NewEngine(src)

	_, err := engine.Predict(context.Background(), 1, 9)
	if !errors.Is(err, failure) {
		t.Fatalf("Predict error = %v, want wrapped %v", err, failure)
	}
}

func TestEngine_Idempotent(t *testing.T) {
	src := newMemorySource(
		rating(1, 10, 5),
		rating(1, 11, 2),
		rating(2, 10, 3),
		rating(2, 11, 4),
		rating(2, 12, 1),
		rating(3, 12, 5),
		rating(3, 10, 2),
	)
	engine := NewEngine(src)
	ctx := context.Background()

	sim1, err := engine.Similarity(ctx, 1, 2)
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	sim2, err := engine.Similarity(ctx, 1, 2)
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if sim1 != sim2 {
		t.Fatalf("similarity not idempotent: %v vs %v", sim1, sim2)
	}

	pred1, err := engine.Predict(ctx, 1, 12)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	pred2, err := engine.Predict(ctx, 1, 12)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if pred1 != pred2 {
		t.Fatalf("prediction not idempotent: %v vs %v", pred1, pred2)
	}
}

func benchmarkSource(users, movies int) *memorySource {
	var ratings []domain.Rating
	for u := 1; u <= users; u++ {
		for m := 1; m <= movies; m++ {
			if (u+m)%3 == 0 {
				continue
			}
			ratings = append(ratings, rating(int64(u), int64(m), (u*m)%5+1))
		}
	}
	return newMemorySource(ratings...)
}

func BenchmarkEngineSimilarity(b *testing.B) {
	engine := NewEngine(benchmarkSource(50, 200))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Similarity(ctx, 1, int64(i%49)+2); err != nil {
			b.Fatalf("Similarity: %v", err)
		}
	}
}

func BenchmarkEnginePredict(b *testing.B) {
	engine := NewEngine(benchmarkSource(50, 200))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		movieID := int64(i%200) + 1
		if _, err := engine.Predict(ctx, 1, movieID); err != nil && !errors.Is(err, ErrNoRaters) {
			b.Fatalf("Predict movie %d: %v", movieID, err)
		}
	}
}

func ExampleEngine_Predict() {
	src := newMemorySource(
		rating(1, 1, 5),
		rating(1, 2, 3),
		rating(2, 1, 5),
		rating(2, 2, 3),
		rating(2, 3, 4),
	)
	engine := NewEngine(src)

	score, _ := engine.Predict(context.Background(), 1, 3)
	fmt.Println(score)
	// Output: 4
}
