package recommend

import (
	"context"
	"errors"
	"testing"
)

func newCachedFixture(t *testing.T) (*CachedRecommender, *memorySource) {
	t.Helper()
	src := newMemorySource(
		rating(1, 1, 5),
		rating(1, 2, 3),
		rating(2, 1, 5),
		rating(2, 2, 3),
		rating(2, 3, 4),
	)
	cached, err := NewCachedRecommender(NewEngine(src), 128)
	if err != nil {
		t.Fatalf("NewCachedRecommender: %v", err)
	}
	return cached, src
}

func TestCachedRecommender_SimilarityMemoized(t *testing.T) {
	cached, src := newCachedFixture(t)
	ctx := context.Background()

	sim, err := cached.Similarity(ctx, 1, 2)
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if sim != 1.0 {
		t.Fatalf("similarity = %v, want 1.0", sim)
	}
	calls := src.userCalls

	// Repeat and swapped order both hit the canonical cache entry.
	if _, err := cached.Similarity(ctx, 1, 2); err != nil {
		t.Fatalf("Similarity repeat: %v", err)
	}
	if _, err := cached.Similarity(ctx, 2, 1); err != nil {
		t.Fatalf("Similarity swapped: %v", err)
	}
	if src.userCalls != calls {
		t.Fatalf("source queried %d more times, want 0", src.userCalls-calls)
	}
}

func TestCachedRecommender_InvalidateUser(t *testing.T) {
	cached, src := newCachedFixture(t)
	ctx := context.Background()

	if _, err := cached.Similarity(ctx, 1, 2); err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if _, err := cached.Predict(ctx, 1, 3); err != nil {
		t.Fatalf("Predict: %v", err)
	}

	cached.InvalidateUser(2)

	calls := src.userCalls
	if _, err := cached.Similarity(ctx, 1, 2); err != nil {
		t.Fatalf("Similarity after invalidate: %v", err)
	}
	if src.userCalls == calls {
		t.Fatalf("expected recomputation after InvalidateUser")
	}

	movieCalls := src.movieCalls
	if _, err := cached.Predict(ctx, 1, 3); err != nil {
		t.Fatalf("Predict after invalidate: %v", err)
	}
	if src.movieCalls == movieCalls {
		t.Fatalf("expected prediction recomputation after InvalidateUser")
	}
}

func TestCachedRecommender_UnrelatedPairSurvivesInvalidation(t *testing.T) {
	src := newMemorySource(
		rating(1, 1, 5),
		rating(1, 2, 3),
		rating(2, 1, 5),
		rating(2, 2, 3),
		rating(3, 1, 4),
		rating(3, 2, 2),
	)
	cached, err := NewCachedRecommender(NewEngine(src), 128)
	if err != nil {
		t.Fatalf("NewCachedRecommender: %v", err)
	}
	ctx := context.Background()

	if _, err := cached.Similarity(ctx, 1, 2); err != nil {
		t.Fatalf("Similarity(1,2): %v", err)
	}

	cached.InvalidateUser(3)

	calls := src.userCalls
	if _, err := cached.Similarity(ctx, 1, 2); err != nil {
		t.Fatalf("Similarity(1,2) repeat: %v", err)
	}
	if src.userCalls != calls {
		t.Fatalf("pair (1,2) evicted by unrelated invalidation")
	}
}

func TestCachedRecommender_ErrorsNotCached(t *testing.T) {
	src := newMemorySource(rating(1, 1, 5))
	cached, err := NewCachedRecommender(NewEngine(src), 128)
	if err != nil {
		t.Fatalf("NewCachedRecommender: %v", err)
	}
	ctx := context.Background()

	if _, err := cached.Predict(ctx, 1, 9); !errors.Is(err, ErrNoRaters) {
		t.Fatalf("Predict error = %v, want ErrNoRaters", err)
	}

	// A rating arrives for movie 9; the earlier failure must not mask it.
	extra := rating(2, 9, 4)
	src.byUser[2] = append(src.byUser[2], extra, rating(2, 1, 5))
	src.byMovie[9] = append(src.byMovie[9], extra)
	src.byMovie[1] = append(src.byMovie[1], rating(2, 1, 5))
	cached.InvalidateUser(2)

	score, err := cached.Predict(ctx, 1, 9)
	if err != nil {
		t.Fatalf("Predict after new rating: %v", err)
	}
	if score != 0.0 {
		// Single co-rated movie means zero-variance similarity 0, so the
		// dampened prediction is 0.
		t.Fatalf("Predict = %v, want 0.0", score)
	}
}

func TestCachedRecommender_StaleUntilInvalidated(t *testing.T) {
	cached, src := newCachedFixture(t)
	ctx := context.Background()

	before, err := cached.Predict(ctx, 1, 3)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	// Mutate the underlying data without invalidating: the cached value
	// must be returned unchanged. Staleness is the writer's
	// responsibility to clear via InvalidateUser.
	src.byMovie[3] = append(src.byMovie[3], rating(2, 3, 1))

	after, err := cached.Predict(ctx, 1, 3)
	if err != nil {
		t.Fatalf("Predict repeat: %v", err)
	}
	if before != after {
		t.Fatalf("cached prediction changed without invalidation: %v vs %v", before, after)
	}
}
