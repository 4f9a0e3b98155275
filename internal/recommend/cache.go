package recommend

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// simKey identifies a user pair in canonical order so Similarity(a,b)
// and Similarity(b,a) share one cache entry.
type simKey struct {
	low  int64
	high int64
}

// predKey identifies a (user, movie) prediction.
type predKey struct {
	userID  int64
	movieID int64
}

// CachedRecommender memoizes similarity and prediction values from an
// inner Recommender. Cache entries must be dropped via InvalidateUser
// whenever the underlying rating set changes for a user; the inner
// engine's purity makes the memoization safe otherwise.
//
// A rating write can race an in-flight computation, in which case one
// stale value may be re-cached until the next write touching that user.
type CachedRecommender struct {
	mu    sync.RWMutex
	inner Recommender
	sims  *lru.Cache[simKey, float64]
	preds *lru.Cache[predKey, float64]
}

// NewCachedRecommender wraps inner with LRU caches of the given capacity
// (entries per cache).
func NewCachedRecommender(inner Recommender, capacity int) (*CachedRecommender, error) {
	sims, err := lru.New[simKey, float64](capacity)
	if err != nil {
		return nil, err
	}
	preds, err := lru.New[predKey, float64](capacity)
	if err != nil {
		return nil, err
	}
	return &CachedRecommender{inner: inner, sims: sims, preds: preds}, nil
}

// Similarity returns the memoized similarity for the user pair,
// computing and caching it on a miss.
func (c *CachedRecommender) Similarity(ctx context.Context, userA, userB int64) (float64, error) {
	key := canonicalSimKey(userA, userB)

	c.mu.RLock()
	sim, ok := c.sims.Get(key)
	c.mu.RUnlock()
	if ok {
		return sim, nil
	}

	sim, err := c.inner.Similarity(ctx, userA, userB)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.sims.Add(key, sim)
	c.mu.Unlock()
	return sim, nil
}

// Predict returns the memoized prediction for (userID, movieID),
// computing and caching it on a miss. Failures, including ErrNoRaters,
// are never cached: the next rating may make a prediction possible.
func (c *CachedRecommender) Predict(ctx context.Context, userID, movieID int64) (float64, error) {
	key := predKey{userID: userID, movieID: movieID}

	c.mu.RLock()
	score, ok := c.preds.Get(key)
	c.mu.RUnlock()
	if ok {
		return score, nil
	}

	score, err := c.inner.Predict(ctx, userID, movieID)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.preds.Add(key, score)
	c.mu.Unlock()
	return score, nil
}

// InvalidateUser evicts every cached similarity involving the user and
// every cached prediction for them. Predictions for other users are also
// dropped when their cohort could have included this user, which a key
// scan cannot determine, so all predictions are purged.
func (c *CachedRecommender) InvalidateUser(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.sims.Keys() {
		if key.low == userID || key.high == userID {
			c.sims.Remove(key)
		}
	}
	c.preds.Purge()

	c.inner.InvalidateUser(userID)
}

func canonicalSimKey(a, b int64) simKey {
	if a > b {
		a, b = b, a
	}
	return simKey{low: a, high: b}
}

var _ Recommender = (*CachedRecommender)(nil)
