package recommend

import "math"

// scorePair is one co-rated observation: x is the first user's score,
// y the second user's score for the same movie.
type scorePair struct {
	x float64
	y float64
}

// pearson computes the Pearson product-moment correlation coefficient
// over paired observations, in [-1, 1].
//
// Degenerate input is mapped to 0: zero or one pair, or zero variance in
// either series (every co-rated movie scored identically), carries no
// informative signal and must not be read as perfect correlation.
func pearson(pairs []scorePair) float64 {
	n := float64(len(pairs))
	if n == 0 {
		return 0
	}

	var sumX, sumY, sumXY, sumX2, sumY2 float64
	for _, p := range pairs {
		sumX += p.x
		sumY += p.y
		sumXY += p.x * p.y
		sumX2 += p.x * p.x
		sumY2 += p.y * p.y
	}

	numerator := n*sumXY - sumX*sumY
	denominator := math.Sqrt((n*sumX2 - sumX*sumX) * (n*sumY2 - sumY*sumY))
	if denominator == 0 {
		return 0
	}

	return numerator / denominator
}
