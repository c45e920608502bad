// Package scoring models skill proficiency as a Beta posterior.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// MaxRating is the top of the self-rating scale.
const MaxRating = 5.0

var (
	errNegativeEvidence = errors.New("scoring: evidence must be non-negative")
	errRatingRange      = errors.New("scoring: rating out of range")
)

// Posterior is a Beta(Alpha, Beta) belief over a proficiency probability.
type Posterior struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// NewPosterior returns the uniform Beta(1,1) prior.
func NewPosterior() Posterior {
	return Posterior{Alpha: 1, Beta: 1}
}

// Update adds observed successes and failures.
func (p Posterior) Update(successes, failures float64) (Posterior, error) {
	if successes < 0 || failures < 0 {
		return p, errNegativeEvidence
	}
	return Posterior{Alpha: p.Alpha + successes, Beta: p.Beta + failures}, nil
}

// UpdateFromRating treats a self rating r in [0, MaxRating] as r successes
// and MaxRating-r failures.
func (p Posterior) UpdateFromRating(r float64) (Posterior, error) {
	if r < 0 || r > MaxRating || math.IsNaN(r) {
		return p, fmt.Errorf("%w: %v", errRatingRange, r)
	}
	return p.Update(r, MaxRating-r)
}

// UpdateFromQuiz scales a quiz score in [0,1] to ten trials.
func (p Posterior) UpdateFromQuiz(score float64) (Posterior, error) {
	if score < 0 || score > 1 || math.IsNaN(score) {
		return p, fmt.Errorf("%w: quiz score %v", errRatingRange, score)
	}
	successes := math.Round(score * 10)
	return p.Update(successes, 10-successes)
}

// Mean is the posterior expectation.
func (p Posterior) Mean() float64 {
	return p.Alpha / (p.Alpha + p.Beta)
}

// StdDev is the posterior standard deviation.
func (p Posterior) StdDev() float64 {
	s := p.Alpha + p.Beta
	return math.Sqrt(p.Alpha * p.Beta / (s * s * (s + 1)))
}

// Level maps the mean back onto the rating scale.
func (p Posterior) Level() float64 {
	return p.Mean() * MaxRating
}

// FromRatings builds a posterior per skill from self ratings. Invalid
// ratings are skipped and reported by name.
func FromRatings(ratings map[string]float64) (map[string]Posterior, []string) {
	out := make(map[string]Posterior, len(ratings))
	var rejected []string
	for name, r := range ratings {
		post, err := NewPosterior().UpdateFromRating(r)
		if err != nil {
			rejected = append(rejected, name)
			continue
		}
		out[name] = post
	}
	sort.Strings(rejected)
	return out, rejected
}
