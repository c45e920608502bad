package scoring

import (
	"math"
	"testing"
)

func TestUpdateFromRating(t *testing.T) {
	p, err := NewPosterior().UpdateFromRating(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Alpha != 5 || p.Beta != 2 {
		t.Fatalf("expected Beta(5,2), got %+v", p)
	}
	if got := p.Mean(); math.Abs(got-5.0/7.0) > 1e-12 {
		t.Fatalf("unexpected mean %v", got)
	}
	want := math.Sqrt(10.0 / (49.0 * 8.0))
	if got := p.StdDev(); math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected std %v, got %v", want, got)
	}
}

func TestUpdateRejectsBadEvidence(t *testing.T) {
	if _, err := NewPosterior().UpdateFromRating(6); err == nil {
		t.Fatalf("expected rating above scale to fail")
	}
	if _, err := NewPosterior().Update(-1, 0); err == nil {
		t.Fatalf("expected negative evidence to fail")
	}
	if _, err := NewPosterior().UpdateFromQuiz(1.5); err == nil {
		t.Fatalf("expected quiz score above one to fail")
	}
}

func TestUpdateFromQuiz(t *testing.T) {
	p, err := NewPosterior().UpdateFromQuiz(0.74)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Alpha != 8 || p.Beta != 4 {
		t.Fatalf("expected Beta(8,4), got %+v", p)
	}
}

func TestFromRatings(t *testing.T) {
	posts, rejected := FromRatings(map[string]float64{"Go": 5, "SQL": 0, "Rust": -2})
	if len(posts) != 2 {
		t.Fatalf("expected two posteriors, got %d", len(posts))
	}
	if len(rejected) != 1 || rejected[0] != "Rust" {
		t.Fatalf("expected Rust rejected, got %v", rejected)
	}
	if posts["Go"].Level() <= posts["SQL"].Level() {
		t.Fatalf("expected higher rating to yield higher level")
	}
}
