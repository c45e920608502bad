// Package embedding fills in motivation embeddings from an external model.
// Enrichment is best effort; a failed lookup leaves the embedding absent and
// the cost model applies its missing-embedding default.
package embedding

import (
	"context"
	"log/slog"
	"strings"

	"github.com/qbeka/matchmaking-nat/internal/domain"
)

// Provider turns text into a vector. ok is false when the provider has no
// embedding for the text, which is not an error.
type Provider interface {
	Embed(ctx context.Context, text string) (vec []float64, ok bool, err error)
}

// Noop never returns embeddings.
type Noop struct{}

// Embed implements Provider.
func (Noop) Embed(context.Context, string) ([]float64, bool, error) { return nil, false, nil }

// Stats counts enrichment outcomes.
type Stats struct {
	Filled  int `json:"filled"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Enrich returns copies of individuals with missing embeddings filled from
// their motivation text. Inputs are not modified.
func Enrich(ctx context.Context, p Provider, individuals []domain.Individual, logger *slog.Logger) ([]domain.Individual, Stats) {
	out := make([]domain.Individual, len(individuals))
	var st Stats
	for i, ind := range individuals {
		out[i] = ind.Clone()
		if len(ind.Embedding) > 0 || strings.TrimSpace(ind.MotivationText) == "" {
			st.Skipped++
			continue
		}
		vec, ok := embed(ctx, p, ind.MotivationText, "individual", ind.ID, logger, &st)
		if ok {
			out[i].Embedding = vec
		}
	}
	return out, st
}

// EnrichTasks fills missing task embeddings from the task title.
func EnrichTasks(ctx context.Context, p Provider, tasks []domain.Task, logger *slog.Logger) ([]domain.Task, Stats) {
	out := make([]domain.Task, len(tasks))
	var st Stats
	for i, t := range tasks {
		out[i] = t
		out[i].Embedding = append([]float64(nil), t.Embedding...)
		if len(t.Embedding) > 0 || strings.TrimSpace(t.Title) == "" {
			st.Skipped++
			continue
		}
		vec, ok := embed(ctx, p, t.Title, "task", t.ID, logger, &st)
		if ok {
			out[i].Embedding = vec
		}
	}
	return out, st
}

func embed(ctx context.Context, p Provider, text, kind, id string, logger *slog.Logger, st *Stats) ([]float64, bool) {
	vec, ok, err := p.Embed(ctx, text)
	switch {
	case err != nil:
		st.Failed++
		if logger != nil {
			logger.Warn("embedding lookup failed", "kind", kind, "id", id, "error", err)
		}
		return nil, false
	case !ok || len(vec) == 0:
		st.Skipped++
		return nil, false
	default:
		st.Filled++
		return vec, true
	}
}
