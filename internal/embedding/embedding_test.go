package embedding

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/qbeka/matchmaking-nat/internal/domain"
)

type stubProvider struct {
	calls int
	fail  string
}

func (s *stubProvider) Embed(_ context.Context, text string) ([]float64, bool, error) {
	s.calls++
	if text == s.fail {
		return nil, false, errors.New("boom")
	}
	if text == "unknown" {
		return nil, false, nil
	}
	return []float64{float64(len(text)), 1}, true, nil
}

type stubEmbeddings struct {
	req openai.EmbeddingRequest
	err error
}

func (s *stubEmbeddings) CreateEmbeddings(_ context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	s.req = conv.Convert()
	if s.err != nil {
		return openai.EmbeddingResponse{}, s.err
	}
	return openai.EmbeddingResponse{Data: []openai.Embedding{{Embedding: []float32{0.5, -0.25}}}}, nil
}

func TestEnrichFillsOnlyMissing(t *testing.T) {
	inds := []domain.Individual{
		{ID: "has", MotivationText: "already", Embedding: []float64{9}},
		{ID: "fill", MotivationText: "build great things"},
		{ID: "fail", MotivationText: "explode"},
		{ID: "blank"},
		{ID: "unknown", MotivationText: "unknown"},
	}
	p := &stubProvider{fail: "explode"}
	out, st := Enrich(context.Background(), p, inds, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if st.Filled != 1 || st.Failed != 1 || st.Skipped != 3 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if p.calls != 3 {
		t.Fatalf("expected 3 provider calls, got %d", p.calls)
	}
	if out[0].Embedding[0] != 9 {
		t.Fatalf("expected existing embedding kept, got %v", out[0].Embedding)
	}
	if len(out[1].Embedding) != 2 {
		t.Fatalf("expected filled embedding, got %v", out[1].Embedding)
	}
	if len(out[2].Embedding) != 0 || len(out[4].Embedding) != 0 {
		t.Fatalf("expected failed and unknown lookups to stay empty")
	}
	if inds[1].Embedding != nil {
		t.Fatalf("expected input to be left untouched")
	}
}

func TestEnrichTasks(t *testing.T) {
	tasks := []domain.Task{{ID: "t1", Title: "payments api"}, {ID: "t2"}}
	out, st := EnrichTasks(context.Background(), &stubProvider{}, tasks, nil)
	if st.Filled != 1 || len(out[0].Embedding) != 2 || len(out[1].Embedding) != 0 {
		t.Fatalf("unexpected enrichment %+v %+v", st, out)
	}
}

func TestOpenAIEmbed(t *testing.T) {
	stub := &stubEmbeddings{}
	p := NewOpenAIWithClient(stub, "")
	vec, ok, err := p.Embed(context.Background(), "hello")
	if err != nil || !ok {
		t.Fatalf("unexpected result ok=%v err=%v", ok, err)
	}
	if len(vec) != 2 || vec[0] != 0.5 || vec[1] != -0.25 {
		t.Fatalf("unexpected vector %v", vec)
	}
	if stub.req.Model != openai.SmallEmbedding3 {
		t.Fatalf("expected default model, got %q", stub.req.Model)
	}

	stub.err = errors.New("rate limited")
	if _, _, err := p.Embed(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	if _, err := NewOpenAI("", "", ""); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestCachedKeyDependsOnModel(t *testing.T) {
	a := NewCached(Noop{}, nil, "model-a", 0, nil)
	b := NewCached(Noop{}, nil, "model-b", 0, nil)
	if a.Key("text") == b.Key("text") {
		t.Fatalf("expected keys to differ across models")
	}
	if !strings.HasPrefix(a.Key("text"), "embedding:") || len(a.Key("text")) != len("embedding:")+64 {
		t.Fatalf("unexpected key %q", a.Key("text"))
	}
}
