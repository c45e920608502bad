package review

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/qbeka/matchmaking-nat/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type flakyReviewer struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *flakyReviewer) Name() string { return "flaky" }

func (f *flakyReviewer) Review(_ context.Context, s Snapshot) (domain.Review, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	switch s.Team.ID {
	case "team-002":
		return domain.Review{}, errors.New("upstream timeout")
	case "team-003":
		panic("bad snapshot")
	}
	return domain.Review{Balanced: true, BalanceScore: 0.9}, nil
}

type stubChat struct {
	content string
	err     error
	req     openai.ChatCompletionRequest
}

func (s *stubChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.req = req
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: s.content}}}}, nil
}

func snapshots(n int) []Snapshot {
	out := make([]Snapshot, n)
	for i := range out {
		id := []string{"team-001", "team-002", "team-003", "team-004", "team-005", "team-006"}[i]
		out[i] = Snapshot{Team: domain.Team{ID: id}}
	}
	return out
}

func TestReviewTeamsIsolatesFailures(t *testing.T) {
	r := &flakyReviewer{}
	reports, events := ReviewTeams(context.Background(), r, snapshots(6), 2, discardLogger())
	if len(reports) != 6 {
		t.Fatalf("expected 6 reports, got %d", len(reports))
	}
	for i, rep := range reports {
		want := snapshots(6)[i].Team.ID
		if rep.TeamID != want {
			t.Fatalf("report %d: expected team %s, got %s", i, want, rep.TeamID)
		}
	}
	if !reports[1].Degraded || !reports[2].Degraded {
		t.Fatalf("expected failed and panicked reviews to be degraded, got %+v", reports)
	}
	if reports[0].Degraded || reports[0].BalanceScore != 0.9 || reports[0].Reviewer != "flaky" {
		t.Fatalf("unexpected healthy report %+v", reports[0])
	}
	if len(events) != 2 || events[0].TeamID != "team-002" || events[1].TeamID != "team-003" {
		t.Fatalf("expected degraded events for team-002 and team-003, got %+v", events)
	}
	if r.peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent reviews, saw %d", r.peak.Load())
	}
}

func TestHeuristicReview(t *testing.T) {
	members := []domain.Individual{
		{ID: "a", Roles: []string{"backend_dev"}, Skills: map[string]float64{"Go": 4}, AvailabilityHours: 20},
		{ID: "b", Roles: []string{"backend_dev"}, Skills: map[string]float64{"Go": 4}, AvailabilityHours: 20},
		{ID: "c", Roles: []string{"backend_dev"}, Skills: map[string]float64{"SQL": 4}, AvailabilityHours: 20},
	}
	snap := Snapshot{Team: domain.Team{ID: "team-001", Members: []string{"a", "b", "c"}}, Members: members, AllowedRoles: []string{"backend_dev", "designer"}}
	rep, err := Heuristic{}.Review(context.Background(), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Balanced {
		t.Fatalf("expected single-role team to be unbalanced")
	}
	if len(rep.MissingRoles) != 1 || rep.MissingRoles[0] != "designer" {
		t.Fatalf("expected designer missing, got %v", rep.MissingRoles)
	}
	found := false
	for _, n := range rep.Notes {
		if strings.Contains(n, "leadership") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a leadership note, got %v", rep.Notes)
	}
}

func TestOpenAIReview(t *testing.T) {
	chat := &stubChat{content: `{"balanced": false, "balance_score": 0.4, "missing_roles": ["designer"], "notes": ["needs design"]}`}
	r := NewOpenAIWithClient(chat, "")
	snap := Snapshot{Team: domain.Team{ID: "team-001"}, Members: []domain.Individual{{ID: "a", Skills: map[string]float64{"Go": 3, "AWS": 2}}}}
	rep, err := r.Review(context.Background(), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Balanced || rep.BalanceScore != 0.4 || rep.TeamID != "team-001" || rep.Reviewer != "openai" {
		t.Fatalf("unexpected report %+v", rep)
	}
	if chat.req.Model != defaultChatModel || chat.req.ResponseFormat == nil {
		t.Fatalf("unexpected request %+v", chat.req)
	}
	if !strings.Contains(chat.req.Messages[1].Content, "skills=[AWS=2,Go=3]") {
		t.Fatalf("expected sorted skills in prompt, got %q", chat.req.Messages[1].Content)
	}

	chat.content = "not json"
	if _, err := r.Review(context.Background(), snap); err == nil {
		t.Fatalf("expected decode error")
	}
	chat.content = `{"balance_score": 3}`
	if _, err := r.Review(context.Background(), snap); err == nil {
		t.Fatalf("expected range error")
	}
}
