package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/qbeka/matchmaking-nat/internal/domain"
)

const (
	defaultChatModel = "gpt-4o-mini"
	reviewTimeout    = 10 * time.Second
	openAIReviewer   = "openai"
)

const systemPrompt = `You review software project teams. Reply with a JSON object:
{"balanced": bool, "balance_score": number between 0 and 1, "missing_roles": [string], "notes": [string]}.
Keep notes short and factual.`

// ChatClient is the subset of *openai.Client used here.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var _ ChatClient = (*openai.Client)(nil)

// OpenAI asks a chat model for a JSON team report.
type OpenAI struct {
	client ChatClient
	model  string
}

// NewOpenAI builds a reviewer from an API key and optional base URL.
func NewOpenAI(apiKey, baseURL, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("review: openai api key required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewOpenAIWithClient(openai.NewClientWithConfig(cfg), model), nil
}

// NewOpenAIWithClient wraps an existing client.
func NewOpenAIWithClient(client ChatClient, model string) *OpenAI {
	if model == "" {
		model = defaultChatModel
	}
	return &OpenAI{client: client, model: model}
}

// Name implements Reviewer.
func (o *OpenAI) Name() string { return openAIReviewer }

type chatReport struct {
	Balanced     bool     `json:"balanced"`
	BalanceScore float64  `json:"balance_score"`
	MissingRoles []string `json:"missing_roles"`
	Notes        []string `json:"notes"`
}

// Review implements Reviewer.
func (o *OpenAI) Review(ctx context.Context, s Snapshot) (domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, reviewTimeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: describe(s)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return domain.Review{}, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Review{}, errors.New("openai chat: empty response")
	}
	var out chatReport
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return domain.Review{}, fmt.Errorf("decode review: %w", err)
	}
	if out.BalanceScore < 0 || out.BalanceScore > 1 {
		return domain.Review{}, fmt.Errorf("decode review: balance score %v out of range", out.BalanceScore)
	}
	return domain.Review{
		TeamID:       s.Team.ID,
		Reviewer:     openAIReviewer,
		Balanced:     out.Balanced,
		BalanceScore: out.BalanceScore,
		MissingRoles: out.MissingRoles,
		Notes:        out.Notes,
	}, nil
}

// describe renders the snapshot deterministically as the user prompt.
func describe(s Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Team %s with %d members.\n", s.Team.ID, len(s.Members))
	if len(s.AllowedRoles) > 0 {
		fmt.Fprintf(&b, "Expected roles: %s.\n", strings.Join(s.AllowedRoles, ", "))
	}
	for _, m := range s.Members {
		names := make([]string, 0, len(m.Skills))
		for name := range m.Skills {
			names = append(names, name)
		}
		sort.Strings(names)
		skills := make([]string, len(names))
		for i, name := range names {
			skills[i] = fmt.Sprintf("%s=%g", name, m.Skills[name])
		}
		fmt.Fprintf(&b, "- %s roles=[%s] skills=[%s] hours=%g leader=%t\n",
			m.ID, strings.Join(m.Roles, ","), strings.Join(skills, ","), m.AvailabilityHours, m.Leadership || s.Team.Promoted(m.ID))
	}
	return b.String()
}
