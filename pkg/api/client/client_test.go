package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/qbeka/matchmaking-nat/internal/domain"
)

func TestClientSendsTokenAfterExchange(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(TokenResponse{AccessToken: "tok-1", TokenType: "Bearer", ExpiresIn: 60})
	})
	mux.HandleFunc("GET /runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{"run": domain.Run{ID: r.PathValue("id"), Status: domain.RunPending}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cli, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := cli.ExchangeKey(context.Background(), "ops", "key"); err != nil {
		t.Fatalf("exchange: %v", err)
	}
	view, err := cli.GetRun(context.Background(), "run-9")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
	if view.Run == nil || view.Run.ID != "run-9" {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestClientDecodesViolations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"validation failed: individuals[0].id: id is required","violations":[{"field":"individuals[0].id","message":"id is required","type":"required"}]}`))
	}))
	defer srv.Close()

	cli, err := New(srv.URL, WithToken("t"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = cli.UpsertIndividuals(context.Background(), []domain.Individual{{}})
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || len(apiErr.Violations) != 1 || apiErr.Violations[0].Type != "required" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestNewNormalisesBase(t *testing.T) {
	cli, err := New("localhost:4100/")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if cli.baseURL != "http://localhost:4100" {
		t.Fatalf("unexpected base %q", cli.baseURL)
	}
}
