package httpx

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/qbeka/matchmaking-nat/internal/domain"
	"github.com/qbeka/matchmaking-nat/internal/repository/memory"
	"github.com/qbeka/matchmaking-nat/internal/service/match"
	"github.com/qbeka/matchmaking-nat/internal/ws"
	"github.com/qbeka/matchmaking-nat/pkg/crypto"
)

const testSecret = "router-test-secret"

func newTestRouter(t *testing.T, opts Options) (*Router, *ws.Hub) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := match.New(memory.New(), match.DefaultConfig(), logger, match.WithIDGenerator(func() string { return "run-1" }))
	hub := ws.NewHub(16)
	reg := prometheus.NewRegistry()
	opts.Logger = logger
	opts.Match = svc
	opts.Hub = hub
	opts.Registerer = reg
	opts.Gatherer = reg
	r := NewRouter(opts)
	t.Cleanup(func() {
		r.Close()
		hub.Close()
	})
	return r, hub
}

func do(t *testing.T, h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "198.51.100.7:4242"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func sampleIndividuals() []domain.Individual {
	roles := []string{"backend_dev", "frontend_dev", "designer", "devops_engineer", "data_scientist", "product_manager"}
	out := make([]domain.Individual, len(roles))
	for i, role := range roles {
		out[i] = domain.Individual{
			ID:                string(rune('a' + i)),
			Skills:            map[string]float64{"Go": float64(i%5 + 1)},
			Roles:             []string{role},
			AvailabilityHours: 20,
			Leadership:        i == 0,
		}
	}
	return out
}

func sampleTasks() []domain.Task {
	return []domain.Task{{
		ID:              "api",
		RequiredSkills:  map[string]float64{"Go": 3},
		RolePreferences: map[string]float64{"backend_dev": 0.5},
		Capacity:        6,
	}}
}

func issueToken(t *testing.T, h http.Handler, key string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/auth/token", map[string]string{"operator": "ops", "api_key": key}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("token exchange failed: %d %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if payload.AccessToken == "" || payload.TokenType != "Bearer" {
		t.Fatalf("unexpected token payload: %s", rec.Body.String())
	}
	return payload.AccessToken
}

func TestPipelineOverHTTP(t *testing.T) {
	hash, err := crypto.HashKey("s3cret-key")
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	r, _ := newTestRouter(t, Options{Auth: AuthConfig{Secret: testSecret, APIKeyHash: string(hash), TokenTTL: time.Minute}})

	if rec := do(t, r, http.MethodPost, "/individuals", sampleIndividuals(), ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/auth/token", map[string]string{"api_key": "wrong"}, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad key, got %d", rec.Code)
	}
	token := issueToken(t, r, "s3cret-key")

	if rec := do(t, r, http.MethodPost, "/individuals", sampleIndividuals(), token); rec.Code != http.StatusOK {
		t.Fatalf("upsert individuals: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, r, http.MethodPost, "/tasks", sampleTasks(), token); rec.Code != http.StatusOK {
		t.Fatalf("upsert tasks: %d %s", rec.Code, rec.Body.String())
	}

	rec := do(t, r, http.MethodPost, "/runs", match.CreateRunInput{}, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create run: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, r, http.MethodPost, "/runs/run-1/stages/2", nil, token); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for stage 2 before stage 1, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/runs/run-1/stages/9", nil, token); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown stage, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/runs/run-1/stages/one", nil, token); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non numeric stage, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/runs/run-1/stages/1", nil, token); rec.Code != http.StatusOK {
		t.Fatalf("stage 1: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, r, http.MethodPost, "/runs/run-1/execute", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("execute: %d %s", rec.Code, rec.Body.String())
	}
	var view match.RunView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Run == nil || view.Run.Status != domain.RunComplete {
		t.Fatalf("expected complete run, got %+v", view.Run)
	}
	if view.Stage3 == nil || len(view.Stage3.Assignments) == 0 {
		t.Fatalf("expected assignments, got %+v", view.Stage3)
	}

	if rec := do(t, r, http.MethodGet, "/runs/run-1", nil, token); rec.Code != http.StatusOK {
		t.Fatalf("get run: %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/runs/missing", nil, token); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing run, got %d", rec.Code)
	}
}

func TestValidationErrorsAre422(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	bad := []domain.Individual{{ID: "x", Skills: map[string]float64{"Go": 9}, AvailabilityHours: 10}}
	rec := do(t, r, http.MethodPost, "/individuals", bad, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var payload struct {
		Violations []struct {
			Field string `json:"field"`
			Type  string `json:"type"`
		} `json:"violations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Violations) != 1 || payload.Violations[0].Field != "individuals[0].skills.Go" {
		t.Fatalf("unexpected violations: %s", rec.Body.String())
	}

	if rec := do(t, r, http.MethodPost, "/runs", match.CreateRunInput{DesiredTeamSize: 2}, ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for team size 2, got %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestRateLimitedWrites(t *testing.T) {
	r, _ := newTestRouter(t, Options{RateLimit: 2})
	for i := 0; i < 2; i++ {
		rec := do(t, r, http.MethodPost, "/tasks", sampleTasks(), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "2" {
			t.Fatalf("missing rate limit headers")
		}
	}
	rec := do(t, r, http.MethodPost, "/tasks", sampleTasks(), "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected no remaining requests, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestHealthzReportsComponents(t *testing.T) {
	r, _ := newTestRouter(t, Options{HealthChecks: map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}})
	rec := do(t, r, http.MethodGet, "/healthz", nil, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var payload struct {
		Status     string                    `json:"status"`
		Components map[string]map[string]any `json:"components"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Status != "degraded" || payload.Components["database"]["status"] != "up" || payload.Components["redis"]["status"] != "down" {
		t.Fatalf("unexpected health payload: %s", rec.Body.String())
	}

	metrics := do(t, r, http.MethodGet, "/metrics", nil, "")
	if metrics.Code != http.StatusOK || !strings.Contains(metrics.Body.String(), "matchd_api_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
}

func TestProgressStreams(t *testing.T) {
	r, hub := newTestRouter(t, Options{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/progress/run-7")
	if err != nil {
		t.Fatalf("open event stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/progress?run=run-7", nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return hub.Subscribers("run-7") == 2 })
	waitFor(t, func() bool {
		return testutil.ToFloat64(r.progressStreams.WithLabelValues("ws")) == 1 &&
			testutil.ToFloat64(r.progressStreams.WithLabelValues("sse")) == 1
	})
	if !hub.Broadcast("run-7", []byte(`{"kind":"stage_started"}`)) {
		t.Fatalf("broadcast rejected")
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read websocket: %v", err)
	}
	if string(msg) != `{"kind":"stage_started"}` {
		t.Fatalf("unexpected websocket payload %s", msg)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read event stream: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			if strings.TrimSpace(strings.TrimPrefix(line, "data: ")) != `{"kind":"stage_started"}` {
				t.Fatalf("unexpected sse payload %q", line)
			}
			break
		}
	}
}

func TestStageAndAuthMetrics(t *testing.T) {
	hash, err := crypto.HashKey("metrics-key")
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	r, _ := newTestRouter(t, Options{Auth: AuthConfig{Secret: testSecret, APIKeyHash: string(hash)}})

	do(t, r, http.MethodPost, "/individuals", sampleIndividuals(), "")
	do(t, r, http.MethodPost, "/auth/token", map[string]string{"api_key": "wrong"}, "")
	token := issueToken(t, r, "metrics-key")
	do(t, r, http.MethodPost, "/individuals", sampleIndividuals(), token)
	do(t, r, http.MethodPost, "/tasks", sampleTasks(), token)
	do(t, r, http.MethodPost, "/runs", match.CreateRunInput{}, token)
	do(t, r, http.MethodPost, "/runs/run-1/stages/2", nil, token)
	do(t, r, http.MethodPost, "/runs/run-1/stages/one", nil, token)
	do(t, r, http.MethodPost, "/runs/run-1/stages/1", nil, token)
	do(t, r, http.MethodPost, "/runs/run-1/execute", nil, token)

	counts := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"stage 2 conflict", r.stageRequests.WithLabelValues("2", "conflict"), 1},
		{"non numeric stage", r.stageRequests.WithLabelValues("other", "unknown_stage"), 1},
		{"stage 1 ok", r.stageRequests.WithLabelValues("1", "ok"), 1},
		{"execute ok", r.stageRequests.WithLabelValues(stageAll, "ok"), 1},
		{"missing bearer", r.authTotal.WithLabelValues(authFlowBearer, authResultMissing), 1},
		{"bad api key", r.authTotal.WithLabelValues(authFlowAPIKey, authResultInvalid), 1},
		{"key exchange", r.authTotal.WithLabelValues(authFlowAPIKey, authResultOK), 1},
		{"bearer ok", r.authTotal.WithLabelValues(authFlowBearer, authResultOK), 7},
		{"stage 4xx", r.requestTotal.WithLabelValues(http.MethodPost, "POST /runs/{id}/stages/{n}", "4xx"), 2},
		{"stage 2xx", r.requestTotal.WithLabelValues(http.MethodPost, "POST /runs/{id}/stages/{n}", "2xx"), 1},
	}
	for _, tc := range counts {
		if got := testutil.ToFloat64(tc.c); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}

	if got := statusClass(503); got != "5xx" {
		t.Fatalf("expected 5xx, got %q", got)
	}
	if got := stageLabel(9); got != "other" {
		t.Fatalf("expected out of range stage to be other, got %q", got)
	}
}
