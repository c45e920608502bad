package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qbeka/matchmaking-nat/internal/domain"
	"github.com/qbeka/matchmaking-nat/internal/service/match"
	"github.com/qbeka/matchmaking-nat/internal/ws"
)

// MatchService is the pipeline surface the router exposes.
type MatchService interface {
	UpsertIndividuals(ctx context.Context, individuals []domain.Individual) error
	UpsertTasks(ctx context.Context, tasks []domain.Task) error
	CreateRun(ctx context.Context, input match.CreateRunInput) (*domain.Run, error)
	GetRun(ctx context.Context, runID string) (*match.RunView, error)
	RunStage(ctx context.Context, runID string, n int) (*match.RunView, error)
	Execute(ctx context.Context, runID string) (*match.RunView, error)
}

var _ MatchService = (*match.Service)(nil)

// HealthCheck probes one dependency.
type HealthCheck func(context.Context) error

// Options wires a Router.
type Options struct {
	Logger  *slog.Logger
	Match   MatchService
	Hub     *ws.Hub
	Limiter RateLimiter
	Auth    AuthConfig
	// RateLimit caps write requests per key per minute; zero disables it.
	RateLimit    int
	Registerer   prometheus.Registerer
	Gatherer     prometheus.Gatherer
	HealthChecks map[string]HealthCheck
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	match     MatchService
	hub       *ws.Hub
	upgrader  websocket.Upgrader
	limiter   RateLimiter
	auth      AuthConfig
	rateLimit int
	health    map[string]HealthCheck

	registerer         prometheus.Registerer
	gatherer           prometheus.Gatherer
	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	stageRequests      *prometheus.CounterVec
	authTotal          *prometheus.CounterVec
	progressStreams    *prometheus.GaugeVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateLimitToken     = 12
	healthCheckTimeout = 2 * time.Second
	sseHeartbeat       = 15 * time.Second
	maxBodyBytes       = 8 << 20
)

// NewRouter assembles routes with dependencies.
func NewRouter(opts Options) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		logger: opts.Logger,
		match:  opts.Match,
		hub:    opts.Hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:    opts.Limiter,
		auth:       opts.Auth,
		rateLimit:  opts.RateLimit,
		health:     opts.HealthChecks,
		registerer: opts.Registerer,
		gatherer:   opts.Gatherer,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if r.registerer == nil {
		r.registerer = prometheus.DefaultRegisterer
	}
	if r.gatherer == nil {
		r.gatherer = prometheus.DefaultGatherer
	}
	if !r.auth.enabled() {
		r.logger.Warn("bearer authentication disabled, no jwt secret configured")
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.handle("GET /healthz", r.handleHealthz)
	r.mux.Handle("GET /metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	r.handle("POST /auth/token", r.withRateLimit("/auth/token", rateLimitToken, rateWindowDefault, r.handleToken))
	r.handle("POST /individuals", r.authRate("/individuals", r.handleIndividuals))
	r.handle("POST /tasks", r.authRate("/tasks", r.handleTasks))
	r.handle("POST /runs", r.authRate("/runs", r.handleCreateRun))
	r.handle("GET /runs/{id}", r.requireAuth(r.handleGetRun))
	r.handle("POST /runs/{id}/stages/{n}", r.authRate("/runs/stages", r.handleRunStage))
	r.handle("POST /runs/{id}/execute", r.authRate("/runs/execute", r.handleExecute))
	r.handle("GET /ws/progress", r.requireAuth(r.handleProgressWS))
	r.handle("GET /progress/{id}", r.requireAuth(r.handleProgressSSE))
}

func (r *Router) handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, r.audit(pattern, h))
}

func (r *Router) authRate(route string, next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(r.withRateLimit(route, r.rateLimit, rateWindowDefault, next))
}

func (r *Router) handleIndividuals(w http.ResponseWriter, req *http.Request) {
	var individuals []domain.Individual
	if !decodeJSON(w, req, &individuals) {
		return
	}
	if err := r.match.UpsertIndividuals(req.Context(), individuals); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "stored", "count": len(individuals)})
}

func (r *Router) handleTasks(w http.ResponseWriter, req *http.Request) {
	var tasks []domain.Task
	if !decodeJSON(w, req, &tasks) {
		return
	}
	if err := r.match.UpsertTasks(req.Context(), tasks); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "stored", "count": len(tasks)})
}

func (r *Router) handleCreateRun(w http.ResponseWriter, req *http.Request) {
	var input match.CreateRunInput
	if !decodeJSON(w, req, &input) {
		return
	}
	run, err := r.match.CreateRun(req.Context(), input)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (r *Router) handleGetRun(w http.ResponseWriter, req *http.Request) {
	view, err := r.match.GetRun(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (r *Router) handleRunStage(w http.ResponseWriter, req *http.Request) {
	n, err := strconv.Atoi(req.PathValue("n"))
	if err != nil {
		r.recordStage("other", "unknown_stage")
		writeError(w, http.StatusBadRequest, "stage must be a number")
		return
	}
	view, err := r.match.RunStage(req.Context(), req.PathValue("id"), n)
	r.recordStage(stageLabel(n), stageOutcome(err))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (r *Router) handleExecute(w http.ResponseWriter, req *http.Request) {
	view, err := r.match.Execute(req.Context(), req.PathValue("id"))
	r.recordStage(stageAll, stageOutcome(err))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (r *Router) handleProgressWS(w http.ResponseWriter, req *http.Request) {
	runID := strings.TrimSpace(req.URL.Query().Get("run"))
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run query parameter required")
		return
	}
	if r.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "progress streaming disabled")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(runID, client)
	release := r.trackStream("ws")
	go func() {
		defer func() {
			release()
			r.hub.Unregister(runID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleProgressSSE(w http.ResponseWriter, req *http.Request) {
	runID := req.PathValue("id")
	if r.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "progress streaming disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, "progress", r.logger)
	r.hub.Register(runID, client)
	release := r.trackStream("sse")
	defer func() {
		release()
		r.hub.Unregister(runID, client)
		client.Close()
	}()

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	components := make(map[string]any)
	status := "ok"
	names := make([]string, 0, len(r.health))
	for name := range r.health {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		err := r.health[name](ctx)
		cancel()
		if err != nil {
			status = "degraded"
			components[name] = map[string]any{"status": "down", "error": err.Error()}
			continue
		}
		components[name] = map[string]any{"status": "up"}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, req *http.Request, dst any) bool {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
			"ip", clientIP(req),
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "operator"
			fields = append(fields, "operator", info.Operator)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
