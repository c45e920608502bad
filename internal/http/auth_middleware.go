package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/qbeka/matchmaking-nat/pkg/crypto"
	"github.com/qbeka/matchmaking-nat/pkg/jwt"
)

const tokenScope = jwt.ScopeMatch

type authContextKey string

type authInfo struct {
	Operator string
	Scope    string
}

const contextKeyAuth authContextKey = "matchd-auth-info"

type contextSetter interface {
	SetContext(context.Context)
}

// AuthConfig controls bearer authentication. An empty Secret disables it.
type AuthConfig struct {
	Secret     string
	APIKeyHash string
	TokenTTL   time.Duration
}

func (a AuthConfig) enabled() bool {
	return strings.TrimSpace(a.Secret) != ""
}

// requireAuth ensures the request has a valid bearer token before invoking the handler.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if !r.auth.enabled() {
			next(w, req)
			return
		}
		ctx, _, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// ensureAuth validates the token and enriches the context.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, authInfo, bool) {
	token, err := requestToken(req)
	if err != nil {
		r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
		r.recordAuth(authFlowBearer, authResultMissing)
		writeError(w, http.StatusUnauthorized, "authentication required")
		return req.Context(), authInfo{}, false
	}
	claims, err := jwt.Parse(token, r.auth.Secret)
	if err != nil {
		r.logger.Warn("token validation failed", "error", err, "path", req.URL.Path)
		r.recordAuth(authFlowBearer, authResultInvalid)
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return req.Context(), authInfo{}, false
	}
	if claims.Scope != tokenScope {
		r.recordAuth(authFlowBearer, authResultForbidden)
		writeError(w, http.StatusForbidden, "token scope not permitted")
		return req.Context(), authInfo{}, false
	}
	r.recordAuth(authFlowBearer, authResultOK)
	info := authInfo{Operator: claims.Operator, Scope: claims.Scope}
	ctx := context.WithValue(req.Context(), contextKeyAuth, info)
	return ctx, info, true
}

func (r *Router) handleToken(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Operator string `json:"operator"`
		APIKey   string `json:"api_key"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	if !r.auth.enabled() || strings.TrimSpace(r.auth.APIKeyHash) == "" {
		writeError(w, http.StatusServiceUnavailable, "token exchange not configured")
		return
	}
	if err := crypto.CompareKey([]byte(r.auth.APIKeyHash), payload.APIKey); err != nil {
		r.logger.Warn("api key rejected", "operator", payload.Operator)
		r.recordAuth(authFlowAPIKey, authResultInvalid)
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}
	operator := strings.TrimSpace(payload.Operator)
	if operator == "" {
		operator = "operator"
	}
	ttl := r.auth.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	token, err := jwt.GenerateToken(operator, tokenScope, r.auth.Secret, ttl)
	if err != nil {
		r.logger.Error("token generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	r.recordAuth(authFlowAPIKey, authResultOK)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(ttl.Seconds()),
	})
}

// authInfoFromContext extracts auth metadata from context.
func authInfoFromContext(ctx context.Context) (authInfo, bool) {
	value := ctx.Value(contextKeyAuth)
	if value == nil {
		return authInfo{}, false
	}
	info, ok := value.(authInfo)
	return info, ok
}

// requestToken reads the bearer header, falling back to the access_token
// query parameter for browser websocket and event stream clients.
func requestToken(req *http.Request) (string, error) {
	header := req.Header.Get("Authorization")
	if strings.TrimSpace(header) == "" {
		if token := strings.TrimSpace(req.URL.Query().Get("access_token")); token != "" {
			return token, nil
		}
	}
	return bearerToken(header)
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
