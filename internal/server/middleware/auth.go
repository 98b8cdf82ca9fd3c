package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"driver-provisioning/backend/internal/audit"
	auditdomain "driver-provisioning/backend/internal/audit/domain"
	"driver-provisioning/backend/internal/policy/engine"
)

// Caller names stored on the context by CallerAuth.
const (
	CallerInternal  = "internal"
	CallerAnonymous = "anonymous"
)

// TokenVerifier checks the caller's shared secret.
type TokenVerifier interface {
	Configured() bool
	Verify(token string) bool
}

// CallerAuthConfig configures CallerAuth. Tokens and Policy are required.
type CallerAuthConfig struct {
	Tokens      TokenVerifier
	Policy      engine.Evaluator
	Environment string
	// Audit records denied requests; optional.
	Audit  audit.AuditLogger
	Logger *slog.Logger
}

// CallerAuth verifies the x-internal-token header and asks the access policy
// whether the request may proceed. Denied requests get 401 and are audited.
func CallerAuth(cfg CallerAuthConfig) gin.HandlerFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		authenticated := cfg.Tokens.Verify(c.GetHeader(HeaderInternalToken))
		in := engine.AccessInput{
			Authenticated:   authenticated,
			TokenConfigured: cfg.Tokens.Configured(),
			Environment:     cfg.Environment,
			Path:            c.Request.URL.Path,
			Method:          c.Request.Method,
		}
		allowed, err := cfg.Policy.Allow(ctx, in)
		if err != nil {
			logger.Error("access policy evaluation failed", "path", in.Path, "error", err)
		}
		if err != nil || !allowed {
			denyRequest(ctx, cfg.Audit, in.Path, authenticated)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		caller := CallerAnonymous
		if authenticated {
			caller = CallerInternal
		}
		c.Request = c.Request.WithContext(WithCaller(ctx, caller))
		c.Next()
	}
}

func denyRequest(ctx context.Context, l audit.AuditLogger, path string, authenticated bool) {
	if l == nil {
		return
	}
	ar := audit.ParseRoute(path)
	meta, _ := json.Marshal(map[string]any{"path": path, "authenticated": authenticated, "resource": ar.Resource})
	l.LogEvent(WithCaller(ctx, CallerAnonymous), ar.Action, "", auditdomain.OutcomeDenied, string(meta))
}
