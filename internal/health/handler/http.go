package handler

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 5 * time.Second

// Pinger checks database connectivity (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the access policy engine evaluates.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// AccessChecker confirms the identity service accepts the admin key.
type AccessChecker interface {
	CheckAccess(ctx context.Context) error
}

// Server serves liveness and readiness. Any checker may be nil and is then skipped.
type Server struct {
	pinger   Pinger
	policy   PolicyChecker
	identity AccessChecker
}

// NewServer returns a health server.
func NewServer(pinger Pinger, policy PolicyChecker, identity AccessChecker) *Server {
	return &Server{pinger: pinger, policy: policy, identity: identity}
}

type livenessResponse struct {
	Status     string `json:"status"`
	Host       string `json:"host"`
	GOMAXPROCS int    `json:"gomaxprocs"`
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HandleLiveness reports that the process is up.
func (s *Server) HandleLiveness(c *gin.Context) {
	host, _ := os.Hostname()
	if host == "" {
		host = "unavailable"
	}
	c.JSON(http.StatusOK, livenessResponse{
		Status:     "up",
		Host:       host,
		GOMAXPROCS: runtime.GOMAXPROCS(0),
	})
}

// HandleReadiness runs every configured check and returns 503 if any fails.
func (s *Server) HandleReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	checks := map[string]string{}
	ready := true
	run := func(name string, check func(context.Context) error) {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			return
		}
		checks[name] = "ok"
	}
	if s.pinger != nil {
		run("database", s.pinger.PingContext)
	}
	if s.policy != nil {
		run("policy", s.policy.HealthCheck)
	}
	if s.identity != nil {
		run("identity", s.identity.CheckAccess)
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, readinessResponse{Status: "down", Checks: checks})
		return
	}
	c.JSON(http.StatusOK, readinessResponse{Status: "up", Checks: checks})
}
