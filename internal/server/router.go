package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"driver-provisioning/backend/internal/audit"
	healthhandler "driver-provisioning/backend/internal/health/handler"
	"driver-provisioning/backend/internal/policy/engine"
	provisioninghandler "driver-provisioning/backend/internal/provisioning/handler"
	"driver-provisioning/backend/internal/server/middleware"
)

// Routes served by the provisioning API.
const (
	RouteCreateDriver = "/api/create-driver-auth-user"
	RouteDeleteDriver = "/api/delete-driver-auth-user"
	RouteLiveness     = "/health/liveness"
	RouteReadiness    = "/health/readiness"
)

// Deps holds the handlers and collaborators the router wires together.
type Deps struct {
	// Provisioning serves the driver account endpoints. Required.
	Provisioning *provisioninghandler.Handler
	// Health serves liveness and readiness. If nil, the health routes are not registered.
	Health *healthhandler.Server
	// Tokens verifies the x-internal-token header. Required.
	Tokens middleware.TokenVerifier
	// Policy decides caller access. Required.
	Policy engine.Evaluator
	// Environment is passed to the access policy (e.g. "production").
	Environment string
	// Audit records denied requests. If nil, denials are not audited.
	Audit  audit.AuditLogger
	Logger *slog.Logger
}

// NewRouter builds the HTTP handler. Every path answers CORS preflight with 200;
// a method other than POST on a provisioning route yields 405.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery())
	r.Use(middleware.RequestContext())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS())

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	if deps.Health != nil {
		r.GET(RouteLiveness, deps.Health.HandleLiveness)
		r.GET(RouteReadiness, deps.Health.HandleReadiness)
	}

	api := r.Group("/")
	api.Use(middleware.CallerAuth(middleware.CallerAuthConfig{
		Tokens:      deps.Tokens,
		Policy:      deps.Policy,
		Environment: deps.Environment,
		Audit:       deps.Audit,
		Logger:      deps.Logger,
	}))
	api.POST(RouteCreateDriver, deps.Provisioning.HandleProvision)
	api.POST(RouteDeleteDriver, deps.Provisioning.HandleDeprovision)
	return r
}
