package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fitsocial/followgraph/internal/service"
	"github.com/fitsocial/followgraph/pkg/logging"
)

// HealthCheck reports the health of one dependency
type HealthCheck func(ctx context.Context) error

// Router sets up API routes
type Router struct {
	handler *JSONRPCHandler
	svc     *service.Service
	auth    Authenticator
	checks  map[string]HealthCheck
	logger  *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(svc *service.Service, auth Authenticator, checks map[string]HealthCheck) *Router {
	router := &Router{
		handler: NewJSONRPCHandler(),
		svc:     svc,
		auth:    auth,
		checks:  checks,
		logger:  logging.WithComponent("api-router"),
	}

	router.registerMethods()

	return router
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.Use(AccessLog())

	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	// JSON-RPC endpoint
	engine.POST("/", Authenticate(r.auth), r.handler.Handle)
}

// registerMethods registers all API methods
func (r *Router) registerMethods() {
	relations := NewRelationsAPI(r.svc)

	r.handler.RegisterMethod("relations.send_follow_request", relations.SendFollowRequest())
	r.handler.RegisterMethod("relations.cancel_follow_request", relations.CancelFollowRequest())
	r.handler.RegisterMethod("relations.accept_follow_request", relations.AcceptFollowRequest())
	r.handler.RegisterMethod("relations.decline_follow_request", relations.DeclineFollowRequest())
	r.handler.RegisterMethod("relations.unfollow", relations.Unfollow())
	r.handler.RegisterMethod("relations.remove_follower", relations.RemoveFollower())
	r.handler.RegisterMethod("relations.follow_status", relations.FollowStatus)

	r.handler.RegisterMethod("relations.list_followers", relations.ListFollowers())
	r.handler.RegisterMethod("relations.list_following", relations.ListFollowing())
	r.handler.RegisterMethod("relations.list_sent_requests", relations.ListSentRequests())
	r.handler.RegisterMethod("relations.list_received_requests", relations.ListReceivedRequests())

	accounts := NewAccountsAPI(r.svc)

	r.handler.RegisterMethod("accounts.get_account", accounts.GetAccount)
	r.handler.RegisterMethod("accounts.get_own_account", accounts.GetOwnAccount)
	r.handler.RegisterMethod("accounts.provision", accounts.Provision)
	r.handler.RegisterMethod("accounts.update_profile", accounts.UpdateProfile)
	r.handler.RegisterMethod("accounts.set_privacy", accounts.SetPrivacy)
	r.handler.RegisterMethod("accounts.toggle_privacy", accounts.TogglePrivacy)
	r.handler.RegisterMethod("accounts.can_view", accounts.CanView)

	r.logger.Info("JSON-RPC methods registered", zap.Int("count", r.handler.Methods()))
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "OK", http.StatusOK
	deps := gin.H{}
	for name, check := range r.checks {
		if err := check(ctx); err != nil {
			r.logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			deps[name] = err.Error()
			status, code = "DEGRADED", http.StatusServiceUnavailable
			continue
		}
		deps[name] = "OK"
	}

	c.JSON(code, gin.H{
		"status":       status,
		"service":      "followgraph-api",
		"dependencies": deps,
	})
}
