// Package httpapi exposes the contract lifecycle over HTTP.
package httpapi

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leaseflow/auth"
	"leaseflow/logging"
)

// Services bundles the dependencies the router wires into handlers.
type Services struct {
	Verifier      TokenVerifier
	Auth          Authenticator
	Rooms         RoomLister
	Contracts     ContractService
	Disputes      DisputeService
	WebhookSecret string
	Logger        *slog.Logger
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(s Services) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.Logger))
	r.Use(Authenticate(s.Verifier))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")

	NewAuthHandler(s.Auth).RegisterRoutes(v1)
	NewWebhookHandler(s.Contracts, s.WebhookSecret).RegisterRoutes(v1)

	rooms := NewRoomHandler(s.Rooms)
	rooms.RegisterRoutes(v1)

	protected := v1.Group("")
	protected.Use(RequireAuth())
	rooms.RegisterProtectedRoutes(protected)
	NewContractHandler(s.Contracts).RegisterProtectedRoutes(protected)

	disputes := NewDisputeHandler(s.Disputes)
	disputes.RegisterProtectedRoutes(protected)

	admin := v1.Group("")
	admin.Use(RequireAuth(), RequireRole(auth.RoleAdmin))
	disputes.RegisterAdminRoutes(admin)

	return r
}

// requestLogger tags each request with an id and logs its completion.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-Id", requestID)

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, logger.With("requestId", requestID))
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		logger.Info("http request",
			"requestId", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
