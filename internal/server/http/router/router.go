package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	pkgAuth "github.com/polkiloo/payledger/internal/pkg/auth"
	"github.com/polkiloo/payledger/internal/server/http/handlers"
	"github.com/polkiloo/payledger/internal/server/http/middleware"
)

// Setup configures the operations router. The health probe stays outside
// operator authentication.
func Setup(facade handlers.OpsFacade, verifier pkgAuth.TokenVerifier, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	ops := handlers.NewOpsHandler(facade)

	engine.GET("/healthz", ops.Health)

	api := engine.Group("/ops")
	api.Use(middleware.OperatorAuth(verifier))
	api.GET("/withdrawals/:id", ops.Withdrawal)
	api.GET("/withdrawals/:id/audit", ops.AuditTrail)
	api.POST("/withdrawals/:id/resume", ops.Resume)
	api.POST("/withdrawals/:id/refund", ops.Refund)
	api.GET("/users/:id/balances", ops.Balances)

	return engine
}
