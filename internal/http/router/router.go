package router

import (
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/ignatzorin/proposal-portal/internal/config"
	"github.com/ignatzorin/proposal-portal/internal/http/middleware"
	"github.com/ignatzorin/proposal-portal/internal/interface/http/handler"
	"github.com/ignatzorin/proposal-portal/internal/metrics"
	"github.com/ignatzorin/proposal-portal/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	proposalHandler *handler.ProposalHandler,
	publicHandler *handler.PublicHandler,
	wsHandler *handler.WSHandler,
	healthHandler *handler.HealthHandler,
	tokenManager *service.TokenManager,
	rateStore limiter.Store,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Env == "development" {
		r.Use(gin.Logger())
	}
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")

	api.GET("/ws", middleware.WSAuthMiddleware(tokenManager), wsHandler.Handle)

	// Публичные маршруты по capability-ссылкам
	public := api.Group("/public")
	public.Use(middleware.RateLimitMiddleware(rateStore, cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		public.GET("/portal/:token", publicHandler.GetPortal)
		public.POST("/portal/:token/seen", publicHandler.MarkSeen)
		public.POST("/approve", publicHandler.Approve)
		public.POST("/comments", publicHandler.SubmitComment)
	}

	// Защищённые маршруты владельца
	protected := api.Group("/proposals")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("", proposalHandler.ListMyProposals)
		protected.GET("/:id", middleware.UUIDValidator("id"), proposalHandler.GetProposal)
		protected.GET("/:id/history", middleware.UUIDValidator("id"), proposalHandler.GetHistory)
		protected.GET("/:id/comments", middleware.UUIDValidator("id"), proposalHandler.ListComments)
		protected.GET("/:id/tokens", middleware.UUIDValidator("id"), proposalHandler.ListTokens)
		protected.POST("/:id/send", middleware.UUIDValidator("id"), proposalHandler.SendProposal)
		protected.POST("/:id/tokens", middleware.UUIDValidator("id"), proposalHandler.IssueToken)
		protected.POST("/:id/resolve", middleware.UUIDValidator("id"), proposalHandler.ResolveContested)
	}

	return r
}
