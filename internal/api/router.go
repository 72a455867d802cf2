package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"greendrake/localboard/internal/api/handlers"
	"greendrake/localboard/internal/api/middleware"
	"greendrake/localboard/internal/cache"
	"greendrake/localboard/internal/config"
	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/payments"
	"greendrake/localboard/internal/repository"
	"greendrake/localboard/internal/services"
	"greendrake/localboard/internal/storage"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Listings   services.IListingService
	Feed       services.IFeedService
	Checkout   services.ICheckoutService
	Moderation services.IModerationService
	Content    services.IContentService
	Engagement services.IEngagementService
}

// NewServices wires repositories and services over the given backends.
func NewServices(cfg *config.Config, database *mongo.Database, rdb redis.Cmdable, enqueuer services.ITaskEnqueuer, store storage.IS3Storage, provider payments.IProvider, log *zap.Logger) *Services {
	listingRepo := repository.NewListingRepository(database)
	updateRepo := repository.NewUpdateRepository(database)
	commentRepo := repository.NewCommentRepository(database)
	engagementRepo := repository.NewEngagementRepository(database)

	listings := services.NewListingService(listingRepo, store, enqueuer, cfg, log)
	return &Services{
		Listings:   listings,
		Feed:       services.NewFeedService(listingRepo, repository.NewJobRepository(database), cfg),
		Checkout:   services.NewCheckoutService(listingRepo, listings, provider, cache.NewDeduper(rdb, "webhook:payments:", cfg.WebhookDedupTTL), cfg, log),
		Moderation: services.NewModerationService(listingRepo, repository.NewFlagRepository(database), enqueuer, cfg, log),
		Content:    services.NewContentService(updateRepo, commentRepo, listingRepo, repository.NewUserRepository(database), engagementRepo, log),
		Engagement: services.NewEngagementService(updateRepo, commentRepo, engagementRepo, cfg, log),
	}
}

// SetupRouter configures the public API engine. ctx bounds background
// housekeeping of the rate limiter.
func SetupRouter(ctx context.Context, cfg *config.Config, svcs *Services, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.ZapLogger(log), middleware.CORSMiddleware(cfg.AppBaseURL))

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg, log)
	go rateLimiter.Run(ctx)

	listingHandler := handlers.NewRestListingHandler(svcs.Listings, svcs.Feed, svcs.Checkout, svcs.Moderation)
	updateHandler := handlers.NewRestUpdateHandler(svcs.Content, svcs.Engagement)
	webhookHandler := handlers.NewRestWebhookHandler(svcs.Checkout, log)

	apiGroup := r.Group("/api")

	// Provider callbacks are signed and retried by the sender; they skip
	// auth and the per-IP limiter.
	apiGroup.POST("/webhooks/payments", webhookHandler.HandlePayment)

	limited := apiGroup.Group("")
	limited.Use(rateLimiter.Limit())

	public := limited.Group("")
	public.Use(middleware.OptionalAuthMiddleware(cfg.JwtSecret))
	{
		public.GET("/local-listings", listingHandler.ListListings)
		public.GET("/local-listings/:id", listingHandler.GetListing)
		public.GET("/local-listings/:id/comments", updateHandler.ListComments(models.ParentListing))
		public.GET("/updates/:id", updateHandler.GetUpdate)
		public.GET("/updates/:id/comments", updateHandler.ListComments(models.ParentUpdate))
		public.GET("/users/:id/pinned-posts", updateHandler.ListPinned)
	}

	authRequired := limited.Group("")
	authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
	{
		authRequired.POST("/local-listings", listingHandler.CreateListing)
		authRequired.PATCH("/local-listings/:id", listingHandler.UpdateListing)
		authRequired.DELETE("/local-listings/:id", listingHandler.DeleteListing)
		authRequired.POST("/local-listings/:id/checkout", listingHandler.StartCheckout)
		authRequired.POST("/local-listings/:id/flag", listingHandler.FlagListing)
		authRequired.POST("/local-listings/:id/comments", updateHandler.CreateComment(models.ParentListing))
		authRequired.POST("/local-listings/:id/images/upload-url", listingHandler.RequestImageUpload)
		authRequired.POST("/local-listings/:id/images", listingHandler.AttachImage)

		authRequired.POST("/comment-polls/:commentId/vote", updateHandler.VoteCommentPoll)

		authRequired.POST("/updates", updateHandler.CreateUpdate)
		authRequired.POST("/updates/:id/like", updateHandler.LikeUpdate)
		authRequired.POST("/updates/:id/vote", updateHandler.VoteUpdatePoll)
		authRequired.POST("/updates/:id/comments", updateHandler.CreateComment(models.ParentUpdate))

		authRequired.PATCH("/update-comments/:id", updateHandler.EditComment)
		authRequired.DELETE("/update-comments/:id", updateHandler.DeleteComment)
		authRequired.POST("/update-comments/:id/like", updateHandler.LikeComment)

		authRequired.POST("/pinned-posts", updateHandler.PinUpdate)
		authRequired.DELETE("/pinned-posts", updateHandler.UnpinUpdate)
	}

	admin := limited.Group("/admin")
	admin.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
	{
		admin.POST("/local-listings/:id/activate", listingHandler.ForceActivate)
		admin.POST("/local-listings/:id/remove", listingHandler.RemoveListing)
		admin.POST("/local-listings/:id/reinstate", listingHandler.ReinstateListing)
	}

	return r
}

// HealthCheck reports whether one backend is reachable.
type HealthCheck func(ctx context.Context) error

// SetupServiceRouter configures the internal engine: metrics, health and
// the shutdown command.
func SetupServiceRouter(checks map[string]HealthCheck, shutdownChan chan<- struct{}, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(log))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		report := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				report[name] = err.Error()
				continue
			}
			report[name] = "ok"
		}
		c.JSON(status, report)
	})

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Info("received shutdown command via service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Warn("shutdown already signaled")
			}
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Unknown service method: " + req.Method})
		}
	})
	return r
}
