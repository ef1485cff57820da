package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"facilityops/lottery/internal/config"
	"facilityops/lottery/internal/handler/middleware"
	jwtpkg "facilityops/lottery/pkg/jwt"
)

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	jwtManager *jwtpkg.Manager,
	lotteryHandler *LotteryHandler,
	recordHandler *RecordHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Lottery routes, scoped by operational day and facility
	scoped := r.Group("/api/v1/lottery/:date/:facility")
	scoped.Use(middleware.JWTAuth(jwtManager))
	{
		scoped.GET("/pool", lotteryHandler.GetPool)
		scoped.GET("/pool/stream", lotteryHandler.StreamPool)

		scoped.GET("/session", lotteryHandler.GetSession)
		scoped.POST("/session/sources", lotteryHandler.AddSource)
		scoped.DELETE("/session/sources/:id", lotteryHandler.RemoveSource)
		scoped.PUT("/session/target", lotteryHandler.SetTarget)
		scoped.PUT("/session/method", lotteryHandler.SetMethod)
		scoped.POST("/session/rules", lotteryHandler.QueueRule)
		scoped.DELETE("/session/rules/:id", lotteryHandler.DeleteRule)
		scoped.DELETE("/session/draft", lotteryHandler.ResetDraft)

		scoped.POST("/session/run", lotteryHandler.Run)
		scoped.DELETE("/session/run", lotteryHandler.DiscardRun)
		scoped.POST("/session/confirm", lotteryHandler.Confirm)

		scoped.GET("/history", lotteryHandler.GetHistory)
		scoped.GET("/history/stream", lotteryHandler.StreamHistory)
		scoped.DELETE("/history/:package_id", lotteryHandler.CancelPackage)
	}

	// Admin routes (JWT + admin check)
	if recordHandler != nil {
		admin := r.Group("/api/v1/admin")
		admin.Use(middleware.JWTAuth(jwtManager))
		admin.Use(middleware.AdminAuth(cfg.Admin.UserIDs))
		{
			admin.POST("/records", recordHandler.CreateRecords)
			admin.PATCH("/records/:id/status", recordHandler.UpdateStatus)
		}
	}

	return r
}
